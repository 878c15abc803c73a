package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"

	"countingchain/cmd/internal/passphrase"
	"countingchain/config"
	"countingchain/crypto"
	"countingchain/gateway/auth"
)

const defaultPassEnv = "COUNTING_KEYSTORE_PASSPHRASE"

func runKeygen(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("keygen", flag.ContinueOnError)
	path := fs.String("out", "caller.keystore", "Output path for the keystore file")
	passEnv := fs.String("pass-env", defaultPassEnv, "Environment variable containing the keystore passphrase")
	prefix := fs.String("prefix", string(crypto.DefaultPrefix), "Bech32 prefix used to print the address")
	force := fs.Bool("force", false, "Overwrite an existing keystore file")
	light := fs.Bool("light-kdf", false, "Use light scrypt parameters (tests and throwaway keys only)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if !*force {
		if _, err := os.Stat(*path); err == nil {
			return fmt.Errorf("keystore file %s already exists (use -force to overwrite)", *path)
		} else if !errors.Is(err, os.ErrNotExist) {
			return err
		}
	}
	pass, err := passphrase.NewSource(*passEnv, "keystore", passphrase.WithConfirmation()).Get()
	if err != nil {
		return err
	}
	key, err := crypto.GeneratePrivateKey()
	if err != nil {
		return err
	}
	var opts []crypto.KeystoreOption
	if *light {
		opts = append(opts, crypto.WithLightScrypt())
	}
	if err := crypto.SaveToKeystore(*path, key, pass, opts...); err != nil {
		return fmt.Errorf("failed to write keystore: %w", err)
	}
	return printJSON(out, map[string]string{
		"address":  key.PubKey().Address(crypto.AddressPrefix(*prefix)).String(),
		"keystore": *path,
	})
}

func runAddress(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("address", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	path := fs.String("keystore", "", "Keystore file (defaults to the configured operator keystore)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, err := nf.load()
	if err != nil {
		return err
	}
	key, err := loadKey(cfg, *path)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, key.PubKey().Address(cfg.Prefix()).String())
	return err
}

// runEnvelope signs an execute envelope that can be POSTed to the gateway's
// /contracts/{addr}/execute route.
func runEnvelope(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("envelope", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	path := fs.String("keystore", "", "Keystore holding the signing key")
	contract := fs.String("contract", "", "Target contract address")
	msg := fs.String("msg", "", "Execute message (JSON)")
	funds := fs.String("funds", "", "Funds to attach, e.g. 10atom")
	nonce := fs.String("nonce", "", "Envelope nonce (random when empty)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := requireJSON("msg", *msg)
	if err != nil {
		return err
	}
	coins, err := parseFunds(*funds)
	if err != nil {
		return err
	}
	cfg, err := nf.load()
	if err != nil {
		return err
	}
	addr, err := crypto.ValidateAddress(cfg.Prefix(), *contract)
	if err != nil {
		return fmt.Errorf("invalid -contract: %w", err)
	}
	key, err := loadKey(cfg, *path)
	if err != nil {
		return err
	}
	env := newEnvelope(cfg, key, raw, *nonce)
	env.Funds = coins
	if err := env.Sign(key, cfg.ChainID, addr.String()); err != nil {
		return err
	}
	return printJSON(out, env)
}

func newEnvelope(cfg *config.Config, key *crypto.PrivateKey, msg []byte, nonce string) auth.Envelope {
	if strings.TrimSpace(nonce) == "" {
		nonce = uuid.NewString()
	}
	return auth.Envelope{
		Sender:    key.PubKey().Address(cfg.Prefix()).String(),
		Msg:       json.RawMessage(msg),
		Nonce:     nonce,
		Timestamp: time.Now().Unix(),
	}
}
