package main

import (
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"countingchain/cmd/internal/passphrase"
	"countingchain/config"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/node"
	"countingchain/observability/logging"
)

const defaultConfig = "./config.toml"

var errUsage = errors.New("usage")

type command struct {
	name    string
	summary string
	run     func(args []string, out io.Writer) error
}

func commands() []command {
	return []command{
		{"keygen", "create an encrypted signing keystore", runKeygen},
		{"address", "print the address held in a keystore", runAddress},
		{"genesis", "credit initial balances from a YAML file", runGenesis},
		{"codes", "list registered contract codes", runCodes},
		{"instantiate", "create a contract instance", runInstantiate},
		{"execute", "call a contract's execute entry point", runExecute},
		{"query", "run a read-only contract query", runQuery},
		{"migrate", "migrate an instance to another code", runMigrate},
		{"balances", "print the balances of an address", runBalances},
		{"state-hash", "print the state digest of the host or one contract", runStateHash},
		{"envelope", "sign an execute envelope for the gateway", runEnvelope},
	}
}

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		if !errors.Is(err, errUsage) {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func run(args []string, out io.Writer) error {
	if len(args) == 0 {
		usage(os.Stderr)
		return errUsage
	}
	for _, cmd := range commands() {
		if cmd.name == args[0] {
			return cmd.run(args[1:], out)
		}
	}
	usage(os.Stderr)
	return errUsage
}

func usage(w io.Writer) {
	fmt.Fprintln(w, "Usage: counting-cli <command> [flags]")
	fmt.Fprintln(w)
	for _, cmd := range commands() {
		fmt.Fprintf(w, "  %-12s %s\n", cmd.name, cmd.summary)
	}
}

// nodeFlags are shared by every command that opens the data directory.
type nodeFlags struct {
	configPath *string
}

func addNodeFlags(fs *flag.FlagSet) nodeFlags {
	return nodeFlags{configPath: fs.String("config", defaultConfig, "Path to the node config file")}
}

func (f nodeFlags) load() (*config.Config, error) {
	cfg, err := config.Load(*f.configPath)
	if err != nil {
		return nil, err
	}
	if err := config.Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (f nodeFlags) open() (*config.Config, *node.Node, error) {
	cfg, err := f.load()
	if err != nil {
		return nil, nil, err
	}
	logger := logging.Setup(logging.Options{
		Service: "counting-cli",
		Env:     cfg.Log.Env,
		Level:   "warn",
		Output:  os.Stderr,
	})
	n, err := node.Open(cfg, logger, nil)
	if err != nil {
		return nil, nil, err
	}
	return cfg, n, nil
}

// senderFlags resolve the calling identity either from an explicit address or
// from a keystore.
type senderFlags struct {
	sender   *string
	keystore *string
}

func addSenderFlags(fs *flag.FlagSet) senderFlags {
	return senderFlags{
		sender:   fs.String("sender", "", "Caller address"),
		keystore: fs.String("keystore", "", "Keystore holding the caller key (used when -sender is empty)"),
	}
}

func (f senderFlags) resolve(cfg *config.Config) (crypto.Address, error) {
	if strings.TrimSpace(*f.sender) != "" {
		return crypto.ValidateAddress(cfg.Prefix(), *f.sender)
	}
	key, err := loadKey(cfg, *f.keystore)
	if err != nil {
		return crypto.Address{}, err
	}
	return key.PubKey().Address(cfg.Prefix()), nil
}

func loadKey(cfg *config.Config, path string) (*crypto.PrivateKey, error) {
	if strings.TrimSpace(path) == "" {
		path = cfg.Keystore.Path
	}
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("either -sender or -keystore is required")
	}
	pass, err := passphrase.NewSource(cfg.Keystore.PassphraseEnv, "keystore").Get()
	if err != nil {
		return nil, err
	}
	return crypto.LoadFromKeystore(path, pass)
}

func parseFunds(raw string) (types.Coins, error) {
	coins, err := types.ParseCoins(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid -funds: %w", err)
	}
	return coins, nil
}

func requireJSON(name, raw string) ([]byte, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" || !json.Valid([]byte(raw)) {
		return nil, fmt.Errorf("-%s must be a JSON document", name)
	}
	return []byte(raw), nil
}

func printJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
