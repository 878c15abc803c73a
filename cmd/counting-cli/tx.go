package main

import (
	"context"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"strings"

	"countingchain/core"
	"countingchain/core/types"
	"countingchain/crypto"
	"countingchain/node"
)

type callOutput struct {
	Contract string         `json:"contract,omitempty"`
	CallID   string         `json:"call_id"`
	Height   uint64         `json:"height"`
	Events   []*types.Event `json:"events"`
}

func outputFor(contract crypto.Address, res *core.Result) callOutput {
	out := callOutput{CallID: res.CallID, Height: res.Height, Events: res.Events}
	if !contract.IsZero() {
		out.Contract = contract.String()
	}
	return out
}

func runInstantiate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("instantiate", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	sf := addSenderFlags(fs)
	code := fs.String("code", "current", "Code to instantiate: current, a version such as 0.2.0, or a code id")
	msg := fs.String("msg", "", "Instantiate message (JSON)")
	funds := fs.String("funds", "", "Funds to attach, e.g. 10atom,5eth")
	label := fs.String("label", "counting", "Human readable instance label")
	admin := fs.String("admin", "", "Migration admin address; defaults to the sender, \"none\" disables migration")
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
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	sender, err := sf.resolve(cfg)
	if err != nil {
		return err
	}
	codeID, err := node.ResolveCode(n.App, *code)
	if err != nil {
		return err
	}
	adminAddr := sender
	switch strings.TrimSpace(*admin) {
	case "":
	case "none":
		adminAddr = crypto.Address{}
	default:
		if adminAddr, err = crypto.ValidateAddress(cfg.Prefix(), *admin); err != nil {
			return fmt.Errorf("invalid -admin: %w", err)
		}
	}
	addr, res, err := n.App.Instantiate(context.Background(), codeID, sender, raw, coins, *label, adminAddr)
	if err != nil {
		return err
	}
	return printJSON(out, outputFor(addr, res))
}

func runExecute(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("execute", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	sf := addSenderFlags(fs)
	contract := fs.String("contract", "", "Contract address")
	msg := fs.String("msg", "", "Execute message (JSON)")
	funds := fs.String("funds", "", "Funds to attach, e.g. 10atom,5eth")
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
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	addr, err := crypto.ValidateAddress(cfg.Prefix(), *contract)
	if err != nil {
		return fmt.Errorf("invalid -contract: %w", err)
	}
	sender, err := sf.resolve(cfg)
	if err != nil {
		return err
	}
	res, err := n.App.Execute(context.Background(), sender, addr, raw, coins)
	if err != nil {
		return err
	}
	return printJSON(out, outputFor(crypto.Address{}, res))
}

func runMigrate(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("migrate", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	sf := addSenderFlags(fs)
	contract := fs.String("contract", "", "Contract address")
	code := fs.String("code", "current", "Target code: current, a version such as 0.3.0, or a code id")
	msg := fs.String("msg", "{}", "Migrate message (JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := requireJSON("msg", *msg)
	if err != nil {
		return err
	}
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	addr, err := crypto.ValidateAddress(cfg.Prefix(), *contract)
	if err != nil {
		return fmt.Errorf("invalid -contract: %w", err)
	}
	sender, err := sf.resolve(cfg)
	if err != nil {
		return err
	}
	codeID, err := node.ResolveCode(n.App, *code)
	if err != nil {
		return err
	}
	res, err := n.App.Migrate(context.Background(), sender, addr, codeID, raw)
	if err != nil {
		return err
	}
	return printJSON(out, outputFor(crypto.Address{}, res))
}

func runQuery(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("query", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	contract := fs.String("contract", "", "Contract address")
	msg := fs.String("msg", `{"value":{}}`, "Query message (JSON)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	raw, err := requireJSON("msg", *msg)
	if err != nil {
		return err
	}
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	addr, err := crypto.ValidateAddress(cfg.Prefix(), *contract)
	if err != nil {
		return fmt.Errorf("invalid -contract: %w", err)
	}
	data, err := n.App.Query(context.Background(), addr, raw)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, string(data))
	return err
}

func runBalances(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("balances", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	address := fs.String("addr", "", "Address to inspect")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	addr, err := crypto.ValidateAddress(cfg.Prefix(), *address)
	if err != nil {
		return fmt.Errorf("invalid -addr: %w", err)
	}
	coins, err := n.App.AllBalances(addr)
	if err != nil {
		return err
	}
	if coins == nil {
		coins = types.Coins{}
	}
	return printJSON(out, map[string]any{"address": addr.String(), "balances": coins})
}

func runStateHash(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("state-hash", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	contract := fs.String("contract", "", "Hash only this contract's store")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	var digest [32]byte
	if strings.TrimSpace(*contract) == "" {
		digest, err = n.App.StateDigest()
	} else {
		var addr crypto.Address
		if addr, err = crypto.ValidateAddress(cfg.Prefix(), *contract); err != nil {
			return fmt.Errorf("invalid -contract: %w", err)
		}
		digest, err = n.App.ContractStateDigest(addr)
	}
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(out, hex.EncodeToString(digest[:]))
	return err
}

func runCodes(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("codes", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}
	_, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	return printJSON(out, n.App.Codes())
}
