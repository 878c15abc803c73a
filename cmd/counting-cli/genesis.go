package main

import (
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"countingchain/core/types"
	"countingchain/crypto"
)

// genesisFile is the YAML document accepted by the genesis command.
//
//	chain_id: counting-local
//	balances:
//	  - address: count1...
//	    coins: 100atom,50eth
type genesisFile struct {
	ChainID  string           `yaml:"chain_id"`
	Balances []genesisBalance `yaml:"balances"`
}

type genesisBalance struct {
	Address string `yaml:"address"`
	Coins   string `yaml:"coins"`
}

type genesisEntry struct {
	addr  crypto.Address
	coins types.Coins
}

func loadGenesis(path, chainID string, prefix crypto.AddressPrefix) ([]genesisEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read genesis: %w", err)
	}
	var doc genesisFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("decode genesis: %w", err)
	}
	if doc.ChainID != "" && doc.ChainID != chainID {
		return nil, fmt.Errorf("genesis is for chain %q, node runs %q", doc.ChainID, chainID)
	}
	seen := make(map[string]struct{}, len(doc.Balances))
	entries := make([]genesisEntry, 0, len(doc.Balances))
	for i, bal := range doc.Balances {
		addr, err := crypto.ValidateAddress(prefix, strings.TrimSpace(bal.Address))
		if err != nil {
			return nil, fmt.Errorf("balances[%d]: %w", i, err)
		}
		if _, dup := seen[addr.String()]; dup {
			return nil, fmt.Errorf("balances[%d]: duplicate address %s", i, addr)
		}
		seen[addr.String()] = struct{}{}
		coins, err := types.ParseCoins(bal.Coins)
		if err != nil {
			return nil, fmt.Errorf("balances[%d]: %w", i, err)
		}
		entries = append(entries, genesisEntry{addr: addr, coins: coins})
	}
	return entries, nil
}

// runGenesis credits balances on a fresh data directory. Genesis is refused
// once any call has committed.
func runGenesis(args []string, out io.Writer) error {
	fs := flag.NewFlagSet("genesis", flag.ContinueOnError)
	nf := addNodeFlags(fs)
	file := fs.String("file", "genesis.yaml", "Genesis balances file (YAML)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg, n, err := nf.open()
	if err != nil {
		return err
	}
	defer n.Close()
	height, err := n.App.Height()
	if err != nil {
		return err
	}
	if height > 0 {
		return fmt.Errorf("data dir already at height %d; genesis only applies to a fresh chain", height)
	}
	entries, err := loadGenesis(*file, cfg.ChainID, cfg.Prefix())
	if err != nil {
		return err
	}
	for _, entry := range entries {
		if err := n.App.InitBalance(entry.addr, entry.coins); err != nil {
			return fmt.Errorf("credit %s: %w", entry.addr, err)
		}
	}
	return printJSON(out, map[string]any{"chain_id": cfg.ChainID, "accounts": len(entries)})
}
