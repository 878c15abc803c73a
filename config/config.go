package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"

	"countingchain/crypto"
)

// Storage backends accepted by StorageBackend.
const (
	BackendLevelDB = "leveldb"
	BackendBolt    = "bolt"
)

type Config struct {
	DataDir        string    `toml:"DataDir"`
	StorageBackend string    `toml:"StorageBackend"`
	ChainID        string    `toml:"ChainID"`
	Bech32Prefix   string    `toml:"Bech32Prefix"`
	MaxCallDepth   int       `toml:"MaxCallDepth"`
	Log            Log       `toml:"Log"`
	Gateway        Gateway   `toml:"Gateway"`
	Indexer        Indexer   `toml:"Indexer"`
	Telemetry      Telemetry `toml:"Telemetry"`
	Keystore       Keystore  `toml:"Keystore"`
}

type loadOptions struct {
	passphrase string
}

// LoadOption customises Load.
type LoadOption func(*loadOptions)

// WithKeystorePassphrase makes Load create an operator keystore encrypted
// with passphrase when none exists yet.
func WithKeystorePassphrase(passphrase string) LoadOption {
	return func(o *loadOptions) { o.passphrase = passphrase }
}

// Load loads the configuration from the given path, writing a default file
// first when it does not exist.
func Load(path string, opts ...LoadOption) (*Config, error) {
	var o loadOptions
	for _, opt := range opts {
		opt(&o)
	}

	cfg := Default()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		cfg.Keystore.Path = defaultKeystorePath(path)
		if err := persist(path, cfg); err != nil {
			return nil, err
		}
	} else if err != nil {
		return nil, err
	} else if _, err := toml.DecodeFile(path, cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	applyDefaults(cfg)

	if o.passphrase != "" {
		if err := ensureKeystore(path, cfg, o.passphrase); err != nil {
			return nil, err
		}
	}
	return cfg, nil
}

// Default returns the configuration written for a fresh node.
func Default() *Config {
	return &Config{
		DataDir:        "./counting-data",
		StorageBackend: BackendLevelDB,
		ChainID:        "counting-local",
		Bech32Prefix:   string(crypto.DefaultPrefix),
		MaxCallDepth:   16,
		Log:            Log{Service: "countingd", Env: "local", Level: "info"},
		Gateway:        Gateway{ListenAddress: ":8080", RateLimitPerMinute: 600, Burst: 60, EnvelopeSkewSeconds: 300},
		Telemetry:      Telemetry{Endpoint: "localhost:4318"},
		Keystore:       Keystore{PassphraseEnv: "COUNTING_KEYSTORE_PASSPHRASE"},
	}
}

func applyDefaults(cfg *Config) {
	def := Default()
	if strings.TrimSpace(cfg.StorageBackend) == "" {
		cfg.StorageBackend = def.StorageBackend
	}
	cfg.StorageBackend = strings.ToLower(strings.TrimSpace(cfg.StorageBackend))
	if strings.TrimSpace(cfg.ChainID) == "" {
		cfg.ChainID = def.ChainID
	}
	if strings.TrimSpace(cfg.Bech32Prefix) == "" {
		cfg.Bech32Prefix = def.Bech32Prefix
	}
	if cfg.MaxCallDepth == 0 {
		cfg.MaxCallDepth = def.MaxCallDepth
	}
	if cfg.Gateway.EnvelopeSkewSeconds == 0 {
		cfg.Gateway.EnvelopeSkewSeconds = def.Gateway.EnvelopeSkewSeconds
	}
	if cfg.Log.Service == "" {
		cfg.Log.Service = def.Log.Service
	}
	if cfg.Keystore.PassphraseEnv == "" {
		cfg.Keystore.PassphraseEnv = def.Keystore.PassphraseEnv
	}
}

// Prefix returns the configured bech32 prefix.
func (c *Config) Prefix() crypto.AddressPrefix { return crypto.AddressPrefix(c.Bech32Prefix) }

func ensureKeystore(configPath string, cfg *Config, passphrase string) error {
	keystorePath := cfg.Keystore.Path
	if keystorePath == "" {
		keystorePath = defaultKeystorePath(configPath)
	}

	if _, err := os.Stat(keystorePath); os.IsNotExist(err) {
		key, genErr := crypto.GeneratePrivateKey()
		if genErr != nil {
			return genErr
		}
		if err := crypto.SaveToKeystore(keystorePath, key, passphrase); err != nil {
			return err
		}
	} else if err != nil {
		return err
	}

	if cfg.Keystore.Path != keystorePath {
		cfg.Keystore.Path = keystorePath
		return persist(configPath, cfg)
	}
	return nil
}

func persist(path string, cfg *Config) error {
	dir := filepath.Dir(path)
	if dir != "." && dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	f, err := os.OpenFile(path, os.O_WRONLY|os.O_TRUNC|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()

	return toml.NewEncoder(f).Encode(cfg)
}

func defaultKeystorePath(configPath string) string {
	return filepath.Join(filepath.Dir(configPath), "operator.keystore")
}
