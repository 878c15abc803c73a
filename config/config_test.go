package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"countingchain/crypto"
)

func TestLoadCreatesDefaultFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")

	cfg, err := Load(path)
	require.NoError(t, err)
	require.FileExists(t, path)
	require.Equal(t, BackendLevelDB, cfg.StorageBackend)
	require.Equal(t, "counting-local", cfg.ChainID)
	require.Equal(t, 16, cfg.MaxCallDepth)
	require.NoError(t, Validate(cfg))

	again, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, cfg, again)
}

func TestLoadParsesSections(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	contents := `DataDir = "/var/lib/counting"
StorageBackend = "Bolt"
ChainID = "counting-1"
Bech32Prefix = "wasm"
MaxCallDepth = 8

[Log]
Level = "debug"
File = "/var/log/countingd.log"

[Gateway]
ListenAddress = "127.0.0.1:9090"
RateLimitPerMinute = 120
Burst = 10

[Indexer]
DSN = "postgres://counting@localhost/counting"

[Telemetry]
Endpoint = "otel:4318"
Traces = true
`
	require.NoError(t, os.WriteFile(path, []byte(contents), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Equal(t, BackendBolt, cfg.StorageBackend)
	require.Equal(t, crypto.AddressPrefix("wasm"), cfg.Prefix())
	require.Equal(t, 8, cfg.MaxCallDepth)
	require.Equal(t, "countingd", cfg.Log.Service)
	require.Equal(t, "debug", cfg.Log.Level)
	require.Equal(t, "127.0.0.1:9090", cfg.Gateway.ListenAddress)
	require.Equal(t, 300, cfg.Gateway.EnvelopeSkewSeconds)
	require.Equal(t, "postgres://counting@localhost/counting", cfg.Indexer.DSN)
	require.True(t, cfg.Telemetry.Traces)
	require.False(t, cfg.Telemetry.Metrics)
	require.NoError(t, Validate(cfg))
}

func TestValidateRejectsBadValues(t *testing.T) {
	cases := map[string]func(*Config){
		"backend":     func(c *Config) { c.StorageBackend = "rocksdb" },
		"chain id":    func(c *Config) { c.ChainID = " " },
		"depth":       func(c *Config) { c.MaxCallDepth = MaxCallDepthLimit + 1 },
		"burst":       func(c *Config) { c.Gateway.Burst = 0 },
		"data dir":    func(c *Config) { c.DataDir = "" },
		"bech prefix": func(c *Config) { c.Bech32Prefix = "Mixed" },
	}
	for name, mutate := range cases {
		cfg := Default()
		mutate(cfg)
		require.Error(t, Validate(cfg), name)
	}
}

func TestLoadCreatesKeystoreWithPassphrase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	passphrase := "strong-passphrase"

	cfg, err := Load(path, WithKeystorePassphrase(passphrase))
	require.NoError(t, err)
	require.FileExists(t, cfg.Keystore.Path)

	key, err := crypto.LoadFromKeystore(cfg.Keystore.Path, passphrase)
	require.NoError(t, err)
	require.NotNil(t, key)
}
