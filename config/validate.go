package config

import (
	"fmt"
	"regexp"
	"strings"
)

// MaxCallDepthLimit caps the configurable nesting of contract calls.
const MaxCallDepthLimit = 64

var bech32Prefix = regexp.MustCompile(`^[a-z]{1,16}$`)

// Validate checks the loaded configuration for values the daemon cannot run
// with.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config: nil")
	}
	if strings.TrimSpace(cfg.DataDir) == "" {
		return fmt.Errorf("config: DataDir required")
	}
	switch cfg.StorageBackend {
	case BackendLevelDB, BackendBolt:
	default:
		return fmt.Errorf("config: unknown StorageBackend %q", cfg.StorageBackend)
	}
	if strings.TrimSpace(cfg.ChainID) == "" {
		return fmt.Errorf("config: ChainID required")
	}
	if !bech32Prefix.MatchString(cfg.Bech32Prefix) {
		return fmt.Errorf("config: Bech32Prefix %q must be 1-16 lowercase letters", cfg.Bech32Prefix)
	}
	if cfg.MaxCallDepth < 1 || cfg.MaxCallDepth > MaxCallDepthLimit {
		return fmt.Errorf("config: MaxCallDepth must be within [1,%d]", MaxCallDepthLimit)
	}
	if cfg.Gateway.RateLimitPerMinute < 0 || cfg.Gateway.Burst < 0 {
		return fmt.Errorf("config: gateway rate limits must not be negative")
	}
	if cfg.Gateway.RateLimitPerMinute > 0 && cfg.Gateway.Burst == 0 {
		return fmt.Errorf("config: gateway Burst required when RateLimitPerMinute is set")
	}
	if cfg.Gateway.EnvelopeSkewSeconds < 0 {
		return fmt.Errorf("config: gateway EnvelopeSkewSeconds must not be negative")
	}
	return nil
}
