package config

// Log controls process logging.
type Log struct {
	Service    string `toml:"Service"`
	Env        string `toml:"Env"`
	Level      string `toml:"Level"`
	File       string `toml:"File"`
	MaxSizeMB  int    `toml:"MaxSizeMB"`
	MaxBackups int    `toml:"MaxBackups"`
	MaxAgeDays int    `toml:"MaxAgeDays"`
}

// Gateway configures the HTTP API.
type Gateway struct {
	ListenAddress      string   `toml:"ListenAddress"`
	RateLimitPerMinute int      `toml:"RateLimitPerMinute"`
	Burst              int      `toml:"Burst"`
	AllowedOrigins     []string `toml:"AllowedOrigins"`
	LogRequests        bool     `toml:"LogRequests"`
	// EnvelopeSkewSeconds bounds the age of a signed execute envelope.
	// Nonces are retained for twice this window.
	EnvelopeSkewSeconds int `toml:"EnvelopeSkewSeconds"`
}

// Indexer configures the event history database. A DSN starting with
// postgres:// selects Postgres; anything else is a SQLite path. Empty
// disables indexing.
type Indexer struct {
	DSN string `toml:"DSN"`
}

// Telemetry configures OTLP export.
type Telemetry struct {
	Endpoint string `toml:"Endpoint"`
	Insecure bool   `toml:"Insecure"`
	Headers  string `toml:"Headers"`
	Traces   bool   `toml:"Traces"`
	Metrics  bool   `toml:"Metrics"`
}

// Keystore locates the operator signing key.
type Keystore struct {
	Path          string `toml:"Path"`
	PassphraseEnv string `toml:"PassphraseEnv"`
}
