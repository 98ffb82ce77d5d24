package config

import "time"

// EngineConfig is the root configuration for a price feed engine instance.
type EngineConfig struct {
	Instance    InstanceConfig    `yaml:"instance"`
	Pairs       []string          `yaml:"pairs"`
	Venues      []VenueConfig     `yaml:"venues"`
	Poller      PollerConfig      `yaml:"poller"`
	Stream      StreamConfig      `yaml:"stream"`
	Cache       CacheConfig       `yaml:"cache"`
	Validation  ValidationConfig  `yaml:"validation"`
	Broadcaster BroadcasterConfig `yaml:"broadcaster"`
	Metrics     MetricsConfig     `yaml:"metrics"`
}

// InstanceConfig identifies this engine instance.
type InstanceConfig struct {
	ID string `yaml:"id"`
}

// VenueConfig describes one external price venue.
type VenueConfig struct {
	Name    string `yaml:"name"`     // Adapter name: "binance", "okx", "kraken"
	RestURL string `yaml:"rest_url"` // Snapshot endpoint base URL
	WSURL   string `yaml:"ws_url"`   // Push endpoint, empty = poll only
	Enabled *bool  `yaml:"enabled"`  // nil defaults to true
}

// IsEnabled reports whether the venue should be started.
func (v VenueConfig) IsEnabled() bool {
	return v.Enabled == nil || *v.Enabled
}

// PollerConfig holds REST poller settings.
type PollerConfig struct {
	Interval     time.Duration `yaml:"interval"`       // Poll cadence per venue
	Timeout      time.Duration `yaml:"timeout"`        // Per-request timeout
	MaxRetries   int           `yaml:"max_retries"`    // Retries after the first attempt
	RetryBackoff time.Duration `yaml:"retry_backoff"`  // Base backoff between retries
	RateLimit    int           `yaml:"rate_limit_rps"` // Requests per second cap per venue
}

// StreamConfig holds WebSocket subscriber settings.
type StreamConfig struct {
	ReconnectBaseDelay time.Duration `yaml:"reconnect_base_delay"`
	ReconnectMaxDelay  time.Duration `yaml:"reconnect_max_delay"`
	HeartbeatTimeout   time.Duration `yaml:"heartbeat_timeout"` // Force-close after this much silence
	WriteTimeout       time.Duration `yaml:"write_timeout"`
	BufferSize         int           `yaml:"buffer_size"` // Per-connection inbound buffer
}

// CacheConfig holds ticker cache settings.
type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"` // Freshness window for cached tickers
}

// ValidationConfig holds tick validation settings.
type ValidationConfig struct {
	MaxDeviationPct float64       `yaml:"max_deviation_pct"` // Reject beyond this % move without corroboration
	MaxFutureSkew   time.Duration `yaml:"max_future_skew"`   // Clock-skew guard for future timestamps
}

// BroadcasterConfig holds snapshot publishing settings.
type BroadcasterConfig struct {
	Interval   time.Duration `yaml:"interval"`    // Fixed publish tick
	BufferSize int           `yaml:"buffer_size"` // Aggregator inbound queue size
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Port int    `yaml:"port"`
	Path string `yaml:"path"`
}
