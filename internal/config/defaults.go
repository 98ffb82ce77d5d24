package config

import "time"

// Default values for optional configuration fields.
const (
	DefaultPollInterval       = 5 * time.Second
	DefaultPollTimeout        = 3 * time.Second
	DefaultMaxRetries         = 2
	DefaultRetryBackoff       = 500 * time.Millisecond
	DefaultRateLimit          = 5
	DefaultReconnectBaseDelay = 1 * time.Second
	DefaultReconnectMaxDelay  = 30 * time.Second
	DefaultHeartbeatTimeout   = 60 * time.Second
	DefaultWriteTimeout       = 5 * time.Second
	DefaultStreamBufferSize   = 1000
	DefaultCacheTTL           = 10 * time.Second
	DefaultMaxDeviationPct    = 20.0
	DefaultMaxFutureSkew      = 5 * time.Second
	DefaultBroadcastInterval  = 5 * time.Second
	DefaultBroadcastBuffer    = 1000
	DefaultMetricsPort        = 9090
	DefaultMetricsPath        = "/metrics"
)

func (c *EngineConfig) applyDefaults() {
	// Poller defaults
	if c.Poller.Interval == 0 {
		c.Poller.Interval = DefaultPollInterval
	}
	if c.Poller.Timeout == 0 {
		c.Poller.Timeout = DefaultPollTimeout
	}
	if c.Poller.MaxRetries == 0 {
		c.Poller.MaxRetries = DefaultMaxRetries
	}
	if c.Poller.RetryBackoff == 0 {
		c.Poller.RetryBackoff = DefaultRetryBackoff
	}
	if c.Poller.RateLimit == 0 {
		c.Poller.RateLimit = DefaultRateLimit
	}

	// Stream defaults
	if c.Stream.ReconnectBaseDelay == 0 {
		c.Stream.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if c.Stream.ReconnectMaxDelay == 0 {
		c.Stream.ReconnectMaxDelay = DefaultReconnectMaxDelay
	}
	if c.Stream.HeartbeatTimeout == 0 {
		c.Stream.HeartbeatTimeout = DefaultHeartbeatTimeout
	}
	if c.Stream.WriteTimeout == 0 {
		c.Stream.WriteTimeout = DefaultWriteTimeout
	}
	if c.Stream.BufferSize == 0 {
		c.Stream.BufferSize = DefaultStreamBufferSize
	}

	// Cache defaults
	if c.Cache.TTL == 0 {
		c.Cache.TTL = DefaultCacheTTL
	}

	// Validation defaults
	if c.Validation.MaxDeviationPct == 0 {
		c.Validation.MaxDeviationPct = DefaultMaxDeviationPct
	}
	if c.Validation.MaxFutureSkew == 0 {
		c.Validation.MaxFutureSkew = DefaultMaxFutureSkew
	}

	// Broadcaster defaults (publish cadence matches the poll interval)
	if c.Broadcaster.Interval == 0 {
		c.Broadcaster.Interval = c.Poller.Interval
	}
	if c.Broadcaster.BufferSize == 0 {
		c.Broadcaster.BufferSize = DefaultBroadcastBuffer
	}

	// Metrics defaults
	if c.Metrics.Port == 0 {
		c.Metrics.Port = DefaultMetricsPort
	}
	if c.Metrics.Path == "" {
		c.Metrics.Path = DefaultMetricsPath
	}
}
