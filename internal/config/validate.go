package config

import (
	"errors"
	"fmt"

	"github.com/quotewire/pricefeed/internal/model"
)

// Validate checks that all required fields are set and values are valid.
func (c *EngineConfig) Validate() error {
	if c.Instance.ID == "" {
		return errors.New("instance.id is required")
	}

	if len(c.Pairs) == 0 {
		return errors.New("pairs must list at least one trading pair")
	}
	for _, pair := range c.Pairs {
		if _, _, err := model.ParsePair(pair); err != nil {
			return fmt.Errorf("pairs: %w", err)
		}
	}

	if len(c.Venues) == 0 {
		return errors.New("venues must list at least one venue")
	}
	seen := make(map[string]struct{}, len(c.Venues))
	for i, v := range c.Venues {
		if v.Name == "" {
			return fmt.Errorf("venues[%d].name is required", i)
		}
		if _, dup := seen[v.Name]; dup {
			return fmt.Errorf("venues[%d].name %q is duplicated", i, v.Name)
		}
		seen[v.Name] = struct{}{}
		if v.RestURL == "" && v.WSURL == "" {
			return fmt.Errorf("venues[%d] needs a rest_url or ws_url", i)
		}
	}

	if c.Poller.Interval <= 0 {
		return errors.New("poller.interval must be > 0")
	}
	if c.Poller.Timeout <= 0 {
		return errors.New("poller.timeout must be > 0")
	}
	if c.Poller.MaxRetries < 0 {
		return errors.New("poller.max_retries must be >= 0")
	}
	if c.Poller.RateLimit < 1 {
		return errors.New("poller.rate_limit_rps must be >= 1")
	}

	if c.Stream.ReconnectBaseDelay <= 0 {
		return errors.New("stream.reconnect_base_delay must be > 0")
	}
	if c.Stream.ReconnectMaxDelay < c.Stream.ReconnectBaseDelay {
		return fmt.Errorf("stream.reconnect_max_delay (%s) cannot be below reconnect_base_delay (%s)",
			c.Stream.ReconnectMaxDelay, c.Stream.ReconnectBaseDelay)
	}
	if c.Stream.BufferSize < 1 {
		return errors.New("stream.buffer_size must be >= 1")
	}

	if c.Cache.TTL <= 0 {
		return errors.New("cache.ttl must be > 0")
	}

	if c.Validation.MaxDeviationPct <= 0 || c.Validation.MaxDeviationPct > 100 {
		return fmt.Errorf("validation.max_deviation_pct must be in (0, 100], got %v", c.Validation.MaxDeviationPct)
	}

	if c.Broadcaster.Interval <= 0 {
		return errors.New("broadcaster.interval must be > 0")
	}
	if c.Broadcaster.BufferSize < 1 {
		return errors.New("broadcaster.buffer_size must be >= 1")
	}

	if c.Metrics.Port < 1 || c.Metrics.Port > 65535 {
		return fmt.Errorf("metrics.port must be between 1 and 65535, got %d", c.Metrics.Port)
	}

	return nil
}
