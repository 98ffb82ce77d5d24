// Package cache provides the short-TTL ticker store shared by the pollers,
// stream subscribers, and aggregator.
package cache

import (
	"sync"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

// entry is one stored ticker with bookkeeping.
type entry struct {
	ticker     model.Ticker
	insertedAt time.Time
}

// Cache is a keyed store of the latest known ticker per (venue, pair).
//
// Put enforces a monotonic-timestamp invariant per key: an incoming ticker
// whose timestamp is not newer than the stored one is silently ignored, which
// guards against out-of-order delivery from slow retries. TTL is a read-time
// filter; expired entries are excluded from fresh queries but remain readable
// via GetAny until overwritten so they can seed fallback continuity.
type Cache struct {
	ttl time.Duration

	mu      sync.RWMutex
	entries map[model.Key]entry

	now func() time.Time // test hook
}

// New creates a cache with the given freshness TTL.
func New(ttl time.Duration) *Cache {
	return &Cache{
		ttl:     ttl,
		entries: make(map[model.Key]entry),
		now:     time.Now,
	}
}

// Put stores a ticker unless an entry with an equal or newer timestamp
// already exists for the same key. Reports whether the ticker was stored.
func (c *Cache) Put(t model.Ticker) bool {
	key := t.Key()

	c.mu.Lock()
	defer c.mu.Unlock()

	if existing, ok := c.entries[key]; ok {
		if !existing.ticker.Timestamp.Before(t.Timestamp) {
			return false
		}
	}

	c.entries[key] = entry{ticker: t, insertedAt: c.now()}
	return true
}

// Get returns the fresh ticker for (venue, pair), if any. Entries older than
// the TTL are treated as absent.
func (c *Cache) Get(venue, pair string) (model.Ticker, bool) {
	c.mu.RLock()
	e, ok := c.entries[model.Key{Venue: venue, Pair: pair}]
	c.mu.RUnlock()

	if !ok || c.expired(e) {
		return model.Ticker{}, false
	}
	return e.ticker, true
}

// GetAny returns the stored ticker for (venue, pair) regardless of TTL.
// Stale values are useful as fallback-synthesis baselines.
func (c *Cache) GetAny(venue, pair string) (model.Ticker, bool) {
	c.mu.RLock()
	e, ok := c.entries[model.Key{Venue: venue, Pair: pair}]
	c.mu.RUnlock()

	if !ok {
		return model.Ticker{}, false
	}
	return e.ticker, true
}

// Snapshot returns all fresh tickers.
func (c *Cache) Snapshot() []model.Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Ticker, 0, len(c.entries))
	for _, e := range c.entries {
		if c.expired(e) {
			continue
		}
		out = append(out, e.ticker)
	}
	return out
}

// FreshForPair returns all fresh tickers for a pair across venues. The
// validator uses this for cross-venue corroboration.
func (c *Cache) FreshForPair(pair string) []model.Ticker {
	c.mu.RLock()
	defer c.mu.RUnlock()

	var out []model.Ticker
	for key, e := range c.entries {
		if key.Pair != pair || c.expired(e) {
			continue
		}
		out = append(out, e.ticker)
	}
	return out
}

// Len returns the number of stored entries, fresh or not.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func (c *Cache) expired(e entry) bool {
	return c.now().Sub(e.insertedAt) > c.ttl
}
