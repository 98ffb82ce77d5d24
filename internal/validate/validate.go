// Package validate rejects or flags anomalous ticks before they reach the
// cache or aggregator.
package validate

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

// Reason classifies why a tick was rejected.
type Reason string

const (
	ReasonNonPositivePrice Reason = "non_positive_price"
	ReasonFutureTimestamp  Reason = "future_timestamp"
	ReasonDeviation        Reason = "price_deviation"
)

// RejectError reports a rejected tick.
type RejectError struct {
	Reason Reason
	Detail string
}

func (e *RejectError) Error() string {
	return fmt.Sprintf("tick rejected (%s): %s", e.Reason, e.Detail)
}

// Corroborator supplies fresh tickers for a pair across venues. The cache
// satisfies this.
type Corroborator interface {
	FreshForPair(pair string) []model.Ticker
}

// Config holds validation thresholds.
type Config struct {
	MaxDeviationPct float64       // Reject moves beyond this % without corroboration
	MaxFutureSkew   time.Duration // Clock-skew guard for venue timestamps
}

// Validator applies the rejection rules in order:
//
//  1. price <= 0
//  2. timestamp further in the future than the skew window
//  3. price deviates more than MaxDeviationPct from the last known good value
//     for the (venue, pair) and no second venue corroborates the new level
//
// Accepted ticks update the last-known-good table.
type Validator struct {
	cfg    Config
	corr   Corroborator
	logger *slog.Logger

	mu       sync.Mutex
	lastGood map[model.Key]lastObs

	now func() time.Time // test hook
}

// lastObs carries the observation timestamp so an accepted out-of-order tick
// (which the cache will discard) cannot regress the deviation baseline.
type lastObs struct {
	price float64
	ts    time.Time
}

// New creates a Validator. corr may be nil, in which case deviating ticks are
// never corroborated.
func New(cfg Config, corr Corroborator, logger *slog.Logger) *Validator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Validator{
		cfg:      cfg,
		corr:     corr,
		logger:   logger,
		lastGood: make(map[model.Key]lastObs),
		now:      time.Now,
	}
}

// Validate returns nil if the tick is acceptable, or a *RejectError.
func (v *Validator) Validate(t model.Ticker) error {
	if err := v.check(t); err != nil {
		v.logger.Warn("tick rejected",
			"venue", t.Venue,
			"pair", t.Pair,
			"price", t.Price,
			"reason", string(err.Reason),
			"detail", err.Detail,
		)
		return err
	}

	v.mu.Lock()
	if obs, ok := v.lastGood[t.Key()]; !ok || !t.Timestamp.Before(obs.ts) {
		v.lastGood[t.Key()] = lastObs{price: t.Price, ts: t.Timestamp}
	}
	v.mu.Unlock()

	return nil
}

func (v *Validator) check(t model.Ticker) *RejectError {
	if t.Price <= 0 {
		return &RejectError{
			Reason: ReasonNonPositivePrice,
			Detail: fmt.Sprintf("price %v", t.Price),
		}
	}

	if !t.Timestamp.IsZero() {
		if skew := t.Timestamp.Sub(v.now()); skew > v.cfg.MaxFutureSkew {
			return &RejectError{
				Reason: ReasonFutureTimestamp,
				Detail: fmt.Sprintf("timestamp %s ahead of local clock", skew),
			}
		}
	}

	v.mu.Lock()
	last, known := v.lastGood[t.Key()]
	v.mu.Unlock()

	if known {
		deviation := math.Abs(t.Price-last.price) / last.price * 100
		if deviation > v.cfg.MaxDeviationPct && !v.corroborated(t) {
			return &RejectError{
				Reason: ReasonDeviation,
				Detail: fmt.Sprintf("%.2f%% from last good %v, uncorroborated", deviation, last.price),
			}
		}
	}

	return nil
}

// corroborated reports whether a second independent venue has a fresh tick
// within half the deviation threshold of the candidate price.
func (v *Validator) corroborated(t model.Ticker) bool {
	if v.corr == nil {
		return false
	}

	tolerance := v.cfg.MaxDeviationPct / 2
	for _, other := range v.corr.FreshForPair(t.Pair) {
		if other.Venue == t.Venue || other.Source != model.SourceLive {
			continue
		}
		diff := math.Abs(t.Price-other.Price) / other.Price * 100
		if diff <= tolerance {
			return true
		}
	}
	return false
}

// LastGood returns the newest accepted price for a (venue, pair), if any.
func (v *Validator) LastGood(venue, pair string) (float64, bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	obs, ok := v.lastGood[model.Key{Venue: venue, Pair: pair}]
	return obs.price, ok
}
