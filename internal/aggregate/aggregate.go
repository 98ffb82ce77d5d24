package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quotewire/pricefeed/internal/cache"
	"github.com/quotewire/pricefeed/internal/fallback"
	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
)

// AggregatorStats contains runtime counters.
type AggregatorStats struct {
	TicksReceived  int64
	TicksApplied   int64
	TicksDiscarded int64
	Snapshots      int64
}

// pushEntry is one push-origin ticker with its arrival time; freshness is
// judged against arrival, not the venue timestamp, mirroring the cache.
type pushEntry struct {
	ticker     model.Ticker
	receivedAt time.Time
}

// Aggregator owns the canonical merged view. All push updates flow through a
// single goroutine, so merging needs no cross-writer coordination; the cache
// is the only shared structure and carries its own locking.
type Aggregator struct {
	venues []string
	pairs  []string
	ttl    time.Duration

	in      <-chan model.Ticker
	store   *cache.Cache
	synth   *fallback.Synthesizer
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu   sync.RWMutex
	push map[model.Key]pushEntry
	last []model.Ticker

	// Coalesced signal to the broadcaster after a drained push burst.
	burstCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	received  atomic.Int64
	applied   atomic.Int64
	discarded atomic.Int64
	snapshots atomic.Int64

	now func() time.Time // test hook
}

// New creates an Aggregator over the configured venue and pair universe.
// in delivers validated push tickers from the stream subscribers; ttl is the
// freshness window shared with the cache.
func New(venues, pairs []string, in <-chan model.Ticker, store *cache.Cache, synth *fallback.Synthesizer, ttl time.Duration, m *metrics.Metrics, logger *slog.Logger) *Aggregator {
	if logger == nil {
		logger = slog.Default()
	}

	return &Aggregator{
		venues:  venues,
		pairs:   pairs,
		ttl:     ttl,
		in:      in,
		store:   store,
		synth:   synth,
		metrics: m,
		logger:  logger,
		push:    make(map[model.Key]pushEntry),
		burstCh: make(chan struct{}, 1),
		now:     time.Now,
	}
}

// Start launches the merge loop.
func (a *Aggregator) Start(ctx context.Context) error {
	a.ctx, a.cancel = context.WithCancel(ctx)

	a.wg.Add(1)
	go a.run()

	a.logger.Info("aggregator started",
		"venues", len(a.venues),
		"pairs", len(a.pairs),
	)
	return nil
}

// Stop shuts the merge loop down, waiting up to ctx.
func (a *Aggregator) Stop(ctx context.Context) error {
	if a.cancel != nil {
		a.cancel()
	}

	done := make(chan struct{})
	go func() {
		a.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		a.logger.Info("aggregator stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Updates signals after each drained burst of push updates. The broadcaster
// listens on it to publish between fixed ticks. Signals coalesce.
func (a *Aggregator) Updates() <-chan struct{} {
	return a.burstCh
}

// Snapshot rebuilds and returns the current merged view. For every
// (venue, pair) the freshest live ticker wins; push beats poll on equal
// timestamps. Slots with no fresh live data are filled from the synthesizer,
// anchored to the stale cache level when one exists.
func (a *Aggregator) Snapshot() []model.Ticker {
	now := a.now()
	bucket := a.synth.Bucket(now)

	out := make([]model.Ticker, 0, len(a.venues)*len(a.pairs))

	a.mu.Lock()
	for _, v := range a.venues {
		for _, p := range a.pairs {
			out = append(out, a.resolve(v, p, now, bucket))
		}
	}
	a.last = out
	a.mu.Unlock()

	a.snapshots.Add(1)
	return out
}

// LastSnapshot returns the most recently built snapshot without rebuilding.
// Returns nil before the first build.
func (a *Aggregator) LastSnapshot() []model.Ticker {
	a.mu.RLock()
	defer a.mu.RUnlock()

	if a.last == nil {
		return nil
	}
	out := make([]model.Ticker, len(a.last))
	copy(out, a.last)
	return out
}

// Stats returns runtime counters.
func (a *Aggregator) Stats() AggregatorStats {
	return AggregatorStats{
		TicksReceived:  a.received.Load(),
		TicksApplied:   a.applied.Load(),
		TicksDiscarded: a.discarded.Load(),
		Snapshots:      a.snapshots.Load(),
	}
}

// resolve picks the winning ticker for one (venue, pair) slot. Caller holds
// a.mu.
func (a *Aggregator) resolve(venue, pair string, now time.Time, bucket int64) model.Ticker {
	key := model.Key{Venue: venue, Pair: pair}

	live, ok := a.store.Get(venue, pair)

	if pe, okPush := a.push[key]; okPush {
		if now.Sub(pe.receivedAt) > a.ttl {
			delete(a.push, key)
		} else if !ok ||
			pe.ticker.Timestamp.After(live.Timestamp) ||
			(pe.ticker.Timestamp.Equal(live.Timestamp) && live.Origin == model.OriginPoll) {
			live, ok = pe.ticker, true
		}
	}

	if ok {
		return live
	}

	a.metrics.TickSynthesized(venue)
	if stale, okAny := a.store.GetAny(venue, pair); okAny && stale.Price > 0 {
		return a.synth.SynthesizeFrom(venue, pair, stale.Price, bucket)
	}
	return a.synth.Synthesize(venue, pair, bucket)
}

// run drains push updates one burst at a time, then signals the broadcaster.
func (a *Aggregator) run() {
	defer a.wg.Done()

	for {
		select {
		case <-a.ctx.Done():
			return

		case t := <-a.in:
			n := a.apply(t)

		drain:
			for {
				select {
				case t := <-a.in:
					n += a.apply(t)
				default:
					break drain
				}
			}

			if n > 0 {
				a.signalBurst()
			}
		}
	}
}

// apply records one push ticker. Returns 1 if the merged view advanced,
// 0 if the tick was stale for its key.
func (a *Aggregator) apply(t model.Ticker) int {
	a.received.Add(1)

	// Shared cache first, so pull-style lookups and cross-venue
	// corroboration see push data too.
	a.store.Put(t)

	key := t.Key()

	a.mu.Lock()
	defer a.mu.Unlock()

	if existing, ok := a.push[key]; ok && existing.ticker.Timestamp.After(t.Timestamp) {
		a.discarded.Add(1)
		return 0
	}
	a.push[key] = pushEntry{ticker: t, receivedAt: a.now()}
	a.applied.Add(1)
	return 1
}

func (a *Aggregator) signalBurst() {
	select {
	case a.burstCh <- struct{}{}:
	default:
	}
}
