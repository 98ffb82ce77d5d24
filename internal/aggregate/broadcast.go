package aggregate

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
)

// Callback receives one published snapshot. The slice is shared between
// subscribers and must not be mutated.
type Callback func(snapshot []model.Ticker)

// BroadcasterStats contains runtime counters.
type BroadcasterStats struct {
	Published   int64
	Subscribers int
}

// Broadcaster delivers merged snapshots to registered subscribers on a fixed
// interval, plus a burst publish whenever the aggregator drains a batch of
// push updates. Each callback is invoked on its own goroutine with panics
// contained, so no subscriber can stall or crash publishing.
type Broadcaster struct {
	agg      *Aggregator
	interval time.Duration
	metrics  *metrics.Metrics
	logger   *slog.Logger

	mu   sync.RWMutex
	subs map[string]Callback

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	published atomic.Int64
}

// NewBroadcaster creates a broadcaster over the aggregator's merged view.
func NewBroadcaster(agg *Aggregator, interval time.Duration, m *metrics.Metrics, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}

	return &Broadcaster{
		agg:      agg,
		interval: interval,
		metrics:  m,
		logger:   logger,
		subs:     make(map[string]Callback),
	}
}

// Start launches the publish loop.
func (b *Broadcaster) Start(ctx context.Context) error {
	b.ctx, b.cancel = context.WithCancel(ctx)

	b.wg.Add(1)
	go b.run()

	b.logger.Info("broadcaster started", "interval", b.interval)
	return nil
}

// Stop shuts the publish loop down, waiting up to ctx.
func (b *Broadcaster) Stop(ctx context.Context) error {
	if b.cancel != nil {
		b.cancel()
	}

	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		b.logger.Info("broadcaster stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Subscribe registers a callback and returns its unsubscribe handle. The
// handle is idempotent.
func (b *Broadcaster) Subscribe(cb Callback) func() {
	id := uuid.NewString()

	b.mu.Lock()
	b.subs[id] = cb
	n := len(b.subs)
	b.mu.Unlock()

	b.metrics.SetSubscribers(n)
	b.logger.Debug("subscriber added", "id", id, "total", n)

	var once sync.Once
	return func() {
		once.Do(func() {
			b.mu.Lock()
			delete(b.subs, id)
			n := len(b.subs)
			b.mu.Unlock()

			b.metrics.SetSubscribers(n)
			b.logger.Debug("subscriber removed", "id", id, "total", n)
		})
	}
}

// Stats returns runtime counters.
func (b *Broadcaster) Stats() BroadcasterStats {
	b.mu.RLock()
	n := len(b.subs)
	b.mu.RUnlock()

	return BroadcasterStats{
		Published:   b.published.Load(),
		Subscribers: n,
	}
}

// Publish builds and delivers one snapshot immediately, outside the timer
// cadence.
func (b *Broadcaster) Publish() {
	b.publish()
}

func (b *Broadcaster) run() {
	defer b.wg.Done()

	ticker := time.NewTicker(b.interval)
	defer ticker.Stop()

	for {
		select {
		case <-b.ctx.Done():
			return

		case <-ticker.C:
			b.publish()

		case <-b.agg.Updates():
			b.publish()
		}
	}
}

func (b *Broadcaster) publish() {
	snap := b.agg.Snapshot()

	b.mu.RLock()
	cbs := make([]Callback, 0, len(b.subs))
	for _, cb := range b.subs {
		cbs = append(cbs, cb)
	}
	b.mu.RUnlock()

	for _, cb := range cbs {
		b.wg.Add(1)
		go func(cb Callback) {
			defer b.wg.Done()
			defer func() {
				if r := recover(); r != nil {
					b.logger.Error("subscriber callback panicked", "panic", r)
				}
			}()
			cb(snap)
		}(cb)
	}

	b.published.Add(1)
	b.metrics.SnapshotPublished()
}
