package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/quotewire/pricefeed/internal/aggregate"
	"github.com/quotewire/pricefeed/internal/cache"
	"github.com/quotewire/pricefeed/internal/config"
	"github.com/quotewire/pricefeed/internal/fallback"
	"github.com/quotewire/pricefeed/internal/health"
	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
	"github.com/quotewire/pricefeed/internal/poller"
	"github.com/quotewire/pricefeed/internal/stream"
	"github.com/quotewire/pricefeed/internal/validate"
	"github.com/quotewire/pricefeed/internal/venue"
)

// Errors
var (
	ErrAlreadyStarted = errors.New("engine already started")
	ErrNotStarted     = errors.New("engine not started")
)

// Stats aggregates component counters for logging and debug endpoints.
type Stats struct {
	Venues       int                        `json:"venues"`
	Pairs        int                        `json:"pairs"`
	CacheEntries int                        `json:"cache_entries"`
	PollsFetched int64                      `json:"polls_fetched"`
	PollsFailed  int64                      `json:"polls_failed"`
	Aggregator   aggregate.AggregatorStats  `json:"aggregator"`
	Broadcaster  aggregate.BroadcasterStats `json:"broadcaster"`
}

// component is the shared lifecycle contract of the engine's parts.
type component interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
}

// Engine owns every feed component and exposes the public query/subscribe
// surface.
type Engine struct {
	cfg     config.EngineConfig
	venues  []string // canonical adapter names
	metrics *metrics.Metrics
	logger  *slog.Logger

	store   *cache.Cache
	synth   *fallback.Synthesizer
	agg     *aggregate.Aggregator
	bcast   *aggregate.Broadcaster
	monitor *health.Monitor

	pollers []*poller.Poller
	subs    []*stream.Subscriber

	pushCh chan model.Ticker

	mu      sync.Mutex
	started bool
}

// New builds an engine from the given configuration. Every venue and pair is
// checked here: an unknown venue adapter, an invalid pair, or a venue with no
// endpoint fails construction, never a running goroutine.
func New(cfg config.EngineConfig, m *metrics.Metrics, logger *slog.Logger) (*Engine, error) {
	if logger == nil {
		logger = slog.Default()
	}

	if len(cfg.Pairs) == 0 {
		return nil, errors.New("no pairs configured")
	}
	for _, p := range cfg.Pairs {
		if _, _, err := model.ParsePair(p); err != nil {
			return nil, fmt.Errorf("invalid pair: %w", err)
		}
	}

	var enabled []config.VenueConfig
	for _, vc := range cfg.Venues {
		if vc.IsEnabled() {
			enabled = append(enabled, vc)
		}
	}
	if len(enabled) == 0 {
		return nil, errors.New("no venues enabled")
	}

	// Wiring is keyed by the adapter's canonical name, not the config
	// spelling: every parsed ticker carries adapter.Name(), so any other key
	// would split cache writes from reads.
	adapters := make(map[string]venue.Adapter, len(enabled))
	venueNames := make([]string, 0, len(enabled))
	for i, vc := range enabled {
		if vc.RestURL == "" && vc.WSURL == "" {
			return nil, fmt.Errorf("venue %q has no rest_url or ws_url", vc.Name)
		}
		adapter, err := venue.New(vc.Name)
		if err != nil {
			return nil, err
		}
		enabled[i].Name = adapter.Name()
		adapters[adapter.Name()] = adapter
		venueNames = append(venueNames, adapter.Name())
	}

	store := cache.New(cfg.Cache.TTL)
	validator := validate.New(validate.Config{
		MaxDeviationPct: cfg.Validation.MaxDeviationPct,
		MaxFutureSkew:   cfg.Validation.MaxFutureSkew,
	}, store, logger)
	synth := fallback.New(fallback.DefaultBaselines(), cfg.Cache.TTL)

	pushCh := make(chan model.Ticker, cfg.Broadcaster.BufferSize)

	agg := aggregate.New(venueNames, cfg.Pairs, pushCh, store, synth, cfg.Cache.TTL, m, logger)
	bcast := aggregate.NewBroadcaster(agg, cfg.Broadcaster.Interval, m, logger)

	monitor := health.New(health.Config{
		CheckInterval:    cfg.Poller.Interval,
		HeartbeatTimeout: cfg.Stream.HeartbeatTimeout,
		PollGrace:        2 * cfg.Poller.Interval,
	}, venueNames, m, logger)

	e := &Engine{
		cfg:     cfg,
		venues:  venueNames,
		metrics: m,
		logger:  logger,
		store:   store,
		synth:   synth,
		agg:     agg,
		bcast:   bcast,
		monitor: monitor,
		pushCh:  pushCh,
	}

	for _, vc := range enabled {
		adapter := adapters[vc.Name]

		if vc.RestURL != "" {
			client := poller.NewClient(vc.Name,
				poller.WithTimeout(cfg.Poller.Timeout),
				poller.WithRetries(cfg.Poller.MaxRetries, cfg.Poller.RetryBackoff),
				poller.WithRateLimit(cfg.Poller.RateLimit),
				poller.WithLogger(logger),
			)
			p := poller.New(vc.Name, vc.RestURL, poller.Config{
				Interval: cfg.Poller.Interval,
				Timeout:  cfg.Poller.Timeout,
			}, client, adapter, validator, store, monitor, m, logger)
			e.pollers = append(e.pollers, p)
		}

		if vc.WSURL != "" {
			s := stream.NewSubscriber(vc.Name, vc.WSURL, adapter, cfg.Pairs, stream.Config{
				ReconnectBaseDelay: cfg.Stream.ReconnectBaseDelay,
				ReconnectMaxDelay:  cfg.Stream.ReconnectMaxDelay,
				HeartbeatTimeout:   cfg.Stream.HeartbeatTimeout,
				WriteTimeout:       cfg.Stream.WriteTimeout,
				BufferSize:         cfg.Stream.BufferSize,
			}, validator, pushCh, m, logger)
			e.subs = append(e.subs, s)
			monitor.Watch(s)
		}
	}

	return e, nil
}

// Start launches every component. Components start leaf-last: the aggregator
// and broadcaster come up before any producer feeds them.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return ErrAlreadyStarted
	}

	for _, c := range e.components() {
		if err := c.Start(ctx); err != nil {
			return err
		}
	}

	e.started = true
	e.logger.Info("engine started",
		"venues", len(e.cfg.Venues),
		"pairs", len(e.cfg.Pairs),
		"pollers", len(e.pollers),
		"streams", len(e.subs),
	)
	return nil
}

// Stop shuts every component down in reverse start order, producers first.
// Shutdown is bounded by ctx; the first error is returned but all components
// still get their Stop call.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if !e.started {
		return ErrNotStarted
	}

	comps := e.components()

	var firstErr error
	for i := len(comps) - 1; i >= 0; i-- {
		if err := comps[i].Stop(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}

	e.started = false
	e.logger.Info("engine stopped")
	return firstErr
}

// Subscribe registers a snapshot callback and returns its unsubscribe
// handle.
func (e *Engine) Subscribe(cb aggregate.Callback) func() {
	return e.bcast.Subscribe(cb)
}

// GetPairPrice returns the current price for (venue, pair). A fresh live
// value wins; otherwise a fallback value is synthesized, anchored to the
// last known level when one exists. Reports false only for a venue or pair
// outside the configured universe.
func (e *Engine) GetPairPrice(venueName, pair string) (float64, bool) {
	t, ok := e.GetPairTicker(venueName, pair)
	if !ok {
		return 0, false
	}
	return t.Price, true
}

// GetPairTicker is GetPairPrice with full provenance: the returned ticker
// carries its Source tag so consumers can discount fallback values.
func (e *Engine) GetPairTicker(venueName, pair string) (model.Ticker, bool) {
	name, ok := e.tracks(venueName, pair)
	if !ok {
		return model.Ticker{}, false
	}

	if t, ok := e.store.Get(name, pair); ok {
		return t, true
	}

	e.metrics.TickSynthesized(name)
	bucket := e.synth.Bucket(time.Now())
	if stale, ok := e.store.GetAny(name, pair); ok && stale.Price > 0 {
		return e.synth.SynthesizeFrom(name, pair, stale.Price, bucket), true
	}
	return e.synth.Synthesize(name, pair, bucket), true
}

// GetLastSnapshot returns the most recent merged view without waiting for a
// publish cycle. Before the first publish it builds one on the spot.
func (e *Engine) GetLastSnapshot() []model.Ticker {
	if snap := e.agg.LastSnapshot(); snap != nil {
		return snap
	}
	return e.agg.Snapshot()
}

// Health returns the per-venue health records.
func (e *Engine) Health() []health.VenueStatus {
	return e.monitor.Status()
}

// IsVenueHealthy reports whether the venue currently has a working data
// path.
func (e *Engine) IsVenueHealthy(venueName string) bool {
	return e.monitor.IsVenueHealthy(strings.ToLower(venueName))
}

// Stats returns aggregated component counters.
func (e *Engine) Stats() Stats {
	s := Stats{
		Venues:       len(e.venues),
		Pairs:        len(e.cfg.Pairs),
		CacheEntries: e.store.Len(),
		Aggregator:   e.agg.Stats(),
		Broadcaster:  e.bcast.Stats(),
	}
	for _, p := range e.pollers {
		fetched, failed := p.Stats()
		s.PollsFetched += fetched
		s.PollsFailed += failed
	}
	return s
}

// components returns the engine parts in start order: consumers before
// producers.
func (e *Engine) components() []component {
	comps := []component{e.agg, e.bcast, e.monitor}
	for _, p := range e.pollers {
		comps = append(comps, p)
	}
	for _, s := range e.subs {
		comps = append(comps, s)
	}
	return comps
}

// tracks resolves a lookup to its canonical venue name, accepting any casing
// the config accepted.
func (e *Engine) tracks(venueName, pair string) (string, bool) {
	name := strings.ToLower(venueName)

	found := false
	for _, v := range e.venues {
		if v == name {
			found = true
			break
		}
	}
	if !found {
		return "", false
	}
	for _, p := range e.cfg.Pairs {
		if p == pair {
			return name, true
		}
	}
	return "", false
}
