package poller

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quotewire/pricefeed/internal/cache"
	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/validate"
	"github.com/quotewire/pricefeed/internal/venue"
)

// StatusSink receives per-venue poll outcomes. The health monitor implements
// this; health data is observability only and never gates the poll loop.
type StatusSink interface {
	ReportPollSuccess(venue string, at time.Time)
	ReportPollFailure(venue string, err error)
}

// Config holds poller configuration.
type Config struct {
	Interval time.Duration // Poll cadence (default: 5s)
	Timeout  time.Duration // Per-request timeout (default: 3s)
}

// DefaultConfig returns sensible defaults.
func DefaultConfig() Config {
	return Config{
		Interval: 5 * time.Second,
		Timeout:  3 * time.Second,
	}
}

// Poller periodically fetches one venue's full ticker snapshot via REST and
// writes validated tickers into the cache.
type Poller struct {
	venueName string
	url       string
	cfg       Config
	client    *Client
	adapter   venue.Adapter
	validator *validate.Validator
	store     *cache.Cache
	sink      StatusSink
	metrics   *metrics.Metrics
	logger    *slog.Logger

	fetched atomic.Int64
	failed  atomic.Int64

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New creates a poller for one venue.
func New(venueName, url string, cfg Config, client *Client, adapter venue.Adapter, validator *validate.Validator, store *cache.Cache, sink StatusSink, m *metrics.Metrics, logger *slog.Logger) *Poller {
	if logger == nil {
		logger = slog.Default()
	}
	return &Poller{
		venueName: venueName,
		url:       url,
		cfg:       cfg,
		client:    client,
		adapter:   adapter,
		validator: validator,
		store:     store,
		sink:      sink,
		metrics:   m,
		logger:    logger.With("venue", venueName),
	}
}

// Start begins the polling loop.
func (p *Poller) Start(ctx context.Context) error {
	p.ctx, p.cancel = context.WithCancel(ctx)

	p.wg.Add(1)
	go p.run()

	p.logger.Info("rest poller started",
		"interval", p.cfg.Interval,
		"url", p.url,
	)
	return nil
}

// Stop gracefully shuts down the poller. In-flight requests are cancelled
// through the poller context, so shutdown is bounded by the request timeout.
func (p *Poller) Stop(ctx context.Context) error {
	if p.cancel != nil {
		p.cancel()
	}

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.logger.Info("rest poller stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stats returns cumulative successful and failed poll cycles.
func (p *Poller) Stats() (fetched, failed int64) {
	return p.fetched.Load(), p.failed.Load()
}

// run is the main polling loop.
func (p *Poller) run() {
	defer p.wg.Done()

	ticker := time.NewTicker(p.cfg.Interval)
	defer ticker.Stop()

	// Poll immediately on start.
	p.poll()

	for {
		select {
		case <-p.ctx.Done():
			return
		case <-ticker.C:
			p.poll()
		}
	}
}

// poll runs one fetch/parse/validate/store cycle. Failures degrade this
// venue only; existing cache entries age toward TTL expiry.
func (p *Poller) poll() {
	// Per-attempt timeouts live in the HTTP client; the cycle as a whole
	// gets the full interval so retries have room.
	ctx, cancel := context.WithTimeout(p.ctx, p.cfg.Interval)
	defer cancel()

	body, err := p.client.Fetch(ctx, p.url)
	if err != nil {
		p.pollFailed(err)
		return
	}

	receivedAt := time.Now()

	ticks, err := p.adapter.ParseRestSnapshot(body)
	if err != nil {
		p.pollFailed(err)
		return
	}

	accepted := 0
	for _, t := range ticks {
		if t.Timestamp.IsZero() {
			t.Timestamp = receivedAt
		}

		if err := p.validator.Validate(t); err != nil {
			var rej *validate.RejectError
			if errors.As(err, &rej) {
				p.metrics.TickRejected(p.venueName, string(rej.Reason))
			}
			continue
		}

		if p.store.Put(t) {
			p.metrics.TickReceived(p.venueName, "poll")
			accepted++
		}
	}

	p.fetched.Add(1)
	if p.sink != nil {
		p.sink.ReportPollSuccess(p.venueName, receivedAt)
	}

	p.logger.Debug("poll cycle complete",
		"records", len(ticks),
		"accepted", accepted,
	)
}

func (p *Poller) pollFailed(err error) {
	p.failed.Add(1)
	p.metrics.PollError(p.venueName)
	if p.sink != nil {
		p.sink.ReportPollFailure(p.venueName, err)
	}
	p.logger.Warn("poll cycle failed", "error", err)
}
