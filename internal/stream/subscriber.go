package stream

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
	"github.com/quotewire/pricefeed/internal/validate"
	"github.com/quotewire/pricefeed/internal/venue"
)

// Subscriber maintains one push connection to a venue and feeds validated
// tickers to the aggregator.
type Subscriber struct {
	venueName string
	url       string
	adapter   venue.Adapter
	pairs     []string
	cfg       Config
	validator *validate.Validator
	out       chan<- model.Ticker
	metrics   *metrics.Metrics
	logger    *slog.Logger

	backoff *Backoff

	state      atomic.Int32
	lastUpdate atomic.Int64 // UnixNano of last accepted tick, 0 = never

	forceCh chan struct{}

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// NewSubscriber creates a subscriber for one venue push feed. out receives
// every validated ticker; sends never block (ticks are dropped with a warning
// if the aggregator falls behind).
func NewSubscriber(venueName, url string, adapter venue.Adapter, pairs []string, cfg Config, validator *validate.Validator, out chan<- model.Ticker, m *metrics.Metrics, logger *slog.Logger) *Subscriber {
	if logger == nil {
		logger = slog.Default()
	}

	var backoff *Backoff
	if cfg.BackoffSeed != 0 {
		backoff = NewSeededBackoff(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay, cfg.BackoffSeed)
	} else {
		backoff = NewBackoff(cfg.ReconnectBaseDelay, cfg.ReconnectMaxDelay)
	}

	s := &Subscriber{
		venueName: venueName,
		url:       url,
		adapter:   adapter,
		pairs:     pairs,
		cfg:       cfg,
		validator: validator,
		out:       out,
		metrics:   m,
		logger:    logger.With("venue", venueName),
		backoff:   backoff,
		forceCh:   make(chan struct{}, 1),
	}
	s.state.Store(int32(model.StateDisconnected))
	return s
}

// Start launches the connect/consume/reconnect loop.
func (s *Subscriber) Start(ctx context.Context) error {
	s.ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go s.run()

	s.logger.Info("stream subscriber started", "url", s.url)
	return nil
}

// Stop tears the subscriber down, waiting up to ctx for the loop to exit.
func (s *Subscriber) Stop(ctx context.Context) error {
	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("stream subscriber stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// State returns the current connection state.
func (s *Subscriber) State() model.ConnectionState {
	return model.ConnectionState(s.state.Load())
}

// LastUpdate returns the time of the last accepted tick, zero if none yet.
func (s *Subscriber) LastUpdate() time.Time {
	ns := s.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

// Venue returns the venue name this subscriber serves.
func (s *Subscriber) Venue() string {
	return s.venueName
}

// ForceReconnect asks the run loop to drop and redial the connection. Used by
// the health monitor when a connection is Connected but stale.
func (s *Subscriber) ForceReconnect() {
	select {
	case s.forceCh <- struct{}{}:
	default:
	}
}

// setState records the connection state. The venue_up gauge is owned by the
// health monitor, which folds poll recency in as well.
func (s *Subscriber) setState(st model.ConnectionState) {
	s.state.Store(int32(st))
}

// run owns the full connection lifecycle. It never gives up: failed attempts
// schedule a capped, jittered retry and the loop continues until Stop.
func (s *Subscriber) run() {
	defer s.wg.Done()
	defer s.setState(model.StateDisconnected)

	attempt := 0

	for {
		if s.ctx.Err() != nil {
			return
		}

		if attempt > 0 {
			s.setState(model.StateReconnecting)
			delay := s.backoff.Delay(attempt)
			s.metrics.Reconnect(s.venueName)
			s.logger.Info("scheduling reconnect", "attempt", attempt, "delay", delay)

			select {
			case <-s.ctx.Done():
				return
			case <-time.After(delay):
			}
		}

		s.setState(model.StateConnecting)

		c := newClient(clientConfig{
			URL:              s.url,
			HeartbeatTimeout: s.cfg.HeartbeatTimeout,
			WriteTimeout:     s.cfg.WriteTimeout,
			BufferSize:       s.cfg.BufferSize,
		}, s.logger)

		if err := c.connect(s.ctx); err != nil {
			s.logger.Warn("connect failed", "error", err)
			s.setState(model.StateDisconnected)
			attempt++
			continue
		}

		s.setState(model.StateConnected)
		attempt = 0

		if err := s.subscribe(c); err != nil {
			s.logger.Warn("subscribe failed", "error", err)
			c.close()
			s.setState(model.StateDisconnected)
			attempt++
			continue
		}

		err := s.consume(c)
		c.close()
		s.setState(model.StateDisconnected)

		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("connection lost", "error", err)
		attempt++
	}
}

// subscribe sends the venue handshake message, if the venue needs one.
func (s *Subscriber) subscribe(c *client) error {
	payload, err := s.adapter.SubscribePayload(s.pairs)
	if err != nil {
		return err
	}
	if payload == nil {
		return nil
	}
	return c.send(payload)
}

// consume drains frames until the connection errors, is forced down, or the
// subscriber stops. The returned error describes why the connection ended.
func (s *Subscriber) consume(c *client) error {
	for {
		select {
		case <-s.ctx.Done():
			return s.ctx.Err()

		case <-s.forceCh:
			s.logger.Info("reconnect forced")
			return ErrForcedReconnect

		case err := <-c.errs:
			return err

		case f, ok := <-c.frames:
			if !ok {
				return ErrNotConnected
			}
			s.handleFrame(f)
		}
	}
}

// handleFrame parses, validates, and enqueues one inbound frame.
func (s *Subscriber) handleFrame(f frame) {
	ticks, err := s.adapter.ParsePushFrame(f.data)
	if err != nil {
		s.logger.Debug("unparseable frame skipped", "error", err)
		return
	}

	for _, t := range ticks {
		if t.Timestamp.IsZero() {
			t.Timestamp = f.receivedAt
		}

		if err := s.validator.Validate(t); err != nil {
			var rej *validate.RejectError
			if errors.As(err, &rej) {
				s.metrics.TickRejected(s.venueName, string(rej.Reason))
			}
			continue
		}

		s.metrics.TickReceived(s.venueName, "push")
		s.lastUpdate.Store(t.Timestamp.UnixNano())

		select {
		case s.out <- t:
		default:
			s.logger.Warn("aggregator queue full, dropping tick", "pair", t.Pair)
		}
	}
}
