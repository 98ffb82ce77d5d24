// Package health tracks per-venue connectivity and staleness. The monitor is
// observability plus one corrective action: when a push connection reports
// Connected but has delivered nothing within the heartbeat window, it
// commands a reconnect. Aggregation correctness never depends on it.
package health

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
)

// StreamStatus is the view of a push connection the monitor watches.
type StreamStatus interface {
	Venue() string
	State() model.ConnectionState
	LastUpdate() time.Time
	ForceReconnect()
}

// VenueStatus is one venue's health record.
type VenueStatus struct {
	Venue            string                `json:"venue"`
	Healthy          bool                  `json:"healthy"`
	State            model.ConnectionState `json:"-"`
	StateName        string                `json:"state"`
	LastPollSuccess  time.Time             `json:"last_poll_success,omitzero"`
	LastPushUpdate   time.Time             `json:"last_push_update,omitzero"`
	ConsecutiveFails int                   `json:"consecutive_poll_failures"`
	LastError        string                `json:"last_error,omitempty"`
}

// Config holds monitor settings.
type Config struct {
	CheckInterval    time.Duration // Cadence of the staleness sweep
	HeartbeatTimeout time.Duration // Connected-but-silent window that forces reconnect
	PollGrace        time.Duration // How long after the last poll success a venue stays healthy
}

// venueRecord is the mutable per-venue bookkeeping.
type venueRecord struct {
	lastPollSuccess  time.Time
	consecutiveFails int
	lastError        string
}

// Monitor tracks venue health. It receives poll outcomes through the
// StatusSink methods and inspects stream subscribers on a periodic sweep.
type Monitor struct {
	cfg     Config
	metrics *metrics.Metrics
	logger  *slog.Logger

	mu      sync.RWMutex
	venues  map[string]*venueRecord
	streams map[string]StreamStatus

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	now func() time.Time // test hook
}

// New creates a monitor for the named venues.
func New(cfg Config, venueNames []string, m *metrics.Metrics, logger *slog.Logger) *Monitor {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.CheckInterval <= 0 {
		cfg.CheckInterval = 5 * time.Second
	}
	if cfg.PollGrace <= 0 {
		cfg.PollGrace = 3 * cfg.CheckInterval
	}

	venues := make(map[string]*venueRecord, len(venueNames))
	for _, name := range venueNames {
		venues[name] = &venueRecord{}
	}

	return &Monitor{
		cfg:     cfg,
		metrics: m,
		logger:  logger,
		venues:  venues,
		streams: make(map[string]StreamStatus),
		now:     time.Now,
	}
}

// Watch registers a stream subscriber for staleness sweeps. Call before
// Start.
func (m *Monitor) Watch(s StreamStatus) {
	m.mu.Lock()
	m.streams[s.Venue()] = s
	m.mu.Unlock()
}

// Start launches the periodic sweep.
func (m *Monitor) Start(ctx context.Context) error {
	m.ctx, m.cancel = context.WithCancel(ctx)

	m.wg.Add(1)
	go m.run()

	m.logger.Info("health monitor started",
		"check_interval", m.cfg.CheckInterval,
		"heartbeat_timeout", m.cfg.HeartbeatTimeout,
	)
	return nil
}

// Stop shuts the sweep down, waiting up to ctx.
func (m *Monitor) Stop(ctx context.Context) error {
	if m.cancel != nil {
		m.cancel()
	}

	done := make(chan struct{})
	go func() {
		m.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		m.logger.Info("health monitor stopped")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// ReportPollSuccess records a completed poll cycle. Implements the pollers'
// status sink.
func (m *Monitor) ReportPollSuccess(venue string, at time.Time) {
	m.mu.Lock()
	rec := m.record(venue)
	rec.lastPollSuccess = at
	rec.consecutiveFails = 0
	rec.lastError = ""
	m.mu.Unlock()
}

// ReportPollFailure records a poll cycle that exhausted its retries.
func (m *Monitor) ReportPollFailure(venue string, err error) {
	m.mu.Lock()
	rec := m.record(venue)
	rec.consecutiveFails++
	if err != nil {
		rec.lastError = err.Error()
	}
	fails := rec.consecutiveFails
	m.mu.Unlock()

	m.logger.Warn("venue poll degraded",
		"venue", venue,
		"consecutive_failures", fails,
		"error", err,
	)
}

// IsVenueHealthy reports whether the venue has a working data path: either a
// recent poll success or a connected push feed. For logging and endpoints
// only.
func (m *Monitor) IsVenueHealthy(venue string) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.healthyLocked(venue)
}

// Status returns the per-venue health records, sorted by nothing in
// particular (map order).
func (m *Monitor) Status() []VenueStatus {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]VenueStatus, 0, len(m.venues))
	for name, rec := range m.venues {
		st := VenueStatus{
			Venue:            name,
			Healthy:          m.healthyLocked(name),
			State:            model.StateDisconnected,
			LastPollSuccess:  rec.lastPollSuccess,
			ConsecutiveFails: rec.consecutiveFails,
			LastError:        rec.lastError,
		}
		if s, ok := m.streams[name]; ok {
			st.State = s.State()
			st.LastPushUpdate = s.LastUpdate()
		}
		st.StateName = st.State.String()
		out = append(out, st)
	}
	return out
}

// record returns the venue's record, creating one for venues registered
// after construction. Caller holds m.mu.
func (m *Monitor) record(venue string) *venueRecord {
	rec, ok := m.venues[venue]
	if !ok {
		rec = &venueRecord{}
		m.venues[venue] = rec
	}
	return rec
}

func (m *Monitor) healthyLocked(venue string) bool {
	rec, ok := m.venues[venue]
	if !ok {
		return false
	}

	now := m.now()
	if !rec.lastPollSuccess.IsZero() && now.Sub(rec.lastPollSuccess) <= m.cfg.PollGrace {
		return true
	}

	if s, ok := m.streams[venue]; ok && s.State() == model.StateConnected {
		last := s.LastUpdate()
		if last.IsZero() || now.Sub(last) <= m.cfg.HeartbeatTimeout {
			return true
		}
	}
	return false
}

func (m *Monitor) run() {
	defer m.wg.Done()

	ticker := time.NewTicker(m.cfg.CheckInterval)
	defer ticker.Stop()

	for {
		select {
		case <-m.ctx.Done():
			return
		case <-ticker.C:
			m.sweep()
		}
	}
}

// sweep inspects every venue, publishes the up/down gauge, and forces a
// reconnect on any push connection that claims Connected but has been silent
// past the heartbeat window.
func (m *Monitor) sweep() {
	m.mu.RLock()
	var stale []StreamStatus
	now := m.now()

	for name := range m.venues {
		m.metrics.SetVenueUp(name, m.healthyLocked(name))

		s, ok := m.streams[name]
		if !ok || s.State() != model.StateConnected {
			continue
		}
		last := s.LastUpdate()
		if !last.IsZero() && now.Sub(last) > m.cfg.HeartbeatTimeout {
			stale = append(stale, s)
		}
	}
	m.mu.RUnlock()

	for _, s := range stale {
		m.logger.Warn("push connection stale, forcing reconnect",
			"venue", s.Venue(),
			"last_update", s.LastUpdate(),
		)
		s.ForceReconnect()
	}
}
