package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles the engine's Prometheus collectors. All methods are safe on
// a nil receiver so components can run unmetered in tests.
type Metrics struct {
	registry *prometheus.Registry

	ticksReceived  *prometheus.CounterVec
	ticksRejected  *prometheus.CounterVec
	ticksSynthetic *prometheus.CounterVec
	reconnects     *prometheus.CounterVec
	pollErrors     *prometheus.CounterVec
	venueUp        *prometheus.GaugeVec
	snapshots      prometheus.Counter
	subscribers    prometheus.Gauge
}

// New creates and registers the engine collectors on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		ticksReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefeed_ticks_received_total",
			Help: "Live ticks accepted into the cache, by venue and origin.",
		}, []string{"venue", "origin"}),
		ticksRejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefeed_ticks_rejected_total",
			Help: "Ticks dropped by validation, by venue and reason.",
		}, []string{"venue", "reason"}),
		ticksSynthetic: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefeed_ticks_synthesized_total",
			Help: "Fallback tickers synthesized into snapshots, by venue.",
		}, []string{"venue"}),
		reconnects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefeed_ws_reconnects_total",
			Help: "WebSocket reconnect attempts, by venue.",
		}, []string{"venue"}),
		pollErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "pricefeed_poll_errors_total",
			Help: "REST poll cycles that exhausted retries, by venue.",
		}, []string{"venue"}),
		venueUp: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pricefeed_venue_up",
			Help: "1 if the venue is currently considered healthy.",
		}, []string{"venue"}),
		snapshots: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "pricefeed_snapshots_published_total",
			Help: "Merged snapshots delivered to subscribers.",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "pricefeed_subscribers",
			Help: "Currently registered snapshot subscribers.",
		}),
	}

	m.registry.MustRegister(
		m.ticksReceived,
		m.ticksRejected,
		m.ticksSynthetic,
		m.reconnects,
		m.pollErrors,
		m.venueUp,
		m.snapshots,
		m.subscribers,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) TickReceived(venue, origin string) {
	if m == nil {
		return
	}
	m.ticksReceived.WithLabelValues(venue, origin).Inc()
}

func (m *Metrics) TickRejected(venue, reason string) {
	if m == nil {
		return
	}
	m.ticksRejected.WithLabelValues(venue, reason).Inc()
}

func (m *Metrics) TickSynthesized(venue string) {
	if m == nil {
		return
	}
	m.ticksSynthetic.WithLabelValues(venue).Inc()
}

func (m *Metrics) Reconnect(venue string) {
	if m == nil {
		return
	}
	m.reconnects.WithLabelValues(venue).Inc()
}

func (m *Metrics) PollError(venue string) {
	if m == nil {
		return
	}
	m.pollErrors.WithLabelValues(venue).Inc()
}

func (m *Metrics) SetVenueUp(venue string, up bool) {
	if m == nil {
		return
	}
	v := 0.0
	if up {
		v = 1.0
	}
	m.venueUp.WithLabelValues(venue).Set(v)
}

func (m *Metrics) SnapshotPublished() {
	if m == nil {
		return
	}
	m.snapshots.Inc()
}

func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}
