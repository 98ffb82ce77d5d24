package health

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/quotewire/pricefeed/internal/metrics"
	"github.com/quotewire/pricefeed/internal/model"
)

// fakeStream is a controllable StreamStatus.
type fakeStream struct {
	venue      string
	state      atomic.Int32
	lastUpdate atomic.Int64
	forced     atomic.Int32
}

func (f *fakeStream) Venue() string { return f.venue }

func (f *fakeStream) State() model.ConnectionState {
	return model.ConnectionState(f.state.Load())
}

func (f *fakeStream) LastUpdate() time.Time {
	ns := f.lastUpdate.Load()
	if ns == 0 {
		return time.Time{}
	}
	return time.Unix(0, ns)
}

func (f *fakeStream) ForceReconnect() { f.forced.Add(1) }

func newTestMonitor() *Monitor {
	return New(Config{
		CheckInterval:    time.Second,
		HeartbeatTimeout: 60 * time.Second,
		PollGrace:        10 * time.Second,
	}, []string{"binance", "okx"}, nil, nil)
}

func TestPollSuccessMarksVenueHealthy(t *testing.T) {
	m := newTestMonitor()

	if m.IsVenueHealthy("binance") {
		t.Fatal("venue healthy before any report")
	}

	m.ReportPollSuccess("binance", time.Now())
	if !m.IsVenueHealthy("binance") {
		t.Error("venue unhealthy after recent poll success")
	}
	if m.IsVenueHealthy("okx") {
		t.Error("untouched venue reported healthy")
	}
}

func TestPollSuccessExpiresAfterGrace(t *testing.T) {
	m := newTestMonitor()
	m.ReportPollSuccess("binance", time.Now())

	m.now = func() time.Time { return time.Now().Add(time.Minute) }
	if m.IsVenueHealthy("binance") {
		t.Error("venue still healthy past poll grace window")
	}
}

func TestPollFailureAccounting(t *testing.T) {
	m := newTestMonitor()

	m.ReportPollFailure("binance", errors.New("dial timeout"))
	m.ReportPollFailure("binance", errors.New("status 503"))

	var st VenueStatus
	for _, s := range m.Status() {
		if s.Venue == "binance" {
			st = s
		}
	}
	if st.ConsecutiveFails != 2 {
		t.Errorf("consecutive failures = %d, want 2", st.ConsecutiveFails)
	}
	if st.LastError != "status 503" {
		t.Errorf("last error = %q, want latest failure", st.LastError)
	}

	m.ReportPollSuccess("binance", time.Now())
	for _, s := range m.Status() {
		if s.Venue == "binance" && (s.ConsecutiveFails != 0 || s.LastError != "") {
			t.Errorf("failure accounting not reset on success: %+v", s)
		}
	}
}

func TestConnectedStreamMarksVenueHealthy(t *testing.T) {
	m := newTestMonitor()

	fs := &fakeStream{venue: "binance"}
	fs.state.Store(int32(model.StateConnected))
	fs.lastUpdate.Store(time.Now().UnixNano())
	m.Watch(fs)

	if !m.IsVenueHealthy("binance") {
		t.Error("venue unhealthy with live push connection")
	}
}

func TestSweepForcesReconnectOnStaleConnection(t *testing.T) {
	m := newTestMonitor()

	fs := &fakeStream{venue: "binance"}
	fs.state.Store(int32(model.StateConnected))
	fs.lastUpdate.Store(time.Now().Add(-2 * time.Minute).UnixNano())
	m.Watch(fs)

	m.sweep()

	if fs.forced.Load() != 1 {
		t.Errorf("forced reconnects = %d, want 1", fs.forced.Load())
	}
}

func TestSweepLeavesFreshConnectionAlone(t *testing.T) {
	m := newTestMonitor()

	fs := &fakeStream{venue: "binance"}
	fs.state.Store(int32(model.StateConnected))
	fs.lastUpdate.Store(time.Now().UnixNano())
	m.Watch(fs)

	m.sweep()

	if fs.forced.Load() != 0 {
		t.Errorf("forced reconnects = %d, want 0", fs.forced.Load())
	}
}

func TestSweepSkipsDisconnectedStream(t *testing.T) {
	m := newTestMonitor()

	fs := &fakeStream{venue: "binance"}
	fs.state.Store(int32(model.StateReconnecting))
	fs.lastUpdate.Store(time.Now().Add(-time.Hour).UnixNano())
	m.Watch(fs)

	m.sweep()

	if fs.forced.Load() != 0 {
		t.Error("reconnect forced on a stream already reconnecting")
	}
}

func TestSweepOwnsVenueUpGauge(t *testing.T) {
	m := metrics.New()
	mon := New(Config{
		CheckInterval:    time.Second,
		HeartbeatTimeout: 60 * time.Second,
		PollGrace:        10 * time.Second,
	}, []string{"binance", "okx"}, m, nil)

	mon.ReportPollSuccess("binance", time.Now())
	mon.sweep()

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	body := rec.Body.String()

	if !strings.Contains(body, `pricefeed_venue_up{venue="binance"} 1`) {
		t.Error("binance gauge not 1 after recent poll success")
	}
	if !strings.Contains(body, `pricefeed_venue_up{venue="okx"} 0`) {
		t.Error("okx gauge not 0 without any data path")
	}
}

func TestUnknownVenueIsUnhealthy(t *testing.T) {
	m := newTestMonitor()
	if m.IsVenueHealthy("gemini") {
		t.Error("unknown venue reported healthy")
	}
}

func TestStatusIncludesStreamState(t *testing.T) {
	m := newTestMonitor()

	fs := &fakeStream{venue: "okx"}
	fs.state.Store(int32(model.StateReconnecting))
	m.Watch(fs)

	for _, s := range m.Status() {
		switch s.Venue {
		case "okx":
			if s.StateName != "reconnecting" {
				t.Errorf("okx state = %q, want reconnecting", s.StateName)
			}
		case "binance":
			if s.StateName != "disconnected" {
				t.Errorf("binance state = %q, want disconnected", s.StateName)
			}
		}
	}
}
