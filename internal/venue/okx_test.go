package venue

import (
	"strings"
	"testing"

	"github.com/quotewire/pricefeed/internal/model"
)

func TestOKXNormalize(t *testing.T) {
	a := &okxAdapter{}

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"BTC-USDT", "BTC/USDT", false},
		{"ETH-BTC", "ETH/BTC", false},
		{"ETHUSDT", "ETH/USDT", false}, // concatenated fallback
		{"-USDT", "", true},
		{"BTC-", "", true},
	}

	for _, tt := range tests {
		got, err := a.Normalize(tt.raw)
		if (err != nil) != tt.wantErr {
			t.Errorf("Normalize(%q) error = %v, wantErr %v", tt.raw, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("Normalize(%q) = %q, want %q", tt.raw, got, tt.want)
		}
	}
}

func TestOKXParseRestSnapshot(t *testing.T) {
	a := &okxAdapter{}

	body := []byte(`{"code":"0","msg":"","data":[
		{"instType":"SPOT","instId":"BTC-USDT","last":"97510.5","open24h":"95000.0","high24h":"98000.0","low24h":"94800.0","vol24h":"8000","ts":"1700000002000"},
		{"instType":"SPOT","instId":"","last":"1.0","open24h":"1.0","high24h":"1.0","low24h":"1.0","vol24h":"1","ts":"1700000002000"}
	]}`)

	tickers, err := a.ParseRestSnapshot(body)
	if err != nil {
		t.Fatalf("ParseRestSnapshot failed: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("len(tickers) = %d, want 1", len(tickers))
	}

	btc := tickers[0]
	if btc.Pair != "BTC/USDT" || btc.Price != 97510.5 {
		t.Errorf("ticker = %+v, want BTC/USDT at 97510.5", btc)
	}
	if btc.Timestamp.UnixMilli() != 1700000002000 {
		t.Errorf("Timestamp = %v, want ts field", btc.Timestamp)
	}
	if btc.Origin != model.OriginPoll {
		t.Errorf("Origin = %v, want poll", btc.Origin)
	}
}

func TestOKXParseRestSnapshotAPIError(t *testing.T) {
	a := &okxAdapter{}

	_, err := a.ParseRestSnapshot([]byte(`{"code":"50011","msg":"rate limited","data":[]}`))
	if err == nil {
		t.Fatal("expected error for non-zero code")
	}
	if !strings.Contains(err.Error(), "50011") {
		t.Errorf("error %q does not carry the api code", err)
	}
}

func TestOKXParsePushFrame(t *testing.T) {
	a := &okxAdapter{}

	frame := []byte(`{"arg":{"channel":"tickers","instId":"BTC-USDT"},"data":[
		{"instId":"BTC-USDT","last":"97520.0","open24h":"95000.0","high24h":"98000.0","low24h":"94800.0","vol24h":"8100","ts":"1700000003000"}
	]}`)

	tickers, err := a.ParsePushFrame(frame)
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("len(tickers) = %d, want 1", len(tickers))
	}
	if tickers[0].Origin != model.OriginPush {
		t.Errorf("Origin = %v, want push", tickers[0].Origin)
	}
}

func TestOKXParsePushFrameControlMessages(t *testing.T) {
	a := &okxAdapter{}

	for _, frame := range []string{
		`{"event":"subscribe","arg":{"channel":"tickers","instId":"BTC-USDT"}}`,
		`pong`,
	} {
		tickers, err := a.ParsePushFrame([]byte(frame))
		if err != nil {
			t.Fatalf("ParsePushFrame(%q) failed: %v", frame, err)
		}
		if len(tickers) != 0 {
			t.Errorf("ParsePushFrame(%q) = %d tickers, want 0", frame, len(tickers))
		}
	}
}

func TestOKXSubscribePayload(t *testing.T) {
	a := &okxAdapter{}

	payload, err := a.SubscribePayload([]string{"BTC/USDT"})
	if err != nil {
		t.Fatalf("SubscribePayload failed: %v", err)
	}

	got := string(payload)
	if !strings.Contains(got, `"op":"subscribe"`) || !strings.Contains(got, `"instId":"BTC-USDT"`) {
		t.Errorf("payload = %s, want subscribe op for BTC-USDT", got)
	}
}
