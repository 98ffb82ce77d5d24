package venue

import (
	"strings"
	"testing"

	"github.com/quotewire/pricefeed/internal/model"
)

func TestKrakenNormalize(t *testing.T) {
	a := &krakenAdapter{}

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"XBT/USD", "BTC/USD", false},
		{"XXBTZUSD", "BTC/USD", false}, // legacy padded form
		{"XBTUSDT", "BTC/USDT", false},
		{"XDG/USD", "DOGE/USD", false},
		{"ETH/BTC", "ETH/BTC", false},
		{"/USD", "", true},
		{"NOQUOTE", "", true},
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

func TestKrakenParseRestSnapshot(t *testing.T) {
	a := &krakenAdapter{}

	body := []byte(`{"error":[],"result":{
		"XXBTZUSD":{"c":["97400.1","0.05"],"v":["120.5","340.7"],"h":["97900.0","98200.0"],"l":["95100.0","94900.0"],"o":"95500.0"}
	}}`)

	tickers, err := a.ParseRestSnapshot(body)
	if err != nil {
		t.Fatalf("ParseRestSnapshot failed: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("len(tickers) = %d, want 1", len(tickers))
	}

	btc := tickers[0]
	if btc.Pair != "BTC/USD" {
		t.Errorf("Pair = %q, want BTC/USD", btc.Pair)
	}
	if btc.Price != 97400.1 {
		t.Errorf("Price = %v, want 97400.1", btc.Price)
	}
	// 24h figures come from index 1 of the positional arrays.
	if btc.Volume != 340.7 || btc.High24h != 98200.0 || btc.Low24h != 94900.0 {
		t.Errorf("24h figures = v:%v h:%v l:%v, want 340.7/98200/94900", btc.Volume, btc.High24h, btc.Low24h)
	}
	if !btc.Timestamp.IsZero() {
		t.Errorf("Timestamp = %v, want zero (REST carries none)", btc.Timestamp)
	}
}

func TestKrakenParseRestSnapshotAPIError(t *testing.T) {
	a := &krakenAdapter{}

	_, err := a.ParseRestSnapshot([]byte(`{"error":["EGeneral:Temporary lockout"],"result":{}}`))
	if err == nil || !strings.Contains(err.Error(), "Temporary lockout") {
		t.Fatalf("err = %v, want api error", err)
	}
}

func TestKrakenParsePushFrame(t *testing.T) {
	a := &krakenAdapter{}

	frame := []byte(`{"channel":"ticker","type":"update","data":[
		{"symbol":"BTC/USD","last":97450.2,"high":98200.0,"low":94900.0,"volume":341.0,"change_pct":2.04}
	]}`)

	tickers, err := a.ParsePushFrame(frame)
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 1 {
		t.Fatalf("len(tickers) = %d, want 1", len(tickers))
	}

	btc := tickers[0]
	if btc.Pair != "BTC/USD" || btc.Price != 97450.2 || btc.Change24h != 2.04 {
		t.Errorf("ticker = %+v, want BTC/USD 97450.2 +2.04%%", btc)
	}
	if btc.Origin != model.OriginPush {
		t.Errorf("Origin = %v, want push", btc.Origin)
	}
}

func TestKrakenParsePushFrameHeartbeat(t *testing.T) {
	a := &krakenAdapter{}

	tickers, err := a.ParsePushFrame([]byte(`{"channel":"heartbeat"}`))
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 0 {
		t.Errorf("len(tickers) = %d, want 0", len(tickers))
	}
}

func TestKrakenParsePushFrameNegativePriceSkipped(t *testing.T) {
	a := &krakenAdapter{}

	frame := []byte(`{"channel":"ticker","type":"update","data":[
		{"symbol":"BTC/USD","last":-5,"high":0,"low":0,"volume":0,"change_pct":0}
	]}`)

	tickers, err := a.ParsePushFrame(frame)
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 0 {
		t.Errorf("len(tickers) = %d, want 0 (non-positive price dropped)", len(tickers))
	}
}

func TestKrakenSubscribePayload(t *testing.T) {
	a := &krakenAdapter{}

	payload, err := a.SubscribePayload([]string{"BTC/USD", "ETH/USD"})
	if err != nil {
		t.Fatalf("SubscribePayload failed: %v", err)
	}

	got := string(payload)
	if !strings.Contains(got, `"XBT/USD"`) {
		t.Errorf("payload = %s, want Kraken asset code XBT", got)
	}
	if !strings.Contains(got, `"channel":"ticker"`) {
		t.Errorf("payload = %s, want ticker channel", got)
	}
}

func TestAdapterRegistry(t *testing.T) {
	for _, name := range []string{"binance", "okx", "kraken"} {
		a, err := New(name)
		if err != nil {
			t.Errorf("New(%q) failed: %v", name, err)
			continue
		}
		if a.Name() != name {
			t.Errorf("New(%q).Name() = %q", name, a.Name())
		}
	}

	if _, err := New("ftx"); err == nil {
		t.Error("New(ftx) should fail")
	}
}
