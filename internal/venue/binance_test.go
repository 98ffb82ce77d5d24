package venue

import (
	"testing"

	"github.com/quotewire/pricefeed/internal/model"
)

func TestBinanceNormalize(t *testing.T) {
	a := &binanceAdapter{}

	tests := []struct {
		raw     string
		want    string
		wantErr bool
	}{
		{"BTCUSDT", "BTC/USDT", false},
		{"ETHBTC", "ETH/BTC", false},
		{"ETHUSDC", "ETH/USDC", false},
		{"SOLEUR", "SOL/EUR", false},
		{"btcusdt", "BTC/USDT", false},
		{"USDT", "", true},    // quote with no base
		{"BANANAS", "", true}, // no known quote suffix
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

func TestBinanceParseRestSnapshot(t *testing.T) {
	a := &binanceAdapter{}

	body := []byte(`[
		{"symbol":"BTCUSDT","lastPrice":"97500.00","priceChangePercent":"2.35","volume":"12345.6","highPrice":"98100.00","lowPrice":"95200.00","closeTime":1700000000000},
		{"symbol":"ETHUSDT","lastPrice":"3450.12","priceChangePercent":"-1.20","volume":"54321.0","highPrice":"3500.00","lowPrice":"3400.00","closeTime":1700000000000},
		{"symbol":"WEIRDSYMBOL","lastPrice":"1.00","priceChangePercent":"0","volume":"0","highPrice":"1","lowPrice":"1","closeTime":1700000000000},
		{"symbol":"SOLUSDT","lastPrice":"not-a-number","priceChangePercent":"0","volume":"0","highPrice":"0","lowPrice":"0","closeTime":1700000000000}
	]`)

	tickers, err := a.ParseRestSnapshot(body)
	if err != nil {
		t.Fatalf("ParseRestSnapshot failed: %v", err)
	}

	// Unknown symbol and unparseable price are skipped, not fatal.
	if len(tickers) != 2 {
		t.Fatalf("len(tickers) = %d, want 2", len(tickers))
	}

	btc := tickers[0]
	if btc.Pair != "BTC/USDT" {
		t.Errorf("Pair = %q, want BTC/USDT", btc.Pair)
	}
	if btc.Price != 97500.00 {
		t.Errorf("Price = %v, want 97500.00", btc.Price)
	}
	if btc.Change24h != 2.35 {
		t.Errorf("Change24h = %v, want 2.35", btc.Change24h)
	}
	if btc.Source != model.SourceLive {
		t.Errorf("Source = %q, want live", btc.Source)
	}
	if btc.Origin != model.OriginPoll {
		t.Errorf("Origin = %v, want poll", btc.Origin)
	}
	if btc.Timestamp.UnixMilli() != 1700000000000 {
		t.Errorf("Timestamp = %v, want close time", btc.Timestamp)
	}
}

func TestBinanceParseRestSnapshotSingleObject(t *testing.T) {
	a := &binanceAdapter{}

	body := []byte(`{"symbol":"BTCUSDT","lastPrice":"97500.00","priceChangePercent":"2.35","volume":"1","highPrice":"98100","lowPrice":"95200","closeTime":1700000000000}`)

	tickers, err := a.ParseRestSnapshot(body)
	if err != nil {
		t.Fatalf("ParseRestSnapshot failed: %v", err)
	}
	if len(tickers) != 1 || tickers[0].Pair != "BTC/USDT" {
		t.Fatalf("tickers = %+v, want single BTC/USDT", tickers)
	}
}

func TestBinanceParsePushFrame(t *testing.T) {
	a := &binanceAdapter{}

	frame := []byte(`[
		{"e":"24hrMiniTicker","E":1700000001000,"s":"BTCUSDT","c":"97600.00","o":"95000.00","h":"98100.00","l":"95000.00","v":"1000"},
		{"e":"24hrMiniTicker","E":1700000001000,"s":"ETHUSDT","c":"3460.00","o":"3500.00","h":"3500.00","l":"3400.00","v":"2000"}
	]`)

	tickers, err := a.ParsePushFrame(frame)
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 2 {
		t.Fatalf("len(tickers) = %d, want 2", len(tickers))
	}

	btc := tickers[0]
	if btc.Price != 97600.00 {
		t.Errorf("Price = %v, want 97600.00", btc.Price)
	}
	if btc.Origin != model.OriginPush {
		t.Errorf("Origin = %v, want push", btc.Origin)
	}

	// Derived change: (97600-95000)/95000 * 100
	wantChange := (97600.0 - 95000.0) / 95000.0 * 100
	if diff := btc.Change24h - wantChange; diff > 1e-9 || diff < -1e-9 {
		t.Errorf("Change24h = %v, want %v", btc.Change24h, wantChange)
	}
}

func TestBinanceParsePushFrameControlMessage(t *testing.T) {
	a := &binanceAdapter{}

	// SUBSCRIBE ack has no symbol and must yield no tickers.
	tickers, err := a.ParsePushFrame([]byte(`{"result":null,"id":1}`))
	if err != nil {
		t.Fatalf("ParsePushFrame failed: %v", err)
	}
	if len(tickers) != 0 {
		t.Errorf("len(tickers) = %d, want 0", len(tickers))
	}
}

func TestBinanceSubscribePayload(t *testing.T) {
	a := &binanceAdapter{}

	payload, err := a.SubscribePayload([]string{"BTC/USDT", "ETH/BTC"})
	if err != nil {
		t.Fatalf("SubscribePayload failed: %v", err)
	}

	want := `{"id":1,"method":"SUBSCRIBE","params":["btcusdt@miniTicker","ethbtc@miniTicker"]}`
	if string(payload) != want {
		t.Errorf("payload = %s, want %s", payload, want)
	}
}
