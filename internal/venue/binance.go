package venue

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

// binanceAdapter parses Binance spot market data.
//
// REST: GET /api/v3/ticker/24hr returns a flat JSON array of ticker objects
// with string-encoded numerics. Push: the miniTicker stream delivers either a
// single flat object or an array of them (!miniTicker@arr).
type binanceAdapter struct{}

func (a *binanceAdapter) Name() string { return "binance" }

// Normalize converts "BTCUSDT" to "BTC/USDT".
func (a *binanceAdapter) Normalize(rawSymbol string) (string, error) {
	base, quote, err := splitConcat(rawSymbol)
	if err != nil {
		return "", err
	}
	return model.MakePair(base, quote), nil
}

// binanceRestWire is one record of the 24hr ticker snapshot.
type binanceRestWire struct {
	Symbol             string `json:"symbol"`
	LastPrice          string `json:"lastPrice"`
	PriceChangePercent string `json:"priceChangePercent"`
	Volume             string `json:"volume"`
	HighPrice          string `json:"highPrice"`
	LowPrice           string `json:"lowPrice"`
	CloseTime          int64  `json:"closeTime"` // ms since epoch
}

// binancePushWire is one miniTicker event.
type binancePushWire struct {
	EventType string `json:"e"`
	EventTime int64  `json:"E"` // ms since epoch
	Symbol    string `json:"s"`
	Close     string `json:"c"`
	Open      string `json:"o"`
	High      string `json:"h"`
	Low       string `json:"l"`
	Volume    string `json:"v"`
}

func (a *binanceAdapter) ParseRestSnapshot(body []byte) ([]model.Ticker, error) {
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}

	var records []binanceRestWire
	if err := json.Unmarshal(body, &records); err != nil {
		// Single-symbol endpoints return one object instead of an array.
		var one binanceRestWire
		if err2 := json.Unmarshal(body, &one); err2 != nil {
			return nil, fmt.Errorf("parse binance snapshot: %w", err)
		}
		records = []binanceRestWire{one}
	}

	tickers := make([]model.Ticker, 0, len(records))
	for _, rec := range records {
		t, err := a.restTicker(rec)
		if err != nil {
			continue // per-record skip
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func (a *binanceAdapter) restTicker(rec binanceRestWire) (model.Ticker, error) {
	pair, err := a.Normalize(rec.Symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	price, err := parseDecimal(rec.LastPrice)
	if err != nil {
		return model.Ticker{}, err
	}
	change, _ := parseDecimal(rec.PriceChangePercent)
	volume, _ := parseDecimal(rec.Volume)
	high, _ := parseDecimal(rec.HighPrice)
	low, _ := parseDecimal(rec.LowPrice)

	var ts time.Time
	if rec.CloseTime > 0 {
		ts = time.UnixMilli(rec.CloseTime)
	}

	return model.Ticker{
		Venue:     a.Name(),
		Pair:      pair,
		Price:     price,
		Change24h: change,
		Volume:    volume,
		High24h:   high,
		Low24h:    low,
		Timestamp: ts,
		Source:    model.SourceLive,
		Origin:    model.OriginPoll,
	}, nil
}

func (a *binanceAdapter) ParsePushFrame(frame []byte) ([]model.Ticker, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyPayload
	}

	trimmed := strings.TrimLeft(string(frame), " \t\r\n")
	var events []binancePushWire
	if strings.HasPrefix(trimmed, "[") {
		if err := json.Unmarshal(frame, &events); err != nil {
			return nil, fmt.Errorf("parse binance push frame: %w", err)
		}
	} else {
		var one binancePushWire
		if err := json.Unmarshal(frame, &one); err != nil {
			return nil, fmt.Errorf("parse binance push frame: %w", err)
		}
		events = []binancePushWire{one}
	}

	tickers := make([]model.Ticker, 0, len(events))
	for _, ev := range events {
		if ev.Symbol == "" {
			continue // subscription ack or other control frame
		}
		t, err := a.pushTicker(ev)
		if err != nil {
			continue
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func (a *binanceAdapter) pushTicker(ev binancePushWire) (model.Ticker, error) {
	pair, err := a.Normalize(ev.Symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	last, err := parseDecimal(ev.Close)
	if err != nil {
		return model.Ticker{}, err
	}
	open, _ := parseDecimal(ev.Open)
	high, _ := parseDecimal(ev.High)
	low, _ := parseDecimal(ev.Low)
	volume, _ := parseDecimal(ev.Volume)

	var ts time.Time
	if ev.EventTime > 0 {
		ts = time.UnixMilli(ev.EventTime)
	}

	return model.Ticker{
		Venue:     a.Name(),
		Pair:      pair,
		Price:     last,
		Change24h: changePct(open, last),
		Volume:    volume,
		High24h:   high,
		Low24h:    low,
		Timestamp: ts,
		Source:    model.SourceLive,
		Origin:    model.OriginPush,
	}, nil
}

// SubscribePayload builds a SUBSCRIBE command for per-pair miniTicker streams.
func (a *binanceAdapter) SubscribePayload(pairs []string) ([]byte, error) {
	params := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		base, quote, err := model.ParsePair(pair)
		if err != nil {
			return nil, err
		}
		params = append(params, strings.ToLower(base+quote)+"@miniTicker")
	}

	return json.Marshal(map[string]any{
		"method": "SUBSCRIBE",
		"params": params,
		"id":     1,
	})
}
