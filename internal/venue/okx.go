package venue

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

// okxAdapter parses OKX spot market data.
//
// Both REST (GET /api/v5/market/tickers) and push (tickers channel) wrap
// records in a {data: [...]} envelope with the same field names, so one wire
// type covers both.
type okxAdapter struct{}

func (a *okxAdapter) Name() string { return "okx" }

// Normalize converts "BTC-USDT" to "BTC/USDT". Concatenated symbols are
// accepted as a fallback.
func (a *okxAdapter) Normalize(rawSymbol string) (string, error) {
	if base, quote, ok := strings.Cut(rawSymbol, "-"); ok {
		if base == "" || quote == "" {
			return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, rawSymbol)
		}
		return model.MakePair(base, quote), nil
	}
	base, quote, err := splitConcat(rawSymbol)
	if err != nil {
		return "", err
	}
	return model.MakePair(base, quote), nil
}

// okxEnvelope is the common wrapper for REST responses and push frames.
type okxEnvelope struct {
	Code  string        `json:"code"`  // REST only, "0" = ok
	Msg   string        `json:"msg"`   // REST only
	Event string        `json:"event"` // Push only: "subscribe", "error"
	Data  []okxTickWire `json:"data"`
}

// okxTickWire is one ticker record.
type okxTickWire struct {
	InstID  string `json:"instId"`
	Last    string `json:"last"`
	Open24h string `json:"open24h"`
	High24h string `json:"high24h"`
	Low24h  string `json:"low24h"`
	Vol24h  string `json:"vol24h"`
	TS      string `json:"ts"` // ms since epoch, string-encoded
}

func (a *okxAdapter) ParseRestSnapshot(body []byte) ([]model.Ticker, error) {
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}

	var env okxEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse okx snapshot: %w", err)
	}
	if env.Code != "" && env.Code != "0" {
		return nil, fmt.Errorf("okx api error %s: %s", env.Code, env.Msg)
	}

	return a.tickers(env.Data, model.OriginPoll), nil
}

func (a *okxAdapter) ParsePushFrame(frame []byte) ([]model.Ticker, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyPayload
	}

	// OKX answers keepalives with a bare "pong" text frame.
	if string(frame) == "pong" {
		return nil, nil
	}

	var env okxEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("parse okx push frame: %w", err)
	}
	if env.Event != "" {
		// Subscription ack or error event, no ticker data.
		return nil, nil
	}

	return a.tickers(env.Data, model.OriginPush), nil
}

func (a *okxAdapter) tickers(records []okxTickWire, origin model.Origin) []model.Ticker {
	tickers := make([]model.Ticker, 0, len(records))
	for _, rec := range records {
		pair, err := a.Normalize(rec.InstID)
		if err != nil {
			continue // per-record skip
		}
		last, err := parseDecimal(rec.Last)
		if err != nil {
			continue
		}
		open, _ := parseDecimal(rec.Open24h)
		high, _ := parseDecimal(rec.High24h)
		low, _ := parseDecimal(rec.Low24h)
		volume, _ := parseDecimal(rec.Vol24h)

		var ts time.Time
		if ms, err := strconv.ParseInt(rec.TS, 10, 64); err == nil && ms > 0 {
			ts = time.UnixMilli(ms)
		}

		tickers = append(tickers, model.Ticker{
			Venue:     a.Name(),
			Pair:      pair,
			Price:     last,
			Change24h: changePct(open, last),
			Volume:    volume,
			High24h:   high,
			Low24h:    low,
			Timestamp: ts,
			Source:    model.SourceLive,
			Origin:    origin,
		})
	}
	return tickers
}

// SubscribePayload builds a subscribe op for the tickers channel.
func (a *okxAdapter) SubscribePayload(pairs []string) ([]byte, error) {
	args := make([]map[string]string, 0, len(pairs))
	for _, pair := range pairs {
		base, quote, err := model.ParsePair(pair)
		if err != nil {
			return nil, err
		}
		args = append(args, map[string]string{
			"channel": "tickers",
			"instId":  base + "-" + quote,
		})
	}

	return json.Marshal(map[string]any{
		"op":   "subscribe",
		"args": args,
	})
}
