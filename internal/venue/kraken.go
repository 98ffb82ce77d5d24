package venue

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/quotewire/pricefeed/internal/model"
)

// krakenAdapter parses Kraken spot market data.
//
// REST: GET /0/public/Ticker returns positional arrays per pair keyed by
// Kraken's legacy symbol names ("XXBTZUSD"). Push: the v2 ticker channel
// delivers {channel: "ticker", data: [...]} frames with plain numerics.
type krakenAdapter struct{}

func (a *krakenAdapter) Name() string { return "kraken" }

// Kraken legacy asset codes mapped to canonical ones.
var krakenAliases = map[string]string{
	"XBT": "BTC",
	"XDG": "DOGE",
}

func krakenAsset(code string) string {
	c := strings.ToUpper(code)
	if alias, ok := krakenAliases[c]; ok {
		return alias
	}
	return c
}

// Normalize handles the three symbol shapes Kraken uses: slash-separated
// ("XBT/USD"), legacy padded ("XXBTZUSD"), and plain concatenated ("XBTUSDT").
func (a *krakenAdapter) Normalize(rawSymbol string) (string, error) {
	s := strings.ToUpper(rawSymbol)

	if base, quote, ok := strings.Cut(s, "/"); ok {
		if base == "" || quote == "" {
			return "", fmt.Errorf("%w: %q", ErrUnknownSymbol, rawSymbol)
		}
		return model.MakePair(krakenAsset(base), krakenAsset(quote)), nil
	}

	// Legacy form pads crypto with X and fiat with Z: XXBTZUSD.
	if len(s) == 8 && s[0] == 'X' && s[4] == 'Z' {
		return model.MakePair(krakenAsset(s[1:4]), krakenAsset(s[5:8])), nil
	}

	base, quote, err := splitConcat(s)
	if err != nil {
		// Retry with aliases resolved: XBTUSDT fails plain suffix matching
		// only if the alias hides a known quote, so map and try again.
		for legacy, canonical := range krakenAliases {
			if strings.HasPrefix(s, legacy) {
				return a.Normalize(canonical + s[len(legacy):])
			}
		}
		return "", err
	}
	return model.MakePair(krakenAsset(base), krakenAsset(quote)), nil
}

// krakenRestWire is one positional-array ticker record.
//
//	c: [last price, last volume]
//	v: [volume today, volume 24h]
//	h: [high today, high 24h]
//	l: [low today, low 24h]
//	o: open price today
type krakenRestWire struct {
	C []string `json:"c"`
	V []string `json:"v"`
	H []string `json:"h"`
	L []string `json:"l"`
	O string   `json:"o"`
}

// krakenRestEnvelope is the REST response wrapper.
type krakenRestEnvelope struct {
	Error  []string                  `json:"error"`
	Result map[string]krakenRestWire `json:"result"`
}

func (a *krakenAdapter) ParseRestSnapshot(body []byte) ([]model.Ticker, error) {
	if len(body) == 0 {
		return nil, ErrEmptyPayload
	}

	var env krakenRestEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, fmt.Errorf("parse kraken snapshot: %w", err)
	}
	if len(env.Error) > 0 {
		return nil, fmt.Errorf("kraken api error: %s", strings.Join(env.Error, "; "))
	}

	tickers := make([]model.Ticker, 0, len(env.Result))
	for symbol, rec := range env.Result {
		t, err := a.restTicker(symbol, rec)
		if err != nil {
			continue // per-record skip
		}
		tickers = append(tickers, t)
	}
	return tickers, nil
}

func (a *krakenAdapter) restTicker(symbol string, rec krakenRestWire) (model.Ticker, error) {
	pair, err := a.Normalize(symbol)
	if err != nil {
		return model.Ticker{}, err
	}
	if len(rec.C) == 0 {
		return model.Ticker{}, fmt.Errorf("kraken record %q has no last price", symbol)
	}
	last, err := parseDecimal(rec.C[0])
	if err != nil {
		return model.Ticker{}, err
	}
	open, _ := parseDecimal(rec.O)

	var volume, high, low float64
	if len(rec.V) > 1 {
		volume, _ = parseDecimal(rec.V[1])
	}
	if len(rec.H) > 1 {
		high, _ = parseDecimal(rec.H[1])
	}
	if len(rec.L) > 1 {
		low, _ = parseDecimal(rec.L[1])
	}

	return model.Ticker{
		Venue:     a.Name(),
		Pair:      pair,
		Price:     last,
		Change24h: changePct(open, last),
		Volume:    volume,
		High24h:   high,
		Low24h:    low,
		Source:    model.SourceLive,
		Origin:    model.OriginPoll,
		// Kraken's REST ticker carries no timestamp; the caller stamps
		// receive time on zero-timestamp tickers.
	}, nil
}

// krakenPushEnvelope is a v2 WebSocket frame.
type krakenPushEnvelope struct {
	Channel string           `json:"channel"`
	Type    string           `json:"type"` // "snapshot" or "update"
	Data    []krakenPushWire `json:"data"`
}

// krakenPushWire is one v2 ticker record. Numerics are JSON numbers.
type krakenPushWire struct {
	Symbol    string  `json:"symbol"` // "BTC/USD"
	Last      float64 `json:"last"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Volume    float64 `json:"volume"`
	ChangePct float64 `json:"change_pct"`
}

func (a *krakenAdapter) ParsePushFrame(frame []byte) ([]model.Ticker, error) {
	if len(frame) == 0 {
		return nil, ErrEmptyPayload
	}

	var env krakenPushEnvelope
	if err := json.Unmarshal(frame, &env); err != nil {
		return nil, fmt.Errorf("parse kraken push frame: %w", err)
	}
	if env.Channel != "ticker" {
		// Heartbeats, status frames, and method acks carry no ticker data.
		return nil, nil
	}

	tickers := make([]model.Ticker, 0, len(env.Data))
	for _, rec := range env.Data {
		pair, err := a.Normalize(rec.Symbol)
		if err != nil {
			continue
		}
		if rec.Last <= 0 {
			continue
		}
		tickers = append(tickers, model.Ticker{
			Venue:     a.Name(),
			Pair:      pair,
			Price:     rec.Last,
			Change24h: rec.ChangePct,
			Volume:    rec.Volume,
			High24h:   rec.High,
			Low24h:    rec.Low,
			Source:    model.SourceLive,
			Origin:    model.OriginPush,
		})
	}
	return tickers, nil
}

// SubscribePayload builds a v2 subscribe request for the ticker channel.
func (a *krakenAdapter) SubscribePayload(pairs []string) ([]byte, error) {
	symbols := make([]string, 0, len(pairs))
	for _, pair := range pairs {
		base, quote, err := model.ParsePair(pair)
		if err != nil {
			return nil, err
		}
		// Kraken v2 takes slash-separated symbols with its own asset codes.
		if base == "BTC" {
			base = "XBT"
		}
		symbols = append(symbols, base+"/"+quote)
	}

	return json.Marshal(map[string]any{
		"method": "subscribe",
		"params": map[string]any{
			"channel": "ticker",
			"symbol":  symbols,
		},
	})
}
