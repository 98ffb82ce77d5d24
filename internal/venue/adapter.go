package venue

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/quotewire/pricefeed/internal/model"
)

// Errors
var (
	ErrUnknownVenue  = errors.New("unknown venue")
	ErrUnknownSymbol = errors.New("symbol does not match any known quote asset")
	ErrEmptyPayload  = errors.New("empty payload")
)

// Adapter maps one venue's wire formats onto the canonical model.
type Adapter interface {
	// Name returns the venue name ("binance", "okx", "kraken").
	Name() string

	// Normalize converts a venue-native symbol into canonical "BASE/QUOTE" form.
	Normalize(rawSymbol string) (string, error)

	// ParseRestSnapshot parses a full REST ticker snapshot body.
	// Records that fail to parse are dropped, not fatal to the batch.
	ParseRestSnapshot(body []byte) ([]model.Ticker, error)

	// ParsePushFrame parses one inbound WebSocket frame. Frames that carry no
	// ticker data (heartbeats, subscription acks) return an empty slice.
	ParsePushFrame(frame []byte) ([]model.Ticker, error)

	// SubscribePayload builds the subscribe/handshake message for the given
	// pairs. A nil payload means the venue needs no explicit subscribe.
	SubscribePayload(pairs []string) ([]byte, error)
}

// New returns the adapter registered under name.
func New(name string) (Adapter, error) {
	switch strings.ToLower(name) {
	case "binance":
		return &binanceAdapter{}, nil
	case "okx":
		return &okxAdapter{}, nil
	case "kraken":
		return &krakenAdapter{}, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownVenue, name)
	}
}

// Quote-suffix stripping order for concatenated symbols. Stablecoin suffixes
// are tried before major-coin suffixes so that e.g. ETHBTC resolves to
// ETH/BTC instead of being confused by BTC prefix matching, and BTCUSDT
// resolves to BTC/USDT rather than BTC/USD + trailing T.
var quoteSuffixes = []string{
	// Stablecoins
	"USDT", "USDC", "TUSD", "BUSD", "DAI",
	// Majors
	"BTC", "ETH", "BNB",
	// Fiat
	"USD", "EUR", "GBP", "JPY",
}

// splitConcat splits a concatenated symbol like "BTCUSDT" into base and quote
// by trying known quote suffixes in order.
func splitConcat(symbol string) (base, quote string, err error) {
	s := strings.ToUpper(symbol)
	for _, q := range quoteSuffixes {
		if strings.HasSuffix(s, q) && len(s) > len(q) {
			return s[:len(s)-len(q)], q, nil
		}
	}
	return "", "", fmt.Errorf("%w: %q", ErrUnknownSymbol, symbol)
}

// parseDecimal parses a numeric field that venues deliver as a JSON string.
func parseDecimal(s string) (float64, error) {
	if s == "" {
		return 0, errors.New("empty numeric field")
	}
	return strconv.ParseFloat(s, 64)
}

// changePct derives a 24h percent change from open and last prices.
func changePct(open, last float64) float64 {
	if open == 0 {
		return 0
	}
	return (last - open) / open * 100
}
