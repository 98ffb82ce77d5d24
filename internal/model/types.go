package model

import (
	"fmt"
	"strings"
	"time"
)

// Source identifies the provenance of a ticker value.
type Source string

const (
	// SourceLive marks a ticker parsed from real venue data.
	SourceLive Source = "live"

	// SourceFallback marks a synthesized placeholder produced when no live
	// data is available for a pair. Consumers should discount its reliability.
	SourceFallback Source = "fallback"
)

// Origin identifies which transport delivered a live ticker.
type Origin int

const (
	OriginPoll Origin = iota // REST snapshot poll
	OriginPush               // WebSocket push frame
)

// Ticker is one normalized price observation for a (venue, pair) at a point
// in time. Tickers are immutable values; updates replace, never mutate.
type Ticker struct {
	Venue     string    // Venue name (e.g. "binance")
	Pair      string    // Canonical pair "BASE/QUOTE"
	Price     float64   // Last price, > 0
	Change24h float64   // 24h change, percent
	Volume    float64   // 24h base volume, >= 0
	High24h   float64   // 24h high
	Low24h    float64   // 24h low
	Timestamp time.Time // Observation time
	Source    Source    // Live or Fallback
	Origin    Origin    // Poll or Push (meaningful for Live only)
}

// Key returns the cache/merge key for this ticker.
func (t Ticker) Key() Key {
	return Key{Venue: t.Venue, Pair: t.Pair}
}

// Key identifies a (venue, pair) slot.
type Key struct {
	Venue string
	Pair  string
}

func (k Key) String() string {
	return k.Venue + ":" + k.Pair
}

// ConnectionState tracks the lifecycle of a venue's push connection.
type ConnectionState int32

const (
	StateDisconnected ConnectionState = iota
	StateConnecting
	StateConnected
	StateReconnecting
)

func (s ConnectionState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateReconnecting:
		return "reconnecting"
	default:
		return fmt.Sprintf("unknown(%d)", int32(s))
	}
}

// ParsePair validates a canonical "BASE/QUOTE" pair string and returns its
// components. Both legs must be non-empty and uppercase.
func ParsePair(pair string) (base, quote string, err error) {
	base, quote, ok := strings.Cut(pair, "/")
	if !ok || base == "" || quote == "" {
		return "", "", fmt.Errorf("pair %q is not of form BASE/QUOTE", pair)
	}
	if base != strings.ToUpper(base) || quote != strings.ToUpper(quote) {
		return "", "", fmt.Errorf("pair %q must be uppercase", pair)
	}
	return base, quote, nil
}

// MakePair joins base and quote into canonical form.
func MakePair(base, quote string) string {
	return strings.ToUpper(base) + "/" + strings.ToUpper(quote)
}
