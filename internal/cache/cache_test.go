package cache

import (
	"testing"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

func tick(venue, pair string, price float64, ts time.Time) model.Ticker {
	return model.Ticker{
		Venue:     venue,
		Pair:      pair,
		Price:     price,
		Timestamp: ts,
		Source:    model.SourceLive,
	}
}

func TestPutAndGet(t *testing.T) {
	c := New(10 * time.Second)
	now := time.Now()

	if !c.Put(tick("binance", "BTC/USDT", 97500, now)) {
		t.Fatal("first Put should store")
	}

	got, ok := c.Get("binance", "BTC/USDT")
	if !ok {
		t.Fatal("Get should find fresh entry")
	}
	if got.Price != 97500 {
		t.Errorf("Price = %v, want 97500", got.Price)
	}

	if _, ok := c.Get("binance", "ETH/USDT"); ok {
		t.Error("Get on missing key should report absent")
	}
}

func TestPutMonotonicTimestamps(t *testing.T) {
	base := time.Now()
	older := tick("binance", "BTC/USDT", 97000, base)
	newer := tick("binance", "BTC/USDT", 97500, base.Add(time.Second))

	// Applying in either order must leave the newer value.
	for name, order := range map[string][2]model.Ticker{
		"in order":     {older, newer},
		"out of order": {newer, older},
	} {
		c := New(10 * time.Second)
		c.Put(order[0])
		c.Put(order[1])

		got, ok := c.Get("binance", "BTC/USDT")
		if !ok {
			t.Fatalf("%s: entry missing", name)
		}
		if got.Price != 97500 {
			t.Errorf("%s: Price = %v, want 97500 (newer wins)", name, got.Price)
		}
	}
}

func TestPutEqualTimestampIgnored(t *testing.T) {
	c := New(10 * time.Second)
	ts := time.Now()

	c.Put(tick("binance", "BTC/USDT", 97000, ts))
	if c.Put(tick("binance", "BTC/USDT", 99999, ts)) {
		t.Error("Put with equal timestamp should be ignored")
	}

	got, _ := c.Get("binance", "BTC/USDT")
	if got.Price != 97000 {
		t.Errorf("Price = %v, want original 97000", got.Price)
	}
}

func TestTTLIsReadTimeFilter(t *testing.T) {
	c := New(10 * time.Second)

	now := time.Now()
	c.now = func() time.Time { return now }

	c.Put(tick("binance", "BTC/USDT", 97500, now))

	// Advance past the TTL.
	now = now.Add(11 * time.Second)

	if _, ok := c.Get("binance", "BTC/USDT"); ok {
		t.Error("expired entry should be absent from Get")
	}
	if len(c.Snapshot()) != 0 {
		t.Error("expired entry should be absent from Snapshot")
	}

	// But still readable for fallback continuity, and still stored.
	if got, ok := c.GetAny("binance", "BTC/USDT"); !ok || got.Price != 97500 {
		t.Errorf("GetAny = %v, %v, want stale 97500", got, ok)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1 (no eager eviction)", c.Len())
	}
}

func TestFreshForPair(t *testing.T) {
	c := New(10 * time.Second)
	now := time.Now()

	c.Put(tick("binance", "BTC/USDT", 97500, now))
	c.Put(tick("okx", "BTC/USDT", 97510, now))
	c.Put(tick("binance", "ETH/USDT", 3450, now))

	got := c.FreshForPair("BTC/USDT")
	if len(got) != 2 {
		t.Fatalf("len = %d, want 2", len(got))
	}
	for _, tk := range got {
		if tk.Pair != "BTC/USDT" {
			t.Errorf("unexpected pair %q", tk.Pair)
		}
	}
}

func TestSnapshot(t *testing.T) {
	c := New(10 * time.Second)
	now := time.Now()

	c.Put(tick("binance", "BTC/USDT", 97500, now))
	c.Put(tick("okx", "ETH/USDT", 3450, now))

	snap := c.Snapshot()
	if len(snap) != 2 {
		t.Fatalf("len(Snapshot) = %d, want 2", len(snap))
	}
}
