package fallback

import (
	"math"
	"testing"
	"time"

	"github.com/quotewire/pricefeed/internal/model"
)

func TestSynthesizeDeterministic(t *testing.T) {
	s := New(DefaultBaselines(), 10*time.Second)

	a := s.Synthesize("binance", "BTC/USDT", 42)
	b := s.Synthesize("binance", "BTC/USDT", 42)

	if a.Price != b.Price || a.Change24h != b.Change24h || a.Volume != b.Volume {
		t.Errorf("same bucket produced different values: %+v vs %+v", a, b)
	}
}

func TestSynthesizeVariesAcrossBuckets(t *testing.T) {
	s := New(DefaultBaselines(), 10*time.Second)

	a := s.Synthesize("binance", "BTC/USDT", 42)
	b := s.Synthesize("binance", "BTC/USDT", 43)

	if a.Price == b.Price && a.Change24h == b.Change24h {
		t.Error("consecutive buckets should (almost surely) differ")
	}
}

func TestSynthesizeVariesAcrossVenues(t *testing.T) {
	s := New(DefaultBaselines(), 10*time.Second)

	a := s.Synthesize("binance", "BTC/USDT", 42)
	b := s.Synthesize("kraken", "BTC/USDT", 42)

	if a.Price == b.Price {
		t.Error("venues should carry distinct synthetic levels")
	}
}

func TestSynthesizePlausibility(t *testing.T) {
	s := New(DefaultBaselines(), 10*time.Second)

	tk := s.Synthesize("okx", "BTC/USDT", 7)

	if tk.Source != model.SourceFallback {
		t.Errorf("Source = %q, want fallback", tk.Source)
	}
	if tk.Venue != "okx" || tk.Pair != "BTC/USDT" {
		t.Errorf("identity = %s %s", tk.Venue, tk.Pair)
	}
	if tk.Price <= 0 {
		t.Errorf("Price = %v, want > 0", tk.Price)
	}
	// Within a few percent of the baseline.
	if math.Abs(tk.Price-97000)/97000 > 0.05 {
		t.Errorf("Price = %v, want near 97000", tk.Price)
	}
	if tk.Volume < 0 {
		t.Errorf("Volume = %v, want >= 0", tk.Volume)
	}
	if math.Abs(tk.Change24h) > syntheticVolPct {
		t.Errorf("Change24h = %v, want within ±%v", tk.Change24h, syntheticVolPct)
	}
	if tk.High24h < tk.Low24h {
		t.Errorf("High24h %v < Low24h %v", tk.High24h, tk.Low24h)
	}
}

func TestSynthesizeUnknownPair(t *testing.T) {
	s := New(nil, 10*time.Second)

	tk := s.Synthesize("binance", "ABC/XYZ", 1)
	if tk.Price <= 0 {
		t.Errorf("Price = %v, want > 0 even for unknown pairs", tk.Price)
	}
}

func TestSynthesizeFromBaseline(t *testing.T) {
	s := New(DefaultBaselines(), 10*time.Second)

	tk := s.SynthesizeFrom("binance", "BTC/USDT", 50000, 42)
	if math.Abs(tk.Price-50000)/50000 > 0.05 {
		t.Errorf("Price = %v, want anchored near explicit baseline 50000", tk.Price)
	}
}

func TestBucket(t *testing.T) {
	s := New(nil, 10*time.Second)

	t0 := time.Unix(1700000000, 0)
	if s.Bucket(t0) != s.Bucket(t0.Add(5*time.Second)) {
		t.Error("instants 5s apart should share a 10s bucket")
	}
	if s.Bucket(t0) == s.Bucket(t0.Add(20*time.Second)) {
		t.Error("instants 20s apart should not share a 10s bucket")
	}
}
