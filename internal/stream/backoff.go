package stream

import (
	"math/rand/v2"
	"time"
)

// jitterFrac is the fraction of the computed delay that jitter may shave off.
const jitterFrac = 0.2

// Backoff computes reconnect delays: min(base * 2^attempt, max), reduced by
// up to jitterFrac of itself so concurrent subscribers do not reconnect in
// lockstep. The sequence (before jitter) is non-decreasing and bounded above
// by Max; jitter only ever subtracts, so the bound holds strictly.
//
// The policy is seedable so reconnect timing is deterministic under test.
type Backoff struct {
	base time.Duration
	max  time.Duration
	rng  *rand.Rand
}

// NewBackoff creates a policy with non-deterministic jitter.
func NewBackoff(base, max time.Duration) *Backoff {
	return NewSeededBackoff(base, max, rand.Uint64())
}

// NewSeededBackoff creates a policy whose jitter sequence is fixed by seed.
func NewSeededBackoff(base, max time.Duration, seed uint64) *Backoff {
	return &Backoff{
		base: base,
		max:  max,
		rng:  rand.New(rand.NewPCG(seed, seed)),
	}
}

// Delay returns the delay before reconnect attempt n (first retry is n=1).
func (b *Backoff) Delay(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}

	d := b.base
	for i := 0; i < attempt; i++ {
		d *= 2
		if d >= b.max {
			d = b.max
			break
		}
	}
	if d > b.max {
		d = b.max
	}

	jitter := time.Duration(b.rng.Float64() * jitterFrac * float64(d))
	return d - jitter
}
