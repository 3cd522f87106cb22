package stream

import (
	"math"
	"math/rand"
	"sync"
	"time"
)

// Backoff computes reconnect delays: Base * 2^(attempt-1), capped at Max,
// plus a random jitter in [0, Jitter*delay).
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64

	mu  sync.Mutex
	rng func() float64
}

// NewBackoff creates a backoff seeded from the clock.
func NewBackoff(base, max time.Duration, jitter float64) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	if jitter < 0 || jitter > 1 {
		jitter = 0.2
	}
	r := rand.New(rand.NewSource(time.Now().UnixNano()))
	return &Backoff{Base: base, Max: max, Jitter: jitter, rng: r.Float64}
}

// WithRand replaces the jitter source. f must return values in [0, 1).
func (b *Backoff) WithRand(f func() float64) *Backoff {
	b.mu.Lock()
	b.rng = f
	b.mu.Unlock()
	return b
}

// BaseDelay is the delay for attempt n without jitter.
func (b *Backoff) BaseDelay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(b.Base) * math.Pow(2, float64(attempt-1))
	if delay > float64(b.Max) || math.IsInf(delay, 0) {
		delay = float64(b.Max)
	}
	return time.Duration(delay)
}

// Delay is the jittered delay for attempt n (1-based).
func (b *Backoff) Delay(attempt int) time.Duration {
	delay := b.BaseDelay(attempt)
	if b.Jitter <= 0 {
		return delay
	}
	b.mu.Lock()
	r := b.rng()
	b.mu.Unlock()
	return delay + time.Duration(r*b.Jitter*float64(delay))
}
