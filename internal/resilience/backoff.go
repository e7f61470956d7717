package resilience

import (
	"sync"
	"time"
)

// Backoff yields progressively longer reconnect delays, capped at a maximum.
// It is safe for concurrent use.
type Backoff struct {
	mu         sync.Mutex
	initial    time.Duration
	max        time.Duration
	multiplier float64
	next       time.Duration
}

// NewBackoff creates a Backoff starting at initial and growing by multiplier
// up to max. A multiplier below 1 yields a fixed delay.
func NewBackoff(initial, max time.Duration, multiplier float64) *Backoff {
	if initial <= 0 {
		initial = time.Second
	}
	if max < initial {
		max = initial
	}
	if multiplier < 1 {
		multiplier = 1
	}
	return &Backoff{
		initial:    initial,
		max:        max,
		multiplier: multiplier,
		next:       initial,
	}
}

// Next returns the delay to wait before the upcoming attempt and advances the schedule.
func (b *Backoff) Next() time.Duration {
	b.mu.Lock()
	defer b.mu.Unlock()

	d := b.next
	grown := time.Duration(float64(b.next) * b.multiplier)
	b.next = min(grown, b.max)
	return d
}

// Reset restarts the schedule at the initial delay.
func (b *Backoff) Reset() {
	b.mu.Lock()
	b.next = b.initial
	b.mu.Unlock()
}
