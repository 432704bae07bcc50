package backoff

import "time"

// Backoff produces exponentially growing delays capped at a maximum.
// It is not safe for concurrent use.
type Backoff struct {
	base    time.Duration // starting delay
	max     time.Duration // maximum delay cap
	attempt int           // current attempt counter
}

// New creates a new backoff helper with base and max durations.
func New(base, max time.Duration) *Backoff {
	if base <= 0 {
		base = time.Second
	}
	if max < base {
		max = base
	}
	return &Backoff{
		base: base,
		max:  max,
	}
}

// Constant returns a Backoff whose Next always yields d.
func Constant(d time.Duration) *Backoff {
	return New(d, d)
}

// Next returns the delay for the current attempt and advances the counter.
// Delays double until they reach the cap.
func (b *Backoff) Next() time.Duration {
	delay := b.base << uint(b.attempt)
	if delay > b.max || delay <= 0 {
		delay = b.max
	} else {
		b.attempt++
	}
	return delay
}

// Attempt reports how many doublings have been applied so far.
func (b *Backoff) Attempt() int {
	return b.attempt
}

// Reset restarts the sequence at the base delay.
func (b *Backoff) Reset() {
	b.attempt = 0
}
