package collector

import "time"

// Backoff tracks consecutive failures and gates retry attempts with
// an exponentially growing delay.
type Backoff struct {
	base     time.Duration
	max      time.Duration
	failures int
	next     time.Time
	now      func() time.Time
}

func NewBackoff(base, max time.Duration) Backoff {
	return Backoff{base: base, max: max, now: time.Now}
}

// Ready reports whether enough time has passed since the last
// failure to try again.
func (b *Backoff) Ready() bool {
	return !b.now().Before(b.next)
}

// NextAttempt returns the earliest time a retry is allowed.
func (b *Backoff) NextAttempt() time.Time {
	return b.next
}

// Failure doubles the delay, capped at max.
func (b *Backoff) Failure() {
	delay := b.base << b.failures
	if delay > b.max || delay <= 0 {
		delay = b.max
	}
	b.failures++
	b.next = b.now().Add(delay)
}

// Success resets the backoff to its initial state.
func (b *Backoff) Success() {
	b.failures = 0
	b.next = time.Time{}
}
