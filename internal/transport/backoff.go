package transport

import "time"

// backoff doubles the reconnect delay after each consecutive failure up to a
// ceiling. It is not safe for concurrent use; the Transport guards it.
type backoff struct {
	initial  time.Duration
	max      time.Duration
	current  time.Duration
	failures int
}

func newBackoff(initial, max time.Duration) *backoff {
	return &backoff{initial: initial, max: max, current: initial}
}

// next returns the delay to wait before the coming attempt and advances the
// stored delay.
func (b *backoff) next() time.Duration {
	d := b.current
	b.failures++
	b.current *= 2
	if b.current > b.max {
		b.current = b.max
	}
	return d
}

// reset is called after a successful connect.
func (b *backoff) reset() {
	b.current = b.initial
	b.failures = 0
}
