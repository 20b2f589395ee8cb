package infra

import (
	"time"
)

const (
	defaultBaseDelay = 1 * time.Second
	defaultMaxDelay  = 60 * time.Second
)

// Backoff is an exponential retry schedule: Base * 2^retry, capped at Max.
type Backoff struct {
	Base time.Duration
	Max  time.Duration
}

// DefaultBackoff is the schedule used for stream reconnects.
var DefaultBackoff = Backoff{Base: defaultBaseDelay, Max: defaultMaxDelay}

// Delay returns the wait before the given retry. A negative retry count returns Base.
// Zero fields fall back to the defaults.
func (b Backoff) Delay(retry int) time.Duration {
	base, max := b.Base, b.Max
	if base <= 0 {
		base = defaultBaseDelay
	}
	if max <= 0 {
		max = defaultMaxDelay
	}
	if max < base {
		max = base
	}
	if retry < 0 {
		return base
	}

	// 2^30 * 1ns already exceeds any sane cap; stop shifting before overflow.
	if retry > 30 {
		return max
	}

	d := base * time.Duration(1<<retry)
	if d > max || d <= 0 {
		return max
	}
	return d
}

// CalculateBackoff returns the default exponential backoff for a retry count:
// 1s, 2s, 4s ... capped at 60s.
func CalculateBackoff(retryCount int) time.Duration {
	return DefaultBackoff.Delay(retryCount)
}
