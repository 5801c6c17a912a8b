package quip

import (
	"sync/atomic"
	"time"
)

// Throttle holds the process-wide backoff deadline shared by all in-flight
// API calls. The deadline is monotonically non-decreasing for the lifetime
// of the process.
//
// Design decision: the deadline is a single atomically-updated unix-milli
// value behind a narrow accessor rather than a free global. The client
// receives a Throttle at construction so tests can observe and seed it
// deterministically.
type Throttle struct {
	// untilMilli is the deadline in milliseconds since epoch.
	// Zero means no throttle has been observed yet.
	untilMilli atomic.Int64
}

// NewThrottle creates a Throttle with no active deadline.
func NewThrottle() *Throttle {
	return &Throttle{}
}

// Until returns the current shared deadline. The zero time is returned when
// no throttle signal has been observed.
func (t *Throttle) Until() time.Time {
	milli := t.untilMilli.Load()
	if milli == 0 {
		return time.Time{}
	}
	return time.UnixMilli(milli)
}

// Extend publishes a newly observed deadline and returns the effective one.
//
// When the given deadline is later than the shared value it becomes the new
// shared deadline; otherwise the later shared value is returned unchanged.
// Concurrent callers therefore always converge on the single latest deadline,
// which prevents a thundering herd of calls each sleeping a different,
// possibly shorter, interval.
func (t *Throttle) Extend(deadline time.Time) time.Time {
	requested := deadline.UnixMilli()
	for {
		current := t.untilMilli.Load()
		if requested <= current {
			return time.UnixMilli(current)
		}
		if t.untilMilli.CompareAndSwap(current, requested) {
			return deadline
		}
	}
}
