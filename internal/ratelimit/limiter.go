// Package ratelimit implements the per-client sliding-window rate limiter.
//
// The limiter counts admitted requests inside a trailing one-second window
// and rejects anything beyond the configured maximum. There is no queuing
// and no delay: callers that get rejected are expected to back off and
// retry on their own schedule.
package ratelimit

import (
	"sync"
	"time"
)

// Window is the trailing interval over which requests are counted.
const Window = time.Second

// Result is the outcome of an admission check.
type Result struct {
	// Allowed reports whether the request was admitted.
	Allowed bool

	// Remaining is the number of slots left in the current window
	// after this check.
	Remaining int

	// RetryAfter is how long until a slot frees up. Only meaningful
	// when Allowed is false.
	RetryAfter time.Duration
}

// Limiter is a sliding-window counter owned by exactly one client instance.
// It is safe for concurrent use: the admission check and the timestamp
// recording happen under one lock, so two concurrent calls can never both
// take the last remaining slot.
type Limiter struct {
	mu         sync.Mutex
	max        int
	timestamps []time.Time
}

// New creates a Limiter admitting at most max requests per trailing second.
// max <= 0 means unbounded: Allow always admits and records no state.
func New(max int) *Limiter {
	return &Limiter{max: max}
}

// Allow checks whether a request arriving at now may proceed. Timestamps
// older than one second are pruned, then the remaining count decides
// admission. Admitted requests are recorded; rejected ones are not.
func (l *Limiter) Allow(now time.Time) Result {
	if l.max <= 0 {
		return Result{Allowed: true, Remaining: -1}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.pruneLocked(now)

	if len(l.timestamps) >= l.max {
		oldest := l.timestamps[0]
		return Result{
			Allowed:    false,
			Remaining:  0,
			RetryAfter: oldest.Add(Window).Sub(now),
		}
	}

	l.timestamps = append(l.timestamps, now)
	return Result{
		Allowed:   true,
		Remaining: l.max - len(l.timestamps),
	}
}

// Size returns the number of timestamps currently tracked.
// Useful for tests and monitoring.
func (l *Limiter) Size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.timestamps)
}

// pruneLocked drops timestamps that have aged out of the window.
// Must be called with l.mu held.
func (l *Limiter) pruneLocked(now time.Time) {
	cutoff := now.Add(-Window)
	i := 0
	for i < len(l.timestamps) && !l.timestamps[i].After(cutoff) {
		i++
	}
	if i > 0 {
		l.timestamps = append(l.timestamps[:0], l.timestamps[i:]...)
	}
}
