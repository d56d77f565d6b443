// Package perf tracks per-request latency and computes grouped
// percentile statistics.
package perf

import "time"

// Option applies a configuration option to the Tracker.
type Option func(*Tracker)

// WithCapacity bounds the number of retained samples.
func WithCapacity(n int) Option {
	return func(t *Tracker) {
		if n > 0 {
			t.capacity = n
		}
	}
}

// WithRetention sets the maximum sample age.
func WithRetention(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.retention = d
		}
	}
}

// WithSlowThreshold sets the duration above which requests log a warning.
func WithSlowThreshold(d time.Duration) Option {
	return func(t *Tracker) {
		if d > 0 {
			t.slow = d
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(t *Tracker) {
		if now != nil {
			t.now = now
		}
	}
}
