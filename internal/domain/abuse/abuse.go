// Package abuse flags physically implausible tap bursts.
//
// The verdict is advisory: it rides along on the response and the log
// entry as a suspected flag and never blocks the write. Replayed offline
// events are exempt because they describe past activity, not a live burst.
package abuse

import (
	"context"
	"fmt"
	"time"
)

// Default burst detection parameters. More than defaultThreshold counted
// repetitions inside defaultWindow is treated as scripted input.
const (
	defaultWindow    = time.Second
	defaultThreshold = 100
)

// TapVolumeReader is the slice of the record store the monitor needs.
type TapVolumeReader interface {
	// SumTapDeltas sums abs(delta) over tap entries of the user with
	// timestamp >= since.
	SumTapDeltas(ctx context.Context, userID string, since time.Time) (int, error)
}

// Monitor checks whether a candidate tap pushes a user over the burst
// threshold.
type Monitor interface {
	// Check reports suspected=true when abs(delta) plus the trailing
	// window's tap volume exceeds the threshold.
	Check(ctx context.Context, userID string, delta int) (bool, error)
}

// Option applies a configuration option to the window monitor.
type Option func(*windowMonitor)

// WithWindow sets the trailing inspection window.
func WithWindow(w time.Duration) Option {
	return func(m *windowMonitor) {
		if w > 0 {
			m.window = w
		}
	}
}

// WithThreshold sets the burst threshold.
func WithThreshold(n int) Option {
	return func(m *windowMonitor) {
		if n > 0 {
			m.threshold = n
		}
	}
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(m *windowMonitor) {
		if now != nil {
			m.now = now
		}
	}
}

// windowMonitor implements Monitor against the event log.
type windowMonitor struct {
	store     TapVolumeReader
	window    time.Duration
	threshold int
	now       func() time.Time
}

// NewMonitor creates a Monitor reading recent tap volume from store.
func NewMonitor(store TapVolumeReader, opts ...Option) Monitor {
	m := &windowMonitor{
		store:     store,
		window:    defaultWindow,
		threshold: defaultThreshold,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *windowMonitor) Check(ctx context.Context, userID string, delta int) (bool, error) {
	since := m.now().UTC().Add(-m.window)
	sum, err := m.store.SumTapDeltas(ctx, userID, since)
	if err != nil {
		return false, fmt.Errorf("read tap window: %w", err)
	}
	if delta < 0 {
		delta = -delta
	}
	return sum+delta > m.threshold, nil
}
