// Package perf tracks per-request latency and computes grouped
// percentile statistics.
//
// The store is process-local and ephemeral: under multi-instance
// deployment each instance holds a partial view, and cross-instance
// aggregation belongs to an external collection layer. The Tracker is an
// explicit service object with injected capacity and retention; there is
// no package-level state.
package perf

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmed11551/tasbih/pkg/logger"
)

// Default tracker configuration constants.
const (
	defaultCapacity      = 10000
	defaultRetention     = time.Hour
	defaultSlowThreshold = 500 * time.Millisecond
)

// Sample is one recorded request.
type Sample struct {
	Endpoint   string
	Method     string
	Duration   time.Duration
	StatusCode int
	UserID     string
	Err        string
	At         time.Time
}

func (s Sample) failed() bool { return s.StatusCode >= 500 || s.Err != "" }

// Stats are the aggregated figures for one (method, endpoint) group.
type Stats struct {
	Method       string        `json:"method"`
	Endpoint     string        `json:"endpoint"`
	Count        int           `json:"count"`
	SuccessCount int           `json:"success_count"`
	ErrorCount   int           `json:"error_count"`
	AvgDuration  time.Duration `json:"avg_duration_ms"`
	P50          time.Duration `json:"p50_ms"`
	P95          time.Duration `json:"p95_ms"`
	P99          time.Duration `json:"p99_ms"`
	Min          time.Duration `json:"min_ms"`
	Max          time.Duration `json:"max_ms"`
}

// Tracker is a bounded in-memory ring of request samples.
type Tracker struct {
	mu        sync.Mutex
	samples   []Sample // ordered oldest first
	capacity  int
	retention time.Duration
	slow      time.Duration
	now       func() time.Time
	log       logger.Logger
}

// NewTracker creates a Tracker with the given options.
func NewTracker(log logger.Logger, opts ...Option) *Tracker {
	t := &Tracker{
		capacity:  defaultCapacity,
		retention: defaultRetention,
		slow:      defaultSlowThreshold,
		now:       time.Now,
		log:       log,
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Record appends a sample, evicting the oldest entries beyond capacity.
// Slow requests log at warning level, failures at error level.
func (t *Tracker) Record(ctx context.Context, s Sample) {
	if s.At.IsZero() {
		s.At = t.now().UTC()
	}

	t.mu.Lock()
	t.samples = append(t.samples, s)
	if over := len(t.samples) - t.capacity; over > 0 {
		t.samples = append(t.samples[:0:0], t.samples[over:]...)
	}
	t.mu.Unlock()

	if s.failed() {
		t.log.Error(ctx, "request failed",
			logger.String("endpoint", s.Endpoint),
			logger.String("method", s.Method),
			logger.Int("status", s.StatusCode),
			logger.String("error", s.Err),
		)
	} else if s.Duration > t.slow {
		t.log.Warn(ctx, "slow request",
			logger.String("endpoint", s.Endpoint),
			logger.String("method", s.Method),
			logger.Duration("duration", s.Duration),
		)
	}
}

// Cleanup drops samples older than the retention age and returns how
// many were evicted.
func (t *Tracker) Cleanup() int {
	cutoff := t.now().UTC().Add(-t.retention)

	t.mu.Lock()
	defer t.mu.Unlock()

	keep := 0
	for keep < len(t.samples) && t.samples[keep].At.Before(cutoff) {
		keep++
	}
	if keep == 0 {
		return 0
	}
	t.samples = append(t.samples[:0:0], t.samples[keep:]...)
	return keep
}

// Size returns the current number of retained samples.
func (t *Tracker) Size() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.samples)
}

// Aggregate filters samples to the trailing window and the optional
// endpoint/method, groups by (method, endpoint), and computes counts,
// average, nearest-rank percentiles, min and max per group.
func (t *Tracker) Aggregate(endpoint, method string, window time.Duration) []Stats {
	cutoff := t.now().UTC().Add(-window)

	t.mu.Lock()
	groups := make(map[string][]Sample)
	for _, s := range t.samples {
		if s.At.Before(cutoff) {
			continue
		}
		if endpoint != "" && s.Endpoint != endpoint {
			continue
		}
		if method != "" && s.Method != method {
			continue
		}
		key := s.Method + " " + s.Endpoint
		groups[key] = append(groups[key], s)
	}
	t.mu.Unlock()

	out := make([]Stats, 0, len(groups))
	for _, samples := range groups {
		out = append(out, aggregateGroup(samples))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Endpoint != out[j].Endpoint {
			return out[i].Endpoint < out[j].Endpoint
		}
		return out[i].Method < out[j].Method
	})
	return out
}

func aggregateGroup(samples []Sample) Stats {
	st := Stats{
		Method:   samples[0].Method,
		Endpoint: samples[0].Endpoint,
		Count:    len(samples),
	}

	durations := make([]time.Duration, 0, len(samples))
	var total time.Duration
	for _, s := range samples {
		durations = append(durations, s.Duration)
		total += s.Duration
		if s.failed() {
			st.ErrorCount++
		} else {
			st.SuccessCount++
		}
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })

	st.AvgDuration = total / time.Duration(len(durations))
	st.P50 = percentile(durations, 0.50)
	st.P95 = percentile(durations, 0.95)
	st.P99 = percentile(durations, 0.99)
	st.Min = durations[0]
	st.Max = durations[len(durations)-1]
	return st
}

// percentile uses the nearest-rank definition: index = floor(count * p)
// into the ascending list, clamped to the valid range.
func percentile(sorted []time.Duration, p float64) time.Duration {
	if len(sorted) == 0 {
		return 0
	}
	idx := int(float64(len(sorted)) * p)
	if idx >= len(sorted) {
		idx = len(sorted) - 1
	}
	return sorted[idx]
}
