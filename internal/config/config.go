// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - External errors must be wrapped via this package's error helpers.
package config

import (
	"runtime"
)

// Config contains process configuration. Extend as needed.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// DBPath points at the SQLite database file. Empty selects the
	// in-memory store.
	DBPath string `koanf:"db_path"`

	// WebhookQueueSize bounds the in-memory notification queue.
	WebhookQueueSize int `koanf:"webhook_queue_size"`

	// WorkerCount sets the number of webhook apply workers.
	WorkerCount int `koanf:"worker_count"`

	// DedupeSize sets the size of the offline-replay dedupe cache.
	DedupeSize int `koanf:"dedupe_size"`

	// RecentEventCount caps the event tail returned by bootstrap.
	RecentEventCount int `koanf:"recent_event_count"`

	// BurstWindowMS and BurstThreshold tune the advisory burst check:
	// more than BurstThreshold counts inside the window flags the tap.
	BurstWindowMS  int `koanf:"burst_window_ms"`
	BurstThreshold int `koanf:"burst_threshold"`

	// PerfCapacity bounds retained latency samples; PerfRetentionMin is
	// their maximum age in minutes; SlowThresholdMS marks a request as
	// slow in the logs.
	PerfCapacity     int `koanf:"perf_capacity"`
	PerfRetentionMin int `koanf:"perf_retention_min"`
	SlowThresholdMS  int `koanf:"slow_threshold_ms"`
}

// New creates a Config populated with defaults.
func New() *Config {
	return &Config{
		LogLevel:         "info",
		Addr:             ":9080",
		DBPath:           "",
		WebhookQueueSize: 4096,
		WorkerCount:      runtime.NumCPU(),
		DedupeSize:       50_000,
		RecentEventCount: 20,
		BurstWindowMS:    1000,
		BurstThreshold:   100,
		PerfCapacity:     10_000,
		PerfRetentionMin: 60,
		SlowThresholdMS:  500,
	}
}
