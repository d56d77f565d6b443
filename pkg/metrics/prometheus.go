// Package metrics provides Prometheus metrics for the counting service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns all Prometheus metrics for the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         prometheus.Registerer

	// Counting path
	tapsProcessed  prometheus.Counter
	tapsSuspected  prometheus.Counter
	goalsCompleted prometheus.Counter

	// Offline sync
	syncReplayed   prometheus.Counter
	syncDuplicates prometheus.Counter
	syncFailures   prometheus.Counter

	// Webhook intake
	webhookJobs       *prometheus.CounterVec
	webhookDuplicates prometheus.Counter

	// Queue / worker health
	queueSize    prometheus.Gauge
	workerErrors prometheus.Counter

	// HTTP surface
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
}

// customRegistry keeps service metrics separate from the default registry
// so tests can register repeatedly without collisions.
var customRegistry = prometheus.NewRegistry()

var globalManager *Manager

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "tasbih",
		subsystem:        "counter",
		histogramBuckets: prometheus.DefBuckets,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() {
	auto := promauto.With(m.registry)

	m.tapsProcessed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "taps_processed_total",
		Help:      "Total number of counter events recorded",
	})

	m.tapsSuspected = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "taps_suspected_total",
		Help:      "Total number of taps flagged by the anti-abuse monitor",
	})

	m.goalsCompleted = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "goals_completed_total",
		Help:      "Total number of active to completed goal transitions",
	})

	m.syncReplayed = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_events_replayed_total",
		Help:      "Total number of offline events replayed into the log",
	})

	m.syncDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_events_duplicate_total",
		Help:      "Total number of offline events skipped as already synced",
	})

	m.syncFailures = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "sync_events_failed_total",
		Help:      "Total number of offline events that failed to replay",
	})

	m.webhookJobs = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "webhook_jobs_total",
			Help:      "Total number of webhook notifications by event",
		},
		[]string{"event"},
	)

	m.webhookDuplicates = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "webhook_jobs_duplicate_total",
		Help:      "Total number of webhook notifications skipped by job id",
	})

	m.queueSize = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "webhook_queue_size",
		Help:      "Current size of the webhook notification queue",
	})

	m.workerErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace,
		Subsystem: m.subsystem,
		Name:      "worker_errors_total",
		Help:      "Total number of webhook worker failures",
	})

	m.httpRequests = auto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests by endpoint and method",
		},
		[]string{"endpoint", "method", "status_code"},
	)

	m.httpRequestDuration = auto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: m.namespace,
			Subsystem: m.subsystem,
			Name:      "http_request_duration_milliseconds",
			Help:      "HTTP request duration in milliseconds",
			Buckets:   m.histogramBuckets,
		},
		[]string{"endpoint", "method", "status_code"},
	)
}

// RecordTapProcessed increments the recorded counter events counter.
func RecordTapProcessed() {
	globalManager.tapsProcessed.Inc()
}

// RecordTapSuspected increments the suspected taps counter.
func RecordTapSuspected() {
	globalManager.tapsSuspected.Inc()
}

// RecordGoalCompleted increments the completed goals counter.
func RecordGoalCompleted() {
	globalManager.goalsCompleted.Inc()
}

// RecordSyncReplayed increments the replayed offline events counter.
func RecordSyncReplayed() {
	globalManager.syncReplayed.Inc()
}

// RecordSyncDuplicate increments the already-synced events counter.
func RecordSyncDuplicate() {
	globalManager.syncDuplicates.Inc()
}

// RecordSyncFailure increments the failed offline events counter.
func RecordSyncFailure() {
	globalManager.syncFailures.Inc()
}

// RecordWebhookJob counts a webhook notification by event name.
func RecordWebhookJob(event string) {
	globalManager.webhookJobs.WithLabelValues(event).Inc()
}

// RecordWebhookDuplicate increments the duplicate webhook counter.
func RecordWebhookDuplicate() {
	globalManager.webhookDuplicates.Inc()
}

// UpdateQueueSize sets the current webhook queue size.
func UpdateQueueSize(size int) {
	globalManager.queueSize.Set(float64(size))
}

// RecordWorkerError increments the webhook worker failure counter.
func RecordWorkerError() {
	globalManager.workerErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, durationMs float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(durationMs)
}

// GetRegistry returns the registry holding the service metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
