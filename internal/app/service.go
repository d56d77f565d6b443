// Package app provides the core business service that implements the
// dependencies required by the HTTP API.
package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed11551/tasbih/internal/adapters/mq/queue"
	workerpool "github.com/ahmed11551/tasbih/internal/adapters/mq/worker"
	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/abuse"
	"github.com/ahmed11551/tasbih/internal/domain/counter"
	"github.com/ahmed11551/tasbih/internal/domain/dedupe"
	"github.com/ahmed11551/tasbih/internal/domain/localtime"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/report"
	"github.com/ahmed11551/tasbih/internal/domain/session"
	"github.com/ahmed11551/tasbih/internal/domain/syncer"
	"github.com/ahmed11551/tasbih/internal/perf"
	"github.com/ahmed11551/tasbih/pkg/logger"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// Default service configuration constants.
const (
	defaultRecentEventCount = 20
	perfCleanupInterval     = time.Minute
)

// GoalRequest is the input to goal creation/upsert.
type GoalRequest struct {
	UserID      string
	Category    string
	ItemID      string
	Kind        model.GoalKind
	TargetCount int
	Segment     string
}

// BootstrapResult is the initial payload a client needs to render.
type BootstrapResult struct {
	User         model.User           `json:"user"`
	ActiveGoal   *model.Goal          `json:"active_goal,omitempty"`
	TodayBucket  model.DailyBucket    `json:"today_bucket"`
	RecentEvents []model.CounterEvent `json:"recent_events"`
}

// Service wires the counting core together.
type Service struct {
	mu sync.RWMutex

	// Core components
	store      repository.Store
	recorder   *counter.Recorder
	sessions   *session.Manager
	reports    *report.Builder
	reconciler *syncer.Reconciler
	tracker    *perf.Tracker
	intake     queue.Queue
	workers    *workerpool.Pool
	jobSeen    dedupe.Deduper

	// Webhook job ledger, process-local.
	jobsMu sync.RWMutex
	jobs   map[string]model.CalcJob

	// Configuration
	dbPath        string
	dedupeSize    int
	queueCapacity int
	workerCount   int
	recentEvents  int
	perfOpts      []perf.Option
	abuseOpts     []abuse.Option

	// State
	started bool
	stopCh  chan struct{}

	logger logger.Logger
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithSQLitePath routes storage to a SQLite database file instead of
// the in-memory store.
func WithSQLitePath(path string) Option {
	return func(s *Service) {
		s.dbPath = path
	}
}

// WithStore injects a prebuilt store (used by tests).
func WithStore(store repository.Store) Option {
	return func(s *Service) {
		if store != nil {
			s.store = store
		}
	}
}

// WithDedupeSize bounds the idempotency-key caches.
func WithDedupeSize(size int) Option {
	return func(s *Service) {
		if size > 0 {
			s.dedupeSize = size
		}
	}
}

// WithQueueCapacity bounds the webhook intake queue.
func WithQueueCapacity(capacity int) Option {
	return func(s *Service) {
		if capacity > 0 {
			s.queueCapacity = capacity
		}
	}
}

// WithWorkerCount sets the number of webhook workers.
func WithWorkerCount(count int) Option {
	return func(s *Service) {
		if count > 0 {
			s.workerCount = count
		}
	}
}

// WithRecentEventCount sets how many log entries bootstrap returns.
func WithRecentEventCount(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.recentEvents = n
		}
	}
}

// WithPerfOptions forwards options to the request tracker.
func WithPerfOptions(opts ...perf.Option) Option {
	return func(s *Service) {
		s.perfOpts = append(s.perfOpts, opts...)
	}
}

// WithAbuseOptions forwards options to the anti-abuse monitor.
func WithAbuseOptions(opts ...abuse.Option) Option {
	return func(s *Service) {
		s.abuseOpts = append(s.abuseOpts, opts...)
	}
}

// WithLogger sets a custom logger for the service.
func WithLogger(l logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// New constructs a Service with default configuration.
func New(opts ...Option) *Service {
	s := &Service{
		dedupeSize:    50000,
		queueCapacity: 4096,
		workerCount:   2,
		recentEvents:  defaultRecentEventCount,
		jobs:          make(map[string]model.CalcJob),
		stopCh:        make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Start initializes and starts the service components.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.started {
		return nil
	}
	if s.logger == nil {
		s.logger = logger.Get()
	}

	if s.store == nil {
		if s.dbPath != "" {
			store, err := repository.NewSQLStore(ctx, s.dbPath)
			if err != nil {
				return fmt.Errorf("open sqlite store: %w", err)
			}
			s.store = store
			s.logger.Info(ctx, "using sqlite store", logger.String("path", s.dbPath))
		} else {
			s.store = repository.NewMemStore()
			s.logger.Info(ctx, "using in-memory store")
		}
	}

	monitor := abuse.NewMonitor(s.store, s.abuseOpts...)
	s.recorder = counter.NewRecorder(s.store, monitor, s.logger.Named("counter"))
	s.sessions = session.NewManager(s.store, s.logger.Named("session"))
	s.reports = report.NewBuilder(s.store)
	s.reconciler = syncer.NewReconciler(
		s.store,
		s.recorder,
		dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize)),
		s.logger.Named("syncer"),
	)
	s.tracker = perf.NewTracker(s.logger.Named("perf"), s.perfOpts...)
	s.jobSeen = dedupe.NewInMemoryDeduper(dedupe.WithMaxSize(s.dedupeSize))

	s.intake = queue.NewInMemoryQueue(queue.WithCapacity(s.queueCapacity))
	s.workers = workerpool.NewPool(s.workerCount, s.intake, s)
	s.workers.Start(ctx)

	go s.perfCleanupLoop(ctx)

	s.started = true
	s.logger.Info(ctx, "counting service started",
		logger.Int("workers", s.workerCount),
		logger.Int("queueCapacity", s.queueCapacity),
		logger.Int("dedupeSize", s.dedupeSize),
	)
	return nil
}

// Stop gracefully shuts down the service.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.started {
		return
	}
	ctx := context.Background()
	s.logger.Info(ctx, "stopping counting service...")

	if s.intake != nil {
		_ = s.intake.Close()
	}
	if s.workers != nil {
		if err := s.workers.Stop(); err != nil {
			s.logger.Warn(ctx, "worker pool stop", logger.Error(err))
		}
	}
	if closer, ok := s.store.(interface{ Close() error }); ok {
		_ = closer.Close()
	}

	select {
	case <-s.stopCh:
	default:
		close(s.stopCh)
	}

	s.started = false
	s.logger.Info(ctx, "counting service stopped")
}

func (s *Service) perfCleanupLoop(ctx context.Context) {
	ticker := time.NewTicker(perfCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case <-ticker.C:
			if evicted := s.tracker.Cleanup(); evicted > 0 {
				s.logger.Debug(ctx, "evicted aged samples", logger.Int("evicted", evicted))
			}
		}
	}
}

// Bootstrap returns the initial client payload: profile, active goal,
// today's bucket (zeroed when no counts exist yet), and recent entries.
func (s *Service) Bootstrap(ctx context.Context, userID string) (BootstrapResult, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("load user: %w", err)
	}
	tz := user.Timezone
	if tz == "" {
		tz = "UTC"
	}

	out := BootstrapResult{User: user}

	goal, err := s.store.ActiveGoal(ctx, userID)
	switch {
	case err == nil:
		out.ActiveGoal = &goal
	case errors.Is(err, repository.ErrNotFound):
		// no active goal
	default:
		return BootstrapResult{}, fmt.Errorf("load active goal: %w", err)
	}

	today, err := s.todayBucket(ctx, userID, tz)
	if err != nil {
		return BootstrapResult{}, err
	}
	out.TodayBucket = today

	recent, err := s.store.ListRecentEvents(ctx, userID, s.recentEvents)
	if err != nil {
		return BootstrapResult{}, fmt.Errorf("load recent events: %w", err)
	}
	out.RecentEvents = recent
	return out, nil
}

func (s *Service) todayBucket(ctx context.Context, userID, tz string) (model.DailyBucket, error) {
	date, err := localtime.Today(tz)
	if err != nil {
		return model.DailyBucket{}, fmt.Errorf("resolve today: %w", err)
	}
	bucket, err := s.store.GetBucket(ctx, userID, date)
	if errors.Is(err, repository.ErrNotFound) {
		return model.NewDailyBucket(userID, date), nil
	}
	if err != nil {
		return model.DailyBucket{}, fmt.Errorf("load bucket: %w", err)
	}
	return bucket, nil
}

// UpsertGoal creates a goal, or updates the matching one when a segment
// keys it to an existing (user, category, segment) goal.
func (s *Service) UpsertGoal(ctx context.Context, req GoalRequest) (model.Goal, error) {
	goal := model.Goal{
		ID:          uuid.NewString(),
		UserID:      req.UserID,
		Category:    req.Category,
		ItemID:      req.ItemID,
		Kind:        req.Kind,
		TargetCount: req.TargetCount,
		Status:      model.GoalActive,
		Segment:     req.Segment,
		CreatedAt:   time.Now().UTC(),
	}
	stored, err := s.store.UpsertGoal(ctx, goal)
	if err != nil {
		return model.Goal{}, fmt.Errorf("upsert goal: %w", err)
	}
	return stored, nil
}

// StartSession opens a fresh session, force-closing any prior open one.
func (s *Service) StartSession(ctx context.Context, req session.StartRequest) (model.Session, error) {
	return s.sessions.Start(ctx, req)
}

// Tap records one counter event.
func (s *Service) Tap(ctx context.Context, req counter.TapRequest) (counter.TapResult, error) {
	return s.recorder.Tap(ctx, req)
}

// MarkLearned completes a learning goal.
func (s *Service) MarkLearned(ctx context.Context, userID, goalID string) (counter.GoalSummary, error) {
	return s.recorder.MarkLearned(ctx, userID, goalID, "")
}

// DailyReport builds the heatmap report for one local day.
func (s *Service) DailyReport(ctx context.Context, userID, date string) (report.Daily, error) {
	return s.reports.Daily(ctx, userID, date)
}

// SyncOffline replays a batch of offline events.
func (s *Service) SyncOffline(ctx context.Context, userID string, events []syncer.Event) []syncer.Result {
	return s.reconciler.Sync(ctx, userID, events)
}

// RecordSample feeds one request sample into the latency tracker.
func (s *Service) RecordSample(ctx context.Context, sample perf.Sample) {
	s.tracker.Record(ctx, sample)
}

// PerfStats aggregates tracked request latency.
func (s *Service) PerfStats(endpoint, method string, window time.Duration) []perf.Stats {
	return s.tracker.Aggregate(endpoint, method, window)
}

// AcceptNotification ingests one webhook message. It reports duplicate
// job ids without re-enqueueing and reports accepted=false only on
// backpressure; callers ack the sender either way.
func (s *Service) AcceptNotification(ctx context.Context, n model.CalcNotification) (accepted, duplicate bool) {
	key := n.JobID + "/" + n.Event
	if s.jobSeen.SeenAndRecord(ctx, key) {
		metrics.RecordWebhookDuplicate()
		return false, true
	}
	if ok := s.intake.Enqueue(ctx, n); !ok {
		s.jobSeen.Unrecord(ctx, key)
		s.logger.Warn(ctx, "webhook intake backpressure", logger.String("job_id", n.JobID))
		return false, false
	}
	metrics.RecordWebhookJob(n.Event)
	return true, false
}

// Apply updates the job ledger from one notification. It implements the
// worker pool's Applier.
func (s *Service) Apply(ctx context.Context, n queue.Notification) error {
	status := ""
	switch n.Event {
	case "calculation.completed":
		status = "completed"
	case "calculation.failed":
		status = "failed"
	case "calculation.progress":
		status = "progress"
	default:
		// Unknown events are acknowledged upstream; never error here.
		s.logger.Warn(ctx, "unknown webhook event", logger.String("event", n.Event))
		return nil
	}

	s.jobsMu.Lock()
	s.jobs[n.JobID] = model.CalcJob{
		JobID:     n.JobID,
		Status:    status,
		Progress:  n.Progress,
		Error:     n.Error,
		UpdatedAt: n.ReceivedAt,
	}
	s.jobsMu.Unlock()
	return nil
}

// CalcJob returns the last known state of a calculation job.
func (s *Service) CalcJob(jobID string) (model.CalcJob, bool) {
	s.jobsMu.RLock()
	defer s.jobsMu.RUnlock()
	job, ok := s.jobs[jobID]
	return job, ok
}

// GetStats returns service counters for monitoring.
func (s *Service) GetStats() map[string]interface{} {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := map[string]interface{}{
		"started":     s.started,
		"workerCount": s.workerCount,
	}
	if s.started {
		stats["queueLength"] = s.intake.Len()
		stats["trackedSamples"] = s.tracker.Size()
	}
	return stats
}
