// Package counter records increment and decrement events.
//
// The Recorder is the central write path of the service: it orchestrates
// the anti-abuse check, the atomic goal-progress update, the
// timezone-local daily bucket accumulation, and the append-only event
// log for a single request.
package counter

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/abuse"
	"github.com/ahmed11551/tasbih/internal/domain/localtime"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/pkg/logger"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// TapRequest is one increment/decrement against an open session.
type TapRequest struct {
	SessionID string
	Delta     int
	EventType model.EventType
	// OfflineID is set only on replayed events; it exempts the event
	// from the live burst check and keys idempotent de-duplication.
	OfflineID string
	// Segment optionally assigns the count to a daily bucket slot. When
	// empty the session's segment tag is used.
	Segment string
}

// GoalSummary reports the goal state after a tap.
type GoalSummary struct {
	GoalID      string     `json:"goal_id"`
	Progress    int        `json:"progress"`
	TargetCount int        `json:"target_count"`
	Status      string     `json:"status"`
	IsCompleted bool       `json:"is_completed"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`
	// CompletedNow is true only on the request that fired the
	// active -> completed transition.
	CompletedNow bool `json:"completed_now"`
}

// TapResult is what a recorded event returns to the caller.
type TapResult struct {
	Value     int                `json:"value"`
	Goal      *GoalSummary       `json:"goal,omitempty"`
	Bucket    *model.DailyBucket `json:"daily_bucket,omitempty"`
	Suspected bool               `json:"suspected"`
}

// Recorder is the write path for counter events.
type Recorder struct {
	store   repository.Store
	monitor abuse.Monitor
	now     func() time.Time
	log     logger.Logger
}

// NewRecorder creates a Recorder.
func NewRecorder(store repository.Store, monitor abuse.Monitor, log logger.Logger) *Recorder {
	return &Recorder{store: store, monitor: monitor, now: time.Now, log: log}
}

// WithClock overrides the time source, for tests.
func (r *Recorder) WithClock(now func() time.Time) *Recorder {
	r.now = now
	return r
}

// Tap records one counter event against a session.
//
// Abuse verdicts are advisory and never block the write; a failing
// verdict read degrades to "not suspected" with a warning instead of
// failing the request. Store write failures abort the request.
func (r *Recorder) Tap(ctx context.Context, req TapRequest) (TapResult, error) {
	if req.Delta == 0 {
		return TapResult{}, ErrInvalidDelta
	}
	if req.EventType == "" {
		req.EventType = model.EventTap
	}

	sess, err := r.store.GetSession(ctx, req.SessionID)
	if errors.Is(err, repository.ErrNotFound) {
		return TapResult{}, fmt.Errorf("%w: %s", ErrSessionNotFound, req.SessionID)
	}
	if err != nil {
		return TapResult{}, fmt.Errorf("load session: %w", err)
	}

	// Refuse duplicates before any mutation so a replayed offline id
	// cannot re-apply the goal or bucket delta.
	if req.OfflineID != "" {
		dup, err := r.store.HasOfflineID(ctx, sess.UserID, req.OfflineID)
		if err != nil {
			return TapResult{}, fmt.Errorf("check offline id: %w", err)
		}
		if dup {
			return TapResult{}, fmt.Errorf("%w: %s", repository.ErrDuplicateOffline, req.OfflineID)
		}
	}

	segment := req.Segment
	if segment == "" {
		segment = sess.Segment
	}
	if segment != "" && !model.ValidSegment(segment) {
		return TapResult{}, fmt.Errorf("%w: %s", ErrInvalidSegment, segment)
	}

	tz := r.userTimezone(ctx, sess.UserID)
	now := r.now().UTC()

	suspected := false
	if req.OfflineID == "" {
		suspected, err = r.monitor.Check(ctx, sess.UserID, req.Delta)
		if err != nil {
			r.log.Warn(ctx, "abuse check failed; treating tap as clean",
				logger.String("user_id", sess.UserID), logger.Error(err))
			suspected = false
		}
		if suspected {
			metrics.RecordTapSuspected()
			r.log.Warn(ctx, "tap volume over burst threshold",
				logger.String("user_id", sess.UserID),
				logger.String("session_id", sess.ID),
				logger.Int("delta", req.Delta),
			)
		}
	}

	result := TapResult{Suspected: suspected}

	if sess.GoalID != "" {
		upd, err := r.store.ApplyGoalDelta(ctx, sess.GoalID, req.Delta, now)
		if errors.Is(err, repository.ErrNotFound) {
			return TapResult{}, fmt.Errorf("%w: %s", ErrGoalNotFound, sess.GoalID)
		}
		if err != nil {
			return TapResult{}, fmt.Errorf("apply goal delta: %w", err)
		}
		if upd.CompletedNow {
			metrics.RecordGoalCompleted()
			r.log.Info(ctx, "goal completed",
				logger.String("goal_id", upd.Goal.ID),
				logger.Int("progress", upd.Goal.Progress),
			)
		}
		result.Value = upd.Goal.Progress
		result.Goal = &GoalSummary{
			GoalID:       upd.Goal.ID,
			Progress:     upd.Goal.Progress,
			TargetCount:  upd.Goal.TargetCount,
			Status:       string(upd.Goal.Status),
			IsCompleted:  upd.Goal.Completed(),
			CompletedAt:  upd.Goal.CompletedAt,
			CompletedNow: upd.CompletedNow,
		}
	} else {
		// Session-local running value for goal-less sessions.
		prior, err := r.store.SumSessionDeltas(ctx, sess.ID)
		if err != nil {
			return TapResult{}, fmt.Errorf("sum session deltas: %w", err)
		}
		value := prior + req.Delta
		if value < 0 {
			value = 0
		}
		result.Value = value
	}

	if segment != "" {
		date, err := localtime.Date(now, tz)
		if err != nil {
			return TapResult{}, fmt.Errorf("resolve local date: %w", err)
		}
		bucket, err := r.store.AddToBucket(ctx, sess.UserID, date, segment, req.Delta)
		if err != nil {
			return TapResult{}, fmt.Errorf("update daily bucket: %w", err)
		}
		result.Bucket = &bucket
	}

	event := model.CounterEvent{
		ID:         uuid.NewString(),
		UserID:     sess.UserID,
		SessionID:  sess.ID,
		GoalID:     sess.GoalID,
		Type:       req.EventType,
		Delta:      req.Delta,
		ValueAfter: result.Value,
		Segment:    segment,
		Timestamp:  now,
		Timezone:   tz,
		OfflineID:  req.OfflineID,
		Suspected:  suspected,
	}
	if err := r.store.InsertEvent(ctx, event); err != nil {
		return TapResult{}, fmt.Errorf("append event: %w", err)
	}

	metrics.RecordTapProcessed()
	return result, nil
}

// MarkLearned completes a learning goal and appends a learn_mark entry.
// Idempotent at the goal level: completing an already completed goal does
// not re-fire the transition or move CompletedAt.
func (r *Recorder) MarkLearned(ctx context.Context, userID, goalID, offlineID string) (GoalSummary, error) {
	goal, err := r.store.GetGoal(ctx, goalID)
	if errors.Is(err, repository.ErrNotFound) {
		return GoalSummary{}, fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}
	if err != nil {
		return GoalSummary{}, fmt.Errorf("load goal: %w", err)
	}
	if userID != "" && goal.UserID != userID {
		return GoalSummary{}, fmt.Errorf("%w: %s", ErrGoalNotFound, goalID)
	}

	now := r.now().UTC()
	upd, err := r.store.MarkGoalCompleted(ctx, goalID, now)
	if err != nil {
		return GoalSummary{}, fmt.Errorf("mark goal completed: %w", err)
	}
	if upd.CompletedNow {
		metrics.RecordGoalCompleted()
	}

	tz := r.userTimezone(ctx, goal.UserID)
	event := model.CounterEvent{
		ID:         uuid.NewString(),
		UserID:     goal.UserID,
		SessionID:  "",
		GoalID:     goal.ID,
		Type:       model.EventLearnMark,
		Delta:      1,
		ValueAfter: upd.Goal.Progress,
		Segment:    goal.Segment,
		Timestamp:  now,
		Timezone:   tz,
		OfflineID:  offlineID,
	}
	if err := r.store.InsertEvent(ctx, event); err != nil {
		return GoalSummary{}, fmt.Errorf("append event: %w", err)
	}

	return GoalSummary{
		GoalID:       upd.Goal.ID,
		Progress:     upd.Goal.Progress,
		TargetCount:  upd.Goal.TargetCount,
		Status:       string(upd.Goal.Status),
		IsCompleted:  true,
		CompletedAt:  upd.Goal.CompletedAt,
		CompletedNow: upd.CompletedNow,
	}, nil
}

// userTimezone resolves the capture timezone for a user. Profiles are
// owned by an external service; a missing profile degrades to UTC rather
// than failing the count.
func (r *Recorder) userTimezone(ctx context.Context, userID string) string {
	u, err := r.store.GetUser(ctx, userID)
	if err != nil || u.Timezone == "" {
		if err != nil && !errors.Is(err, repository.ErrNotFound) {
			r.log.Warn(ctx, "profile lookup failed; falling back to UTC",
				logger.String("user_id", userID), logger.Error(err))
		}
		return "UTC"
	}
	return u.Timezone
}
