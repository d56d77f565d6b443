// Package repository defines the record store contract and its
// implementations.
//
// The counting core only needs point lookups, inserts, and single-row
// mutations. The read-modify-write sequences on goals and daily buckets
// are concurrently writable (two devices tapping, or a live tap racing an
// offline replay), so those mutations live inside the store where each
// implementation can make them atomic: MemStore under one mutex, SQLStore
// inside a transaction. Callers never read-compute-write goal progress or
// bucket counters themselves.
package repository

import (
	"context"
	"time"

	"github.com/ahmed11551/tasbih/internal/domain/model"
)

// GoalUpdate is the outcome of an atomic goal mutation.
type GoalUpdate struct {
	Goal model.Goal
	// CompletedNow is true only on the single active -> completed
	// transition; replays and further taps report false.
	CompletedNow bool
}

// Store provides keyed access to the counting records.
type Store interface {
	// GetUser returns the profile snapshot for id.
	// Returns ErrNotFound if the user is unknown.
	GetUser(ctx context.Context, id string) (model.User, error)
	// PutUser inserts or replaces a profile snapshot. Profiles are owned
	// by an external service; this exists for seeding and tests.
	PutUser(ctx context.Context, u model.User) error

	// GetGoal returns a goal by id. Returns ErrNotFound if absent.
	GetGoal(ctx context.Context, id string) (model.Goal, error)
	// UpsertGoal inserts g, or, when g.Segment is non-empty and the user
	// already has a goal for (category, segment), updates that goal's
	// kind, item and target in place. Returns the stored goal.
	UpsertGoal(ctx context.Context, g model.Goal) (model.Goal, error)
	// ActiveGoal returns the most recently created active goal for the
	// user. Returns ErrNotFound if none exists.
	ActiveGoal(ctx context.Context, userID string) (model.Goal, error)
	// ApplyGoalDelta atomically sets progress = max(0, progress+delta).
	// When the new progress reaches the target on a not-yet-completed
	// goal it also sets status=completed and stamps CompletedAt with now;
	// an already completed goal keeps its status and CompletedAt.
	ApplyGoalDelta(ctx context.Context, goalID string, delta int, now time.Time) (GoalUpdate, error)
	// MarkGoalCompleted atomically completes a goal regardless of
	// progress. Idempotent: a second call reports CompletedNow=false and
	// leaves CompletedAt untouched.
	MarkGoalCompleted(ctx context.Context, goalID string, now time.Time) (GoalUpdate, error)
	// ListGoalsCompletedBetween returns goals whose CompletedAt falls in
	// the half-open UTC range [from, to).
	ListGoalsCompletedBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Goal, error)

	// GetSession returns a session by id. Returns ErrNotFound if absent.
	GetSession(ctx context.Context, id string) (model.Session, error)
	// InsertSession stores a new session.
	InsertSession(ctx context.Context, s model.Session) error
	// CloseOpenSessions stamps EndedAt=now on every open session of the
	// user and returns how many were closed.
	CloseOpenSessions(ctx context.Context, userID string, now time.Time) (int, error)

	// GetBucket returns the daily bucket for the user's local date.
	// Returns ErrNotFound if no bucket exists yet for that day.
	GetBucket(ctx context.Context, userID, date string) (model.DailyBucket, error)
	// AddToBucket lazily creates the bucket for (userID, date), atomically
	// adds delta to the named segment (floored at 0), recomputes the
	// total as the sum of all segments, and returns the updated bucket.
	AddToBucket(ctx context.Context, userID, date, segment string, delta int) (model.DailyBucket, error)

	// InsertEvent appends a counter log entry.
	InsertEvent(ctx context.Context, e model.CounterEvent) error
	// HasOfflineID reports whether any log entry of the user carries the
	// given offline id. This is the authoritative sync de-duplication check.
	HasOfflineID(ctx context.Context, userID, offlineID string) (bool, error)
	// SumTapDeltas sums abs(delta) over tap entries of the user with
	// Timestamp >= since.
	SumTapDeltas(ctx context.Context, userID string, since time.Time) (int, error)
	// SumSessionDeltas sums delta over all entries of a session; used as
	// the session-local running value for goal-less sessions.
	SumSessionDeltas(ctx context.Context, sessionID string) (int, error)
	// ListTapEvents returns tap entries of the user in [from, to),
	// ordered by timestamp.
	ListTapEvents(ctx context.Context, userID string, from, to time.Time) ([]model.CounterEvent, error)
	// ListRecentEvents returns up to n most recent entries of the user,
	// newest first.
	ListRecentEvents(ctx context.Context, userID string, n int) ([]model.CounterEvent, error)
}
