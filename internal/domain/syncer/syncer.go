// Package syncer replays batches of offline-captured events.
//
// Replays are idempotent by offline_id and sequential within one batch,
// which keeps the read-then-insert de-duplication race-free per call.
// Concurrent batches from different devices for the same user are closed
// by the store's unique offline_id constraint.
package syncer

import (
	"context"
	"errors"
	"fmt"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/counter"
	"github.com/ahmed11551/tasbih/internal/domain/dedupe"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/pkg/logger"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// Statuses reported per replayed event.
const (
	StatusSynced        = "synced"
	StatusAlreadySynced = "already_synced"
	StatusFailed        = "failed"
	StatusUnknownType   = "unknown_type"
)

// Event is one queued offline event to replay.
type Event struct {
	OfflineID string          `json:"offline_id"`
	SessionID string          `json:"session_id,omitempty"`
	GoalID    string          `json:"goal_id,omitempty"`
	EventType model.EventType `json:"event_type"`
	Delta     int             `json:"delta,omitempty"`
	Segment   string          `json:"segment,omitempty"`
}

// Result is the per-event outcome of a replay.
type Result struct {
	OfflineID string `json:"offline_id"`
	Status    string `json:"status"`
	Error     string `json:"error,omitempty"`
}

// Reconciler replays offline batches through the counter recorder.
type Reconciler struct {
	store    repository.Store
	recorder *counter.Recorder
	seen     dedupe.Deduper
	log      logger.Logger
}

// NewReconciler creates a Reconciler. The deduper is a fast path only;
// the store's offline_id uniqueness check stays authoritative.
func NewReconciler(store repository.Store, recorder *counter.Recorder, seen dedupe.Deduper, log logger.Logger) *Reconciler {
	return &Reconciler{store: store, recorder: recorder, seen: seen, log: log}
}

// Sync replays events in order. One bad event never aborts its siblings;
// each failure is captured in that event's result.
func (r *Reconciler) Sync(ctx context.Context, userID string, events []Event) []Result {
	results := make([]Result, 0, len(events))
	for _, e := range events {
		results = append(results, r.syncOne(ctx, userID, e))
	}
	return results
}

func (r *Reconciler) syncOne(ctx context.Context, userID string, e Event) Result {
	if e.OfflineID == "" {
		return Result{Status: StatusFailed, Error: "missing offline_id"}
	}
	res := Result{OfflineID: e.OfflineID}

	cacheKey := userID + "/" + e.OfflineID
	if r.seen.SeenAndRecord(ctx, cacheKey) {
		metrics.RecordSyncDuplicate()
		res.Status = StatusAlreadySynced
		return res
	}

	dup, err := r.store.HasOfflineID(ctx, userID, e.OfflineID)
	if err != nil {
		r.seen.Unrecord(ctx, cacheKey)
		metrics.RecordSyncFailure()
		res.Status = StatusFailed
		res.Error = fmt.Sprintf("offline id lookup: %v", err)
		return res
	}
	if dup {
		metrics.RecordSyncDuplicate()
		res.Status = StatusAlreadySynced
		return res
	}

	switch e.EventType {
	case model.EventTap:
		_, err = r.recorder.Tap(ctx, counter.TapRequest{
			SessionID: e.SessionID,
			Delta:     e.Delta,
			EventType: model.EventTap,
			OfflineID: e.OfflineID,
			Segment:   e.Segment,
		})
	case model.EventLearnMark:
		_, err = r.recorder.MarkLearned(ctx, userID, e.GoalID, e.OfflineID)
	default:
		// Unknown types are acknowledged and ignored so a stale client
		// queue can drain instead of retrying forever.
		r.log.Warn(ctx, "unknown offline event type",
			logger.String("offline_id", e.OfflineID),
			logger.String("event_type", string(e.EventType)),
		)
		res.Status = StatusUnknownType
		return res
	}

	switch {
	case err == nil:
		metrics.RecordSyncReplayed()
		res.Status = StatusSynced
	case errors.Is(err, repository.ErrDuplicateOffline):
		// Lost the race against a concurrent batch; the entry exists.
		metrics.RecordSyncDuplicate()
		res.Status = StatusAlreadySynced
	default:
		r.seen.Unrecord(ctx, cacheKey)
		metrics.RecordSyncFailure()
		r.log.Error(ctx, "offline replay failed",
			logger.String("offline_id", e.OfflineID),
			logger.Error(err),
		)
		res.Status = StatusFailed
		res.Error = err.Error()
	}
	return res
}
