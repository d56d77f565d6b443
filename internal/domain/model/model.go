// Package model contains domain records passed between layers.
package model

import "time"

// GoalKind distinguishes counting goals from one-shot learning goals.
type GoalKind string

// Goal kinds.
const (
	GoalRecite GoalKind = "recite"
	GoalLearn  GoalKind = "learn"
)

// GoalStatus is the lifecycle state of a goal.
type GoalStatus string

// Goal statuses. A goal moves active -> completed exactly once.
const (
	GoalActive    GoalStatus = "active"
	GoalCompleted GoalStatus = "completed"
)

// EventType classifies counter log entries.
type EventType string

// Event types.
const (
	EventTap       EventType = "tap"
	EventLearnMark EventType = "learn_mark"
)

// Segments of the daily bucket, one per daily prayer slot.
const (
	SegmentFajr    = "fajr"
	SegmentDhuhr   = "dhuhr"
	SegmentAsr     = "asr"
	SegmentMaghrib = "maghrib"
	SegmentIsha    = "isha"
)

// SegmentNames lists the bucket segments in canonical order.
var SegmentNames = []string{SegmentFajr, SegmentDhuhr, SegmentAsr, SegmentMaghrib, SegmentIsha}

// ValidSegment reports whether name is one of the daily bucket segments.
func ValidSegment(name string) bool {
	for _, s := range SegmentNames {
		if s == name {
			return true
		}
	}
	return false
}

// User is the profile snapshot this core reads. It is created and updated
// by an external profile service; the core only needs the timezone for
// local-date bucketing and the locale/madhab tags for the bootstrap payload.
type User struct {
	ID       string `json:"id"`
	Locale   string `json:"locale"`
	Madhab   string `json:"madhab"`
	Timezone string `json:"timezone"` // IANA name, e.g. "Asia/Dubai"
}

// Goal is a counting or learning target. Progress is mutated exclusively
// through the store's atomic delta operation while a session references it.
type Goal struct {
	ID          string     `json:"id"`
	UserID      string     `json:"user_id"`
	Category    string     `json:"category"`
	ItemID      string     `json:"item_id,omitempty"`
	Kind        GoalKind   `json:"kind"`
	TargetCount int        `json:"target_count"`
	Progress    int        `json:"progress"`
	Status      GoalStatus `json:"status"`
	Segment     string     `json:"segment,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	// CompletedAt is set once on the active -> completed transition and
	// never cleared or overwritten afterwards.
	CompletedAt *time.Time `json:"completed_at,omitempty"`
}

// Completed reports whether the goal has reached its completed state.
func (g Goal) Completed() bool { return g.Status == GoalCompleted }

// Session is one counting run. EndedAt is nil while the session is open;
// at most one open session exists per user.
type Session struct {
	ID        string     `json:"id"`
	UserID    string     `json:"user_id"`
	GoalID    string     `json:"goal_id,omitempty"`
	Category  string     `json:"category,omitempty"`
	ItemID    string     `json:"item_id,omitempty"`
	Segment   string     `json:"segment,omitempty"`
	StartedAt time.Time  `json:"started_at"`
	EndedAt   *time.Time `json:"ended_at,omitempty"`
}

// Open reports whether the session has not been ended yet.
func (s Session) Open() bool { return s.EndedAt == nil }

// CounterEvent is one append-only log entry. OfflineID, when present, is
// the idempotency key for offline replays and must be unique per user.
type CounterEvent struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	SessionID string    `json:"session_id"`
	GoalID    string    `json:"goal_id,omitempty"`
	Type      EventType `json:"event_type"`
	Delta     int       `json:"delta"`
	// ValueAfter is the post-update cumulative value: goal progress when a
	// goal is linked, otherwise the session-local running value.
	ValueAfter int       `json:"value_after"`
	Segment    string    `json:"segment,omitempty"`
	Timestamp  time.Time `json:"timestamp"` // UTC instant
	Timezone   string    `json:"timezone"`  // IANA name at capture time
	OfflineID  string    `json:"offline_id,omitempty"`
	Suspected  bool      `json:"suspected"`
}

// DailyBucket accumulates per-segment counts for one local calendar day.
// Total always equals the sum of the segment counters.
type DailyBucket struct {
	UserID     string         `json:"user_id"`
	Date       string         `json:"date"` // YYYY-MM-DD in the user's timezone
	Segments   map[string]int `json:"segments"`
	Total      int            `json:"total"`
	IsComplete bool           `json:"is_complete"`
}

// NewDailyBucket returns a zeroed bucket for the given user and local date.
func NewDailyBucket(userID, date string) DailyBucket {
	segs := make(map[string]int, len(SegmentNames))
	for _, s := range SegmentNames {
		segs[s] = 0
	}
	return DailyBucket{UserID: userID, Date: date, Segments: segs}
}

// Clone returns a deep copy so callers can hand buckets across goroutines.
func (b DailyBucket) Clone() DailyBucket {
	out := b
	out.Segments = make(map[string]int, len(b.Segments))
	for k, v := range b.Segments {
		out.Segments[k] = v
	}
	return out
}

// SumSegments recomputes the total from the segment counters.
func (b DailyBucket) SumSegments() int {
	sum := 0
	for _, v := range b.Segments {
		sum += v
	}
	return sum
}

// CalcJob is the last known state of an external calculation job reported
// through the webhook. Kept in memory only; the webhook contract is
// idempotent by job id.
type CalcJob struct {
	JobID     string    `json:"job_id"`
	Status    string    `json:"status"` // completed | failed | progress
	Progress  int       `json:"progress,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CalcNotification is one inbound webhook message from the external
// calculation job. The handler acks immediately and hands the payload to
// the worker pool through the queue.
type CalcNotification struct {
	JobID      string
	Event      string // calculation.completed | .failed | .progress
	Progress   int
	Error      string
	ReceivedAt time.Time
}
