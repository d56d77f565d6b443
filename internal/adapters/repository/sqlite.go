package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ahmed11551/tasbih/internal/domain/model"

	_ "modernc.org/sqlite"
)

// timeLayout is how instants are stored in SQLite text columns. The
// fractional part is fixed-width so lexicographic range comparisons in
// SQL stay temporal; RFC3339Nano would trim trailing zeros and sort
// "00:00:00.5Z" before the "00:00:00Z" day boundary.
const timeLayout = "2006-01-02T15:04:05.000000000Z"

// SQLStore implements Store on SQLite via database/sql. Goal and bucket
// mutations run inside transactions so concurrent taps from two devices
// cannot lose updates.
type SQLStore struct {
	db *sql.DB
}

// NewSQLStore opens (creating if needed) the SQLite database at dbPath
// and ensures the schema exists. Use ":memory:" for an ephemeral store.
func NewSQLStore(ctx context.Context, dbPath string) (*SQLStore, error) {
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("create db dir: %w", err)
		}
	}
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// The driver serializes access per connection; a single connection
	// avoids SQLITE_BUSY between concurrent transactions.
	db.SetMaxOpenConns(1)

	s := &SQLStore{db: db}
	if err := s.ensureSchema(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *SQLStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("close sqlite: %w", err)
	}
	return nil
}

func (s *SQLStore) ensureSchema(ctx context.Context) error {
	const ddl = `
CREATE TABLE IF NOT EXISTS users (
  id TEXT PRIMARY KEY,
  locale TEXT NOT NULL DEFAULT '',
  madhab TEXT NOT NULL DEFAULT '',
  timezone TEXT NOT NULL DEFAULT 'UTC'
);
CREATE TABLE IF NOT EXISTS goals (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  category TEXT NOT NULL,
  item_id TEXT NOT NULL DEFAULT '',
  kind TEXT NOT NULL,
  target_count INTEGER NOT NULL,
  progress INTEGER NOT NULL DEFAULT 0,
  status TEXT NOT NULL DEFAULT 'active',
  segment TEXT NOT NULL DEFAULT '',
  created_at TEXT NOT NULL,
  completed_at TEXT
);
CREATE INDEX IF NOT EXISTS ix_goals_user ON goals(user_id, status);
CREATE TABLE IF NOT EXISTS sessions (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  goal_id TEXT NOT NULL DEFAULT '',
  category TEXT NOT NULL DEFAULT '',
  item_id TEXT NOT NULL DEFAULT '',
  segment TEXT NOT NULL DEFAULT '',
  started_at TEXT NOT NULL,
  ended_at TEXT
);
CREATE INDEX IF NOT EXISTS ix_sessions_open ON sessions(user_id) WHERE ended_at IS NULL;
CREATE TABLE IF NOT EXISTS daily_buckets (
  user_id TEXT NOT NULL,
  date TEXT NOT NULL,
  fajr INTEGER NOT NULL DEFAULT 0,
  dhuhr INTEGER NOT NULL DEFAULT 0,
  asr INTEGER NOT NULL DEFAULT 0,
  maghrib INTEGER NOT NULL DEFAULT 0,
  isha INTEGER NOT NULL DEFAULT 0,
  total INTEGER NOT NULL DEFAULT 0,
  is_complete INTEGER NOT NULL DEFAULT 0,
  PRIMARY KEY (user_id, date)
);
CREATE TABLE IF NOT EXISTS counter_events (
  id TEXT PRIMARY KEY,
  user_id TEXT NOT NULL,
  session_id TEXT NOT NULL,
  goal_id TEXT NOT NULL DEFAULT '',
  event_type TEXT NOT NULL,
  delta INTEGER NOT NULL,
  value_after INTEGER NOT NULL,
  segment TEXT NOT NULL DEFAULT '',
  ts TEXT NOT NULL,
  timezone TEXT NOT NULL DEFAULT 'UTC',
  offline_id TEXT NOT NULL DEFAULT '',
  suspected INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ix_events_user_ts ON counter_events(user_id, ts);
CREATE UNIQUE INDEX IF NOT EXISTS ux_events_offline
  ON counter_events(user_id, offline_id) WHERE offline_id != '';
`
	if _, err := s.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

func (s *SQLStore) GetUser(ctx context.Context, id string) (model.User, error) {
	var u model.User
	err := s.db.QueryRowContext(ctx,
		`SELECT id, locale, madhab, timezone FROM users WHERE id = ?`, id,
	).Scan(&u.ID, &u.Locale, &u.Madhab, &u.Timezone)
	if errors.Is(err, sql.ErrNoRows) {
		return model.User{}, ErrNotFound
	}
	if err != nil {
		return model.User{}, fmt.Errorf("get user: %w", err)
	}
	return u, nil
}

func (s *SQLStore) PutUser(ctx context.Context, u model.User) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO users (id, locale, madhab, timezone) VALUES (?, ?, ?, ?)
ON CONFLICT(id) DO UPDATE SET
  locale=excluded.locale, madhab=excluded.madhab, timezone=excluded.timezone`,
		u.ID, u.Locale, u.Madhab, u.Timezone)
	if err != nil {
		return fmt.Errorf("put user: %w", err)
	}
	return nil
}

const goalColumns = `id, user_id, category, item_id, kind, target_count, progress, status, segment, created_at, completed_at`

func scanGoal(row interface{ Scan(...any) error }) (model.Goal, error) {
	var (
		g           model.Goal
		createdAt   string
		completedAt sql.NullString
	)
	err := row.Scan(&g.ID, &g.UserID, &g.Category, &g.ItemID, (*string)(&g.Kind),
		&g.TargetCount, &g.Progress, (*string)(&g.Status), &g.Segment, &createdAt, &completedAt)
	if err != nil {
		return model.Goal{}, err
	}
	if g.CreatedAt, err = time.Parse(timeLayout, createdAt); err != nil {
		return model.Goal{}, fmt.Errorf("parse created_at: %w", err)
	}
	if completedAt.Valid {
		ts, err := time.Parse(timeLayout, completedAt.String)
		if err != nil {
			return model.Goal{}, fmt.Errorf("parse completed_at: %w", err)
		}
		g.CompletedAt = &ts
	}
	return g, nil
}

func (s *SQLStore) GetGoal(ctx context.Context, id string) (model.Goal, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, id)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Goal{}, ErrNotFound
	}
	if err != nil {
		return model.Goal{}, fmt.Errorf("get goal: %w", err)
	}
	return g, nil
}

func (s *SQLStore) UpsertGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Goal{}, fmt.Errorf("begin upsert goal: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if g.Segment != "" {
		row := tx.QueryRowContext(ctx,
			`SELECT `+goalColumns+` FROM goals WHERE user_id = ? AND category = ? AND segment = ?`,
			g.UserID, g.Category, g.Segment)
		existing, err := scanGoal(row)
		switch {
		case err == nil:
			existing.Kind = g.Kind
			existing.ItemID = g.ItemID
			existing.TargetCount = g.TargetCount
			if _, err := tx.ExecContext(ctx,
				`UPDATE goals SET kind = ?, item_id = ?, target_count = ? WHERE id = ?`,
				existing.Kind, existing.ItemID, existing.TargetCount, existing.ID); err != nil {
				return model.Goal{}, fmt.Errorf("update goal: %w", err)
			}
			if err := tx.Commit(); err != nil {
				return model.Goal{}, fmt.Errorf("commit upsert goal: %w", err)
			}
			return existing, nil
		case errors.Is(err, sql.ErrNoRows):
			// fall through to insert
		default:
			return model.Goal{}, fmt.Errorf("find goal by segment: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `
INSERT INTO goals (`+goalColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL)`,
		g.ID, g.UserID, g.Category, g.ItemID, string(g.Kind),
		g.TargetCount, g.Progress, string(g.Status), g.Segment,
		g.CreatedAt.UTC().Format(timeLayout)); err != nil {
		return model.Goal{}, fmt.Errorf("insert goal: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.Goal{}, fmt.Errorf("commit upsert goal: %w", err)
	}
	return g, nil
}

func (s *SQLStore) ActiveGoal(ctx context.Context, userID string) (model.Goal, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT `+goalColumns+` FROM goals
WHERE user_id = ? AND status = 'active'
ORDER BY created_at DESC LIMIT 1`, userID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Goal{}, ErrNotFound
	}
	if err != nil {
		return model.Goal{}, fmt.Errorf("active goal: %w", err)
	}
	return g, nil
}

func (s *SQLStore) ApplyGoalDelta(ctx context.Context, goalID string, delta int, now time.Time) (GoalUpdate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GoalUpdate{}, fmt.Errorf("begin goal delta: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, goalID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GoalUpdate{}, ErrNotFound
	}
	if err != nil {
		return GoalUpdate{}, fmt.Errorf("load goal: %w", err)
	}

	progress := g.Progress + delta
	if progress < 0 {
		progress = 0
	}
	g.Progress = progress

	completedNow := false
	if g.Status != model.GoalCompleted && progress >= g.TargetCount {
		g.Status = model.GoalCompleted
		ts := now.UTC()
		g.CompletedAt = &ts
		completedNow = true
		if _, err := tx.ExecContext(ctx,
			`UPDATE goals SET progress = ?, status = 'completed', completed_at = ? WHERE id = ?`,
			g.Progress, ts.Format(timeLayout), goalID); err != nil {
			return GoalUpdate{}, fmt.Errorf("complete goal: %w", err)
		}
	} else {
		if _, err := tx.ExecContext(ctx,
			`UPDATE goals SET progress = ? WHERE id = ?`, g.Progress, goalID); err != nil {
			return GoalUpdate{}, fmt.Errorf("update progress: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return GoalUpdate{}, fmt.Errorf("commit goal delta: %w", err)
	}
	return GoalUpdate{Goal: g, CompletedNow: completedNow}, nil
}

func (s *SQLStore) MarkGoalCompleted(ctx context.Context, goalID string, now time.Time) (GoalUpdate, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return GoalUpdate{}, fmt.Errorf("begin mark completed: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	row := tx.QueryRowContext(ctx, `SELECT `+goalColumns+` FROM goals WHERE id = ?`, goalID)
	g, err := scanGoal(row)
	if errors.Is(err, sql.ErrNoRows) {
		return GoalUpdate{}, ErrNotFound
	}
	if err != nil {
		return GoalUpdate{}, fmt.Errorf("load goal: %w", err)
	}
	if g.Status == model.GoalCompleted {
		return GoalUpdate{Goal: g, CompletedNow: false}, nil
	}

	g.Status = model.GoalCompleted
	if g.Progress < g.TargetCount {
		g.Progress = g.TargetCount
	}
	ts := now.UTC()
	g.CompletedAt = &ts
	if _, err := tx.ExecContext(ctx,
		`UPDATE goals SET progress = ?, status = 'completed', completed_at = ? WHERE id = ?`,
		g.Progress, ts.Format(timeLayout), goalID); err != nil {
		return GoalUpdate{}, fmt.Errorf("mark completed: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return GoalUpdate{}, fmt.Errorf("commit mark completed: %w", err)
	}
	return GoalUpdate{Goal: g, CompletedNow: true}, nil
}

func (s *SQLStore) ListGoalsCompletedBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Goal, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+goalColumns+` FROM goals
WHERE user_id = ? AND completed_at IS NOT NULL AND completed_at >= ? AND completed_at < ?
ORDER BY completed_at`,
		userID, from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("list completed goals: %w", err)
	}
	defer rows.Close()

	var out []model.Goal
	for rows.Next() {
		g, err := scanGoal(rows)
		if err != nil {
			return nil, fmt.Errorf("scan goal: %w", err)
		}
		out = append(out, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate goals: %w", err)
	}
	return out, nil
}

func (s *SQLStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	var (
		sess      model.Session
		startedAt string
		endedAt   sql.NullString
	)
	err := s.db.QueryRowContext(ctx, `
SELECT id, user_id, goal_id, category, item_id, segment, started_at, ended_at
FROM sessions WHERE id = ?`, id,
	).Scan(&sess.ID, &sess.UserID, &sess.GoalID, &sess.Category, &sess.ItemID,
		&sess.Segment, &startedAt, &endedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Session{}, ErrNotFound
	}
	if err != nil {
		return model.Session{}, fmt.Errorf("get session: %w", err)
	}
	if sess.StartedAt, err = time.Parse(timeLayout, startedAt); err != nil {
		return model.Session{}, fmt.Errorf("parse started_at: %w", err)
	}
	if endedAt.Valid {
		ts, err := time.Parse(timeLayout, endedAt.String)
		if err != nil {
			return model.Session{}, fmt.Errorf("parse ended_at: %w", err)
		}
		sess.EndedAt = &ts
	}
	return sess, nil
}

func (s *SQLStore) InsertSession(ctx context.Context, sess model.Session) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO sessions (id, user_id, goal_id, category, item_id, segment, started_at, ended_at)
VALUES (?, ?, ?, ?, ?, ?, ?, NULL)`,
		sess.ID, sess.UserID, sess.GoalID, sess.Category, sess.ItemID,
		sess.Segment, sess.StartedAt.UTC().Format(timeLayout))
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	return nil
}

func (s *SQLStore) CloseOpenSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions SET ended_at = ? WHERE user_id = ? AND ended_at IS NULL`,
		now.UTC().Format(timeLayout), userID)
	if err != nil {
		return 0, fmt.Errorf("close sessions: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("close sessions affected: %w", err)
	}
	return int(n), nil
}

func scanBucket(row interface{ Scan(...any) error }, userID, date string) (model.DailyBucket, error) {
	b := model.NewDailyBucket(userID, date)
	var fajr, dhuhr, asr, maghrib, isha, isComplete int
	err := row.Scan(&fajr, &dhuhr, &asr, &maghrib, &isha, &b.Total, &isComplete)
	if err != nil {
		return model.DailyBucket{}, err
	}
	b.Segments[model.SegmentFajr] = fajr
	b.Segments[model.SegmentDhuhr] = dhuhr
	b.Segments[model.SegmentAsr] = asr
	b.Segments[model.SegmentMaghrib] = maghrib
	b.Segments[model.SegmentIsha] = isha
	b.IsComplete = isComplete != 0
	return b, nil
}

func (s *SQLStore) GetBucket(ctx context.Context, userID, date string) (model.DailyBucket, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT fajr, dhuhr, asr, maghrib, isha, total, is_complete
FROM daily_buckets WHERE user_id = ? AND date = ?`, userID, date)
	b, err := scanBucket(row, userID, date)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DailyBucket{}, ErrNotFound
	}
	if err != nil {
		return model.DailyBucket{}, fmt.Errorf("get bucket: %w", err)
	}
	return b, nil
}

func (s *SQLStore) AddToBucket(ctx context.Context, userID, date, segment string, delta int) (model.DailyBucket, error) {
	// The segment is validated against the fixed list before being
	// spliced into SQL as a column name.
	if !model.ValidSegment(segment) {
		return model.DailyBucket{}, ErrUnknownSegment
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.DailyBucket{}, fmt.Errorf("begin bucket add: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`INSERT INTO daily_buckets (user_id, date) VALUES (?, ?)
ON CONFLICT(user_id, date) DO NOTHING`, userID, date); err != nil {
		return model.DailyBucket{}, fmt.Errorf("ensure bucket: %w", err)
	}

	stmt := fmt.Sprintf(`
UPDATE daily_buckets
SET %[1]s = MAX(0, %[1]s + ?),
    total = fajr + dhuhr + asr + maghrib + isha
      - %[1]s + MAX(0, %[1]s + ?)
WHERE user_id = ? AND date = ?`, segment)
	if _, err := tx.ExecContext(ctx, stmt, delta, delta, userID, date); err != nil {
		return model.DailyBucket{}, fmt.Errorf("add to bucket: %w", err)
	}

	row := tx.QueryRowContext(ctx, `
SELECT fajr, dhuhr, asr, maghrib, isha, total, is_complete
FROM daily_buckets WHERE user_id = ? AND date = ?`, userID, date)
	b, err := scanBucket(row, userID, date)
	if err != nil {
		return model.DailyBucket{}, fmt.Errorf("read bucket: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return model.DailyBucket{}, fmt.Errorf("commit bucket add: %w", err)
	}
	return b, nil
}

func (s *SQLStore) InsertEvent(ctx context.Context, e model.CounterEvent) error {
	suspected := 0
	if e.Suspected {
		suspected = 1
	}
	_, err := s.db.ExecContext(ctx, `
INSERT INTO counter_events
  (id, user_id, session_id, goal_id, event_type, delta, value_after, segment, ts, timezone, offline_id, suspected)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.UserID, e.SessionID, e.GoalID, string(e.Type), e.Delta, e.ValueAfter,
		e.Segment, e.Timestamp.UTC().Format(timeLayout), e.Timezone, e.OfflineID, suspected)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrDuplicateOffline
		}
		return fmt.Errorf("insert event: %w", err)
	}
	return nil
}

func (s *SQLStore) HasOfflineID(ctx context.Context, userID, offlineID string) (bool, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM counter_events WHERE user_id = ? AND offline_id = ?`,
		userID, offlineID).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("check offline id: %w", err)
	}
	return n > 0, nil
}

func (s *SQLStore) SumTapDeltas(ctx context.Context, userID string, since time.Time) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx, `
SELECT COALESCE(SUM(ABS(delta)), 0) FROM counter_events
WHERE user_id = ? AND event_type = 'tap' AND ts >= ?`,
		userID, since.UTC().Format(timeLayout)).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum tap deltas: %w", err)
	}
	return sum, nil
}

func (s *SQLStore) SumSessionDeltas(ctx context.Context, sessionID string) (int, error) {
	var sum int
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(delta), 0) FROM counter_events WHERE session_id = ?`,
		sessionID).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("sum session deltas: %w", err)
	}
	return sum, nil
}

func scanEvent(rows *sql.Rows) (model.CounterEvent, error) {
	var (
		e         model.CounterEvent
		ts        string
		suspected int
	)
	err := rows.Scan(&e.ID, &e.UserID, &e.SessionID, &e.GoalID, (*string)(&e.Type),
		&e.Delta, &e.ValueAfter, &e.Segment, &ts, &e.Timezone, &e.OfflineID, &suspected)
	if err != nil {
		return model.CounterEvent{}, err
	}
	if e.Timestamp, err = time.Parse(timeLayout, ts); err != nil {
		return model.CounterEvent{}, fmt.Errorf("parse ts: %w", err)
	}
	e.Suspected = suspected != 0
	return e, nil
}

const eventColumns = `id, user_id, session_id, goal_id, event_type, delta, value_after, segment, ts, timezone, offline_id, suspected`

func (s *SQLStore) ListTapEvents(ctx context.Context, userID string, from, to time.Time) ([]model.CounterEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+` FROM counter_events
WHERE user_id = ? AND event_type = 'tap' AND ts >= ? AND ts < ?
ORDER BY ts`,
		userID, from.UTC().Format(timeLayout), to.UTC().Format(timeLayout))
	if err != nil {
		return nil, fmt.Errorf("list tap events: %w", err)
	}
	defer rows.Close()

	var out []model.CounterEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}

func (s *SQLStore) ListRecentEvents(ctx context.Context, userID string, n int) ([]model.CounterEvent, error) {
	rows, err := s.db.QueryContext(ctx, `
SELECT `+eventColumns+` FROM counter_events
WHERE user_id = ? ORDER BY ts DESC LIMIT ?`, userID, n)
	if err != nil {
		return nil, fmt.Errorf("list recent events: %w", err)
	}
	defer rows.Close()

	var out []model.CounterEvent
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return out, nil
}
