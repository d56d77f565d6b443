package repository

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/ahmed11551/tasbih/internal/domain/model"
)

// MemStore implements Store with mutex-guarded maps. It is the default
// for local runs and the fixture for package tests. All goal and bucket
// mutations happen under the single write lock, which makes the
// read-modify-write sequences atomic with respect to concurrent taps.
type MemStore struct {
	mu       sync.RWMutex
	users    map[string]model.User
	goals    map[string]model.Goal
	sessions map[string]model.Session
	buckets  map[string]model.DailyBucket // key: userID + "/" + date
	events   []model.CounterEvent
	offline  map[string]struct{} // key: userID + "/" + offlineID
}

// NewMemStore creates an empty in-memory store.
func NewMemStore() *MemStore {
	return &MemStore{
		users:    make(map[string]model.User),
		goals:    make(map[string]model.Goal),
		sessions: make(map[string]model.Session),
		buckets:  make(map[string]model.DailyBucket),
		offline:  make(map[string]struct{}),
	}
}

func bucketKey(userID, date string) string { return userID + "/" + date }

func (m *MemStore) GetUser(ctx context.Context, id string) (model.User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	u, ok := m.users[id]
	if !ok {
		return model.User{}, ErrNotFound
	}
	return u, nil
}

func (m *MemStore) PutUser(ctx context.Context, u model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.users[u.ID] = u
	return nil
}

func (m *MemStore) GetGoal(ctx context.Context, id string) (model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	g, ok := m.goals[id]
	if !ok {
		return model.Goal{}, ErrNotFound
	}
	return g, nil
}

func (m *MemStore) UpsertGoal(ctx context.Context, g model.Goal) (model.Goal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if g.Segment != "" {
		for id, existing := range m.goals {
			if existing.UserID == g.UserID && existing.Category == g.Category && existing.Segment == g.Segment {
				existing.Kind = g.Kind
				existing.ItemID = g.ItemID
				existing.TargetCount = g.TargetCount
				m.goals[id] = existing
				return existing, nil
			}
		}
	}
	m.goals[g.ID] = g
	return g, nil
}

func (m *MemStore) ActiveGoal(ctx context.Context, userID string) (model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var best model.Goal
	found := false
	for _, g := range m.goals {
		if g.UserID != userID || g.Status != model.GoalActive {
			continue
		}
		if !found || g.CreatedAt.After(best.CreatedAt) {
			best = g
			found = true
		}
	}
	if !found {
		return model.Goal{}, ErrNotFound
	}
	return best, nil
}

func (m *MemStore) ApplyGoalDelta(ctx context.Context, goalID string, delta int, now time.Time) (GoalUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return GoalUpdate{}, ErrNotFound
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
	}

	m.goals[goalID] = g
	return GoalUpdate{Goal: g, CompletedNow: completedNow}, nil
}

func (m *MemStore) MarkGoalCompleted(ctx context.Context, goalID string, now time.Time) (GoalUpdate, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	g, ok := m.goals[goalID]
	if !ok {
		return GoalUpdate{}, ErrNotFound
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
	m.goals[goalID] = g
	return GoalUpdate{Goal: g, CompletedNow: true}, nil
}

func (m *MemStore) ListGoalsCompletedBetween(ctx context.Context, userID string, from, to time.Time) ([]model.Goal, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.Goal
	for _, g := range m.goals {
		if g.UserID != userID || g.CompletedAt == nil {
			continue
		}
		at := *g.CompletedAt
		if !at.Before(from) && at.Before(to) {
			out = append(out, g)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CompletedAt.Before(*out[j].CompletedAt) })
	return out, nil
}

func (m *MemStore) GetSession(ctx context.Context, id string) (model.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s, ok := m.sessions[id]
	if !ok {
		return model.Session{}, ErrNotFound
	}
	return s, nil
}

func (m *MemStore) InsertSession(ctx context.Context, s model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sessions[s.ID] = s
	return nil
}

func (m *MemStore) CloseOpenSessions(ctx context.Context, userID string, now time.Time) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	closed := 0
	ts := now.UTC()
	for id, s := range m.sessions {
		if s.UserID == userID && s.EndedAt == nil {
			end := ts
			s.EndedAt = &end
			m.sessions[id] = s
			closed++
		}
	}
	return closed, nil
}

func (m *MemStore) GetBucket(ctx context.Context, userID, date string) (model.DailyBucket, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.buckets[bucketKey(userID, date)]
	if !ok {
		return model.DailyBucket{}, ErrNotFound
	}
	return b.Clone(), nil
}

func (m *MemStore) AddToBucket(ctx context.Context, userID, date, segment string, delta int) (model.DailyBucket, error) {
	if !model.ValidSegment(segment) {
		return model.DailyBucket{}, ErrUnknownSegment
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	key := bucketKey(userID, date)
	b, ok := m.buckets[key]
	if !ok {
		b = model.NewDailyBucket(userID, date)
	}
	next := b.Segments[segment] + delta
	if next < 0 {
		next = 0
	}
	b.Segments[segment] = next
	b.Total = b.SumSegments()
	m.buckets[key] = b
	return b.Clone(), nil
}

func (m *MemStore) InsertEvent(ctx context.Context, e model.CounterEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if e.OfflineID != "" {
		key := e.UserID + "/" + e.OfflineID
		if _, dup := m.offline[key]; dup {
			return ErrDuplicateOffline
		}
		m.offline[key] = struct{}{}
	}
	m.events = append(m.events, e)
	return nil
}

func (m *MemStore) HasOfflineID(ctx context.Context, userID, offlineID string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.offline[userID+"/"+offlineID]
	return ok, nil
}

func (m *MemStore) SumTapDeltas(ctx context.Context, userID string, since time.Time) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := 0
	for _, e := range m.events {
		if e.UserID != userID || e.Type != model.EventTap {
			continue
		}
		if e.Timestamp.Before(since) {
			continue
		}
		d := e.Delta
		if d < 0 {
			d = -d
		}
		sum += d
	}
	return sum, nil
}

func (m *MemStore) SumSessionDeltas(ctx context.Context, sessionID string) (int, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	sum := 0
	for _, e := range m.events {
		if e.SessionID == sessionID {
			sum += e.Delta
		}
	}
	return sum, nil
}

func (m *MemStore) ListTapEvents(ctx context.Context, userID string, from, to time.Time) ([]model.CounterEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CounterEvent
	for _, e := range m.events {
		if e.UserID != userID || e.Type != model.EventTap {
			continue
		}
		if e.Timestamp.Before(from) || !e.Timestamp.Before(to) {
			continue
		}
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.Before(out[j].Timestamp) })
	return out, nil
}

func (m *MemStore) ListRecentEvents(ctx context.Context, userID string, n int) ([]model.CounterEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var out []model.CounterEvent
	for _, e := range m.events {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Timestamp.After(out[j].Timestamp) })
	if n > 0 && len(out) > n {
		out = out[:n]
	}
	return out, nil
}
