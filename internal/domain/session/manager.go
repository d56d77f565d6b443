// Package session opens and closes counting sessions.
package session

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/pkg/logger"
)

// StartRequest carries the optional references a new session may hold.
type StartRequest struct {
	UserID   string
	GoalID   string
	Category string
	ItemID   string
	Segment  string
}

// Manager enforces the at-most-one-open-session invariant per user.
type Manager struct {
	store repository.Store
	now   func() time.Time
	log   logger.Logger
}

// NewManager creates a session manager on top of store.
func NewManager(store repository.Store, log logger.Logger) *Manager {
	return &Manager{store: store, now: time.Now, log: log}
}

// WithClock overrides the time source, for tests.
func (m *Manager) WithClock(now func() time.Time) *Manager {
	m.now = now
	return m
}

// Start force-closes any open session of the user, then inserts and
// returns a fresh open session. It is not an error for no prior open
// session to exist; after the call exactly one open session exists.
func (m *Manager) Start(ctx context.Context, req StartRequest) (model.Session, error) {
	now := m.now().UTC()

	closed, err := m.store.CloseOpenSessions(ctx, req.UserID, now)
	if err != nil {
		return model.Session{}, fmt.Errorf("close prior sessions: %w", err)
	}
	if closed > 0 {
		m.log.Debug(ctx, "force-closed open sessions",
			logger.String("user_id", req.UserID),
			logger.Int("closed", closed),
		)
	}

	s := model.Session{
		ID:        uuid.NewString(),
		UserID:    req.UserID,
		GoalID:    req.GoalID,
		Category:  req.Category,
		ItemID:    req.ItemID,
		Segment:   req.Segment,
		StartedAt: now,
	}
	if err := m.store.InsertSession(ctx, s); err != nil {
		return model.Session{}, fmt.Errorf("insert session: %w", err)
	}
	return s, nil
}
