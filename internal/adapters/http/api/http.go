// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ahmed11551/tasbih/internal/adapters/repository"
	"github.com/ahmed11551/tasbih/internal/app"
	"github.com/ahmed11551/tasbih/internal/domain/counter"
	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/report"
	"github.com/ahmed11551/tasbih/internal/domain/session"
	"github.com/ahmed11551/tasbih/internal/domain/syncer"
	"github.com/ahmed11551/tasbih/internal/perf"
)

// userHeader carries the caller identity, resolved by an upstream
// gateway before requests reach this core.
const userHeader = "X-User-ID"

// Dependencies required by HTTP handlers. Using an interface bundle
// keeps the handler layer loosely coupled to the application service.
type Dependencies interface {
	Bootstrap(ctx context.Context, userID string) (app.BootstrapResult, error)
	UpsertGoal(ctx context.Context, req app.GoalRequest) (model.Goal, error)
	StartSession(ctx context.Context, req session.StartRequest) (model.Session, error)
	Tap(ctx context.Context, req counter.TapRequest) (counter.TapResult, error)
	MarkLearned(ctx context.Context, userID, goalID string) (counter.GoalSummary, error)
	DailyReport(ctx context.Context, userID, date string) (report.Daily, error)
	SyncOffline(ctx context.Context, userID string, events []syncer.Event) []syncer.Result
	PerfStats(endpoint, method string, window time.Duration) []perf.Stats
	AcceptNotification(ctx context.Context, n model.CalcNotification) (accepted, duplicate bool)
	RecordSample(ctx context.Context, s perf.Sample)
}

// Server wires HTTP routes for the counting API.
type Server struct {
	deps Dependencies
}

// NewServer creates a new API server.
func NewServer(deps Dependencies) *Server {
	return &Server{deps: deps}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(ctx context.Context, mux *http.ServeMux) {
	wrap := func(h http.HandlerFunc, endpoint string) http.HandlerFunc {
		return Middleware(h, endpoint, s.deps)
	}
	mux.HandleFunc("/healthz", wrap(s.handleHealth, "healthz"))
	mux.HandleFunc("/bootstrap", wrap(s.handleBootstrap, "bootstrap"))
	mux.HandleFunc("/goals", wrap(s.handleUpsertGoal, "goals"))
	mux.HandleFunc("/sessions/start", wrap(s.handleStartSession, "sessions_start"))
	mux.HandleFunc("/counter/tap", wrap(s.handleTap, "counter_tap"))
	mux.HandleFunc("/learn/mark", wrap(s.handleMarkLearned, "learn_mark"))
	mux.HandleFunc("/reports/daily", wrap(s.handleDailyReport, "reports_daily"))
	mux.HandleFunc("/sync/offline", wrap(s.handleSyncOffline, "sync_offline"))
	mux.HandleFunc("/metrics", wrap(s.handlePerfStats, "metrics"))
	mux.HandleFunc("/webhooks/calculation", wrap(s.handleWebhook, "webhooks_calculation"))
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// userID pulls the pre-resolved caller identity off the request.
func userID(r *http.Request) string {
	return r.Header.Get(userHeader)
}

// isNotFound translates domain not-found kinds to 404.
func isNotFound(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, counter.ErrSessionNotFound) ||
		errors.Is(err, counter.ErrGoalNotFound)
}

// writeDomainError maps a service error to the HTTP taxonomy.
func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case isNotFound(err):
		writeError(w, http.StatusNotFound, "not_found", err)
	case errors.Is(err, counter.ErrInvalidDelta), errors.Is(err, counter.ErrInvalidSegment):
		writeError(w, http.StatusBadRequest, "bad_request", err)
	case errors.Is(err, repository.ErrDuplicateOffline):
		writeError(w, http.StatusConflict, "duplicate", err)
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err)
	}
}
