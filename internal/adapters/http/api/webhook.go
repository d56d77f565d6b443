package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ahmed11551/tasbih/internal/domain/model"
)

type webhookRequest struct {
	JobID    string          `json:"job_id"`
	Event    string          `json:"event"`
	Progress int             `json:"progress"`
	Error    string          `json:"error"`
	Payload  json.RawMessage `json:"payload"`
}

type webhookResponse struct {
	Status string `json:"status"`
}

// handleWebhook handles POST /webhooks/calculation. The sender retries
// on non-2xx, so every well-formed notification is acknowledged with
// 200 regardless of whether it was enqueued, dropped as a duplicate,
// or carries an event this core does not track.
func (s *Server) handleWebhook(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	var req webhookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.JobID == "" || req.Event == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing job_id or event"))
		return
	}

	accepted, duplicate := s.deps.AcceptNotification(r.Context(), model.CalcNotification{
		JobID:      req.JobID,
		Event:      req.Event,
		Progress:   req.Progress,
		Error:      req.Error,
		ReceivedAt: time.Now().UTC(),
	})

	status := "accepted"
	switch {
	case duplicate:
		status = "duplicate"
	case !accepted:
		status = "dropped"
	}
	writeJSON(w, http.StatusOK, webhookResponse{Status: status})
}
