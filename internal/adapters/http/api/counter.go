package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ahmed11551/tasbih/internal/domain/counter"
	"github.com/ahmed11551/tasbih/internal/domain/model"
)

type tapRequest struct {
	SessionID string `json:"session_id"`
	Delta     int    `json:"delta"`
	EventType string `json:"event_type"`
	OfflineID string `json:"offline_id"`
	Segment   string `json:"segment"`
}

func (t tapRequest) validate() error {
	switch {
	case t.SessionID == "":
		return errors.New("missing session_id")
	case t.Delta == 0:
		return errors.New("delta must be non-zero")
	}
	if t.Segment != "" && !model.ValidSegment(t.Segment) {
		return errors.New("unknown segment")
	}
	return nil
}

// handleTap handles POST /counter/tap requests.
func (s *Server) handleTap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	if userID(r) == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	var req tapRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	res, err := s.deps.Tap(r.Context(), counter.TapRequest{
		SessionID: req.SessionID,
		Delta:     req.Delta,
		EventType: model.EventType(req.EventType),
		OfflineID: req.OfflineID,
		Segment:   req.Segment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
