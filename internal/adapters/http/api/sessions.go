package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/session"
)

type sessionRequest struct {
	GoalID   string `json:"goal_id"`
	Category string `json:"category"`
	ItemID   string `json:"item_id"`
	Segment  string `json:"segment"`
}

func (s sessionRequest) validate() error {
	if strings.TrimSpace(s.Category) == "" {
		return errors.New("missing category")
	}
	if s.Segment != "" && !model.ValidSegment(s.Segment) {
		return errors.New("unknown segment")
	}
	return nil
}

// handleStartSession handles POST /sessions/start requests.
func (s *Server) handleStartSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	var req sessionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	sess, err := s.deps.StartSession(r.Context(), session.StartRequest{
		UserID:   uid,
		GoalID:   req.GoalID,
		Category: req.Category,
		ItemID:   req.ItemID,
		Segment:  req.Segment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, sess)
}
