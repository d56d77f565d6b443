package api

import (
	"encoding/json"
	"errors"
	"net/http"
)

type learnRequest struct {
	GoalID string `json:"goal_id"`
}

// handleMarkLearned handles POST /learn/mark requests.
func (s *Server) handleMarkLearned(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	var req learnRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if req.GoalID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("missing goal_id"))
		return
	}

	summary, err := s.deps.MarkLearned(r.Context(), uid, req.GoalID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, summary)
}
