package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/ahmed11551/tasbih/internal/app"
	"github.com/ahmed11551/tasbih/internal/domain/model"
)

// goalRequest mirrors the JSON schema for POST /goals.
type goalRequest struct {
	Category    string `json:"category"`
	ItemID      string `json:"item_id"`
	Kind        string `json:"kind"`
	TargetCount int    `json:"target_count"`
	Segment     string `json:"segment"`
}

func (g goalRequest) validate() error {
	switch {
	case strings.TrimSpace(g.Category) == "":
		return errors.New("missing category")
	case g.Kind != string(model.GoalRecite) && g.Kind != string(model.GoalLearn):
		return errors.New("kind must be recite or learn")
	case g.TargetCount <= 0:
		return errors.New("target_count must be positive")
	}
	if g.Segment != "" && !model.ValidSegment(g.Segment) {
		return errors.New("unknown segment")
	}
	return nil
}

// handleUpsertGoal handles POST /goals requests.
func (s *Server) handleUpsertGoal(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	var req goalRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}

	goal, err := s.deps.UpsertGoal(r.Context(), app.GoalRequest{
		UserID:      uid,
		Category:    req.Category,
		ItemID:      req.ItemID,
		Kind:        model.GoalKind(req.Kind),
		TargetCount: req.TargetCount,
		Segment:     req.Segment,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, goal)
}
