package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/ahmed11551/tasbih/internal/domain/model"
	"github.com/ahmed11551/tasbih/internal/domain/syncer"
)

type syncRequest struct {
	Events []syncEvent `json:"events"`
}

type syncEvent struct {
	OfflineID string `json:"offline_id"`
	SessionID string `json:"session_id"`
	GoalID    string `json:"goal_id"`
	EventType string `json:"event_type"`
	Delta     int    `json:"delta"`
	Segment   string `json:"segment"`
}

type syncResponse struct {
	Results []syncer.Result `json:"results"`
}

// handleSyncOffline handles POST /sync/offline requests. The batch is
// replayed in order and every event gets a per-event verdict; the
// endpoint never fails the whole batch for one bad event.
func (s *Server) handleSyncOffline(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err)
		return
	}
	if len(req.Events) == 0 {
		writeError(w, http.StatusBadRequest, "bad_request", errors.New("empty event batch"))
		return
	}

	events := make([]syncer.Event, 0, len(req.Events))
	for _, e := range req.Events {
		events = append(events, syncer.Event{
			OfflineID: e.OfflineID,
			SessionID: e.SessionID,
			GoalID:    e.GoalID,
			EventType: model.EventType(e.EventType),
			Delta:     e.Delta,
			Segment:   e.Segment,
		})
	}

	results := s.deps.SyncOffline(r.Context(), uid, events)
	writeJSON(w, http.StatusOK, syncResponse{Results: results})
}
