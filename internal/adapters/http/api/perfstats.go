package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/ahmed11551/tasbih/internal/perf"
)

// defaultStatsWindow bounds the aggregation when the caller does not
// pass window_minutes.
const defaultStatsWindow = time.Hour

type perfStatsResponse struct {
	WindowMinutes int          `json:"window_minutes"`
	Stats         []perf.Stats `json:"stats"`
}

// handlePerfStats handles GET /metrics requests: in-process latency
// percentiles per endpoint, filtered by optional "endpoint", "method"
// and "window_minutes" query parameters.
func (s *Server) handlePerfStats(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}

	q := r.URL.Query()
	window := defaultStatsWindow
	if raw := q.Get("window_minutes"); raw != "" {
		minutes, err := strconv.Atoi(raw)
		if err != nil || minutes <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", ErrBadRequest)
			return
		}
		window = time.Duration(minutes) * time.Minute
	}

	stats := s.deps.PerfStats(q.Get("endpoint"), q.Get("method"), window)
	writeJSON(w, http.StatusOK, perfStatsResponse{
		WindowMinutes: int(window / time.Minute),
		Stats:         stats,
	})
}
