package api

import (
	"net/http"
)

// handleDailyReport handles GET /reports/daily requests. An optional
// "date" query (YYYY-MM-DD) selects the day; the default is today in
// the user's timezone.
func (s *Server) handleDailyReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}

	daily, err := s.deps.DailyReport(r.Context(), uid, r.URL.Query().Get("date"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, daily)
}
