// Package api declares HTTP contracts and route registration helpers.
package api

import "net/http"

// handleBootstrap handles GET /bootstrap requests.
func (s *Server) handleBootstrap(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	uid := userID(r)
	if uid == "" {
		writeError(w, http.StatusBadRequest, "bad_request", ErrMissingUser)
		return
	}
	out, err := s.deps.Bootstrap(r.Context(), uid)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}
