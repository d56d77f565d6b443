package api

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// handleHealth handles GET /healthz requests. It doubles as the
// Prometheus scrape endpoint, served from the custom registry.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	promhttp.HandlerFor(metrics.GetRegistry(), promhttp.HandlerOpts{}).ServeHTTP(w, r)
}
