// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/ahmed11551/tasbih/internal/perf"
	"github.com/ahmed11551/tasbih/pkg/metrics"
)

// Middleware wraps a handler to record Prometheus metrics and feed the
// in-process latency tracker.
func Middleware(next http.HandlerFunc, endpoint string, deps Dependencies) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

		next.ServeHTTP(wrapped, r)

		elapsed := time.Since(start)
		statusCodeStr := strconv.Itoa(wrapped.statusCode)
		metrics.RecordHTTPRequest(endpoint, r.Method, statusCodeStr)
		metrics.RecordHTTPRequestDuration(endpoint, r.Method, statusCodeStr, float64(elapsed.Milliseconds()))

		errText := ""
		if wrapped.statusCode >= http.StatusInternalServerError {
			errText = http.StatusText(wrapped.statusCode)
		}
		deps.RecordSample(r.Context(), perf.Sample{
			Endpoint:   endpoint,
			Method:     r.Method,
			Duration:   elapsed,
			StatusCode: wrapped.statusCode,
			UserID:     userID(r),
			Err:        errText,
		})
	}
}

// responseWriter wraps http.ResponseWriter to capture the status code.
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *responseWriter) Write(b []byte) (int, error) {
	n, err := rw.ResponseWriter.Write(b)
	if err != nil {
		return n, fmt.Errorf("write response: %w", err)
	}
	return n, nil
}
