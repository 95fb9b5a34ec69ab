// Package middleware provides HTTP middleware for the checker-maker API:
// request logging, per-client rate limiting, and request metrics.
package middleware

import (
	"net/http"
	"time"

	"github.com/partha/checker-maker/pkg/httputil"
	"github.com/partha/checker-maker/pkg/observability"
)

// statusRecorder captures the response status code for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// RequestLogging logs one structured line per request with method, path,
// status, duration, and client IP.
func RequestLogging(logger *observability.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

			next.ServeHTTP(rec, r)

			logger.WithFields(map[string]interface{}{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     rec.status,
				"durationMs": time.Since(start).Milliseconds(),
				"clientIp":   httputil.ClientIP(r),
			}).Info("request handled")
		})
	}
}
