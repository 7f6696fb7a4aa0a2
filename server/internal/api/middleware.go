package api

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/jiraquery/jiraquery/server/internal/metrics"
)

// RequestIDHeader carries the per-request id in both directions.
const RequestIDHeader = "X-Request-Id"

type requestIDKey struct{}

// RequestID returns the id assigned by AccessLog, or "".
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

// routes bounds the route label of the request counter.
var routes = map[string]bool{
	"/api/v1/field-names":        true,
	"/api/v1/issues":             true,
	"/api/v1/issues-simplified":  true,
	"/api/v1/aggregate":          true,
	"/api/v1/compare-aggregates": true,
	"/api/v1/health":             true,
	"/metrics":                   true,
}

// statusRecorder captures the status code written by the wrapped handler.
type statusRecorder struct {
	http.ResponseWriter
	code int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.code = code
	s.ResponseWriter.WriteHeader(code)
}

// AccessLog assigns each request an id (reusing a caller-supplied one),
// echoes it in X-Request-Id, logs the request and counts it in m.
func AccessLog(m *metrics.Metrics, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		r = r.WithContext(context.WithValue(r.Context(), requestIDKey{}, id))

		rec := &statusRecorder{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(rec, r)

		route := r.URL.Path
		if !routes[route] {
			route = "other"
		}
		m.HTTPRequests.WithLabelValues(route, strconv.Itoa(rec.code)).Inc()
		slog.Info("api: request",
			"request_id", id,
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.code,
			"duration", time.Since(start),
		)
	})
}
