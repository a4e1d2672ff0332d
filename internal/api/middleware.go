// ABOUTME: HTTP middleware for request correlation and access logging
// ABOUTME: Propagates X-Request-Id and X-Project-Id into the request context

package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/clementeaf/ai-assistants/internal/trace"
)

// Correlation headers.
const (
	HeaderRequestID = "X-Request-Id"
	HeaderProjectID = "X-Project-Id"
)

// requestIDMiddleware reuses the caller's X-Request-Id or generates one and
// echoes it on the response.
func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(HeaderRequestID)
		if id == "" {
			id = trace.GenerateID()
		}
		w.Header().Set(HeaderRequestID, id)
		next.ServeHTTP(w, r.WithContext(trace.WithRequestID(r.Context(), id)))
	})
}

// projectIDMiddleware takes the project from X-Project-Id. A token's
// project_id claim, applied later by the auth middleware, overrides it.
func projectIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id := r.Header.Get(HeaderProjectID); id != "" {
			r = r.WithContext(trace.WithProjectID(r.Context(), id))
		}
		next.ServeHTTP(w, r)
	})
}

// statusRecorder captures the response status for logging.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

// Flush keeps server-sent events working through the recorder.
func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

func loggingMiddleware(logger *slog.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(rec, r)

		level := slog.LevelInfo
		if r.URL.Path == "/health" {
			level = slog.LevelDebug
		}
		trace.Logger(r.Context(), logger).Log(r.Context(), level, "http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", rec.status,
			"duration", time.Since(start),
		)
	})
}
