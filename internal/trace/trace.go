// ABOUTME: Request and project correlation ids carried through context.Context
// ABOUTME: Provides id generation, detached worker contexts and annotated loggers

package trace

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
)

// DefaultProjectID is used when the caller supplies no project.
const DefaultProjectID = "dev"

type requestIDKey struct{}
type projectIDKey struct{}

// GenerateID returns a new request id.
func GenerateID() string {
	return "req_" + uuid.NewString()
}

// WithRequestID returns a child context carrying the request id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestID extracts the request id from ctx, returning "" if absent.
func RequestID(ctx context.Context) string {
	if v, ok := ctx.Value(requestIDKey{}).(string); ok {
		return v
	}
	return ""
}

// WithProjectID returns a child context carrying the project id.
func WithProjectID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, projectIDKey{}, id)
}

// ProjectID extracts the project id from ctx, returning "" if absent.
func ProjectID(ctx context.Context) string {
	if v, ok := ctx.Value(projectIDKey{}).(string); ok {
		return v
	}
	return ""
}

// ProjectIDOr returns the project id in ctx or fallback when unset.
func ProjectIDOr(ctx context.Context, fallback string) string {
	if id := ProjectID(ctx); id != "" {
		return id
	}
	return fallback
}

// Detach returns a background context holding the correlation ids of ctx
// but none of its deadline or cancellation. Used for work that outlives
// the request that scheduled it.
func Detach(ctx context.Context) context.Context {
	out := context.Background()
	if id := RequestID(ctx); id != "" {
		out = WithRequestID(out, id)
	}
	if id := ProjectID(ctx); id != "" {
		out = WithProjectID(out, id)
	}
	return out
}

// Logger annotates logger with the correlation ids found in ctx.
func Logger(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = slog.Default()
	}
	if id := RequestID(ctx); id != "" {
		logger = logger.With("request_id", id)
	}
	if id := ProjectID(ctx); id != "" {
		logger = logger.With("project_id", id)
	}
	return logger
}
