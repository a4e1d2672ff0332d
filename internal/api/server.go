// ABOUTME: HTTP server exposing turns, jobs and customer memory
// ABOUTME: Wires routes, middleware and graceful shutdown around the orchestrator and scheduler

package api

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/clementeaf/ai-assistants/internal/auth"
	"github.com/clementeaf/ai-assistants/internal/conversation"
	"github.com/clementeaf/ai-assistants/internal/jobs"
	"github.com/clementeaf/ai-assistants/internal/store"
)

const shutdownTimeout = 10 * time.Second

// TurnService runs and inspects conversation turns. *conversation.Service implements it.
type TurnService interface {
	RunTurn(ctx context.Context, req conversation.TurnRequest) (*conversation.TurnResult, error)
	Conversation(ctx context.Context, id string) (*store.ConversationState, error)
	Forget(ctx context.Context, projectID, customerID string) error
}

// JobService schedules and polls asynchronous turns. *jobs.Scheduler implements it.
type JobService interface {
	Schedule(ctx context.Context, req jobs.Request) (string, error)
	Get(ctx context.Context, jobID string) (*store.JobRecord, error)
}

// Config wires a Server. Jobs, Broadcaster and Verifier are optional; a nil
// Verifier serves the API without authentication.
type Config struct {
	Addr        string
	Turns       TurnService
	Jobs        JobService
	Broadcaster *conversation.Broadcaster
	Verifier    auth.TokenVerifier
	Logger      *slog.Logger
}

// Server is the thin HTTP layer over the orchestrator.
type Server struct {
	turns       TurnService
	jobs        JobService
	broadcaster *conversation.Broadcaster
	httpServer  *http.Server
	handler     http.Handler
	logger      *slog.Logger
}

// New creates a Server and registers its routes.
func New(cfg Config) (*Server, error) {
	if cfg.Turns == nil {
		return nil, errors.New("turn service is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	s := &Server{
		turns:       cfg.Turns,
		jobs:        cfg.Jobs,
		broadcaster: cfg.Broadcaster,
		logger:      logger.With("component", "api"),
	}

	mux := http.NewServeMux()

	// Health endpoint - no auth required
	mux.HandleFunc("GET /health", s.handleHealth)

	// API endpoints - auth required if a verifier is configured
	protect := func(h http.HandlerFunc) http.Handler { return h }
	if cfg.Verifier != nil {
		authMiddleware := auth.HTTPAuthMiddleware(cfg.Verifier, logger)
		protect = func(h http.HandlerFunc) http.Handler { return authMiddleware(h) }
		s.logger.Info("API authentication enabled")
	} else {
		s.logger.Warn("API authentication disabled (no jwt_secret configured)")
	}

	mux.Handle("POST /v1/turns", protect(s.handleRunTurn))
	mux.Handle("POST /v1/jobs", protect(s.handleScheduleJob))
	mux.Handle("GET /v1/jobs/{id}", protect(s.handleGetJob))
	mux.Handle("GET /v1/conversations/{id}", protect(s.handleGetConversation))
	mux.Handle("GET /v1/conversations/{id}/events", protect(s.handleConversationEvents))
	mux.Handle("DELETE /v1/memory/{customer_id}", protect(s.handleForget))

	s.handler = requestIDMiddleware(projectIDMiddleware(loggingMiddleware(s.logger, mux)))
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s, nil
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.handler
}

// Run serves until ctx is cancelled, then shuts down gracefully.
// Returns nil on graceful shutdown, or an error if the server fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("listening on HTTP address: %w", err)
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("HTTP server listening", "addr", ln.Addr().String())
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- fmt.Errorf("HTTP server: %w", err)
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	s.logger.Info("shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("HTTP shutdown: %w", err)
	}
	return nil
}

// handleHealth returns 200 OK if the server is alive.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}
