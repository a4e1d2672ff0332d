// ABOUTME: HTTP API handlers for turns, jobs, conversations and customer memory
// ABOUTME: JSON in and out; conversation events are streamed as server-sent events

package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/clementeaf/ai-assistants/internal/conversation"
	"github.com/clementeaf/ai-assistants/internal/jobs"
	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

const (
	maxBodyBytes     = 1 << 20
	sseKeepAlive     = 30 * time.Second
	turnEventSSEName = "turn"
)

// TurnRequest is the JSON request body for POST /v1/turns.
type TurnRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	EventID        string `json:"event_id,omitempty"`
	CustomerID     string `json:"customer_id,omitempty"`
}

// TurnResponse is the JSON response for POST /v1/turns.
type TurnResponse struct {
	ConversationID string         `json:"conversation_id"`
	ResponseText   string         `json:"response_text"`
	Domain         string         `json:"domain"`
	UIHints        map[string]any `json:"ui_hints,omitempty"`
	Duplicate      bool           `json:"duplicate"`
}

// JobRequest is the JSON request body for POST /v1/jobs.
type JobRequest struct {
	ConversationID string `json:"conversation_id"`
	Text           string `json:"text"`
	CustomerID     string `json:"customer_id,omitempty"`
	MessageID      string `json:"message_id,omitempty"`
}

// JobAcceptedResponse is the JSON response for POST /v1/jobs.
type JobAcceptedResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// JobStatusResponse is the JSON response for GET /v1/jobs/{id}.
type JobStatusResponse struct {
	JobID          string `json:"job_id"`
	Status         string `json:"status"`
	ConversationID string `json:"conversation_id"`
	MessageID      string `json:"message_id,omitempty"`
	ResponseText   string `json:"response_text,omitempty"`
	ErrorText      string `json:"error_text,omitempty"`
}

func jobStatusResponse(job *store.JobRecord) JobStatusResponse {
	return JobStatusResponse{
		JobID:          job.JobID,
		Status:         string(job.Status),
		ConversationID: job.ConversationID,
		MessageID:      job.MessageID,
		ResponseText:   job.ResponseText,
		ErrorText:      job.ErrorText,
	}
}

// handleRunTurn handles POST /v1/turns by running the turn inline.
func (s *Server) handleRunTurn(w http.ResponseWriter, r *http.Request) {
	var req TurnRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	res, err := s.turns.RunTurn(r.Context(), conversation.TurnRequest{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		EventID:        req.EventID,
		CustomerID:     req.CustomerID,
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusOK, TurnResponse{
		ConversationID: res.ConversationID,
		ResponseText:   res.ResponseText,
		Domain:         string(res.Domain),
		UIHints:        res.UIHints,
		Duplicate:      res.Duplicate,
	})
}

// handleScheduleJob handles POST /v1/jobs.
func (s *Server) handleScheduleJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "jobs are not enabled")
		return
	}

	var req JobRequest
	if !s.decodeJSON(w, r, &req) {
		return
	}

	jobID, err := s.jobs.Schedule(r.Context(), jobs.Request{
		ConversationID: req.ConversationID,
		Text:           req.Text,
		CustomerID:     req.CustomerID,
		MessageID:      req.MessageID,
	})
	if err != nil {
		s.sendError(w, r, err)
		return
	}

	s.sendJSON(w, http.StatusAccepted, JobAcceptedResponse{JobID: jobID, Status: string(store.JobPending)})
}

// handleGetJob handles GET /v1/jobs/{id}.
func (s *Server) handleGetJob(w http.ResponseWriter, r *http.Request) {
	if s.jobs == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "jobs are not enabled")
		return
	}

	job, err := s.jobs.Get(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, jobStatusResponse(job))
}

// handleGetConversation handles GET /v1/conversations/{id}.
func (s *Server) handleGetConversation(w http.ResponseWriter, r *http.Request) {
	state, err := s.turns.Conversation(r.Context(), r.PathValue("id"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	s.sendJSON(w, http.StatusOK, state)
}

// handleForget handles DELETE /v1/memory/{customer_id}.
func (s *Server) handleForget(w http.ResponseWriter, r *http.Request) {
	err := s.turns.Forget(r.Context(), trace.ProjectID(r.Context()), r.PathValue("customer_id"))
	if err != nil {
		s.sendError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleConversationEvents handles GET /v1/conversations/{id}/events,
// streaming every completed turn of the conversation until the client leaves.
func (s *Server) handleConversationEvents(w http.ResponseWriter, r *http.Request) {
	if s.broadcaster == nil {
		s.sendJSONError(w, http.StatusServiceUnavailable, "event streaming is not enabled")
		return
	}

	// Check streaming support before subscribing (fail fast)
	flusher, ok := w.(http.Flusher)
	if !ok {
		s.sendJSONError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	events, _ := s.broadcaster.Subscribe(r.Context(), r.PathValue("id"))

	// Set SSE headers
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	keepAlive := time.NewTicker(sseKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepAlive.C:
			_, _ = fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case ev, ok := <-events:
			if !ok {
				return
			}
			s.writeSSEEvent(w, turnEventSSEName, ev)
			flusher.Flush()
		}
	}
}

// writeSSEEvent writes a single SSE event to the response writer.
func (s *Server) writeSSEEvent(w http.ResponseWriter, event string, data any) {
	dataJSON, err := json.Marshal(data)
	if err != nil {
		s.logger.Error("failed to marshal SSE data", "error", err)
		return
	}

	fmt.Fprintf(w, "event: %s\n", event)
	fmt.Fprintf(w, "data: %s\n\n", dataJSON)
}

// decodeJSON reads a size-limited JSON body into v, writing a 400 on failure.
func (s *Server) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		s.sendJSONError(w, http.StatusBadRequest, "invalid JSON body")
		return false
	}
	return true
}

// sendError maps service errors onto HTTP statuses.
func (s *Server) sendError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, conversation.ErrInvalidRequest), errors.Is(err, jobs.ErrInvalidRequest):
		s.sendJSONError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, store.ErrNotFound):
		s.sendJSONError(w, http.StatusNotFound, "not found")
	case errors.Is(err, conversation.ErrMemoryDisabled):
		s.sendJSONError(w, http.StatusNotImplemented, err.Error())
	case errors.Is(err, jobs.ErrSchedulerClosed):
		s.sendJSONError(w, http.StatusServiceUnavailable, err.Error())
	default:
		trace.Logger(r.Context(), s.logger).Error("request failed", "path", r.URL.Path, "error", err)
		s.sendJSONError(w, http.StatusInternalServerError, "internal server error")
	}
}

// sendJSON writes v as a JSON response.
func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}

// sendJSONError writes a JSON error response.
func (s *Server) sendJSONError(w http.ResponseWriter, status int, message string) {
	s.sendJSON(w, status, map[string]string{"error": message})
}
