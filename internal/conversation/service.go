// ABOUTME: Turn orchestrator: load state, dedupe the event, route, handle, persist
// ABOUTME: One conversation state write and at most one memory upsert per non-duplicate turn

package conversation

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"strings"
	"time"

	"github.com/clementeaf/ai-assistants/internal/dedupe"
	"github.com/clementeaf/ai-assistants/internal/guardrail"
	"github.com/clementeaf/ai-assistants/internal/handlers"
	"github.com/clementeaf/ai-assistants/internal/router"
	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

// Fixed replies.
const (
	EmptyReplyFallback     = "No pude generar una respuesta."
	DuplicateEventFallback = "Este mensaje ya fue procesado."
)

// ErrInvalidRequest is returned for a turn without conversation id or text.
var ErrInvalidRequest = errors.New("invalid turn request")

// ErrMemoryDisabled is returned by Forget when no memory store is configured.
var ErrMemoryDisabled = errors.New("customer memory is not configured")

// Dispatcher runs the router and domain handler for one turn.
type Dispatcher interface {
	Dispatch(ctx context.Context, state *store.ConversationState, text string) (*handlers.Result, error)
}

// Config wires a Service. Memory, Rewriter and Broadcaster are optional.
type Config struct {
	Conversations store.ConversationStore
	Memory        store.MemoryStore
	Dispatcher    Dispatcher
	Rewriter      guardrail.Rewriter
	Broadcaster   *Broadcaster

	// MaxEventIDs bounds processed_event_ids per conversation (default 200).
	MaxEventIDs int
	// DefaultProjectID is used when the context carries no project (default "dev").
	DefaultProjectID string

	Logger *slog.Logger
}

// Service orchestrates conversation turns.
type Service struct {
	conversations  store.ConversationStore
	memory         store.MemoryStore
	dispatcher     Dispatcher
	rewriter       guardrail.Rewriter
	broadcaster    *Broadcaster
	maxEventIDs    int
	defaultProject string
	locks          *keyedMutex
	now            func() time.Time
	logger         *slog.Logger
}

// New creates a Service.
func New(cfg Config) (*Service, error) {
	if cfg.Conversations == nil {
		return nil, errors.New("conversation store is required")
	}
	if cfg.Dispatcher == nil {
		return nil, errors.New("dispatcher is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.MaxEventIDs <= 0 {
		cfg.MaxEventIDs = dedupe.DefaultMaxIDs
	}
	if cfg.DefaultProjectID == "" {
		cfg.DefaultProjectID = trace.DefaultProjectID
	}
	return &Service{
		conversations:  cfg.Conversations,
		memory:         cfg.Memory,
		dispatcher:     cfg.Dispatcher,
		rewriter:       cfg.Rewriter,
		broadcaster:    cfg.Broadcaster,
		maxEventIDs:    cfg.MaxEventIDs,
		defaultProject: cfg.DefaultProjectID,
		locks:          newKeyedMutex(),
		now:            time.Now,
		logger:         logger.With("component", "conversation"),
	}, nil
}

// TurnRequest is one inbound message.
type TurnRequest struct {
	ConversationID string
	Text           string
	// EventID makes the turn idempotent: replays return the stored reply.
	EventID    string
	CustomerID string
}

// TurnResult is the outcome of a turn.
type TurnResult struct {
	ConversationID string
	ResponseText   string
	Domain         router.Domain
	UIHints        map[string]any
	Duplicate      bool
	State          *store.ConversationState
}

// RunTurn processes one inbound message.
//
// Turns for the same conversation are serialized in-process. Store errors
// are returned unchanged in meaning; when the handler fails nothing is
// written.
func (s *Service) RunTurn(ctx context.Context, req TurnRequest) (*TurnResult, error) {
	if strings.TrimSpace(req.ConversationID) == "" {
		return nil, fmt.Errorf("%w: conversation_id is required", ErrInvalidRequest)
	}
	if strings.TrimSpace(req.Text) == "" {
		return nil, fmt.Errorf("%w: text is required", ErrInvalidRequest)
	}

	logger := trace.Logger(ctx, s.logger).With("conversation_id", req.ConversationID)

	unlock := s.locks.Lock(req.ConversationID)
	defer unlock()

	// 1. Load or create state
	state, err := s.conversations.GetConversation(ctx, req.ConversationID)
	if errors.Is(err, store.ErrNotFound) {
		state = store.NewConversationState(req.ConversationID)
	} else if err != nil {
		return nil, fmt.Errorf("loading conversation: %w", err)
	}

	// 2. Attach customer
	if req.CustomerID != "" {
		state.CustomerID = req.CustomerID
	}

	// 3. Merge long-term memory
	projectID := trace.ProjectIDOr(ctx, s.defaultProject)
	if err := s.hydrate(ctx, state, projectID); err != nil {
		return nil, err
	}
	before := slotsOf(state)

	// 4. Idempotency
	seen := dedupe.FromIDs(state.ProcessedEventIDs, s.maxEventIDs)
	if req.EventID != "" && seen.Contains(req.EventID) {
		text, ok := state.LastAssistantText()
		if !ok {
			text = DuplicateEventFallback
		}
		logger.Info("duplicate event, returning stored reply", "event_id", req.EventID)
		return &TurnResult{
			ConversationID: state.ConversationID,
			ResponseText:   text,
			Domain:         router.Parse(state.RoutedDomain),
			Duplicate:      true,
			State:          state,
		}, nil
	}

	// 5. Record the user message on a working copy
	work := state.Clone()
	now := s.now().UTC()
	work.AppendMessage(store.RoleUser, req.Text, now)

	// 6. Route and handle
	res, err := s.dispatcher.Dispatch(ctx, work, req.Text)
	if err != nil {
		return nil, fmt.Errorf("running turn: %w", err)
	}
	draft := res.Reply.Text
	if strings.TrimSpace(draft) == "" {
		logger.Warn("handler returned empty text", "domain", res.Domain)
		draft = EmptyReplyFallback
	}

	// 7. Guardrail (menus are shown verbatim)
	final := draft
	if !res.MenuOnly {
		final = guardrail.Apply(ctx, logger, s.rewriter, req.Text, draft, string(res.Domain)).Text
	}

	// 8. Record the reply and the event
	work.AppendMessage(store.RoleAssistant, final, s.now().UTC())
	if req.EventID != "" {
		seen.Mark(req.EventID)
		work.ProcessedEventIDs = seen.IDs()
	}
	rememberChangedSlots(work, before)

	// 9. Persist state
	if err := s.conversations.PutConversation(ctx, work); err != nil {
		return nil, fmt.Errorf("saving conversation: %w", err)
	}

	// 10. Write-through memory
	if s.memory != nil && work.CustomerID != "" && len(work.CustomerMemory) > 0 {
		if _, err := s.memory.UpsertMemory(ctx, projectID, work.CustomerID, maps.Clone(work.CustomerMemory)); err != nil {
			return nil, fmt.Errorf("saving customer memory: %w", err)
		}
	}

	logger.Info("turn completed",
		"domain", res.Domain,
		"reason", res.Reason,
		"messages", len(work.Messages),
	)

	if s.broadcaster != nil {
		s.broadcaster.Publish(work.ConversationID, &TurnEvent{
			ConversationID: work.ConversationID,
			Domain:         string(res.Domain),
			UserText:       req.Text,
			ResponseText:   final,
			At:             now,
		})
	}

	return &TurnResult{
		ConversationID: work.ConversationID,
		ResponseText:   final,
		Domain:         res.Domain,
		UIHints:        res.Reply.UIHints,
		State:          work,
	}, nil
}

// hydrate replaces state.CustomerMemory with what the memory store holds.
// The store is authoritative: forgotten or expired keys are dropped.
func (s *Service) hydrate(ctx context.Context, state *store.ConversationState, projectID string) error {
	if state.CustomerMemory == nil {
		state.CustomerMemory = map[string]string{}
	}
	if s.memory == nil || state.CustomerID == "" {
		return nil
	}

	mem, err := s.memory.GetMemory(ctx, projectID, state.CustomerID)
	if errors.Is(err, store.ErrNotFound) {
		state.CustomerMemory = map[string]string{}
		return nil
	}
	if err != nil {
		return fmt.Errorf("loading customer memory: %w", err)
	}

	state.CustomerMemory = maps.Clone(mem.Data)
	if state.CustomerMemory == nil {
		state.CustomerMemory = map[string]string{}
	}

	if state.CustomerName == "" {
		state.CustomerName = mem.Data[store.MemoryKeyCustomerName]
	}
	if state.LastOrderID == "" {
		state.LastOrderID = mem.Data[store.MemoryKeyLastOrderID]
	}
	if state.LastTrackingID == "" {
		state.LastTrackingID = mem.Data[store.MemoryKeyLastTrackingID]
	}
	return nil
}

// memorySlots are the conversation fields mirrored into customer memory.
type memorySlots struct {
	customerName   string
	lastOrderID    string
	lastTrackingID string
}

func slotsOf(state *store.ConversationState) memorySlots {
	return memorySlots{
		customerName:   state.CustomerName,
		lastOrderID:    state.LastOrderID,
		lastTrackingID: state.LastTrackingID,
	}
}

// rememberChangedSlots copies into customer memory only the slots the turn
// set or changed. Values carried over from earlier turns are left alone so
// they cannot resurrect forgotten data or overwrite newer memory.
func rememberChangedSlots(state *store.ConversationState, before memorySlots) {
	after := slotsOf(state)
	if after.customerName != "" && after.customerName != before.customerName {
		state.CustomerMemory[store.MemoryKeyCustomerName] = after.customerName
	}
	if after.lastOrderID != "" && after.lastOrderID != before.lastOrderID {
		state.CustomerMemory[store.MemoryKeyLastOrderID] = after.lastOrderID
	}
	if after.lastTrackingID != "" && after.lastTrackingID != before.lastTrackingID {
		state.CustomerMemory[store.MemoryKeyLastTrackingID] = after.lastTrackingID
	}
}

// Conversation returns the stored state for id.
func (s *Service) Conversation(ctx context.Context, id string) (*store.ConversationState, error) {
	return s.conversations.GetConversation(ctx, id)
}

// Forget deletes everything remembered about a customer. An empty
// projectID uses the default project.
func (s *Service) Forget(ctx context.Context, projectID, customerID string) error {
	if s.memory == nil {
		return ErrMemoryDisabled
	}
	if customerID == "" {
		return fmt.Errorf("%w: customer_id is required", ErrInvalidRequest)
	}
	if projectID == "" {
		projectID = s.defaultProject
	}
	if err := s.memory.DeleteMemory(ctx, projectID, customerID); err != nil {
		return fmt.Errorf("forgetting customer: %w", err)
	}
	trace.Logger(ctx, s.logger).Info("customer memory deleted", "customer_id", customerID, "project_id", projectID)
	return nil
}
