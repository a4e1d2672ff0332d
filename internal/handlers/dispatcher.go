// ABOUTME: Combines the router with the handler registry for one turn
// ABOUTME: Applies menu bookkeeping, records the routed domain and recovers handler panics

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/clementeaf/ai-assistants/internal/router"
	"github.com/clementeaf/ai-assistants/internal/store"
	"github.com/clementeaf/ai-assistants/internal/trace"
)

// menuIntro precedes a rendered menu.
const menuIntro = "¿En qué te puedo ayudar? Respondé con el número:"

// Result is the dispatcher output.
type Result struct {
	Domain   router.Domain
	Reason   string
	Reply    Reply
	MenuOnly bool
}

// Dispatcher routes a turn and runs the selected handler.
type Dispatcher struct {
	router   *router.Router
	registry *Registry
	logger   *slog.Logger
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(r *router.Router, registry *Registry, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		router:   r,
		registry: registry,
		logger:   logger.With("component", "dispatcher"),
	}
}

// Dispatch routes text and mutates state in place. Callers pass a copy
// they are prepared to discard when an error is returned.
func (d *Dispatcher) Dispatch(ctx context.Context, state *store.ConversationState, text string) (*Result, error) {
	logger := trace.Logger(ctx, d.logger)
	decision := d.router.Route(ctx, state, text)

	if decision.ClearMenu {
		state.PendingMenu = nil
	}
	state.RoutedDomain = string(decision.Domain)

	if len(decision.Menu) > 0 {
		state.PendingMenu = router.MenuTags(decision.Menu)
		logger.Info("→ showing menu", "conversation_id", state.ConversationID, "items", len(decision.Menu))
		return &Result{
			Domain: decision.Domain,
			Reason: decision.Reason,
			Reply: Reply{
				Text:    menuIntro + "\n" + router.RenderMenu(decision.Menu),
				UIHints: map[string]any{"menu": router.MenuTags(decision.Menu)},
			},
			MenuOnly: true,
		}, nil
	}

	h, ok := d.registry.Get(decision.Domain)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoHandler, decision.Domain)
	}

	logger.Info("→ dispatching to handler",
		"conversation_id", state.ConversationID,
		"domain", decision.Domain,
		"reason", decision.Reason,
	)

	reply, err := d.safeHandle(ctx, h, state, text)
	if err != nil {
		logger.Error("handler failed", "domain", decision.Domain, "error", err)
		return nil, fmt.Errorf("handling %s turn: %w", decision.Domain, err)
	}

	logger.Debug("← handler responded", "domain", decision.Domain, "chars", len(reply.Text))
	return &Result{Domain: decision.Domain, Reason: decision.Reason, Reply: reply}, nil
}

func (d *Dispatcher) safeHandle(ctx context.Context, h Handler, state *store.ConversationState, text string) (reply Reply, err error) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("handler panic", "panic", r, "stack", string(debug.Stack()))
			err = fmt.Errorf("%w: %v", ErrHandlerPanic, r)
		}
	}()
	return h.Handle(ctx, state, text)
}
