// ABOUTME: Autonomous domain: free-form answers from a completion backend with recalled context
// ABOUTME: Falls back to a fixed text when no completer is configured or it fails

package handlers

import (
	"context"
	"log/slog"

	"github.com/clementeaf/ai-assistants/internal/recall"
	"github.com/clementeaf/ai-assistants/internal/store"
)

// AutonomousFallback is returned when no completion is available.
const AutonomousFallback = "Ahora mismo no puedo responder eso. Escribí MENU_INIT para ver las opciones disponibles."

const (
	recallLimit  = 3
	historyLimit = 10
)

// Prompt is the input to a Completer.
type Prompt struct {
	CustomerName string
	History      []store.Message
	Memories     []recall.Hit
	Text         string
}

// Completer produces a free-form reply, usually from a language model.
type Completer interface {
	Complete(ctx context.Context, p Prompt) (string, error)
}

// CompleterFunc adapts a function to Completer.
type CompleterFunc func(ctx context.Context, p Prompt) (string, error)

// Complete calls f.
func (f CompleterFunc) Complete(ctx context.Context, p Prompt) (string, error) {
	return f(ctx, p)
}

// Autonomous answers anything, using recall for customer context.
type Autonomous struct {
	completer Completer
	recall    recall.Store
	logger    *slog.Logger
}

// NewAutonomous creates the autonomous handler. Both collaborators are optional.
func NewAutonomous(completer Completer, rs recall.Store, logger *slog.Logger) *Autonomous {
	if logger == nil {
		logger = slog.Default()
	}
	return &Autonomous{completer: completer, recall: rs, logger: logger.With("component", "autonomous")}
}

// Handle implements Handler.
func (a *Autonomous) Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error) {
	var memories []recall.Hit
	if a.recall != nil && state.CustomerID != "" {
		hits, err := a.recall.Recall(ctx, state.CustomerID, text, recallLimit)
		if err != nil {
			a.logger.Warn("recall failed", "customer_id", state.CustomerID, "error", err)
		}
		memories = hits
		if err := a.recall.Remember(ctx, state.CustomerID, text); err != nil {
			a.logger.Warn("remember failed", "customer_id", state.CustomerID, "error", err)
		}
	}

	if a.completer == nil {
		return Reply{Text: AutonomousFallback}, nil
	}

	history := state.Messages
	if len(history) > historyLimit {
		history = history[len(history)-historyLimit:]
	}
	out, err := a.completer.Complete(ctx, Prompt{
		CustomerName: state.CustomerName,
		History:      history,
		Memories:     memories,
		Text:         text,
	})
	if err != nil {
		a.logger.Warn("completion failed", "kind", KindOf(err), "error", err)
		return Reply{Text: AutonomousFallback}, nil
	}
	return Reply{Text: out, UIHints: map[string]any{"recalled": len(memories)}}, nil
}
