// ABOUTME: Handler contract and the domain dispatch table
// ABOUTME: One handler per router.Domain, all with the same signature

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/clementeaf/ai-assistants/internal/recall"
	"github.com/clementeaf/ai-assistants/internal/router"
	"github.com/clementeaf/ai-assistants/internal/store"
)

// Reply is what a handler produces for one turn.
type Reply struct {
	Text    string         `json:"text"`
	UIHints map[string]any `json:"ui_hints,omitempty"`
}

// Handler runs one turn for a domain. It may mutate state; business
// failures are reported as reply text, never as errors.
type Handler interface {
	Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, state *store.ConversationState, text string) (Reply, error)

// Handle calls f.
func (f HandlerFunc) Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error) {
	return f(ctx, state, text)
}

// Registry maps domains to handlers.
type Registry struct {
	mu       sync.RWMutex
	handlers map[router.Domain]Handler
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[router.Domain]Handler)}
}

// Register sets the handler for d, replacing any previous one.
func (r *Registry) Register(d router.Domain, h Handler) error {
	if !d.Valid() {
		return fmt.Errorf("register handler: unknown domain %q", d)
	}
	if h == nil {
		return fmt.Errorf("register handler: nil handler for %s", d)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[d] = h
	return nil
}

// Get returns the handler for d.
func (r *Registry) Get(d router.Domain) (Handler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[d]
	return h, ok
}

// Deps are the collaborators of the built-in handlers.
type Deps struct {
	Orders    OrderBackend
	Bookings  BookingBackend
	Completer Completer
	Recall    recall.Store
	Logger    *slog.Logger
}

// NewDefaultRegistry registers a handler for every domain. Nil order and
// booking backends get the in-memory implementations.
func NewDefaultRegistry(deps Deps) *Registry {
	if deps.Orders == nil {
		deps.Orders = NewMemoryOrderBackend(DemoOrders()...)
	}
	if deps.Bookings == nil {
		deps.Bookings = NewMemoryBookingBackend()
	}

	r := NewRegistry()
	r.handlers[router.Bookings] = NewBookings(deps.Bookings, deps.Logger)
	r.handlers[router.Purchases] = NewPurchases(deps.Orders, deps.Logger)
	r.handlers[router.Claims] = NewClaims(deps.Orders, deps.Logger)
	r.handlers[router.Autonomous] = NewAutonomous(deps.Completer, deps.Recall, deps.Logger)
	r.handlers[router.Unknown] = Unknown{}
	return r
}
