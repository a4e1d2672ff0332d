// ABOUTME: Claims domain: opens a claim against an order reference
// ABOUTME: Once entered the router keeps the conversation here

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/clementeaf/ai-assistants/internal/store"
)

// Claims opens and reports customer claims.
type Claims struct {
	orders OrderBackend
	newID  func() string
	logger *slog.Logger
}

// NewClaims creates the claims handler. orders may be nil, in which case
// order references are accepted without validation.
func NewClaims(orders OrderBackend, logger *slog.Logger) *Claims {
	if logger == nil {
		logger = slog.Default()
	}
	return &Claims{
		orders: orders,
		newID:  func() string { return "CLM-" + shortID() },
		logger: logger.With("component", "claims"),
	}
}

// Handle implements Handler.
func (c *Claims) Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error) {
	orderID := strings.ToUpper(orderIDPattern.FindString(text))

	if orderID == "" && state.LastClaimID != "" {
		return Reply{
			Text:    fmt.Sprintf("Tu reclamo %s está en revisión. Si es sobre otro pedido, enviame su número ORDER-...", state.LastClaimID),
			UIHints: map[string]any{"claim_id": state.LastClaimID},
		}, nil
	}

	if orderID == "" {
		orderID = state.LastOrderID
	}
	if orderID == "" {
		return Reply{Text: "Lamento el inconveniente. ¿Sobre qué pedido es el reclamo? Indicame el número ORDER-..."}, nil
	}

	if c.orders != nil {
		if _, err := c.orders.GetOrder(ctx, orderID); err != nil {
			if KindOf(err) == KindNotFound {
				return Reply{Text: fmt.Sprintf("No encontré el pedido %s. Revisá el número, por favor.", orderID)}, nil
			}
			c.logger.Warn("order backend unavailable, opening claim without validation", "order_id", orderID, "error", err)
		}
	}

	claimID := c.newID()
	state.LastClaimID = claimID
	state.LastOrderID = orderID

	return Reply{
		Text:    fmt.Sprintf("Registré tu reclamo %s por el pedido %s. Te contactaremos dentro de las próximas 48 horas.", claimID, orderID),
		UIHints: map[string]any{"claim_id": claimID, "order_id": orderID},
	}, nil
}
