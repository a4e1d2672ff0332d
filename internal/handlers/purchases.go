// ABOUTME: Purchases domain: order and tracking lookups, order listing per customer
// ABOUTME: Remembers the last order and tracking id on the conversation

package handlers

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/clementeaf/ai-assistants/internal/router"
	"github.com/clementeaf/ai-assistants/internal/store"
)

var (
	orderIDPattern    = regexp.MustCompile(`(?i)\bORDER-\d+\b`)
	trackingIDPattern = regexp.MustCompile(`(?i)\bTRACK-\d+\b`)
)

var listOrdersPhrases = []string{"mis compras", "mis pedidos", "my orders", "my purchases"}

// Purchases answers order status questions.
type Purchases struct {
	orders OrderBackend
	logger *slog.Logger
}

// NewPurchases creates the purchases handler.
func NewPurchases(orders OrderBackend, logger *slog.Logger) *Purchases {
	if logger == nil {
		logger = slog.Default()
	}
	return &Purchases{orders: orders, logger: logger.With("component", "purchases")}
}

// Handle implements Handler.
func (p *Purchases) Handle(ctx context.Context, state *store.ConversationState, text string) (Reply, error) {
	if id := trackingIDPattern.FindString(text); id != "" {
		return p.byTracking(ctx, state, strings.ToUpper(id)), nil
	}
	if id := orderIDPattern.FindString(text); id != "" {
		return p.byOrder(ctx, state, strings.ToUpper(id)), nil
	}

	folded := router.Fold(text)
	for _, phrase := range listOrdersPhrases {
		if strings.Contains(folded, phrase) {
			return p.list(ctx, state), nil
		}
	}

	switch {
	case state.LastTrackingID != "":
		return p.byTracking(ctx, state, state.LastTrackingID), nil
	case state.LastOrderID != "":
		return p.byOrder(ctx, state, state.LastOrderID), nil
	}
	return Reply{Text: "Decime tu número de pedido (ORDER-...) o de seguimiento (TRACK-...) y lo busco."}, nil
}

func (p *Purchases) byTracking(ctx context.Context, state *store.ConversationState, trackingID string) Reply {
	order, err := p.orders.GetByTracking(ctx, trackingID)
	if err != nil {
		return p.failure(err, "el envío "+trackingID)
	}
	state.LastTrackingID = trackingID
	state.LastOrderID = order.OrderID
	return Reply{Text: describe(order, trackingID), UIHints: orderHints(order)}
}

func (p *Purchases) byOrder(ctx context.Context, state *store.ConversationState, orderID string) Reply {
	order, err := p.orders.GetOrder(ctx, orderID)
	if err != nil {
		return p.failure(err, "el pedido "+orderID)
	}
	state.LastOrderID = order.OrderID
	if order.TrackingID != "" {
		state.LastTrackingID = order.TrackingID
	}
	return Reply{Text: describe(order, order.OrderID), UIHints: orderHints(order)}
}

func (p *Purchases) list(ctx context.Context, state *store.ConversationState) Reply {
	if state.CustomerID == "" {
		return Reply{Text: "Para ver tus compras necesito tu número de cliente o el email con el que compraste."}
	}
	orders, err := p.orders.ListOrders(ctx, state.CustomerID)
	if err != nil {
		return p.failure(err, "tus compras")
	}
	if len(orders) == 0 {
		return Reply{Text: "No encontré compras asociadas a tu cuenta."}
	}

	var b strings.Builder
	b.WriteString("Estas son tus compras:")
	ids := make([]string, 0, len(orders))
	for _, o := range orders {
		fmt.Fprintf(&b, "\n- %s: %s", o.OrderID, o.Status)
		ids = append(ids, o.OrderID)
	}
	state.LastOrderID = orders[len(orders)-1].OrderID
	return Reply{Text: b.String(), UIHints: map[string]any{"orders": ids}}
}

func (p *Purchases) failure(err error, subject string) Reply {
	switch KindOf(err) {
	case KindNotFound:
		return Reply{Text: fmt.Sprintf("No encontré %s. Revisá el número e intentá de nuevo.", subject)}
	case KindInvalidInput:
		return Reply{Text: fmt.Sprintf("No pude consultar %s con esos datos.", subject)}
	default:
		p.logger.Warn("order backend unavailable", "error", err)
		return Reply{Text: "El sistema de pedidos no está disponible en este momento. Probá de nuevo en unos minutos."}
	}
}

// describe renders the status line for an order; ref is the identifier the customer asked about.
func describe(o *Order, ref string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: estado %s", ref, o.Status)
	if o.Carrier != "" {
		fmt.Fprintf(&b, ", transportista %s", o.Carrier)
	}
	if ref != o.OrderID {
		fmt.Fprintf(&b, " (pedido %s)", o.OrderID)
	} else if o.TrackingID != "" {
		fmt.Fprintf(&b, " (seguimiento %s)", o.TrackingID)
	}
	if o.ETA != "" {
		fmt.Fprintf(&b, ". Entrega estimada: %s", o.ETA)
	}
	b.WriteString(".")
	return b.String()
}

func orderHints(o *Order) map[string]any {
	hints := map[string]any{"order_id": o.OrderID, "status": o.Status}
	if o.TrackingID != "" {
		hints["tracking_id"] = o.TrackingID
	}
	if o.Carrier != "" {
		hints["carrier"] = o.Carrier
	}
	return hints
}
