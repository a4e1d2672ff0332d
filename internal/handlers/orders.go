// ABOUTME: Order lookup backend used by the purchases and claims handlers
// ABOUTME: Ships an in-memory catalog for development and tests

package handlers

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
)

// Order is a purchase as reported by the order backend.
type Order struct {
	OrderID    string `json:"order_id"`
	TrackingID string `json:"tracking_id,omitempty"`
	CustomerID string `json:"customer_id"`
	Status     string `json:"status"`
	Carrier    string `json:"carrier,omitempty"`
	ETA        string `json:"eta,omitempty"`
}

// OrderBackend looks up orders. Failures are *Error values.
type OrderBackend interface {
	GetOrder(ctx context.Context, orderID string) (*Order, error)
	GetByTracking(ctx context.Context, trackingID string) (*Order, error)
	ListOrders(ctx context.Context, customerID string) ([]Order, error)
}

// MemoryOrderBackend is an OrderBackend over a fixed catalog.
type MemoryOrderBackend struct {
	mu     sync.RWMutex
	orders map[string]Order // keyed by order ID
}

// NewMemoryOrderBackend returns a backend holding orders.
func NewMemoryOrderBackend(orders ...Order) *MemoryOrderBackend {
	b := &MemoryOrderBackend{orders: make(map[string]Order, len(orders))}
	for _, o := range orders {
		b.orders[o.OrderID] = o
	}
	return b
}

// DemoOrders is the catalog used when no order backend is configured.
func DemoOrders() []Order {
	return []Order{
		{OrderID: "ORDER-1001", TrackingID: "TRACK-9001", CustomerID: "cust-001", Status: "entregado", Carrier: "Correo Argentino", ETA: "2025-01-10"},
		{OrderID: "ORDER-1002", TrackingID: "TRACK-9002", CustomerID: "cust-001", Status: "en camino", Carrier: "Andreani", ETA: "2025-01-15"},
		{OrderID: "ORDER-1003", CustomerID: "cust-002", Status: "preparando", ETA: "2025-01-20"},
	}
}

// GetOrder returns the order with orderID.
func (b *MemoryOrderBackend) GetOrder(_ context.Context, orderID string) (*Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	o, ok := b.orders[strings.ToUpper(orderID)]
	if !ok {
		return nil, newError(KindNotFound, "get order", errors.New(orderID))
	}
	return &o, nil
}

// GetByTracking returns the order shipped under trackingID.
func (b *MemoryOrderBackend) GetByTracking(_ context.Context, trackingID string) (*Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	want := strings.ToUpper(trackingID)
	for _, o := range b.orders {
		if o.TrackingID == want {
			return &o, nil
		}
	}
	return nil, newError(KindNotFound, "get by tracking", errors.New(trackingID))
}

// ListOrders returns the customer's orders sorted by order ID.
func (b *MemoryOrderBackend) ListOrders(_ context.Context, customerID string) ([]Order, error) {
	if customerID == "" {
		return nil, newError(KindInvalidInput, "list orders", errors.New("customer id is required"))
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	var out []Order
	for _, o := range b.orders {
		if o.CustomerID == customerID {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].OrderID < out[j].OrderID })
	return out, nil
}

var _ OrderBackend = (*MemoryOrderBackend)(nil)
