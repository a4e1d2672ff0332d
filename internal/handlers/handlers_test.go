// ABOUTME: Tests for the built-in domain handlers
// ABOUTME: Bookings flow, order lookups, claims and autonomous fallbacks

package handlers

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clementeaf/ai-assistants/internal/recall"
	"github.com/clementeaf/ai-assistants/internal/store"
)

func newBookings(t *testing.T) *Bookings {
	t.Helper()
	b := NewBookings(NewMemoryBookingBackend(), nil)
	b.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return b
}

func TestBookings_CollectsAcrossTurns(t *testing.T) {
	b := newBookings(t)
	ctx := context.Background()
	state := store.NewConversationState("web:1")

	reply, err := b.Handle(ctx, state, "quiero reservar")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "A nombre de quién")

	reply, err = b.Handle(ctx, state, "me llamo ana")
	require.NoError(t, err)
	assert.Equal(t, "Ana", state.CustomerName)
	assert.Contains(t, reply.Text, "qué fecha")

	reply, err = b.Handle(ctx, state, "el 2025-03-10")
	require.NoError(t, err)
	assert.Equal(t, "2025-03-10", state.RequestedBookingDate)
	assert.Contains(t, reply.Text, "horario")

	reply, err = b.Handle(ctx, state, "de 9:00 a 10:30")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "reservé el 2025-03-10 de 09:00 a 10:30")
	assert.Regexp(t, `^BOOK-[0-9A-F]{8}$`, state.LastBookingID)
	assert.Contains(t, reply.Text, state.LastBookingID)
	assert.Empty(t, state.RequestedBookingDate, "request is cleared after confirmation")
	assert.Equal(t, "Ana", state.CustomerName)
}

func TestBookings_AllInOneMessage(t *testing.T) {
	b := newBookings(t)
	state := store.NewConversationState("web:1")

	reply, err := b.Handle(context.Background(), state, "Soy Juan Pérez, para el 2025-04-01 de 15:00-16:00")
	require.NoError(t, err)
	assert.Equal(t, "Juan Pérez", state.CustomerName)
	assert.Contains(t, reply.Text, "BOOK-")
}

func TestBookings_NameStopsAtLowercaseWord(t *testing.T) {
	b := newBookings(t)
	state := store.NewConversationState("web:1")

	_, err := b.Handle(context.Background(), state, "me llamo Ana y quiero un turno")
	require.NoError(t, err)
	assert.Equal(t, "Ana", state.CustomerName)
}

func TestBookings_Validation(t *testing.T) {
	b := newBookings(t)
	ctx := context.Background()

	state := store.NewConversationState("web:1")
	reply, _ := b.Handle(ctx, state, "2025-02-30")
	assert.Contains(t, reply.Text, "no es válida")

	reply, _ = b.Handle(ctx, state, "2024-12-31")
	assert.Contains(t, reply.Text, "ya pasó")
	assert.Empty(t, state.RequestedBookingDate)

	reply, _ = b.Handle(ctx, state, "11:00-10:00")
	assert.Contains(t, reply.Text, "posterior")
}

func TestBookings_OverlapAsksForAnotherSlot(t *testing.T) {
	backend := NewMemoryBookingBackend()
	b := NewBookings(backend, nil)
	b.now = func() time.Time { return time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	first := store.NewConversationState("web:1")
	_, err := b.Handle(ctx, first, "Soy Ana, 2025-03-10 10:00-11:00")
	require.NoError(t, err)
	require.NotEmpty(t, first.LastBookingID)

	second := store.NewConversationState("web:2")
	reply, err := b.Handle(ctx, second, "Soy Beto, 2025-03-10 10:30-11:30")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ocupado")
	assert.Empty(t, second.LastBookingID)
	assert.Equal(t, "2025-03-10", second.RequestedBookingDate)
	assert.Empty(t, second.RequestedBookingStart)
}

func TestPurchases_Tracking(t *testing.T) {
	p := NewPurchases(NewMemoryOrderBackend(DemoOrders()...), nil)
	state := store.NewConversationState("whatsapp:+5491112345678")

	reply, err := p.Handle(context.Background(), state, "TRACK-9002")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "TRACK-9002")
	assert.Contains(t, reply.Text, "en camino")
	assert.Contains(t, reply.Text, "Andreani")
	assert.Equal(t, "TRACK-9002", state.LastTrackingID)
	assert.Equal(t, "ORDER-1002", state.LastOrderID)
	assert.Equal(t, "Andreani", reply.UIHints["carrier"])
}

func TestPurchases_OrderLookupAndNotFound(t *testing.T) {
	p := NewPurchases(NewMemoryOrderBackend(DemoOrders()...), nil)
	ctx := context.Background()
	state := store.NewConversationState("web:1")

	reply, err := p.Handle(ctx, state, "¿cómo va order-1001?")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ORDER-1001: estado entregado")
	assert.Equal(t, "TRACK-9001", state.LastTrackingID)

	reply, err = p.Handle(ctx, state, "ORDER-4040")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "No encontré el pedido ORDER-4040")
	assert.Equal(t, "ORDER-1001", state.LastOrderID, "failed lookups keep the previous order")
}

func TestPurchases_ListOrders(t *testing.T) {
	p := NewPurchases(NewMemoryOrderBackend(DemoOrders()...), nil)
	ctx := context.Background()

	anon := store.NewConversationState("web:1")
	reply, err := p.Handle(ctx, anon, "mis compras")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "número de cliente")

	known := store.NewConversationState("web:2")
	known.CustomerID = "cust-001"
	reply, err = p.Handle(ctx, known, "Mis Compras")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ORDER-1001")
	assert.Contains(t, reply.Text, "ORDER-1002")
	assert.NotContains(t, reply.Text, "ORDER-1003")
}

type downOrders struct{}

func (downOrders) GetOrder(context.Context, string) (*Order, error) {
	return nil, newError(KindBackendUnavailable, "get order", errors.New("timeout"))
}
func (downOrders) GetByTracking(context.Context, string) (*Order, error) {
	return nil, errors.New("connection refused")
}
func (downOrders) ListOrders(context.Context, string) ([]Order, error) {
	return nil, newError(KindBackendUnavailable, "list", nil)
}

func TestPurchases_BackendUnavailable(t *testing.T) {
	p := NewPurchases(downOrders{}, nil)
	reply, err := p.Handle(context.Background(), store.NewConversationState("web:1"), "TRACK-1")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "no está disponible")
}

func TestPurchases_AsksForReference(t *testing.T) {
	p := NewPurchases(NewMemoryOrderBackend(), nil)
	reply, err := p.Handle(context.Background(), store.NewConversationState("web:1"), "quiero saber de mi compra")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ORDER-...")
}

func TestClaims_Flow(t *testing.T) {
	c := NewClaims(NewMemoryOrderBackend(DemoOrders()...), nil)
	c.newID = func() string { return "CLM-TEST0001" }
	ctx := context.Background()
	state := store.NewConversationState("web:1")

	reply, err := c.Handle(ctx, state, "quiero hacer un reclamo")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "Sobre qué pedido")

	reply, err = c.Handle(ctx, state, "ORDER-9999")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "No encontré el pedido ORDER-9999")

	reply, err = c.Handle(ctx, state, "es el ORDER-1002")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "CLM-TEST0001")
	assert.Equal(t, "CLM-TEST0001", state.LastClaimID)

	reply, err = c.Handle(ctx, state, "¿novedades?")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "en revisión")
}

func TestClaims_UsesLastOrder(t *testing.T) {
	c := NewClaims(nil, nil)
	state := store.NewConversationState("web:1")
	state.LastOrderID = "ORDER-1"

	reply, err := c.Handle(context.Background(), state, "llegó roto")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "ORDER-1")
	assert.NotEmpty(t, state.LastClaimID)
}

func TestAutonomous(t *testing.T) {
	ctx := context.Background()

	t.Run("no completer", func(t *testing.T) {
		a := NewAutonomous(nil, nil, nil)
		reply, err := a.Handle(ctx, store.NewConversationState("web:1"), "hola")
		require.NoError(t, err)
		assert.Equal(t, AutonomousFallback, reply.Text)
	})

	t.Run("completer error", func(t *testing.T) {
		a := NewAutonomous(CompleterFunc(func(context.Context, Prompt) (string, error) {
			return "", errors.New("rate limited")
		}), nil, nil)
		reply, err := a.Handle(ctx, store.NewConversationState("web:1"), "hola")
		require.NoError(t, err)
		assert.Equal(t, AutonomousFallback, reply.Text)
	})

	t.Run("recall feeds prompt", func(t *testing.T) {
		rs := recall.NewMemoryStore(0)
		require.NoError(t, rs.Remember(ctx, "c1", "me gustan los envíos rápidos"))

		var got Prompt
		a := NewAutonomous(CompleterFunc(func(_ context.Context, p Prompt) (string, error) {
			got = p
			return "Claro, priorizo envíos rápidos.", nil
		}), rs, nil)

		state := store.NewConversationState("web:1")
		state.CustomerID = "c1"
		reply, err := a.Handle(ctx, state, "envíos rápidos por favor")
		require.NoError(t, err)
		assert.Equal(t, "Claro, priorizo envíos rápidos.", reply.Text)
		require.Len(t, got.Memories, 1)
		assert.Equal(t, "me gustan los envíos rápidos", got.Memories[0].Text)

		// The new text is remembered for later turns.
		hits, err := rs.Recall(ctx, "c1", "por favor", 5)
		require.NoError(t, err)
		assert.Len(t, hits, 1)
	})
}

func TestUnknown(t *testing.T) {
	state := store.NewConversationState("web:1")
	reply, err := Unknown{}.Handle(context.Background(), state, "hola")
	require.NoError(t, err)
	assert.Contains(t, reply.Text, "MENU_INIT")

	state.CustomerName = "Ana"
	reply, _ = Unknown{}.Handle(context.Background(), state, "hola")
	assert.Contains(t, reply.Text, "Hola, Ana")
}

func TestKindOf(t *testing.T) {
	err := newError(KindNotFound, "op", errors.New("x"))
	assert.Equal(t, KindNotFound, KindOf(err))
	assert.Equal(t, KindBackendUnavailable, KindOf(errors.New("plain")))
	assert.ErrorContains(t, err, "op: NOT_FOUND: x")
}
