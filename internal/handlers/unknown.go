// ABOUTME: Fallback domain for turns no other domain claimed
// ABOUTME: Greets the customer and points at the menu

package handlers

import (
	"context"
	"fmt"

	"github.com/clementeaf/ai-assistants/internal/store"
)

// Unknown greets and suggests the menu.
type Unknown struct{}

// Handle implements Handler.
func (Unknown) Handle(_ context.Context, state *store.ConversationState, _ string) (Reply, error) {
	greeting := "¡Hola!"
	if state.CustomerName != "" {
		greeting = fmt.Sprintf("¡Hola, %s!", state.CustomerName)
	}
	return Reply{
		Text: greeting + " Puedo ayudarte con reservas, compras o reclamos. Escribí MENU_INIT para ver el menú.",
	}, nil
}
