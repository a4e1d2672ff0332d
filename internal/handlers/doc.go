// Package handlers implements the per-domain conversation handlers and the
// dispatcher that connects them to the router.
//
// # Handlers
//
//   - Bookings: collects a name, an ISO date and an HH:MM-HH:MM range, then
//     reserves through a BookingBackend and confirms with a BOOK- code.
//   - Purchases: ORDER-n and TRACK-n lookups through an OrderBackend;
//     "mis compras" lists the customer's orders.
//   - Claims: opens a CLM- claim against an order reference.
//   - Autonomous: free-form answers from a Completer with recall context.
//   - Unknown: greeting and menu hint.
//
// Handlers never return errors for business failures. Backend failures come
// back as *Error values whose Kind (NotFound, BackendUnavailable,
// InvalidInput) decides the text shown to the customer.
//
// # Dispatch
//
// Dispatcher.Dispatch routes the text, updates RoutedDomain and the pending
// menu, and runs the handler. A handler panic is recovered and returned as
// ErrHandlerPanic.
package handlers
