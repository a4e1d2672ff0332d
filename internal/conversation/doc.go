// Package conversation orchestrates conversation turns.
//
// # Overview
//
// The conversation package sits between the transport (HTTP API, CLI, job
// scheduler) and the domain handlers. Each inbound message becomes one turn:
//
//	svc, _ := conversation.New(conversation.Config{
//	    Conversations: st,
//	    Memory:        st,
//	    Dispatcher:    handlers.NewDispatcher(router.New(router.Config{}), registry, logger),
//	})
//	res, err := svc.RunTurn(ctx, conversation.TurnRequest{
//	    ConversationID: "whatsapp:+5491112345678",
//	    Text:           "TRACK-9002",
//	    EventID:        "m1",
//	})
//
// # Turn Lifecycle
//
//  1. Load the conversation state, or start a new one
//  2. Merge the customer's long-term memory (expired keys dropped)
//  3. Return the stored reply if the event id was already processed
//  4. Append the user message, route and run the domain handler
//  5. Apply the empty-reply fallback and the identifier guardrail
//  6. Append the reply, record the event id, persist the state
//  7. Upsert customer memory and publish a TurnEvent
//
// A handler error or panic aborts the turn before anything is written.
//
// # Concurrency
//
// Turns for the same conversation id are serialized with a keyed mutex.
// Different conversations run in parallel. Serialization is per process;
// multiple processes sharing a store are not coordinated.
//
// # Event Broadcasting
//
// The Broadcaster fans completed turns out to live listeners such as the
// API's server-sent events endpoint:
//
//	ch, _ := broadcaster.Subscribe(ctx, conversationID)
//
// Slow subscribers drop events instead of delaying turns.
package conversation
