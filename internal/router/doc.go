// Package router selects the business domain for each conversation turn.
//
// # Rules
//
// Route applies these rules in order and stops at the first that matches:
//
//  1. Autonomous mode (configuration flag) routes everything to Autonomous.
//  2. Activation codes: MENU_INIT returns a menu decision; FLOW_<NAME>_INIT
//     and START_<NAME> jump straight to the named domain.
//  3. Menu replies: a bare number selects the 1-indexed entry of the menu
//     last shown in the conversation.
//  4. Stickiness: bookings stays while a name or date was captured,
//     purchases stays while an order or tracking id is known, claims always
//     stays.
//  5. The Classifier, which defaults to KeywordClassifier.
//
// Route is pure: callers apply Decision.Menu and Decision.ClearMenu to the
// state themselves.
package router
