// Package guardrail validates rewritten assistant replies.
//
// Order numbers (ORDER-n), tracking numbers (TRACK-n), booking and claim
// references (BOOK-x, CLM-x) and ISO-8601 dates must survive a rewrite
// unchanged: none dropped, none altered, none invented. Apply returns the
// draft whenever that does not hold.
package guardrail
