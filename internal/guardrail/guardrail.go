// ABOUTME: Post-processing check for rewritten replies
// ABOUTME: Keeps a rewrite only when it preserves every structured identifier of the draft

package guardrail

import (
	"context"
	"log/slog"
	"maps"
	"regexp"
	"strings"
)

// Rewriter polishes a draft reply, usually through a language model.
type Rewriter interface {
	Rewrite(ctx context.Context, userText, draft, domain string) (string, error)
}

// RewriterFunc adapts a function to Rewriter.
type RewriterFunc func(ctx context.Context, userText, draft, domain string) (string, error)

// Rewrite calls f.
func (f RewriterFunc) Rewrite(ctx context.Context, userText, draft, domain string) (string, error) {
	return f(ctx, userText, draft, domain)
}

// Fallback reasons reported in Result.
const (
	ReasonNoRewriter  = "no_rewriter"
	ReasonError       = "rewrite_error"
	ReasonEmpty       = "empty_rewrite"
	ReasonIdentifiers = "identifier_mismatch"
	ReasonAccepted    = "accepted"
	ReasonUnchanged   = "unchanged"
)

// Result is the outcome of Apply.
type Result struct {
	Text      string
	Rewritten bool
	Reason    string
}

var identifierPattern = regexp.MustCompile(
	`\b(?:ORDER|TRACK)-\d+\b` +
		`|\b(?:BOOK|CLM)-[A-Z0-9]+\b` +
		`|\b\d{4}-\d{2}-\d{2}(?:[T ]\d{2}:\d{2}(?::\d{2}(?:\.\d+)?)?(?:Z|[+-]\d{2}:?\d{2})?)?\b`,
)

// Identifiers returns the set of structured identifiers in text.
func Identifiers(text string) map[string]struct{} {
	out := make(map[string]struct{})
	for _, m := range identifierPattern.FindAllString(text, -1) {
		out[m] = struct{}{}
	}
	return out
}

// Apply runs rw over draft and returns the rewrite only if it is non-empty,
// error-free and carries exactly the draft's identifiers. Every other
// outcome returns the draft unchanged. A nil rw returns the draft.
func Apply(ctx context.Context, logger *slog.Logger, rw Rewriter, userText, draft, domain string) Result {
	if rw == nil {
		return Result{Text: draft, Reason: ReasonNoRewriter}
	}
	if logger == nil {
		logger = slog.Default()
	}

	out, err := rw.Rewrite(ctx, userText, draft, domain)
	if err != nil {
		logger.Warn("rewrite failed, keeping draft", "domain", domain, "error", err)
		return Result{Text: draft, Reason: ReasonError}
	}
	out = strings.TrimSpace(out)
	if out == "" {
		logger.Warn("rewrite returned empty text, keeping draft", "domain", domain)
		return Result{Text: draft, Reason: ReasonEmpty}
	}
	if !maps.Equal(Identifiers(draft), Identifiers(out)) {
		logger.Warn("rewrite changed identifiers, keeping draft", "domain", domain)
		return Result{Text: draft, Reason: ReasonIdentifiers}
	}
	if out == draft {
		return Result{Text: draft, Reason: ReasonUnchanged}
	}
	return Result{Text: out, Rewritten: true, Reason: ReasonAccepted}
}
