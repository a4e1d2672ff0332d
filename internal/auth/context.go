// ABOUTME: Caller identity carried through context.Context after bearer auth
// ABOUTME: The HTTP middleware attaches it; handlers and logs read subject and project

package auth

import (
	"context"
)

// AuthContext is the verified identity of an API caller.
type AuthContext struct {
	Subject   string // "sub" claim
	ProjectID string // "project_id" claim, may be empty
}

type authKey struct{}

// WithAuth attaches the caller identity to ctx.
func WithAuth(ctx context.Context, a *AuthContext) context.Context {
	return context.WithValue(ctx, authKey{}, a)
}

// FromContext returns the caller identity, or nil for unauthenticated requests.
func FromContext(ctx context.Context) *AuthContext {
	a, _ := ctx.Value(authKey{}).(*AuthContext)
	return a
}
