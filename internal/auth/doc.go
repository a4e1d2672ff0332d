// Package auth provides bearer-token authentication for the HTTP API.
//
// # JWT Tokens
//
// API clients authenticate with HS256 JWTs signed with the configured
// auth.jwt_secret (at least 32 bytes). Tokens carry:
//
//   - sub: the calling client, required
//   - project_id: optional tenant scope for customer memory
//   - exp / iat: standard expiry claims
//
// Generate a token:
//
//	v, _ := auth.NewJWTVerifier(secret)
//	token, err := v.Generate("whatsapp-gateway", "acme", 24*time.Hour)
//
// # HTTP Middleware
//
// HTTPAuthMiddleware rejects requests without a valid token and stores an
// AuthContext in the request context. When the token has a project_id it
// also becomes the trace project id used by the orchestrator.
//
// When no secret is configured the API runs without this middleware.
package auth
