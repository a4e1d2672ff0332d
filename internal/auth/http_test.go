// ABOUTME: Tests for HTTP authentication middleware
// ABOUTME: Covers token extraction, validation and project propagation

package auth

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/clementeaf/ai-assistants/internal/trace"
)

func TestHTTPAuthMiddleware_ValidToken(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate("gateway-1", "acme", time.Hour)

	var gotAuth *AuthContext
	var gotProject string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = FromContext(r.Context())
		gotProject = trace.ProjectID(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	req := httptest.NewRequest(http.MethodGet, "/v1/jobs/x", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()

	HTTPAuthMiddleware(verifier, nil)(handler).ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}
	if gotAuth == nil || gotAuth.Subject != "gateway-1" {
		t.Errorf("AuthContext = %+v, want subject gateway-1", gotAuth)
	}
	if gotProject != "acme" {
		t.Errorf("project id = %q, want %q", gotProject, "acme")
	}
}

func TestHTTPAuthMiddleware_TokenWithoutProject(t *testing.T) {
	verifier := newTestVerifier(t)
	token, _ := verifier.Generate("gateway-1", "", time.Hour)

	var gotProject string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotProject = trace.ProjectID(r.Context())
	})

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	HTTPAuthMiddleware(verifier, nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if gotProject != "" {
		t.Errorf("project id = %q, want empty", gotProject)
	}
}

func TestHTTPAuthMiddleware_Rejections(t *testing.T) {
	verifier := newTestVerifier(t)
	expired, _ := verifier.Generate("gateway-1", "", -time.Hour)

	tests := []struct {
		name       string
		header     string
		wantSubstr string
	}{
		{"missing header", "", "missing authorization header"},
		{"wrong scheme", "Basic abc", "invalid authorization header format"},
		{"empty token", "Bearer ", "empty token"},
		{"garbage", "Bearer nope", "invalid token"},
		{"expired", "Bearer " + expired, "invalid token"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			called := false
			handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true })

			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			HTTPAuthMiddleware(verifier, nil)(handler).ServeHTTP(rec, req)

			if called {
				t.Error("handler should not be called")
			}
			if rec.Code != http.StatusUnauthorized {
				t.Errorf("expected status 401, got %d", rec.Code)
			}
			if !strings.Contains(rec.Body.String(), tt.wantSubstr) {
				t.Errorf("body = %q, want substring %q", rec.Body.String(), tt.wantSubstr)
			}
		})
	}
}

func TestExtractBearerToken(t *testing.T) {
	token, msg := extractBearerToken("Bearer abc.def.ghi")
	if msg != "" || token != "abc.def.ghi" {
		t.Errorf("extractBearerToken() = (%q, %q)", token, msg)
	}
}
