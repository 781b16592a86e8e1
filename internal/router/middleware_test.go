package router

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/bannerhub/internal/authz"
	"github.com/bannerhub/internal/config"
	handlershared "github.com/bannerhub/internal/http/handlers/shared"
	"github.com/bannerhub/internal/service"

	"github.com/gin-gonic/gin"
)

func TestResolveAllowedOrigin(t *testing.T) {
	got := resolveAllowedOrigin("https://example.com", []string{"*"}, false)
	if got != "*" {
		t.Fatalf("wildcard without credentials should return *, got %s", got)
	}

	got = resolveAllowedOrigin("https://example.com", []string{"*"}, true)
	if got != "https://example.com" {
		t.Fatalf("wildcard with credentials should echo origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://a.example.com", []string{"https://a.example.com", "https://b.example.com"}, false)
	if got != "https://a.example.com" {
		t.Fatalf("allow-list should return matched origin, got %s", got)
	}

	got = resolveAllowedOrigin("https://x.example.com", []string{"https://a.example.com"}, false)
	if got != "" {
		t.Fatalf("unmatched origin should be empty, got %s", got)
	}
}

func TestRequestIDMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(RequestIDMiddleware())
	r.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"request_id": c.GetString(requestIDKey)})
	})

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req.Header.Set(requestIDHeader, "req-123")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status want 200 got %d", w.Code)
	}
	if w.Header().Get(requestIDHeader) != "req-123" {
		t.Fatalf("response request id want req-123 got %s", w.Header().Get(requestIDHeader))
	}
	var resp map[string]string
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	if resp["request_id"] != "req-123" {
		t.Fatalf("context request id want req-123 got %s", resp["request_id"])
	}

	w2 := httptest.NewRecorder()
	req2 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	r.ServeHTTP(w2, req2)
	generated := w2.Header().Get(requestIDHeader)
	if generated == "" {
		t.Fatalf("generated request id should not be empty")
	}
	if resp := strings.TrimSpace(generated); resp == "" {
		t.Fatalf("generated request id should not be blank")
	}

	w3 := httptest.NewRecorder()
	req3 := httptest.NewRequest(http.MethodGet, "/ping", nil)
	req3.Header.Set(requestIDHeader, strings.Repeat("x", maxRequestIDLength+1))
	r.ServeHTTP(w3, req3)
	if got := w3.Header().Get(requestIDHeader); len(got) > maxRequestIDLength {
		t.Fatalf("oversized request id should be replaced, got %d chars", len(got))
	}
}

func TestCORSPreflight(t *testing.T) {
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(CORSMiddleware(config.CORSConfig{AllowedOrigins: []string{"https://app.example.com"}, MaxAge: 600}))
	r.POST("/api/v1/banners", func(c *gin.Context) { c.Status(http.StatusCreated) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodOptions, "/api/v1/banners", nil)
	req.Header.Set("Origin", "https://app.example.com")
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNoContent {
		t.Fatalf("preflight want 204 got %d", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "https://app.example.com" {
		t.Fatalf("allow origin want echo got %q", got)
	}
	if got := w.Header().Get("Access-Control-Allow-Methods"); !strings.Contains(got, http.MethodPatch) {
		t.Fatalf("default methods should include PATCH, got %q", got)
	}
	if got := w.Header().Get("Access-Control-Expose-Headers"); !strings.Contains(got, "Retry-After") {
		t.Fatalf("Retry-After should be exposed, got %q", got)
	}
	if w.Header().Get("Access-Control-Max-Age") != "600" {
		t.Fatalf("max age header missing")
	}
}

type fakeAuthenticator struct {
	actor *service.Actor
	err   error
}

func (f fakeAuthenticator) Authenticate(_ context.Context, token string) (*service.Actor, error) {
	if token != "good-token" {
		return nil, service.ErrInvalidToken
	}
	return f.actor, f.err
}

type fakeEnforcer struct {
	allowed map[string]bool
	err     error
}

func (f fakeEnforcer) EnforceUser(userID uint, obj, act string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.allowed[act+" "+authz.NormalizeObject(obj)], nil
}

func decodeStatusCode(t *testing.T, w *httptest.ResponseRecorder) int {
	t.Helper()
	var resp struct {
		StatusCode int `json:"status_code"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response failed: %v", err)
	}
	return resp.StatusCode
}

func newAuthTestEngine(auth Authenticator, enforcer Enforcer) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	group := r.Group("/api/v1")
	group.Use(UserJWTAuthMiddleware(auth), RBACMiddleware(enforcer))
	group.GET("/banners/:id", func(c *gin.Context) {
		actor, _ := handlershared.GetActor(c)
		c.JSON(http.StatusOK, gin.H{"user_id": actor.ID})
	})
	return r
}

func TestUserJWTAuthMiddlewareRejectsMissingAndBadTokens(t *testing.T) {
	r := newAuthTestEngine(fakeAuthenticator{actor: &service.Actor{ID: 7}}, fakeEnforcer{})

	cases := []struct {
		name   string
		header string
	}{
		{name: "missing", header: ""},
		{name: "not bearer", header: "Basic abc"},
		{name: "bad token", header: "Bearer nope"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/api/v1/banners/abc", nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			r.ServeHTTP(w, req)
			if w.Code != http.StatusUnauthorized {
				t.Fatalf("status want 401 got %d", w.Code)
			}
			if got := decodeStatusCode(t, w); got != 401 {
				t.Fatalf("status_code want 401 got %d", got)
			}
		})
	}
}

func TestUserJWTAuthMiddlewareDisabledUser(t *testing.T) {
	r := newAuthTestEngine(fakeAuthenticator{err: service.ErrUserDisabled}, fakeEnforcer{})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/banners/abc", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Fatalf("disabled user should get 401, got %d", w.Code)
	}
}

func TestRBACMiddlewareUsesRouteTemplate(t *testing.T) {
	allowed := fakeEnforcer{allowed: map[string]bool{"GET /banners/:id": true}}
	r := newAuthTestEngine(fakeAuthenticator{actor: &service.Actor{ID: 7}}, allowed)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/banners/abc", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("allowed request want 200 got %d: %s", w.Code, w.Body.String())
	}
	if !strings.Contains(w.Body.String(), `"user_id":7`) {
		t.Fatalf("actor should be set in context, got %s", w.Body.String())
	}

	denied := newAuthTestEngine(fakeAuthenticator{actor: &service.Actor{ID: 7}}, fakeEnforcer{})
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/v1/banners/abc", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	denied.ServeHTTP(w, req)
	if w.Code != http.StatusForbidden {
		t.Fatalf("denied request want 403 got %d", w.Code)
	}
}

func TestRBACMiddlewareEnforceError(t *testing.T) {
	r := newAuthTestEngine(fakeAuthenticator{actor: &service.Actor{ID: 7}}, fakeEnforcer{err: errors.New("adapter down")})
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/v1/banners/abc", nil)
	req.Header.Set("Authorization", "Bearer good-token")
	r.ServeHTTP(w, req)
	if w.Code != http.StatusInternalServerError {
		t.Fatalf("enforce error want 500 got %d", w.Code)
	}
}
