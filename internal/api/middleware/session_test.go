package middleware

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"syllabusai/internal/auth"
)

type stubRevocations struct {
	revoked map[string]bool
	err     error
}

func (s stubRevocations) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s.revoked[jti], s.err
}

func newSessionRouter(t *testing.T, svc *auth.AuthService, revocations RevocationChecker) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware(), LoadSession(svc, revocations))
	r.GET("/open", func(c *gin.Context) {
		if identity, ok := CurrentIdentity(c); ok {
			c.String(http.StatusOK, identity.Username)
			return
		}
		c.String(http.StatusOK, "anonymous")
	})
	r.GET("/member", RequireSession(), func(c *gin.Context) { c.String(http.StatusOK, "member") })
	r.GET("/admin", RequireSession(), RequireAdmin(), func(c *gin.Context) { c.String(http.StatusOK, "admin") })
	return r
}

func newAuthService(t *testing.T) *auth.AuthService {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	return auth.NewAuthServiceFromKey(key, time.Hour)
}

func do(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if token != "" {
		req.AddCookie(&http.Cookie{Name: SessionCookieName, Value: token})
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestLoadSessionAnonymous(t *testing.T) {
	r := newSessionRouter(t, newAuthService(t), nil)

	w := do(r, "/open", "")
	if w.Code != http.StatusOK || w.Body.String() != "anonymous" {
		t.Fatalf("got %d %q", w.Code, w.Body.String())
	}
	if w.Header().Get("X-Correlation-ID") == "" {
		t.Fatalf("expected correlation id header")
	}

	w = do(r, "/member", "")
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/login" {
		t.Fatalf("expected redirect to /login, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestLoadSessionValidCookie(t *testing.T) {
	svc := newAuthService(t)
	token, _, err := svc.IssueSession(auth.Identity{UserID: 1, Username: "alice", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := newSessionRouter(t, svc, stubRevocations{})

	if w := do(r, "/open", token); w.Body.String() != "alice" {
		t.Fatalf("expected alice, got %q", w.Body.String())
	}
	if w := do(r, "/member", token); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	w := do(r, "/admin", token)
	if w.Code != http.StatusFound || w.Header().Get("Location") != "/" {
		t.Fatalf("expected redirect to /, got %d %q", w.Code, w.Header().Get("Location"))
	}
}

func TestLoadSessionAdmin(t *testing.T) {
	svc := newAuthService(t)
	token, _, err := svc.IssueSession(auth.Identity{UserID: 2, Username: "root", Role: "admin"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}
	r := newSessionRouter(t, svc, nil)

	if w := do(r, "/admin", token); w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
}

func TestLoadSessionRejectsRevokedAndForged(t *testing.T) {
	svc := newAuthService(t)
	token, claims, err := svc.IssueSession(auth.Identity{UserID: 1, Username: "alice", Role: "user"})
	if err != nil {
		t.Fatalf("issue: %v", err)
	}

	revoked := newSessionRouter(t, svc, stubRevocations{revoked: map[string]bool{claims.ID: true}})
	if w := do(revoked, "/open", token); w.Body.String() != "anonymous" {
		t.Fatalf("revoked token accepted: %q", w.Body.String())
	}

	other := newSessionRouter(t, newAuthService(t), nil)
	if w := do(other, "/open", token); w.Body.String() != "anonymous" {
		t.Fatalf("foreign token accepted: %q", w.Body.String())
	}

	// Blacklist outages do not log everyone out.
	failing := newSessionRouter(t, svc, stubRevocations{err: errors.New("redis down")})
	if w := do(failing, "/open", token); w.Body.String() != "alice" {
		t.Fatalf("expected alice, got %q", w.Body.String())
	}
}

func TestCorrelationIDReusesInbound(t *testing.T) {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(CorrelationIDMiddleware())
	r.GET("/", func(c *gin.Context) { c.String(http.StatusOK, GetCorrelationID(c)) })

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Correlation-ID", "abc-123")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Body.String() != "abc-123" {
		t.Fatalf("expected inbound id, got %q", w.Body.String())
	}
}
