package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"fitclub/backend/config"
	"fitclub/backend/pkg/jwt"
)

func init() {
	gin.SetMode(gin.TestMode)
}

// ── 测试辅助 ──

type fakeBlacklist struct {
	revoked map[string]bool
	err     error
}

func (b *fakeBlacklist) IsBlacklisted(_ context.Context, jti string) (bool, error) {
	return b.revoked[jti], b.err
}

type fakeLimiter struct {
	allowed bool
	err     error
	keys    []string
}

func (l *fakeLimiter) CheckRateLimit(_ context.Context, key string, _ int, _ time.Duration) (bool, error) {
	l.keys = append(l.keys, key)
	return l.allowed, l.err
}

func newTestManager() *jwt.Manager {
	return jwt.NewManager(&config.AuthConfig{JWTSecret: "test-secret", AccessTokenTTL: 15 * time.Minute})
}

func authEngine(mgr *jwt.Manager, blacklist TokenBlacklist) *gin.Engine {
	r := gin.New()
	r.GET("/me", JWTAuth(mgr, blacklist), func(c *gin.Context) {
		c.String(http.StatusOK, c.GetString("user_id")+"|"+c.GetString("role"))
	})
	return r
}

func doGet(r *gin.Engine, path, token string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", path, nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	r.ServeHTTP(w, req)
	return w
}

// ── JWTAuth ──

func TestJWTAuth_ValidToken(t *testing.T) {
	mgr := newTestManager()
	token, err := mgr.GenerateAccessToken("user-1", "trainer")
	if err != nil {
		t.Fatalf("generate token: %v", err)
	}

	w := doGet(authEngine(mgr, nil), "/me", token)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if w.Body.String() != "user-1|trainer" {
		t.Errorf("unexpected identity: %s", w.Body.String())
	}
}

func TestJWTAuth_Rejects(t *testing.T) {
	mgr := newTestManager()
	other := jwt.NewManager(&config.AuthConfig{JWTSecret: "other-secret", AccessTokenTTL: time.Minute})
	foreign, _ := other.GenerateAccessToken("user-1", "admin")

	tests := []struct {
		name   string
		header string
	}{
		{"missing header", ""},
		{"wrong scheme", "Basic abc"},
		{"garbage token", "Bearer not-a-token"},
		{"wrong secret", "Bearer " + foreign},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			req := httptest.NewRequest("GET", "/me", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			authEngine(mgr, nil).ServeHTTP(w, req)

			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401, got %d", w.Code)
			}
		})
	}
}

func TestJWTAuth_Blacklist(t *testing.T) {
	mgr := newTestManager()
	token, _ := mgr.GenerateAccessToken("user-1", "member")
	claims, err := mgr.ParseToken(token)
	if err != nil {
		t.Fatalf("parse token: %v", err)
	}

	revoked := &fakeBlacklist{revoked: map[string]bool{claims.ID: true}}
	if w := doGet(authEngine(mgr, revoked), "/me", token); w.Code != http.StatusUnauthorized {
		t.Errorf("revoked token: expected 401, got %d", w.Code)
	}

	// 黑名单查询失败时放行
	broken := &fakeBlacklist{err: errors.New("redis down")}
	if w := doGet(authEngine(mgr, broken), "/me", token); w.Code != http.StatusOK {
		t.Errorf("blacklist error: expected 200, got %d", w.Code)
	}
}

// ── RoleAuth ──

func TestRoleAuth(t *testing.T) {
	mgr := newTestManager()
	r := gin.New()
	r.POST("/admin", JWTAuth(mgr, nil), RoleAuth("admin"), func(c *gin.Context) {
		c.Status(http.StatusOK)
	})

	admin, _ := mgr.GenerateAccessToken("user-1", "admin")
	member, _ := mgr.GenerateAccessToken("user-2", "member")

	for token, want := range map[string]int{admin: http.StatusOK, member: http.StatusForbidden} {
		w := httptest.NewRecorder()
		req := httptest.NewRequest("POST", "/admin", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		r.ServeHTTP(w, req)
		if w.Code != want {
			t.Errorf("expected %d, got %d", want, w.Code)
		}
	}
}

// ── RateLimit ──

func TestRateLimit(t *testing.T) {
	tests := []struct {
		name    string
		limiter *fakeLimiter
		want    int
	}{
		{"allowed", &fakeLimiter{allowed: true}, http.StatusOK},
		{"limited", &fakeLimiter{allowed: false}, http.StatusTooManyRequests},
		{"limiter error", &fakeLimiter{err: errors.New("redis down")}, http.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := gin.New()
			r.POST("/trainings/:id/join", func(c *gin.Context) {
				c.Set("user_id", "user-1")
				c.Next()
			}, RateLimit(tt.limiter, 10, time.Minute), func(c *gin.Context) {
				c.Status(http.StatusOK)
			})

			w := httptest.NewRecorder()
			r.ServeHTTP(w, httptest.NewRequest("POST", "/trainings/t1/join", nil))

			if w.Code != tt.want {
				t.Errorf("expected %d, got %d", tt.want, w.Code)
			}
			if len(tt.limiter.keys) != 1 || tt.limiter.keys[0] != "rate_limit:user-1:/trainings/:id/join" {
				t.Errorf("unexpected key: %v", tt.limiter.keys)
			}
		})
	}
}

func TestRateLimit_NilLimiter(t *testing.T) {
	r := gin.New()
	r.GET("/x", RateLimit(nil, 1, time.Minute), func(c *gin.Context) { c.Status(http.StatusOK) })

	if w := doGet(r, "/x", ""); w.Code != http.StatusOK {
		t.Errorf("expected 200, got %d", w.Code)
	}
}

// ── RequestID ──

func TestRequestID(t *testing.T) {
	r := gin.New()
	r.GET("/x", RequestID(), func(c *gin.Context) { c.String(http.StatusOK, c.GetString(requestIDKey)) })

	w := httptest.NewRecorder()
	req := httptest.NewRequest("GET", "/x", nil)
	req.Header.Set("X-Request-ID", "abc-123")
	r.ServeHTTP(w, req)
	if w.Header().Get("X-Request-ID") != "abc-123" || w.Body.String() != "abc-123" {
		t.Errorf("expected propagated request id, got %q", w.Header().Get("X-Request-ID"))
	}

	w = doGet(r, "/x", "")
	if len(w.Header().Get("X-Request-ID")) != 36 {
		t.Errorf("expected generated uuid, got %q", w.Header().Get("X-Request-ID"))
	}
}

func TestBodyLimit(t *testing.T) {
	var readErr error
	reached := false
	r := gin.New()
	r.POST("/x", BodyLimit(16), func(c *gin.Context) {
		reached = true
		_, readErr = io.ReadAll(c.Request.Body)
		c.Status(http.StatusOK)
	})

	// 声明的 Content-Length 超限
	w := httptest.NewRecorder()
	req := httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("a", 64)))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("expected 413, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "10005") {
		t.Errorf("expected error code 10005, got %s", w.Body.String())
	}
	if reached {
		t.Error("handler should not run for oversized body")
	}

	// 分块传输：长度未知，读取时截断
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/x", strings.NewReader(strings.Repeat("a", 64)))
	req.ContentLength = -1
	r.ServeHTTP(w, req)
	var tooLarge *http.MaxBytesError
	if !errors.As(readErr, &tooLarge) {
		t.Errorf("expected *http.MaxBytesError, got %v", readErr)
	}

	// 未超限
	readErr = nil
	w = httptest.NewRecorder()
	req = httptest.NewRequest("POST", "/x", strings.NewReader("small"))
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK || readErr != nil {
		t.Errorf("expected 200 without error, got %d / %v", w.Code, readErr)
	}
}
