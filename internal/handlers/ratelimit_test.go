package handlers

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/echotree-platform/trust-service/internal/models"
)

func newRateLimitedRouter(t *testing.T, limiter *RateLimiter) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.POST("/login", limiter.Middleware(), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})
	return router
}

func doLogin(router *gin.Engine, ip string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/login", nil)
	req.RemoteAddr = ip + ":12345"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestRateLimiter_BlocksOverLimit(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, "login", 3, time.Minute)
	router := newRateLimitedRouter(t, limiter)

	for i := 1; i <= 3; i++ {
		if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("Request %d: expected 200, got %d", i, w.Code)
		}
	}

	w := doLogin(router, "10.0.0.1")
	if w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429 over the limit, got %d", w.Code)
	}
	if w.Header().Get("Retry-After") == "" {
		t.Error("Expected Retry-After header")
	}
}

func TestRateLimiter_PerClientKeys(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, "login", 1, time.Minute)
	router := newRateLimitedRouter(t, limiter)

	if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("First client: expected 200, got %d", w.Code)
	}
	if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("First client: expected 429, got %d", w.Code)
	}

	// A different client gets its own window.
	if w := doLogin(router, "10.0.0.2"); w.Code != http.StatusOK {
		t.Errorf("Second client: expected 200, got %d", w.Code)
	}
}

func TestRateLimiter_WindowExpires(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, "login", 1, time.Minute)
	router := newRateLimitedRouter(t, limiter)

	if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", w.Code)
	}
	if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusTooManyRequests {
		t.Fatalf("Expected 429, got %d", w.Code)
	}

	mr.FastForward(2 * time.Minute)

	if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusOK {
		t.Errorf("Expected 200 after window expiry, got %d", w.Code)
	}
}

func TestRateLimiter_RoleMiddleware(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	limiter := NewRateLimiter(client, "trial", 1, 24*time.Hour)

	gin.SetMode(gin.TestMode)
	router := gin.New()
	var role models.UserRole
	router.POST("/messages",
		func(c *gin.Context) { c.Set(ContextUserRole, role) },
		limiter.RoleMiddleware(models.RoleVisitor),
		func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": true}) },
	)

	post := func(ip string) int {
		req := httptest.NewRequest(http.MethodPost, "/messages", nil)
		req.RemoteAddr = ip + ":12345"
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w.Code
	}

	// Visitors get one message per window.
	role = models.RoleVisitor
	if code := post("10.0.0.1"); code != http.StatusOK {
		t.Fatalf("First visitor message: expected 200, got %d", code)
	}
	if code := post("10.0.0.1"); code != http.StatusTooManyRequests {
		t.Fatalf("Second visitor message: expected 429, got %d", code)
	}

	// Other roles are never limited.
	role = models.RoleTeller
	for i := 0; i < 3; i++ {
		if code := post("10.0.0.1"); code != http.StatusOK {
			t.Fatalf("Teller message %d: expected 200, got %d", i+1, code)
		}
	}
}

func TestRateLimiter_NilClientFailsOpen(t *testing.T) {
	limiter := NewRateLimiter(nil, "login", 1, time.Minute)
	router := newRateLimitedRouter(t, limiter)

	for i := 0; i < 5; i++ {
		if w := doLogin(router, "10.0.0.1"); w.Code != http.StatusOK {
			t.Fatalf("Expected 200 with no redis client, got %d", w.Code)
		}
	}
}
