package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/echotree-platform/trust-service/internal/models"
)

// RateLimiter implements a fixed-window counter per client key backed by
// Redis. A nil client disables limiting rather than failing requests.
type RateLimiter struct {
	client *redis.Client
	limit  int
	window time.Duration
	prefix string
}

func NewRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		client: client,
		limit:  limit,
		window: window,
		prefix: prefix,
	}
}

// Middleware limits requests keyed by client IP.
func (rl *RateLimiter) Middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if rl.allow(c) {
			c.Next()
		}
	}
}

// RoleMiddleware limits requests keyed by client IP, applied only to callers
// holding the given role. It must run after the auth middleware.
func (rl *RateLimiter) RoleMiddleware(role models.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserRole)
		if !exists || value != role {
			c.Next()
			return
		}
		if rl.allow(c) {
			c.Next()
		}
	}
}

// allow counts the request and reports whether it may proceed. A rejected
// request has already been aborted with 429.
func (rl *RateLimiter) allow(c *gin.Context) bool {
	if rl.client == nil {
		return true
	}

	key := fmt.Sprintf("ratelimit:%s:%s", rl.prefix, c.ClientIP())

	count, err := rl.client.Incr(c.Request.Context(), key).Result()
	if err != nil {
		// Fail open when Redis is unavailable.
		return true
	}
	if count == 1 {
		rl.client.Expire(c.Request.Context(), key, rl.window)
	}

	if count > int64(rl.limit) {
		ttl, _ := rl.client.TTL(c.Request.Context(), key).Result()
		c.Header("Retry-After", fmt.Sprintf("%d", int(ttl.Seconds())))
		c.AbortWithStatusJSON(http.StatusTooManyRequests, ErrorResponse{
			Message: "Too many requests, please try again later",
		})
		return false
	}

	return true
}
