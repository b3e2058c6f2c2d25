package handlers

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/services"
)

// Context keys set by the auth middleware.
const (
	ContextUserID   = "user_id"
	ContextUserRole = "user_role"
	ContextToken    = "auth_token"
)

// JWTAuthMiddleware validates bearer tokens against the session store so
// revoked sessions are rejected even before the token expires.
type JWTAuthMiddleware struct {
	auth services.AuthService
}

func NewJWTAuthMiddleware(auth services.AuthService) *JWTAuthMiddleware {
	return &JWTAuthMiddleware{auth: auth}
}

func extractBearerToken(c *gin.Context) string {
	header := c.GetHeader("Authorization")
	if header == "" {
		return ""
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AuthMiddleware authenticates the request and stores the caller's identity
// in the context.
func (m *JWTAuthMiddleware) AuthMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		token := extractBearerToken(c)
		if token == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Missing or malformed Authorization header",
			})
			return
		}

		session, err := m.auth.ValidateSession(c.Request.Context(), token)
		if err != nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "Invalid or expired session",
			})
			return
		}

		c.Set(ContextUserID, session.UserID)
		c.Set(ContextUserRole, session.Role)
		c.Set(ContextToken, token)
		c.Next()
	}
}

// RequireRoleMiddleware rejects callers whose role is not in the allow list.
// It must run after AuthMiddleware.
func (m *JWTAuthMiddleware) RequireRoleMiddleware(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]bool, len(roles))
	for _, r := range roles {
		allowed[r] = true
	}

	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserRole)
		if !exists {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{
				Message: "User not authenticated",
			})
			return
		}

		role, ok := value.(models.UserRole)
		if !ok || !allowed[role] {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{
				Message: "Insufficient permissions",
			})
			return
		}

		c.Next()
	}
}

// principalFromContext rebuilds the caller's identity from context values.
func principalFromContext(c *gin.Context) (*models.Principal, bool) {
	userID, exists := c.Get(ContextUserID)
	if !exists {
		return nil, false
	}
	role, exists := c.Get(ContextUserRole)
	if !exists {
		return nil, false
	}

	id, ok1 := userID.(string)
	r, ok2 := role.(models.UserRole)
	if !ok1 || !ok2 {
		return nil, false
	}

	return &models.Principal{
		UserID: id,
		Role:   r,
		Status: models.StatusActive,
	}, true
}
