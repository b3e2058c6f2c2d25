package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
	"github.com/echotree-platform/trust-service/internal/validator"
)

type AuthHandler struct {
	BaseHandler
	authService services.AuthService
	validator   *validator.Validator
}

func NewAuthHandler(authService services.AuthService, validator *validator.Validator, logger utils.Logger) *AuthHandler {
	return &AuthHandler{
		BaseHandler: NewBaseHandler(logger),
		authService: authService,
		validator:   validator,
	}
}

// Register creates a new account with the teller role
// @Summary Register a new user
// @Tags auth
// @Accept json
// @Produce json
// @Param user body models.RegisterRequest true "Registration data"
// @Success 201 {object} services.AuthResponse
// @Failure 400 {object} ErrorResponse
// @Failure 409 {object} ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	h.LogRequest(c, "Registering user")

	var req models.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.Register(c.Request.Context(), &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, resp)
}

// Login authenticates a user and issues a token
// @Summary Log in
// @Tags auth
// @Accept json
// @Produce json
// @Param credentials body models.LoginRequest true "Credentials"
// @Success 200 {object} services.AuthResponse
// @Failure 401 {object} ErrorResponse
// @Failure 423 {object} ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	h.LogRequest(c, "User login")

	var req models.LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	resp, err := h.authService.Login(c.Request.Context(), &req, c.ClientIP(), c.Request.UserAgent())
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, resp)
}

// Logout revokes the current session
func (h *AuthHandler) Logout(c *gin.Context) {
	h.LogRequest(c, "User logout")

	token := c.GetString(ContextToken)
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	if err := h.authService.Logout(c.Request.Context(), token); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Logged out"})
}

// LogoutSession revokes one session by id, owner only
// @Summary Revoke a session by id
// @Tags auth
// @Produce json
// @Param id path string true "Session ID"
// @Success 200 {object} SuccessResponse
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /auth/logout/{id} [post]
func (h *AuthHandler) LogoutSession(c *gin.Context) {
	sessionID := c.Param("id")
	h.LogRequest(c, "Revoking session", "session_id", sessionID)

	userID := c.GetString(ContextUserID)
	if err := h.authService.LogoutSession(c.Request.Context(), sessionID, userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Session revoked"})
}

// LogoutAll revokes every session of the current user
func (h *AuthHandler) LogoutAll(c *gin.Context) {
	h.LogRequest(c, "Revoking all sessions")

	userID := c.GetString(ContextUserID)
	count, err := h.authService.LogoutAll(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Message: "All sessions revoked",
		Data:    gin.H{"revoked": count},
	})
}

// ValidateSession returns the current session's read model
func (h *AuthHandler) ValidateSession(c *gin.Context) {
	token := c.GetString(ContextToken)
	if token == "" {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	view, err := h.authService.ValidateSession(c.Request.Context(), token)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ValidateSessionByID checks one session by id, owner only
func (h *AuthHandler) ValidateSessionByID(c *gin.Context) {
	sessionID := c.Param("id")
	userID := c.GetString(ContextUserID)

	view, err := h.authService.ValidateSessionByID(c.Request.Context(), sessionID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

// ListSessions lists the current user's active sessions
func (h *AuthHandler) ListSessions(c *gin.Context) {
	userID := c.GetString(ContextUserID)

	sessions, err := h.authService.ListSessions(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// GetProfile returns the current user's profile
func (h *AuthHandler) GetProfile(c *gin.Context) {
	userID := c.GetString(ContextUserID)

	profile, err := h.authService.GetProfile(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// UpdateProfile updates the current user's email or password
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	h.LogRequest(c, "Updating profile")

	var req models.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetString(ContextUserID)
	profile, err := h.authService.UpdateProfile(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}

// DeleteAccount marks the current account deleted and revokes its sessions
func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	h.LogRequest(c, "Deleting account")

	userID := c.GetString(ContextUserID)
	if err := h.authService.DeleteAccount(c.Request.Context(), userID); err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{Message: "Account deleted"})
}

// ListUsers lists users, admin only
func (h *AuthHandler) ListUsers(c *gin.Context) {
	filters := repositories.UserFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if role := c.Query("role"); role != "" {
		r := models.UserRole(role)
		filters.Role = &r
	}
	if status := c.Query("status"); status != "" {
		s := models.UserStatus(status)
		filters.Status = &s
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	users, total, err := h.authService.ListUsers(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": users,
		"total": total,
	})
}

// GetUser returns one user's profile, admin only
func (h *AuthHandler) GetUser(c *gin.Context) {
	profile, err := h.authService.GetProfile(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, profile)
}
