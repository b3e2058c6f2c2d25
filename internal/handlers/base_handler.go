package handlers

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
)

// ErrorResponse is the error body returned by all endpoints.
type ErrorResponse struct {
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// SuccessResponse wraps data responses that carry a message.
type SuccessResponse struct {
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// BaseHandler provides shared logging and error mapping for handlers.
type BaseHandler struct {
	logger utils.Logger
}

func NewBaseHandler(logger utils.Logger) BaseHandler {
	return BaseHandler{logger: logger}
}

func (h *BaseHandler) LogRequest(c *gin.Context, msg string, args ...any) {
	utils.FromContext(c, h.logger).Info(msg, args...)
}

func (h *BaseHandler) LogError(c *gin.Context, msg string, err error, args ...any) {
	all := append([]any{"error", err}, args...)
	utils.FromContext(c, h.logger).Error(msg, all...)
}

// handleServiceError maps service sentinel errors onto HTTP status codes.
func (h *BaseHandler) handleServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrInvalidCredentials),
		errors.Is(err, services.ErrInvalidToken),
		errors.Is(err, services.ErrSessionNotFound),
		errors.Is(err, services.ErrSessionExpired):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrForbidden),
		errors.Is(err, services.ErrAccountSuspended),
		errors.Is(err, services.ErrAccountBanned):
		c.JSON(http.StatusForbidden, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrUserNotFound),
		errors.Is(err, services.ErrPenaltyNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrUsernameTaken),
		errors.Is(err, services.ErrQuizAlreadyPassed),
		errors.Is(err, services.ErrQuizCooldown):
		c.JSON(http.StatusConflict, errorBody(err))

	case errors.Is(err, services.ErrContentRejected),
		errors.Is(err, services.ErrInvalidTransition):
		c.JSON(http.StatusUnprocessableEntity, ErrorResponse{Message: err.Error()})

	case errors.Is(err, services.ErrAccountLocked):
		c.JSON(http.StatusLocked, errorBody(err))

	case strings.Contains(err.Error(), "validation failed"):
		c.JSON(http.StatusBadRequest, ErrorResponse{Message: "Validation failed", Details: err.Error()})

	default:
		h.LogError(c, "Unhandled service error", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Message: "Internal server error"})
	}
}

// errorBody surfaces the minutes-left detail carried by lockout and retake
// cooldown errors.
func errorBody(err error) ErrorResponse {
	resp := ErrorResponse{Message: err.Error()}

	var locked *services.AccountLockedError
	if errors.As(err, &locked) {
		resp.Details = gin.H{"minutes_left": locked.MinutesLeft}
	}

	var cooldown *services.RetakeCooldownError
	if errors.As(err, &cooldown) {
		resp.Details = gin.H{
			"minutes_left": cooldown.MinutesLeft,
			"retake_at":    cooldown.RetakeAt,
		}
	}

	return resp
}
