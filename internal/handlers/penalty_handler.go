package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
)

type PenaltyHandler struct {
	BaseHandler
	penaltyService services.PenaltyService
}

func NewPenaltyHandler(penaltyService services.PenaltyService, logger utils.Logger) *PenaltyHandler {
	return &PenaltyHandler{
		BaseHandler:    NewBaseHandler(logger),
		penaltyService: penaltyService,
	}
}

// RecordViolation records a moderation violation against a user, admin only
// @Summary Record a violation
// @Tags penalties
// @Accept json
// @Produce json
// @Param user_id path string true "User ID"
// @Param violation body models.RecordViolationRequest true "Violation details"
// @Success 200 {object} services.PenaltyState
// @Failure 404 {object} ErrorResponse
// @Router /penalties/{user_id}/violations [post]
func (h *PenaltyHandler) RecordViolation(c *gin.Context) {
	userID := c.Param("user_id")
	h.LogRequest(c, "Recording violation", "target_user_id", userID)

	var req models.RecordViolationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	state, err := h.penaltyService.RecordViolation(c.Request.Context(), userID, models.ViolationDetails{
		Reason:      req.Reason,
		ContentType: req.ContentType,
		Excerpt:     req.Excerpt,
	})
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetPenalty returns one user's penalty state
func (h *PenaltyHandler) GetPenalty(c *gin.Context) {
	state, err := h.penaltyService.Get(c.Request.Context(), c.Param("user_id"))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// GetOwnPenalty returns the caller's penalty state
func (h *PenaltyHandler) GetOwnPenalty(c *gin.Context) {
	state, err := h.penaltyService.Get(c.Request.Context(), c.GetString(ContextUserID))
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ResetPenalty clears a user's violation record, admin only. The user's
// role is left untouched.
func (h *PenaltyHandler) ResetPenalty(c *gin.Context) {
	userID := c.Param("user_id")
	h.LogRequest(c, "Resetting penalty record", "target_user_id", userID)

	adminID := c.GetString(ContextUserID)
	state, err := h.penaltyService.Reset(c.Request.Context(), adminID, userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, state)
}

// ListPenalties lists penalty records, admin only
func (h *PenaltyHandler) ListPenalties(c *gin.Context) {
	filters := repositories.PenaltyFilters{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
	}
	if min := c.Query("min_count"); min != "" {
		if n, err := strconv.Atoi(min); err == nil {
			filters.MinHarmfulCount = &n
		}
	}
	if removed := c.Query("status_removed"); removed != "" {
		v := removed == "true"
		filters.StatusRemoved = &v
	}
	filters.Limit, _ = strconv.Atoi(c.DefaultQuery("limit", "50"))
	filters.Offset, _ = strconv.Atoi(c.DefaultQuery("offset", "0"))

	penalties, total, err := h.penaltyService.List(c.Request.Context(), filters)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"penalties": penalties,
		"total":     total,
	})
}
