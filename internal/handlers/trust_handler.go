package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
	"github.com/echotree-platform/trust-service/internal/validator"
)

type TrustHandler struct {
	BaseHandler
	trustService services.TrustService
	validator    *validator.Validator
}

func NewTrustHandler(trustService services.TrustService, validator *validator.Validator, logger utils.Logger) *TrustHandler {
	return &TrustHandler{
		BaseHandler:  NewBaseHandler(logger),
		trustService: trustService,
		validator:    validator,
	}
}

// SetRole assigns a user's role directly, admin only. This is the only
// path that can grant the admin role.
// @Summary Set a user's role
// @Tags trust
// @Accept json
// @Produce json
// @Param id path string true "User ID"
// @Param role body models.SetRoleRequest true "Target role"
// @Success 200 {object} services.TrustDecision
// @Failure 403 {object} ErrorResponse
// @Failure 404 {object} ErrorResponse
// @Router /users/{id}/role [put]
func (h *TrustHandler) SetRole(c *gin.Context) {
	userID := c.Param("id")
	h.LogRequest(c, "Setting user role", "target_user_id", userID)

	var req models.SetRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}
	if err := h.validator.Validate(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Validation failed",
			Details: err.Error(),
		})
		return
	}

	adminID := c.GetString(ContextUserID)
	decision, err := h.trustService.AdminSetRole(c.Request.Context(), adminID, userID, req.Role)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, decision)
}
