package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
)

type ContentHandler struct {
	BaseHandler
	contentService    services.ContentService
	moderationService services.ModerationService
}

func NewContentHandler(contentService services.ContentService, moderationService services.ModerationService, logger utils.Logger) *ContentHandler {
	return &ContentHandler{
		BaseHandler:       NewBaseHandler(logger),
		contentService:    contentService,
		moderationService: moderationService,
	}
}

// CreateReply posts a supportive reply, healers only. Flagged content is
// rejected with 422 after the violation is recorded.
// @Summary Create a reply
// @Tags content
// @Accept json
// @Produce json
// @Param reply body models.CreateReplyRequest true "Reply content"
// @Success 201 {object} services.ReplyResponse
// @Failure 403 {object} ErrorResponse
// @Failure 422 {object} ErrorResponse
// @Router /replies [post]
func (h *ContentHandler) CreateReply(c *gin.Context) {
	h.LogRequest(c, "Creating reply")

	var req models.CreateReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	reply, err := h.contentService.CreateReply(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, reply)
}

// PostMessage posts a message from any authenticated user
func (h *ContentHandler) PostMessage(c *gin.Context) {
	h.LogRequest(c, "Posting message")

	var req models.PostMessageRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	principal, ok := principalFromContext(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, ErrorResponse{Message: "User not authenticated"})
		return
	}

	message, err := h.contentService.PostMessage(c.Request.Context(), principal, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusCreated, message)
}

// Moderate screens text without persisting anything, admin only
func (h *ContentHandler) Moderate(c *gin.Context) {
	var req models.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	screen, err := h.moderationService.Moderate(c.Request.Context(), req.Text, req.ContentType)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	crisis, err := h.moderationService.CheckCrisis(c.Request.Context(), req.Text)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"moderation": screen,
		"crisis":     crisis,
	})
}

// CheckCrisis screens text for crisis signals without persisting anything
func (h *ContentHandler) CheckCrisis(c *gin.Context) {
	var req models.ModerateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	crisis, err := h.moderationService.CheckCrisis(c.Request.Context(), req.Text)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, crisis)
}
