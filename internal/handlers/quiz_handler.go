package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
)

type QuizHandler struct {
	BaseHandler
	quizService services.QuizService
}

func NewQuizHandler(quizService services.QuizService, logger utils.Logger) *QuizHandler {
	return &QuizHandler{
		BaseHandler: NewBaseHandler(logger),
		quizService: quizService,
	}
}

// GetQuestions returns the quiz questions without the answer key
func (h *QuizHandler) GetQuestions(c *gin.Context) {
	questions := h.quizService.GetQuestions(c.Request.Context())
	c.JSON(http.StatusOK, gin.H{"questions": questions})
}

// TakeQuiz grades a submission for the current user
// @Summary Take the healer competency quiz
// @Tags quiz
// @Accept json
// @Produce json
// @Param answers body models.TakeQuizRequest true "Quiz answers"
// @Success 200 {object} services.QuizResult
// @Failure 409 {object} ErrorResponse
// @Router /quiz/attempts [post]
func (h *QuizHandler) TakeQuiz(c *gin.Context) {
	h.LogRequest(c, "Taking quiz")

	var req models.TakeQuizRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Message: "Invalid request payload",
			Details: err.Error(),
		})
		return
	}

	userID := c.GetString(ContextUserID)
	result, err := h.quizService.Take(c.Request.Context(), userID, &req)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// GetStatus returns the current user's quiz standing
func (h *QuizHandler) GetStatus(c *gin.Context) {
	userID := c.GetString(ContextUserID)

	status, err := h.quizService.GetStatus(c.Request.Context(), userID)
	if err != nil {
		h.handleServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, status)
}
