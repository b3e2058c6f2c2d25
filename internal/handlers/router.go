package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/services"
	"github.com/echotree-platform/trust-service/internal/utils"
	"github.com/echotree-platform/trust-service/internal/validator"
)

type HandlerManager struct {
	authHandler    *AuthHandler
	quizHandler    *QuizHandler
	penaltyHandler *PenaltyHandler
	contentHandler *ContentHandler
	reportHandler  *ReportHandler
	trustHandler   *TrustHandler
	authMiddleware *JWTAuthMiddleware
	loginLimiter   *RateLimiter
	trialLimiter   *RateLimiter
}

// RateLimitConfig holds the rate limit policies. TrialLimit applies to
// visitor-role message posting only.
type RateLimitConfig struct {
	LoginLimit  int
	LoginWindow time.Duration
	TrialLimit  int
	TrialWindow time.Duration
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	validator *validator.Validator,
	logger utils.Logger,
	redisClient *redis.Client,
	rateLimits RateLimitConfig,
) *HandlerManager {
	authMiddleware := NewJWTAuthMiddleware(serviceManager.Auth())

	return &HandlerManager{
		authHandler:    NewAuthHandler(serviceManager.Auth(), validator, logger),
		quizHandler:    NewQuizHandler(serviceManager.Quiz(), logger),
		penaltyHandler: NewPenaltyHandler(serviceManager.Penalty(), logger),
		contentHandler: NewContentHandler(serviceManager.Content(), serviceManager.Moderation(), logger),
		reportHandler:  NewReportHandler(serviceManager.Report(), logger),
		trustHandler:   NewTrustHandler(serviceManager.Trust(), validator, logger),
		authMiddleware: authMiddleware,
		loginLimiter:   NewRateLimiter(redisClient, "login", rateLimits.LoginLimit, rateLimits.LoginWindow),
		trialLimiter:   NewRateLimiter(redisClient, "trial", rateLimits.TrialLimit, rateLimits.TrialWindow),
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	v1 := router.Group("/api/v1")

	// Public auth routes
	auth := v1.Group("/auth")
	{
		auth.POST("/register", hm.authHandler.Register)
		auth.POST("/login", hm.loginLimiter.Middleware(), hm.authHandler.Login)
	}

	// Authenticated routes
	authed := v1.Group("")
	authed.Use(hm.authMiddleware.AuthMiddleware())
	{
		// Session management. The id-addressed forms are owner-only.
		authed.POST("/auth/logout", hm.authHandler.Logout)
		authed.POST("/auth/logout/:id", hm.authHandler.LogoutSession)
		authed.POST("/auth/logout-all", hm.authHandler.LogoutAll)
		authed.GET("/auth/session", hm.authHandler.ValidateSession)
		authed.GET("/auth/sessions", hm.authHandler.ListSessions)
		authed.GET("/auth/sessions/:id/validate", hm.authHandler.ValidateSessionByID)

		// Profile
		authed.GET("/me", hm.authHandler.GetProfile)
		authed.PUT("/me", hm.authHandler.UpdateProfile)
		authed.DELETE("/me", hm.authHandler.DeleteAccount)

		// Quiz
		quiz := authed.Group("/quiz")
		{
			quiz.GET("/questions", hm.quizHandler.GetQuestions)
			quiz.POST("/attempts", hm.quizHandler.TakeQuiz)
			quiz.GET("/status", hm.quizHandler.GetStatus)
		}

		// Content. Visitors get a trial allowance on messages.
		authed.POST("/replies", hm.authMiddleware.RequireRoleMiddleware(models.RoleHealer, models.RoleAdmin), hm.contentHandler.CreateReply)
		authed.POST("/messages", hm.trialLimiter.RoleMiddleware(models.RoleVisitor), hm.contentHandler.PostMessage)

		// Crisis screening is available to any authenticated caller.
		authed.POST("/moderation/crisis", hm.contentHandler.CheckCrisis)

		// Penalty state is visible to its owner
		authed.GET("/me/penalty", hm.penaltyHandler.GetOwnPenalty)

		// Admin routes
		admin := authed.Group("")
		admin.Use(hm.authMiddleware.RequireRoleMiddleware(models.RoleAdmin))
		{
			admin.GET("/users", hm.authHandler.ListUsers)
			admin.GET("/users/:id", hm.authHandler.GetUser)
			admin.PUT("/users/:id/role", hm.trustHandler.SetRole)

			admin.GET("/penalties", hm.penaltyHandler.ListPenalties)
			admin.GET("/penalties/:user_id", hm.penaltyHandler.GetPenalty)
			admin.POST("/penalties/:user_id/violations", hm.penaltyHandler.RecordViolation)
			admin.POST("/penalties/:user_id/reset", hm.penaltyHandler.ResetPenalty)

			admin.POST("/moderation/check", hm.contentHandler.Moderate)

			admin.GET("/reports/penalties", hm.reportHandler.PenaltyReport)
			admin.GET("/reports/quiz", hm.reportHandler.QuizReport)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "trust-service",
		})
	})
}
