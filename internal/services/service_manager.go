package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/repositories"
	"github.com/echotree-platform/trust-service/internal/validator"
)

// ServiceManagerConfig holds configuration for the service manager
type ServiceManagerConfig struct {
	Auth AuthConfig
	Quiz QuizConfig

	HarmfulTerms []string
	CrisisTerms  []string
}

// DefaultServiceManagerConfig mirrors the production policy constants.
func DefaultServiceManagerConfig() ServiceManagerConfig {
	return ServiceManagerConfig{
		Auth: AuthConfig{
			JWTTTL:          7 * 24 * time.Hour,
			MaxFailedLogins: 5,
			LockoutDuration: 15 * time.Minute,
		},
		Quiz: QuizConfig{
			PassScore:   80,
			RetakeDelay: 24 * time.Hour,
		},
	}
}

// serviceManager implements ServiceManager interface
type serviceManager struct {
	db        *gorm.DB
	repo      repositories.Repository
	logger    *slog.Logger
	validator *validator.Validator
	publisher events.EventPublisher
	config    ServiceManagerConfig

	authService       AuthService
	trustService      TrustService
	quizService       QuizService
	moderationService ModerationService
	penaltyService    PenaltyService
	contentService    ContentService
	reportService     ReportService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a new service manager with all dependencies
func NewServiceManager(db *gorm.DB, repo repositories.Repository, logger *slog.Logger, validator *validator.Validator, publisher events.EventPublisher, config ServiceManagerConfig) ServiceManager {
	return &serviceManager{
		db:        db,
		repo:      repo,
		logger:    logger,
		validator: validator,
		publisher: publisher,
		config:    config,
	}
}

// Initialize sets up all services and their dependencies
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	sm.logger.Info("Initializing service manager")

	sm.trustService = NewTrustService(sm.repo, sm.db, sm.logger, sm.publisher)
	sm.logger.Info("Trust service initialized")

	sm.authService = NewAuthService(sm.repo, sm.db, sm.logger, sm.validator, sm.config.Auth)
	sm.logger.Info("Auth service initialized")

	sm.quizService = NewQuizService(sm.repo, sm.db, sm.logger, sm.validator, sm.trustService, sm.config.Quiz, nil)
	sm.logger.Info("Quiz service initialized")

	gate := NewKeywordModerationGate(sm.config.HarmfulTerms)
	detector := NewKeywordCrisisDetector(sm.config.CrisisTerms)
	sm.moderationService = NewModerationService(gate, detector, sm.logger)
	sm.logger.Info("Moderation service initialized")

	sm.penaltyService = NewPenaltyService(sm.repo, sm.db, sm.logger, sm.trustService, sm.publisher)
	sm.logger.Info("Penalty service initialized")

	sm.contentService = NewContentService(sm.logger, sm.validator, sm.moderationService, sm.penaltyService, sm.publisher, NewInMemoryReplyStore(), NewInMemoryMessageStore())
	sm.logger.Info("Content service initialized")

	sm.reportService = NewReportService(sm.repo, sm.db, sm.logger)
	sm.logger.Info("Report service initialized")

	sm.initialized = true
	sm.logger.Info("Service manager initialized successfully")

	return nil
}

// Service getters
func (sm *serviceManager) Auth() AuthService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.authService
}

func (sm *serviceManager) Trust() TrustService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.trustService
}

func (sm *serviceManager) Quiz() QuizService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.quizService
}

func (sm *serviceManager) Moderation() ModerationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.moderationService
}

func (sm *serviceManager) Penalty() PenaltyService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.penaltyService
}

func (sm *serviceManager) Content() ContentService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.contentService
}

func (sm *serviceManager) Report() ReportService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		panic("service manager not initialized")
	}
	return sm.reportService
}

// Health and lifecycle
func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	return sm.repo.Ping(ctx)
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.logger.Info("Shutting down service manager")

	if err := sm.publisher.Close(); err != nil {
		sm.logger.Error("Failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	sm.logger.Info("Service manager shut down completed")

	return nil
}
