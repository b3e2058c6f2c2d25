package repositories

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/models"
)

// ===== SHARED FILTER STRUCTS =====

type UserFilters struct {
	Role      *models.UserRole   `json:"role"`
	Status    *models.UserStatus `json:"status"`
	DateFrom  *time.Time         `json:"date_from"`
	DateTo    *time.Time         `json:"date_to"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
	SortBy    string             `json:"sort_by"`    // "created_at", "username", "role"
	SortOrder string             `json:"sort_order"` // "asc", "desc"
}

type SessionFilters struct {
	UserID    *string    `json:"user_id"`
	ActiveAt  *time.Time `json:"active_at"` // only sessions not expired at this instant
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

type PenaltyFilters struct {
	MinHarmfulCount *int       `json:"min_harmful_count"`
	AlertSent       *bool      `json:"alert_sent"`
	StatusRemoved   *bool      `json:"status_removed"`
	DateFrom        *time.Time `json:"date_from"`
	DateTo          *time.Time `json:"date_to"`
	Limit           int        `json:"limit"`
	Offset          int        `json:"offset"`
	SortBy          string     `json:"sort_by"`
	SortOrder       string     `json:"sort_order"`
}

type QuizAttemptFilters struct {
	Passed    *bool      `json:"passed"`
	DateFrom  *time.Time `json:"date_from"`
	DateTo    *time.Time `json:"date_to"`
	Limit     int        `json:"limit"`
	Offset    int        `json:"offset"`
	SortBy    string     `json:"sort_by"`
	SortOrder string     `json:"sort_order"`
}

// ===== REPOSITORY INTERFACES =====

// UserRepository handles user persistence. GetForUpdate acquires a row
// lock so counter mutations on the same user serialize.
type UserRepository interface {
	Create(ctx context.Context, tx *gorm.DB, user *models.User) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	GetByUsername(ctx context.Context, tx *gorm.DB, username string) (*models.User, error)
	GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.User, error)
	Update(ctx context.Context, tx *gorm.DB, user *models.User) error
	List(ctx context.Context, tx *gorm.DB, filters UserFilters) ([]*models.User, int64, error)
	ExistsByUsername(ctx context.Context, tx *gorm.DB, username string) (bool, error)
}

// SessionRepository handles session records.
type SessionRepository interface {
	Create(ctx context.Context, tx *gorm.DB, session *models.UserSession) error
	GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.UserSession, error)
	GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.UserSession, error)
	ListByUser(ctx context.Context, tx *gorm.DB, filters SessionFilters) ([]*models.UserSession, int64, error)
	Delete(ctx context.Context, tx *gorm.DB, id string) error
	DeleteByToken(ctx context.Context, tx *gorm.DB, token string) error
	DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error)
	DeleteExpired(ctx context.Context, tx *gorm.DB, before time.Time) (int64, error)
}

// PenaltyRepository handles per-user violation records. GetOrCreateForUpdate
// returns the row under a lock so threshold latches flip exactly once.
type PenaltyRepository interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.HealerPenalty, error)
	GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*models.HealerPenalty, error)
	Update(ctx context.Context, tx *gorm.DB, penalty *models.HealerPenalty) error
	List(ctx context.Context, tx *gorm.DB, filters PenaltyFilters) ([]*models.HealerPenalty, int64, error)
}

// QuizAttemptRepository handles the single stored quiz result per user.
type QuizAttemptRepository interface {
	GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.QuizAttempt, error)
	Upsert(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error
	List(ctx context.Context, tx *gorm.DB, filters QuizAttemptFilters) ([]*models.QuizAttempt, int64, error)
}
