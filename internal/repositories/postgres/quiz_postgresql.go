package postgres

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// QuizAttemptPostgreSQL implements QuizAttemptRepository.
type QuizAttemptPostgreSQL struct {
	db *gorm.DB
}

func NewQuizAttemptPostgreSQL(db *gorm.DB) *QuizAttemptPostgreSQL {
	return &QuizAttemptPostgreSQL{db: db}
}

func (q *QuizAttemptPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return q.db
}

func (q *QuizAttemptPostgreSQL) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.QuizAttempt, error) {
	var attempt models.QuizAttempt
	err := q.getDB(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&attempt).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get quiz attempt: %w", err)
	}
	return &attempt, nil
}

// Upsert replaces the user's stored result wholesale. One row per user is
// enforced by the unique index on user_id.
func (q *QuizAttemptPostgreSQL) Upsert(ctx context.Context, tx *gorm.DB, attempt *models.QuizAttempt) error {
	err := q.getDB(tx).WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"score", "passed", "answers", "taken_at", "can_retake_at", "updated_at",
			}),
		}).
		Create(attempt).Error
	if err != nil {
		return fmt.Errorf("failed to upsert quiz attempt: %w", err)
	}
	return nil
}

func (q *QuizAttemptPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.QuizAttemptFilters) ([]*models.QuizAttempt, int64, error) {
	db := q.getDB(tx)
	query := db.WithContext(ctx).Model(&models.QuizAttempt{})

	if filters.Passed != nil {
		query = query.Where("passed = ?", *filters.Passed)
	}
	if filters.DateFrom != nil {
		query = query.Where("taken_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("taken_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count quiz attempts: %w", err)
	}

	var attempts []*models.QuizAttempt
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&attempts).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list quiz attempts: %w", err)
	}

	return attempts, total, nil
}
