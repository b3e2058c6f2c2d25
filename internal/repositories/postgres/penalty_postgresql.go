package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/echotree-platform/trust-service/internal/cache"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// PenaltyPostgreSQL implements PenaltyRepository.
type PenaltyPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func NewPenaltyPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *PenaltyPostgreSQL {
	return &PenaltyPostgreSQL{db: db, cacheManager: cacheManager}
}

func (p *PenaltyPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return p.db
}

func (p *PenaltyPostgreSQL) GetByUserID(ctx context.Context, tx *gorm.DB, userID string) (*models.HealerPenalty, error) {
	if tx == nil {
		var cached models.HealerPenalty
		if err := p.cacheManager.Penalty.Get(ctx, "user:"+userID, &cached); err == nil {
			return &cached, nil
		}
	}

	var penalty models.HealerPenalty
	err := p.getDB(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		First(&penalty).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get penalty record: %w", err)
	}

	if tx == nil {
		_ = p.cacheManager.Penalty.Set(ctx, "user:"+userID, &penalty, cache.PenaltyCacheConfig.TTL)
	}

	return &penalty, nil
}

// GetOrCreateForUpdate returns the penalty row locked FOR UPDATE, creating
// it first when the user has no record yet. Must run inside a transaction.
func (p *PenaltyPostgreSQL) GetOrCreateForUpdate(ctx context.Context, tx *gorm.DB, userID string) (*models.HealerPenalty, error) {
	db := p.getDB(tx)

	// Insert-if-absent first so the locked read always finds a row.
	seed := &models.HealerPenalty{
		ID:     uuid.New().String(),
		UserID: userID,
	}
	err := db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}},
			DoNothing: true,
		}).
		Create(seed).Error
	if err != nil {
		return nil, fmt.Errorf("failed to seed penalty record: %w", err)
	}

	var penalty models.HealerPenalty
	err = db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("user_id = ?", userID).
		First(&penalty).Error
	if err != nil {
		return nil, fmt.Errorf("failed to lock penalty record: %w", err)
	}

	return &penalty, nil
}

func (p *PenaltyPostgreSQL) Update(ctx context.Context, tx *gorm.DB, penalty *models.HealerPenalty) error {
	if err := p.getDB(tx).WithContext(ctx).Save(penalty).Error; err != nil {
		return fmt.Errorf("failed to update penalty record: %w", err)
	}
	cache.SafeDelete(ctx, p.cacheManager.Penalty, "user:"+penalty.UserID)
	return nil
}

func (p *PenaltyPostgreSQL) List(ctx context.Context, tx *gorm.DB, filters repositories.PenaltyFilters) ([]*models.HealerPenalty, int64, error) {
	db := p.getDB(tx)
	query := db.WithContext(ctx).Model(&models.HealerPenalty{})

	if filters.MinHarmfulCount != nil {
		query = query.Where("harmful_count >= ?", *filters.MinHarmfulCount)
	}
	if filters.AlertSent != nil {
		query = query.Where("alert_sent = ?", *filters.AlertSent)
	}
	if filters.StatusRemoved != nil {
		query = query.Where("healer_status_removed = ?", *filters.StatusRemoved)
	}
	if filters.DateFrom != nil {
		query = query.Where("last_violation_at >= ?", *filters.DateFrom)
	}
	if filters.DateTo != nil {
		query = query.Where("last_violation_at <= ?", *filters.DateTo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count penalty records: %w", err)
	}

	var penalties []*models.HealerPenalty
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&penalties).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list penalty records: %w", err)
	}

	return penalties, total, nil
}
