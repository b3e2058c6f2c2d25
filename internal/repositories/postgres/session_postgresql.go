package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/cache"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// SessionPostgreSQL implements SessionRepository with Redis read caching on
// the token lookup, which runs on every authenticated request.
type SessionPostgreSQL struct {
	db           *gorm.DB
	cacheManager *cache.CacheManager
}

func sessionTokenKey(token string) string {
	return "token:" + token
}

func NewSessionPostgreSQL(db *gorm.DB, cacheManager *cache.CacheManager) *SessionPostgreSQL {
	return &SessionPostgreSQL{db: db, cacheManager: cacheManager}
}

func (s *SessionPostgreSQL) getDB(tx *gorm.DB) *gorm.DB {
	if tx != nil {
		return tx
	}
	return s.db
}

func (s *SessionPostgreSQL) Create(ctx context.Context, tx *gorm.DB, session *models.UserSession) error {
	if err := s.getDB(tx).WithContext(ctx).Create(session).Error; err != nil {
		return fmt.Errorf("failed to create session: %w", err)
	}
	return nil
}

func (s *SessionPostgreSQL) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.UserSession, error) {
	var session models.UserSession
	err := s.getDB(tx).WithContext(ctx).
		Where("id = ?", id).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &session, nil
}

func (s *SessionPostgreSQL) GetByToken(ctx context.Context, tx *gorm.DB, token string) (*models.UserSession, error) {
	// Skip the cache inside transactions so locked reads stay consistent
	if tx == nil {
		var cached models.UserSession
		if err := s.cacheManager.Session.Get(ctx, sessionTokenKey(token), &cached); err == nil {
			return &cached, nil
		}
	}

	var session models.UserSession
	err := s.getDB(tx).WithContext(ctx).
		Where("token = ?", token).
		First(&session).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, fmt.Errorf("failed to get session by token: %w", err)
	}

	if tx == nil {
		_ = s.cacheManager.Session.Set(ctx, sessionTokenKey(token), &session, cache.SessionCacheConfig.TTL)
	}

	return &session, nil
}

func (s *SessionPostgreSQL) ListByUser(ctx context.Context, tx *gorm.DB, filters repositories.SessionFilters) ([]*models.UserSession, int64, error) {
	db := s.getDB(tx)
	query := db.WithContext(ctx).Model(&models.UserSession{})

	if filters.UserID != nil {
		query = query.Where("user_id = ?", *filters.UserID)
	}
	if filters.ActiveAt != nil {
		query = query.Where("expires_at > ?", *filters.ActiveAt)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %w", err)
	}

	var sessions []*models.UserSession
	query = applyPaginationAndSort(query, filters.SortBy, filters.SortOrder, filters.Limit, filters.Offset)
	if err := query.Find(&sessions).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to list sessions: %w", err)
	}

	return sessions, total, nil
}

func (s *SessionPostgreSQL) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	// Load the row first so the token-keyed cache entry can be dropped.
	session, err := s.GetByID(ctx, tx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return gorm.ErrRecordNotFound
		}
		return err
	}

	result := s.getDB(tx).WithContext(ctx).
		Where("id = ?", id).
		Delete(&models.UserSession{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	cache.SafeDelete(ctx, s.cacheManager.Session, sessionTokenKey(session.Token))
	return nil
}

func (s *SessionPostgreSQL) DeleteByToken(ctx context.Context, tx *gorm.DB, token string) error {
	result := s.getDB(tx).WithContext(ctx).
		Where("token = ?", token).
		Delete(&models.UserSession{})
	if result.Error != nil {
		return fmt.Errorf("failed to delete session by token: %w", result.Error)
	}
	cache.SafeDelete(ctx, s.cacheManager.Session, sessionTokenKey(token))
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

func (s *SessionPostgreSQL) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) (int64, error) {
	var tokens []string
	err := s.getDB(tx).WithContext(ctx).
		Model(&models.UserSession{}).
		Where("user_id = ?", userID).
		Pluck("token", &tokens).Error
	if err != nil {
		return 0, fmt.Errorf("failed to list user session tokens: %w", err)
	}

	result := s.getDB(tx).WithContext(ctx).
		Where("user_id = ?", userID).
		Delete(&models.UserSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete user sessions: %w", result.Error)
	}

	keys := make([]string, 0, len(tokens))
	for _, token := range tokens {
		keys = append(keys, sessionTokenKey(token))
	}
	cache.SafeDelete(ctx, s.cacheManager.Session, keys...)
	return result.RowsAffected, nil
}

// DeleteExpired leaves the cache alone: token entries age out within the
// cache TTL and callers re-check expiry on every read.
func (s *SessionPostgreSQL) DeleteExpired(ctx context.Context, tx *gorm.DB, before time.Time) (int64, error) {
	result := s.getDB(tx).WithContext(ctx).
		Where("expires_at <= ?", before).
		Delete(&models.UserSession{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", result.Error)
	}
	return result.RowsAffected, nil
}
