package services

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// fakeStore backs the in-memory repository used by the service tests. One
// mutex guards every table, which also stands in for the row locks the real
// repositories take.
type fakeStore struct {
	mu        sync.Mutex
	users     map[string]*models.User
	sessions  map[string]*models.UserSession
	penalties map[string]*models.HealerPenalty // keyed by user id
	attempts  map[string]*models.QuizAttempt   // keyed by user id
}

type fakeRepository struct {
	store *fakeStore
}

func newFakeRepository() *fakeRepository {
	return &fakeRepository{
		store: &fakeStore{
			users:     make(map[string]*models.User),
			sessions:  make(map[string]*models.UserSession),
			penalties: make(map[string]*models.HealerPenalty),
			attempts:  make(map[string]*models.QuizAttempt),
		},
	}
}

func (r *fakeRepository) User() repositories.UserRepository               { return &fakeUserRepo{r.store} }
func (r *fakeRepository) Session() repositories.SessionRepository         { return &fakeSessionRepo{r.store} }
func (r *fakeRepository) Penalty() repositories.PenaltyRepository         { return &fakePenaltyRepo{r.store} }
func (r *fakeRepository) QuizAttempt() repositories.QuizAttemptRepository { return &fakeQuizRepo{r.store} }

func (r *fakeRepository) WithTransaction(_ context.Context, fn func(repositories.Repository) error) error {
	return fn(r)
}

func (r *fakeRepository) Ping(_ context.Context) error { return nil }
func (r *fakeRepository) Close() error                 { return nil }

// seedUser inserts a user directly into the store.
func (r *fakeRepository) seedUser(user *models.User) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now()
	}
	copied := *user
	r.store.users[user.ID] = &copied
}

// ===== USERS =====

type fakeUserRepo struct {
	store *fakeStore
}

func (r *fakeUserRepo) Create(_ context.Context, _ *gorm.DB, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, existing := range r.store.users {
		if existing.Username == user.Username {
			return gorm.ErrDuplicatedKey
		}
	}
	now := time.Now()
	user.CreatedAt = now
	user.UpdatedAt = now
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	user, ok := r.store.users[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *user
	return &copied, nil
}

func (r *fakeUserRepo) GetByUsername(_ context.Context, _ *gorm.DB, username string) (*models.User, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Username == username {
			copied := *user
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeUserRepo) GetForUpdate(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	return r.GetByID(ctx, tx, id)
}

func (r *fakeUserRepo) Update(_ context.Context, _ *gorm.DB, user *models.User) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.users[user.ID]; !ok {
		return gorm.ErrRecordNotFound
	}
	user.UpdatedAt = time.Now()
	copied := *user
	r.store.users[user.ID] = &copied
	return nil
}

func (r *fakeUserRepo) List(_ context.Context, _ *gorm.DB, filters repositories.UserFilters) ([]*models.User, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.User
	for _, user := range r.store.users {
		if filters.Role != nil && user.Role != *filters.Role {
			continue
		}
		if filters.Status != nil && user.Status != *filters.Status {
			continue
		}
		copied := *user
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *fakeUserRepo) ExistsByUsername(_ context.Context, _ *gorm.DB, username string) (bool, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, user := range r.store.users {
		if user.Username == username {
			return true, nil
		}
	}
	return false, nil
}

// ===== SESSIONS =====

type fakeSessionRepo struct {
	store *fakeStore
}

func (r *fakeSessionRepo) Create(_ context.Context, _ *gorm.DB, session *models.UserSession) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now()
	session.CreatedAt = now
	session.UpdatedAt = now
	copied := *session
	r.store.sessions[session.ID] = &copied
	return nil
}

func (r *fakeSessionRepo) GetByID(_ context.Context, _ *gorm.DB, id string) (*models.UserSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	session, ok := r.store.sessions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *session
	return &copied, nil
}

func (r *fakeSessionRepo) GetByToken(_ context.Context, _ *gorm.DB, token string) (*models.UserSession, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for _, session := range r.store.sessions {
		if session.Token == token {
			copied := *session
			return &copied, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (r *fakeSessionRepo) ListByUser(_ context.Context, _ *gorm.DB, filters repositories.SessionFilters) ([]*models.UserSession, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.UserSession
	for _, session := range r.store.sessions {
		if filters.UserID != nil && session.UserID != *filters.UserID {
			continue
		}
		if filters.ActiveAt != nil && session.IsExpired(*filters.ActiveAt) {
			continue
		}
		copied := *session
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

func (r *fakeSessionRepo) Delete(_ context.Context, _ *gorm.DB, id string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.sessions[id]; !ok {
		return gorm.ErrRecordNotFound
	}
	delete(r.store.sessions, id)
	return nil
}

func (r *fakeSessionRepo) DeleteByToken(_ context.Context, _ *gorm.DB, token string) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	for id, session := range r.store.sessions {
		if session.Token == token {
			delete(r.store.sessions, id)
			return nil
		}
	}
	return gorm.ErrRecordNotFound
}

func (r *fakeSessionRepo) DeleteByUser(_ context.Context, _ *gorm.DB, userID string) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for id, session := range r.store.sessions {
		if session.UserID == userID {
			delete(r.store.sessions, id)
			count++
		}
	}
	return count, nil
}

func (r *fakeSessionRepo) DeleteExpired(_ context.Context, _ *gorm.DB, before time.Time) (int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var count int64
	for id, session := range r.store.sessions {
		if session.ExpiresAt.Before(before) {
			delete(r.store.sessions, id)
			count++
		}
	}
	return count, nil
}

// ===== PENALTIES =====

type fakePenaltyRepo struct {
	store *fakeStore
}

func (r *fakePenaltyRepo) GetByUserID(_ context.Context, _ *gorm.DB, userID string) (*models.HealerPenalty, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	penalty, ok := r.store.penalties[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *penalty
	return &copied, nil
}

func (r *fakePenaltyRepo) GetOrCreateForUpdate(_ context.Context, _ *gorm.DB, userID string) (*models.HealerPenalty, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	penalty, ok := r.store.penalties[userID]
	if !ok {
		penalty = &models.HealerPenalty{
			ID:        uuid.New().String(),
			UserID:    userID,
			CreatedAt: time.Now(),
		}
		r.store.penalties[userID] = penalty
	}
	copied := *penalty
	return &copied, nil
}

func (r *fakePenaltyRepo) Update(_ context.Context, _ *gorm.DB, penalty *models.HealerPenalty) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if _, ok := r.store.penalties[penalty.UserID]; !ok {
		return gorm.ErrRecordNotFound
	}
	penalty.UpdatedAt = time.Now()
	copied := *penalty
	r.store.penalties[penalty.UserID] = &copied
	return nil
}

func (r *fakePenaltyRepo) List(_ context.Context, _ *gorm.DB, filters repositories.PenaltyFilters) ([]*models.HealerPenalty, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.HealerPenalty
	for _, penalty := range r.store.penalties {
		if filters.MinHarmfulCount != nil && penalty.HarmfulCount < *filters.MinHarmfulCount {
			continue
		}
		if filters.AlertSent != nil && penalty.AlertSent != *filters.AlertSent {
			continue
		}
		if filters.StatusRemoved != nil && penalty.HealerStatusRemoved != *filters.StatusRemoved {
			continue
		}
		copied := *penalty
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

// ===== QUIZ ATTEMPTS =====

type fakeQuizRepo struct {
	store *fakeStore
}

func (r *fakeQuizRepo) GetByUserID(_ context.Context, _ *gorm.DB, userID string) (*models.QuizAttempt, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	attempt, ok := r.store.attempts[userID]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *attempt
	return &copied, nil
}

func (r *fakeQuizRepo) Upsert(_ context.Context, _ *gorm.DB, attempt *models.QuizAttempt) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	now := time.Now()
	if existing, ok := r.store.attempts[attempt.UserID]; ok {
		attempt.ID = existing.ID
		attempt.CreatedAt = existing.CreatedAt
	} else {
		attempt.CreatedAt = now
	}
	attempt.UpdatedAt = now
	copied := *attempt
	r.store.attempts[attempt.UserID] = &copied
	return nil
}

func (r *fakeQuizRepo) List(_ context.Context, _ *gorm.DB, filters repositories.QuizAttemptFilters) ([]*models.QuizAttempt, int64, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var out []*models.QuizAttempt
	for _, attempt := range r.store.attempts {
		if filters.Passed != nil && attempt.Passed != *filters.Passed {
			continue
		}
		copied := *attempt
		out = append(out, &copied)
	}
	return out, int64(len(out)), nil
}

// ===== SHARED HELPERS =====

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelError}))
}

func mustUser(t *testing.T, repo *fakeRepository, id string) *models.User {
	t.Helper()
	user, err := repo.User().GetByID(context.Background(), nil, id)
	if err != nil {
		t.Fatalf("failed to load user %s: %v", id, err)
	}
	return user
}
