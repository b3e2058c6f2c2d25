package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
	"github.com/echotree-platform/trust-service/internal/validator"
)

const bcryptCost = 10

// AuthConfig holds token and lockout policy for the auth service.
type AuthConfig struct {
	JWTSecret       string
	JWTTTL          time.Duration
	MaxFailedLogins int
	LockoutDuration time.Duration
}

type authClaims struct {
	UserID    string `json:"uid"`
	Role      string `json:"role"`
	Status    string `json:"status"`
	SessionID string `json:"sid"`
	jwt.RegisteredClaims
}

type authService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	config    AuthConfig
}

func NewAuthService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, config AuthConfig) AuthService {
	return &authService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		config:    config,
	}
}

// ===== REGISTRATION AND LOGIN =====

func (s *authService) Register(ctx context.Context, req *models.RegisterRequest) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	exists, err := s.repo.User().ExistsByUsername(ctx, s.db, req.Username)
	if err != nil {
		return nil, fmt.Errorf("failed to check username: %w", err)
	}
	if exists {
		return nil, ErrUsernameTaken
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcryptCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	user := &models.User{
		ID:           uuid.New().String(),
		Username:     req.Username,
		PasswordHash: string(hash),
		Email:        req.Email,
		Role:         models.RoleTeller,
		Status:       models.StatusActive,
	}

	if err := s.repo.User().Create(ctx, s.db, user); err != nil {
		if repositories.IsDuplicateError(err) {
			return nil, ErrUsernameTaken
		}
		return nil, fmt.Errorf("failed to create user: %w", err)
	}

	s.logger.Info("User registered", "user_id", user.ID, "username", user.Username)

	return s.issueSession(ctx, user, nil, nil)
}

func (s *authService) Login(ctx context.Context, req *models.LoginRequest, ipAddress, userAgent string) (*AuthResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.repo.User().GetByUsername(ctx, s.db, req.Username)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	now := time.Now()
	if user.IsLocked(now) {
		return nil, &AccountLockedError{MinutesLeft: minutesUntil(*user.AccountLockedUntil)}
	}
	if err := checkAccountStatus(user.Status); err != nil {
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, s.recordFailedLogin(ctx, user.ID)
	}

	// Success: reset the failure counter under the row lock so a racing
	// failed attempt cannot resurrect stale state.
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		locked, err := txRepo.User().GetForUpdate(ctx, nil, user.ID)
		if err != nil {
			return err
		}
		locked.FailedLoginAttempts = 0
		locked.AccountLockedUntil = nil
		loginAt := time.Now()
		locked.LastLogin = &loginAt
		user = locked
		return txRepo.User().Update(ctx, nil, locked)
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record login: %w", err)
	}

	s.logger.Info("User logged in", "user_id", user.ID)

	var ip, ua *string
	if ipAddress != "" {
		ip = &ipAddress
	}
	if userAgent != "" {
		ua = &userAgent
	}
	return s.issueSession(ctx, user, ip, ua)
}

// recordFailedLogin bumps the failure counter under the row lock. The
// attempt that reaches the threshold engages the lock but still fails as a
// bad credential; the lock is observed on subsequent attempts.
func (s *authService) recordFailedLogin(ctx context.Context, userID string) error {
	var lockedOut bool

	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user, err := txRepo.User().GetForUpdate(ctx, nil, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		if user.AccountLockedUntil != nil && !user.AccountLockedUntil.After(now) {
			// A previous lock has run out; this failure starts a new streak.
			user.AccountLockedUntil = nil
			user.FailedLoginAttempts = 1
		} else {
			user.FailedLoginAttempts++
		}

		if user.FailedLoginAttempts >= s.config.MaxFailedLogins && user.AccountLockedUntil == nil {
			until := now.Add(s.config.LockoutDuration)
			user.AccountLockedUntil = &until
			lockedOut = true
		}

		return txRepo.User().Update(ctx, nil, user)
	})
	if err != nil {
		return fmt.Errorf("failed to record failed login: %w", err)
	}

	if lockedOut {
		s.logger.Warn("Account locked after repeated failed logins", "user_id", userID)
	}
	return ErrInvalidCredentials
}

func (s *authService) issueSession(ctx context.Context, user *models.User, ipAddress, userAgent *string) (*AuthResponse, error) {
	sessionID := uuid.New().String()
	expiresAt := time.Now().Add(s.config.JWTTTL)

	claims := authClaims{
		UserID:    user.ID,
		Role:      string(user.Role),
		Status:    string(user.Status),
		SessionID: sessionID,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   user.ID,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			Issuer:    "trust-service",
		},
	}

	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(s.config.JWTSecret))
	if err != nil {
		return nil, fmt.Errorf("failed to sign token: %w", err)
	}

	session := &models.UserSession{
		ID:        sessionID,
		UserID:    user.ID,
		Token:     tokenDigest(token),
		ExpiresAt: expiresAt,
		IPAddress: ipAddress,
		UserAgent: userAgent,
	}
	if err := s.repo.Session().Create(ctx, s.db, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	return &AuthResponse{
		Token:     token,
		ExpiresAt: expiresAt,
		User:      toUserResponse(user),
	}, nil
}

// ===== TOKEN AND SESSION VALIDATION =====

func (s *authService) Authenticate(_ context.Context, token string) (*models.Principal, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		return nil, err
	}

	return &models.Principal{
		UserID: claims.UserID,
		Role:   models.UserRole(claims.Role),
		Status: models.UserStatus(claims.Status),
	}, nil
}

func (s *authService) ValidateSession(ctx context.Context, token string) (*models.SessionView, error) {
	claims, err := s.parseToken(token)
	if err != nil {
		// An expired token means the backing record, if still around, is
		// inert. Purge it on this access.
		if errors.Is(err, ErrSessionExpired) {
			s.purgeSessionByDigest(ctx, tokenDigest(token))
		}
		return nil, err
	}

	session, err := s.repo.Session().GetByToken(ctx, s.db, tokenDigest(token))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.IsExpired(time.Now()) {
		s.purgeSession(ctx, session.ID)
		return nil, ErrSessionExpired
	}

	user, err := s.repo.User().GetByID(ctx, s.db, session.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := checkAccountStatus(user.Status); err != nil {
		return nil, err
	}

	if claims.SessionID != session.ID {
		return nil, ErrInvalidToken
	}

	return s.sessionView(session, user), nil
}

// ValidateSessionByID checks a session addressed by id. The requester must
// own the session.
func (s *authService) ValidateSessionByID(ctx context.Context, sessionID, requestingUserID string) (*models.SessionView, error) {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if session.UserID != requestingUserID {
		return nil, ErrForbidden
	}

	if session.IsExpired(time.Now()) {
		s.purgeSession(ctx, session.ID)
		return nil, ErrSessionExpired
	}

	user, err := s.repo.User().GetByID(ctx, s.db, session.UserID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to load user: %w", err)
	}
	if err := checkAccountStatus(user.Status); err != nil {
		return nil, err
	}

	return s.sessionView(session, user), nil
}

func (s *authService) sessionView(session *models.UserSession, user *models.User) *models.SessionView {
	return &models.SessionView{
		SessionID: session.ID,
		UserID:    user.ID,
		Username:  user.Username,
		Role:      user.Role,
		CreatedAt: session.CreatedAt,
		ExpiresAt: session.ExpiresAt,
		IPAddress: session.IPAddress,
		UserAgent: session.UserAgent,
		Valid:     true,
	}
}

// purgeSession removes an expired record the moment it is observed. Failures
// are logged only; the caller still reports the expiry.
func (s *authService) purgeSession(ctx context.Context, sessionID string) {
	if err := s.repo.Session().Delete(ctx, s.db, sessionID); err != nil && !repositories.IsNotFoundError(err) {
		s.logger.Error("Failed to purge expired session", "session_id", sessionID, "error", err)
	}
}

func (s *authService) purgeSessionByDigest(ctx context.Context, digest string) {
	if err := s.repo.Session().DeleteByToken(ctx, s.db, digest); err != nil && !repositories.IsNotFoundError(err) {
		s.logger.Error("Failed to purge expired session", "error", err)
	}
}

func (s *authService) parseToken(token string) (*authClaims, error) {
	parsed, err := jwt.ParseWithClaims(token, &authClaims{}, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return []byte(s.config.JWTSecret), nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrSessionExpired
		}
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*authClaims)
	if !ok || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// ===== SESSION MANAGEMENT =====

func (s *authService) Logout(ctx context.Context, token string) error {
	if _, err := s.parseToken(token); err != nil {
		return err
	}

	err := s.repo.Session().DeleteByToken(ctx, s.db, tokenDigest(token))
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

// LogoutSession revokes one session addressed by id. Only the owner may
// revoke it.
func (s *authService) LogoutSession(ctx context.Context, sessionID, requestingUserID string) error {
	session, err := s.repo.Session().GetByID(ctx, s.db, sessionID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	if session.UserID != requestingUserID {
		return ErrForbidden
	}

	if err := s.repo.Session().Delete(ctx, s.db, session.ID); err != nil {
		if repositories.IsNotFoundError(err) {
			return ErrSessionNotFound
		}
		return fmt.Errorf("failed to delete session: %w", err)
	}
	return nil
}

func (s *authService) LogoutAll(ctx context.Context, userID string) (int64, error) {
	count, err := s.repo.Session().DeleteByUser(ctx, s.db, userID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	s.logger.Info("All sessions revoked", "user_id", userID, "count", count)
	return count, nil
}

func (s *authService) ListSessions(ctx context.Context, userID string) ([]*models.SessionView, error) {
	now := time.Now()
	sessions, _, err := s.repo.Session().ListByUser(ctx, s.db, repositories.SessionFilters{
		UserID:    &userID,
		ActiveAt:  &now,
		SortBy:    "created_at",
		SortOrder: "desc",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}

	views := make([]*models.SessionView, 0, len(sessions))
	for _, sess := range sessions {
		views = append(views, &models.SessionView{
			SessionID: sess.ID,
			UserID:    sess.UserID,
			CreatedAt: sess.CreatedAt,
			ExpiresAt: sess.ExpiresAt,
			IPAddress: sess.IPAddress,
			UserAgent: sess.UserAgent,
			Valid:     !sess.IsExpired(now),
		})
	}
	return views, nil
}

func (s *authService) CleanupExpiredSessions(ctx context.Context) (int64, error) {
	count, err := s.repo.Session().DeleteExpired(ctx, s.db, time.Now())
	if err != nil {
		return 0, fmt.Errorf("failed to delete expired sessions: %w", err)
	}
	if count > 0 {
		s.logger.Info("Expired sessions purged", "count", count)
	}
	return count, nil
}

// ===== PROFILE =====

func (s *authService) GetProfile(ctx context.Context, userID string) (*UserResponse, error) {
	user, err := s.repo.User().GetByID(ctx, s.db, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	resp := toUserResponse(user)
	return &resp, nil
}

func (s *authService) UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*UserResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	var updated *models.User
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user, err := txRepo.User().GetForUpdate(ctx, nil, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrUserNotFound
			}
			return err
		}

		if req.Email != nil {
			user.Email = req.Email
		}
		if req.Password != nil {
			hash, err := bcrypt.GenerateFromPassword([]byte(*req.Password), bcryptCost)
			if err != nil {
				return fmt.Errorf("failed to hash password: %w", err)
			}
			user.PasswordHash = string(hash)
		}

		updated = user
		return txRepo.User().Update(ctx, nil, user)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to update profile: %w", err)
	}

	// Password changes invalidate all other sessions.
	if req.Password != nil {
		if _, err := s.LogoutAll(ctx, userID); err != nil {
			s.logger.Error("Failed to revoke sessions after password change", "user_id", userID, "error", err)
		}
	}

	resp := toUserResponse(updated)
	return &resp, nil
}

// DeleteAccount marks the account deleted and revokes every session. The row
// is kept so violation history and audit trails stay intact.
func (s *authService) DeleteAccount(ctx context.Context, userID string) error {
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user, err := txRepo.User().GetForUpdate(ctx, nil, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrUserNotFound
			}
			return err
		}

		user.Status = models.StatusDeleted
		return txRepo.User().Update(ctx, nil, user)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return ErrUserNotFound
		}
		return fmt.Errorf("failed to delete account: %w", err)
	}

	if _, err := s.LogoutAll(ctx, userID); err != nil {
		s.logger.Error("Failed to revoke sessions after account deletion", "user_id", userID, "error", err)
	}

	s.logger.Info("Account deleted", "user_id", userID)
	return nil
}

func (s *authService) ListUsers(ctx context.Context, filters repositories.UserFilters) ([]UserResponse, int64, error) {
	users, total, err := s.repo.User().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list users: %w", err)
	}

	out := make([]UserResponse, 0, len(users))
	for _, u := range users {
		out = append(out, toUserResponse(u))
	}
	return out, total, nil
}

// ===== HELPERS =====

func checkAccountStatus(status models.UserStatus) error {
	switch status {
	case models.StatusSuspended:
		return ErrAccountSuspended
	case models.StatusBanned, models.StatusDeleted:
		return ErrAccountBanned
	default:
		return nil
	}
}

func toUserResponse(user *models.User) UserResponse {
	return UserResponse{
		ID:        user.ID,
		Username:  user.Username,
		Email:     user.Email,
		Role:      user.Role,
		Status:    user.Status,
		CreatedAt: user.CreatedAt,
		LastLogin: user.LastLogin,
	}
}

func tokenDigest(token string) string {
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:])
}
