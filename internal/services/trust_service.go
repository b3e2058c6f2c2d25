package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// roleTransitions maps each automatic event to its from/to role pair. The
// admin role never appears: admins are assigned manually only.
var roleTransitions = map[TrustEventType]struct {
	From models.UserRole
	To   models.UserRole
}{
	TrustEventQuizPassed:     {From: models.RoleTeller, To: models.RoleHealer},
	TrustEventPenaltyRemoval: {From: models.RoleHealer, To: models.RoleTeller},
}

type trustService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	publisher events.EventPublisher
}

func NewTrustService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, publisher events.EventPublisher) TrustService {
	return &trustService{
		repo:      repo,
		db:        db,
		logger:    logger,
		publisher: publisher,
	}
}

// Apply runs a trust event in its own transaction.
func (s *trustService) Apply(ctx context.Context, userID string, event TrustEvent) (*TrustDecision, error) {
	var decision *TrustDecision
	err := s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		d, err := s.ApplyIn(ctx, txRepo, userID, event)
		if err != nil {
			return err
		}
		decision = d
		return nil
	})
	if err != nil {
		return nil, err
	}
	return decision, nil
}

// ApplyIn runs a trust event inside the caller's transaction so the role
// change commits or rolls back together with the caller's writes.
func (s *trustService) ApplyIn(ctx context.Context, txRepo repositories.Repository, userID string, event TrustEvent) (*TrustDecision, error) {
	transition, ok := roleTransitions[event.Type]
	if !ok {
		return nil, fmt.Errorf("%w: unknown event %q", ErrInvalidTransition, event.Type)
	}

	user, err := txRepo.User().GetForUpdate(ctx, nil, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to lock user: %w", err)
	}

	// Replays and out-of-order events land here: nothing to do.
	if user.Role != transition.From {
		return &TrustDecision{
			Changed:  false,
			FromRole: user.Role,
			ToRole:   user.Role,
		}, nil
	}

	fromRole := user.Role
	user.Role = transition.To
	if err := txRepo.User().Update(ctx, nil, user); err != nil {
		return nil, fmt.Errorf("failed to update role: %w", err)
	}

	s.logger.Info("Role transition applied",
		"user_id", userID,
		"event", string(event.Type),
		"from_role", string(fromRole),
		"to_role", string(user.Role))

	s.publishRoleChange(ctx, userID, fromRole, user.Role, event.Reason)

	return &TrustDecision{
		Changed:  true,
		FromRole: fromRole,
		ToRole:   user.Role,
	}, nil
}

// AdminSetRole assigns a role directly. It is the only path that can grant
// or revoke admin.
func (s *trustService) AdminSetRole(ctx context.Context, adminID, userID string, role models.UserRole) (*TrustDecision, error) {
	switch role {
	case models.RoleVisitor, models.RoleTeller, models.RoleHealer, models.RoleAdmin:
	default:
		return nil, fmt.Errorf("%w: unknown role %q", ErrInvalidTransition, role)
	}

	admin, err := s.repo.User().GetByID(ctx, s.db, adminID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get admin: %w", err)
	}
	if admin.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	var decision *TrustDecision
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		user, err := txRepo.User().GetForUpdate(ctx, nil, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrUserNotFound
			}
			return err
		}

		fromRole := user.Role
		if fromRole == role {
			decision = &TrustDecision{Changed: false, FromRole: fromRole, ToRole: fromRole}
			return nil
		}

		user.Role = role
		if err := txRepo.User().Update(ctx, nil, user); err != nil {
			return fmt.Errorf("failed to update role: %w", err)
		}

		decision = &TrustDecision{Changed: true, FromRole: fromRole, ToRole: role}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}

	if decision.Changed {
		s.logger.Info("Role set by admin",
			"admin_id", adminID,
			"user_id", userID,
			"from_role", string(decision.FromRole),
			"to_role", string(decision.ToRole))
		s.publishRoleChange(ctx, userID, decision.FromRole, decision.ToRole, "admin assignment")
	}

	return decision, nil
}

func (s *trustService) publishRoleChange(ctx context.Context, userID string, from, to models.UserRole, reason string) {
	promoted := rolePrecedence(to) > rolePrecedence(from)

	topic := events.TopicRoleDemoted
	if promoted {
		topic = events.TopicRolePromoted
	}

	event := events.NewEvent(topic, map[string]interface{}{
		"user_id":   userID,
		"from_role": string(from),
		"to_role":   string(to),
		"reason":    reason,
	})

	if err := s.publisher.Publish(ctx, topic, event); err != nil {
		s.logger.Error("Failed to publish role change event",
			"user_id", userID,
			"topic", topic,
			"error", err)
	}
}

func rolePrecedence(role models.UserRole) int {
	switch role {
	case models.RoleVisitor:
		return 0
	case models.RoleTeller:
		return 1
	case models.RoleHealer:
		return 2
	case models.RoleAdmin:
		return 3
	default:
		return -1
	}
}
