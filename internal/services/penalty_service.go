package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

type penaltyService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	trust     TrustService
	publisher events.EventPublisher
}

func NewPenaltyService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, trust TrustService, publisher events.EventPublisher) PenaltyService {
	return &penaltyService{
		repo:      repo,
		db:        db,
		logger:    logger,
		trust:     trust,
		publisher: publisher,
	}
}

// RecordViolation increments the user's violation counter under a row lock.
// The alert latch fires once when the count reaches the alert threshold and
// the removal latch once at the removal threshold; the demotion runs in the
// same transaction as the counter update.
func (s *penaltyService) RecordViolation(ctx context.Context, userID string, details models.ViolationDetails) (*PenaltyState, error) {
	// Confirm the user exists before opening the write transaction.
	if _, err := s.repo.User().GetByID(ctx, s.db, userID); err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	detailsJSON, err := json.Marshal(details)
	if err != nil {
		return nil, fmt.Errorf("failed to encode violation details: %w", err)
	}

	var state *PenaltyState
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		penalty, err := txRepo.Penalty().GetOrCreateForUpdate(ctx, nil, userID)
		if err != nil {
			return err
		}

		now := time.Now()
		penalty.HarmfulCount++
		penalty.LastViolationAt = &now
		penalty.LastViolation = datatypes.JSON(detailsJSON)

		alertTriggered := false
		removalTriggered := false

		if penalty.HarmfulCount >= models.PenaltyAlertThreshold && !penalty.AlertSent {
			penalty.AlertSent = true
			alertTriggered = true
		}

		if penalty.HarmfulCount >= models.PenaltyRemovalThreshold && !penalty.HealerStatusRemoved {
			penalty.HealerStatusRemoved = true
			removalTriggered = true

			if _, err := s.trust.ApplyIn(ctx, txRepo, userID, TrustEvent{
				Type:   TrustEventPenaltyRemoval,
				Reason: fmt.Sprintf("violation count reached %d", penalty.HarmfulCount),
			}); err != nil {
				return err
			}
		}

		if err := txRepo.Penalty().Update(ctx, nil, penalty); err != nil {
			return err
		}

		state = toPenaltyState(penalty)
		state.AlertTriggered = alertTriggered
		state.RemovalTriggered = removalTriggered
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to record violation: %w", err)
	}

	s.logger.Info("Violation recorded",
		"user_id", userID,
		"harmful_count", state.HarmfulCount,
		"reason", details.Reason)

	if state.AlertTriggered {
		s.publishAlert(ctx, userID, state.HarmfulCount, details.Reason)
	}

	return state, nil
}

func (s *penaltyService) Get(ctx context.Context, userID string) (*PenaltyState, error) {
	penalty, err := s.repo.Penalty().GetByUserID(ctx, s.db, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			// No record means no violations yet.
			return &PenaltyState{UserID: userID}, nil
		}
		return nil, fmt.Errorf("failed to get penalty record: %w", err)
	}
	return toPenaltyState(penalty), nil
}

// Reset zeroes the counter and latches. It deliberately does not touch the
// user's role: a demoted healer must requalify through the quiz.
func (s *penaltyService) Reset(ctx context.Context, adminID, userID string) (*PenaltyState, error) {
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

	var state *PenaltyState
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		penalty, err := txRepo.Penalty().GetByUserID(ctx, nil, userID)
		if err != nil {
			if repositories.IsNotFoundError(err) {
				return ErrPenaltyNotFound
			}
			return err
		}

		penalty.HarmfulCount = 0
		penalty.AlertSent = false
		penalty.HealerStatusRemoved = false
		penalty.LastViolationAt = nil
		penalty.LastViolation = nil

		if err := txRepo.Penalty().Update(ctx, nil, penalty); err != nil {
			return err
		}

		state = toPenaltyState(penalty)
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrPenaltyNotFound) {
			return nil, ErrPenaltyNotFound
		}
		return nil, fmt.Errorf("failed to reset penalty record: %w", err)
	}

	s.logger.Info("Penalty record reset", "admin_id", adminID, "user_id", userID)
	return state, nil
}

func (s *penaltyService) List(ctx context.Context, filters repositories.PenaltyFilters) ([]*models.HealerPenalty, int64, error) {
	penalties, total, err := s.repo.Penalty().List(ctx, s.db, filters)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list penalty records: %w", err)
	}
	return penalties, total, nil
}

func (s *penaltyService) publishAlert(ctx context.Context, userID string, count int, reason string) {
	event := events.NewEvent(events.TopicPenaltyAlert, map[string]interface{}{
		"user_id":       userID,
		"harmful_count": count,
		"reason":        reason,
	})
	if err := s.publisher.Publish(ctx, events.TopicPenaltyAlert, event); err != nil {
		s.logger.Error("Failed to publish penalty alert", "user_id", userID, "error", err)
	}
}

func toPenaltyState(penalty *models.HealerPenalty) *PenaltyState {
	return &PenaltyState{
		UserID:              penalty.UserID,
		HarmfulCount:        penalty.HarmfulCount,
		AlertSent:           penalty.AlertSent,
		HealerStatusRemoved: penalty.HealerStatusRemoved,
		LastViolationAt:     penalty.LastViolationAt,
	}
}
