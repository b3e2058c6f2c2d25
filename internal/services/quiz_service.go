package services

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
	"github.com/echotree-platform/trust-service/internal/validator"
)

// QuizConfig holds grading policy for the competency quiz.
type QuizConfig struct {
	PassScore   int
	RetakeDelay time.Duration
}

type quizService struct {
	repo      repositories.Repository
	db        *gorm.DB
	logger    *slog.Logger
	validator *validator.Validator
	trust     TrustService
	config    QuizConfig
	questions []models.QuizQuestion
}

func NewQuizService(repo repositories.Repository, db *gorm.DB, logger *slog.Logger, validator *validator.Validator, trust TrustService, config QuizConfig, questions []models.QuizQuestion) QuizService {
	if len(questions) == 0 {
		questions = DefaultQuizQuestions()
	}
	return &quizService{
		repo:      repo,
		db:        db,
		logger:    logger,
		validator: validator,
		trust:     trust,
		config:    config,
		questions: questions,
	}
}

// DefaultQuizQuestions is the built-in healer competency question table.
// Each question is worth an equal share of 100 points.
func DefaultQuizQuestions() []models.QuizQuestion {
	return []models.QuizQuestion{
		{
			ID:       1,
			Question: "A user shares a painful story. What is the most supportive first response?",
			Options: []string{
				"Tell them what they did wrong",
				"Acknowledge their feelings without judgment",
				"Change the subject to something lighter",
				"Share a worse story of your own",
			},
			Correct: 1,
		},
		{
			ID:       2,
			Question: "A user mentions thoughts of self-harm. What should you do?",
			Options: []string{
				"Promise to keep it secret",
				"Tell them it is not a big deal",
				"Encourage them to seek professional help and share crisis resources",
				"Stop responding",
			},
			Correct: 2,
		},
		{
			ID:       3,
			Question: "Which of these belongs in a supportive reply?",
			Options: []string{
				"Unsolicited medical advice",
				"Validation of the person's experience",
				"Comparisons that minimize their problem",
				"Demands for more personal details",
			},
			Correct: 1,
		},
		{
			ID:       4,
			Question: "A user disagrees with your advice and becomes upset. How do you respond?",
			Options: []string{
				"Argue until they accept your view",
				"Respect their autonomy and remain calm",
				"Report them for being difficult",
				"Mock their reaction",
			},
			Correct: 1,
		},
		{
			ID:       5,
			Question: "What is the right way to handle information a user shares with you?",
			Options: []string{
				"Post it publicly as an example",
				"Share it with friends for advice",
				"Keep it confidential within the platform's rules",
				"Use it to pressure the user later",
			},
			Correct: 2,
		},
	}
}

func (s *quizService) GetQuestions(_ context.Context) []models.QuizQuestion {
	out := make([]models.QuizQuestion, len(s.questions))
	copy(out, s.questions)
	return out
}

// Take grades a submission and stores it, overwriting any previous failed
// attempt. Passing promotes the user in the same transaction as the stored
// result.
func (s *quizService) Take(ctx context.Context, userID string, req *models.TakeQuizRequest) (*QuizResult, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	user, err := s.repo.User().GetByID(ctx, s.db, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}
	if err := checkAccountStatus(user.Status); err != nil {
		return nil, err
	}

	now := time.Now()

	existing, err := s.repo.QuizAttempt().GetByUserID(ctx, s.db, userID)
	if err != nil && !repositories.IsNotFoundError(err) {
		return nil, fmt.Errorf("failed to get previous attempt: %w", err)
	}
	if existing != nil {
		if existing.Passed {
			return nil, ErrQuizAlreadyPassed
		}
		if existing.CanRetakeAt != nil && now.Before(*existing.CanRetakeAt) {
			return nil, &RetakeCooldownError{
				MinutesLeft: minutesUntil(*existing.CanRetakeAt),
				RetakeAt:    *existing.CanRetakeAt,
			}
		}
	}

	score, graded := s.grade(req.Answers)
	passed := score >= s.config.PassScore

	answersJSON, err := json.Marshal(graded)
	if err != nil {
		return nil, fmt.Errorf("failed to encode answers: %w", err)
	}

	attempt := &models.QuizAttempt{
		ID:      uuid.New().String(),
		UserID:  userID,
		Score:   score,
		Passed:  passed,
		Answers: datatypes.JSON(answersJSON),
		TakenAt: now,
	}
	if !passed {
		retakeAt := now.Add(s.config.RetakeDelay)
		attempt.CanRetakeAt = &retakeAt
	}

	var decision *TrustDecision
	err = s.repo.WithTransaction(ctx, func(txRepo repositories.Repository) error {
		if err := txRepo.QuizAttempt().Upsert(ctx, nil, attempt); err != nil {
			return err
		}
		if passed {
			d, err := s.trust.ApplyIn(ctx, txRepo, userID, TrustEvent{
				Type:   TrustEventQuizPassed,
				Reason: fmt.Sprintf("quiz passed with score %d", score),
			})
			if err != nil {
				return err
			}
			decision = d
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store quiz result: %w", err)
	}

	s.logger.Info("Quiz attempt graded",
		"user_id", userID,
		"score", score,
		"passed", passed)

	result := &QuizResult{
		Score:       score,
		Passed:      passed,
		Answers:     graded,
		TakenAt:     now,
		CanRetakeAt: attempt.CanRetakeAt,
	}
	if decision != nil {
		result.RolePromoted = decision.Changed
	}
	return result, nil
}

// grade scores a submission. Unknown question ids and missing answers count
// as incorrect; duplicate answers for one question keep the first.
func (s *quizService) grade(answers []models.QuizAnswerSubmission) (int, []models.GradedAnswer) {
	pointsPerQuestion := 100 / len(s.questions)

	byID := make(map[int]models.QuizQuestion, len(s.questions))
	for _, q := range s.questions {
		byID[q.ID] = q
	}

	seen := make(map[int]bool, len(answers))
	graded := make([]models.GradedAnswer, 0, len(answers))
	score := 0

	for _, sub := range answers {
		if seen[sub.QuestionID] {
			continue
		}
		seen[sub.QuestionID] = true

		question, known := byID[sub.QuestionID]
		correct := known && sub.Answer == question.Correct
		if correct {
			score += pointsPerQuestion
		}

		graded = append(graded, models.GradedAnswer{
			QuestionID: sub.QuestionID,
			Answer:     sub.Answer,
			Correct:    correct,
		})
	}

	return score, graded
}

func (s *quizService) GetStatus(ctx context.Context, userID string) (*QuizStatus, error) {
	attempt, err := s.repo.QuizAttempt().GetByUserID(ctx, s.db, userID)
	if err != nil {
		if repositories.IsNotFoundError(err) {
			return &QuizStatus{Taken: false, CanTakeNow: true}, nil
		}
		return nil, fmt.Errorf("failed to get quiz attempt: %w", err)
	}

	now := time.Now()
	status := &QuizStatus{
		Taken:       true,
		Score:       attempt.Score,
		Passed:      attempt.Passed,
		TakenAt:     &attempt.TakenAt,
		CanRetakeAt: attempt.CanRetakeAt,
	}
	status.CanTakeNow = !attempt.Passed &&
		(attempt.CanRetakeAt == nil || !now.Before(*attempt.CanRetakeAt))

	return status, nil
}
