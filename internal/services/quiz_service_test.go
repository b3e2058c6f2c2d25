package services

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/validator"
)

func newQuizFixture(config QuizConfig) (*fakeRepository, QuizService) {
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher()
	trust := NewTrustService(repo, nil, newTestLogger(), publisher)
	quiz := NewQuizService(repo, nil, newTestLogger(), validator.New(), trust, config, nil)
	return repo, quiz
}

// quizAnswers builds a submission answering the first correctCount questions
// correctly and the rest incorrectly.
func quizAnswers(questions []models.QuizQuestion, correctCount int) *models.TakeQuizRequest {
	req := &models.TakeQuizRequest{}
	for i, q := range questions {
		answer := q.Correct
		if i >= correctCount {
			answer = (q.Correct + 1) % len(q.Options)
		}
		req.Answers = append(req.Answers, models.QuizAnswerSubmission{QuestionID: q.ID, Answer: answer})
	}
	return req
}

func TestQuizService_GetQuestions(t *testing.T) {
	_, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})

	questions := quiz.GetQuestions(context.Background())
	if len(questions) != 5 {
		t.Fatalf("Expected 5 questions, got %d", len(questions))
	}
	for _, q := range questions {
		if len(q.Options) == 0 {
			t.Errorf("Question %d has no options", q.ID)
		}
	}
}

func TestQuizService_Take_PassPromotes(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	questions := DefaultQuizQuestions()
	result, err := quiz.Take(context.Background(), "u1", quizAnswers(questions, len(questions)))
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if result.Score != 100 || !result.Passed {
		t.Errorf("Expected score 100 passed, got %d passed=%v", result.Score, result.Passed)
	}
	if !result.RolePromoted {
		t.Error("Passing should promote the teller")
	}
	if result.CanRetakeAt != nil {
		t.Error("A passing attempt carries no retake window")
	}
	if user := mustUser(t, repo, "u1"); user.Role != models.RoleHealer {
		t.Errorf("Expected role healer, got %s", user.Role)
	}
}

func TestQuizService_Take_FailSetsCooldown(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	ctx := context.Background()
	questions := DefaultQuizQuestions()

	result, err := quiz.Take(ctx, "u1", quizAnswers(questions, 3))
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if result.Score != 60 || result.Passed {
		t.Errorf("Expected score 60 failed, got %d passed=%v", result.Score, result.Passed)
	}
	if result.CanRetakeAt == nil {
		t.Fatal("Failing should set the retake window")
	}
	remaining := time.Until(*result.CanRetakeAt)
	if remaining < 23*time.Hour || remaining > 24*time.Hour {
		t.Errorf("Retake window should be about 24h away, got %s", remaining)
	}
	if user := mustUser(t, repo, "u1"); user.Role != models.RoleTeller {
		t.Errorf("Failing must not change the role, got %s", user.Role)
	}

	// A retake inside the window is rejected and the error carries how
	// long is left.
	_, err = quiz.Take(ctx, "u1", quizAnswers(questions, 5))
	if !errors.Is(err, ErrQuizCooldown) {
		t.Fatalf("Expected ErrQuizCooldown, got %v", err)
	}
	var cooldown *RetakeCooldownError
	if !errors.As(err, &cooldown) {
		t.Fatalf("Expected RetakeCooldownError, got %T", err)
	}
	if cooldown.MinutesLeft < 23*60 || cooldown.MinutesLeft > 24*60 {
		t.Errorf("Expected about a day of cooldown, got %d minutes", cooldown.MinutesLeft)
	}
}

func TestQuizService_Take_RetakeAfterCooldownOverwrites(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	ctx := context.Background()
	questions := DefaultQuizQuestions()

	if _, err := quiz.Take(ctx, "u1", quizAnswers(questions, 2)); err != nil {
		t.Fatalf("First take failed: %v", err)
	}

	// Age the stored attempt past its retake window.
	attempt, err := repo.QuizAttempt().GetByUserID(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("Failed to load attempt: %v", err)
	}
	past := time.Now().Add(-time.Minute)
	attempt.CanRetakeAt = &past
	if err := repo.QuizAttempt().Upsert(ctx, nil, attempt); err != nil {
		t.Fatalf("Failed to age attempt: %v", err)
	}

	result, err := quiz.Take(ctx, "u1", quizAnswers(questions, 5))
	if err != nil {
		t.Fatalf("Retake failed: %v", err)
	}
	if !result.Passed || result.Score != 100 {
		t.Errorf("Expected passing retake, got score %d passed=%v", result.Score, result.Passed)
	}

	// The retake overwrote the single stored attempt.
	stored, err := repo.QuizAttempt().GetByUserID(ctx, nil, "u1")
	if err != nil {
		t.Fatalf("Failed to load attempt: %v", err)
	}
	if stored.Score != 100 || !stored.Passed {
		t.Errorf("Stored attempt not overwritten: score %d passed=%v", stored.Score, stored.Passed)
	}
	if user := mustUser(t, repo, "u1"); user.Role != models.RoleHealer {
		t.Errorf("Expected promotion on retake, got %s", user.Role)
	}
}

func TestQuizService_Take_AlreadyPassed(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	ctx := context.Background()
	questions := DefaultQuizQuestions()

	if _, err := quiz.Take(ctx, "u1", quizAnswers(questions, 5)); err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if _, err := quiz.Take(ctx, "u1", quizAnswers(questions, 5)); !errors.Is(err, ErrQuizAlreadyPassed) {
		t.Errorf("Expected ErrQuizAlreadyPassed, got %v", err)
	}
}

func TestQuizService_Take_GradingEdgeCases(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	questions := DefaultQuizQuestions()
	req := &models.TakeQuizRequest{
		Answers: []models.QuizAnswerSubmission{
			{QuestionID: questions[0].ID, Answer: questions[0].Correct},
			// Duplicate answer for the same question keeps the first.
			{QuestionID: questions[0].ID, Answer: questions[0].Correct + 1},
			// Unknown question id scores nothing.
			{QuestionID: 999, Answer: 0},
		},
	}

	result, err := quiz.Take(context.Background(), "u1", req)
	if err != nil {
		t.Fatalf("Take failed: %v", err)
	}
	if result.Score != 20 {
		t.Errorf("Expected score 20, got %d", result.Score)
	}
	if len(result.Answers) != 2 {
		t.Errorf("Expected 2 graded answers, got %d", len(result.Answers))
	}
}

func TestQuizService_Take_SuspendedUser(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusSuspended})

	questions := DefaultQuizQuestions()
	_, err := quiz.Take(context.Background(), "u1", quizAnswers(questions, 5))
	if !errors.Is(err, ErrAccountSuspended) {
		t.Errorf("Expected ErrAccountSuspended, got %v", err)
	}
}

func TestQuizService_GetStatus(t *testing.T) {
	repo, quiz := newQuizFixture(QuizConfig{PassScore: 80, RetakeDelay: 24 * time.Hour})
	repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	ctx := context.Background()

	status, err := quiz.GetStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if status.Taken || !status.CanTakeNow {
		t.Errorf("Expected untaken and available, got %+v", status)
	}

	questions := DefaultQuizQuestions()
	if _, err := quiz.Take(ctx, "u1", quizAnswers(questions, 1)); err != nil {
		t.Fatalf("Take failed: %v", err)
	}

	status, err = quiz.GetStatus(ctx, "u1")
	if err != nil {
		t.Fatalf("GetStatus failed: %v", err)
	}
	if !status.Taken || status.Passed || status.CanTakeNow {
		t.Errorf("Expected failed attempt in cooldown, got %+v", status)
	}
	if status.Score != 20 {
		t.Errorf("Expected score 20, got %d", status.Score)
	}
}
