package models

import (
	"time"
)

// ===== AUTH DTOs =====

type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=30"`
	Password string  `json:"password" validate:"required,min=8,max=128"`
	Email    *string `json:"email" validate:"omitempty,email"`
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type UpdateProfileRequest struct {
	Email    *string `json:"email" validate:"omitempty,email"`
	Password *string `json:"password" validate:"omitempty,min=8,max=128"`
}

// Principal is the authenticated identity derived from a signed token.
type Principal struct {
	UserID string     `json:"user_id"`
	Role   UserRole   `json:"role"`
	Status UserStatus `json:"status"`
}

// SessionView is the read model returned by session validation.
type SessionView struct {
	SessionID string    `json:"session_id"`
	UserID    string    `json:"user_id"`
	Username  string    `json:"username"`
	Role      UserRole  `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	ExpiresAt time.Time `json:"expires_at"`
	IPAddress *string   `json:"ip_address"`
	UserAgent *string   `json:"user_agent"`
	Valid     bool      `json:"valid"`
}

// ===== QUIZ DTOs =====

type QuizAnswerSubmission struct {
	QuestionID int `json:"question_id" validate:"required"`
	Answer     int `json:"answer" validate:"min=0"`
}

type TakeQuizRequest struct {
	Answers []QuizAnswerSubmission `json:"answers" validate:"required,dive"`
}

// ===== TRUST DTOs =====

type SetRoleRequest struct {
	Role UserRole `json:"role" validate:"required,oneof=visitor teller healer admin"`
}

// ===== PENALTY DTOs =====

type RecordViolationRequest struct {
	Reason      string `json:"reason" validate:"required,max=500"`
	ContentType string `json:"content_type" validate:"omitempty,oneof=message note reply"`
	Excerpt     string `json:"excerpt" validate:"omitempty,max=2000"`
}

// ===== CONTENT DTOs =====

type CreateReplyRequest struct {
	Content string `json:"content" validate:"required,min=1,max=2000"`
}

type PostMessageRequest struct {
	Content string `json:"content" validate:"required,min=1,max=5000"`
}

type ModerateRequest struct {
	Text        string `json:"text" validate:"required,max=10000"`
	ContentType string `json:"content_type" validate:"omitempty,oneof=message note reply"`
}
