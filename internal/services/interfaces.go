package services

import (
	"context"
	"time"

	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/repositories"
)

// ===== RESPONSE TYPES =====

type UserResponse struct {
	ID        string            `json:"id"`
	Username  string            `json:"username"`
	Email     *string           `json:"email,omitempty"`
	Role      models.UserRole   `json:"role"`
	Status    models.UserStatus `json:"status"`
	CreatedAt time.Time         `json:"created_at"`
	LastLogin *time.Time        `json:"last_login,omitempty"`
}

type AuthResponse struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expires_at"`
	User      UserResponse `json:"user"`
}

type QuizResult struct {
	Score        int                   `json:"score"`
	Passed       bool                  `json:"passed"`
	Answers      []models.GradedAnswer `json:"answers"`
	TakenAt      time.Time             `json:"taken_at"`
	CanRetakeAt  *time.Time            `json:"can_retake_at,omitempty"`
	RolePromoted bool                  `json:"role_promoted"`
}

type QuizStatus struct {
	Taken       bool       `json:"taken"`
	Score       int        `json:"score"`
	Passed      bool       `json:"passed"`
	TakenAt     *time.Time `json:"taken_at,omitempty"`
	CanRetakeAt *time.Time `json:"can_retake_at,omitempty"`
	CanTakeNow  bool       `json:"can_take_now"`
}

type ModerationResult struct {
	Flagged     bool   `json:"flagged"`
	MatchedTerm string `json:"matched_term,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

type CrisisResult struct {
	Detected    bool    `json:"detected"`
	Confidence  float64 `json:"confidence"`
	MatchedTerm string  `json:"matched_term,omitempty"`
}

type PenaltyState struct {
	UserID              string     `json:"user_id"`
	HarmfulCount        int        `json:"harmful_count"`
	AlertSent           bool       `json:"alert_sent"`
	HealerStatusRemoved bool       `json:"healer_status_removed"`
	LastViolationAt     *time.Time `json:"last_violation_at,omitempty"`

	// Set only on the call that crossed the threshold.
	AlertTriggered   bool `json:"alert_triggered,omitempty"`
	RemovalTriggered bool `json:"removal_triggered,omitempty"`
}

type ReplyResponse struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Content       string    `json:"content"`
	CrisisFlagged bool      `json:"crisis_flagged"`
	CreatedAt     time.Time `json:"created_at"`
}

type MessageResponse struct {
	ID            string    `json:"id"`
	AuthorID      string    `json:"author_id"`
	Content       string    `json:"content"`
	CrisisFlagged bool      `json:"crisis_flagged"`
	CreatedAt     time.Time `json:"created_at"`
}

// ===== TRUST EVENTS =====

type TrustEventType string

const (
	TrustEventQuizPassed     TrustEventType = "quiz_passed"
	TrustEventPenaltyRemoval TrustEventType = "penalty_removal"
)

type TrustEvent struct {
	Type   TrustEventType `json:"type"`
	Reason string         `json:"reason"`
}

// TrustDecision reports what a trust event did. Changed is false when the
// event was a no-op for the user's current role.
type TrustDecision struct {
	Changed  bool            `json:"changed"`
	FromRole models.UserRole `json:"from_role"`
	ToRole   models.UserRole `json:"to_role"`
}

// ===== SERVICE INTERFACES =====

// AuthService owns credentials, tokens and session records.
type AuthService interface {
	Register(ctx context.Context, req *models.RegisterRequest) (*AuthResponse, error)
	Login(ctx context.Context, req *models.LoginRequest, ipAddress, userAgent string) (*AuthResponse, error)

	// Authenticate verifies the token signature and expiry only. Session
	// records are consulted by ValidateSession.
	Authenticate(ctx context.Context, token string) (*models.Principal, error)
	ValidateSession(ctx context.Context, token string) (*models.SessionView, error)

	// ValidateSessionByID and LogoutSession address a session by id. The
	// requester must own it; anyone else gets ErrForbidden.
	ValidateSessionByID(ctx context.Context, sessionID, requestingUserID string) (*models.SessionView, error)
	LogoutSession(ctx context.Context, sessionID, requestingUserID string) error

	Logout(ctx context.Context, token string) error
	LogoutAll(ctx context.Context, userID string) (int64, error)
	ListSessions(ctx context.Context, userID string) ([]*models.SessionView, error)

	GetProfile(ctx context.Context, userID string) (*UserResponse, error)
	UpdateProfile(ctx context.Context, userID string, req *models.UpdateProfileRequest) (*UserResponse, error)

	// DeleteAccount marks the account deleted. The status is terminal.
	DeleteAccount(ctx context.Context, userID string) error
	ListUsers(ctx context.Context, filters repositories.UserFilters) ([]UserResponse, int64, error)

	CleanupExpiredSessions(ctx context.Context) (int64, error)
}

// TrustService applies role transition events. Events are idempotent:
// re-applying one the user's role already reflects changes nothing.
type TrustService interface {
	Apply(ctx context.Context, userID string, event TrustEvent) (*TrustDecision, error)

	// ApplyIn runs the event inside the caller's transaction.
	ApplyIn(ctx context.Context, txRepo repositories.Repository, userID string, event TrustEvent) (*TrustDecision, error)

	// AdminSetRole is the only path to the admin role.
	AdminSetRole(ctx context.Context, adminID, userID string, role models.UserRole) (*TrustDecision, error)
}

// QuizService grades the healer competency quiz.
type QuizService interface {
	GetQuestions(ctx context.Context) []models.QuizQuestion
	Take(ctx context.Context, userID string, req *models.TakeQuizRequest) (*QuizResult, error)
	GetStatus(ctx context.Context, userID string) (*QuizStatus, error)
}

// ModerationService screens text through the configured gates. The content
// type tags where the text came from ("reply", "message").
type ModerationService interface {
	Moderate(ctx context.Context, text, contentType string) (*ModerationResult, error)
	CheckCrisis(ctx context.Context, text string) (*CrisisResult, error)
}

// PenaltyService tracks violations and fires threshold latches.
type PenaltyService interface {
	RecordViolation(ctx context.Context, userID string, details models.ViolationDetails) (*PenaltyState, error)
	Get(ctx context.Context, userID string) (*PenaltyState, error)
	Reset(ctx context.Context, adminID, userID string) (*PenaltyState, error)
	List(ctx context.Context, filters repositories.PenaltyFilters) ([]*models.HealerPenalty, int64, error)
}

// ContentService enforces the moderation contract on user content.
type ContentService interface {
	CreateReply(ctx context.Context, principal *models.Principal, req *models.CreateReplyRequest) (*ReplyResponse, error)
	PostMessage(ctx context.Context, principal *models.Principal, req *models.PostMessageRequest) (*MessageResponse, error)
}

// ReportService exports moderation and quiz data as spreadsheets.
type ReportService interface {
	GeneratePenaltyReport(ctx context.Context) ([]byte, error)
	GenerateQuizReport(ctx context.Context) ([]byte, error)
}

// ServiceManager wires and owns all services.
type ServiceManager interface {
	Auth() AuthService
	Trust() TrustService
	Quiz() QuizService
	Moderation() ModerationService
	Penalty() PenaltyService
	Content() ContentService
	Report() ReportService

	Initialize(ctx context.Context) error
	HealthCheck(ctx context.Context) error
	Shutdown(ctx context.Context) error
}
