package services

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Service-level sentinel errors. Handlers map these onto HTTP status codes.
var (
	// Authentication
	ErrInvalidCredentials = errors.New("invalid username or password")
	ErrInvalidToken       = errors.New("invalid or malformed token")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionExpired     = errors.New("session expired")
	ErrAccountLocked      = errors.New("account temporarily locked")

	// Authorization
	ErrForbidden        = errors.New("operation not permitted for this role")
	ErrAccountSuspended = errors.New("account suspended")
	ErrAccountBanned    = errors.New("account banned")

	// Users
	ErrUserNotFound  = errors.New("user not found")
	ErrUsernameTaken = errors.New("username already taken")

	// Quiz
	ErrQuizAlreadyPassed = errors.New("quiz already passed")
	ErrQuizCooldown      = errors.New("quiz retake not yet available")

	// Content moderation
	ErrContentRejected = errors.New("content rejected by moderation")

	// Trust state machine
	ErrInvalidTransition = errors.New("role transition not allowed")

	// Penalties
	ErrPenaltyNotFound = errors.New("penalty record not found")
)

// AccountLockedError carries how long the lockout has left. It matches
// ErrAccountLocked under errors.Is.
type AccountLockedError struct {
	MinutesLeft int
}

func (e *AccountLockedError) Error() string {
	return fmt.Sprintf("account temporarily locked, try again in %d minutes", e.MinutesLeft)
}

func (e *AccountLockedError) Is(target error) bool { return target == ErrAccountLocked }

// RetakeCooldownError carries when the quiz becomes available again. It
// matches ErrQuizCooldown under errors.Is.
type RetakeCooldownError struct {
	MinutesLeft int
	RetakeAt    time.Time
}

func (e *RetakeCooldownError) Error() string {
	return fmt.Sprintf("quiz retake available in %d minutes", e.MinutesLeft)
}

func (e *RetakeCooldownError) Is(target error) bool { return target == ErrQuizCooldown }

// minutesUntil rounds up and never reports less than one minute for a
// deadline that has not passed yet.
func minutesUntil(t time.Time) int {
	minutes := int(math.Ceil(time.Until(t).Minutes()))
	if minutes < 1 {
		minutes = 1
	}
	return minutes
}
