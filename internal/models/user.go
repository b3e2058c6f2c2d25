package models

import (
	"time"
)

type UserRole string

const (
	RoleVisitor UserRole = "visitor"
	RoleTeller  UserRole = "teller"
	RoleHealer  UserRole = "healer"
	RoleAdmin   UserRole = "admin"
)

type UserStatus string

const (
	StatusActive    UserStatus = "active"
	StatusSuspended UserStatus = "suspended"
	StatusBanned    UserStatus = "banned"
	StatusDeleted   UserStatus = "deleted"
)

type User struct {
	ID           string     `json:"id" gorm:"primaryKey;size:36"`
	Username     string     `json:"username" gorm:"uniqueIndex;not null;size:30"`
	PasswordHash string     `json:"-" gorm:"not null;size:100"`
	Email        *string    `json:"email" gorm:"index;size:255"`
	Role         UserRole   `json:"role" gorm:"not null;default:teller;size:20"`
	Status       UserStatus `json:"status" gorm:"not null;default:active;index;size:20"`

	// Login tracking
	FailedLoginAttempts int        `json:"-" gorm:"not null;default:0"`
	AccountLockedUntil  *time.Time `json:"-"`
	LastLogin           *time.Time `json:"last_login"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (User) TableName() string {
	return "users"
}

// IsLocked reports whether the account lockout is still in effect.
func (u *User) IsLocked(now time.Time) bool {
	return u.AccountLockedUntil != nil && u.AccountLockedUntil.After(now)
}
