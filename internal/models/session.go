package models

import (
	"time"
)

// UserSession is the revocable record behind a signed login credential.
// The JWT proves identity on its own; this row exists for auditing,
// listing and explicit per-session revocation.
type UserSession struct {
	ID        string    `json:"id" gorm:"primaryKey;size:36"`
	UserID    string    `json:"user_id" gorm:"not null;index:idx_sessions_user_created;size:36"`
	Token     string    `json:"-" gorm:"uniqueIndex;not null;size:64"`
	ExpiresAt time.Time `json:"expires_at" gorm:"not null"`
	IPAddress *string   `json:"ip_address" gorm:"size:45"`
	UserAgent *string   `json:"user_agent" gorm:"type:text"`

	CreatedAt time.Time `json:"created_at" gorm:"index:idx_sessions_user_created,sort:desc"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (UserSession) TableName() string {
	return "user_sessions"
}

// IsExpired reports whether the record is inert and due for eviction.
func (s *UserSession) IsExpired(now time.Time) bool {
	return now.After(s.ExpiresAt)
}
