package models

import (
	"time"

	"gorm.io/datatypes"
)

// HealerPenalty accumulates moderation violations for one user.
// AlertSent and HealerStatusRemoved are latches: they flip false->true
// exactly once per threshold crossing and stay true until Reset.
type HealerPenalty struct {
	ID                  string         `json:"id" gorm:"primaryKey;size:36"`
	UserID              string         `json:"user_id" gorm:"uniqueIndex;not null;size:36"`
	HarmfulCount        int            `json:"harmful_count" gorm:"not null;default:0"`
	AlertSent           bool           `json:"alert_sent" gorm:"not null;default:false"`
	HealerStatusRemoved bool           `json:"healer_status_removed" gorm:"not null;default:false"`
	LastViolationAt     *time.Time     `json:"last_violation_at"`
	LastViolation       datatypes.JSON `json:"last_violation" gorm:"type:jsonb"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	User User `json:"-" gorm:"foreignKey:UserID"`
}

func (HealerPenalty) TableName() string {
	return "healer_penalties"
}

// Violation thresholds. The alert fires once at AlertThreshold, the
// demotion event once at RemovalThreshold.
const (
	PenaltyAlertThreshold   = 5
	PenaltyRemovalThreshold = 10
)

// ViolationDetails is the payload persisted with each recorded violation.
type ViolationDetails struct {
	Reason      string `json:"reason"`
	ContentType string `json:"content_type,omitempty"`
	Excerpt     string `json:"excerpt,omitempty"`
}
