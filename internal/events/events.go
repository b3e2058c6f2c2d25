package events

import (
	"context"
	"time"
)

// Event topics published by the trust service.
const (
	TopicRolePromoted  = "trust.role.promoted"
	TopicRoleDemoted   = "trust.role.demoted"
	TopicPenaltyAlert  = "trust.penalty.alert"
	TopicCrisisFlagged = "trust.crisis.flagged"
)

// Event is the envelope for all integration events.
type Event struct {
	ID        string                 `json:"id"`
	Type      string                 `json:"type"`
	Source    string                 `json:"source"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Data      map[string]interface{} `json:"data"`
}

// EventPublisher publishes integration events to the message broker.
type EventPublisher interface {
	Publish(ctx context.Context, topic string, event Event) error
	Close() error
}

// RolePromotedData is the payload for trust.role.promoted.
type RolePromotedData struct {
	UserID   string `json:"user_id"`
	FromRole string `json:"from_role"`
	ToRole   string `json:"to_role"`
	Reason   string `json:"reason"`
}

// RoleDemotedData is the payload for trust.role.demoted.
type RoleDemotedData struct {
	UserID   string `json:"user_id"`
	FromRole string `json:"from_role"`
	ToRole   string `json:"to_role"`
	Reason   string `json:"reason"`
}

// PenaltyAlertData is the payload for trust.penalty.alert.
type PenaltyAlertData struct {
	UserID       string `json:"user_id"`
	HarmfulCount int    `json:"harmful_count"`
	Reason       string `json:"reason"`
}

// CrisisFlaggedData is the payload for trust.crisis.flagged.
type CrisisFlaggedData struct {
	UserID      string  `json:"user_id"`
	ContentType string  `json:"content_type"`
	Confidence  float64 `json:"confidence"`
	MatchedTerm string  `json:"matched_term"`
}
