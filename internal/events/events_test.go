package events

import (
	"context"
	"testing"
)

func TestNewEvent_Envelope(t *testing.T) {
	event := NewEvent(TopicRolePromoted, map[string]interface{}{"user_id": "u1"})

	if event.ID == "" {
		t.Error("Event ID should not be empty")
	}
	if event.Type != TopicRolePromoted {
		t.Errorf("Expected type %s, got %s", TopicRolePromoted, event.Type)
	}
	if event.Source != "trust-service" {
		t.Errorf("Expected source 'trust-service', got %q", event.Source)
	}
	if event.Version != "1.0" {
		t.Errorf("Expected version '1.0', got %q", event.Version)
	}
	if event.Timestamp.IsZero() {
		t.Error("Event timestamp should not be zero")
	}
	if event.Data["user_id"] != "u1" {
		t.Errorf("Unexpected data payload: %+v", event.Data)
	}
}

func TestNewEvent_UniqueIDs(t *testing.T) {
	a := NewEvent(TopicPenaltyAlert, nil)
	b := NewEvent(TopicPenaltyAlert, nil)
	if a.ID == b.ID {
		t.Error("Events must get distinct ids")
	}
}

func TestMockEventPublisher(t *testing.T) {
	publisher := NewMockEventPublisher()
	ctx := context.Background()

	event := NewEvent(TopicCrisisFlagged, map[string]interface{}{"user_id": "u1"})
	if err := publisher.Publish(ctx, TopicCrisisFlagged, event); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	published := publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(published))
	}
	if published[0].Topic != TopicCrisisFlagged {
		t.Errorf("Expected topic %s, got %s", TopicCrisisFlagged, published[0].Topic)
	}
	if published[0].Event.ID != event.ID {
		t.Error("Recorded event does not match published event")
	}

	publisher.ClearEvents()
	if got := publisher.GetPublishedEvents(); len(got) != 0 {
		t.Errorf("Expected no events after clear, got %d", len(got))
	}
}
