package services

import (
	"context"
	"errors"
	"testing"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/validator"
)

type contentFixture struct {
	repo      *fakeRepository
	publisher *events.MockEventPublisher
	penalty   PenaltyService
	replies   *InMemoryReplyStore
	messages  *InMemoryMessageStore
	content   ContentService
}

func newContentFixture() *contentFixture {
	repo := newFakeRepository()
	publisher := events.NewMockEventPublisher()
	logger := newTestLogger()
	trust := NewTrustService(repo, nil, logger, publisher)
	penalty := NewPenaltyService(repo, nil, logger, trust, publisher)
	moderation := NewModerationService(
		NewKeywordModerationGate([]string{"hate", "violence"}),
		NewKeywordCrisisDetector([]string{"suicide", "end my life"}),
		logger,
	)
	replies := NewInMemoryReplyStore()
	messages := NewInMemoryMessageStore()
	content := NewContentService(logger, validator.New(), moderation, penalty, publisher, replies, messages)
	return &contentFixture{
		repo:      repo,
		publisher: publisher,
		penalty:   penalty,
		replies:   replies,
		messages:  messages,
		content:   content,
	}
}

func healerPrincipal(id string) *models.Principal {
	return &models.Principal{UserID: id, Role: models.RoleHealer, Status: models.StatusActive}
}

func TestContentService_CreateReply_Accepted(t *testing.T) {
	f := newContentFixture()
	f.repo.seedUser(&models.User{ID: "h1", Username: "healer", Role: models.RoleHealer, Status: models.StatusActive})

	reply, err := f.content.CreateReply(context.Background(), healerPrincipal("h1"), &models.CreateReplyRequest{
		Content: "That sounds really hard, thank you for sharing it",
	})
	if err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}
	if reply.CrisisFlagged {
		t.Error("Clean reply should not be crisis flagged")
	}
	if got := f.replies.Replies(); len(got) != 1 {
		t.Errorf("Expected 1 stored reply, got %d", len(got))
	}
	if got := f.publisher.GetPublishedEvents(); len(got) != 0 {
		t.Errorf("Clean reply should publish nothing, got %d events", len(got))
	}
}

func TestContentService_CreateReply_HarmfulRejected(t *testing.T) {
	f := newContentFixture()
	f.repo.seedUser(&models.User{ID: "h1", Username: "healer", Role: models.RoleHealer, Status: models.StatusActive})

	ctx := context.Background()
	_, err := f.content.CreateReply(ctx, healerPrincipal("h1"), &models.CreateReplyRequest{
		Content: "I hate people like you",
	})
	if !errors.Is(err, ErrContentRejected) {
		t.Fatalf("Expected ErrContentRejected, got %v", err)
	}

	// The rejection recorded exactly one violation and stored nothing.
	state, err := f.penalty.Get(ctx, "h1")
	if err != nil {
		t.Fatalf("Get penalty failed: %v", err)
	}
	if state.HarmfulCount != 1 {
		t.Errorf("Expected 1 violation, got %d", state.HarmfulCount)
	}
	if got := f.replies.Replies(); len(got) != 0 {
		t.Errorf("Rejected reply must not be stored, got %d", len(got))
	}
}

func TestContentService_CreateReply_RoleGate(t *testing.T) {
	f := newContentFixture()
	f.repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	principal := &models.Principal{UserID: "u1", Role: models.RoleTeller, Status: models.StatusActive}
	_, err := f.content.CreateReply(context.Background(), principal, &models.CreateReplyRequest{Content: "hello there"})
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("Expected ErrForbidden for teller, got %v", err)
	}
}

func TestContentService_CreateReply_CrisisAnnotates(t *testing.T) {
	f := newContentFixture()
	f.repo.seedUser(&models.User{ID: "h1", Username: "healer", Role: models.RoleHealer, Status: models.StatusActive})

	reply, err := f.content.CreateReply(context.Background(), healerPrincipal("h1"), &models.CreateReplyRequest{
		Content: "When I felt like I wanted to end my life, talking helped",
	})
	if err != nil {
		t.Fatalf("CreateReply failed: %v", err)
	}

	// A crisis signal annotates and notifies but never blocks.
	if !reply.CrisisFlagged {
		t.Error("Expected crisis flag on reply")
	}
	if got := f.replies.Replies(); len(got) != 1 {
		t.Errorf("Crisis reply should still be stored, got %d", len(got))
	}

	published := f.publisher.GetPublishedEvents()
	if len(published) != 1 {
		t.Fatalf("Expected 1 event, got %d", len(published))
	}
	if published[0].Topic != events.TopicCrisisFlagged {
		t.Errorf("Expected topic %s, got %s", events.TopicCrisisFlagged, published[0].Topic)
	}
}

func TestContentService_PostMessage(t *testing.T) {
	f := newContentFixture()
	f.repo.seedUser(&models.User{ID: "u1", Username: "alice", Role: models.RoleTeller, Status: models.StatusActive})

	ctx := context.Background()
	principal := &models.Principal{UserID: "u1", Role: models.RoleTeller, Status: models.StatusActive}

	t.Run("AnyRoleCanPost", func(t *testing.T) {
		message, err := f.content.PostMessage(ctx, principal, &models.PostMessageRequest{
			Content: "Today was rough but I am getting through it",
		})
		if err != nil {
			t.Fatalf("PostMessage failed: %v", err)
		}
		if message.AuthorID != "u1" {
			t.Errorf("Expected author u1, got %s", message.AuthorID)
		}
		if got := f.messages.Messages(); len(got) != 1 {
			t.Errorf("Expected 1 stored message, got %d", len(got))
		}
	})

	t.Run("HarmfulContentNeverBlockedOrPenalized", func(t *testing.T) {
		// Messages get crisis screening only. Content the reply gate would
		// reject is stored untouched and records no violation.
		message, err := f.content.PostMessage(ctx, principal, &models.PostMessageRequest{
			Content: "nothing but violence from me",
		})
		if err != nil {
			t.Fatalf("PostMessage failed: %v", err)
		}
		if message.CrisisFlagged {
			t.Error("Harmful terms are not crisis signals")
		}
		if got := f.messages.Messages(); len(got) != 2 {
			t.Errorf("Expected 2 stored messages, got %d", len(got))
		}
		state, err := f.penalty.Get(ctx, "u1")
		if err != nil {
			t.Fatalf("Get penalty failed: %v", err)
		}
		if state.HarmfulCount != 0 {
			t.Errorf("Messages must not feed the penalty engine, got %d violations", state.HarmfulCount)
		}
	})

	t.Run("CrisisFlagged", func(t *testing.T) {
		f.publisher.ClearEvents()
		message, err := f.content.PostMessage(ctx, principal, &models.PostMessageRequest{
			Content: "sometimes I think about suicide",
		})
		if err != nil {
			t.Fatalf("PostMessage failed: %v", err)
		}
		if !message.CrisisFlagged {
			t.Error("Expected crisis flag on message")
		}
		published := f.publisher.GetPublishedEvents()
		if len(published) != 1 || published[0].Topic != events.TopicCrisisFlagged {
			t.Fatalf("Expected one %s event, got %+v", events.TopicCrisisFlagged, published)
		}
	})
}
