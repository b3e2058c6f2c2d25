package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/echotree-platform/trust-service/internal/events"
	"github.com/echotree-platform/trust-service/internal/models"
	"github.com/echotree-platform/trust-service/internal/validator"
)

// ReplyStore persists accepted replies. The owning content system plugs in
// its own implementation.
type ReplyStore interface {
	SaveReply(ctx context.Context, reply *ReplyResponse) error
}

// MessageStore persists accepted messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, message *MessageResponse) error
}

// InMemoryReplyStore keeps replies in memory. Suitable for tests and
// single-node deployments where the content system is not attached.
type InMemoryReplyStore struct {
	mu      sync.Mutex
	replies []*ReplyResponse
}

func NewInMemoryReplyStore() *InMemoryReplyStore {
	return &InMemoryReplyStore{}
}

func (s *InMemoryReplyStore) SaveReply(_ context.Context, reply *ReplyResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.replies = append(s.replies, reply)
	return nil
}

func (s *InMemoryReplyStore) Replies() []*ReplyResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*ReplyResponse, len(s.replies))
	copy(out, s.replies)
	return out
}

// InMemoryMessageStore keeps messages in memory.
type InMemoryMessageStore struct {
	mu       sync.Mutex
	messages []*MessageResponse
}

func NewInMemoryMessageStore() *InMemoryMessageStore {
	return &InMemoryMessageStore{}
}

func (s *InMemoryMessageStore) SaveMessage(_ context.Context, message *MessageResponse) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages = append(s.messages, message)
	return nil
}

func (s *InMemoryMessageStore) Messages() []*MessageResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*MessageResponse, len(s.messages))
	copy(out, s.messages)
	return out
}

type contentService struct {
	logger     *slog.Logger
	validator  *validator.Validator
	moderation ModerationService
	penalty    PenaltyService
	publisher  events.EventPublisher
	replies    ReplyStore
	messages   MessageStore
}

func NewContentService(logger *slog.Logger, validator *validator.Validator, moderation ModerationService, penalty PenaltyService, publisher events.EventPublisher, replies ReplyStore, messages MessageStore) ContentService {
	return &contentService{
		logger:     logger,
		validator:  validator,
		moderation: moderation,
		penalty:    penalty,
		publisher:  publisher,
		replies:    replies,
		messages:   messages,
	}
}

// CreateReply accepts a healer's reply after moderation. A flagged reply is
// never stored and the violation for it is recorded before the rejection is
// returned.
func (s *contentService) CreateReply(ctx context.Context, principal *models.Principal, req *models.CreateReplyRequest) (*ReplyResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	if principal.Role != models.RoleHealer && principal.Role != models.RoleAdmin {
		return nil, ErrForbidden
	}

	screen, err := s.moderation.Moderate(ctx, req.Content, "reply")
	if err != nil {
		return nil, fmt.Errorf("moderation failed: %w", err)
	}
	if screen.Flagged {
		if _, err := s.penalty.RecordViolation(ctx, principal.UserID, models.ViolationDetails{
			Reason:      screen.Reason,
			ContentType: "reply",
			Excerpt:     truncate(req.Content, 200),
		}); err != nil {
			return nil, fmt.Errorf("failed to record violation: %w", err)
		}
		return nil, ErrContentRejected
	}

	crisis, err := s.moderation.CheckCrisis(ctx, req.Content)
	if err != nil {
		return nil, fmt.Errorf("crisis check failed: %w", err)
	}

	reply := &ReplyResponse{
		ID:            uuid.New().String(),
		AuthorID:      principal.UserID,
		Content:       req.Content,
		CrisisFlagged: crisis.Detected,
		CreatedAt:     time.Now(),
	}
	if err := s.replies.SaveReply(ctx, reply); err != nil {
		return nil, fmt.Errorf("failed to save reply: %w", err)
	}

	if crisis.Detected {
		s.publishCrisis(ctx, principal.UserID, "reply", crisis)
	}

	return reply, nil
}

// PostMessage accepts a message from any authenticated role. Messages get
// crisis screening only: a signal annotates the message and notifies
// downstream, it never blocks storage and never feeds the penalty engine.
func (s *contentService) PostMessage(ctx context.Context, principal *models.Principal, req *models.PostMessageRequest) (*MessageResponse, error) {
	if err := s.validator.Validate(req); err != nil {
		return nil, fmt.Errorf("validation failed: %w", err)
	}

	crisis, err := s.moderation.CheckCrisis(ctx, req.Content)
	if err != nil {
		return nil, fmt.Errorf("crisis check failed: %w", err)
	}

	message := &MessageResponse{
		ID:            uuid.New().String(),
		AuthorID:      principal.UserID,
		Content:       req.Content,
		CrisisFlagged: crisis.Detected,
		CreatedAt:     time.Now(),
	}
	if err := s.messages.SaveMessage(ctx, message); err != nil {
		return nil, fmt.Errorf("failed to save message: %w", err)
	}

	if crisis.Detected {
		s.publishCrisis(ctx, principal.UserID, "message", crisis)
	}

	return message, nil
}

func (s *contentService) publishCrisis(ctx context.Context, userID, contentType string, crisis *CrisisResult) {
	event := events.NewEvent(events.TopicCrisisFlagged, map[string]interface{}{
		"user_id":      userID,
		"content_type": contentType,
		"confidence":   crisis.Confidence,
		"matched_term": crisis.MatchedTerm,
	})
	if err := s.publisher.Publish(ctx, events.TopicCrisisFlagged, event); err != nil {
		s.logger.Error("Failed to publish crisis event", "user_id", userID, "error", err)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max]
}
