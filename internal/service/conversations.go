package service

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/events"
	"github.com/yourorg/connecthub/internal/models"
	"github.com/yourorg/connecthub/internal/store"
)

// ConversationService creates and maintains conversations and their
// membership. Every mutation refreshes updated_at through the store, so the
// recency ordering the conversation list relies on never goes stale.
type ConversationService struct {
	convs  store.ConversationStore
	msgs   store.MessageStore
	reqs   store.RequestStore
	events *events.Publisher
	log    *zap.SugaredLogger
}

func NewConversationService(convs store.ConversationStore, msgs store.MessageStore, reqs store.RequestStore, pub *events.Publisher, log *zap.SugaredLogger) *ConversationService {
	return &ConversationService{convs: convs, msgs: msgs, reqs: reqs, events: pub, log: log}
}

// CreateDirect returns the 1:1 conversation between the pair, creating it on
// first use. The two users must have an accepted connection request between
// them. Idempotent: a concurrent creator loses the insert and both callers
// get the same conversation.
func (s *ConversationService) CreateDirect(ctx context.Context, userA, userB string) (*models.Conversation, error) {
	if userA == "" || userB == "" || userA == userB {
		return nil, apperrors.ErrInvalidRequest
	}

	conv, err := s.convs.FindDirect(ctx, userA, userB)
	if err == nil {
		return conv, nil
	}
	if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, err
	}

	connected, err := s.reqs.HasAccepted(ctx, userA, userB)
	if err != nil {
		return nil, err
	}
	if !connected {
		return nil, apperrors.ErrNoConnection
	}

	conv = &models.Conversation{
		Participants: []string{userA, userB},
		IsGroup:      false,
		DirectKey:    models.PairKey(userA, userB),
	}
	if err := s.convs.InsertConversation(ctx, conv); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// lost the race; the winner's document is the conversation
			return s.convs.FindDirect(ctx, userA, userB)
		}
		return nil, err
	}

	if err := s.events.PublishConversationCreated(ctx, conv); err != nil {
		s.log.Errorw("publish conversation.created", "conversation", conv.ID, "err", err)
	}
	return conv, nil
}

// CreateGroup starts a group conversation with at least two distinct members.
func (s *ConversationService) CreateGroup(ctx context.Context, title string, participantIDs []string) (*models.Conversation, error) {
	if len(participantIDs) < 2 {
		return nil, apperrors.ErrInvalidRequest
	}
	seen := make(map[string]struct{}, len(participantIDs))
	for _, id := range participantIDs {
		if id == "" {
			return nil, apperrors.ErrInvalidRequest
		}
		if _, dup := seen[id]; dup {
			return nil, apperrors.ErrInvalidRequest
		}
		seen[id] = struct{}{}
	}

	conv := &models.Conversation{
		Title:        title,
		Participants: append([]string(nil), participantIDs...),
		IsGroup:      true,
	}
	if err := s.convs.InsertConversation(ctx, conv); err != nil {
		return nil, err
	}

	if err := s.events.PublishConversationCreated(ctx, conv); err != nil {
		s.log.Errorw("publish conversation.created", "conversation", conv.ID, "err", err)
	}
	return conv, nil
}

// AddParticipant grows a group's membership.
func (s *ConversationService) AddParticipant(ctx context.Context, conversationID, userID string) (*models.Conversation, error) {
	if userID == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	return s.convs.AddParticipant(ctx, conversationID, userID)
}

// Touch refreshes the conversation's updated_at. Mutation paths that live
// outside this service (message fan-in, read receipts) call it so the
// recency invariant cannot be bypassed.
func (s *ConversationService) Touch(ctx context.Context, conversationID string) error {
	return s.convs.Touch(ctx, conversationID)
}

// ListForUser returns the user's conversations, most recently active first.
func (s *ConversationService) ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error) {
	return s.convs.ListForUser(ctx, userID)
}

// AppendMessage persists a message from a participant and touches the
// conversation.
func (s *ConversationService) AppendMessage(ctx context.Context, conversationID, senderID, content, msgType string) (*models.Message, error) {
	if content == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	conv, err := s.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(senderID) {
		return nil, apperrors.ErrForbidden
	}

	msg := &models.Message{
		ConversationID: conversationID,
		SenderID:       senderID,
		Content:        content,
		Type:           msgType,
	}
	if err := s.msgs.InsertMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := s.convs.Touch(ctx, conversationID); err != nil {
		s.log.Errorw("touch conversation", "conversation", conversationID, "err", err)
	}

	if err := s.events.PublishMessageSent(ctx, msg); err != nil {
		s.log.Errorw("publish message.sent", "message", msg.ID, "err", err)
	}
	return msg, nil
}

// ListMessages returns a participant's view of the conversation history in
// chronological order.
func (s *ConversationService) ListMessages(ctx context.Context, conversationID, viewerID string, limit int64, before time.Time) ([]*models.Message, error) {
	conv, err := s.convs.GetConversation(ctx, conversationID)
	if err != nil {
		return nil, err
	}
	if !conv.HasParticipant(viewerID) {
		return nil, apperrors.ErrForbidden
	}
	return s.msgs.ListMessages(ctx, conversationID, limit, before)
}
