package store

import (
	"context"
	"errors"
	"time"

	"github.com/yourorg/connecthub/internal/models"
)

// ErrConflict signals a unique-index violation that is not a duplicate pending
// request (currently only the direct-conversation key). Callers resolve it by
// re-reading the winning document.
var ErrConflict = errors.New("write conflict")

// RequestStore persists connection requests. Implementations must enforce the
// single-pending-per-pair rule on insert and the single terminal transition on
// settle, so concurrent writers lose with a domain error instead of corrupting
// state.
type RequestStore interface {
	// InsertPending assigns id and timestamps and persists the request.
	// Fails with apperrors.ErrDuplicatePending when a pending request
	// already exists between the pair, in either direction.
	InsertPending(ctx context.Context, req *models.ConnectionRequest) error

	// GetRequest fails with apperrors.ErrNotFound when missing.
	GetRequest(ctx context.Context, id string) (*models.ConnectionRequest, error)

	// SettleRequest moves a pending request to a terminal status and
	// refreshes updated_at, both in one conditional write. Fails with
	// apperrors.ErrNotFound when the request does not exist and with
	// apperrors.ErrInvalidTransition when it is no longer pending.
	SettleRequest(ctx context.Context, id string, status models.RequestStatus) (*models.ConnectionRequest, error)

	// SetRequestMeta merges entries into the request's meta map and
	// refreshes updated_at. Meta is the only field a settled request may
	// still change.
	SetRequestMeta(ctx context.Context, id string, meta map[string]string) (*models.ConnectionRequest, error)

	// ListPendingFor returns pending requests addressed to userID, oldest
	// first.
	ListPendingFor(ctx context.Context, userID string) ([]*models.ConnectionRequest, error)

	CountPendingFor(ctx context.Context, userID string) (int64, error)

	// HasAccepted reports whether an accepted request exists between the
	// pair, in either direction.
	HasAccepted(ctx context.Context, a, b string) (bool, error)
}

// ConversationStore persists conversations. Every mutating method sets
// updated_at in the same write; there is no path that skips the refresh.
type ConversationStore interface {
	// InsertConversation assigns id and timestamps. Fails with ErrConflict
	// when a direct conversation with the same pair already exists.
	InsertConversation(ctx context.Context, conv *models.Conversation) error

	FindDirect(ctx context.Context, a, b string) (*models.Conversation, error)

	GetConversation(ctx context.Context, id string) (*models.Conversation, error)

	// ListForUser returns the user's conversations, most recently updated
	// first.
	ListForUser(ctx context.Context, userID string) ([]*models.Conversation, error)

	// AddParticipant appends userID and refreshes updated_at in one
	// conditional write. Fails with apperrors.ErrNotFound,
	// apperrors.ErrInvalidTransition (not a group) or
	// apperrors.ErrAlreadyMember.
	AddParticipant(ctx context.Context, id, userID string) (*models.Conversation, error)

	// Touch refreshes updated_at. Fails with apperrors.ErrNotFound.
	Touch(ctx context.Context, id string) error
}

type MessageStore interface {
	InsertMessage(ctx context.Context, msg *models.Message) error

	// ListMessages returns messages in chronological order. A zero before
	// time means no upper bound.
	ListMessages(ctx context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error)
}
