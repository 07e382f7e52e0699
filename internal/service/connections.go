package service

import (
	"context"
	"iter"

	"go.uber.org/zap"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/cache"
	"github.com/yourorg/connecthub/internal/events"
	"github.com/yourorg/connecthub/internal/models"
	"github.com/yourorg/connecthub/internal/store"
)

type Decision string

const (
	DecisionAccept Decision = "accept"
	DecisionReject Decision = "reject"
)

// ConnectionService manages the connection-request lifecycle. It holds no
// state of its own; invariants that must hold under concurrent writers
// (single pending per pair, single terminal transition) are enforced by the
// store's conditional writes.
type ConnectionService struct {
	store  store.RequestStore
	counts *cache.PendingCounts
	events *events.Publisher
	log    *zap.SugaredLogger
}

func NewConnectionService(s store.RequestStore, counts *cache.PendingCounts, pub *events.Publisher, log *zap.SugaredLogger) *ConnectionService {
	return &ConnectionService{store: s, counts: counts, events: pub, log: log}
}

// Create opens a pending request from one user to another.
func (s *ConnectionService) Create(ctx context.Context, from, to, message string) (*models.ConnectionRequest, error) {
	if from == "" || to == "" {
		return nil, apperrors.ErrInvalidRequest
	}
	if from == to {
		return nil, apperrors.ErrInvalidRequest
	}

	req := &models.ConnectionRequest{
		From:    from,
		To:      to,
		Message: message,
		Meta:    map[string]string{},
	}
	if err := s.store.InsertPending(ctx, req); err != nil {
		return nil, err
	}

	if err := s.counts.Invalidate(ctx, to); err != nil {
		s.log.Warnw("invalidate pending count", "user", to, "err", err)
	}
	return req, nil
}

// Respond settles a pending request. Only the recipient may respond, and only
// once; a concurrent responder loses with ErrInvalidTransition.
func (s *ConnectionService) Respond(ctx context.Context, requestID, responderID string, decision Decision) (*models.ConnectionRequest, error) {
	var status models.RequestStatus
	switch decision {
	case DecisionAccept:
		status = models.RequestStatusAccepted
	case DecisionReject:
		status = models.RequestStatusRejected
	default:
		return nil, apperrors.ErrInvalidRequest
	}

	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if req.To != responderID {
		return nil, apperrors.ErrForbidden
	}
	if req.Status != models.RequestStatusPending {
		return nil, apperrors.ErrInvalidTransition
	}

	settled, err := s.store.SettleRequest(ctx, requestID, status)
	if err != nil {
		return nil, err
	}

	if err := s.counts.Invalidate(ctx, settled.To); err != nil {
		s.log.Warnw("invalidate pending count", "user", settled.To, "err", err)
	}
	if status == models.RequestStatusAccepted {
		if err := s.events.PublishRequestAccepted(ctx, settled); err != nil {
			s.log.Errorw("publish request.accepted", "request", settled.ID, "err", err)
		}
	}
	return settled, nil
}

// UpdateMeta merges auxiliary key/value data into a request. Either party
// may annotate, regardless of status; meta is never interpreted here.
func (s *ConnectionService) UpdateMeta(ctx context.Context, requestID, actorID string, meta map[string]string) (*models.ConnectionRequest, error) {
	if len(meta) == 0 {
		return nil, apperrors.ErrInvalidRequest
	}
	req, err := s.store.GetRequest(ctx, requestID)
	if err != nil {
		return nil, err
	}
	if actorID != req.From && actorID != req.To {
		return nil, apperrors.ErrForbidden
	}
	return s.store.SetRequestMeta(ctx, requestID, meta)
}

// PendingFor returns the user's inbox of pending requests, oldest first, as a
// restartable sequence: each range re-queries the store, so iterating twice
// observes two snapshots.
func (s *ConnectionService) PendingFor(ctx context.Context, userID string) iter.Seq2[*models.ConnectionRequest, error] {
	return func(yield func(*models.ConnectionRequest, error) bool) {
		pending, err := s.store.ListPendingFor(ctx, userID)
		if err != nil {
			yield(nil, err)
			return
		}
		for _, req := range pending {
			if !yield(req, nil) {
				return
			}
		}
	}
}

// PendingCount serves the inbox badge, via the cache when warm.
func (s *ConnectionService) PendingCount(ctx context.Context, userID string) (int64, error) {
	if n, ok, err := s.counts.Get(ctx, userID); err == nil && ok {
		return n, nil
	} else if err != nil {
		s.log.Warnw("read pending count cache", "user", userID, "err", err)
	}

	n, err := s.store.CountPendingFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	if err := s.counts.Set(ctx, userID, n); err != nil {
		s.log.Warnw("write pending count cache", "user", userID, "err", err)
	}
	return n, nil
}
