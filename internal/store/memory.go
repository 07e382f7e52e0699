package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/models"
)

// Memory is a map-backed implementation of the store interfaces with the same
// conflict semantics as the Mongo one. It backs the service tests and local
// runs without a database.
type Memory struct {
	// Now is the clock used for timestamps; tests swap it out.
	Now func() time.Time

	mu            sync.Mutex
	requests      map[string]*models.ConnectionRequest
	conversations map[string]*models.Conversation
	messages      map[string][]*models.Message
}

func NewMemory() *Memory {
	return &Memory{
		Now:           func() time.Time { return time.Now().UTC() },
		requests:      make(map[string]*models.ConnectionRequest),
		conversations: make(map[string]*models.Conversation),
		messages:      make(map[string][]*models.Message),
	}
}

func (m *Memory) InsertPending(_ context.Context, req *models.ConnectionRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(req.From, req.To)
	for _, r := range m.requests {
		if r.PairKey == key && r.Status == models.RequestStatusPending {
			return apperrors.ErrDuplicatePending
		}
	}

	now := m.Now()
	req.ID = uuid.NewString()
	req.Status = models.RequestStatusPending
	req.PairKey = key
	req.CreatedAt = now
	req.UpdatedAt = now
	cp := *req
	m.requests[req.ID] = &cp
	return nil
}

func (m *Memory) GetRequest(_ context.Context, id string) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	cp := *req
	return &cp, nil
}

func (m *Memory) SettleRequest(_ context.Context, id string, status models.RequestStatus) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if req.Status != models.RequestStatusPending {
		return nil, apperrors.ErrInvalidTransition
	}
	req.Status = status
	req.UpdatedAt = m.Now()
	cp := *req
	return &cp, nil
}

func (m *Memory) SetRequestMeta(_ context.Context, id string, meta map[string]string) (*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	req, ok := m.requests[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if req.Meta == nil {
		req.Meta = make(map[string]string)
	}
	for k, v := range meta {
		req.Meta[k] = v
	}
	req.UpdatedAt = m.Now()
	cp := *req
	cp.Meta = make(map[string]string, len(req.Meta))
	for k, v := range req.Meta {
		cp.Meta[k] = v
	}
	return &cp, nil
}

func (m *Memory) ListPendingFor(_ context.Context, userID string) ([]*models.ConnectionRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.ConnectionRequest
	for _, req := range m.requests {
		if req.To == userID && req.Status == models.RequestStatusPending {
			cp := *req
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *Memory) CountPendingFor(ctx context.Context, userID string) (int64, error) {
	pending, err := m.ListPendingFor(ctx, userID)
	if err != nil {
		return 0, err
	}
	return int64(len(pending)), nil
}

func (m *Memory) HasAccepted(_ context.Context, a, b string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(a, b)
	for _, req := range m.requests {
		if req.PairKey == key && req.Status == models.RequestStatusAccepted {
			return true, nil
		}
	}
	return false, nil
}

func (m *Memory) InsertConversation(_ context.Context, conv *models.Conversation) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if !conv.IsGroup {
		for _, c := range m.conversations {
			if !c.IsGroup && c.DirectKey == conv.DirectKey {
				return ErrConflict
			}
		}
	}

	now := m.Now()
	conv.ID = uuid.NewString()
	conv.CreatedAt = now
	conv.UpdatedAt = now
	cp := *conv
	cp.Participants = append([]string(nil), conv.Participants...)
	m.conversations[conv.ID] = &cp
	return nil
}

func (m *Memory) FindDirect(_ context.Context, a, b string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := models.PairKey(a, b)
	for _, c := range m.conversations {
		if !c.IsGroup && c.DirectKey == key {
			return copyConversation(c), nil
		}
	}
	return nil, apperrors.ErrNotFound
}

func (m *Memory) GetConversation(_ context.Context, id string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	return copyConversation(c), nil
}

func (m *Memory) ListForUser(_ context.Context, userID string) ([]*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Conversation
	for _, c := range m.conversations {
		if c.HasParticipant(userID) {
			out = append(out, copyConversation(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (m *Memory) AddParticipant(_ context.Context, id, userID string) (*models.Conversation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return nil, apperrors.ErrNotFound
	}
	if !c.IsGroup {
		return nil, apperrors.ErrInvalidTransition
	}
	if c.HasParticipant(userID) {
		return nil, apperrors.ErrAlreadyMember
	}
	c.Participants = append(c.Participants, userID)
	c.UpdatedAt = m.Now()
	return copyConversation(c), nil
}

func (m *Memory) Touch(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	c, ok := m.conversations[id]
	if !ok {
		return apperrors.ErrNotFound
	}
	c.UpdatedAt = m.Now()
	return nil
}

func (m *Memory) InsertMessage(_ context.Context, msg *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	msg.ID = uuid.NewString()
	msg.CreatedAt = m.Now()
	if msg.Type == "" {
		msg.Type = "text"
	}
	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	return nil
}

func (m *Memory) ListMessages(_ context.Context, conversationID string, limit int64, before time.Time) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []*models.Message
	for _, msg := range m.messages[conversationID] {
		if !before.IsZero() && !msg.CreatedAt.Before(before) {
			continue
		}
		cp := *msg
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && int64(len(out)) > limit {
		out = out[int64(len(out))-limit:]
	}
	return out, nil
}

func copyConversation(c *models.Conversation) *models.Conversation {
	cp := *c
	cp.Participants = append([]string(nil), c.Participants...)
	return &cp
}
