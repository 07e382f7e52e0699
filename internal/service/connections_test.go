package service_test

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/yourorg/connecthub/internal/apperrors"
	"github.com/yourorg/connecthub/internal/models"
	"github.com/yourorg/connecthub/internal/service"
	"github.com/yourorg/connecthub/internal/store"
)

// fakeClock hands out a controllable time to the memory store.
type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

func newConnectionFixture(t *testing.T) (*service.ConnectionService, *store.Memory, *fakeClock) {
	t.Helper()
	mem := store.NewMemory()
	clk := newFakeClock()
	mem.Now = clk.Now
	svc := service.NewConnectionService(mem, nil, nil, zap.NewNop().Sugar())
	return svc, mem, clk
}

func TestCreateRequest_SelfRequestFails(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)

	_, err := svc.Create(context.Background(), "alice", "alice", "hi")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestCreateRequest_EmptyUserFails(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)

	_, err := svc.Create(context.Background(), "alice", "", "hi")
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestCreateRequest_StartsPending(t *testing.T) {
	svc, _, clk := newConnectionFixture(t)

	req, err := svc.Create(context.Background(), "alice", "bob", "let's connect")
	require.NoError(t, err)

	assert.NotEmpty(t, req.ID)
	assert.Equal(t, models.RequestStatusPending, req.Status)
	assert.Equal(t, "alice", req.From)
	assert.Equal(t, "bob", req.To)
	assert.Equal(t, clk.Now(), req.CreatedAt)
	assert.Equal(t, clk.Now(), req.UpdatedAt)
	assert.NotNil(t, req.Meta)
}

// TestCreateRequest_DuplicatePending verifies the one-pending-per-pair rule
// in both directions.
func TestCreateRequest_DuplicatePending(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	_, err := svc.Create(ctx, "alice", "bob", "first")
	require.NoError(t, err)

	_, err = svc.Create(ctx, "alice", "bob", "again")
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePending)

	// reversed direction is the same unordered pair
	_, err = svc.Create(ctx, "bob", "alice", "reverse")
	assert.ErrorIs(t, err, apperrors.ErrDuplicatePending)

	// an unrelated pair is unaffected
	_, err = svc.Create(ctx, "alice", "carol", "other")
	assert.NoError(t, err)
}

func TestCreateRequest_AllowedAfterRejection(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionReject)
	require.NoError(t, err)

	_, err = svc.Create(ctx, "alice", "bob", "second try")
	assert.NoError(t, err)
}

func TestRespond_NotFound(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)

	_, err := svc.Respond(context.Background(), "missing", "bob", service.DecisionAccept)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
}

func TestRespond_OnlyRecipientMayRespond(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, req.ID, "alice", service.DecisionAccept)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.Respond(ctx, req.ID, "mallory", service.DecisionReject)
	assert.ErrorIs(t, err, apperrors.ErrForbidden)
}

func TestRespond_InvalidDecision(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)

	_, err = svc.Respond(ctx, req.ID, "bob", service.Decision("maybe"))
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

// TestRespond_AcceptScenario covers the t0/t1 lifecycle: created pending at
// t0, accepted at t1, then immutable.
func TestRespond_AcceptScenario(t *testing.T) {
	svc, mem, clk := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)
	t0 := req.CreatedAt

	clk.Advance(time.Minute)
	settled, err := svc.Respond(ctx, req.ID, "bob", service.DecisionAccept)
	require.NoError(t, err)

	assert.Equal(t, models.RequestStatusAccepted, settled.Status)
	assert.Equal(t, t0, settled.CreatedAt)
	assert.Equal(t, t0.Add(time.Minute), settled.UpdatedAt)

	// a second response must fail and leave the stored status untouched
	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionReject)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)

	stored, err := mem.GetRequest(ctx, req.ID)
	require.NoError(t, err)
	assert.Equal(t, models.RequestStatusAccepted, stored.Status)
	assert.Equal(t, t0.Add(time.Minute), stored.UpdatedAt)
}

func TestRespond_RejectedIsTerminal(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionReject)
	require.NoError(t, err)

	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionAccept)
	assert.ErrorIs(t, err, apperrors.ErrInvalidTransition)
}

// TestPendingFor_OrderedAndRestartable verifies FIFO order and that ranging
// the sequence again observes a fresh snapshot.
func TestPendingFor_OrderedAndRestartable(t *testing.T) {
	svc, _, clk := newConnectionFixture(t)
	ctx := context.Background()

	for _, from := range []string{"alice", "carol", "dave"} {
		_, err := svc.Create(ctx, from, "bob", "")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	var senders []string
	seq := svc.PendingFor(ctx, "bob")
	for req, err := range seq {
		require.NoError(t, err)
		senders = append(senders, req.From)
	}
	assert.Equal(t, []string{"alice", "carol", "dave"}, senders)

	// a fourth request lands between iterations
	_, err := svc.Create(ctx, "erin", "bob", "")
	require.NoError(t, err)

	senders = senders[:0]
	for req, err := range seq {
		require.NoError(t, err)
		senders = append(senders, req.From)
	}
	assert.Equal(t, []string{"alice", "carol", "dave", "erin"}, senders)
}

func TestPendingFor_StopsEarly(t *testing.T) {
	svc, _, clk := newConnectionFixture(t)
	ctx := context.Background()

	for _, from := range []string{"alice", "carol", "dave"} {
		_, err := svc.Create(ctx, from, "bob", "")
		require.NoError(t, err)
		clk.Advance(time.Second)
	}

	var got []string
	for req, err := range svc.PendingFor(ctx, "bob") {
		require.NoError(t, err)
		got = append(got, req.From)
		if len(got) == 2 {
			break
		}
	}
	assert.Equal(t, []string{"alice", "carol"}, got)
}

// TestUpdateMeta verifies meta stays writable after settlement and that the
// request status is untouched by it.
func TestUpdateMeta(t *testing.T) {
	svc, _, clk := newConnectionFixture(t)
	ctx := context.Background()

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)
	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionAccept)
	require.NoError(t, err)

	clk.Advance(time.Minute)
	updated, err := svc.UpdateMeta(ctx, req.ID, "alice", map[string]string{"source": "search"})
	require.NoError(t, err)
	assert.Equal(t, "search", updated.Meta["source"])
	assert.Equal(t, models.RequestStatusAccepted, updated.Status)
	assert.Equal(t, clk.Now(), updated.UpdatedAt)

	_, err = svc.UpdateMeta(ctx, req.ID, "mallory", map[string]string{"x": "y"})
	assert.ErrorIs(t, err, apperrors.ErrForbidden)

	_, err = svc.UpdateMeta(ctx, req.ID, "alice", nil)
	assert.ErrorIs(t, err, apperrors.ErrInvalidRequest)
}

func TestPendingCount(t *testing.T) {
	svc, _, _ := newConnectionFixture(t)
	ctx := context.Background()

	n, err := svc.PendingCount(ctx, "bob")
	require.NoError(t, err)
	assert.Zero(t, n)

	req, err := svc.Create(ctx, "alice", "bob", "")
	require.NoError(t, err)
	_, err = svc.Create(ctx, "carol", "bob", "")
	require.NoError(t, err)

	n, err = svc.PendingCount(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 2, n)

	_, err = svc.Respond(ctx, req.ID, "bob", service.DecisionAccept)
	require.NoError(t, err)

	n, err = svc.PendingCount(ctx, "bob")
	require.NoError(t, err)
	assert.EqualValues(t, 1, n)
}
