package commands

import (
	"context"
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/internal/chat/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

type mockUnitOfWork struct{ mock.Mock }

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return context.WithValue(ctx, txKey{}, true), args.Error(0)
}
func (m *mockUnitOfWork) Commit(ctx context.Context) error   { return m.Called(ctx).Error(0) }
func (m *mockUnitOfWork) Rollback(ctx context.Context) error { return m.Called(ctx).Error(0) }

type mockMessageRepo struct{ mock.Mock }

func (m *mockMessageRepo) Save(ctx context.Context, msg *domain.Message) error {
	return m.Called(ctx, msg).Error(0)
}

func (m *mockMessageRepo) LatestSentAt(ctx context.Context, planID uuid.UUID) (time.Time, error) {
	args := m.Called(ctx, planID)
	return args.Get(0).(time.Time), args.Error(1)
}

type mockOutbox struct {
	outbox.Repository
	saved []*outbox.Message
}

func (m *mockOutbox) SaveBatch(_ context.Context, msgs []*outbox.Message) error {
	m.saved = append(m.saved, msgs...)
	return nil
}

type stubAccess struct{ access sharedApplication.PlanAccess }

func (s stubAccess) PlanAccess(context.Context, uuid.UUID, uuid.UUID) (sharedApplication.PlanAccess, error) {
	return s.access, nil
}

func (s stubAccess) ActiveMembers(context.Context, uuid.UUID) ([]uuid.UUID, error) { return nil, nil }

var collaborator = sharedApplication.PlanAccess{Member: true, Active: true, InProgress: true}

func TestSendMessageHandler(t *testing.T) {
	ctx := context.Background()
	planID, sender := uuid.New(), uuid.New()
	latest := time.Now().Add(time.Minute).UTC()

	uow := new(mockUnitOfWork)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Commit", mock.Anything).Return(nil)
	repo := new(mockMessageRepo)
	repo.On("LatestSentAt", mock.Anything, planID).Return(latest, nil)
	repo.On("Save", mock.Anything, mock.AnythingOfType("*domain.Message")).Return(nil)
	ob := &mockOutbox{}
	metrics := observability.NewInMemoryMetrics()

	h := NewSendMessageHandler(repo, stubAccess{collaborator}, ob, uow, metrics)
	msg, err := h.Handle(ctx, SendMessageCommand{PlanID: planID, SenderID: sender, Content: " hello "})

	require.NoError(t, err)
	assert.Equal(t, "hello", msg.Content)
	assert.Equal(t, latest, msg.SentAt)
	require.Len(t, ob.saved, 1)
	assert.Equal(t, domain.RoutingKeyMessageSent, ob.saved[0].RoutingKey)
	assert.Equal(t, int64(1), metrics.GetCounter(observability.MetricChatMessages, observability.T("direction", "stored")))
	uow.AssertExpectations(t)
}

func TestSendMessageHandler_RejectsBeforeTransaction(t *testing.T) {
	ctx := context.Background()
	uow := new(mockUnitOfWork)
	h := NewSendMessageHandler(new(mockMessageRepo), stubAccess{sharedApplication.PlanAccess{Member: true}}, &mockOutbox{}, uow, nil)

	_, err := h.Handle(ctx, SendMessageCommand{PlanID: uuid.New(), SenderID: uuid.New(), Content: "hi"})

	assert.ErrorIs(t, err, sharedApplication.ErrNotActiveMember)
	uow.AssertNotCalled(t, "Begin", mock.Anything)
}

func TestSendMessageHandler_EmptyContentRollsBack(t *testing.T) {
	ctx := context.Background()
	planID := uuid.New()
	uow := new(mockUnitOfWork)
	uow.On("Begin", ctx).Return(nil)
	uow.On("Rollback", mock.Anything).Return(nil)
	repo := new(mockMessageRepo)
	repo.On("LatestSentAt", mock.Anything, planID).Return(time.Time{}, nil)

	h := NewSendMessageHandler(repo, stubAccess{collaborator}, &mockOutbox{}, uow, nil)
	_, err := h.Handle(ctx, SendMessageCommand{PlanID: planID, SenderID: uuid.New(), Content: "  "})

	assert.ErrorIs(t, err, domain.ErrEmptyContent)
	repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	uow.AssertExpectations(t)
}
