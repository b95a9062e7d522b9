package queries

import (
	"context"
	"testing"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockMembershipRepo struct {
	mock.Mock
	domain.MembershipRepository
}

func (m *mockMembershipRepo) Find(ctx context.Context, planID, userID uuid.UUID) (*domain.Membership, error) {
	args := m.Called(ctx, planID, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Membership), args.Error(1)
}

func (m *mockMembershipRepo) ListByPlan(ctx context.Context, planID uuid.UUID) ([]*domain.Membership, error) {
	args := m.Called(ctx, planID)
	return args.Get(0).([]*domain.Membership), args.Error(1)
}

func (m *mockMembershipRepo) HasCurrentPlan(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

func TestPlanAccessHandler(t *testing.T) {
	ctx := context.Background()
	plan := newPlan(t, domain.VisibilityPublic)
	applicant := uuid.New()
	applied, err := plan.Apply(applicant, 1)
	require.NoError(t, err)
	owner := domain.RehydrateMembership(plan.ID(), plan.OwnerID(), domain.StatusOwned, plan.CreatedAt(), plan.CreatedAt(), nil)
	stranger := uuid.New()

	repo := new(mockPlanRepo)
	repo.On("FindByID", ctx, plan.ID()).Return(plan, nil)
	members := new(mockMembershipRepo)
	members.On("Find", ctx, plan.ID(), plan.OwnerID()).Return(owner, nil)
	members.On("Find", ctx, plan.ID(), applicant).Return(applied, nil)
	members.On("Find", ctx, plan.ID(), stranger).Return(nil, domain.ErrMembershipNotFound)
	h := NewPlanAccessHandler(repo, members)

	access, err := h.PlanAccess(ctx, plan.ID(), plan.OwnerID())
	require.NoError(t, err)
	assert.Equal(t, sharedApplication.PlanAccess{Member: true, Active: true}, access)

	access, err = h.PlanAccess(ctx, plan.ID(), applicant)
	require.NoError(t, err)
	assert.Equal(t, sharedApplication.PlanAccess{Member: true}, access)

	access, err = h.PlanAccess(ctx, plan.ID(), stranger)
	require.NoError(t, err)
	assert.False(t, access.Member)

	err = sharedApplication.RequireCollaborator(ctx, h, plan.ID(), plan.OwnerID())
	assert.ErrorIs(t, err, sharedApplication.ErrPlanNotInProgress)
}

func TestPlanAccessHandler_UnknownPlan(t *testing.T) {
	ctx := context.Background()
	id := uuid.New()
	repo := new(mockPlanRepo)
	repo.On("FindByID", ctx, id).Return(nil, domain.ErrPlanNotFound)

	_, err := NewPlanAccessHandler(repo, new(mockMembershipRepo)).PlanAccess(ctx, id, uuid.New())

	assert.ErrorIs(t, err, domain.ErrPlanNotFound)
}

func TestPlanAccessHandler_ActiveMembers(t *testing.T) {
	ctx := context.Background()
	planID := uuid.New()
	owner, accepted, pending := uuid.New(), uuid.New(), uuid.New()
	now := newPlan(t, domain.VisibilityPublic).CreatedAt()
	members := new(mockMembershipRepo)
	members.On("ListByPlan", ctx, planID).Return([]*domain.Membership{
		domain.RehydrateMembership(planID, owner, domain.StatusOwned, now, now, nil),
		domain.RehydrateMembership(planID, accepted, domain.StatusAppliedAccepted, now, now, nil),
		domain.RehydrateMembership(planID, pending, domain.StatusInvited, now, now, nil),
	}, nil)

	ids, err := NewPlanAccessHandler(new(mockPlanRepo), members).ActiveMembers(ctx, planID)

	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{owner, accepted}, ids)
}

func TestCheckCurrentHandler(t *testing.T) {
	ctx := context.Background()
	user := uuid.New()
	members := new(mockMembershipRepo)
	members.On("HasCurrentPlan", ctx, user).Return(true, nil)

	busy, err := NewCheckCurrentHandler(members).Handle(ctx, CheckCurrentQuery{UserID: user})

	require.NoError(t, err)
	assert.True(t, busy)
}
