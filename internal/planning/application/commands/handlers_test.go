package commands

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type txKey struct{}

type mockUnitOfWork struct {
	mock.Mock
}

func (m *mockUnitOfWork) Begin(ctx context.Context) (context.Context, error) {
	args := m.Called(ctx)
	return args.Get(0).(context.Context), args.Error(1)
}

func (m *mockUnitOfWork) Commit(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func (m *mockUnitOfWork) Rollback(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type mockPlanRepo struct {
	mock.Mock
}

func (m *mockPlanRepo) Save(ctx context.Context, plan *domain.Plan) error {
	return m.Called(ctx, plan).Error(0)
}

func (m *mockPlanRepo) FindByID(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *mockPlanRepo) LockForUpdate(ctx context.Context, id uuid.UUID) (*domain.Plan, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Plan), args.Error(1)
}

func (m *mockPlanRepo) DueToStart(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *mockPlanRepo) DueToComplete(ctx context.Context, now time.Time) ([]uuid.UUID, error) {
	args := m.Called(ctx, now)
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

type mockMembershipRepo struct {
	mock.Mock
}

func (m *mockMembershipRepo) Save(ctx context.Context, ms *domain.Membership) error {
	return m.Called(ctx, ms).Error(0)
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
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Membership), args.Error(1)
}

func (m *mockMembershipRepo) CountActive(ctx context.Context, planID uuid.UUID) (int, error) {
	args := m.Called(ctx, planID)
	return args.Int(0), args.Error(1)
}

func (m *mockMembershipRepo) LockUser(ctx context.Context, userID uuid.UUID) error {
	return m.Called(ctx, userID).Error(0)
}

func (m *mockMembershipRepo) HasCurrentPlan(ctx context.Context, userID uuid.UUID) (bool, error) {
	args := m.Called(ctx, userID)
	return args.Bool(0), args.Error(1)
}

type mockOutbox struct {
	mock.Mock
	outbox.Repository
	saved []*outbox.Message
}

func (m *mockOutbox) SaveBatch(ctx context.Context, msgs []*outbox.Message) error {
	m.saved = append(m.saved, msgs...)
	return m.Called(ctx, msgs).Error(0)
}

func (m *mockOutbox) routingKeys() []string {
	var keys []string
	for _, msg := range m.saved {
		keys = append(keys, msg.RoutingKey)
	}
	return keys
}

type mockDirectory struct {
	mock.Mock
}

func (m *mockDirectory) FindIDByEmail(ctx context.Context, email string) (uuid.UUID, error) {
	args := m.Called(ctx, email)
	return args.Get(0).(uuid.UUID), args.Error(1)
}

type fixture struct {
	ctx         context.Context
	txCtx       context.Context
	uow         *mockUnitOfWork
	plans       *mockPlanRepo
	memberships *mockMembershipRepo
	outbox      *mockOutbox
	metrics     *observability.InMemoryMetrics
}

func newFixture() *fixture {
	ctx := context.Background()
	f := &fixture{
		ctx:         ctx,
		txCtx:       context.WithValue(ctx, txKey{}, "tx"),
		uow:         new(mockUnitOfWork),
		plans:       new(mockPlanRepo),
		memberships: new(mockMembershipRepo),
		outbox:      new(mockOutbox),
		metrics:     observability.NewInMemoryMetrics(),
	}
	f.uow.On("Begin", ctx).Return(f.txCtx, nil)
	f.uow.On("Commit", f.txCtx).Return(nil).Maybe()
	f.uow.On("Rollback", f.txCtx).Return(nil).Maybe()
	return f
}

func (f *fixture) deps() Deps {
	return Deps{Plans: f.plans, Memberships: f.memberships, Outbox: f.outbox, UoW: f.uow, Metrics: f.metrics}
}

// expectWrites accepts any plan, membership and outbox save.
func (f *fixture) expectWrites() {
	f.plans.On("Save", f.txCtx, mock.Anything).Return(nil)
	f.memberships.On("Save", f.txCtx, mock.Anything).Return(nil)
	f.outbox.On("SaveBatch", f.txCtx, mock.Anything).Return(nil)
}

func testSpec(maxMembers int) domain.PlanSpec {
	start := time.Now().Add(48 * time.Hour)
	return domain.PlanSpec{
		Title:      "Dolomites hut to hut",
		Visibility: domain.VisibilityPublic,
		StartDate:  start,
		EndDate:    start.Add(96 * time.Hour),
		MaxMembers: maxMembers,
	}
}

func existingPlan(t *testing.T, spec domain.PlanSpec) (*domain.Plan, *domain.Membership) {
	t.Helper()
	plan, owner, err := domain.NewPlan(uuid.New(), spec)
	require.NoError(t, err)
	plan.ClearDomainEvents()
	return plan, owner
}

func membershipWith(planID, userID uuid.UUID, status domain.MembershipStatus) *domain.Membership {
	now := time.Now().UTC()
	return domain.RehydrateMembership(planID, userID, status, now, now, nil)
}

func TestCreatePlanHandler(t *testing.T) {
	t.Run("creates the plan with an owned membership", func(t *testing.T) {
		f := newFixture()
		ownerID := uuid.New()
		f.memberships.On("LockUser", f.txCtx, ownerID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, ownerID).Return(false, nil)
		f.expectWrites()

		result, err := NewCreatePlanHandler(f.deps()).Handle(f.ctx, CreatePlanCommand{OwnerID: ownerID, Spec: testSpec(4)})

		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, result.PlanID)
		f.memberships.AssertCalled(t, "Save", f.txCtx, mock.MatchedBy(func(m *domain.Membership) bool {
			return m.UserID() == ownerID && m.Status() == domain.StatusOwned && m.PlanID() == result.PlanID
		}))
		assert.Equal(t, []string{domain.RoutingKeyPlanCreated}, f.outbox.routingKeys())
		assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricPlansCreated))
		f.uow.AssertCalled(t, "Commit", f.txCtx)
	})

	t.Run("rejects an owner who already has a current plan", func(t *testing.T) {
		f := newFixture()
		ownerID := uuid.New()
		f.memberships.On("LockUser", f.txCtx, ownerID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, ownerID).Return(true, nil)

		_, err := NewCreatePlanHandler(f.deps()).Handle(f.ctx, CreatePlanCommand{OwnerID: ownerID, Spec: testSpec(4)})

		assert.ErrorIs(t, err, domain.ErrHasCurrentPlan)
		f.plans.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
		f.uow.AssertCalled(t, "Rollback", f.txCtx)
	})

	t.Run("rejects capacity below two", func(t *testing.T) {
		f := newFixture()
		ownerID := uuid.New()
		f.memberships.On("LockUser", f.txCtx, ownerID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, ownerID).Return(false, nil)

		_, err := NewCreatePlanHandler(f.deps()).Handle(f.ctx, CreatePlanCommand{OwnerID: ownerID, Spec: testSpec(1)})

		assert.ErrorIs(t, err, domain.ErrInvalidCapacity)
		f.plans.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})

	t.Run("rolls back when the outbox write fails", func(t *testing.T) {
		f := newFixture()
		ownerID := uuid.New()
		f.memberships.On("LockUser", f.txCtx, ownerID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, ownerID).Return(false, nil)
		f.plans.On("Save", f.txCtx, mock.Anything).Return(nil)
		f.memberships.On("Save", f.txCtx, mock.Anything).Return(nil)
		f.outbox.On("SaveBatch", f.txCtx, mock.Anything).Return(errors.New("disk full"))

		_, err := NewCreatePlanHandler(f.deps()).Handle(f.ctx, CreatePlanCommand{OwnerID: ownerID, Spec: testSpec(4)})

		require.Error(t, err)
		f.uow.AssertCalled(t, "Rollback", f.txCtx)
		f.uow.AssertNotCalled(t, "Commit", mock.Anything)
	})
}

func TestApplyHandler(t *testing.T) {
	t.Run("creates an applied membership", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, userID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, userID).Return(false, nil)
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(1, nil)
		f.expectWrites()

		result, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusApplied, result.Status)
		assert.Equal(t, []string{domain.RoutingKeyMemberApplied}, f.outbox.routingKeys())
		require.Len(t, f.outbox.saved, 1)
		assert.Equal(t, plan.ID(), f.outbox.saved[0].AggregateID)
		assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricMembershipsChanged, observability.T("to", "APPLIED")))
		assert.Empty(t, plan.DomainEvents())
	})

	t.Run("owner applying to own plan is already a member", func(t *testing.T) {
		f := newFixture()
		plan, owner := existingPlan(t, testSpec(3))
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), plan.OwnerID()).Return(owner, nil)

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: plan.OwnerID()})

		assert.ErrorIs(t, err, domain.ErrAlreadyMember)
	})

	t.Run("a refused user cannot apply again", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).
			Return(membershipWith(plan.ID(), userID, domain.StatusAppliedRefused), nil)

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	})

	t.Run("single current plan", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, userID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, userID).Return(true, nil)

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		assert.ErrorIs(t, err, domain.ErrHasCurrentPlan)
		f.memberships.AssertNotCalled(t, "CountActive", mock.Anything, mock.Anything)
	})

	t.Run("locks the user before the current plan check", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		var order []string
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil).
			Run(func(mock.Arguments) { order = append(order, "plan") })
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, userID).Return(nil).
			Run(func(mock.Arguments) { order = append(order, "user") })
		f.memberships.On("HasCurrentPlan", f.txCtx, userID).Return(false, nil).
			Run(func(mock.Arguments) { order = append(order, "count") })
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(1, nil)
		f.expectWrites()

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		require.NoError(t, err)
		assert.Equal(t, []string{"plan", "user", "count"}, order)
	})

	t.Run("user lock failure rolls back", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, userID).Return(errors.New("lock timeout"))

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		assert.EqualError(t, err, "lock timeout")
		f.memberships.AssertNotCalled(t, "HasCurrentPlan", mock.Anything, mock.Anything)
		f.uow.AssertCalled(t, "Rollback", f.txCtx)
	})

	t.Run("full plan", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(2))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, userID).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, userID).Return(false, nil)
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(2, nil)

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: plan.ID(), UserID: userID})

		assert.ErrorIs(t, err, domain.ErrPlanFull)
		f.outbox.AssertNotCalled(t, "SaveBatch", mock.Anything, mock.Anything)
	})

	t.Run("unknown plan", func(t *testing.T) {
		f := newFixture()
		planID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, planID).Return(nil, domain.ErrPlanNotFound)

		_, err := NewApplyHandler(f.deps()).Handle(f.ctx, ApplyCommand{PlanID: planID, UserID: uuid.New()})

		assert.ErrorIs(t, err, domain.ErrPlanNotFound)
	})
}

func TestCancelApplicationHandler(t *testing.T) {
	f := newFixture()
	plan, _ := existingPlan(t, testSpec(3))
	userID := uuid.New()
	m := membershipWith(plan.ID(), userID, domain.StatusApplied)
	f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
	f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(m, nil)
	f.expectWrites()
	handler := NewCancelApplicationHandler(f.deps())
	cmd := CancelApplicationCommand{PlanID: plan.ID(), UserID: userID}

	result, err := handler.Handle(f.ctx, cmd)
	require.NoError(t, err)
	assert.Equal(t, domain.StatusAppliedCancelled, result.Status)

	_, err = handler.Handle(f.ctx, cmd)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
	assert.Equal(t, domain.StatusAppliedCancelled, m.Status())
	f.outbox.AssertNumberOfCalls(t, "SaveBatch", 1)
}

func TestDecideApplicationHandler(t *testing.T) {
	t.Run("owner accepts", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(2))
		applicant := uuid.New()
		m := membershipWith(plan.ID(), applicant, domain.StatusApplied)
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), applicant).Return(m, nil)
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(1, nil)
		f.expectWrites()

		result, err := NewDecideApplicationHandler(f.deps()).Handle(f.ctx, DecideApplicationCommand{
			PlanID: plan.ID(), OwnerID: plan.OwnerID(), ApplicantID: applicant, Decision: domain.DecisionAccept,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusAppliedAccepted, result.Status)
		assert.Equal(t, []string{domain.RoutingKeyMemberAccepted}, f.outbox.routingKeys())
	})

	t.Run("last slot already taken", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(2))
		applicant := uuid.New()
		m := membershipWith(plan.ID(), applicant, domain.StatusApplied)
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), applicant).Return(m, nil)
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(2, nil)

		_, err := NewDecideApplicationHandler(f.deps()).Handle(f.ctx, DecideApplicationCommand{
			PlanID: plan.ID(), OwnerID: plan.OwnerID(), ApplicantID: applicant, Decision: domain.DecisionAccept,
		})

		assert.ErrorIs(t, err, domain.ErrPlanFull)
		assert.Equal(t, domain.StatusApplied, m.Status())
	})

	t.Run("only the owner decides", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(2))
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)

		_, err := NewDecideApplicationHandler(f.deps()).Handle(f.ctx, DecideApplicationCommand{
			PlanID: plan.ID(), OwnerID: uuid.New(), ApplicantID: uuid.New(), Decision: domain.DecisionRefuse,
		})

		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})
}

func TestInviteHandler(t *testing.T) {
	t.Run("invites a user by email", func(t *testing.T) {
		f := newFixture()
		dir := new(mockDirectory)
		plan, _ := existingPlan(t, testSpec(3))
		invitee := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		dir.On("FindIDByEmail", f.txCtx, "c@example.com").Return(invitee, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), invitee).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, invitee).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, invitee).Return(false, nil)
		f.expectWrites()

		result, err := NewInviteHandler(f.deps(), dir).Handle(f.ctx, InviteCommand{
			PlanID: plan.ID(), OwnerID: plan.OwnerID(), Email: " c@example.com ",
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusInvited, result.Status)
		assert.Equal(t, invitee, result.UserID)
		assert.Equal(t, []string{domain.RoutingKeyMemberInvited}, f.outbox.routingKeys())
	})

	t.Run("invitee owning another new plan", func(t *testing.T) {
		f := newFixture()
		dir := new(mockDirectory)
		plan, _ := existingPlan(t, testSpec(3))
		invitee := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		dir.On("FindIDByEmail", f.txCtx, "c@example.com").Return(invitee, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), invitee).Return(nil, domain.ErrMembershipNotFound)
		f.memberships.On("LockUser", f.txCtx, invitee).Return(nil)
		f.memberships.On("HasCurrentPlan", f.txCtx, invitee).Return(true, nil)

		_, err := NewInviteHandler(f.deps(), dir).Handle(f.ctx, InviteCommand{
			PlanID: plan.ID(), OwnerID: plan.OwnerID(), Email: "c@example.com",
		})

		assert.ErrorIs(t, err, domain.ErrHasCurrentPlan)
	})

	t.Run("unknown email", func(t *testing.T) {
		f := newFixture()
		dir := new(mockDirectory)
		plan, _ := existingPlan(t, testSpec(3))
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		dir.On("FindIDByEmail", f.txCtx, "nobody@example.com").Return(uuid.Nil, domain.ErrUserNotFound)

		_, err := NewInviteHandler(f.deps(), dir).Handle(f.ctx, InviteCommand{
			PlanID: plan.ID(), OwnerID: plan.OwnerID(), Email: "nobody@example.com",
		})

		assert.ErrorIs(t, err, domain.ErrUserNotFound)
	})

	t.Run("only the owner invites", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)

		_, err := NewInviteHandler(f.deps(), new(mockDirectory)).Handle(f.ctx, InviteCommand{
			PlanID: plan.ID(), OwnerID: uuid.New(), Email: "c@example.com",
		})

		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})
}

func TestDecideInvitationHandler(t *testing.T) {
	t.Run("invitee accepts", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		invitee := uuid.New()
		m := membershipWith(plan.ID(), invitee, domain.StatusInvited)
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), invitee).Return(m, nil)
		f.memberships.On("CountActive", f.txCtx, plan.ID()).Return(1, nil)
		f.expectWrites()

		result, err := NewDecideInvitationHandler(f.deps()).Handle(f.ctx, DecideInvitationCommand{
			PlanID: plan.ID(), InviteeID: invitee, Decision: domain.DecisionAccept,
		})

		require.NoError(t, err)
		assert.Equal(t, domain.StatusInvitedAccepted, result.Status)
	})

	t.Run("someone without an invitation", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).Return(nil, domain.ErrMembershipNotFound)

		_, err := NewDecideInvitationHandler(f.deps()).Handle(f.ctx, DecideInvitationCommand{
			PlanID: plan.ID(), InviteeID: userID, Decision: domain.DecisionAccept,
		})

		assert.ErrorIs(t, err, domain.ErrNotInvitee)
	})

	t.Run("an applicant cannot accept as invitee", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(3))
		userID := uuid.New()
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("Find", f.txCtx, plan.ID(), userID).
			Return(membershipWith(plan.ID(), userID, domain.StatusApplied), nil)

		_, err := NewDecideInvitationHandler(f.deps()).Handle(f.ctx, DecideInvitationCommand{
			PlanID: plan.ID(), InviteeID: userID, Decision: domain.DecisionAccept,
		})

		assert.ErrorIs(t, err, domain.ErrNotInvitee)
	})
}

func TestClosePlanHandler(t *testing.T) {
	f := newFixture()
	plan, owner := existingPlan(t, testSpec(3))
	member := membershipWith(plan.ID(), uuid.New(), domain.StatusAppliedAccepted)
	f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
	f.memberships.On("ListByPlan", f.txCtx, plan.ID()).Return([]*domain.Membership{owner, member}, nil)
	f.expectWrites()
	handler := NewClosePlanHandler(f.deps())

	err := handler.Handle(f.ctx, ClosePlanCommand{PlanID: plan.ID(), OwnerID: plan.OwnerID(), Reason: ""})
	assert.ErrorIs(t, err, domain.ErrReasonRequired)

	err = handler.Handle(f.ctx, ClosePlanCommand{PlanID: plan.ID(), OwnerID: plan.OwnerID(), Reason: "trip cancelled"})
	require.NoError(t, err)
	assert.Equal(t, domain.PlanCancelled, plan.Status())
	assert.Equal(t, domain.StatusAppliedAccepted, member.Status())
	f.memberships.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	assert.Equal(t, []string{domain.RoutingKeyPlanClosed}, f.outbox.routingKeys())
}

func TestStartPlanHandler(t *testing.T) {
	t.Run("scheduler start refuses pending memberships", func(t *testing.T) {
		f := newFixture()
		plan, owner := existingPlan(t, testSpec(4))
		applied := membershipWith(plan.ID(), uuid.New(), domain.StatusApplied)
		accepted := membershipWith(plan.ID(), uuid.New(), domain.StatusAppliedAccepted)
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
		f.memberships.On("ListByPlan", f.txCtx, plan.ID()).Return([]*domain.Membership{owner, applied, accepted}, nil)
		f.expectWrites()

		err := NewStartPlanHandler(f.deps()).Handle(f.ctx, StartPlanCommand{PlanID: plan.ID()})

		require.NoError(t, err)
		assert.Equal(t, domain.PlanInProgress, plan.Status())
		assert.Equal(t, domain.StatusAppliedRefused, applied.Status())
		f.memberships.AssertNumberOfCalls(t, "Save", 1)
		f.memberships.AssertCalled(t, "Save", f.txCtx, applied)
		assert.Equal(t, []string{domain.RoutingKeyMemberRefused, domain.RoutingKeyPlanStarted}, f.outbox.routingKeys())
		assert.Equal(t, int64(1), f.metrics.GetCounter(observability.MetricPlansStarted))
	})

	t.Run("a member cannot start the plan", func(t *testing.T) {
		f := newFixture()
		plan, _ := existingPlan(t, testSpec(4))
		f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)

		err := NewStartPlanHandler(f.deps()).Handle(f.ctx, StartPlanCommand{PlanID: plan.ID(), ActorID: uuid.New()})

		assert.ErrorIs(t, err, domain.ErrNotOwner)
	})
}

func TestCompletePlanHandler(t *testing.T) {
	f := newFixture()
	plan, owner := existingPlan(t, testSpec(4))
	require.NoError(t, plan.Start([]*domain.Membership{owner}, false))
	plan.ClearDomainEvents()
	f.plans.On("LockForUpdate", f.txCtx, plan.ID()).Return(plan, nil)
	f.memberships.On("ListByPlan", f.txCtx, plan.ID()).Return([]*domain.Membership{owner}, nil)
	f.expectWrites()
	handler := NewCompletePlanHandler(f.deps())

	require.NoError(t, handler.Handle(f.ctx, CompletePlanCommand{PlanID: plan.ID(), ActorID: plan.OwnerID()}))
	assert.Equal(t, domain.PlanCompleted, plan.Status())

	err := handler.Handle(f.ctx, CompletePlanCommand{PlanID: plan.ID()})
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)
}
