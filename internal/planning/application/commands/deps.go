package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
)

// Deps are the collaborators shared by the lifecycle handlers.
type Deps struct {
	Plans       domain.PlanRepository
	Memberships domain.MembershipRepository
	Outbox      outbox.Repository
	UoW         sharedApplication.UnitOfWork
	Metrics     observability.Metrics
}

// MembershipResult is the state a membership command left behind.
type MembershipResult struct {
	PlanID uuid.UUID
	UserID uuid.UUID
	Status domain.MembershipStatus
}

func resultOf(m *domain.Membership) *MembershipResult {
	return &MembershipResult{PlanID: m.PlanID(), UserID: m.UserID(), Status: m.Status()}
}

type writer struct {
	Deps
}

func newWriter(deps Deps) writer {
	if deps.Metrics == nil {
		deps.Metrics = observability.NoopMetrics{}
	}
	return writer{Deps: deps}
}

// persist saves the plan, the touched memberships and the plan's pending
// events in the caller's transaction. Events are stamped with the actor.
func (w writer) persist(ctx context.Context, actorID uuid.UUID, plan *domain.Plan, memberships ...*domain.Membership) error {
	events := plan.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, actorID))

	if err := w.Plans.Save(ctx, plan); err != nil {
		return err
	}
	for _, m := range memberships {
		if err := w.Memberships.Save(ctx, m); err != nil {
			return err
		}
	}

	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}
	if err := w.Outbox.SaveBatch(ctx, msgs); err != nil {
		return err
	}

	w.count(events)
	plan.ClearDomainEvents()
	return nil
}

func (w writer) count(events []sharedDomain.DomainEvent) {
	for _, e := range events {
		switch evt := e.(type) {
		case *domain.PlanCreated:
			w.Metrics.Counter(observability.MetricPlansCreated, 1)
		case *domain.PlanStarted:
			w.Metrics.Counter(observability.MetricPlansStarted, 1)
		case *domain.PlanCompletedEvent:
			w.Metrics.Counter(observability.MetricPlansCompleted, 1)
		case *domain.MembershipChanged:
			w.Metrics.Counter(observability.MetricMembershipsChanged, 1, observability.T("to", evt.To.String()))
		}
	}
}

// lock loads the plan under its row lock.
func (w writer) lock(ctx context.Context, planID uuid.UUID) (*domain.Plan, error) {
	return w.Plans.LockForUpdate(ctx, planID)
}

// ensureFresh rejects a new membership for a (plan, user) pair that
// already has one. Terminal rows are never reopened.
func (w writer) ensureFresh(ctx context.Context, planID, userID uuid.UUID) error {
	existing, err := w.Memberships.Find(ctx, planID, userID)
	switch {
	case err == nil:
		if existing.Status().IsTerminal() {
			return fmt.Errorf("%w: membership is %s", domain.ErrInvalidTransition, existing.Status())
		}
		return domain.ErrAlreadyMember
	case errors.Is(err, domain.ErrMembershipNotFound):
		return nil
	default:
		return err
	}
}

// ensureNoCurrentPlan locks the user before counting, so concurrent
// creates, applies and invites for one user see each other's rows. Callers
// lock the plan first; the user lock always comes second.
func (w writer) ensureNoCurrentPlan(ctx context.Context, userID uuid.UUID) error {
	if err := w.Memberships.LockUser(ctx, userID); err != nil {
		return err
	}
	busy, err := w.Memberships.HasCurrentPlan(ctx, userID)
	if err != nil {
		return err
	}
	if busy {
		return domain.ErrHasCurrentPlan
	}
	return nil
}
