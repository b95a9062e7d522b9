package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// StartPlanCommand moves a plan from NEW to IN_PROGRESS. ActorID is the
// owner, or uuid.Nil when the scheduler starts the plan on its start date.
type StartPlanCommand struct {
	PlanID  uuid.UUID
	ActorID uuid.UUID
}

func (c StartPlanCommand) automatic() bool { return c.ActorID == uuid.Nil }

// StartPlanHandler handles the StartPlanCommand.
type StartPlanHandler struct {
	writer
}

// NewStartPlanHandler creates a new StartPlanHandler.
func NewStartPlanHandler(deps Deps) *StartPlanHandler {
	return &StartPlanHandler{writer: newWriter(deps)}
}

// Handle starts the plan and refuses every pending membership with it.
func (h *StartPlanHandler) Handle(ctx context.Context, cmd StartPlanCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if !cmd.automatic() && !plan.IsOwner(cmd.ActorID) {
			return domain.ErrNotOwner
		}
		memberships, err := h.Memberships.ListByPlan(txCtx, plan.ID())
		if err != nil {
			return err
		}
		before := statuses(memberships)
		if err := plan.Start(memberships, cmd.automatic()); err != nil {
			return err
		}
		return h.persist(txCtx, cmd.ActorID, plan, changed(memberships, before)...)
	})
}

func statuses(memberships []*domain.Membership) []domain.MembershipStatus {
	out := make([]domain.MembershipStatus, len(memberships))
	for i, m := range memberships {
		out[i] = m.Status()
	}
	return out
}

func changed(memberships []*domain.Membership, before []domain.MembershipStatus) []*domain.Membership {
	var out []*domain.Membership
	for i, m := range memberships {
		if m.Status() != before[i] {
			out = append(out, m)
		}
	}
	return out
}
