package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// CompletePlanCommand moves a plan from IN_PROGRESS to COMPLETED. As with
// StartPlanCommand, a nil ActorID means the scheduler.
type CompletePlanCommand struct {
	PlanID  uuid.UUID
	ActorID uuid.UUID
}

// CompletePlanHandler handles the CompletePlanCommand.
type CompletePlanHandler struct {
	writer
}

// NewCompletePlanHandler creates a new CompletePlanHandler.
func NewCompletePlanHandler(deps Deps) *CompletePlanHandler {
	return &CompletePlanHandler{writer: newWriter(deps)}
}

// Handle executes the CompletePlanCommand.
func (h *CompletePlanHandler) Handle(ctx context.Context, cmd CompletePlanCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if cmd.ActorID != uuid.Nil && !plan.IsOwner(cmd.ActorID) {
			return domain.ErrNotOwner
		}
		memberships, err := h.Memberships.ListByPlan(txCtx, plan.ID())
		if err != nil {
			return err
		}
		if err := plan.Complete(memberships); err != nil {
			return err
		}
		return h.persist(txCtx, cmd.ActorID, plan)
	})
}
