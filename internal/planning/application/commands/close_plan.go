package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/planning/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// ClosePlanCommand cancels a plan with a reason shown to its members.
type ClosePlanCommand struct {
	PlanID  uuid.UUID
	OwnerID uuid.UUID
	Reason  string
}

// ClosePlanHandler handles the ClosePlanCommand.
type ClosePlanHandler struct {
	writer
}

// NewClosePlanHandler creates a new ClosePlanHandler.
func NewClosePlanHandler(deps Deps) *ClosePlanHandler {
	return &ClosePlanHandler{writer: newWriter(deps)}
}

// Handle cancels the plan. Membership rows are read for the notification
// recipients and left untouched.
func (h *ClosePlanHandler) Handle(ctx context.Context, cmd ClosePlanCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if !plan.IsOwner(cmd.OwnerID) {
			return domain.ErrNotOwner
		}
		memberships, err := h.Memberships.ListByPlan(txCtx, plan.ID())
		if err != nil {
			return err
		}
		if err := plan.Close(cmd.Reason, memberships); err != nil {
			return err
		}
		return h.persist(txCtx, cmd.OwnerID, plan)
	})
}
