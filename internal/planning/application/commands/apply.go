package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// ApplyCommand asks to join a public plan.
type ApplyCommand struct {
	PlanID uuid.UUID
	UserID uuid.UUID
}

// ApplyHandler handles the ApplyCommand.
type ApplyHandler struct {
	writer
}

// NewApplyHandler creates a new ApplyHandler.
func NewApplyHandler(deps Deps) *ApplyHandler {
	return &ApplyHandler{writer: newWriter(deps)}
}

// Handle checks, in order, for an existing membership, another current
// plan, an open public plan and a free slot.
func (h *ApplyHandler) Handle(ctx context.Context, cmd ApplyCommand) (*MembershipResult, error) {
	var result *MembershipResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		if err := h.ensureFresh(txCtx, plan.ID(), cmd.UserID); err != nil {
			return err
		}
		if err := h.ensureNoCurrentPlan(txCtx, cmd.UserID); err != nil {
			return err
		}

		active, err := h.Memberships.CountActive(txCtx, plan.ID())
		if err != nil {
			return err
		}
		m, err := plan.Apply(cmd.UserID, active)
		if err != nil {
			return err
		}
		if err := h.persist(txCtx, cmd.UserID, plan, m); err != nil {
			return err
		}

		result = resultOf(m)
		return nil
	})
	if err != nil {
		return nil, err
	}

	return result, nil
}
