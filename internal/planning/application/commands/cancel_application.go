package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// CancelApplicationCommand withdraws the caller's own application.
type CancelApplicationCommand struct {
	PlanID uuid.UUID
	UserID uuid.UUID
}

// CancelApplicationHandler handles the CancelApplicationCommand.
type CancelApplicationHandler struct {
	writer
}

// NewCancelApplicationHandler creates a new CancelApplicationHandler.
func NewCancelApplicationHandler(deps Deps) *CancelApplicationHandler {
	return &CancelApplicationHandler{writer: newWriter(deps)}
}

// Handle executes the CancelApplicationCommand.
func (h *CancelApplicationHandler) Handle(ctx context.Context, cmd CancelApplicationCommand) (*MembershipResult, error) {
	var result *MembershipResult

	err := sharedApplication.WithUnitOfWork(ctx, h.UoW, func(txCtx context.Context) error {
		plan, err := h.lock(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		m, err := h.Memberships.Find(txCtx, plan.ID(), cmd.UserID)
		if err != nil {
			return err
		}
		if err := plan.CancelApplication(m); err != nil {
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
