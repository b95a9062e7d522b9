package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// MarkPaidCommand settles one participant's share.
type MarkPaidCommand struct {
	ExpenseID    uuid.UUID
	AllocationID uuid.UUID
	ActorID      uuid.UUID
}

// MarkPaidHandler handles the MarkPaidCommand.
type MarkPaidHandler struct {
	deps Deps
}

// NewMarkPaidHandler creates a new MarkPaidHandler.
func NewMarkPaidHandler(deps Deps) *MarkPaidHandler {
	return &MarkPaidHandler{deps: deps}
}

// Handle marks the allocation paid. Only the payer may confirm receipt.
func (h *MarkPaidHandler) Handle(ctx context.Context, cmd MarkPaidCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		expense, err := h.deps.Expenses.FindByID(txCtx, cmd.ExpenseID)
		if err != nil {
			return err
		}
		if err := expense.MarkPaid(cmd.AllocationID, cmd.ActorID); err != nil {
			return err
		}
		return h.deps.persist(txCtx, cmd.ActorID, expense)
	})
}
