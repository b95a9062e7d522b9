package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// ClosePollCommand stops voting on a poll.
type ClosePollCommand struct {
	PollID uuid.UUID
	UserID uuid.UUID
}

// ClosePollHandler handles the ClosePollCommand.
type ClosePollHandler struct {
	deps Deps
}

// NewClosePollHandler creates a new ClosePollHandler.
func NewClosePollHandler(deps Deps) *ClosePollHandler {
	return &ClosePollHandler{deps: deps}
}

// Handle closes the poll. Only its creator may do so.
func (h *ClosePollHandler) Handle(ctx context.Context, cmd ClosePollCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		poll, err := h.deps.Polls.FindByID(txCtx, cmd.PollID)
		if err != nil {
			return err
		}
		if err := poll.Close(cmd.UserID); err != nil {
			return err
		}
		return h.deps.persist(txCtx, cmd.UserID, poll)
	})
}
