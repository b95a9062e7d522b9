package commands

import (
	"context"

	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// VoteCommand casts one user's vote.
type VoteCommand struct {
	PollID   uuid.UUID
	UserID   uuid.UUID
	OptionID uuid.UUID
}

// VoteHandler handles the VoteCommand.
type VoteHandler struct {
	deps Deps
}

// NewVoteHandler creates a new VoteHandler.
func NewVoteHandler(deps Deps) *VoteHandler {
	return &VoteHandler{deps: deps}
}

// Handle records the vote. A concurrent duplicate is caught by the
// (poll, user) key and reported as ErrAlreadyVoted.
func (h *VoteHandler) Handle(ctx context.Context, cmd VoteCommand) error {
	return sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		poll, err := h.deps.Polls.FindByID(txCtx, cmd.PollID)
		if err != nil {
			return err
		}
		if err := sharedApplication.RequireCollaborator(txCtx, h.deps.Access, poll.PlanID(), cmd.UserID); err != nil {
			return err
		}
		vote, err := poll.Cast(cmd.UserID, cmd.OptionID)
		if err != nil {
			return err
		}
		if err := h.deps.Polls.AddVote(txCtx, poll.ID(), vote); err != nil {
			return err
		}
		return h.deps.persist(txCtx, cmd.UserID, poll)
	})
}
