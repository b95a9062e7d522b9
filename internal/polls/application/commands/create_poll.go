package commands

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/polls/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/google/uuid"
)

// CreatePollCommand opens a poll on a plan.
type CreatePollCommand struct {
	PlanID    uuid.UUID
	CreatorID uuid.UUID
	Question  string
	Options   []string
}

// CreatePollHandler handles the CreatePollCommand.
type CreatePollHandler struct {
	deps Deps
}

// NewCreatePollHandler creates a new CreatePollHandler.
func NewCreatePollHandler(deps Deps) *CreatePollHandler {
	return &CreatePollHandler{deps: deps}
}

// Handle returns the new poll's ID.
func (h *CreatePollHandler) Handle(ctx context.Context, cmd CreatePollCommand) (uuid.UUID, error) {
	if err := sharedApplication.RequireCollaborator(ctx, h.deps.Access, cmd.PlanID, cmd.CreatorID); err != nil {
		return uuid.Nil, err
	}
	poll, err := domain.NewPoll(cmd.PlanID, cmd.CreatorID, cmd.Question, cmd.Options)
	if err != nil {
		return uuid.Nil, err
	}
	err = sharedApplication.WithUnitOfWork(ctx, h.deps.UoW, func(txCtx context.Context) error {
		return h.deps.persist(txCtx, cmd.CreatorID, poll)
	})
	if err != nil {
		return uuid.Nil, err
	}
	return poll.ID(), nil
}
