package commands

import (
	"context"
	"fmt"

	"github.com/felixgeelhaar/caravan/internal/polls/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/google/uuid"
)

// Deps are the collaborators shared by the poll handlers.
type Deps struct {
	Polls  domain.PollRepository
	Access sharedApplication.PlanAccessChecker
	Outbox outbox.Repository
	UoW    sharedApplication.UnitOfWork
}

// persist saves the poll and writes its pending events to the outbox.
func (d Deps) persist(ctx context.Context, actorID uuid.UUID, poll *domain.Poll) error {
	events := poll.DomainEvents()
	sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(ctx, actorID))
	if err := d.Polls.Save(ctx, poll); err != nil {
		return err
	}
	msgs, err := outbox.NewMessages(events)
	if err != nil {
		return fmt.Errorf("failed to build outbox messages: %w", err)
	}
	if err := d.Outbox.SaveBatch(ctx, msgs); err != nil {
		return err
	}
	poll.ClearDomainEvents()
	return nil
}
