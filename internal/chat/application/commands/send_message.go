package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/felixgeelhaar/caravan/internal/chat/domain"
	sharedApplication "github.com/felixgeelhaar/caravan/internal/shared/application"
	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
	"github.com/felixgeelhaar/caravan/internal/shared/infrastructure/outbox"
	"github.com/felixgeelhaar/caravan/pkg/observability"
	"github.com/google/uuid"
)

// SendMessageCommand posts a chat line to a plan.
type SendMessageCommand struct {
	PlanID   uuid.UUID
	SenderID uuid.UUID
	Content  string
	Type     domain.MessageType
}

// SendMessageHandler stores messages from active members of running plans.
type SendMessageHandler struct {
	messages domain.MessageRepository
	access   sharedApplication.PlanAccessChecker
	outbox   outbox.Repository
	uow      sharedApplication.UnitOfWork
	metrics  observability.Metrics
	now      func() time.Time
}

// NewSendMessageHandler creates a new SendMessageHandler.
func NewSendMessageHandler(
	messages domain.MessageRepository,
	access sharedApplication.PlanAccessChecker,
	outboxRepo outbox.Repository,
	uow sharedApplication.UnitOfWork,
	metrics observability.Metrics,
) *SendMessageHandler {
	if metrics == nil {
		metrics = observability.NoopMetrics{}
	}
	return &SendMessageHandler{
		messages: messages,
		access:   access,
		outbox:   outboxRepo,
		uow:      uow,
		metrics:  metrics,
		now:      time.Now,
	}
}

// Handle validates and stores the message.
func (h *SendMessageHandler) Handle(ctx context.Context, cmd SendMessageCommand) (*domain.Message, error) {
	if err := sharedApplication.RequireCollaborator(ctx, h.access, cmd.PlanID, cmd.SenderID); err != nil {
		return nil, err
	}

	var msg *domain.Message
	err := sharedApplication.WithUnitOfWork(ctx, h.uow, func(txCtx context.Context) error {
		latest, err := h.messages.LatestSentAt(txCtx, cmd.PlanID)
		if err != nil {
			return err
		}
		msg, err = domain.NewMessage(cmd.PlanID, cmd.SenderID, cmd.Content, cmd.Type, h.now(), latest)
		if err != nil {
			return err
		}
		if err := h.messages.Save(txCtx, msg); err != nil {
			return err
		}

		events := []sharedDomain.DomainEvent{domain.NewMessageSent(msg)}
		sharedApplication.ApplyEventMetadata(events, sharedApplication.NewEventMetadata(txCtx, cmd.SenderID))
		out, err := outbox.NewMessages(events)
		if err != nil {
			return fmt.Errorf("failed to build outbox messages: %w", err)
		}
		return h.outbox.SaveBatch(txCtx, out)
	})
	if err != nil {
		return nil, err
	}

	h.metrics.Counter(observability.MetricChatMessages, 1, observability.T("direction", "stored"))
	return msg, nil
}
