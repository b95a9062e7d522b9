package commands

import (
	"context"
	"time"

	"github.com/felixgeelhaar/caravan/internal/notifications/domain"
	"github.com/google/uuid"
)

// MarkReadCommand marks one notification as read.
type MarkReadCommand struct {
	NotificationID uuid.UUID
	UserID         uuid.UUID
}

// MarkReadHandler handles the MarkReadCommand.
type MarkReadHandler struct {
	repo domain.Repository
	now  func() time.Time
}

// NewMarkReadHandler creates a new MarkReadHandler.
func NewMarkReadHandler(repo domain.Repository) *MarkReadHandler {
	return &MarkReadHandler{repo: repo, now: time.Now}
}

// Handle returns domain.ErrNotificationNotFound for another user's notification.
func (h *MarkReadHandler) Handle(ctx context.Context, cmd MarkReadCommand) error {
	return h.repo.MarkRead(ctx, cmd.NotificationID, cmd.UserID, h.now())
}
