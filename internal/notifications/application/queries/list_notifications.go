package queries

import (
	"context"

	"github.com/felixgeelhaar/caravan/internal/notifications/domain"
	"github.com/google/uuid"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 200
)

// ListNotificationsQuery selects a user's inbox.
type ListNotificationsQuery struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Limit      int
}

// ListNotificationsHandler handles the ListNotificationsQuery.
type ListNotificationsHandler struct {
	repo domain.Repository
}

// NewListNotificationsHandler creates a new ListNotificationsHandler.
func NewListNotificationsHandler(repo domain.Repository) *ListNotificationsHandler {
	return &ListNotificationsHandler{repo: repo}
}

// Handle returns notifications newest first.
func (h *ListNotificationsHandler) Handle(ctx context.Context, q ListNotificationsQuery) ([]domain.Notification, error) {
	limit := q.Limit
	if limit <= 0 {
		limit = DefaultListLimit
	}
	if limit > MaxListLimit {
		limit = MaxListLimit
	}
	return h.repo.ListByRecipient(ctx, q.UserID, q.UnreadOnly, limit)
}
