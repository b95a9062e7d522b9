package domain

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var ErrNotificationNotFound = errors.New("notification not found")

// Kind classifies a notification.
type Kind string

const (
	KindWelcome              Kind = "WELCOME"
	KindPlanCancelled        Kind = "PLAN_CANCELLED"
	KindPlanStarted          Kind = "PLAN_STARTED"
	KindPlanCompleted        Kind = "PLAN_COMPLETED"
	KindApplicationReceived  Kind = "APPLICATION_RECEIVED"
	KindApplicationDecided   Kind = "APPLICATION_DECIDED"
	KindApplicationWithdrawn Kind = "APPLICATION_WITHDRAWN"
	KindInvitationReceived   Kind = "INVITATION_RECEIVED"
	KindInvitationDecided    Kind = "INVITATION_DECIDED"
)

// Notification is a message stored for one recipient. EventID and
// RecipientID together are unique, so redelivered events store nothing new.
type Notification struct {
	ID          uuid.UUID  `json:"id"`
	RecipientID uuid.UUID  `json:"recipientId"`
	PlanID      uuid.UUID  `json:"planId,omitempty"`
	Kind        Kind       `json:"kind"`
	Subject     string     `json:"subject"`
	Body        string     `json:"body"`
	EventID     uuid.UUID  `json:"-"`
	ReadAt      *time.Time `json:"readAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// New stamps a notification derived from an event.
func New(eventID, recipientID, planID uuid.UUID, kind Kind, subject, body string) *Notification {
	return &Notification{
		ID:          uuid.New(),
		RecipientID: recipientID,
		PlanID:      planID,
		Kind:        kind,
		Subject:     subject,
		Body:        body,
		EventID:     eventID,
		CreatedAt:   time.Now().UTC(),
	}
}

// Repository stores notifications.
type Repository interface {
	// Insert reports false when the (event, recipient) pair already exists.
	Insert(ctx context.Context, n *Notification) (bool, error)
	ListByRecipient(ctx context.Context, recipientID uuid.UUID, unreadOnly bool, limit int) ([]Notification, error)
	// MarkRead returns ErrNotificationNotFound unless the notification
	// belongs to the recipient.
	MarkRead(ctx context.Context, id, recipientID uuid.UUID, at time.Time) error
}
