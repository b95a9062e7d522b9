package domain

import (
	"time"

	"github.com/google/uuid"

	sharedDomain "github.com/felixgeelhaar/caravan/internal/shared/domain"
)

const (
	AggregateType = "ChatMessage"

	RoutingKeyMessageSent = "chat.message.sent"
)

// MessageSent is recorded for every stored chat line.
type MessageSent struct {
	sharedDomain.BaseEvent
	PlanID   uuid.UUID   `json:"plan_id"`
	SenderID uuid.UUID   `json:"sender_id"`
	Type     MessageType `json:"message_type"`
	SentAt   time.Time   `json:"sent_at"`
}

func NewMessageSent(m *Message) *MessageSent {
	return &MessageSent{
		BaseEvent: sharedDomain.NewBaseEvent(m.ID, AggregateType, RoutingKeyMessageSent),
		PlanID:    m.PlanID,
		SenderID:  m.SenderID,
		Type:      m.Type,
		SentAt:    m.SentAt,
	}
}
