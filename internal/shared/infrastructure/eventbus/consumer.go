package eventbus

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// EventConsumer reacts to events whose routing key matches one of its
// patterns. Patterns use topic syntax: '*' matches one dot-separated word,
// '#' matches zero or more.
type EventConsumer interface {
	EventTypes() []string
	Handle(ctx context.Context, event *ConsumedEvent) error
}

// ConsumedEvent is the envelope every published message carries.
type ConsumedEvent struct {
	EventID       uuid.UUID       `json:"event_id"`
	AggregateID   uuid.UUID       `json:"aggregate_id"`
	AggregateType string          `json:"aggregate_type"`
	RoutingKey    string          `json:"routing_key"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Payload       json.RawMessage `json:"payload"`
	Metadata      EventMetadata   `json:"metadata,omitempty"`
}

// EventMetadata traces the request and user behind an event.
type EventMetadata struct {
	UserID        uuid.UUID `json:"user_id,omitempty"`
	CorrelationID string    `json:"correlation_id,omitempty"`
	CausationID   string    `json:"causation_id,omitempty"`
}

// DecodeEvent parses an envelope. The transport's routing key fills in
// for envelopes that lack one.
func DecodeEvent(body []byte, routingKey string) (*ConsumedEvent, error) {
	var event ConsumedEvent
	if err := json.Unmarshal(body, &event); err != nil {
		return nil, fmt.Errorf("decode event envelope: %w", err)
	}
	if event.RoutingKey == "" {
		event.RoutingKey = routingKey
	}
	return &event, nil
}

// Decode unmarshals the event payload into v.
func (e *ConsumedEvent) Decode(v any) error {
	if err := json.Unmarshal(e.Payload, v); err != nil {
		return fmt.Errorf("decode %s payload: %w", e.RoutingKey, err)
	}
	return nil
}

// Consumer receives events from a broker until ctx ends.
type Consumer interface {
	Start(ctx context.Context) error
	RegisterConsumer(consumer EventConsumer)
	Close() error
}
