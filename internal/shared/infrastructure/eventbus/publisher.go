package eventbus

import (
	"context"
)

// Publisher sends outbox payloads to subscribers, either in-process or
// through RabbitMQ.
type Publisher interface {
	Publish(ctx context.Context, routingKey string, payload []byte) error
	Close() error
}
