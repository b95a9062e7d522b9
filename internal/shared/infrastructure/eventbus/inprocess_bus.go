package eventbus

import (
	"context"
	"log/slog"
	"time"
)

// InProcessBus is the Publisher used when no broker is configured: the
// outbox processor hands each message straight to the registered
// consumers on its own goroutine.
type InProcessBus struct {
	registry *ConsumerRegistry
	logger   *slog.Logger
}

func NewInProcessBus(logger *slog.Logger) *InProcessBus {
	if logger == nil {
		logger = slog.Default()
	}
	return &InProcessBus{registry: NewConsumerRegistry(logger), logger: logger}
}

func (b *InProcessBus) RegisterConsumer(consumer EventConsumer) {
	b.registry.Register(consumer)
}

// Publish dispatches synchronously. Consumer failures are returned so the
// outbox retries the message; consumers must therefore be idempotent.
func (b *InProcessBus) Publish(ctx context.Context, routingKey string, payload []byte) error {
	event, err := DecodeEvent(payload, routingKey)
	if err != nil {
		b.logger.ErrorContext(ctx, "dropping undecodable event", "routing_key", routingKey, "error", err)
		return nil
	}

	start := time.Now()
	if err := b.registry.Dispatch(ctx, event); err != nil {
		return err
	}
	b.logger.DebugContext(ctx, "event dispatched",
		"routing_key", routingKey,
		"event_id", event.EventID,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return nil
}

func (b *InProcessBus) Close() error { return nil }
