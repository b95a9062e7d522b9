package eventbus

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
)

type binding struct {
	pattern  string
	consumer EventConsumer
}

// ConsumerRegistry routes events to the consumers whose patterns match.
type ConsumerRegistry struct {
	mu       sync.RWMutex
	bindings []binding
	logger   *slog.Logger
}

func NewConsumerRegistry(logger *slog.Logger) *ConsumerRegistry {
	if logger == nil {
		logger = slog.Default()
	}
	return &ConsumerRegistry{logger: logger}
}

// Register binds the consumer to each of its patterns.
func (r *ConsumerRegistry) Register(consumer EventConsumer) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		r.bindings = append(r.bindings, binding{pattern: pattern, consumer: consumer})
		r.logger.Debug("registered event consumer", "pattern", pattern)
	}
}

// ConsumersFor lists the consumers that receive routingKey, each once.
func (r *ConsumerRegistry) ConsumersFor(routingKey string) []EventConsumer {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var out []EventConsumer
	seen := make(map[EventConsumer]bool)
	for _, b := range r.bindings {
		if seen[b.consumer] || !MatchTopic(b.pattern, routingKey) {
			continue
		}
		seen[b.consumer] = true
		out = append(out, b.consumer)
	}
	return out
}

// Patterns lists every registered pattern, for broker queue bindings.
func (r *ConsumerRegistry) Patterns() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.bindings))
	for _, b := range r.bindings {
		out = append(out, b.pattern)
	}
	return out
}

// Dispatch hands the event to every matching consumer. All consumers run
// even when one fails; the joined error is returned.
func (r *ConsumerRegistry) Dispatch(ctx context.Context, event *ConsumedEvent) error {
	consumers := r.ConsumersFor(event.RoutingKey)
	if len(consumers) == 0 {
		r.logger.DebugContext(ctx, "no consumers for event", "routing_key", event.RoutingKey)
		return nil
	}

	var errs []error
	for _, c := range consumers {
		if err := c.Handle(ctx, event); err != nil {
			r.logger.ErrorContext(ctx, "event consumer failed",
				"routing_key", event.RoutingKey,
				"event_id", event.EventID,
				"error", err,
			)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// MatchTopic applies AMQP topic-exchange matching to a routing key.
func MatchTopic(pattern, key string) bool {
	return matchWords(strings.Split(pattern, "."), strings.Split(key, "."))
}

func matchWords(pattern, key []string) bool {
	for len(pattern) > 0 {
		switch pattern[0] {
		case "#":
			if len(pattern) == 1 {
				return true
			}
			for i := 0; i <= len(key); i++ {
				if matchWords(pattern[1:], key[i:]) {
					return true
				}
			}
			return false
		case "*":
			if len(key) == 0 {
				return false
			}
		default:
			if len(key) == 0 || key[0] != pattern[0] {
				return false
			}
		}
		pattern, key = pattern[1:], key[1:]
	}
	return len(key) == 0
}
