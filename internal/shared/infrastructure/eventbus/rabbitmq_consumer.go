package eventbus

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

// Queue names.
const (
	// NotificationsQueue is shared by all workers so each event is stored once.
	NotificationsQueue = "caravan.notifications"
)

// RabbitMQConsumerConfig configures a consumer. An empty QueueName with
// Exclusive set declares a server-named queue private to this process,
// which is how every API instance receives every plan change.
type RabbitMQConsumerConfig struct {
	URL       string
	QueueName string
	Exclusive bool
	Prefetch  int
	Logger    *slog.Logger
}

// RabbitMQConsumer feeds deliveries from one queue into a registry.
type RabbitMQConsumer struct {
	conn     *amqp.Connection
	channel  *amqp.Channel
	queue    string
	prefetch int
	registry *ConsumerRegistry
	logger   *slog.Logger

	mu        sync.Mutex
	running   bool
	closeOnce sync.Once
	done      chan struct{}
}

func NewRabbitMQConsumer(cfg RabbitMQConsumerConfig, registry *ConsumerRegistry) (*RabbitMQConsumer, error) {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Prefetch <= 0 {
		cfg.Prefetch = 1
	}
	if cfg.QueueName == "" && !cfg.Exclusive {
		cfg.QueueName = NotificationsQueue
	}

	conn, ch, err := dialExchange(cfg.URL)
	if err != nil {
		return nil, err
	}
	q, err := ch.QueueDeclare(cfg.QueueName, !cfg.Exclusive, cfg.Exclusive, cfg.Exclusive, false, nil)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("declare queue: %w", err)
	}

	cfg.Logger.Info("rabbitmq consumer connected", "queue", q.Name, "exclusive", cfg.Exclusive)
	return &RabbitMQConsumer{
		conn:     conn,
		channel:  ch,
		queue:    q.Name,
		prefetch: cfg.Prefetch,
		registry: registry,
		logger:   cfg.Logger,
		done:     make(chan struct{}),
	}, nil
}

// RegisterConsumer adds the consumer and binds its patterns to the queue.
func (c *RabbitMQConsumer) RegisterConsumer(consumer EventConsumer) {
	c.registry.Register(consumer)

	c.mu.Lock()
	defer c.mu.Unlock()
	for _, pattern := range consumer.EventTypes() {
		if err := c.channel.QueueBind(c.queue, pattern, ExchangeName, false, nil); err != nil {
			c.logger.Error("bind queue", "queue", c.queue, "pattern", pattern, "error", err)
		}
	}
}

// Start consumes until ctx ends or Close is called. Failed deliveries are
// requeued; undecodable ones are acked and dropped.
func (c *RabbitMQConsumer) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return errors.New("consumer already running")
	}
	c.running = true
	c.mu.Unlock()

	if err := c.channel.Qos(c.prefetch, 0, false); err != nil {
		return fmt.Errorf("set qos: %w", err)
	}
	deliveries, err := c.channel.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return fmt.Errorf("consume %s: %w", c.queue, err)
	}
	c.logger.Info("consuming events", "queue", c.queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-c.done:
			return nil
		case d, ok := <-deliveries:
			if !ok {
				return errors.New("delivery channel closed")
			}
			c.handle(ctx, d)
		}
	}
}

func (c *RabbitMQConsumer) handle(ctx context.Context, d amqp.Delivery) {
	event, err := DecodeEvent(d.Body, d.RoutingKey)
	if err != nil {
		c.logger.Error("dropping undecodable delivery", "routing_key", d.RoutingKey, "error", err)
		_ = d.Ack(false)
		return
	}
	if err := c.registry.Dispatch(ctx, event); err != nil {
		if nackErr := d.Nack(false, !d.Redelivered); nackErr != nil {
			c.logger.Error("nack delivery", "error", nackErr)
		}
		return
	}
	if err := d.Ack(false); err != nil {
		c.logger.Error("ack delivery", "error", err)
	}
}

// Ping reports whether the broker connection is still open.
func (c *RabbitMQConsumer) Ping(context.Context) error {
	if c.conn.IsClosed() {
		return amqp.ErrClosed
	}
	return nil
}

func (c *RabbitMQConsumer) Close() error {
	var err error
	c.closeOnce.Do(func() {
		close(c.done)
		if cerr := c.channel.Close(); cerr != nil {
			c.logger.Warn("close rabbitmq channel", "error", cerr)
		}
		err = c.conn.Close()
		c.logger.Info("rabbitmq consumer closed", "queue", c.queue)
	})
	return err
}
