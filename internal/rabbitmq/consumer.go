package rabbitmq

import (
	"context"
	"encoding/json"
	"errors"
	"log"

	amqp "github.com/rabbitmq/amqp091-go"

	"messaging-service/internal/identity"
	"messaging-service/internal/observability"
)

// IdentityConsumer feeds identity provider events into the directory. A
// failed application is Nacked with requeue so the provider side redelivers;
// only a processed event is Acked.
type IdentityConsumer struct {
	conn   *amqp.Connection
	ch     *amqp.Channel
	queue  string
	syncer *identity.Syncer
}

// NewIdentityConsumer connects, declares the identity exchange/queue pair
// and binds the identity.* routing keys.
func NewIdentityConsumer(amqpURL, exchange, queue string, syncer *identity.Syncer) (*IdentityConsumer, error) {
	conn, err := amqp.Dial(amqpURL)
	if err != nil {
		return nil, err
	}

	ch, err := conn.Channel()
	if err != nil {
		conn.Close()
		return nil, err
	}

	if err := ch.ExchangeDeclare(exchange, "topic", true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	if err := ch.QueueBind(queue, "identity.*", exchange, false, nil); err != nil {
		ch.Close()
		conn.Close()
		return nil, err
	}

	return &IdentityConsumer{conn: conn, ch: ch, queue: queue, syncer: syncer}, nil
}

// Run consumes until the context is cancelled or the channel closes.
func (c *IdentityConsumer) Run(ctx context.Context) error {
	deliveries, err := c.ch.Consume(c.queue, "", false, false, false, false, nil)
	if err != nil {
		return err
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case delivery, ok := <-deliveries:
			if !ok {
				return nil
			}
			c.handle(ctx, delivery)
		}
	}
}

func (c *IdentityConsumer) handle(ctx context.Context, delivery amqp.Delivery) {
	var event identity.Event
	if err := json.Unmarshal(delivery.Body, &event); err != nil {
		// Malformed payloads will never parse; requeueing would loop.
		log.Printf("identity consumer: dropping malformed event: %v", err)
		observability.IncIdentityEvent(delivery.RoutingKey, "malformed")
		_ = delivery.Nack(false, false)
		return
	}

	if err := c.syncer.Apply(ctx, delivery.RoutingKey, event); err != nil {
		if errors.Is(err, identity.ErrUnprocessableEvent) {
			// Same fate as a body that will never parse.
			log.Printf("identity consumer: dropping event: %v", err)
			observability.IncIdentityEvent(delivery.RoutingKey, "malformed")
			_ = delivery.Nack(false, false)
			return
		}
		log.Printf("identity consumer: apply %s failed: %v", delivery.RoutingKey, err)
		observability.IncIdentityEvent(delivery.RoutingKey, "failed")
		_ = delivery.Nack(false, true)
		return
	}

	observability.IncIdentityEvent(delivery.RoutingKey, "processed")
	_ = delivery.Ack(false)
}

// Close tears down the channel and connection.
func (c *IdentityConsumer) Close() error {
	if c.ch != nil {
		_ = c.ch.Close()
	}
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}
