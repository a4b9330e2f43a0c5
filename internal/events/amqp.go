package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
)

// DefaultQueue is used when no queue name is configured.
const DefaultQueue = "mdms.reviews"

// AMQPPublisher publishes events as persistent JSON messages to a durable
// queue through the default exchange. Each publish opens its own connection,
// which keeps the publisher free of reconnect state.
type AMQPPublisher struct {
	url    string
	queue  string
	logger *log.Logger
	dial   func(url string) (*amqp.Connection, error)
}

// NewAMQPPublisher constructs a publisher for the broker at url.
func NewAMQPPublisher(url, queue string, logger *log.Logger) *AMQPPublisher {
	if queue == "" {
		queue = DefaultQueue
	}
	if logger == nil {
		logger = log.Default()
	}
	return &AMQPPublisher{url: url, queue: queue, logger: logger, dial: amqp.Dial}
}

// Queue returns the routing key messages are published with.
func (p *AMQPPublisher) Queue() string { return p.queue }

// PublishReview implements Publisher.
func (p *AMQPPublisher) PublishReview(ctx context.Context, event ReviewEvent) error {
	body, err := encodeEvent(event)
	if err != nil {
		return err
	}

	conn, err := p.dial(p.url)
	if err != nil {
		p.logger.Printf("rabbitmq: dial failed: %v", err)
		return fmt.Errorf("dial broker: %w", err)
	}
	defer func() { _ = conn.Close() }()

	ch, err := conn.Channel()
	if err != nil {
		p.logger.Printf("rabbitmq: channel open failed: %v", err)
		return fmt.Errorf("open channel: %w", err)
	}
	defer func() { _ = ch.Close() }()

	if _, err := ch.QueueDeclare(
		p.queue, // name
		true,    // durable
		false,   // autoDelete
		false,   // exclusive
		false,   // noWait
		nil,     // args
	); err != nil {
		p.logger.Printf("rabbitmq: queue declare failed: %v", err)
		return fmt.Errorf("declare queue %s: %w", p.queue, err)
	}

	if err := ch.PublishWithContext(ctx, "", p.queue, false, false, newPublishing(event, body)); err != nil {
		p.logger.Printf("rabbitmq: publish failed: %v", err)
		return fmt.Errorf("publish %s: %w", event.Type, err)
	}
	return nil
}

func encodeEvent(event ReviewEvent) ([]byte, error) {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}
	body, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return body, nil
}

func newPublishing(event ReviewEvent, body []byte) amqp.Publishing {
	return amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Type:         event.Type,
		MessageId:    event.ReviewID,
		Timestamp:    time.Now().UTC(),
		Body:         body,
	}
}
