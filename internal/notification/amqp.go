package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rabbitmq/amqp091-go"
)

// Envelope is the message body published to the broker.
type Envelope struct {
	ID            string    `json:"id"`
	Audience      string    `json:"audience"`
	RecipientID   string    `json:"recipient_id"`
	Type          string    `json:"type"`
	Title         string    `json:"title"`
	Message       string    `json:"message"`
	ReferenceID   string    `json:"reference_id,omitempty"`
	ReferenceType string    `json:"reference_type,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

func NewEnvelope(n Notification) Envelope {
	return Envelope{
		ID:            n.ID.String(),
		Audience:      string(n.Audience),
		RecipientID:   n.RecipientID.String(),
		Type:          n.Type,
		Title:         n.Title,
		Message:       n.Message,
		ReferenceID:   n.ReferenceID,
		ReferenceType: n.ReferenceType,
		CreatedAt:     n.CreatedAt,
	}
}

// AMQPPublisher publishes notifications to a durable RabbitMQ queue on the
// default exchange.
type AMQPPublisher struct {
	channel *amqp091.Channel
	queue   string
}

func NewAMQPPublisher(conn *amqp091.Connection, queue string) (*AMQPPublisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, nil); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare queue %s: %w", queue, err)
	}
	return &AMQPPublisher{channel: ch, queue: queue}, nil
}

func (p *AMQPPublisher) Publish(ctx context.Context, n Notification) error {
	body, err := json.Marshal(NewEnvelope(n))
	if err != nil {
		return err
	}

	msg := amqp091.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp091.Persistent,
		MessageId:    n.ID.String(),
		Type:         n.Type,
		Timestamp:    n.CreatedAt,
		Headers: amqp091.Table{
			"audience": string(n.Audience),
		},
		Body: body,
	}

	if err := p.channel.PublishWithContext(ctx, "", p.queue, false, false, msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}

func (p *AMQPPublisher) Close() error {
	return p.channel.Close()
}
