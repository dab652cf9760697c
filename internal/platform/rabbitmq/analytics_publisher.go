package rabbitmq

import (
	"context"
	"encoding/json"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"

	"askcampus/internal/model"
)

// AnalyticsPublisher pushes one durable message per served search result.
// The queue decouples query latency from the analytics insert.
type AnalyticsPublisher struct {
	conn      *amqp.Connection
	queueName string
}

func NewAnalyticsPublisher(conn *amqp.Connection, queueName string) *AnalyticsPublisher {
	return &AnalyticsPublisher{
		conn:      conn,
		queueName: queueName,
	}
}

func (p *AnalyticsPublisher) Publish(ctx context.Context, record model.QAAnalytics) error {
	ch, err := p.conn.Channel()
	if err != nil {
		return fmt.Errorf("open rabbitmq channel failed: %w", err)
	}
	defer ch.Close()

	_, err = ch.QueueDeclare(
		p.queueName,
		true,
		false,
		false,
		false,
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue failed: %w", err)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal analytics payload failed: %w", err)
	}

	if err := ch.PublishWithContext(
		ctx,
		"",
		p.queueName,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			Body:         payload,
			DeliveryMode: amqp.Persistent,
		},
	); err != nil {
		return fmt.Errorf("publish analytics record failed: %w", err)
	}
	return nil
}
