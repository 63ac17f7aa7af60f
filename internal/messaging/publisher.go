// Package messaging publishes deployment events to RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"
	"go.uber.org/zap"

	"github.com/GIL794/algorand-ai-contract-creator/internal/models"
)

const appID = "contractor"

// EventPublisher announces deployment outcomes.
type EventPublisher interface {
	PublishDeployment(ctx context.Context, event models.DeploymentEvent) error
}

// RabbitPublisher owns its connection and channel.
type RabbitPublisher struct {
	conn    *amqp.Connection
	mu      sync.Mutex // amqp channels are not safe for concurrent publishing
	channel *amqp.Channel
	queue   string
	logger  *zap.Logger
}

var _ EventPublisher = (*RabbitPublisher)(nil)

// Dial connects and declares a durable queue.
func Dial(url, queue string, logger *zap.Logger) (*RabbitPublisher, error) {
	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}
	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open RabbitMQ channel: %w", err)
	}
	if _, err := ch.QueueDeclare(queue, true, false, false, false, amqp.Table{"x-queue-mode": "lazy"}); err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare queue %q: %w", queue, err)
	}

	log := logger.Named("publisher").With(zap.String("queue", queue))
	log.Info("Deployment event queue declared")
	return &RabbitPublisher{conn: conn, channel: ch, queue: queue, logger: log}, nil
}

func (p *RabbitPublisher) PublishDeployment(ctx context.Context, event models.DeploymentEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode deployment event %s: %w", event.EventID, err)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	err = p.channel.PublishWithContext(ctx, "", p.queue, false, false, amqp.Publishing{
		ContentType:  "application/json",
		DeliveryMode: amqp.Persistent,
		Body:         body,
		Timestamp:    time.Now(),
		AppId:        appID,
		MessageId:    event.EventID,
		Type:         "deployment." + event.Status,
	})
	if err != nil {
		return fmt.Errorf("failed to publish deployment event %s: %w", event.EventID, err)
	}

	p.logger.Debug("Deployment event published",
		zap.String("event_id", event.EventID),
		zap.String("status", event.Status),
		zap.String("tx_id", event.TransactionID),
	)
	return nil
}

func (p *RabbitPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if err := p.channel.Close(); err != nil {
		_ = p.conn.Close()
		return err
	}
	return p.conn.Close()
}

// Nop drops every event.
type Nop struct{}

func (Nop) PublishDeployment(context.Context, models.DeploymentEvent) error { return nil }
