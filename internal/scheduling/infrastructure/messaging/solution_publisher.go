// Package messaging broadcasts computed solutions to other services
// (a notification service, a calendar sync worker) over RabbitMQ.
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// ExchangeName is the topic exchange every solution event is published
// to; the only routing key published is "solution.computed" (no
// failure event is sent).
const ExchangeName = "lessonscheduler.solution.events"

// SolutionComputedEvent is the JSON payload published after a
// successful solve.
type SolutionComputedEvent struct {
	StudioID    string                    `json:"studio_id"`
	RunID       string                    `json:"run_id"`
	Assignments []domain.LessonAssignment `json:"assignments"`
	Unscheduled []string                  `json:"unscheduled"`
	Metadata    domain.SolutionMetadata   `json:"metadata"`
	PublishedAt time.Time                 `json:"published_at"`
}

// SolutionPublisher publishes SolutionComputedEvent messages to the
// topic exchange.
type SolutionPublisher struct {
	conn    *amqp.Connection
	channel *amqp.Channel
	logger  *slog.Logger
	mu      sync.Mutex
}

// NewSolutionPublisher dials url, opens a channel, and declares the
// durable topic exchange.
func NewSolutionPublisher(url string, logger *slog.Logger) (*SolutionPublisher, error) {
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := amqp.Dial(url)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to RabbitMQ: %w", err)
	}

	ch, err := conn.Channel()
	if err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to open channel: %w", err)
	}

	err = ch.ExchangeDeclare(
		ExchangeName,
		"topic",
		true,  // durable
		false, // auto-deleted
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		_ = ch.Close()
		_ = conn.Close()
		return nil, fmt.Errorf("failed to declare exchange: %w", err)
	}

	logger.Info("solution publisher connected", "exchange", ExchangeName)

	return &SolutionPublisher{conn: conn, channel: ch, logger: logger}, nil
}

// PublishComputed announces a freshly computed solution under the
// "solution.computed" routing key.
func (p *SolutionPublisher) PublishComputed(ctx context.Context, studioID string, solution domain.ScheduleSolution) error {
	event := SolutionComputedEvent{
		StudioID:    studioID,
		RunID:       solution.Metadata.RunID,
		Assignments: solution.Assignments,
		Unscheduled: solution.Unscheduled,
		Metadata:    solution.Metadata,
		PublishedAt: time.Now(),
	}
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal solution event: %w", err)
	}
	return p.publish(ctx, "solution.computed", body)
}

func (p *SolutionPublisher) publish(ctx context.Context, routingKey string, payload []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.channel.PublishWithContext(ctx,
		ExchangeName,
		routingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Timestamp:    time.Now(),
			Body:         payload,
		},
	)
	if err != nil {
		p.logger.Error("failed to publish solution event", "routing_key", routingKey, "error", err)
		return err
	}

	p.logger.Debug("solution event published", "routing_key", routingKey, "size", len(payload))
	return nil
}

// Close shuts down the channel and connection.
func (p *SolutionPublisher) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.channel != nil {
		if err := p.channel.Close(); err != nil {
			p.logger.Warn("error closing channel", "error", err)
		}
	}
	if p.conn != nil {
		return p.conn.Close()
	}
	return nil
}
