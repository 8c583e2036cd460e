// Package resilience wraps outbound notification calls with a circuit
// breaker so a struggling downstream consumer (the message broker, a
// webhook receiver) cannot stall the solver itself.
package resilience

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/sony/gobreaker/v2"

	"github.com/studiosoft/lessonscheduler/internal/scheduling/domain"
)

// ErrNotifierOpen is returned instead of the underlying publish error
// once the breaker has tripped open, so callers can distinguish
// "the broker rejected this message" from "we stopped even trying".
var ErrNotifierOpen = errors.New("solution notifier circuit open")

// Notifier is the narrow interface the breaker wraps; satisfied by
// messaging.SolutionPublisher.
type Notifier interface {
	PublishComputed(ctx context.Context, studioID string, solution domain.ScheduleSolution) error
}

// NotifierBreakerConfig tunes the breaker; zero value yields the
// defaults below.
type NotifierBreakerConfig struct {
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

// DefaultNotifierBreakerConfig mirrors the values the engine executor
// uses for its own breakers.
func DefaultNotifierBreakerConfig() NotifierBreakerConfig {
	return NotifierBreakerConfig{
		MaxRequests:      3,
		Interval:         10 * time.Second,
		Timeout:          30 * time.Second,
		FailureThreshold: 5,
	}
}

// NotifierBreaker guards a Notifier behind a generic circuit breaker.
type NotifierBreaker struct {
	notifier Notifier
	breaker  *gobreaker.CircuitBreaker[any]
	logger   *slog.Logger
}

// NewNotifierBreaker wraps notifier with a breaker configured per cfg.
func NewNotifierBreaker(notifier Notifier, cfg NotifierBreakerConfig, logger *slog.Logger) *NotifierBreaker {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg == (NotifierBreakerConfig{}) {
		cfg = DefaultNotifierBreakerConfig()
	}

	settings := gobreaker.Settings{
		Name:        "solution-notifier",
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.FailureThreshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Info("circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	}

	return &NotifierBreaker{
		notifier: notifier,
		breaker:  gobreaker.NewCircuitBreaker[any](settings),
		logger:   logger,
	}
}

// PublishComputed calls through to the wrapped notifier, tripping the
// breaker open after FailureThreshold consecutive failures.
func (b *NotifierBreaker) PublishComputed(ctx context.Context, studioID string, solution domain.ScheduleSolution) error {
	_, err := b.breaker.Execute(func() (any, error) {
		return nil, b.notifier.PublishComputed(ctx, studioID, solution)
	})
	if errors.Is(err, gobreaker.ErrOpenState) {
		b.logger.Warn("solution notifier circuit open, dropping publish", "studio_id", studioID)
		return ErrNotifierOpen
	}
	return err
}
