package notification

import (
	"context"
	"fmt"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/account"
	domainErrors "github.com/cassiomorais/ledger/internal/domain/errors"
	"github.com/cassiomorais/ledger/internal/domain/event"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	"github.com/cassiomorais/ledger/pkg/retry"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/sony/gobreaker/v2"
)

// Publisher writes one notification to a durable channel.
type Publisher interface {
	PublishNotification(ctx context.Context, msg event.Notification) error
}

type StreamConfig struct {
	Name             string
	MaxAttempts      uint
	RetryDelay       time.Duration
	MaxRetryDelay    time.Duration
	BreakerThreshold uint32
	BreakerTimeout   time.Duration
}

// StreamNotifier publishes notifications with retries behind a circuit breaker.
type StreamNotifier struct {
	publisher Publisher
	breaker   *gobreaker.CircuitBreaker[struct{}]
	retry     retry.Config
	logger    zerolog.Logger
}

func NewStreamNotifier(publisher Publisher, cfg StreamConfig, logger zerolog.Logger, metrics *observability.Metrics) *StreamNotifier {
	if cfg.Name == "" {
		cfg.Name = "notifications"
	}
	if cfg.BreakerThreshold == 0 {
		cfg.BreakerThreshold = 5
	}

	logger = logger.With().Str("component", "stream_notifier").Logger()

	n := &StreamNotifier{
		publisher: publisher,
		logger:    logger,
		retry: retry.Config{
			MaxAttempts:  cfg.MaxAttempts,
			InitialDelay: cfg.RetryDelay,
			MaxDelay:     cfg.MaxRetryDelay,
			OnRetry: func(attempt uint, err error) {
				logger.Debug().Err(err).Uint("attempt", attempt).Msg("Retrying notification publish")
			},
		},
	}
	if n.retry.MaxAttempts == 0 {
		n.retry.MaxAttempts = 1
	}

	threshold := cfg.BreakerThreshold
	n.breaker = gobreaker.NewCircuitBreaker[struct{}](gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: 1,
		Timeout:     cfg.BreakerTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn().Str("breaker", name).Str("from", from.String()).Str("to", to.String()).
				Msg("Notification circuit breaker changed state")
			if metrics != nil {
				metrics.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
			}
		},
	})
	if metrics != nil {
		metrics.CircuitBreakerState.WithLabelValues(cfg.Name).Set(float64(gobreaker.StateClosed))
	}

	return n
}

func (n *StreamNotifier) Notify(ctx context.Context, acct *account.Account, message string) error {
	msg := event.Notification{
		ID:         uuid.NewString(),
		TransferID: TransferIDFromContext(ctx),
		AccountID:  acct.ID,
		Message:    message,
		CreatedAt:  time.Now().UTC(),
	}

	_, err := n.breaker.Execute(func() (struct{}, error) {
		return struct{}{}, retry.Do(ctx, n.retry, func() error {
			return n.publisher.PublishNotification(ctx, msg)
		})
	})
	if err != nil {
		return fmt.Errorf("%w: account %s: %w", domainErrors.ErrNotificationFailed, acct.ID, err)
	}
	return nil
}

// State exposes the breaker state for health reporting.
func (n *StreamNotifier) State() gobreaker.State {
	return n.breaker.State()
}
