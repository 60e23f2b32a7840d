package notification

import (
	"context"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/event"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	infraRedis "github.com/cassiomorais/ledger/internal/infrastructure/redis"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

// StreamReader is the consumer-group side of the notification stream.
type StreamReader interface {
	Read(ctx context.Context) ([]redis.XMessage, error)
	Ack(ctx context.Context, messageID string) error
	ClaimIdle(ctx context.Context, minIdle time.Duration) ([]redis.XMessage, error)
}

// DeliverFunc hands one notification to the account holder's channel.
type DeliverFunc func(ctx context.Context, msg event.Notification) error

type RelayConfig struct {
	// ClaimMinIdle is how long an unacked entry sits before this relay takes
	// it over. Zero disables claiming.
	ClaimMinIdle time.Duration
	// ErrorBackoff is the pause after a failed stream read.
	ErrorBackoff time.Duration
}

// Relay drains the notification stream and delivers each entry. Entries are
// acked after a successful delivery or when they cannot be decoded; failed
// deliveries stay pending and are claimed again once idle.
type Relay struct {
	reader  StreamReader
	deliver DeliverFunc
	cfg     RelayConfig
	logger  zerolog.Logger
	metrics *observability.Metrics
}

func NewRelay(reader StreamReader, deliver DeliverFunc, cfg RelayConfig, logger zerolog.Logger, metrics *observability.Metrics) *Relay {
	if cfg.ErrorBackoff <= 0 {
		cfg.ErrorBackoff = time.Second
	}
	return &Relay{
		reader:  reader,
		deliver: deliver,
		cfg:     cfg,
		logger:  logger.With().Str("component", "notification_relay").Logger(),
		metrics: metrics,
	}
}

// LogDelivery delivers notifications by writing them to logger.
func LogDelivery(logger zerolog.Logger) DeliverFunc {
	logger = logger.With().Str("component", "notification_delivery").Logger()
	return func(ctx context.Context, msg event.Notification) error {
		logger.Info().
			Str("notification_id", msg.ID).
			Str("transfer_id", msg.TransferID).
			Str("account_id", msg.AccountID).
			Time("created_at", msg.CreatedAt).
			Msg(msg.Message)
		return nil
	}
}

// Run processes the stream until ctx is cancelled.
func (r *Relay) Run(ctx context.Context) error {
	for {
		if ctx.Err() != nil {
			return nil
		}

		if r.cfg.ClaimMinIdle > 0 {
			claimed, err := r.reader.ClaimIdle(ctx, r.cfg.ClaimMinIdle)
			if err != nil && ctx.Err() == nil {
				r.logger.Warn().Err(err).Msg("Failed to claim idle notifications")
			}
			r.process(ctx, claimed)
		}

		messages, err := r.reader.Read(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			r.logger.Error().Err(err).Msg("Failed to read from notification stream")
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(r.cfg.ErrorBackoff):
			}
			continue
		}
		r.process(ctx, messages)
	}
}

func (r *Relay) process(ctx context.Context, messages []redis.XMessage) {
	for _, entry := range messages {
		msg, err := infraRedis.ParseNotification(entry.Values)
		if err != nil {
			r.logger.Error().Err(err).Str("entry_id", entry.ID).Msg("Dropping malformed notification")
			r.count("invalid")
			r.ack(ctx, entry.ID)
			continue
		}

		if err := r.deliver(ctx, msg); err != nil {
			r.logger.Warn().Err(err).
				Str("entry_id", entry.ID).
				Str("account_id", msg.AccountID).
				Msg("Notification delivery failed, leaving pending")
			r.count("failed")
			continue
		}

		r.count("delivered")
		r.ack(ctx, entry.ID)
	}
}

func (r *Relay) ack(ctx context.Context, id string) {
	if err := r.reader.Ack(ctx, id); err != nil {
		r.logger.Error().Err(err).Str("entry_id", id).Msg("Failed to ack notification")
	}
}

func (r *Relay) count(status string) {
	if r.metrics != nil {
		r.metrics.NotificationsRelayed.WithLabelValues(status).Inc()
	}
}
