package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cassiomorais/ledger/internal/domain/event"
	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// QueueSubscriber is the part of *nats.Conn the subscriber needs.
type QueueSubscriber interface {
	QueueSubscribe(subject, queue string, cb nats.MsgHandler) (*nats.Subscription, error)
}

// HandlerFunc receives one decoded notification.
type HandlerFunc func(ctx context.Context, n event.Notification) error

// DecodeNotification reads a notification published by Publisher.
func DecodeNotification(msg *nats.Msg) (event.Notification, error) {
	var n event.Notification
	if len(msg.Data) == 0 {
		return n, errors.New("empty notification payload")
	}
	if err := json.Unmarshal(msg.Data, &n); err != nil {
		return n, fmt.Errorf("failed to decode notification: %w", err)
	}
	if n.ID == "" {
		n.ID = msg.Header.Get(HeaderMsgID)
	}
	return n, nil
}

// Subscribe joins queue on subject so each notification reaches one worker.
// Core NATS has no redelivery: handler failures are logged and dropped.
func Subscribe(ctx context.Context, conn QueueSubscriber, subject, queue string, handle HandlerFunc, logger zerolog.Logger) (*nats.Subscription, error) {
	if subject == "" {
		subject = DefaultSubject
	}
	logger = logger.With().Str("component", "nats_subscriber").Str("subject", subject).Logger()

	sub, err := conn.QueueSubscribe(subject, queue, func(msg *nats.Msg) {
		n, err := DecodeNotification(msg)
		if err != nil {
			logger.Error().Err(err).Msg("Dropping malformed notification")
			return
		}
		if err := handle(ctx, n); err != nil {
			logger.Warn().Err(err).
				Str("notification_id", n.ID).
				Str("account_id", n.AccountID).
				Msg("Notification delivery failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", subject, err)
	}
	return sub, nil
}
