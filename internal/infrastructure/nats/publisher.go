package nats

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/cassiomorais/ledger/internal/domain/event"
	"github.com/nats-io/nats.go"
)

const (
	// DefaultSubject is the subject notifications are published on.
	DefaultSubject = "ledger.notifications"

	// HeaderMsgID lets JetStream streams deduplicate redelivered publishes.
	HeaderMsgID     = nats.MsgIdHdr
	headerAccountID = "Ledger-Account-Id"
)

// MsgPublisher is the part of *nats.Conn the publisher needs.
type MsgPublisher interface {
	PublishMsg(msg *nats.Msg) error
}

type Publisher struct {
	conn    MsgPublisher
	subject string
}

func NewPublisher(conn MsgPublisher, subject string) *Publisher {
	if subject == "" {
		subject = DefaultSubject
	}
	return &Publisher{conn: conn, subject: subject}
}

func (p *Publisher) Subject() string {
	return p.subject
}

func (p *Publisher) PublishNotification(ctx context.Context, n event.Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	data, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := nats.NewMsg(p.subject)
	msg.Data = data
	msg.Header.Set(HeaderMsgID, n.ID)
	msg.Header.Set(headerAccountID, n.AccountID)

	if err := p.conn.PublishMsg(msg); err != nil {
		return fmt.Errorf("failed to publish notification: %w", err)
	}
	return nil
}
