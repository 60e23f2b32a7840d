package notification

import (
	"context"

	"github.com/cassiomorais/ledger/internal/domain/account"
	"github.com/rs/zerolog"
)

// Notifier delivers a human-readable message to an account holder. It is
// invoked strictly after the transfer released its account locks.
type Notifier interface {
	Notify(ctx context.Context, acct *account.Account, message string) error
}

type contextKey string

const transferIDKey contextKey = "transfer_id"

// ContextWithTransferID tags ctx so notifiers can correlate messages.
func ContextWithTransferID(ctx context.Context, transferID string) context.Context {
	return context.WithValue(ctx, transferIDKey, transferID)
}

func TransferIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(transferIDKey).(string)
	return id
}

// LogNotifier writes notifications to the application log.
type LogNotifier struct {
	logger zerolog.Logger
}

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger.With().Str("component", "notifier").Logger()}
}

func (n *LogNotifier) Notify(ctx context.Context, acct *account.Account, message string) error {
	n.logger.Info().
		Str("account_id", acct.ID).
		Str("transfer_id", TransferIDFromContext(ctx)).
		Msg(message)
	return nil
}
