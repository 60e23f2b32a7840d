package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/account"
	domainErrors "github.com/cassiomorais/ledger/internal/domain/errors"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	"github.com/cassiomorais/ledger/internal/notification"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/cassiomorais/ledger/internal/service"

// errAccountReplaced means the store returned a different record than the one
// whose lock is held. Accounts are never replaced today.
var errAccountReplaced = errors.New("account record replaced during transfer")

// TransferService moves funds between two accounts. Transfers on disjoint
// account pairs run in parallel; there is no global transfer lock.
type TransferService struct {
	accounts account.Store
	notifier notification.Notifier
	logger   zerolog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

// NewTransferService creates a new TransferService.
func NewTransferService(
	accounts account.Store,
	notifier notification.Notifier,
	logger zerolog.Logger,
	metrics *observability.Metrics,
) *TransferService {
	return &TransferService{
		accounts: accounts,
		notifier: notifier,
		logger:   logger.With().Str("component", "transfer_service").Logger(),
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

// Transfer debits the source and credits the destination as one unit.
//
// Failures are reported in this order and leave every balance untouched:
// ErrInvalidAmount, ErrSameAccount, UnknownAccountError (source, then
// destination), InsufficientFundsError. On success the notifier is called
// for the source and then the destination, after both locks are released.
//
// ctx is used for tracing and notification delivery only. Once lock
// acquisition starts the transfer runs to completion.
func (s *TransferService) Transfer(ctx context.Context, req TransferRequest) (*TransferResult, error) {
	start := time.Now()
	transferID := uuid.New()
	amount := amountText(req.Amount)

	ctx, span := s.tracer.Start(ctx, "TransferService.Transfer", trace.WithAttributes(
		attribute.String("transfer.id", transferID.String()),
		attribute.String("transfer.source", req.SourceAccountID),
		attribute.String("transfer.destination", req.DestinationAccountID),
		attribute.String("transfer.amount", amount),
	))
	defer span.End()

	s.metrics.ActiveTransfers.Inc()
	source, destination, err := s.execute(ctx, req)
	s.metrics.ActiveTransfers.Dec()

	status := transferStatus(err)
	s.metrics.TransfersTotal.WithLabelValues(status).Inc()
	s.metrics.TransferDuration.WithLabelValues(status).Observe(time.Since(start).Seconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, status)

		event := s.logger.Info()
		if status == "error" {
			event = s.logger.Error()
		}
		event.Err(err).
			Str("transfer_id", transferID.String()).
			Str("source_account_id", req.SourceAccountID).
			Str("destination_account_id", req.DestinationAccountID).
			Str("amount", amount).
			Str("status", status).
			Msg("Transfer rejected")
		return nil, err
	}

	result := &TransferResult{
		TransferID:           transferID,
		SourceAccountID:      req.SourceAccountID,
		DestinationAccountID: req.DestinationAccountID,
		Amount:               req.Amount,
		CompletedAt:          time.Now().UTC(),
	}

	s.logger.Debug().
		Str("transfer_id", transferID.String()).
		Str("source_account_id", req.SourceAccountID).
		Str("destination_account_id", req.DestinationAccountID).
		Str("amount", amount).
		Msg("Transfer completed")

	s.notify(notification.ContextWithTransferID(ctx, transferID.String()), result, source, destination)

	return result, nil
}

func (s *TransferService) execute(ctx context.Context, req TransferRequest) (source, destination *account.Account, err error) {
	if !req.Amount.IsPositive() {
		return nil, nil, domainErrors.ErrInvalidAmount
	}
	if err := account.CheckBounds(req.Amount); err != nil {
		return nil, nil, fmt.Errorf("%w: %v", domainErrors.ErrInvalidAmount, err)
	}
	if req.SourceAccountID == req.DestinationAccountID {
		return nil, nil, domainErrors.ErrSameAccount
	}
	if !s.accounts.Exists(ctx, req.SourceAccountID) {
		return nil, nil, domainErrors.NewUnknownAccountError(req.SourceAccountID)
	}
	if !s.accounts.Exists(ctx, req.DestinationAccountID) {
		return nil, nil, domainErrors.NewUnknownAccountError(req.DestinationAccountID)
	}

	firstID, secondID := OrderedPair(req.SourceAccountID, req.DestinationAccountID)
	first, err := s.resolve(ctx, firstID)
	if err != nil {
		return nil, nil, err
	}
	second, err := s.resolve(ctx, secondID)
	if err != nil {
		return nil, nil, err
	}

	return s.applyLocked(ctx, first, second, req)
}

// applyLocked runs the check-and-mutate step with both account locks held.
// Locks are taken first then second and released second then first.
func (s *TransferService) applyLocked(ctx context.Context, first, second *account.Account, req TransferRequest) (source, destination *account.Account, err error) {
	first.Lock()
	defer first.Unlock()
	second.Lock()
	defer second.Unlock()

	// The sufficiency check must run against the live records, not the
	// references resolved before locking.
	if source, err = s.resolve(ctx, req.SourceAccountID); err != nil {
		return nil, nil, err
	}
	if destination, err = s.resolve(ctx, req.DestinationAccountID); err != nil {
		return nil, nil, err
	}
	if !isHeld(source, first, second) || !isHeld(destination, first, second) {
		return nil, nil, errAccountReplaced
	}

	if !source.HasSufficientFunds(req.Amount) {
		return nil, nil, domainErrors.NewInsufficientFundsError(source.ID, req.Amount, source.LockedBalance())
	}
	if err := source.Debit(req.Amount); err != nil {
		return nil, nil, err
	}
	if err := destination.Credit(req.Amount); err != nil {
		if rbErr := source.Credit(req.Amount); rbErr != nil {
			return nil, nil, fmt.Errorf("credit %s: %w (rollback failed: %v)", destination.ID, err, rbErr)
		}
		return nil, nil, err
	}

	return source, destination, nil
}

func (s *TransferService) resolve(ctx context.Context, id string) (*account.Account, error) {
	acct, err := s.accounts.Get(ctx, id)
	if err != nil {
		if errors.Is(err, domainErrors.ErrAccountNotFound) {
			return nil, domainErrors.NewUnknownAccountError(id)
		}
		return nil, fmt.Errorf("get account %s: %w", id, err)
	}
	return acct, nil
}

// notify never runs under an account lock. Both calls are always attempted;
// a delivery failure does not undo the completed transfer.
func (s *TransferService) notify(ctx context.Context, result *TransferResult, source, destination *account.Account) {
	amount := formatAmount(result.Amount)

	s.deliver(ctx, "outbound", source,
		fmt.Sprintf("Transferred %s to account %s", amount, result.DestinationAccountID))
	s.deliver(ctx, "inbound", destination,
		fmt.Sprintf("Received %s from account %s", amount, result.SourceAccountID))
}

func (s *TransferService) deliver(ctx context.Context, direction string, acct *account.Account, message string) {
	if err := s.notifier.Notify(ctx, acct, message); err != nil {
		s.metrics.NotificationsTotal.WithLabelValues(direction, "failed").Inc()
		s.logger.Warn().Err(err).
			Str("transfer_id", notification.TransferIDFromContext(ctx)).
			Str("account_id", acct.ID).
			Str("direction", direction).
			Msg("Failed to deliver transfer notification")
		return
	}
	s.metrics.NotificationsTotal.WithLabelValues(direction, "delivered").Inc()
}

// amountText renders a request amount for logs and spans without expanding
// values that failed the bounds check.
func amountText(d decimal.Decimal) string {
	if account.CheckBounds(d) != nil {
		return "out_of_range"
	}
	return d.String()
}

// formatAmount keeps at least two decimal places, and more when the amount
// carries them: 50 -> "50.00", 0.125 -> "0.125".
func formatAmount(d decimal.Decimal) string {
	places := int32(2)
	if -d.Exponent() > places {
		places = -d.Exponent()
	}
	return d.StringFixed(places)
}

func isHeld(acct, first, second *account.Account) bool {
	return acct == first || acct == second
}

func transferStatus(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, domainErrors.ErrInvalidAmount):
		return "invalid_amount"
	case errors.Is(err, domainErrors.ErrSameAccount):
		return "same_account"
	case errors.Is(err, domainErrors.ErrAccountNotFound):
		return "unknown_account"
	case errors.Is(err, domainErrors.ErrInsufficientFunds):
		return "insufficient_funds"
	default:
		return "error"
	}
}
