package service

import (
	"context"
	"errors"

	"github.com/cassiomorais/ledger/internal/domain/account"
	domainErrors "github.com/cassiomorais/ledger/internal/domain/errors"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type AccountService struct {
	accounts account.Store
	logger   zerolog.Logger
	metrics  *observability.Metrics
	tracer   trace.Tracer
}

func NewAccountService(accounts account.Store, logger zerolog.Logger, metrics *observability.Metrics) *AccountService {
	return &AccountService{
		accounts: accounts,
		logger:   logger.With().Str("component", "account_service").Logger(),
		metrics:  metrics,
		tracer:   otel.Tracer(tracerName),
	}
}

func (s *AccountService) CreateAccount(ctx context.Context, req CreateAccountRequest) (*account.Account, error) {
	ctx, span := s.tracer.Start(ctx, "AccountService.CreateAccount",
		trace.WithAttributes(attribute.String("account.id", req.AccountID)))
	defer span.End()

	acct, err := account.NewAccount(req.AccountID, req.InitialBalance)
	if err == nil {
		err = s.accounts.Create(ctx, acct)
	}
	if err != nil {
		reason := "error"
		switch {
		case errors.Is(err, domainErrors.ErrDuplicateAccount):
			reason = "duplicate"
		case errors.Is(err, domainErrors.ErrValidationFailed):
			reason = "validation"
		}
		s.metrics.AccountCreateFailures.WithLabelValues(reason).Inc()
		span.RecordError(err)
		span.SetStatus(codes.Error, reason)
		s.logger.Info().Err(err).Str("account_id", req.AccountID).Msg("Account creation rejected")
		return nil, err
	}

	s.metrics.AccountsCreated.Inc()
	s.logger.Info().
		Str("account_id", acct.ID).
		Str("balance", req.InitialBalance.String()).
		Msg("Account created")
	return acct, nil
}

func (s *AccountService) GetAccount(ctx context.Context, id string) (*account.Account, error) {
	return s.accounts.Get(ctx, id)
}

func (s *AccountService) AccountExists(ctx context.Context, id string) bool {
	return s.accounts.Exists(ctx, id)
}

// Summary locks every account in id order, the same order transfers use,
// so the total reflects no half-applied transfer.
func (s *AccountService) Summary(ctx context.Context) LedgerSummary {
	accounts := s.accounts.List(ctx)

	for _, a := range accounts {
		a.Lock()
	}
	total := decimal.Zero
	for _, a := range accounts {
		total = total.Add(a.LockedBalance())
	}
	for i := len(accounts) - 1; i >= 0; i-- {
		accounts[i].Unlock()
	}

	return LedgerSummary{
		Accounts:     len(accounts),
		TotalBalance: total,
	}
}
