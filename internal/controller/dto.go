package controller

import (
	"time"

	"github.com/cassiomorais/ledger/internal/domain/account"
	"github.com/cassiomorais/ledger/internal/service"
	"github.com/shopspring/decimal"
)

// --- Request DTOs ---
// Amounts arrive as JSON strings or numbers and decode straight into
// decimal.Decimal. Range checks on amounts live in the domain.

// CreateAccountRequest holds the input for opening an account.
type CreateAccountRequest struct {
	AccountID string          `json:"account_id" validate:"required,max=128"`
	Balance   decimal.Decimal `json:"balance"`
}

// TransferRequest holds the input for moving funds between two accounts.
type TransferRequest struct {
	AccountFrom string          `json:"account_from" validate:"required,max=128"`
	AccountTo   string          `json:"account_to" validate:"required,max=128"`
	Amount      decimal.Decimal `json:"amount"`
}

// --- Response DTOs ---

// AccountResponse represents an account in API responses.
type AccountResponse struct {
	AccountID string          `json:"account_id"`
	Balance   decimal.Decimal `json:"balance"`
	Version   int             `json:"version"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// TransferResponse represents a completed transfer.
type TransferResponse struct {
	TransferID  string          `json:"transfer_id"`
	AccountFrom string          `json:"account_from"`
	AccountTo   string          `json:"account_to"`
	Amount      decimal.Decimal `json:"amount"`
	CompletedAt time.Time       `json:"completed_at"`
}

// SummaryResponse is the ledger-wide total.
type SummaryResponse struct {
	Accounts     int             `json:"accounts"`
	TotalBalance decimal.Decimal `json:"total_balance"`
}

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code"`
}

// --- Conversion helpers ---

// FromAccount converts a domain account to an API response.
func FromAccount(a *account.Account) *AccountResponse {
	s := a.Snapshot()
	return &AccountResponse{
		AccountID: s.ID,
		Balance:   s.Balance,
		Version:   s.Version,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

func FromTransferResult(r *service.TransferResult) *TransferResponse {
	return &TransferResponse{
		TransferID:  r.TransferID.String(),
		AccountFrom: r.SourceAccountID,
		AccountTo:   r.DestinationAccountID,
		Amount:      r.Amount,
		CompletedAt: r.CompletedAt,
	}
}

func FromSummary(s service.LedgerSummary) *SummaryResponse {
	return &SummaryResponse{
		Accounts:     s.Accounts,
		TotalBalance: s.TotalBalance,
	}
}

func (r CreateAccountRequest) toService() service.CreateAccountRequest {
	return service.CreateAccountRequest{
		AccountID:      r.AccountID,
		InitialBalance: r.Balance,
	}
}

func (r TransferRequest) toService() service.TransferRequest {
	return service.TransferRequest{
		SourceAccountID:      r.AccountFrom,
		DestinationAccountID: r.AccountTo,
		Amount:               r.Amount,
	}
}
