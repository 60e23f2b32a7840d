package service

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Controllers convert their HTTP DTOs to this type.
type CreateAccountRequest struct {
	AccountID      string
	InitialBalance decimal.Decimal
}

// Controllers convert their HTTP DTOs to this type.
type TransferRequest struct {
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
}

type TransferResult struct {
	TransferID           uuid.UUID
	SourceAccountID      string
	DestinationAccountID string
	Amount               decimal.Decimal
	CompletedAt          time.Time
}

// LedgerSummary is read under every account lock, so TotalBalance is a
// consistent snapshot.
type LedgerSummary struct {
	Accounts     int
	TotalBalance decimal.Decimal
}
