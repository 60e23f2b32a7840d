package account

import (
	"sync"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/errors"
	"github.com/shopspring/decimal"
)

// Account is a ledger entry point. The balance, version and update time are
// guarded by mu; Debit, Credit, HasSufficientFunds and LockedBalance must be
// called with the lock held.
type Account struct {
	ID        string
	CreatedAt time.Time

	mu        sync.Mutex
	balance   decimal.Decimal
	version   int
	updatedAt time.Time
}

// State is a consistent copy of an account taken under its lock.
type State struct {
	ID        string
	Balance   decimal.Decimal
	Version   int
	CreatedAt time.Time
	UpdatedAt time.Time
}

func NewAccount(id string, initialBalance decimal.Decimal) (*Account, error) {
	if id == "" {
		return nil, errors.NewValidationError("account_id", "cannot be empty")
	}
	if err := CheckBounds(initialBalance); err != nil {
		return nil, errors.NewValidationError("balance", err.Error())
	}
	if initialBalance.IsNegative() {
		return nil, errors.NewValidationError("balance", "cannot be negative")
	}

	now := time.Now()
	return &Account{
		ID:        id,
		CreatedAt: now,
		balance:   initialBalance,
		updatedAt: now,
	}, nil
}

func (a *Account) Lock() {
	a.mu.Lock()
}

func (a *Account) Unlock() {
	a.mu.Unlock()
}

// TryLock reports whether the lock was free and is now held by the caller.
func (a *Account) TryLock() bool {
	return a.mu.TryLock()
}

// HasSufficientFunds allows draining the account to exactly zero.
func (a *Account) HasSufficientFunds(amount decimal.Decimal) bool {
	return a.balance.GreaterThanOrEqual(amount)
}

func (a *Account) LockedBalance() decimal.Decimal {
	return a.balance
}

func (a *Account) Debit(amount decimal.Decimal) error {
	if !amount.IsPositive() || CheckBounds(amount) != nil {
		return errors.ErrInvalidAmount
	}
	if !a.HasSufficientFunds(amount) {
		return errors.NewInsufficientFundsError(a.ID, amount, a.balance)
	}

	a.balance = a.balance.Sub(amount)
	a.touch()
	return nil
}

func (a *Account) Credit(amount decimal.Decimal) error {
	if !amount.IsPositive() || CheckBounds(amount) != nil {
		return errors.ErrInvalidAmount
	}

	a.balance = a.balance.Add(amount)
	a.touch()
	return nil
}

// Balance takes the account lock for the read. Inside a transfer touching a
// different account it may reflect only one leg of that transfer.
func (a *Account) Balance() decimal.Decimal {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.balance
}

func (a *Account) Snapshot() State {
	a.mu.Lock()
	defer a.mu.Unlock()
	return State{
		ID:        a.ID,
		Balance:   a.balance,
		Version:   a.version,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.updatedAt,
	}
}

func (a *Account) touch() {
	a.version++
	a.updatedAt = time.Now()
}
