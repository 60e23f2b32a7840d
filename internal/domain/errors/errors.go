package errors

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	// Account errors
	ErrAccountNotFound   = errors.New("account not found")
	ErrDuplicateAccount  = errors.New("account already exists")
	ErrInsufficientFunds = errors.New("insufficient funds")

	// Transfer errors
	ErrInvalidAmount = errors.New("transfer amount must be positive")
	ErrSameAccount   = errors.New("source and destination accounts must differ")

	// Notification errors
	ErrNotificationFailed = errors.New("notification delivery failed")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
)

// UnknownAccountError reports a transfer endpoint that is not in the store.
type UnknownAccountError struct {
	AccountID string
}

func (e *UnknownAccountError) Error() string {
	return fmt.Sprintf("account does not exist: %s", e.AccountID)
}

func (e *UnknownAccountError) Unwrap() error {
	return ErrAccountNotFound
}

// NewUnknownAccountError creates a new unknown account error
func NewUnknownAccountError(accountID string) *UnknownAccountError {
	return &UnknownAccountError{AccountID: accountID}
}

// InsufficientFundsError carries the balance observed under the account lock.
type InsufficientFundsError struct {
	AccountID string
	Requested decimal.Decimal
	Available decimal.Decimal
}

func (e *InsufficientFundsError) Error() string {
	return fmt.Sprintf("insufficient funds for account %s: requested %s, available %s",
		e.AccountID, e.Requested.String(), e.Available.String())
}

func (e *InsufficientFundsError) Unwrap() error {
	return ErrInsufficientFunds
}

// NewInsufficientFundsError creates a new insufficient funds error
func NewInsufficientFundsError(accountID string, requested, available decimal.Decimal) *InsufficientFundsError {
	return &InsufficientFundsError{
		AccountID: accountID,
		Requested: requested,
		Available: available,
	}
}

// DuplicateAccountError is returned when an account id is already registered.
type DuplicateAccountError struct {
	ID string
}

func (e *DuplicateAccountError) Error() string {
	return fmt.Sprintf("account id %s already exists", e.ID)
}

func (e *DuplicateAccountError) Unwrap() error {
	return ErrDuplicateAccount
}

// NewDuplicateAccountError creates a new duplicate account error
func NewDuplicateAccountError(id string) *DuplicateAccountError {
	return &DuplicateAccountError{ID: id}
}

// ValidationError represents a validation error
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidationFailed
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}
