package account

import (
	"context"
)

// Store defines the interface for the canonical account set
type Store interface {
	// Create registers a new account; duplicates are rejected without effect
	Create(ctx context.Context, account *Account) error

	// Get returns the live account, not a copy
	Get(ctx context.Context, id string) (*Account, error)

	// Exists reports whether the id is registered
	Exists(ctx context.Context, id string) bool

	// List returns the live accounts ordered by id
	List(ctx context.Context) []*Account
}
