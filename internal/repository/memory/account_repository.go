package memory

import (
	"context"
	"slices"
	"strings"
	"sync"

	"github.com/cassiomorais/ledger/internal/domain/account"
	domainErrors "github.com/cassiomorais/ledger/internal/domain/errors"
)

// AccountRepository implements account.Store with an in-memory map.
// mu guards the map only; balances are guarded by the per-account locks.
type AccountRepository struct {
	mu       sync.RWMutex
	accounts map[string]*account.Account
}

// NewAccountRepository creates a new AccountRepository.
func NewAccountRepository() *AccountRepository {
	return &AccountRepository{
		accounts: make(map[string]*account.Account),
	}
}

// Create registers a new account.
func (r *AccountRepository) Create(ctx context.Context, a *account.Account) error {
	if a == nil || a.ID == "" {
		return domainErrors.NewValidationError("account_id", "cannot be empty")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.accounts[a.ID]; ok {
		return domainErrors.NewDuplicateAccountError(a.ID)
	}
	r.accounts[a.ID] = a
	return nil
}

// Get returns the live account registered under id.
func (r *AccountRepository) Get(ctx context.Context, id string) (*account.Account, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[id]
	if !ok {
		return nil, domainErrors.ErrAccountNotFound
	}
	return a, nil
}

func (r *AccountRepository) Exists(ctx context.Context, id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.accounts[id]
	return ok
}

// List returns the live accounts sorted by id.
func (r *AccountRepository) List(ctx context.Context) []*account.Account {
	r.mu.RLock()
	out := make([]*account.Account, 0, len(r.accounts))
	for _, a := range r.accounts {
		out = append(out, a)
	}
	r.mu.RUnlock()

	slices.SortFunc(out, func(a, b *account.Account) int {
		return strings.Compare(a.ID, b.ID)
	})
	return out
}

