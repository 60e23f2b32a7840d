package testutil

import (
	"context"
	"testing"

	"github.com/cassiomorais/ledger/internal/domain/account"
	"github.com/cassiomorais/ledger/internal/repository/memory"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

// Dec parses a decimal literal and panics on malformed input.
func Dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func NewTestAccount(t testing.TB, id, balance string) *account.Account {
	t.Helper()
	acct, err := account.NewAccount(id, Dec(balance))
	require.NoError(t, err)
	return acct
}

// NewSeededStore returns a store holding the given id -> balance accounts.
func NewSeededStore(t testing.TB, balances map[string]string) *memory.AccountRepository {
	t.Helper()
	store := memory.NewAccountRepository()
	for id, balance := range balances {
		require.NoError(t, store.Create(context.Background(), NewTestAccount(t, id, balance)))
	}
	return store
}

// TotalBalance sums balances one account at a time; call it only when no
// transfer is in flight.
func TotalBalance(store account.Store) decimal.Decimal {
	total := decimal.Zero
	for _, a := range store.List(context.Background()) {
		total = total.Add(a.Balance())
	}
	return total
}
