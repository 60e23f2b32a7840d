package service

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"testing"
	"time"

	"github.com/cassiomorais/ledger/internal/domain/account"
	domainErrors "github.com/cassiomorais/ledger/internal/domain/errors"
	"github.com/cassiomorais/ledger/internal/infrastructure/observability"
	"github.com/cassiomorais/ledger/internal/notification"
	"github.com/cassiomorais/ledger/internal/repository/memory"
	"github.com/cassiomorais/ledger/internal/testutil"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"
)

// --- Test Helpers ---

type transferFixture struct {
	svc      *TransferService
	store    *memory.AccountRepository
	notifier *testutil.MockNotifier
	metrics  *observability.Metrics
}

func setupTransferService(t *testing.T, balances map[string]string) *transferFixture {
	t.Helper()
	store := testutil.NewSeededStore(t, balances)
	notifier := testutil.NewMockNotifier()
	metrics := observability.NewMetrics("test", prometheus.NewRegistry())
	return &transferFixture{
		svc:      NewTransferService(store, notifier, zerolog.Nop(), metrics),
		store:    store,
		notifier: notifier,
		metrics:  metrics,
	}
}

func (f *transferFixture) balance(t *testing.T, id string) string {
	t.Helper()
	acct, err := f.store.Get(context.Background(), id)
	require.NoError(t, err)
	return acct.Balance().StringFixed(2)
}

func transfer(src, dst, amount string) TransferRequest {
	return TransferRequest{
		SourceAccountID:      src,
		DestinationAccountID: dst,
		Amount:               testutil.Dec(amount),
	}
}

// waitOrFail fails the test if fn does not return within d; used to turn a
// deadlock into a test failure instead of a hung run.
func waitOrFail(t *testing.T, d time.Duration, fn func() error) {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(d):
		t.Fatalf("operation did not finish within %s: possible deadlock", d)
	}
}

// --- Transfer Tests ---

func TestTransfer_Success(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100.00", "B": "50.00"})

	result, err := f.svc.Transfer(context.Background(), transfer("A", "B", "50.00"))
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, result.TransferID)
	assert.Equal(t, "A", result.SourceAccountID)
	assert.Equal(t, "B", result.DestinationAccountID)
	assert.True(t, result.Amount.Equal(testutil.Dec("50")))

	assert.Equal(t, "50.00", f.balance(t, "A"))
	assert.Equal(t, "100.00", f.balance(t, "B"))

	calls := f.notifier.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "A", calls[0].AccountID, "source is notified first")
	assert.Equal(t, "Transferred 50.00 to account B", calls[0].Message)
	assert.Equal(t, "B", calls[1].AccountID)
	assert.Equal(t, "Received 50.00 from account A", calls[1].Message)

	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.TransfersTotal.WithLabelValues("success")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("outbound", "delivered")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("inbound", "delivered")))
	assert.Equal(t, 0.0, promtest.ToFloat64(f.metrics.ActiveTransfers))
}

func TestTransfer_InsufficientFundsAfterSuccess(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100.00", "B": "50.00"})
	ctx := context.Background()

	_, err := f.svc.Transfer(ctx, transfer("A", "B", "50.00"))
	require.NoError(t, err)
	f.notifier.Reset()

	_, err = f.svc.Transfer(ctx, transfer("A", "B", "150.00"))

	var insufficient *domainErrors.InsufficientFundsError
	require.ErrorAs(t, err, &insufficient)
	assert.Equal(t, "A", insufficient.AccountID)
	assert.Equal(t, "150.00", insufficient.Requested.StringFixed(2))
	assert.Equal(t, "50.00", insufficient.Available.StringFixed(2))

	assert.Equal(t, "50.00", f.balance(t, "A"))
	assert.Equal(t, "100.00", f.balance(t, "B"))
	assert.Empty(t, f.notifier.Calls())
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.TransfersTotal.WithLabelValues("insufficient_funds")))
}

func TestTransfer_DrainToZero(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "10.01", "B": "0"})

	_, err := f.svc.Transfer(context.Background(), transfer("A", "B", "10.01"))
	require.NoError(t, err)
	assert.Equal(t, "0.00", f.balance(t, "A"))
	assert.Equal(t, "10.01", f.balance(t, "B"))
}

func TestTransfer_InvalidAmount(t *testing.T) {
	for _, amount := range []string{"0", "0.00", "-1", "-0.01"} {
		t.Run(amount, func(t *testing.T) {
			f := setupTransferService(t, map[string]string{"A": "100", "B": "100"})

			_, err := f.svc.Transfer(context.Background(), transfer("A", "B", amount))
			assert.ErrorIs(t, err, domainErrors.ErrInvalidAmount)
			assert.Equal(t, "100.00", f.balance(t, "A"))
			assert.Equal(t, "100.00", f.balance(t, "B"))
			assert.Empty(t, f.notifier.Calls())
		})
	}
}

// Out-of-range amounts are refused before any lock is taken, so a held lock
// on either account cannot delay the rejection and no balance picks up the
// extreme scale.
func TestTransfer_AmountOutOfBounds(t *testing.T) {
	for _, amount := range []string{
		"1e-30000000",
		"0.0000000000000000001",
		"1e18",
		"1e30000000",
		"123456789012345678901234567890",
	} {
		t.Run(amount, func(t *testing.T) {
			f := setupTransferService(t, map[string]string{"A": "100.00", "B": "100.00"})
			for _, id := range []string{"A", "B"} {
				acct, err := f.store.Get(context.Background(), id)
				require.NoError(t, err)
				acct.Lock()
				defer acct.Unlock()
			}

			waitOrFail(t, 2*time.Second, func() error {
				_, err := f.svc.Transfer(context.Background(), transfer("A", "B", amount))
				if !errors.Is(err, domainErrors.ErrInvalidAmount) {
					return fmt.Errorf("expected ErrInvalidAmount, got %v", err)
				}
				return nil
			})
			assert.Empty(t, f.notifier.Calls())
			assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.TransfersTotal.WithLabelValues("invalid_amount")))
		})
	}
}

func TestTransfer_MaxScaleAmountAccepted(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "1", "B": "0"})

	_, err := f.svc.Transfer(context.Background(), transfer("A", "B", "0.000000000000000001"))
	require.NoError(t, err)
	a, err := f.store.Get(context.Background(), "A")
	require.NoError(t, err)
	assert.Equal(t, "0.999999999999999999", a.Balance().String())
}

// Amount is checked before existence: a bad amount against unknown accounts
// still reports the amount.
func TestTransfer_AmountCheckedFirst(t *testing.T) {
	f := setupTransferService(t, nil)

	_, err := f.svc.Transfer(context.Background(), transfer("ghost", "phantom", "0"))
	assert.ErrorIs(t, err, domainErrors.ErrInvalidAmount)
}

func TestTransfer_SameAccountRejected(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100"})

	_, err := f.svc.Transfer(context.Background(), transfer("A", "A", "10"))
	assert.ErrorIs(t, err, domainErrors.ErrSameAccount)
	assert.Equal(t, "100.00", f.balance(t, "A"))
	assert.Empty(t, f.notifier.Calls())
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.TransfersTotal.WithLabelValues("same_account")))
}

func TestTransfer_UnknownSource(t *testing.T) {
	f := setupTransferService(t, map[string]string{"B": "50.00"})
	b, err := f.store.Get(context.Background(), "B")
	require.NoError(t, err)

	// Hold B's lock: the call must fail without ever trying to lock B.
	b.Lock()
	defer b.Unlock()

	waitOrFail(t, 2*time.Second, func() error {
		_, err := f.svc.Transfer(context.Background(), transfer("ghost", "B", "10.00"))

		var unknown *domainErrors.UnknownAccountError
		if !errors.As(err, &unknown) {
			return fmt.Errorf("expected UnknownAccountError, got %v", err)
		}
		if unknown.AccountID != "ghost" {
			return fmt.Errorf("expected ghost, got %s", unknown.AccountID)
		}
		return nil
	})
	assert.Empty(t, f.notifier.Calls())
}

func TestTransfer_UnknownDestination(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100"})

	_, err := f.svc.Transfer(context.Background(), transfer("A", "nobody", "10"))

	var unknown *domainErrors.UnknownAccountError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "nobody", unknown.AccountID)
	assert.ErrorIs(t, err, domainErrors.ErrAccountNotFound)
	assert.Equal(t, "100.00", f.balance(t, "A"))
}

// Source is checked before destination.
func TestTransfer_BothUnknownReportsSource(t *testing.T) {
	f := setupTransferService(t, nil)

	_, err := f.svc.Transfer(context.Background(), transfer("x", "y", "1"))

	var unknown *domainErrors.UnknownAccountError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "x", unknown.AccountID)
}

func TestTransfer_NotificationsAfterLockRelease(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100", "B": "100"})

	_, err := f.svc.Transfer(context.Background(), transfer("B", "A", "1"))
	require.NoError(t, err)

	calls := f.notifier.Calls()
	require.Len(t, calls, 2)
	assert.Equal(t, "B", calls[0].AccountID)
	for _, c := range calls {
		assert.True(t, c.LockFree, "notifier for %s called while its lock was held", c.AccountID)
	}
}

func TestTransfer_NotificationFailureDoesNotFailTransfer(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100", "B": "0"})
	f.notifier.NotifyFunc = func(ctx context.Context, acct *account.Account, message string) error {
		if acct.ID == "A" {
			return domainErrors.ErrNotificationFailed
		}
		return nil
	}

	_, err := f.svc.Transfer(context.Background(), transfer("A", "B", "25"))
	require.NoError(t, err)

	assert.Equal(t, "75.00", f.balance(t, "A"))
	assert.Equal(t, "25.00", f.balance(t, "B"))
	require.Len(t, f.notifier.Calls(), 2, "destination is still notified")
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("outbound", "failed")))
	assert.Equal(t, 1.0, promtest.ToFloat64(f.metrics.NotificationsTotal.WithLabelValues("inbound", "delivered")))
}

func TestTransfer_CarriesTransferIDToNotifier(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "100", "B": "0"})
	var seen []string
	f.notifier.NotifyFunc = func(ctx context.Context, acct *account.Account, message string) error {
		seen = append(seen, notification.TransferIDFromContext(ctx))
		return nil
	}

	result, err := f.svc.Transfer(context.Background(), transfer("A", "B", "1"))
	require.NoError(t, err)
	assert.Equal(t, []string{result.TransferID.String(), result.TransferID.String()}, seen)
}

// Re-resolution inside the critical section surfaces store errors without
// mutating anything.
func TestTransfer_StoreErrorUnderLock(t *testing.T) {
	base := testutil.NewSeededStore(t, map[string]string{"A": "100", "B": "100"})
	calls := 0
	store := &testutil.MockAccountStore{Store: base}
	store.GetFunc = func(ctx context.Context, id string) (*account.Account, error) {
		calls++
		if calls > 2 {
			return nil, errors.New("store unavailable")
		}
		return base.Get(ctx, id)
	}
	notifier := testutil.NewMockNotifier()
	svc := NewTransferService(store, notifier, zerolog.Nop(), observability.NewMetrics("test", prometheus.NewRegistry()))

	_, err := svc.Transfer(context.Background(), transfer("A", "B", "10"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store unavailable")

	a, _ := base.Get(context.Background(), "A")
	b, _ := base.Get(context.Background(), "B")
	assert.Equal(t, "100.00", a.Balance().StringFixed(2))
	assert.Equal(t, "100.00", b.Balance().StringFixed(2))
	assert.True(t, a.TryLock(), "lock on A released")
	a.Unlock()
	assert.True(t, b.TryLock(), "lock on B released")
	b.Unlock()
	assert.Empty(t, notifier.Calls())
}

// A record swapped between lock acquisition and re-resolution is refused.
func TestTransfer_ReplacedAccountRefused(t *testing.T) {
	base := testutil.NewSeededStore(t, map[string]string{"A": "100", "B": "100"})
	impostor := testutil.NewTestAccount(t, "A", "1000")
	calls := 0
	store := &testutil.MockAccountStore{Store: base}
	store.GetFunc = func(ctx context.Context, id string) (*account.Account, error) {
		calls++
		if calls > 2 && id == "A" {
			return impostor, nil
		}
		return base.Get(ctx, id)
	}
	svc := NewTransferService(store, testutil.NewMockNotifier(), zerolog.Nop(), observability.NewMetrics("test", prometheus.NewRegistry()))

	_, err := svc.Transfer(context.Background(), transfer("A", "B", "10"))
	assert.ErrorIs(t, err, errAccountReplaced)
	assert.Equal(t, "1000.00", impostor.Balance().StringFixed(2))
}

// --- Concurrency Tests ---

// A->B and B->A at the same time, many times over, must terminate and leave
// both balances where they started.
func TestTransfer_ConcurrentReversedPairs(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "1000.00", "B": "1000.00"})
	const rounds = 500

	waitOrFail(t, 10*time.Second, func() error {
		var g errgroup.Group
		for i := 0; i < rounds; i++ {
			g.Go(func() error {
				_, err := f.svc.Transfer(context.Background(), transfer("A", "B", "1.00"))
				return err
			})
			g.Go(func() error {
				_, err := f.svc.Transfer(context.Background(), transfer("B", "A", "1.00"))
				return err
			})
		}
		return g.Wait()
	})

	assert.Equal(t, "1000.00", f.balance(t, "A"))
	assert.Equal(t, "1000.00", f.balance(t, "B"))
	assert.Len(t, f.notifier.Calls(), 4*rounds)
}

// Full-balance swaps race for the same funds; some legs are rejected but
// nothing is created or destroyed.
func TestTransfer_FullBalanceSwapsConserveMoney(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "10.00", "B": "10.00"})
	const workers = 200

	waitOrFail(t, 10*time.Second, func() error {
		var g errgroup.Group
		for i := 0; i < workers; i++ {
			g.Go(func() error {
				if _, err := f.svc.Transfer(context.Background(), transfer("A", "B", "10.00")); err != nil {
					if errors.Is(err, domainErrors.ErrInsufficientFunds) {
						return nil
					}
					return err
				}
				_, err := f.svc.Transfer(context.Background(), transfer("B", "A", "10.00"))
				if errors.Is(err, domainErrors.ErrInsufficientFunds) {
					return nil
				}
				return err
			})
		}
		return g.Wait()
	})

	assert.Equal(t, "20.00", testutil.TotalBalance(f.store).StringFixed(2))
	for _, id := range []string{"A", "B"} {
		assert.False(t, testutil.Dec(f.balance(t, id)).IsNegative())
	}
}

// Each worker alternates A->B then B->A, so at most workers*5 is ever out of
// A. A lost update would surface as a spurious InsufficientFunds.
func TestTransfer_AtomicityUnderContention(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "500.00", "B": "500.00"})
	const workers, iterations = 50, 40

	waitOrFail(t, 10*time.Second, func() error {
		var g errgroup.Group
		for w := 0; w < workers; w++ {
			g.Go(func() error {
				for i := 0; i < iterations; i++ {
					if _, err := f.svc.Transfer(context.Background(), transfer("A", "B", "5.00")); err != nil {
						return err
					}
					if _, err := f.svc.Transfer(context.Background(), transfer("B", "A", "5.00")); err != nil {
						return err
					}
				}
				return nil
			})
		}
		return g.Wait()
	})

	assert.Equal(t, "500.00", f.balance(t, "A"))
	assert.Equal(t, "500.00", f.balance(t, "B"))
}

// Random pairings over a small account set: never negative, total conserved,
// and always terminating.
func TestTransfer_RandomLoadConservesMoney(t *testing.T) {
	balances := map[string]string{}
	ids := []string{"acct-1", "acct-2", "acct-3", "acct-4", "acct-5"}
	for _, id := range ids {
		balances[id] = "100.00"
	}
	f := setupTransferService(t, balances)
	before := testutil.TotalBalance(f.store)

	const workers, iterations = 32, 200
	var (
		mu        sync.Mutex
		succeeded int
		rejected  int
	)

	waitOrFail(t, 20*time.Second, func() error {
		var g errgroup.Group
		for w := 0; w < workers; w++ {
			seed := int64(w)
			g.Go(func() error {
				rng := rand.New(rand.NewSource(seed))
				for i := 0; i < iterations; i++ {
					src := ids[rng.Intn(len(ids))]
					dst := ids[rng.Intn(len(ids))]
					if src == dst {
						continue
					}
					amount := fmt.Sprintf("%d.%02d", rng.Intn(40), rng.Intn(100))
					_, err := f.svc.Transfer(context.Background(), transfer(src, dst, amount))

					mu.Lock()
					switch {
					case err == nil:
						succeeded++
					case errors.Is(err, domainErrors.ErrInsufficientFunds), errors.Is(err, domainErrors.ErrInvalidAmount):
						rejected++
					default:
						mu.Unlock()
						return err
					}
					mu.Unlock()
				}
				return nil
			})
		}
		return g.Wait()
	})

	assert.True(t, before.Equal(testutil.TotalBalance(f.store)), "total must be conserved")
	for _, a := range f.store.List(context.Background()) {
		assert.False(t, a.Balance().IsNegative(), "account %s went negative", a.ID)
	}
	assert.Positive(t, succeeded)
	assert.Len(t, f.notifier.Calls(), 2*succeeded)
	t.Logf("succeeded=%d rejected=%d", succeeded, rejected)
}

// Transfers on disjoint pairs do not wait on each other: with C and D
// locked, A->B still completes.
func TestTransfer_DisjointPairsIndependent(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "10", "B": "10", "C": "10", "D": "10"})
	c, _ := f.store.Get(context.Background(), "C")
	d, _ := f.store.Get(context.Background(), "D")
	c.Lock()
	d.Lock()
	defer c.Unlock()
	defer d.Unlock()

	waitOrFail(t, 2*time.Second, func() error {
		_, err := f.svc.Transfer(context.Background(), transfer("A", "B", "1"))
		return err
	})
}

// A cancelled context does not abort a transfer.
func TestTransfer_IgnoresCancellation(t *testing.T) {
	f := setupTransferService(t, map[string]string{"A": "10", "B": "0"})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := f.svc.Transfer(ctx, transfer("A", "B", "4"))
	require.NoError(t, err)
	assert.Equal(t, "6.00", f.balance(t, "A"))
}

func TestFormatAmount(t *testing.T) {
	tests := map[string]string{
		"50":     "50.00",
		"50.00":  "50.00",
		"0.5":    "0.50",
		"0.125":  "0.125",
		"1.2300": "1.2300",
	}
	for in, want := range tests {
		assert.Equal(t, want, formatAmount(testutil.Dec(in)), in)
	}
}

func TestAmountText_OutOfRangeNotExpanded(t *testing.T) {
	assert.Equal(t, "out_of_range", amountText(testutil.Dec("1e-30000000")))
	assert.Equal(t, "12.5", amountText(testutil.Dec("12.50")))
}

func TestTransferStatus(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "success"},
		{domainErrors.ErrInvalidAmount, "invalid_amount"},
		{domainErrors.ErrSameAccount, "same_account"},
		{domainErrors.NewUnknownAccountError("x"), "unknown_account"},
		{domainErrors.NewInsufficientFundsError("x", testutil.Dec("2"), testutil.Dec("1")), "insufficient_funds"},
		{errors.New("boom"), "error"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, transferStatus(tt.err))
	}
}
