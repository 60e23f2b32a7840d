package testutil

import (
	"context"
	"sync"

	"github.com/cassiomorais/ledger/internal/domain/account"
)

// --- Notifier Mock ---

// NotificationCall records one Notify invocation.
type NotificationCall struct {
	AccountID string
	Message   string
	// LockFree is true when the account lock was free at call time.
	LockFree bool
}

// MockNotifier is a mock implementation of notification.Notifier.
type MockNotifier struct {
	mu    sync.Mutex
	calls []NotificationCall

	NotifyFunc func(ctx context.Context, acct *account.Account, message string) error
}

func NewMockNotifier() *MockNotifier {
	return &MockNotifier{}
}

func (m *MockNotifier) Notify(ctx context.Context, acct *account.Account, message string) error {
	lockFree := acct.TryLock()
	if lockFree {
		acct.Unlock()
	}

	m.mu.Lock()
	m.calls = append(m.calls, NotificationCall{
		AccountID: acct.ID,
		Message:   message,
		LockFree:  lockFree,
	})
	m.mu.Unlock()

	if m.NotifyFunc != nil {
		return m.NotifyFunc(ctx, acct, message)
	}
	return nil
}

func (m *MockNotifier) Calls() []NotificationCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]NotificationCall, len(m.calls))
	copy(out, m.calls)
	return out
}

func (m *MockNotifier) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// --- Account Store Mock ---

// MockAccountStore wraps a real store and lets tests override single methods.
type MockAccountStore struct {
	account.Store

	GetFunc    func(ctx context.Context, id string) (*account.Account, error)
	ExistsFunc func(ctx context.Context, id string) bool
}

func (m *MockAccountStore) Get(ctx context.Context, id string) (*account.Account, error) {
	if m.GetFunc != nil {
		return m.GetFunc(ctx, id)
	}
	return m.Store.Get(ctx, id)
}

func (m *MockAccountStore) Exists(ctx context.Context, id string) bool {
	if m.ExistsFunc != nil {
		return m.ExistsFunc(ctx, id)
	}
	return m.Store.Exists(ctx, id)
}
