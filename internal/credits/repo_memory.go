package credits

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryLedger is an in-memory Ledger for tests and local runs.
type MemoryLedger struct {
	mu       sync.Mutex
	accounts map[string]*Account
	entries  []LedgerEntry
	keys     map[string]struct{}
	clock    func() time.Time
}

var _ Ledger = (*MemoryLedger)(nil)

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		accounts: map[string]*Account{},
		keys:     map[string]struct{}{},
		clock:    time.Now,
	}
}

// Seed creates or overwrites an account without writing a ledger entry.
func (m *MemoryLedger) Seed(accountID string, balance int64, apiKey string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accounts[accountID] = &Account{AccountID: accountID, Balance: balance, TelephonyAPIKey: apiKey, UpdatedAt: m.clock().UTC()}
}

// Entries returns the ledger rows of one account, in append order.
func (m *MemoryLedger) Entries(accountID string) []LedgerEntry {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]LedgerEntry, 0)
	for _, e := range m.entries {
		if e.AccountID == accountID {
			out = append(out, e)
		}
	}
	return out
}

func (m *MemoryLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		return 0, ErrNotFound
	}
	return a.Balance, nil
}

func (m *MemoryLedger) Decrement(ctx context.Context, accountID, idempotencyKey, externalRef string) (int64, error) {
	return m.post(accountID, EntryDebit, -1, idempotencyKey, externalRef)
}

func (m *MemoryLedger) Credit(ctx context.Context, accountID string, amount int64, idempotencyKey, externalRef string) (int64, error) {
	if amount <= 0 {
		return 0, ErrInvalidArgument
	}
	return m.post(accountID, EntryCredit, amount, idempotencyKey, externalRef)
}

func (m *MemoryLedger) post(accountID string, typ LedgerEntryType, amount int64, key, ref string) (int64, error) {
	if err := validate(accountID, key); err != nil {
		return 0, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	a, ok := m.accounts[accountID]
	if !ok {
		if typ != EntryCredit {
			return 0, ErrNotFound
		}
		a = &Account{AccountID: accountID}
		m.accounts[accountID] = a
	}
	if _, dup := m.keys[accountID+"|"+key]; dup {
		return a.Balance, nil
	}
	if a.Balance+amount < 0 {
		return a.Balance, ErrInsufficientCredits
	}

	now := m.clock().UTC()
	a.Balance += amount
	a.UpdatedAt = now
	m.keys[accountID+"|"+key] = struct{}{}
	m.entries = append(m.entries, LedgerEntry{
		ID:             uuid.NewString(),
		AccountID:      accountID,
		Type:           typ,
		Amount:         amount,
		ExternalRef:    ref,
		IdempotencyKey: key,
		CreatedAt:      now,
	})
	return a.Balance, nil
}

func (m *MemoryLedger) TelephonyAPIKey(ctx context.Context, accountID string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok || a.TelephonyAPIKey == "" {
		return "", ErrNoAPIKey
	}
	return a.TelephonyAPIKey, nil
}

func (m *MemoryLedger) SetTelephonyAPIKey(ctx context.Context, accountID, apiKey string) error {
	if accountID == "" || apiKey == "" {
		return ErrInvalidArgument
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	a, ok := m.accounts[accountID]
	if !ok {
		a = &Account{AccountID: accountID}
		m.accounts[accountID] = a
	}
	a.TelephonyAPIKey = apiKey
	a.UpdatedAt = m.clock().UTC()
	return nil
}
