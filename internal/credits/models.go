package credits

import (
	"context"
	"errors"
	"time"
)

// Account is an account's prepaid call credit and provider credentials.
// Invariant: Balance never goes negative, and every change has a ledger entry.
type Account struct {
	AccountID       string    `json:"accountId" db:"account_id"`
	Balance         int64     `json:"balance" db:"balance"`
	TelephonyAPIKey string    `json:"-" db:"telephony_api_key"`
	UpdatedAt       time.Time `json:"updatedAt" db:"updated_at"`
}

// LedgerEntry is an immutable append-only row. Amount is signed: credits positive, debits negative.
type LedgerEntry struct {
	ID             string          `json:"id" db:"id"`
	AccountID      string          `json:"accountId" db:"account_id"`
	Type           LedgerEntryType `json:"type" db:"type"`
	Amount         int64           `json:"amount" db:"amount"`
	ExternalRef    string          `json:"externalRef,omitempty" db:"external_ref"`
	IdempotencyKey string          `json:"idempotencyKey" db:"idempotency_key"`
	CreatedAt      time.Time       `json:"createdAt" db:"created_at"`
}

type LedgerEntryType string

const (
	EntryDebit  LedgerEntryType = "debit"
	EntryCredit LedgerEntryType = "credit"
)

var (
	ErrNotFound            = errors.New("credit account not found")
	ErrInsufficientCredits = errors.New("insufficient credits")
	ErrNoAPIKey            = errors.New("telephony api key not configured")
	ErrInvalidArgument     = errors.New("invalid argument")
)

// Ledger is the credit persistence contract used by the dialer.
//
// Rules:
// - Decrement is conditional at the store: it never takes the balance below zero.
// - Decrement and Credit are idempotent per (account, idempotencyKey).
type Ledger interface {
	Balance(ctx context.Context, accountID string) (int64, error)
	// Decrement removes one credit and returns the new balance.
	// It returns ErrInsufficientCredits when the balance is already zero.
	Decrement(ctx context.Context, accountID, idempotencyKey, externalRef string) (int64, error)
	Credit(ctx context.Context, accountID string, amount int64, idempotencyKey, externalRef string) (int64, error)
	TelephonyAPIKey(ctx context.Context, accountID string) (string, error)
}

// CallIdempotencyKey is the debit key for one placed call.
func CallIdempotencyKey(callID string) string { return "call:" + callID }

func validate(accountID, idempotencyKey string) error {
	if accountID == "" || idempotencyKey == "" {
		return ErrInvalidArgument
	}
	return nil
}
