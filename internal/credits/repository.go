package credits

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"outbound-dialer/pkg/utils"

	"github.com/google/uuid"
)

// NOTE: This repository assumes the following tables exist:
// - credit_accounts (balance CHECK >= 0)
// - credit_ledger (immutable append-only, UNIQUE (account_id, idempotency_key))

// PostgresLedger implements Ledger.
//
// Money invariants:
// - No balance change without a ledger entry in the same transaction.
// - The debit is a conditional UPDATE (balance > 0) so concurrent runs cannot overdraw.
type PostgresLedger struct {
	db    *sql.DB
	clock func() time.Time
}

var _ Ledger = (*PostgresLedger)(nil)

func NewPostgresLedger(db *sql.DB) *PostgresLedger {
	return &PostgresLedger{db: db, clock: time.Now}
}

func (l *PostgresLedger) Balance(ctx context.Context, accountID string) (int64, error) {
	if accountID == "" {
		return 0, ErrInvalidArgument
	}
	return getBalance(ctx, l.db, accountID)
}

func (l *PostgresLedger) Decrement(ctx context.Context, accountID, idempotencyKey, externalRef string) (int64, error) {
	if err := validate(accountID, idempotencyKey); err != nil {
		return 0, err
	}
	now := l.clock().UTC()

	var out int64
	err := utils.WithTx(ctx, l.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if ok, err := hasLedgerKey(ctx, tx, accountID, idempotencyKey); err != nil {
			return err
		} else if ok {
			b, err := getBalance(ctx, tx, accountID)
			out = b
			return err
		}

		const q = `
UPDATE credit_accounts
SET balance = balance - 1, updated_at = $2
WHERE account_id = $1 AND balance > 0
RETURNING balance
`
		if err := tx.QueryRowContext(ctx, q, accountID, now).Scan(&out); err != nil {
			if !errors.Is(err, sql.ErrNoRows) {
				return err
			}
			// Zero rows: missing account or empty balance.
			b, gerr := getBalance(ctx, tx, accountID)
			if gerr != nil {
				return gerr
			}
			out = b
			return ErrInsufficientCredits
		}

		return insertLedger(ctx, tx, LedgerEntry{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			Type:           EntryDebit,
			Amount:         -1,
			ExternalRef:    externalRef,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
		})
	})
	if err != nil && utils.IsUniqueViolation(err) {
		// A concurrent writer posted the same key first; the debit already happened once.
		return l.Balance(ctx, accountID)
	}
	return out, err
}

func (l *PostgresLedger) Credit(ctx context.Context, accountID string, amount int64, idempotencyKey, externalRef string) (int64, error) {
	if err := validate(accountID, idempotencyKey); err != nil {
		return 0, err
	}
	if amount <= 0 {
		return 0, ErrInvalidArgument
	}
	now := l.clock().UTC()

	var out int64
	err := utils.WithTx(ctx, l.db, &sql.TxOptions{}, func(ctx context.Context, tx *sql.Tx) error {
		if ok, err := hasLedgerKey(ctx, tx, accountID, idempotencyKey); err != nil {
			return err
		} else if ok {
			b, err := getBalance(ctx, tx, accountID)
			out = b
			return err
		}

		const q = `
INSERT INTO credit_accounts (account_id, balance, updated_at)
VALUES ($1, $2, $3)
ON CONFLICT (account_id)
DO UPDATE SET balance = credit_accounts.balance + EXCLUDED.balance,
              updated_at = EXCLUDED.updated_at
RETURNING balance
`
		if err := tx.QueryRowContext(ctx, q, accountID, amount, now).Scan(&out); err != nil {
			return err
		}
		return insertLedger(ctx, tx, LedgerEntry{
			ID:             uuid.NewString(),
			AccountID:      accountID,
			Type:           EntryCredit,
			Amount:         amount,
			ExternalRef:    externalRef,
			IdempotencyKey: idempotencyKey,
			CreatedAt:      now,
		})
	})
	if err != nil && utils.IsUniqueViolation(err) {
		return l.Balance(ctx, accountID)
	}
	return out, err
}

func (l *PostgresLedger) TelephonyAPIKey(ctx context.Context, accountID string) (string, error) {
	const q = `SELECT COALESCE(telephony_api_key, '') FROM credit_accounts WHERE account_id = $1`
	var key string
	if err := l.db.QueryRowContext(ctx, q, accountID).Scan(&key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNoAPIKey
		}
		return "", err
	}
	if key == "" {
		return "", ErrNoAPIKey
	}
	return key, nil
}

// SetTelephonyAPIKey stores the account's provider key, creating the account at zero balance if needed.
func (l *PostgresLedger) SetTelephonyAPIKey(ctx context.Context, accountID, apiKey string) error {
	if accountID == "" || apiKey == "" {
		return ErrInvalidArgument
	}
	const q = `
INSERT INTO credit_accounts (account_id, balance, telephony_api_key, updated_at)
VALUES ($1, 0, $2, $3)
ON CONFLICT (account_id)
DO UPDATE SET telephony_api_key = EXCLUDED.telephony_api_key, updated_at = EXCLUDED.updated_at
`
	_, err := l.db.ExecContext(ctx, q, accountID, apiKey, l.clock().UTC())
	return err
}

func getBalance(ctx context.Context, q utils.Querier, accountID string) (int64, error) {
	const stmt = `SELECT balance FROM credit_accounts WHERE account_id = $1`
	var b int64
	if err := q.QueryRowContext(ctx, stmt, accountID).Scan(&b); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, err
	}
	return b, nil
}

func hasLedgerKey(ctx context.Context, tx *sql.Tx, accountID, key string) (bool, error) {
	const q = `
SELECT 1 FROM credit_ledger
WHERE account_id = $1 AND idempotency_key = $2
LIMIT 1
`
	var one int
	err := tx.QueryRowContext(ctx, q, accountID, key).Scan(&one)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func insertLedger(ctx context.Context, tx *sql.Tx, e LedgerEntry) error {
	const q = `
INSERT INTO credit_ledger (id, account_id, type, amount, external_ref, idempotency_key, created_at)
VALUES ($1,$2,$3,$4,$5,$6,$7)
`
	_, err := tx.ExecContext(ctx, q,
		e.ID,
		e.AccountID,
		e.Type,
		e.Amount,
		e.ExternalRef,
		e.IdempotencyKey,
		e.CreatedAt,
	)
	return err
}
