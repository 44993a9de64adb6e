package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ErrInsufficientFunds is returned by balance mutations that run without
// clamping when any denomination would go below zero. The account is left
// unchanged.
var ErrInsufficientFunds = errors.New("insufficient funds")

// Transaction types recorded in the ledger.
const (
	TxAdminAdd      = "admin_add"
	TxAdminRemove   = "admin_remove"
	TxAdminReset    = "admin_reset"
	TxPurchase      = "purchase"
	TxGiveawayPrize = "giveaway_prize"
)

// Balance holds the three wallet denominations. Copper is the base unit;
// exchange rates between denominations live in configuration, never here.
type Balance struct {
	Copper int64
	Silver int64
	Gold   int64
}

type BalanceDelta struct {
	Copper int64
	Silver int64
	Gold   int64
}

func (d BalanceDelta) IsZero() bool {
	return d.Copper == 0 && d.Silver == 0 && d.Gold == 0
}

type TransactionRecord struct {
	ID         int64
	Handle     string
	Type       string
	Details    string
	OldBalance Balance
	NewBalance Balance
	ItemsCount int
	TotalPrice int64
	CreatedAt  time.Time
}

// CreateAccount inserts a zero-balance account. Handles are compared
// byte-exact: "Alice" and "alice" are distinct accounts.
func (s *Store) CreateAccount(ctx context.Context, handle string) error {
	now := time.Now().Unix()
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO accounts (handle, copper, silver, gold, created_at, updated_at)
		VALUES (?, 0, 0, 0, ?, ?)
	`, handle, now, now)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicateAccount
		}
		return err
	}
	return nil
}

func (s *Store) GetBalance(ctx context.Context, handle string) (Balance, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT copper, silver, gold FROM accounts WHERE handle = ?
	`, handle)

	var balance Balance
	if err := row.Scan(&balance.Copper, &balance.Silver, &balance.Gold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, ErrNotFound
		}
		return Balance{}, err
	}
	return balance, nil
}

func (s *Store) AccountExists(ctx context.Context, handle string) (bool, error) {
	_, err := s.GetBalance(ctx, handle)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (s *Store) LinkIdentity(ctx context.Context, userID, handle string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO identity_links (user_id, handle, created_at) VALUES (?, ?, ?)
	`, userID, handle, time.Now().Unix())
	return err
}

func (s *Store) HandleForUser(ctx context.Context, userID string) (string, error) {
	row := s.db.QueryRowContext(ctx, `SELECT handle FROM identity_links WHERE user_id = ?`, userID)
	var handle string
	if err := row.Scan(&handle); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", ErrNotFound
		}
		return "", err
	}
	return handle, nil
}

// MutateBalance applies a delta across denominations and appends exactly one
// transaction record, all in a single database transaction. This is the only
// sanctioned path for changing a balance.
//
// With clamp set, each denomination floors at zero independently; without it,
// any denomination that would go negative fails the whole mutation with
// ErrInsufficientFunds and the account is unchanged.
func (s *Store) MutateBalance(ctx context.Context, handle string, delta BalanceDelta, txType, details string, clamp bool) (Balance, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return Balance{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var newBalance Balance
	_, newBalance, err = mutateBalanceTx(ctx, tx, handle, delta, txType, details, clamp, 0, 0, time.Now())
	if err != nil {
		return Balance{}, err
	}
	if err = tx.Commit(); err != nil {
		return Balance{}, err
	}
	return newBalance, nil
}

// mutateBalanceTx is the shared read-apply-write-append step used by
// MutateBalance and ApplyPurchase inside their enclosing transactions.
func mutateBalanceTx(ctx context.Context, tx *sql.Tx, handle string, delta BalanceDelta, txType, details string, clamp bool, items int, total int64, at time.Time) (Balance, Balance, error) {
	row := tx.QueryRowContext(ctx, `
		SELECT copper, silver, gold FROM accounts WHERE handle = ?
	`, handle)

	var old Balance
	if err := row.Scan(&old.Copper, &old.Silver, &old.Gold); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Balance{}, Balance{}, ErrNotFound
		}
		return Balance{}, Balance{}, err
	}

	updated, err := applyDelta(old, delta, clamp)
	if err != nil {
		return Balance{}, Balance{}, err
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE accounts SET copper = ?, silver = ?, gold = ?, updated_at = ? WHERE handle = ?
	`, updated.Copper, updated.Silver, updated.Gold, at.Unix(), handle); err != nil {
		return Balance{}, Balance{}, err
	}

	if err := insertTransactionTx(ctx, tx, handle, txType, details, old, updated, items, total, at); err != nil {
		return Balance{}, Balance{}, err
	}
	return old, updated, nil
}

func applyDelta(old Balance, delta BalanceDelta, clamp bool) (Balance, error) {
	apply := func(current, d int64) (int64, error) {
		value := current + d
		if value < 0 {
			if !clamp {
				return 0, ErrInsufficientFunds
			}
			value = 0
		}
		return value, nil
	}

	var updated Balance
	var err error
	if updated.Copper, err = apply(old.Copper, delta.Copper); err != nil {
		return Balance{}, err
	}
	if updated.Silver, err = apply(old.Silver, delta.Silver); err != nil {
		return Balance{}, err
	}
	if updated.Gold, err = apply(old.Gold, delta.Gold); err != nil {
		return Balance{}, err
	}
	return updated, nil
}

func insertTransactionTx(ctx context.Context, tx *sql.Tx, handle, txType, details string, old, updated Balance, items int, total int64, at time.Time) error {
	_, err := tx.ExecContext(ctx, `
		INSERT INTO transactions (handle, type, details, old_balance, new_balance, items_count, total_price, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`, handle, txType, details, EncodeBalance(old), EncodeBalance(updated), items, total, at.Unix())
	return err
}

func (s *Store) ListTransactions(ctx context.Context, handle string, limit int) ([]TransactionRecord, error) {
	if limit <= 0 {
		limit = 10
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, handle, type, details, old_balance, new_balance, items_count, total_price, created_at
		FROM transactions
		WHERE handle = ?
		ORDER BY created_at DESC, id DESC
		LIMIT ?
	`, handle, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []TransactionRecord
	for rows.Next() {
		var record TransactionRecord
		var oldRaw, newRaw string
		var created int64
		if err := rows.Scan(&record.ID, &record.Handle, &record.Type, &record.Details, &oldRaw, &newRaw, &record.ItemsCount, &record.TotalPrice, &created); err != nil {
			return nil, err
		}
		if record.OldBalance, err = DecodeBalance(oldRaw); err != nil {
			return nil, err
		}
		if record.NewBalance, err = DecodeBalance(newRaw); err != nil {
			return nil, err
		}
		record.CreatedAt = time.Unix(created, 0)
		records = append(records, record)
	}
	return records, rows.Err()
}

// EncodeBalance renders a balance snapshot as "copper,silver,gold".
func EncodeBalance(b Balance) string {
	return fmt.Sprintf("%d,%d,%d", b.Copper, b.Silver, b.Gold)
}

func DecodeBalance(raw string) (Balance, error) {
	parts := strings.Split(raw, ",")
	if len(parts) != 3 {
		return Balance{}, fmt.Errorf("malformed balance snapshot %q", raw)
	}
	values := make([]int64, 3)
	for i, part := range parts {
		value, err := strconv.ParseInt(strings.TrimSpace(part), 10, 64)
		if err != nil {
			return Balance{}, fmt.Errorf("malformed balance snapshot %q: %w", raw, err)
		}
		values[i] = value
	}
	return Balance{Copper: values[0], Silver: values[1], Gold: values[2]}, nil
}
