package storage

import (
	"context"
	"time"
)

func (s *Store) CountAccounts(ctx context.Context) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM accounts`).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// TotalHoldings sums every account balance per denomination.
func (s *Store) TotalHoldings(ctx context.Context) (Balance, error) {
	var balance Balance
	err := s.db.QueryRowContext(ctx, `
		SELECT COALESCE(SUM(copper), 0), COALESCE(SUM(silver), 0), COALESCE(SUM(gold), 0)
		FROM accounts
	`).Scan(&balance.Copper, &balance.Silver, &balance.Gold)
	if err != nil {
		return Balance{}, err
	}
	return balance, nil
}

func (s *Store) CountTransactionsSince(ctx context.Context, since time.Time) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT type, COUNT(*)
		FROM transactions
		WHERE created_at >= ?
		GROUP BY type
	`, since.Unix())
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var txType string
		var count int
		if err := rows.Scan(&txType, &count); err != nil {
			return nil, err
		}
		counts[txType] = count
	}
	return counts, rows.Err()
}

func (s *Store) ActiveTradersSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(DISTINCT handle) FROM transactions WHERE created_at >= ?
	`, since.Unix()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// PurchaseTotalsSince returns how many purchases happened and the copper
// they moved.
func (s *Store) PurchaseTotalsSince(ctx context.Context, since time.Time) (int, int64, error) {
	var count int
	var revenue int64
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(SUM(total_price), 0)
		FROM transactions
		WHERE type = ? AND created_at >= ?
	`, TxPurchase, since.Unix()).Scan(&count, &revenue)
	if err != nil {
		return 0, 0, err
	}
	return count, revenue, nil
}

type ProductSales struct {
	Code string
	Sold int
}

// TopProducts ranks products by units sold, all time.
func (s *Store) TopProducts(ctx context.Context, limit int) ([]ProductSales, error) {
	if limit <= 0 {
		limit = 5
	}
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_code, COUNT(*) AS sold
		FROM stock_items
		WHERE status = ?
		GROUP BY product_code
		ORDER BY sold DESC, product_code
		LIMIT ?
	`, StockSold, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sales []ProductSales
	for rows.Next() {
		var item ProductSales
		if err := rows.Scan(&item.Code, &item.Sold); err != nil {
			return nil, err
		}
		sales = append(sales, item)
	}
	return sales, rows.Err()
}

func (s *Store) CountActiveActionsByKind(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, COUNT(*)
		FROM scheduled_actions
		WHERE active = 1
		GROUP BY kind
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var kind string
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, err
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

func (s *Store) CountWarningsSince(ctx context.Context, since time.Time) (int, error) {
	var count int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM warnings WHERE created_at >= ?
	`, since.Unix()).Scan(&count)
	if err != nil {
		return 0, err
	}
	return count, nil
}

// MessagesCounted sums the per-member message counters across a guild, or
// across all guilds when guildID is empty.
func (s *Store) MessagesCounted(ctx context.Context, guildID string) (int64, error) {
	query := `SELECT COALESCE(SUM(messages), 0) FROM levels`
	args := []any{}
	if guildID != "" {
		query += ` WHERE guild_id = ?`
		args = append(args, guildID)
	}

	var total int64
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}
