package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ErrInsufficientStock is returned by ApplyPurchase when fewer items are
// available than requested. Nothing is deducted or claimed.
var ErrInsufficientStock = errors.New("insufficient stock")

// Stock item statuses.
const (
	StockAvailable = "available"
	StockSold      = "sold"
)

type Product struct {
	Code        string
	Name        string
	Price       int64
	Description string
}

type StockItem struct {
	ID          int64
	ProductCode string
	Content     string
	Status      string
	BuyerID     string
	AddedBy     string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

type WorldInfo struct {
	World     string
	Owner     string
	Keeper    string
	UpdatedAt time.Time
}

// PurchaseResult reports a completed purchase: the claimed item contents, the
// buyer's balance after the deduction and the copper total charged.
type PurchaseResult struct {
	Product    Product
	Contents   []string
	NewBalance Balance
	Total      int64
}

func (s *Store) UpsertProduct(ctx context.Context, p Product) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (code, name, price, description) VALUES (?, ?, ?, ?)
		ON CONFLICT(code) DO UPDATE SET name = excluded.name, price = excluded.price, description = excluded.description
	`, p.Code, p.Name, p.Price, p.Description)
	return err
}

func (s *Store) GetProduct(ctx context.Context, code string) (Product, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT code, name, price, description FROM products WHERE code = ?
	`, code)
	var p Product
	if err := row.Scan(&p.Code, &p.Name, &p.Price, &p.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Product{}, ErrNotFound
		}
		return Product{}, err
	}
	return p, nil
}

func (s *Store) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT code, name, price, description FROM products ORDER BY code
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var products []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.Code, &p.Name, &p.Price, &p.Description); err != nil {
			return nil, err
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

// DeleteProduct removes a product and all of its stock rows. Transaction
// records referencing the product are kept.
func (s *Store) DeleteProduct(ctx context.Context, code string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var res sql.Result
	res, err = tx.ExecContext(ctx, `DELETE FROM products WHERE code = ?`, code)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		err = ErrNotFound
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM stock_items WHERE product_code = ?`, code); err != nil {
		return err
	}
	return tx.Commit()
}

// AddStockItems inserts item contents for a product, skipping any content
// string already present in the table. Returns the number inserted and the
// duplicates that were skipped.
func (s *Store) AddStockItems(ctx context.Context, code string, contents []string, addedBy string) (int, []string, error) {
	if _, err := s.GetProduct(ctx, code); err != nil {
		return 0, nil, err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, nil, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().Unix()
	added := 0
	var duplicates []string
	for _, content := range contents {
		_, insErr := tx.ExecContext(ctx, `
			INSERT INTO stock_items (product_code, content, status, buyer_id, added_by, created_at, updated_at)
			VALUES (?, ?, ?, '', ?, ?, ?)
		`, code, content, StockAvailable, addedBy, now, now)
		if insErr != nil {
			if isUniqueViolation(insErr) {
				duplicates = append(duplicates, content)
				continue
			}
			err = insErr
			return 0, nil, err
		}
		added++
	}
	if err = tx.Commit(); err != nil {
		return 0, nil, err
	}
	return added, duplicates, nil
}

func (s *Store) CountAvailableStock(ctx context.Context, code string) (int, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM stock_items WHERE product_code = ? AND status = ?
	`, code, StockAvailable)
	var count int
	if err := row.Scan(&count); err != nil {
		return 0, err
	}
	return count, nil
}

// AvailableStockCounts returns available item counts keyed by product code.
// Products with no stock rows are absent from the map.
func (s *Store) AvailableStockCounts(ctx context.Context) (map[string]int, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT product_code, COUNT(*) FROM stock_items WHERE status = ? GROUP BY product_code
	`, StockAvailable)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var code string
		var count int
		if err := rows.Scan(&code, &count); err != nil {
			return nil, err
		}
		counts[code] = count
	}
	return counts, rows.Err()
}

// ApplyPurchase performs the whole purchase in one database transaction:
// price lookup, stock claim, copper deduction and the appended purchase
// record. Any failure rolls the whole thing back.
//
// The deduction never clamps; a short balance fails with
// ErrInsufficientFunds before any stock is touched.
func (s *Store) ApplyPurchase(ctx context.Context, handle, code string, quantity int) (PurchaseResult, error) {
	if quantity <= 0 {
		return PurchaseResult{}, fmt.Errorf("quantity must be positive, got %d", quantity)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return PurchaseResult{}, err
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	row := tx.QueryRowContext(ctx, `
		SELECT code, name, price, description FROM products WHERE code = ?
	`, code)
	var product Product
	if err = row.Scan(&product.Code, &product.Name, &product.Price, &product.Description); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			err = ErrNotFound
		}
		return PurchaseResult{}, err
	}

	var rows *sql.Rows
	rows, err = tx.QueryContext(ctx, `
		SELECT id, content FROM stock_items
		WHERE product_code = ? AND status = ?
		ORDER BY id
		LIMIT ?
	`, code, StockAvailable, quantity)
	if err != nil {
		return PurchaseResult{}, err
	}

	var ids []int64
	var contents []string
	for rows.Next() {
		var id int64
		var content string
		if err = rows.Scan(&id, &content); err != nil {
			rows.Close()
			return PurchaseResult{}, err
		}
		ids = append(ids, id)
		contents = append(contents, content)
	}
	if err = rows.Err(); err != nil {
		rows.Close()
		return PurchaseResult{}, err
	}
	rows.Close()

	if len(ids) < quantity {
		err = ErrInsufficientStock
		return PurchaseResult{}, err
	}

	now := time.Now()
	total := product.Price * int64(quantity)
	details := fmt.Sprintf("%dx %s", quantity, product.Name)
	var newBalance Balance
	_, newBalance, err = mutateBalanceTx(ctx, tx, handle, BalanceDelta{Copper: -total}, TxPurchase, details, false, quantity, total, now)
	if err != nil {
		return PurchaseResult{}, err
	}

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `
			UPDATE stock_items SET status = ?, buyer_id = ?, updated_at = ? WHERE id = ?
		`, StockSold, handle, now.Unix(), id); err != nil {
			return PurchaseResult{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return PurchaseResult{}, err
	}
	return PurchaseResult{Product: product, Contents: contents, NewBalance: newBalance, Total: total}, nil
}

func (s *Store) GetWorldInfo(ctx context.Context) (WorldInfo, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT world, owner, keeper, updated_at FROM world_info WHERE id = 1
	`)
	var info WorldInfo
	var updated int64
	if err := row.Scan(&info.World, &info.Owner, &info.Keeper, &updated); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return WorldInfo{}, ErrNotFound
		}
		return WorldInfo{}, err
	}
	info.UpdatedAt = time.Unix(updated, 0)
	return info, nil
}

func (s *Store) SetWorldInfo(ctx context.Context, info WorldInfo) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO world_info (id, world, owner, keeper, updated_at) VALUES (1, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET world = excluded.world, owner = excluded.owner, keeper = excluded.keeper, updated_at = excluded.updated_at
	`, info.World, info.Owner, info.Keeper, time.Now().Unix())
	return err
}
