// Package shop runs the buy flow: resolve the buyer's account, take its
// lock, apply the purchase atomically and refresh the caches.
package shop

import (
	"context"
	"errors"

	"go.uber.org/zap"

	"storekeeper/internal/storage"
)

var ErrInvalidQuantity = errors.New("quantity must be positive")

type Store interface {
	ApplyPurchase(ctx context.Context, handle, code string, quantity int) (storage.PurchaseResult, error)
}

// Ledger is the slice of the ledger service the shop needs: handle lookup,
// the account lock and the cache refresh that must happen under it.
type Ledger interface {
	HandleFor(ctx context.Context, userID string) (string, error)
	WithAccountLock(ctx context.Context, handle string, fn func() error) error
	SetCachedBalance(handle string, balance storage.Balance)
}

type Catalog interface {
	Invalidate()
}

// Purchase is the completed order handed back for delivery.
type Purchase struct {
	Handle     string
	Product    storage.Product
	Contents   []string
	NewBalance storage.Balance
	Total      int64
}

type Service struct {
	store   Store
	ledger  Ledger
	catalog Catalog
	logger  *zap.Logger
}

func NewService(store Store, ledger Ledger, catalog Catalog, logger *zap.Logger) *Service {
	return &Service{store: store, ledger: ledger, catalog: catalog, logger: logger}
}

// Buy purchases quantity items of a product for the user. The deduction, the
// stock claim and the ledger record commit together or not at all; the
// cached balance is refreshed before the account lock is released.
func (s *Service) Buy(ctx context.Context, userID, code string, quantity int) (Purchase, error) {
	if quantity <= 0 {
		return Purchase{}, ErrInvalidQuantity
	}

	handle, err := s.ledger.HandleFor(ctx, userID)
	if err != nil {
		return Purchase{}, err
	}

	var result storage.PurchaseResult
	err = s.ledger.WithAccountLock(ctx, handle, func() error {
		applied, err := s.store.ApplyPurchase(ctx, handle, code, quantity)
		if err != nil {
			return err
		}
		result = applied
		s.ledger.SetCachedBalance(handle, applied.NewBalance)
		return nil
	})
	if err != nil {
		return Purchase{}, err
	}

	// The shelf changed, so the cached listing is no longer trustworthy.
	s.catalog.Invalidate()

	s.logger.Info("purchase completed",
		zap.String("handle", handle),
		zap.String("product", result.Product.Code),
		zap.Int("quantity", quantity),
		zap.Int64("total", result.Total))

	return Purchase{
		Handle:     handle,
		Product:    result.Product,
		Contents:   result.Contents,
		NewBalance: result.NewBalance,
		Total:      result.Total,
	}, nil
}
