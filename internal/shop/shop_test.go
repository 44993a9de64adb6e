package shop

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"storekeeper/internal/catalog"
	"storekeeper/internal/config"
	"storekeeper/internal/ledger"
	"storekeeper/internal/storage"
)

func newTestShop(t *testing.T) (*Service, *storage.Store, *ledger.Service, *catalog.Service) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ledgerSvc := ledger.NewService(store, zap.NewNop(), config.LedgerConfig{BalanceTTLSeconds: 30, HandleTTLSeconds: 30, LockWaitMillis: 50})
	catalogSvc := catalog.NewService(store, config.CatalogConfig{TTLSeconds: 60})
	shopSvc := NewService(store, ledgerSvc, catalogSvc, zap.NewNop())

	ctx := context.Background()
	if err := ledgerSvc.Register(ctx, "u1", "alice"); err != nil {
		t.Fatalf("register: %v", err)
	}
	if _, err := ledgerSvc.Mutate(ctx, "alice", storage.BalanceDelta{Copper: 120}, storage.TxAdminAdd, "seed", true); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
	if err := store.UpsertProduct(ctx, storage.Product{Code: "SWORD", Name: "Rare Sword", Price: 50}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if _, _, err := store.AddStockItems(ctx, "SWORD", []string{"s1", "s2", "s3"}, "admin"); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	return shopSvc, store, ledgerSvc, catalogSvc
}

func TestBuy(t *testing.T) {
	shopSvc, store, ledgerSvc, catalogSvc := newTestShop(t)
	ctx := context.Background()

	// Prime the catalog cache so the purchase has something to invalidate.
	if _, err := catalogSvc.Listings(ctx); err != nil {
		t.Fatalf("listings: %v", err)
	}

	purchase, err := shopSvc.Buy(ctx, "u1", "SWORD", 2)
	if err != nil {
		t.Fatalf("buy: %v", err)
	}
	if purchase.Handle != "alice" || purchase.Total != 100 {
		t.Fatalf("unexpected purchase: %+v", purchase)
	}
	if len(purchase.Contents) != 2 || purchase.Contents[0] != "s1" {
		t.Fatalf("unexpected contents: %v", purchase.Contents)
	}
	if purchase.NewBalance.Copper != 20 {
		t.Fatalf("expected 20 copper left, got %d", purchase.NewBalance.Copper)
	}

	// The cached balance matches the committed one.
	balance, err := ledgerSvc.Balance(ctx, "alice")
	if err != nil {
		t.Fatalf("balance: %v", err)
	}
	if balance.Copper != 20 {
		t.Fatalf("expected cached 20 copper, got %d", balance.Copper)
	}

	// The catalog reflects the claimed stock right away.
	listings, err := catalogSvc.Listings(ctx)
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	if len(listings) != 1 || listings[0].Available != 1 {
		t.Fatalf("expected 1 sword left in catalog, got %+v", listings)
	}

	records, err := store.ListTransactions(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if records[0].Type != storage.TxPurchase || records[0].ItemsCount != 2 {
		t.Fatalf("unexpected record: %+v", records[0])
	}
}

func TestBuyFailuresLeaveNoTrace(t *testing.T) {
	shopSvc, store, _, _ := newTestShop(t)
	ctx := context.Background()

	if _, err := shopSvc.Buy(ctx, "u1", "SWORD", 3); !errors.Is(err, storage.ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}
	if _, err := shopSvc.Buy(ctx, "u1", "SWORD", 4); !errors.Is(err, storage.ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}
	if _, err := shopSvc.Buy(ctx, "u1", "GHOST", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if _, err := shopSvc.Buy(ctx, "u1", "SWORD", 0); !errors.Is(err, ErrInvalidQuantity) {
		t.Fatalf("expected ErrInvalidQuantity, got %v", err)
	}
	if _, err := shopSvc.Buy(ctx, "unregistered", "SWORD", 1); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unregistered user, got %v", err)
	}

	balance, err := store.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Copper != 120 {
		t.Fatalf("expected untouched 120 copper, got %d", balance.Copper)
	}
	count, err := store.CountAvailableStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("count stock: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected untouched stock, got %d", count)
	}
}

func TestBuyWhileAccountHeld(t *testing.T) {
	shopSvc, _, ledgerSvc, _ := newTestShop(t)
	ctx := context.Background()

	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan error, 1)
	go func() {
		done <- ledgerSvc.WithAccountLock(ctx, "alice", func() error {
			close(started)
			<-release
			return nil
		})
	}()
	<-started

	if _, err := shopSvc.Buy(ctx, "u1", "SWORD", 1); !errors.Is(err, ledger.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(release)
	if err := <-done; err != nil {
		t.Fatalf("lock holder: %v", err)
	}

	if _, err := shopSvc.Buy(ctx, "u1", "SWORD", 1); err != nil {
		t.Fatalf("buy after release: %v", err)
	}
}
