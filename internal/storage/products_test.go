package storage

import (
	"context"
	"errors"
	"testing"
)

func seedShop(t *testing.T, store *Store) {
	t.Helper()
	ctx := context.Background()
	if err := store.UpsertProduct(ctx, Product{Code: "SWORD", Name: "Rare Sword", Price: 50, Description: "sharp"}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if _, _, err := store.AddStockItems(ctx, "SWORD", []string{"sword-001", "sword-002", "sword-003"}, "admin1"); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if err := store.CreateAccount(ctx, "alice"); err != nil {
		t.Fatalf("create account: %v", err)
	}
	if _, err := store.MutateBalance(ctx, "alice", BalanceDelta{Copper: 120}, TxAdminAdd, "seed", true); err != nil {
		t.Fatalf("seed balance: %v", err)
	}
}

func TestProductCRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetProduct(ctx, "SWORD"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.UpsertProduct(ctx, Product{Code: "SWORD", Name: "Sword", Price: 10}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if err := store.UpsertProduct(ctx, Product{Code: "SWORD", Name: "Rare Sword", Price: 50}); err != nil {
		t.Fatalf("re-upsert product: %v", err)
	}

	got, err := store.GetProduct(ctx, "SWORD")
	if err != nil {
		t.Fatalf("get product: %v", err)
	}
	if got.Name != "Rare Sword" || got.Price != 50 {
		t.Fatalf("unexpected product: %+v", got)
	}

	if err := store.UpsertProduct(ctx, Product{Code: "AXE", Name: "Axe", Price: 20}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	products, err := store.ListProducts(ctx)
	if err != nil {
		t.Fatalf("list products: %v", err)
	}
	if len(products) != 2 || products[0].Code != "AXE" || products[1].Code != "SWORD" {
		t.Fatalf("unexpected products: %+v", products)
	}

	if err := store.DeleteProduct(ctx, "AXE"); err != nil {
		t.Fatalf("delete product: %v", err)
	}
	if err := store.DeleteProduct(ctx, "AXE"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestAddStockItemsSkipsDuplicates(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.UpsertProduct(ctx, Product{Code: "SWORD", Name: "Sword", Price: 10}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}

	added, dupes, err := store.AddStockItems(ctx, "SWORD", []string{"a", "b"}, "admin1")
	if err != nil {
		t.Fatalf("add stock: %v", err)
	}
	if added != 2 || len(dupes) != 0 {
		t.Fatalf("expected 2 added, got %d added %v dupes", added, dupes)
	}

	added, dupes, err = store.AddStockItems(ctx, "SWORD", []string{"b", "c"}, "admin1")
	if err != nil {
		t.Fatalf("add stock with dupe: %v", err)
	}
	if added != 1 || len(dupes) != 1 || dupes[0] != "b" {
		t.Fatalf("expected 1 added and b skipped, got %d added %v dupes", added, dupes)
	}

	count, err := store.CountAvailableStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("count stock: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 available, got %d", count)
	}

	if _, _, err := store.AddStockItems(ctx, "GHOST", []string{"x"}, "admin1"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestApplyPurchase(t *testing.T) {
	store := newTestStore(t)
	seedShop(t, store)
	ctx := context.Background()

	result, err := store.ApplyPurchase(ctx, "alice", "SWORD", 2)
	if err != nil {
		t.Fatalf("apply purchase: %v", err)
	}
	if result.Total != 100 {
		t.Fatalf("expected total 100, got %d", result.Total)
	}
	if result.NewBalance.Copper != 20 {
		t.Fatalf("expected 20 copper left, got %d", result.NewBalance.Copper)
	}
	if len(result.Contents) != 2 || result.Contents[0] != "sword-001" || result.Contents[1] != "sword-002" {
		t.Fatalf("unexpected contents: %v", result.Contents)
	}

	count, err := store.CountAvailableStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("count stock: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 available, got %d", count)
	}

	records, err := store.ListTransactions(ctx, "alice", 1)
	if err != nil {
		t.Fatalf("list transactions: %v", err)
	}
	if len(records) != 1 || records[0].Type != TxPurchase {
		t.Fatalf("expected purchase record, got %+v", records)
	}
	if records[0].ItemsCount != 2 || records[0].TotalPrice != 100 {
		t.Fatalf("unexpected purchase record: %+v", records[0])
	}
}

func TestApplyPurchaseInsufficientFunds(t *testing.T) {
	store := newTestStore(t)
	seedShop(t, store)
	ctx := context.Background()

	if _, err := store.ApplyPurchase(ctx, "alice", "SWORD", 3); !errors.Is(err, ErrInsufficientFunds) {
		t.Fatalf("expected ErrInsufficientFunds, got %v", err)
	}

	// The rollback left funds and stock untouched.
	balance, err := store.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Copper != 120 {
		t.Fatalf("expected 120 copper, got %d", balance.Copper)
	}
	count, err := store.CountAvailableStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("count stock: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected 3 available, got %d", count)
	}
}

func TestApplyPurchaseInsufficientStock(t *testing.T) {
	store := newTestStore(t)
	seedShop(t, store)
	ctx := context.Background()

	if _, err := store.ApplyPurchase(ctx, "alice", "SWORD", 4); !errors.Is(err, ErrInsufficientStock) {
		t.Fatalf("expected ErrInsufficientStock, got %v", err)
	}

	balance, err := store.GetBalance(ctx, "alice")
	if err != nil {
		t.Fatalf("get balance: %v", err)
	}
	if balance.Copper != 120 {
		t.Fatalf("expected 120 copper, got %d", balance.Copper)
	}

	if _, err := store.ApplyPurchase(ctx, "alice", "GHOST", 1); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound for unknown product, got %v", err)
	}
}

func TestWorldInfo(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.GetWorldInfo(ctx); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := store.SetWorldInfo(ctx, WorldInfo{World: "STOREWORLD", Owner: "alice", Keeper: "bot"}); err != nil {
		t.Fatalf("set world info: %v", err)
	}
	if err := store.SetWorldInfo(ctx, WorldInfo{World: "NEWWORLD", Owner: "alice", Keeper: "bot"}); err != nil {
		t.Fatalf("update world info: %v", err)
	}

	info, err := store.GetWorldInfo(ctx)
	if err != nil {
		t.Fatalf("get world info: %v", err)
	}
	if info.World != "NEWWORLD" {
		t.Fatalf("expected NEWWORLD, got %q", info.World)
	}
}
