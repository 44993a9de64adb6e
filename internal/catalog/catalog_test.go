package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Unix(1700000000, 0)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type countingStore struct {
	*storage.Store
	listReads atomic.Int64
}

func (c *countingStore) ListProducts(ctx context.Context) ([]storage.Product, error) {
	c.listReads.Add(1)
	return c.Store.ListProducts(ctx)
}

func newTestCatalog(t *testing.T) (*Service, *countingStore, *fakeClock) {
	t.Helper()
	store, err := storage.New(":memory:")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(store.Close)
	if err := store.Migrate(); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	ctx := context.Background()
	if err := store.UpsertProduct(ctx, storage.Product{Code: "SWORD", Name: "Sword", Price: 50}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if err := store.UpsertProduct(ctx, storage.Product{Code: "SHIELD", Name: "Shield", Price: 30}); err != nil {
		t.Fatalf("upsert product: %v", err)
	}
	if _, _, err := store.AddStockItems(ctx, "SWORD", []string{"s1", "s2"}, "admin"); err != nil {
		t.Fatalf("add stock: %v", err)
	}

	counting := &countingStore{Store: store}
	svc := NewService(counting, config.CatalogConfig{TTLSeconds: 60})
	clock := newFakeClock()
	svc.WithClock(clock)
	return svc, counting, clock
}

func TestListingsCached(t *testing.T) {
	svc, counting, clock := newTestCatalog(t)
	ctx := context.Background()

	listings, err := svc.Listings(ctx)
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	if len(listings) != 2 {
		t.Fatalf("expected 2 listings, got %d", len(listings))
	}
	if listings[1].Product.Code != "SWORD" || listings[1].Available != 2 {
		t.Fatalf("unexpected sword listing: %+v", listings[1])
	}
	if listings[0].Product.Code != "SHIELD" || listings[0].Available != 0 {
		t.Fatalf("unexpected shield listing: %+v", listings[0])
	}

	for i := 0; i < 3; i++ {
		if _, err := svc.Listings(ctx); err != nil {
			t.Fatalf("listings: %v", err)
		}
	}
	if reads := counting.listReads.Load(); reads != 1 {
		t.Fatalf("expected 1 store read, got %d", reads)
	}

	clock.Advance(61 * time.Second)
	if _, err := svc.Listings(ctx); err != nil {
		t.Fatalf("listings after expiry: %v", err)
	}
	if reads := counting.listReads.Load(); reads != 2 {
		t.Fatalf("expected refetch after expiry, got %d reads", reads)
	}
}

func TestInvalidateForcesRefetch(t *testing.T) {
	svc, counting, _ := newTestCatalog(t)
	ctx := context.Background()

	if _, err := svc.Listings(ctx); err != nil {
		t.Fatalf("listings: %v", err)
	}

	// Stock changed underneath; the stale listing must not survive.
	if _, _, err := counting.Store.AddStockItems(ctx, "SHIELD", []string{"sh1"}, "admin"); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	svc.Invalidate()

	listings, err := svc.Listings(ctx)
	if err != nil {
		t.Fatalf("listings: %v", err)
	}
	if listings[0].Product.Code != "SHIELD" || listings[0].Available != 1 {
		t.Fatalf("expected refreshed shield count, got %+v", listings[0])
	}
	if reads := counting.listReads.Load(); reads != 2 {
		t.Fatalf("expected 2 store reads, got %d", reads)
	}
}

func TestWorldInfoCache(t *testing.T) {
	svc, _, _ := newTestCatalog(t)
	ctx := context.Background()

	if _, err := svc.World(ctx); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := svc.SetWorld(ctx, storage.WorldInfo{World: "STOREWORLD", Owner: "alice"}); err != nil {
		t.Fatalf("set world: %v", err)
	}
	info, err := svc.World(ctx)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if info.World != "STOREWORLD" {
		t.Fatalf("expected STOREWORLD, got %q", info.World)
	}

	// Updating through the service drops the cached copy immediately.
	if err := svc.SetWorld(ctx, storage.WorldInfo{World: "NEWWORLD", Owner: "alice"}); err != nil {
		t.Fatalf("set world: %v", err)
	}
	info, err = svc.World(ctx)
	if err != nil {
		t.Fatalf("world: %v", err)
	}
	if info.World != "NEWWORLD" {
		t.Fatalf("expected NEWWORLD, got %q", info.World)
	}
}

func TestProductWithStockBypassesCache(t *testing.T) {
	svc, counting, _ := newTestCatalog(t)
	ctx := context.Background()

	product, count, err := svc.ProductWithStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("product with stock: %v", err)
	}
	if product.Price != 50 || count != 2 {
		t.Fatalf("unexpected product %+v count %d", product, count)
	}

	if _, _, err := counting.Store.AddStockItems(ctx, "SWORD", []string{"s3"}, "admin"); err != nil {
		t.Fatalf("add stock: %v", err)
	}
	_, count, err = svc.ProductWithStock(ctx, "SWORD")
	if err != nil {
		t.Fatalf("product with stock: %v", err)
	}
	if count != 3 {
		t.Fatalf("expected live count 3, got %d", count)
	}

	if _, _, err := svc.ProductWithStock(ctx, "GHOST"); !errors.Is(err, storage.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}
