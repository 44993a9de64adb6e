// Package catalog serves the shop listing and world info from short-lived
// caches so browsing traffic stays off the database.
package catalog

import (
	"context"
	"time"

	"storekeeper/internal/config"
	"storekeeper/internal/storage"
	"storekeeper/internal/utils"
)

const (
	listingsKey = "listings"
	worldKey    = "world"
)

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type Store interface {
	ListProducts(ctx context.Context) ([]storage.Product, error)
	AvailableStockCounts(ctx context.Context) (map[string]int, error)
	GetProduct(ctx context.Context, code string) (storage.Product, error)
	CountAvailableStock(ctx context.Context, code string) (int, error)
	GetWorldInfo(ctx context.Context) (storage.WorldInfo, error)
	SetWorldInfo(ctx context.Context, info storage.WorldInfo) error
}

// Listing pairs a product with how many items are on the shelf.
type Listing struct {
	Product   storage.Product
	Available int
}

type Service struct {
	store    Store
	clock    Clock
	listings *utils.TTLCache[[]Listing]
	world    *utils.TTLCache[storage.WorldInfo]
}

func NewService(store Store, cfg config.CatalogConfig) *Service {
	ttl := time.Duration(cfg.TTLSeconds) * time.Second
	return &Service{
		store:    store,
		clock:    realClock{},
		listings: utils.NewTTLCache[[]Listing](ttl),
		world:    utils.NewTTLCache[storage.WorldInfo](ttl),
	}
}

func (s *Service) WithClock(clock Clock) {
	s.clock = clock
}

// Listings returns every product with its available stock count, cached for
// the configured TTL.
func (s *Service) Listings(ctx context.Context) ([]Listing, error) {
	if cached, ok := s.listings.Get(listingsKey, s.clock.Now()); ok {
		return cached, nil
	}

	products, err := s.store.ListProducts(ctx)
	if err != nil {
		return nil, err
	}
	counts, err := s.store.AvailableStockCounts(ctx)
	if err != nil {
		return nil, err
	}

	listings := make([]Listing, 0, len(products))
	for _, product := range products {
		listings = append(listings, Listing{Product: product, Available: counts[product.Code]})
	}
	s.listings.Set(listingsKey, listings, s.clock.Now())
	return listings, nil
}

// ProductWithStock reads straight through to the store. Purchase flows need
// the current count, not a cached one.
func (s *Service) ProductWithStock(ctx context.Context, code string) (storage.Product, int, error) {
	product, err := s.store.GetProduct(ctx, code)
	if err != nil {
		return storage.Product{}, 0, err
	}
	count, err := s.store.CountAvailableStock(ctx, code)
	if err != nil {
		return storage.Product{}, 0, err
	}
	return product, count, nil
}

func (s *Service) World(ctx context.Context) (storage.WorldInfo, error) {
	if cached, ok := s.world.Get(worldKey, s.clock.Now()); ok {
		return cached, nil
	}
	info, err := s.store.GetWorldInfo(ctx)
	if err != nil {
		return storage.WorldInfo{}, err
	}
	s.world.Set(worldKey, info, s.clock.Now())
	return info, nil
}

func (s *Service) SetWorld(ctx context.Context, info storage.WorldInfo) error {
	if err := s.store.SetWorldInfo(ctx, info); err != nil {
		return err
	}
	s.world.Invalidate(worldKey)
	return nil
}

// Invalidate drops the cached listing. Called whenever stock or products
// change so shoppers never see counts the shelf no longer backs.
func (s *Service) Invalidate() {
	s.listings.Invalidate(listingsKey)
}
