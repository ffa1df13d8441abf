package catalog

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/noah-isme/backend-bazaar/internal/cache"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

const cacheKeyProducts = "catalog:products"

// ErrNotFound indicates the requested product does not exist or is inactive.
var ErrNotFound = errors.New("product not found")

// Querier is the persistence surface the catalog needs.
type Querier interface {
	ListActiveProducts(ctx context.Context) ([]store.Product, error)
	GetProductBySlug(ctx context.Context, slug string) (store.Product, error)
}

// Service serves the storefront product listing. The listing changes rarely
// relative to read volume, so it goes through a short-lived cache.
type Service struct {
	Q        Querier
	Cache    *cache.Cache
	CacheTTL time.Duration
}

// List returns all active products.
func (s *Service) List(ctx context.Context) ([]store.Product, error) {
	if s == nil || s.Q == nil {
		return nil, errors.New("catalog service not configured")
	}
	var cached []store.Product
	if s.Cache.Get(ctx, cacheKeyProducts, &cached) {
		return cached, nil
	}
	products, err := s.Q.ListActiveProducts(ctx)
	if err != nil {
		return nil, err
	}
	s.Cache.Set(ctx, cacheKeyProducts, products, s.CacheTTL)
	return products, nil
}

// BySlug returns one active product.
func (s *Service) BySlug(ctx context.Context, slug string) (store.Product, error) {
	if s == nil || s.Q == nil {
		return store.Product{}, errors.New("catalog service not configured")
	}
	p, err := s.Q.GetProductBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return store.Product{}, ErrNotFound
		}
		return store.Product{}, err
	}
	if !p.Active {
		return store.Product{}, ErrNotFound
	}
	return p, nil
}
