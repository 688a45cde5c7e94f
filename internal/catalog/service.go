// Package catalog reads categories and products.
package catalog

import (
	"context"
	"fmt"
	"net/url"
	"strconv"
	"sync"

	"storefront-go/internal/api"
	"storefront-go/internal/worker"
)

// ProductQuery filters the product list. Zero values are omitted.
type ProductQuery struct {
	Category    int64  `validate:"gte=0"`
	Brand       int64  `validate:"gte=0"`
	HasVariants *bool
	Ordering    string `validate:"omitempty,oneof=base_price -base_price created_at -created_at name -name"`
	Page        int    `validate:"gte=0"`
}

func (q ProductQuery) values() url.Values {
	v := url.Values{}
	if q.Category > 0 {
		v.Set("category", strconv.FormatInt(q.Category, 10))
	}
	if q.Brand > 0 {
		v.Set("brand", strconv.FormatInt(q.Brand, 10))
	}
	if q.HasVariants != nil {
		v.Set("has_variants", strconv.FormatBool(*q.HasVariants))
	}
	if q.Ordering != "" {
		v.Set("ordering", q.Ordering)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	return v
}

// SearchQuery is a full-text product search.
type SearchQuery struct {
	Query    string  `validate:"required"`
	Category string
	Brand    string
	MinPrice float64 `validate:"gte=0"`
	MaxPrice float64 `validate:"gte=0"`
	InStock  *bool
	Sort     string `validate:"omitempty,oneof=_score price_asc price_desc rating newest"`
	Page     int    `validate:"gte=0"`
	PageSize int    `validate:"gte=0,lte=100"`
}

func (q SearchQuery) values() url.Values {
	v := url.Values{"q": {q.Query}}
	if q.Category != "" {
		v.Set("category", q.Category)
	}
	if q.Brand != "" {
		v.Set("brand", q.Brand)
	}
	if q.MinPrice > 0 {
		v.Set("min_price", strconv.FormatFloat(q.MinPrice, 'f', -1, 64))
	}
	if q.MaxPrice > 0 {
		v.Set("max_price", strconv.FormatFloat(q.MaxPrice, 'f', -1, 64))
	}
	if q.InStock != nil {
		v.Set("in_stock", strconv.FormatBool(*q.InStock))
	}
	if q.Sort != "" {
		v.Set("sort", q.Sort)
	}
	if q.Page > 0 {
		v.Set("page", strconv.Itoa(q.Page))
	}
	if q.PageSize > 0 {
		v.Set("page_size", strconv.Itoa(q.PageSize))
	}
	return v
}

// Service reads the public catalog.
type Service struct {
	client *api.Client
	pool   *worker.WorkerPool
}

// NewService creates a catalog service. pool is used by ProductsBySlug.
func NewService(client *api.Client, pool *worker.WorkerPool) *Service {
	return &Service{client: client, pool: pool}
}

// Categories lists active categories.
func (s *Service) Categories(ctx context.Context) ([]Category, error) {
	var page api.Page[Category]
	if err := s.client.Get(ctx, "/api/catalog/categories/", nil, &page); err != nil {
		return nil, fmt.Errorf("failed to list categories: %w", err)
	}
	return page.Results, nil
}

// Category fetches one category by slug.
func (s *Service) Category(ctx context.Context, slug string) (*Category, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", api.ErrInvalidInput)
	}
	var c Category
	if err := s.client.Get(ctx, "/api/catalog/categories/"+url.PathEscape(slug)+"/", nil, &c); err != nil {
		return nil, fmt.Errorf("failed to get category %s: %w", slug, err)
	}
	return &c, nil
}

// Products lists products matching q.
func (s *Service) Products(ctx context.Context, q ProductQuery) (*api.Page[Product], error) {
	if err := api.ValidateRequest(q); err != nil {
		return nil, err
	}
	var page api.Page[Product]
	if err := s.client.Get(ctx, "/api/catalog/products/", q.values(), &page); err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	return &page, nil
}

// Product fetches a product with its variants.
func (s *Service) Product(ctx context.Context, slug string) (*ProductDetail, error) {
	if slug == "" {
		return nil, fmt.Errorf("%w: slug is required", api.ErrInvalidInput)
	}
	var p ProductDetail
	if err := s.client.Get(ctx, "/api/catalog/products/"+url.PathEscape(slug)+"/", nil, &p); err != nil {
		return nil, fmt.Errorf("failed to get product %s: %w", slug, err)
	}
	return &p, nil
}

// ProductsBySlug fetches several products concurrently. Results keep the
// order of slugs; the error joins every failed lookup.
func (s *Service) ProductsBySlug(ctx context.Context, slugs ...string) ([]*ProductDetail, error) {
	products := make([]*ProductDetail, len(slugs))
	var mu sync.Mutex

	tasks := make([]worker.Task, len(slugs))
	for i, slug := range slugs {
		tasks[i] = worker.Named("catalog_product", worker.TaskFunc(func(ctx context.Context) error {
			p, err := s.Product(ctx, slug)
			if err != nil {
				return err
			}
			mu.Lock()
			products[i] = p
			mu.Unlock()
			return nil
		}))
	}

	if err := s.pool.Run(ctx, tasks...); err != nil {
		return products, err
	}
	return products, nil
}

// Search runs a full-text search.
func (s *Service) Search(ctx context.Context, q SearchQuery) (*SearchResult, error) {
	if err := api.ValidateRequest(q); err != nil {
		return nil, err
	}
	if q.MaxPrice > 0 && q.MaxPrice < q.MinPrice {
		return nil, fmt.Errorf("%w: max price below min price", api.ErrInvalidInput)
	}
	var result SearchResult
	if err := s.client.Get(ctx, "/api/catalog/search/", q.values(), &result); err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}
	return &result, nil
}
