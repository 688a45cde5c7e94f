package fakeapi

import (
	"cmp"
	"fmt"
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"
)

type brand struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description"`
	Logo        string `json:"logo"`
}

type category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      *int64 `json:"parent"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type image struct {
	ID           int64  `json:"id"`
	Image        string `json:"image"`
	AltText      string `json:"alt_text"`
	DisplayOrder int    `json:"display_order"`
}

type attributeValue struct {
	AttributeName string `json:"attribute_name"`
	AttributeSlug string `json:"attribute_slug"`
	Value         string `json:"value"`
}

type variant struct {
	id         int64
	sku        string
	priceCents *int64
	stock      int
	attributes []attributeValue
}

type product struct {
	id          int64
	name        string
	slug        string
	description string
	baseCents   int64
	brand       *brand
	category    *category
	images      []image
	attributes  []attributeValue
	variants    []*variant
	createdAt   time.Time
}

type variantJSON struct {
	ID              int64            `json:"id"`
	SKU             string           `json:"sku"`
	Price           *string          `json:"price"`
	EffectivePrice  string           `json:"effective_price"`
	StockQuantity   int              `json:"stock_quantity"`
	IsActive        bool             `json:"is_active"`
	AttributeValues []attributeValue `json:"attribute_values"`
}

type productJSON struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	BasePrice    string    `json:"base_price"`
	Brand        *brand    `json:"brand"`
	Category     *category `json:"category"`
	PrimaryImage *image    `json:"primary_image"`
	HasVariants  bool      `json:"has_variants"`
}

type productDetailJSON struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	BasePrice       string           `json:"base_price"`
	Brand           *brand           `json:"brand"`
	Category        *category        `json:"category"`
	Images          []image          `json:"images"`
	AttributeValues []attributeValue `json:"attribute_values"`
	HasVariants     bool             `json:"has_variants"`
	Variants        []variantJSON    `json:"variants"`
	AverageRating   *float64         `json:"average_rating"`
	ReviewCount     int              `json:"review_count"`
	IsActive        bool             `json:"is_active"`
}

func (v *variant) effectiveCents(p *product) int64 {
	if v.priceCents != nil {
		return *v.priceCents
	}
	return p.baseCents
}

func (v *variant) toJSON(p *product) variantJSON {
	out := variantJSON{
		ID:              v.id,
		SKU:             v.sku,
		EffectivePrice:  money(v.effectiveCents(p)),
		StockQuantity:   v.stock,
		IsActive:        true,
		AttributeValues: v.attributes,
	}
	if v.priceCents != nil {
		price := money(*v.priceCents)
		out.Price = &price
	}
	if out.AttributeValues == nil {
		out.AttributeValues = []attributeValue{}
	}
	return out
}

func (p *product) toJSON() productJSON {
	out := productJSON{
		ID:          p.id,
		Name:        p.name,
		Slug:        p.slug,
		BasePrice:   money(p.baseCents),
		Brand:       p.brand,
		Category:    p.category,
		HasVariants: len(p.variants) > 0,
	}
	if len(p.images) > 0 {
		img := p.images[0]
		out.PrimaryImage = &img
	}
	return out
}

func (p *product) toDetailJSON() productDetailJSON {
	out := productDetailJSON{
		ID:              p.id,
		Name:            p.name,
		Slug:            p.slug,
		Description:     p.description,
		BasePrice:       money(p.baseCents),
		Brand:           p.brand,
		Category:        p.category,
		Images:          append([]image{}, p.images...),
		AttributeValues: append([]attributeValue{}, p.attributes...),
		HasVariants:     len(p.variants) > 0,
		Variants:        []variantJSON{},
		IsActive:        true,
	}
	for _, v := range p.variants {
		out.Variants = append(out.Variants, v.toJSON(p))
	}
	return out
}

// inStock reports whether any variant has stock. Products without variants are always in stock.
func (p *product) inStock() bool {
	if len(p.variants) == 0 {
		return true
	}
	for _, v := range p.variants {
		if v.stock > 0 {
			return true
		}
	}
	return false
}

func cents(n int64) *int64 { return &n }

func (s *Server) seedCatalog() {
	s.mu.Lock()
	defer s.mu.Unlock()

	acme := &brand{ID: s.newIDLocked(), Name: "Acme", Slug: "acme", Description: "Everyday basics"}
	north := &brand{ID: s.newIDLocked(), Name: "Northwind", Slug: "northwind", Description: "Outdoor gear"}

	apparel := &category{ID: s.newIDLocked(), Name: "Apparel", Slug: "apparel", Description: "Clothing", IsActive: true}
	accessories := &category{ID: s.newIDLocked(), Name: "Accessories", Slug: "accessories", Description: "Hats and bags", IsActive: true}
	hats := &category{ID: s.newIDLocked(), Name: "Hats", Slug: "hats", Parent: &accessories.ID, Description: "Caps and beanies", IsActive: true}
	s.categories = []*category{apparel, accessories, hats}

	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	size := func(v string) []attributeValue {
		return []attributeValue{{AttributeName: "Size", AttributeSlug: "size", Value: v}}
	}

	s.products = []*product{
		{
			id: s.newIDLocked(), name: "Classic Tee", slug: "classic-tee",
			description: "Heavyweight cotton tee.", baseCents: 1999,
			brand: acme, category: apparel,
			images:     []image{{ID: s.newIDLocked(), Image: "/media/products/classic-tee.jpg", AltText: "Classic Tee"}},
			attributes: []attributeValue{{AttributeName: "Material", AttributeSlug: "material", Value: "Cotton"}},
			variants: []*variant{
				{id: s.newIDLocked(), sku: "TEE-S", stock: 10, attributes: size("S")},
				{id: s.newIDLocked(), sku: "TEE-L", priceCents: cents(2199), stock: 2, attributes: size("L")},
			},
			createdAt: base,
		},
		{
			id: s.newIDLocked(), name: "Trail Cap", slug: "trail-cap",
			description: "Lightweight running cap.", baseCents: 1250,
			brand: north, category: hats,
			createdAt: base.Add(24 * time.Hour),
		},
		{
			id: s.newIDLocked(), name: "Canvas Tote", slug: "canvas-tote",
			description: "Sturdy canvas bag.", baseCents: 2500,
			brand: acme, category: accessories,
			variants: []*variant{
				{id: s.newIDLocked(), sku: "TOTE-NAT", stock: 0, attributes: []attributeValue{{AttributeName: "Color", AttributeSlug: "color", Value: "Natural"}}},
			},
			createdAt: base.Add(48 * time.Hour),
		},
		{
			id: s.newIDLocked(), name: "Rain Shell", slug: "rain-shell",
			description: "Packable waterproof shell.", baseCents: 8900,
			brand: north, category: apparel,
			createdAt: base.Add(72 * time.Hour),
		},
	}
}

func (s *Server) findProductLocked(id int64) *product {
	for _, p := range s.products {
		if p.id == id {
			return p
		}
	}
	return nil
}

func (s *Server) findVariantLocked(id int64) (*product, *variant) {
	for _, p := range s.products {
		for _, v := range p.variants {
			if v.id == id {
				return p, v
			}
		}
	}
	return nil, nil
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Categories are not paginated
	writeJSON(w, http.StatusOK, s.categories)
}

func (s *Server) handleCategory(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, c := range s.categories {
		if c.Slug == r.PathValue("slug") {
			writeJSON(w, http.StatusOK, c)
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "No Category matches the given query.")
}

func (s *Server) handleProducts(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	s.mu.Lock()
	defer s.mu.Unlock()

	var matched []*product
	for _, p := range s.products {
		if v := q.Get("category"); v != "" && (p.category == nil || strconv.FormatInt(p.category.ID, 10) != v) {
			continue
		}
		if v := q.Get("brand"); v != "" && (p.brand == nil || strconv.FormatInt(p.brand.ID, 10) != v) {
			continue
		}
		if v := q.Get("has_variants"); v != "" && strconv.FormatBool(len(p.variants) > 0) != strings.ToLower(v) {
			continue
		}
		matched = append(matched, p)
	}

	ordering := q.Get("ordering")
	if ordering == "" {
		ordering = "-created_at"
	}
	desc := strings.HasPrefix(ordering, "-")
	field := strings.TrimPrefix(ordering, "-")
	compare := func(a, b *product) int {
		switch field {
		case "base_price":
			return cmp.Compare(a.baseCents, b.baseCents)
		case "name":
			return strings.Compare(a.name, b.name)
		default:
			return a.createdAt.Compare(b.createdAt)
		}
	}
	slices.SortStableFunc(matched, func(a, b *product) int {
		if desc {
			return compare(b, a)
		}
		return compare(a, b)
	})

	page := 1
	if v := q.Get("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeDetail(w, http.StatusNotFound, "Invalid page.")
			return
		}
		page = n
	}
	start := (page - 1) * s.pageSize
	if start > 0 && start >= len(matched) {
		writeDetail(w, http.StatusNotFound, "Invalid page.")
		return
	}
	end := min(start+s.pageSize, len(matched))

	results := make([]productJSON, 0, end-start)
	for _, p := range matched[start:end] {
		results = append(results, p.toJSON())
	}

	var next, previous *string
	if end < len(matched) {
		u := s.pageURL(r.URL, page+1)
		next = &u
	}
	if page > 1 {
		u := s.pageURL(r.URL, page-1)
		previous = &u
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(matched),
		"next":     next,
		"previous": previous,
		"results":  results,
	})
}

func (s *Server) pageURL(current *url.URL, page int) string {
	q := current.Query()
	q.Set("page", strconv.Itoa(page))
	return fmt.Sprintf("%s%s?%s", s.URL, current.Path, q.Encode())
}

func (s *Server) handleProduct(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, p := range s.products {
		if p.slug == r.PathValue("slug") {
			writeJSON(w, http.StatusOK, p.toDetailJSON())
			return
		}
	}
	writeDetail(w, http.StatusNotFound, "No Product matches the given query.")
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	query := strings.ToLower(strings.TrimSpace(q.Get("q")))
	if query == "" {
		writeJSON(w, http.StatusOK, map[string]any{"results": []productJSON{}, "total": 0})
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.searchFallback {
		results := []productJSON{}
		for _, p := range s.products {
			if strings.Contains(strings.ToLower(p.name), query) {
				results = append(results, p.toJSON())
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"results": results, "total": len(results), "page": 1, "page_size": 50, "fallback": true,
		})
		return
	}

	minPrice, _ := strconv.ParseFloat(q.Get("min_price"), 64)
	maxPrice, _ := strconv.ParseFloat(q.Get("max_price"), 64)

	var matched []*product
	for _, p := range s.products {
		text := strings.ToLower(p.name + " " + p.description)
		if !strings.Contains(text, query) {
			continue
		}
		if v := q.Get("category"); v != "" && (p.category == nil || p.category.Slug != v) {
			continue
		}
		if v := q.Get("brand"); v != "" && (p.brand == nil || p.brand.Slug != v) {
			continue
		}
		price := float64(p.baseCents) / 100
		if minPrice > 0 && price < minPrice {
			continue
		}
		if maxPrice > 0 && price > maxPrice {
			continue
		}
		if strings.ToLower(q.Get("in_stock")) == "true" && !p.inStock() {
			continue
		}
		matched = append(matched, p)
	}

	switch q.Get("sort") {
	case "price_asc":
		slices.SortStableFunc(matched, func(a, b *product) int { return cmp.Compare(a.baseCents, b.baseCents) })
	case "price_desc":
		slices.SortStableFunc(matched, func(a, b *product) int { return cmp.Compare(b.baseCents, a.baseCents) })
	case "newest":
		slices.SortStableFunc(matched, func(a, b *product) int { return b.createdAt.Compare(a.createdAt) })
	}

	page, _ := strconv.Atoi(q.Get("page"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(q.Get("page_size"))
	if pageSize < 1 {
		pageSize = 20
	}
	start := min((page-1)*pageSize, len(matched))
	end := min(start+pageSize, len(matched))

	results := make([]productJSON, 0, end-start)
	for _, p := range matched[start:end] {
		results = append(results, p.toJSON())
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"results":   results,
		"total":     len(results),
		"page":      page,
		"page_size": pageSize,
	})
}
