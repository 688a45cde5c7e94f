package catalog

// Brand is a product manufacturer.
type Brand struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Description string `json:"description,omitempty"`
	Logo        string `json:"logo,omitempty"`
}

// Category groups products. Parent is nil for top-level categories.
type Category struct {
	ID          int64  `json:"id"`
	Name        string `json:"name"`
	Slug        string `json:"slug"`
	Parent      *int64 `json:"parent"`
	Description string `json:"description"`
	IsActive    bool   `json:"is_active"`
}

type Image struct {
	ID           int64  `json:"id"`
	Image        string `json:"image"`
	AltText      string `json:"alt_text"`
	DisplayOrder int    `json:"display_order"`
}

type AttributeValue struct {
	AttributeName string `json:"attribute_name"`
	AttributeSlug string `json:"attribute_slug"`
	Value         string `json:"value"`
}

// Variant is a purchasable configuration of a product. Prices are decimal
// strings as sent by the server.
type Variant struct {
	ID              int64            `json:"id"`
	SKU             string           `json:"sku"`
	Price           *string          `json:"price"`
	EffectivePrice  string           `json:"effective_price"`
	StockQuantity   int              `json:"stock_quantity"`
	IsActive        bool             `json:"is_active"`
	AttributeValues []AttributeValue `json:"attribute_values"`
}

// InStock reports whether at least qty units are available.
func (v Variant) InStock(qty int) bool {
	return v.StockQuantity >= qty
}

// Product is the list representation of a product.
type Product struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	Slug         string    `json:"slug"`
	BasePrice    string    `json:"base_price"`
	Brand        *Brand    `json:"brand"`
	Category     *Category `json:"category"`
	PrimaryImage *Image    `json:"primary_image"`
	HasVariants  bool      `json:"has_variants"`
}

// ProductDetail is the full product with images, attributes and variants.
type ProductDetail struct {
	ID              int64            `json:"id"`
	Name            string           `json:"name"`
	Slug            string           `json:"slug"`
	Description     string           `json:"description"`
	BasePrice       string           `json:"base_price"`
	Brand           *Brand           `json:"brand"`
	Category        *Category        `json:"category"`
	Images          []Image          `json:"images"`
	AttributeValues []AttributeValue `json:"attribute_values"`
	HasVariants     bool             `json:"has_variants"`
	Variants        []Variant        `json:"variants"`
	AverageRating   *float64         `json:"average_rating"`
	ReviewCount     int              `json:"review_count"`
	IsActive        bool             `json:"is_active"`
}

// Variant returns the variant with the given id.
func (p ProductDetail) Variant(id int64) (Variant, bool) {
	for _, v := range p.Variants {
		if v.ID == id {
			return v, true
		}
	}
	return Variant{}, false
}

// SearchResult is the response of the search endpoint. Fallback is set when
// the server answered from its database instead of the search index.
type SearchResult struct {
	Results  []Product `json:"results"`
	Total    int       `json:"total"`
	Page     int       `json:"page"`
	PageSize int       `json:"page_size"`
	Fallback bool      `json:"fallback,omitempty"`
}
