package cart

import "storefront-go/internal/catalog"

// Item is one line of the server cart.
type Item struct {
	ID        int64            `json:"id"`
	Product   catalog.Product  `json:"product"`
	Variant   *catalog.Variant `json:"variant"`
	Quantity  int              `json:"quantity"`
	CreatedAt string           `json:"created_at,omitempty"`
}

// Cart is the server cart. Total is a decimal string.
type Cart struct {
	ID        int64  `json:"id"`
	Items     []Item `json:"items"`
	Total     string `json:"total"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

// Count returns the total quantity across all items.
func Count(c Cart) int {
	n := 0
	for _, item := range c.Items {
		if item.Quantity > 0 {
			n += item.Quantity
		}
	}
	return n
}
