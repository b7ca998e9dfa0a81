package domain

import (
	"time"
)

// DefaultLowStockThreshold is the built-in threshold, matching the schema
// column default. The runtime default for product saves comes from config.
const DefaultLowStockThreshold = 5

// Product is the catalog entry whose stock this service manages. Products
// with variations track quantity per variation; the product-level quantity is
// then the sum maintained by the variation writes.
type Product struct {
	ID                string     `json:"id"`
	Name              string     `json:"name"`
	SKU               string     `json:"sku"`
	Quantity          int        `json:"quantity"`
	SoldCount         int        `json:"sold_count"`
	LowStockThreshold int        `json:"low_stock_threshold"`
	TrackStock        bool       `json:"track_stock"`
	CreatedAt         time.Time  `json:"created_at"`
	UpdatedAt         time.Time  `json:"updated_at"`
	DeletedAt         *time.Time `json:"deleted_at,omitempty"`
}

// Variation is a sellable variant of a product (size, color) with its own
// quantity.
type Variation struct {
	ID        string    `json:"id"`
	ProductID string    `json:"product_id"`
	Name      string    `json:"name"`
	SKU       string    `json:"sku"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StockItem is the unit stock operations act on: a product, or one of its
// variations when VariationID is set.
type StockItem struct {
	ProductID         string  `json:"product_id"`
	VariationID       *string `json:"variation_id,omitempty"`
	Quantity          int     `json:"quantity"`
	LowStockThreshold int     `json:"low_stock_threshold"`
}

// InLowStockBand reports whether a quantity sits in the low-stock alert band:
// above zero and at or below the threshold. Zero is excluded; out-of-stock is
// a distinct condition from running low.
func InLowStockBand(quantity, threshold int) bool {
	return quantity > 0 && quantity <= threshold
}

// Adjustment categories.
const (
	CategoryManual      = "manual"
	CategoryOrder       = "order"
	CategoryOrderCancel = "order_cancel"
	CategorySystem      = "system"
)

// Categories returns the set of valid adjustment categories.
func Categories() []string {
	return []string{CategoryManual, CategoryOrder, CategoryOrderCancel, CategorySystem}
}

// IsValidCategory reports whether the given category is recognized.
func IsValidCategory(category string) bool {
	for _, c := range Categories() {
		if c == category {
			return true
		}
	}
	return false
}
