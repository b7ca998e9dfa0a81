package domain

import (
	"time"
)

// Adjustment is one row of the stock adjustment ledger. Every quantity change
// appends exactly one row; the ledger is never updated in place.
type Adjustment struct {
	ID             string    `json:"id"`
	ProductID      string    `json:"product_id"`
	VariationID    *string   `json:"variation_id,omitempty"`
	UserID         *string   `json:"user_id,omitempty"`
	Reference      *string   `json:"reference,omitempty"`
	Category       string    `json:"category"`
	QuantityBefore int       `json:"quantity_before"`
	QuantityAfter  int       `json:"quantity_after"`
	Adjustment     int       `json:"adjustment"`
	Reason         string    `json:"reason"`
	CreatedAt      time.Time `json:"created_at"`
}

// Consistent reports whether the signed delta matches the before/after pair.
func (a *Adjustment) Consistent() bool {
	return a.Adjustment == a.QuantityAfter-a.QuantityBefore
}

// AdjustmentFilter narrows ledger listings.
type AdjustmentFilter struct {
	ProductID   string
	VariationID *string
	// ProductScope includes variation rows of the product when listing by
	// product, not just product-level rows.
	ProductScope bool
	Category     string
	From         *time.Time
	To           *time.Time
}
