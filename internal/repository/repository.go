package repository

import (
	"context"

	"github.com/veltashop/inventory/internal/domain"
)

// AdjustParams describes one relative stock change.
type AdjustParams struct {
	ProductID   string
	VariationID *string
	Delta       int
	Category    string
	Reason      string
	UserID      *string
	Reference   *string
}

// SetParams describes one absolute stock write.
type SetParams struct {
	ProductID   string
	VariationID *string
	Quantity    int
	Category    string
	Reason      string
	UserID      *string
	Reference   *string
}

// StockRepository defines stock persistence operations.
type StockRepository interface {
	// GetProduct retrieves a product by ID. Soft-deleted products are not returned.
	GetProduct(ctx context.Context, id string) (*domain.Product, error)

	// GetVariation retrieves a product variation by ID.
	GetVariation(ctx context.Context, id string) (*domain.Variation, error)

	// GetStockItem retrieves the current stock for a product, or for one of
	// its variations when variationID is set.
	GetStockItem(ctx context.Context, productID string, variationID *string) (*domain.StockItem, error)

	// AdjustQuantity atomically applies a signed delta to the stock item and
	// appends a ledger row, all in one transaction. The row is locked for
	// the duration so concurrent adjustments serialize. Returns
	// ErrInsufficientStock when the delta would drive the quantity negative;
	// nothing is written in that case.
	AdjustQuantity(ctx context.Context, params AdjustParams) (*domain.Adjustment, *domain.StockItem, error)

	// SetQuantity atomically writes an absolute quantity, journaling the
	// implied delta. Writing the current quantity is a no-op and returns a
	// nil adjustment.
	SetQuantity(ctx context.Context, params SetParams) (*domain.Adjustment, *domain.StockItem, error)

	// ListBelowThreshold returns tracked products and variations whose
	// quantity sits in the low-stock band (above zero, at or below the
	// product's threshold). Variation rows carry a non-nil VariationID.
	ListBelowThreshold(ctx context.Context, page, perPage int) ([]domain.StockItem, int, error)
}

// AdjustmentRepository defines read access to the adjustment ledger.
type AdjustmentRepository interface {
	// List returns ledger rows matching the filter, newest first.
	List(ctx context.Context, filter domain.AdjustmentFilter, page, perPage int) ([]domain.Adjustment, int, error)
}

// UserRepository defines the directory lookups stock alerting needs.
type UserRepository interface {
	// ListAlertRecipients returns the users who receive low-stock alerts.
	ListAlertRecipients(ctx context.Context) ([]domain.User, error)
}
