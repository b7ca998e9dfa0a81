package tracking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/pkg/database"
	apperrors "github.com/veltashop/inventory/pkg/errors"
)

// UntrackedChangeReason is the ledger reason recorded for quantity changes
// that arrive through a full-record save instead of the stock service.
const UntrackedChangeReason = "automatic adjustment (untracked change)"

// StockAlerter is notified after a committed quantity change so the
// low-stock check runs. Best-effort; implementations must not return errors
// into the save path.
type StockAlerter interface {
	CheckAndNotify(ctx context.Context, item *domain.StockItem)
}

// TrackedWriter is the write path for full-record product and variation
// saves (admin edits, imports). It detects quantity changes the stock
// service did not make and journals them as system adjustments in the same
// transaction as the save, unless the call context says the service already
// journaled this mutation.
type TrackedWriter struct {
	pool    database.DBTX
	alerter StockAlerter
	logger  *slog.Logger
}

// NewTrackedWriter creates a tracked writer. alerter may be nil.
func NewTrackedWriter(pool database.DBTX, alerter StockAlerter, logger *slog.Logger) *TrackedWriter {
	return &TrackedWriter{pool: pool, alerter: alerter, logger: logger}
}

// SaveProduct persists the full product record. A changed quantity is
// journaled as a system adjustment unless this call context already recorded
// the mutation. Returns the appended ledger row, or nil when nothing was
// journaled.
func (w *TrackedWriter) SaveProduct(ctx context.Context, p *domain.Product) (*domain.Adjustment, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		prevQty   int
		threshold int
		tracked   bool
	)
	err = tx.QueryRow(ctx, `
		SELECT quantity, low_stock_threshold, track_stock
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, p.ID).Scan(&prevQty, &threshold, &tracked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", p.ID)
		}
		return nil, fmt.Errorf("lock product row: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE products
		SET name = $1, sku = $2, quantity = $3, low_stock_threshold = $4, track_stock = $5, updated_at = NOW()
		WHERE id = $6`,
		p.Name, p.SKU, p.Quantity, p.LowStockThreshold, p.TrackStock, p.ID)
	if err != nil {
		return nil, fmt.Errorf("save product: %w", err)
	}

	var adj *domain.Adjustment
	if tracked && p.Quantity != prevQty && !IsRecorded(ctx, p.ID, nil) {
		adj, err = appendSystemAdjustment(ctx, tx, p.ID, nil, prevQty, p.Quantity)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if adj != nil {
		w.logger.InfoContext(ctx, "untracked quantity change journaled",
			slog.String("product_id", p.ID),
			slog.Int("quantity_before", prevQty),
			slog.Int("quantity_after", p.Quantity),
		)
		if w.alerter != nil {
			w.alerter.CheckAndNotify(ctx, &domain.StockItem{
				ProductID:         p.ID,
				Quantity:          p.Quantity,
				LowStockThreshold: p.LowStockThreshold,
			})
		}
	}

	return adj, nil
}

// SaveVariation persists the full variation record, maintaining the product
// aggregate quantity. A changed quantity is journaled as a system adjustment
// under the same suppression rule as SaveProduct.
func (w *TrackedWriter) SaveVariation(ctx context.Context, v *domain.Variation) (*domain.Adjustment, error) {
	tx, err := w.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		threshold int
		tracked   bool
	)
	// The product row is locked first; its aggregate quantity moves with
	// every variation write.
	err = tx.QueryRow(ctx, `
		SELECT low_stock_threshold, track_stock
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`, v.ProductID).Scan(&threshold, &tracked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", v.ProductID)
		}
		return nil, fmt.Errorf("lock product row: %w", err)
	}

	var prevQty int
	err = tx.QueryRow(ctx, `
		SELECT quantity
		FROM product_variations
		WHERE id = $1 AND product_id = $2
		FOR UPDATE`, v.ID, v.ProductID).Scan(&prevQty)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, variationMissError(ctx, tx, v.ID, v.ProductID)
		}
		return nil, fmt.Errorf("lock variation row: %w", err)
	}

	_, err = tx.Exec(ctx, `
		UPDATE product_variations
		SET name = $1, sku = $2, quantity = $3, updated_at = NOW()
		WHERE id = $4`,
		v.Name, v.SKU, v.Quantity, v.ID)
	if err != nil {
		return nil, fmt.Errorf("save variation: %w", err)
	}

	delta := v.Quantity - prevQty
	if delta != 0 {
		_, err = tx.Exec(ctx, `
		UPDATE products SET quantity = quantity + $1, updated_at = NOW() WHERE id = $2`,
			delta, v.ProductID)
		if err != nil {
			return nil, fmt.Errorf("update product aggregate: %w", err)
		}
	}

	var adj *domain.Adjustment
	if tracked && delta != 0 && !IsRecorded(ctx, v.ProductID, &v.ID) {
		adj, err = appendSystemAdjustment(ctx, tx, v.ProductID, &v.ID, prevQty, v.Quantity)
		if err != nil {
			return nil, err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit transaction: %w", err)
	}

	if adj != nil {
		w.logger.InfoContext(ctx, "untracked quantity change journaled",
			slog.String("product_id", v.ProductID),
			slog.String("variation_id", v.ID),
			slog.Int("quantity_before", prevQty),
			slog.Int("quantity_after", v.Quantity),
		)
		if w.alerter != nil {
			w.alerter.CheckAndNotify(ctx, &domain.StockItem{
				ProductID:         v.ProductID,
				VariationID:       &v.ID,
				Quantity:          v.Quantity,
				LowStockThreshold: threshold,
			})
		}
	}

	return adj, nil
}

// variationMissError tells a variation that does not exist apart from one
// that belongs to a different product.
func variationMissError(ctx context.Context, tx pgx.Tx, variationID, productID string) error {
	var ownerID string
	err := tx.QueryRow(ctx, `SELECT product_id FROM product_variations WHERE id = $1`, variationID).Scan(&ownerID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return apperrors.NotFound("variation", variationID)
		}
		return fmt.Errorf("resolve variation owner: %w", err)
	}
	return apperrors.InvalidInput(fmt.Sprintf("variation %s does not belong to product %s", variationID, productID))
}

func appendSystemAdjustment(ctx context.Context, tx pgx.Tx, productID string, variationID *string, before, after int) (*domain.Adjustment, error) {
	adj := &domain.Adjustment{
		ProductID:      productID,
		VariationID:    variationID,
		Category:       domain.CategorySystem,
		QuantityBefore: before,
		QuantityAfter:  after,
		Adjustment:     after - before,
		Reason:         UntrackedChangeReason,
	}
	err := tx.QueryRow(ctx, `
		INSERT INTO stock_adjustments
			(product_id, variation_id, user_id, reference, category, quantity_before, quantity_after, adjustment, reason)
		VALUES ($1, $2, NULL, NULL, $3, $4, $5, $6, $7)
		RETURNING id, created_at`,
		adj.ProductID, adj.VariationID, adj.Category,
		adj.QuantityBefore, adj.QuantityAfter, adj.Adjustment, adj.Reason,
	).Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("insert system adjustment: %w", err)
	}
	return adj, nil
}
