package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/repository"
	"github.com/veltashop/inventory/pkg/database"
	apperrors "github.com/veltashop/inventory/pkg/errors"
)

// StockRepository implements repository.StockRepository using PostgreSQL.
// All quantity mutations run in a single transaction that locks the affected
// rows, applies the change, and appends the ledger entry.
type StockRepository struct {
	pool database.DBTX
}

// NewStockRepository creates a PostgreSQL-backed stock repository.
func NewStockRepository(pool database.DBTX) *StockRepository {
	return &StockRepository{pool: pool}
}

// GetProduct retrieves a product by ID. Soft-deleted products are not returned.
func (r *StockRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	query := `
		SELECT id, name, sku, quantity, sold_count, low_stock_threshold, track_stock, created_at, updated_at
		FROM products
		WHERE id = $1 AND deleted_at IS NULL`

	var p domain.Product
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&p.ID,
		&p.Name,
		&p.SKU,
		&p.Quantity,
		&p.SoldCount,
		&p.LowStockThreshold,
		&p.TrackStock,
		&p.CreatedAt,
		&p.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("product", id)
		}
		return nil, fmt.Errorf("get product: %w", err)
	}

	return &p, nil
}

// GetVariation retrieves a product variation by ID.
func (r *StockRepository) GetVariation(ctx context.Context, id string) (*domain.Variation, error) {
	query := `
		SELECT id, product_id, name, sku, quantity, created_at, updated_at
		FROM product_variations
		WHERE id = $1`

	var v domain.Variation
	err := r.pool.QueryRow(ctx, query, id).Scan(
		&v.ID,
		&v.ProductID,
		&v.Name,
		&v.SKU,
		&v.Quantity,
		&v.CreatedAt,
		&v.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variation", id)
		}
		return nil, fmt.Errorf("get variation: %w", err)
	}

	return &v, nil
}

// GetStockItem retrieves current stock for a product or one of its variations.
func (r *StockRepository) GetStockItem(ctx context.Context, productID string, variationID *string) (*domain.StockItem, error) {
	item := &domain.StockItem{
		ProductID:   productID,
		VariationID: variationID,
	}

	if variationID == nil {
		query := `
			SELECT quantity, low_stock_threshold
			FROM products
			WHERE id = $1 AND deleted_at IS NULL`

		err := r.pool.QueryRow(ctx, query, productID).Scan(&item.Quantity, &item.LowStockThreshold)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, apperrors.NotFound("product", productID)
			}
			return nil, fmt.Errorf("get stock item: %w", err)
		}
		return item, nil
	}

	query := `
		SELECT v.quantity, p.low_stock_threshold
		FROM product_variations v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1 AND v.product_id = $2 AND p.deleted_at IS NULL`

	err := r.pool.QueryRow(ctx, query, *variationID, productID).Scan(&item.Quantity, &item.LowStockThreshold)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("variation", *variationID)
		}
		return nil, fmt.Errorf("get stock item: %w", err)
	}
	return item, nil
}

// AdjustQuantity atomically applies a signed delta and appends a ledger row.
func (r *StockRepository) AdjustQuantity(ctx context.Context, params repository.AdjustParams) (*domain.Adjustment, *domain.StockItem, error) {
	return r.applyChange(ctx, params.ProductID, params.VariationID, change{
		value:     params.Delta,
		category:  params.Category,
		reason:    params.Reason,
		userID:    params.UserID,
		reference: params.Reference,
	})
}

// SetQuantity atomically writes an absolute quantity, journaling the implied
// delta. Setting the current quantity writes nothing and returns a nil
// adjustment.
func (r *StockRepository) SetQuantity(ctx context.Context, params repository.SetParams) (*domain.Adjustment, *domain.StockItem, error) {
	return r.applyChange(ctx, params.ProductID, params.VariationID, change{
		absolute:  true,
		value:     params.Quantity,
		category:  params.Category,
		reason:    params.Reason,
		userID:    params.UserID,
		reference: params.Reference,
	})
}

// change is the internal description of one quantity mutation. value is a
// signed delta, or the target quantity when absolute is set.
type change struct {
	absolute  bool
	value     int
	category  string
	reason    string
	userID    *string
	reference *string
}

const lockProductQuery = `
		SELECT quantity, low_stock_threshold, track_stock
		FROM products
		WHERE id = $1 AND deleted_at IS NULL
		FOR UPDATE`

const lockVariationQuery = `
		SELECT quantity
		FROM product_variations
		WHERE id = $1 AND product_id = $2
		FOR UPDATE`

const insertAdjustmentQuery = `
		INSERT INTO stock_adjustments
			(product_id, variation_id, user_id, reference, category, quantity_before, quantity_after, adjustment, reason)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id, created_at`

// applyChange runs the read-lock-validate-write-journal sequence in one
// transaction. The product row is always locked, even for variation writes,
// because its aggregate quantity and sold count are maintained alongside.
func (r *StockRepository) applyChange(ctx context.Context, productID string, variationID *string, ch change) (*domain.Adjustment, *domain.StockItem, error) {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	var (
		productQty int
		threshold  int
		tracked    bool
	)
	err = tx.QueryRow(ctx, lockProductQuery, productID).Scan(&productQty, &threshold, &tracked)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil, apperrors.NotFound("product", productID)
		}
		return nil, nil, fmt.Errorf("lock product row: %w", err)
	}
	if !tracked {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("stock tracking is disabled for product %s", productID))
	}

	current := productQty
	if variationID != nil {
		err = tx.QueryRow(ctx, lockVariationQuery, *variationID, productID).Scan(&current)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, nil, variationMissError(ctx, tx, *variationID, productID)
			}
			return nil, nil, fmt.Errorf("lock variation row: %w", err)
		}
	}

	delta := ch.value
	if ch.absolute {
		delta = ch.value - current
	}

	item := &domain.StockItem{
		ProductID:         productID,
		VariationID:       variationID,
		Quantity:          current,
		LowStockThreshold: threshold,
	}

	if delta == 0 && ch.absolute {
		if err := tx.Commit(ctx); err != nil {
			return nil, nil, fmt.Errorf("commit transaction: %w", err)
		}
		return nil, item, nil
	}

	newQty := current + delta
	if newQty < 0 {
		return nil, nil, apperrors.InsufficientStock(fmt.Sprintf(
			"adjustment of %d would drive quantity below zero (current %d)", delta, current,
		))
	}

	// Order flow bookkeeping: sales decrement stock and increment the sold
	// counter, cancellations reverse both.
	soldDelta := 0
	if ch.category == domain.CategoryOrder || ch.category == domain.CategoryOrderCancel {
		soldDelta = -delta
	}

	if variationID != nil {
		_, err = tx.Exec(ctx, `
		UPDATE product_variations SET quantity = $1, updated_at = NOW() WHERE id = $2`,
			newQty, *variationID)
		if err != nil {
			return nil, nil, fmt.Errorf("update variation quantity: %w", err)
		}

		_, err = tx.Exec(ctx, `
		UPDATE products SET quantity = quantity + $1, sold_count = sold_count + $2, updated_at = NOW() WHERE id = $3`,
			delta, soldDelta, productID)
		if err != nil {
			return nil, nil, fmt.Errorf("update product aggregate: %w", err)
		}
	} else {
		_, err = tx.Exec(ctx, `
		UPDATE products SET quantity = $1, sold_count = sold_count + $2, updated_at = NOW() WHERE id = $3`,
			newQty, soldDelta, productID)
		if err != nil {
			return nil, nil, fmt.Errorf("update product quantity: %w", err)
		}
	}

	adj := &domain.Adjustment{
		ProductID:      productID,
		VariationID:    variationID,
		UserID:         ch.userID,
		Reference:      ch.reference,
		Category:       ch.category,
		QuantityBefore: current,
		QuantityAfter:  newQty,
		Adjustment:     delta,
		Reason:         ch.reason,
	}
	err = tx.QueryRow(ctx, insertAdjustmentQuery,
		adj.ProductID,
		adj.VariationID,
		adj.UserID,
		adj.Reference,
		adj.Category,
		adj.QuantityBefore,
		adj.QuantityAfter,
		adj.Adjustment,
		adj.Reason,
	).Scan(&adj.ID, &adj.CreatedAt)
	if err != nil {
		return nil, nil, fmt.Errorf("insert stock adjustment: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, fmt.Errorf("commit transaction: %w", err)
	}

	item.Quantity = newQty
	return adj, item, nil
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

// ListBelowThreshold returns tracked products and their variations in the
// low-stock band, most depleted first. Variation rows use the parent
// product's threshold and carry the variation ID.
func (r *StockRepository) ListBelowThreshold(ctx context.Context, page, perPage int) ([]domain.StockItem, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	query := `
		SELECT product_id, variation_id, quantity, low_stock_threshold,
			   count(*) OVER() AS total_count
		FROM (
			SELECT p.id AS product_id, NULL::uuid AS variation_id,
				   p.quantity, p.low_stock_threshold, p.updated_at
			FROM products p
			WHERE p.deleted_at IS NULL
			  AND p.track_stock
			  AND p.quantity > 0
			  AND p.quantity <= p.low_stock_threshold
			UNION ALL
			SELECT v.product_id, v.id, v.quantity, p.low_stock_threshold, v.updated_at
			FROM product_variations v
			JOIN products p ON p.id = v.product_id
			WHERE p.deleted_at IS NULL
			  AND p.track_stock
			  AND v.quantity > 0
			  AND v.quantity <= p.low_stock_threshold
		) entries
		ORDER BY quantity ASC, updated_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.pool.Query(ctx, query, perPage, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("list low stock: %w", err)
	}
	defer rows.Close()

	var (
		items      []domain.StockItem
		totalCount int
	)
	for rows.Next() {
		var item domain.StockItem
		if err := rows.Scan(&item.ProductID, &item.VariationID, &item.Quantity, &item.LowStockThreshold, &totalCount); err != nil {
			return nil, 0, fmt.Errorf("scan low stock row: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate low stock rows: %w", err)
	}

	if items == nil {
		items = []domain.StockItem{}
	}

	return items, totalCount, nil
}

// Pool exposes the underlying connection handle for components that manage
// their own transactions.
func (r *StockRepository) Pool() database.DBTX {
	return r.pool
}
