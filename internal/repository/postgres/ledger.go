package postgres

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/pkg/database"
)

// LedgerRepository implements repository.AdjustmentRepository using
// PostgreSQL. The ledger is append-only; this repository only reads it.
// Writes happen inside the stock mutation transactions.
type LedgerRepository struct {
	pool database.DBTX
}

// NewLedgerRepository creates a PostgreSQL-backed ledger repository.
func NewLedgerRepository(pool database.DBTX) *LedgerRepository {
	return &LedgerRepository{pool: pool}
}

// List returns ledger rows matching the filter, newest first.
func (r *LedgerRepository) List(ctx context.Context, filter domain.AdjustmentFilter, page, perPage int) ([]domain.Adjustment, int, error) {
	if page <= 0 {
		page = 1
	}
	if perPage <= 0 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	conditions := []string{"product_id = $1"}
	args := []interface{}{filter.ProductID}

	switch {
	case filter.VariationID != nil:
		args = append(args, *filter.VariationID)
		conditions = append(conditions, "variation_id = $"+strconv.Itoa(len(args)))
	case !filter.ProductScope:
		// Product-level history only; variation rows are excluded unless
		// the caller asked for the whole product scope.
		conditions = append(conditions, "variation_id IS NULL")
	}

	if filter.Category != "" {
		args = append(args, filter.Category)
		conditions = append(conditions, "category = $"+strconv.Itoa(len(args)))
	}
	if filter.From != nil {
		args = append(args, *filter.From)
		conditions = append(conditions, "created_at >= $"+strconv.Itoa(len(args)))
	}
	if filter.To != nil {
		args = append(args, *filter.To)
		conditions = append(conditions, "created_at <= $"+strconv.Itoa(len(args)))
	}

	args = append(args, perPage, offset)
	limitParam := strconv.Itoa(len(args) - 1)
	offsetParam := strconv.Itoa(len(args))

	query := `
		SELECT id, product_id, variation_id, user_id, reference, category,
			   quantity_before, quantity_after, adjustment, reason, created_at,
			   count(*) OVER() AS total_count
		FROM stock_adjustments
		WHERE ` + strings.Join(conditions, " AND ") + `
		ORDER BY created_at DESC, id DESC
		LIMIT $` + limitParam + ` OFFSET $` + offsetParam

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list adjustments: %w", err)
	}
	defer rows.Close()

	var (
		adjustments []domain.Adjustment
		totalCount  int
	)
	for rows.Next() {
		var a domain.Adjustment
		if err := rows.Scan(
			&a.ID,
			&a.ProductID,
			&a.VariationID,
			&a.UserID,
			&a.Reference,
			&a.Category,
			&a.QuantityBefore,
			&a.QuantityAfter,
			&a.Adjustment,
			&a.Reason,
			&a.CreatedAt,
			&totalCount,
		); err != nil {
			return nil, 0, fmt.Errorf("scan adjustment row: %w", err)
		}
		adjustments = append(adjustments, a)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate adjustment rows: %w", err)
	}

	if adjustments == nil {
		adjustments = []domain.Adjustment{}
	}

	return adjustments, totalCount, nil
}
