package service

import (
	"context"
	"fmt"
	"log/slog"

	apperrors "github.com/veltashop/inventory/pkg/errors"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/repository"
	"github.com/veltashop/inventory/internal/tracking"
)

// Alerter runs the low-stock check after a committed mutation. Best-effort;
// implementations never return errors into the mutation path.
type Alerter interface {
	CheckAndNotify(ctx context.Context, item *domain.StockItem)
}

// Publisher emits the stock.adjusted event after a committed mutation.
type Publisher interface {
	PublishStockAdjusted(ctx context.Context, adj *domain.Adjustment, item *domain.StockItem) error
}

// AdjustStockInput describes one relative stock change request.
type AdjustStockInput struct {
	ProductID   string
	VariationID *string
	Delta       int
	Category    string
	Reason      string
	UserID      *string
	Reference   *string
}

// SetQuantityInput describes one absolute stock write request.
type SetQuantityInput struct {
	ProductID   string
	VariationID *string
	Quantity    int
	Category    string
	Reason      string
	UserID      *string
	Reference   *string
}

// StockService is the single authorized entry point for stock mutations.
// Every change goes through a locking transaction that also appends the
// ledger row; events and low-stock alerts run after commit and never roll
// the mutation back.
type StockService struct {
	stockRepo  repository.StockRepository
	ledgerRepo repository.AdjustmentRepository
	producer   Publisher
	alerter    Alerter
	logger     *slog.Logger
}

// NewStockService creates a stock service.
func NewStockService(
	stockRepo repository.StockRepository,
	ledgerRepo repository.AdjustmentRepository,
	producer Publisher,
	alerter Alerter,
	logger *slog.Logger,
) *StockService {
	return &StockService{
		stockRepo:  stockRepo,
		ledgerRepo: ledgerRepo,
		producer:   producer,
		alerter:    alerter,
		logger:     logger,
	}
}

// AdjustStock applies a signed delta to a product or variation. The quantity
// change and the ledger row commit atomically; a delta that would drive the
// quantity negative is rejected with ErrInsufficientStock and nothing is
// written.
func (s *StockService) AdjustStock(ctx context.Context, input AdjustStockInput) (*domain.Adjustment, *domain.StockItem, error) {
	if input.ProductID == "" {
		return nil, nil, apperrors.InvalidInput("product_id is required")
	}
	if input.Delta == 0 {
		return nil, nil, apperrors.InvalidInput("delta must be non-zero")
	}
	if input.Reason == "" {
		return nil, nil, apperrors.InvalidInput("reason is required")
	}
	if !domain.IsValidCategory(input.Category) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("invalid adjustment category %q", input.Category))
	}

	adj, item, err := s.stockRepo.AdjustQuantity(ctx, repository.AdjustParams{
		ProductID:   input.ProductID,
		VariationID: input.VariationID,
		Delta:       input.Delta,
		Category:    input.Category,
		Reason:      input.Reason,
		UserID:      input.UserID,
		Reference:   input.Reference,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("adjust stock: %w", err)
	}

	s.afterMutation(ctx, adj, item)

	return adj, item, nil
}

// SetQuantity writes an absolute quantity, journaling the implied delta.
// Writing the current quantity is a no-op: no ledger row, no events.
func (s *StockService) SetQuantity(ctx context.Context, input SetQuantityInput) (*domain.Adjustment, *domain.StockItem, error) {
	if input.ProductID == "" {
		return nil, nil, apperrors.InvalidInput("product_id is required")
	}
	if input.Quantity < 0 {
		return nil, nil, apperrors.InvalidInput("quantity must be non-negative")
	}
	if input.Reason == "" {
		return nil, nil, apperrors.InvalidInput("reason is required")
	}
	if !domain.IsValidCategory(input.Category) {
		return nil, nil, apperrors.InvalidInput(fmt.Sprintf("invalid adjustment category %q", input.Category))
	}

	adj, item, err := s.stockRepo.SetQuantity(ctx, repository.SetParams{
		ProductID:   input.ProductID,
		VariationID: input.VariationID,
		Quantity:    input.Quantity,
		Category:    input.Category,
		Reason:      input.Reason,
		UserID:      input.UserID,
		Reference:   input.Reference,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("set quantity: %w", err)
	}

	if adj == nil {
		// Nothing changed; nothing to record or announce.
		return nil, item, nil
	}

	s.afterMutation(ctx, adj, item)

	return adj, item, nil
}

// afterMutation runs the post-commit steps shared by every mutation: mark
// the item as journaled in this call context, publish the adjusted event,
// and run the low-stock check. All of it is best-effort.
func (s *StockService) afterMutation(ctx context.Context, adj *domain.Adjustment, item *domain.StockItem) {
	tracking.MarkRecorded(ctx, adj.ProductID, adj.VariationID)

	if err := s.producer.PublishStockAdjusted(ctx, adj, item); err != nil {
		s.logger.ErrorContext(ctx, "failed to publish stock.adjusted event",
			slog.String("product_id", adj.ProductID),
			slog.String("adjustment_id", adj.ID),
			slog.String("error", err.Error()),
		)
	}

	s.alerter.CheckAndNotify(ctx, item)

	s.logger.InfoContext(ctx, "stock adjusted",
		slog.String("product_id", adj.ProductID),
		slog.String("category", adj.Category),
		slog.Int("quantity_before", adj.QuantityBefore),
		slog.Int("quantity_after", adj.QuantityAfter),
		slog.Int("adjustment", adj.Adjustment),
	)
}

// GetStock retrieves the current stock entity for a product or variation.
func (s *StockService) GetStock(ctx context.Context, productID string, variationID *string) (*domain.StockItem, error) {
	if productID == "" {
		return nil, apperrors.InvalidInput("product_id is required")
	}
	item, err := s.stockRepo.GetStockItem(ctx, productID, variationID)
	if err != nil {
		return nil, fmt.Errorf("get stock: %w", err)
	}
	return item, nil
}

// ListAdjustments returns ledger history matching the filter, newest first.
func (s *StockService) ListAdjustments(ctx context.Context, filter domain.AdjustmentFilter, page, perPage int) ([]domain.Adjustment, int, error) {
	if filter.ProductID == "" {
		return nil, 0, apperrors.InvalidInput("product_id is required")
	}
	if filter.Category != "" && !domain.IsValidCategory(filter.Category) {
		return nil, 0, apperrors.InvalidInput(fmt.Sprintf("invalid adjustment category %q", filter.Category))
	}
	adjustments, total, err := s.ledgerRepo.List(ctx, filter, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list adjustments: %w", err)
	}
	return adjustments, total, nil
}

// ListLowStock returns products currently in the low-stock band.
func (s *StockService) ListLowStock(ctx context.Context, page, perPage int) ([]domain.StockItem, int, error) {
	items, total, err := s.stockRepo.ListBelowThreshold(ctx, page, perPage)
	if err != nil {
		return nil, 0, fmt.Errorf("list low stock: %w", err)
	}
	return items, total, nil
}

// sweepPageSize bounds how many low-stock rows one sweep iteration loads.
const sweepPageSize = 100

// SweepLowStock re-runs the low-stock check for every product currently in
// the band, re-notifying items that have stayed low without a recent
// mutation. Returns the number of items checked.
func (s *StockService) SweepLowStock(ctx context.Context) (int, error) {
	checked := 0
	for page := 1; ; page++ {
		items, total, err := s.stockRepo.ListBelowThreshold(ctx, page, sweepPageSize)
		if err != nil {
			return checked, fmt.Errorf("sweep low stock: %w", err)
		}

		for i := range items {
			s.alerter.CheckAndNotify(ctx, &items[i])
			checked++
		}

		if checked >= total || len(items) == 0 {
			break
		}
	}

	s.logger.InfoContext(ctx, "low-stock sweep completed", slog.Int("items", checked))
	return checked, nil
}
