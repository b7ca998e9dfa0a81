package notifier

import (
	"context"
	"log/slog"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/repository"
)

// Alert is one low-stock notification addressed to one recipient.
type Alert struct {
	Recipient     domain.User
	ProductID     string
	ProductName   string
	VariationID   *string
	VariationName string
	Quantity      int
	Threshold     int
}

// Transport delivers low-stock signals. Both methods are enqueue-only; the
// actual delivery (mail, dashboard) happens downstream.
type Transport interface {
	// PublishLowStock emits the platform-wide low-stock event, once per check.
	PublishLowStock(ctx context.Context, item *domain.StockItem, productName, variationName string) error
	// EnqueueAlert requests delivery of one notification to one recipient.
	EnqueueAlert(ctx context.Context, alert Alert) error
}

// LowStockNotifier runs the low-stock check after committed quantity changes
// and fans alerts out to the recipient directory. Everything here is
// best-effort: failures are logged and never reach the mutation path.
type LowStockNotifier struct {
	stock     repository.StockRepository
	users     repository.UserRepository
	transport Transport
	logger    *slog.Logger
}

// New creates a low-stock notifier.
func New(stock repository.StockRepository, users repository.UserRepository, transport Transport, logger *slog.Logger) *LowStockNotifier {
	return &LowStockNotifier{
		stock:     stock,
		users:     users,
		transport: transport,
		logger:    logger,
	}
}

// CheckAndNotify fires alerts when the quantity sits in the low-stock band:
// above zero and at or below the threshold. Quantities of zero or above the
// threshold are silent. Every qualifying mutation notifies again; there is
// no suppression window.
func (n *LowStockNotifier) CheckAndNotify(ctx context.Context, item *domain.StockItem) {
	if !domain.InLowStockBand(item.Quantity, item.LowStockThreshold) {
		return
	}

	product, err := n.stock.GetProduct(ctx, item.ProductID)
	if err != nil {
		n.logger.ErrorContext(ctx, "low-stock check: failed to resolve product",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()),
		)
		return
	}

	variationName := ""
	if item.VariationID != nil {
		variation, err := n.stock.GetVariation(ctx, *item.VariationID)
		if err != nil {
			n.logger.ErrorContext(ctx, "low-stock check: failed to resolve variation",
				slog.String("variation_id", *item.VariationID),
				slog.String("error", err.Error()),
			)
			return
		}
		variationName = variation.Name
	}

	if err := n.transport.PublishLowStock(ctx, item, product.Name, variationName); err != nil {
		n.logger.ErrorContext(ctx, "failed to publish low-stock event",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()),
		)
	}

	recipients, err := n.users.ListAlertRecipients(ctx)
	if err != nil {
		n.logger.ErrorContext(ctx, "failed to resolve alert recipients",
			slog.String("product_id", item.ProductID),
			slog.String("error", err.Error()),
		)
		return
	}
	if len(recipients) == 0 {
		n.logger.WarnContext(ctx, "low stock detected but no alert recipients configured",
			slog.String("product_id", item.ProductID),
		)
		return
	}

	sent := 0
	for _, recipient := range recipients {
		alert := Alert{
			Recipient:     recipient,
			ProductID:     item.ProductID,
			ProductName:   product.Name,
			VariationID:   item.VariationID,
			VariationName: variationName,
			Quantity:      item.Quantity,
			Threshold:     item.LowStockThreshold,
		}
		if err := n.transport.EnqueueAlert(ctx, alert); err != nil {
			n.logger.ErrorContext(ctx, "failed to enqueue low-stock alert",
				slog.String("product_id", item.ProductID),
				slog.String("recipient", recipient.Email),
				slog.String("error", err.Error()),
			)
			continue
		}
		sent++
	}

	n.logger.InfoContext(ctx, "low-stock alerts enqueued",
		slog.String("product_id", item.ProductID),
		slog.Int("quantity", item.Quantity),
		slog.Int("threshold", item.LowStockThreshold),
		slog.Int("recipients", sent),
	)
}
