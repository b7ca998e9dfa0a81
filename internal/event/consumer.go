package event

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	apperrors "github.com/veltashop/inventory/pkg/errors"
	pkgkafka "github.com/veltashop/inventory/pkg/kafka"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/service"
	"github.com/veltashop/inventory/internal/tracking"
)

// Kafka topics consumed by the inventory service.
const (
	TopicOrderConfirmed = "shop.order.confirmed"
	TopicOrderCanceled  = "shop.order.canceled"
)

// StockService defines the interface the event consumer needs.
type StockService interface {
	AdjustStock(ctx context.Context, input service.AdjustStockInput) (*domain.Adjustment, *domain.StockItem, error)
}

// OrderLineItem is one line of an order event payload.
type OrderLineItem struct {
	ProductID   string  `json:"product_id"`
	VariationID *string `json:"variation_id,omitempty"`
	Quantity    int     `json:"quantity"`
}

// OrderEventData is the payload shared by order.confirmed and
// order.canceled events.
type OrderEventData struct {
	OrderID string          `json:"order_id"`
	UserID  string          `json:"user_id"`
	Items   []OrderLineItem `json:"items"`
}

// Consumer applies order lifecycle events to stock.
type Consumer struct {
	service StockService
	logger  *slog.Logger
}

// NewConsumer creates an event consumer for the inventory service.
func NewConsumer(service StockService, logger *slog.Logger) *Consumer {
	return &Consumer{
		service: service,
		logger:  logger,
	}
}

// HandleOrderConfirmed decrements stock for every line item of a confirmed
// order, category=order. Line items that fail stay failed; the error
// propagates so the message is retried.
func (c *Consumer) HandleOrderConfirmed(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.confirmed data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.confirmed event",
		slog.String("order_id", data.OrderID),
		slog.Int("items", len(data.Items)),
	)

	return c.applyOrder(ctx, data, domain.CategoryOrder, "order placed", -1)
}

// HandleOrderCanceled returns stock for every line item of a canceled order,
// category=order_cancel.
func (c *Consumer) HandleOrderCanceled(ctx context.Context, event *pkgkafka.Event) error {
	var data OrderEventData
	if err := json.Unmarshal(event.Data, &data); err != nil {
		return fmt.Errorf("unmarshal order.canceled data: %w", err)
	}

	c.logger.InfoContext(ctx, "processing order.canceled event",
		slog.String("order_id", data.OrderID),
		slog.Int("items", len(data.Items)),
	)

	return c.applyOrder(ctx, data, domain.CategoryOrderCancel, "order canceled", 1)
}

// applyOrder adjusts each line item in its own transaction. Insufficient
// stock on a confirmed order is a business outcome, not a transport failure:
// it is logged and the message is not retried for that item.
func (c *Consumer) applyOrder(ctx context.Context, data OrderEventData, category, reason string, sign int) error {
	ctx = tracking.WithRecorder(ctx)

	reference := data.OrderID
	var userID *string
	if data.UserID != "" {
		userID = &data.UserID
	}

	for _, line := range data.Items {
		if line.Quantity <= 0 {
			c.logger.WarnContext(ctx, "skipping order line with non-positive quantity",
				slog.String("order_id", data.OrderID),
				slog.String("product_id", line.ProductID),
				slog.Int("quantity", line.Quantity),
			)
			continue
		}

		_, _, err := c.service.AdjustStock(ctx, service.AdjustStockInput{
			ProductID:   line.ProductID,
			VariationID: line.VariationID,
			Delta:       sign * line.Quantity,
			Category:    category,
			Reason:      fmt.Sprintf("%s (order %s)", reason, data.OrderID),
			UserID:      userID,
			Reference:   &reference,
		})
		if err != nil {
			if errors.Is(err, apperrors.ErrInsufficientStock) {
				c.logger.ErrorContext(ctx, "order event would drive stock negative, line skipped",
					slog.String("order_id", data.OrderID),
					slog.String("product_id", line.ProductID),
					slog.Int("quantity", line.Quantity),
				)
				continue
			}
			return fmt.Errorf("adjust stock for order %s product %s: %w", data.OrderID, line.ProductID, err)
		}
	}

	return nil
}
