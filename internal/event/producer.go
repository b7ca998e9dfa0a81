package event

import (
	"context"
	"fmt"
	"log/slog"

	pkgkafka "github.com/veltashop/inventory/pkg/kafka"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/notifier"
)

// Kafka topics produced by the inventory service.
const (
	TopicStockAdjusted         = "shop.stock.adjusted"
	TopicStockLow              = "shop.stock.low"
	TopicNotificationRequested = "shop.notification.requested"
)

// Aggregate type constant.
const AggregateTypeStock = "stock"

// Source identifier for events originating from the inventory service.
const SourceInventoryService = "inventory-service"

// StockAdjustedData is the payload for a stock.adjusted event.
type StockAdjustedData struct {
	AdjustmentID   string  `json:"adjustment_id"`
	ProductID      string  `json:"product_id"`
	VariationID    *string `json:"variation_id,omitempty"`
	Category       string  `json:"category"`
	QuantityBefore int     `json:"quantity_before"`
	QuantityAfter  int     `json:"quantity_after"`
	Adjustment     int     `json:"adjustment"`
	Reason         string  `json:"reason"`
}

// StockLowData is the payload for a stock.low event.
type StockLowData struct {
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	VariationID   *string `json:"variation_id,omitempty"`
	VariationName string  `json:"variation_name,omitempty"`
	Quantity      int     `json:"quantity"`
	Threshold     int     `json:"threshold"`
}

// NotificationRequestedData is the payload for a notification.requested
// event: one delivery request for one recipient. The notification service
// owns template rendering and the delivery channel.
type NotificationRequestedData struct {
	RecipientID   string  `json:"recipient_id"`
	RecipientName string  `json:"recipient_name"`
	Email         string  `json:"email"`
	Template      string  `json:"template"`
	ProductID     string  `json:"product_id"`
	ProductName   string  `json:"product_name"`
	VariationID   *string `json:"variation_id,omitempty"`
	VariationName string  `json:"variation_name,omitempty"`
	Quantity      int     `json:"quantity"`
	Threshold     int     `json:"threshold"`
}

// LowStockTemplate names the notification template for low-stock alerts.
const LowStockTemplate = "stock.low_stock_alert"

// Producer publishes stock domain events to Kafka. It implements both
// service.Publisher and notifier.Transport.
type Producer struct {
	kafka  *pkgkafka.Producer
	logger *slog.Logger
}

// NewProducer creates an event producer for the inventory service.
func NewProducer(kafka *pkgkafka.Producer, logger *slog.Logger) *Producer {
	return &Producer{
		kafka:  kafka,
		logger: logger,
	}
}

// PublishStockAdjusted publishes a stock.adjusted event for one committed
// ledger row.
func (p *Producer) PublishStockAdjusted(ctx context.Context, adj *domain.Adjustment, item *domain.StockItem) error {
	data := StockAdjustedData{
		AdjustmentID:   adj.ID,
		ProductID:      adj.ProductID,
		VariationID:    adj.VariationID,
		Category:       adj.Category,
		QuantityBefore: adj.QuantityBefore,
		QuantityAfter:  adj.QuantityAfter,
		Adjustment:     adj.Adjustment,
		Reason:         adj.Reason,
	}

	event, err := pkgkafka.NewEvent(TopicStockAdjusted, adj.ProductID, AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.adjusted event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockAdjusted, event); err != nil {
		return fmt.Errorf("publish stock.adjusted event: %w", err)
	}

	p.logger.DebugContext(ctx, "published stock.adjusted event",
		slog.String("product_id", adj.ProductID),
		slog.String("adjustment_id", adj.ID),
	)

	return nil
}

// PublishLowStock publishes a stock.low event, once per low-stock check that
// fires.
func (p *Producer) PublishLowStock(ctx context.Context, item *domain.StockItem, productName, variationName string) error {
	data := StockLowData{
		ProductID:     item.ProductID,
		ProductName:   productName,
		VariationID:   item.VariationID,
		VariationName: variationName,
		Quantity:      item.Quantity,
		Threshold:     item.LowStockThreshold,
	}

	event, err := pkgkafka.NewEvent(TopicStockLow, item.ProductID, AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create stock.low event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicStockLow, event); err != nil {
		return fmt.Errorf("publish stock.low event: %w", err)
	}

	return nil
}

// EnqueueAlert publishes one notification.requested event for one low-stock
// alert recipient.
func (p *Producer) EnqueueAlert(ctx context.Context, alert notifier.Alert) error {
	data := NotificationRequestedData{
		RecipientID:   alert.Recipient.ID,
		RecipientName: alert.Recipient.Name,
		Email:         alert.Recipient.Email,
		Template:      LowStockTemplate,
		ProductID:     alert.ProductID,
		ProductName:   alert.ProductName,
		VariationID:   alert.VariationID,
		VariationName: alert.VariationName,
		Quantity:      alert.Quantity,
		Threshold:     alert.Threshold,
	}

	event, err := pkgkafka.NewEvent(TopicNotificationRequested, alert.ProductID, AggregateTypeStock, SourceInventoryService, data)
	if err != nil {
		return fmt.Errorf("create notification.requested event: %w", err)
	}

	if err := p.kafka.Publish(ctx, TopicNotificationRequested, event); err != nil {
		return fmt.Errorf("publish notification.requested event: %w", err)
	}

	p.logger.DebugContext(ctx, "low-stock notification enqueued",
		slog.String("product_id", alert.ProductID),
		slog.String("recipient", alert.Recipient.Email),
	)

	return nil
}
