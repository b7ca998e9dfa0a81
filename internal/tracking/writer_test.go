package tracking

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/pkg/database"
	apperrors "github.com/veltashop/inventory/pkg/errors"
)

type recordingAlerter struct {
	items []*domain.StockItem
}

func (a *recordingAlerter) CheckAndNotify(_ context.Context, item *domain.StockItem) {
	a.items = append(a.items, item)
}

func setupWriter(t *testing.T) (*TrackedWriter, pgxmock.PgxPoolIface, *recordingAlerter) {
	t.Helper()
	mock, err := database.NewMockPool()
	require.NoError(t, err)
	alerter := &recordingAlerter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewTrackedWriter(mock, alerter, logger), mock, alerter
}

var productLockColumns = []string{"quantity", "low_stock_threshold", "track_stock"}

func sampleProduct(quantity int) *domain.Product {
	return &domain.Product{
		ID:                "prod-1",
		Name:              "Wool Sweater",
		SKU:               "WS-001",
		Quantity:          quantity,
		LowStockThreshold: 5,
		TrackStock:        true,
	}
}

func TestTrackedWriter_SaveProduct_JournalsUntrackedChange(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	// Quantity edited directly from 3 to 1; one system row, one alert.
	p := sampleProduct(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity, low_stock_threshold, track_stock FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productLockColumns).AddRow(3, 5, true))
	mock.ExpectExec("UPDATE products SET name").
		WithArgs(p.Name, p.SKU, p.Quantity, p.LowStockThreshold, p.TrackStock, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO stock_adjustments").
		WithArgs(p.ID, (*string)(nil), domain.CategorySystem, 3, 1, -2, UntrackedChangeReason).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow("adj-1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	mock.ExpectCommit()

	adj, err := writer.SaveProduct(WithRecorder(context.Background()), p)

	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, domain.CategorySystem, adj.Category)
	assert.Equal(t, 3, adj.QuantityBefore)
	assert.Equal(t, 1, adj.QuantityAfter)
	assert.Equal(t, -2, adj.Adjustment)
	assert.True(t, adj.Consistent())

	require.Len(t, alerter.items, 1)
	assert.Equal(t, 1, alerter.items[0].Quantity)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveProduct_SuppressedByRecorder(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	p := sampleProduct(1)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity, low_stock_threshold, track_stock FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productLockColumns).AddRow(3, 5, true))
	mock.ExpectExec("UPDATE products SET name").
		WithArgs(p.Name, p.SKU, p.Quantity, p.LowStockThreshold, p.TrackStock, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	ctx := WithRecorder(context.Background())
	MarkRecorded(ctx, p.ID, nil)

	adj, err := writer.SaveProduct(ctx, p)

	require.NoError(t, err)
	assert.Nil(t, adj, "service already journaled this mutation; no second row")
	assert.Empty(t, alerter.items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveProduct_UnchangedQuantity(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	p := sampleProduct(3)

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity, low_stock_threshold, track_stock FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productLockColumns).AddRow(3, 5, true))
	mock.ExpectExec("UPDATE products SET name").
		WithArgs(p.Name, p.SKU, p.Quantity, p.LowStockThreshold, p.TrackStock, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	adj, err := writer.SaveProduct(context.Background(), p)

	require.NoError(t, err)
	assert.Nil(t, adj)
	assert.Empty(t, alerter.items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveProduct_TrackingDisabled(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	p := sampleProduct(1)
	p.TrackStock = false

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity, low_stock_threshold, track_stock FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productLockColumns).AddRow(3, 5, false))
	mock.ExpectExec("UPDATE products SET name").
		WithArgs(p.Name, p.SKU, p.Quantity, p.LowStockThreshold, p.TrackStock, p.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	adj, err := writer.SaveProduct(context.Background(), p)

	require.NoError(t, err)
	assert.Nil(t, adj, "untracked products save without journaling")
	assert.Empty(t, alerter.items)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveProduct_NotFound(t *testing.T) {
	writer, mock, _ := setupWriter(t)
	defer mock.Close()

	p := sampleProduct(1)
	p.ID = "prod-x"

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT quantity, low_stock_threshold, track_stock FROM products").
		WithArgs(p.ID).
		WillReturnRows(pgxmock.NewRows(productLockColumns))
	mock.ExpectRollback()

	adj, err := writer.SaveProduct(context.Background(), p)

	assert.Nil(t, adj)
	assert.ErrorIs(t, err, apperrors.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveVariation_JournalsAndMaintainsAggregate(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	v := &domain.Variation{
		ID:        "var-1",
		ProductID: "prod-1",
		Name:      "Large / Blue",
		SKU:       "WS-001-LB",
		Quantity:  2,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT low_stock_threshold, track_stock FROM products").
		WithArgs(v.ProductID).
		WillReturnRows(pgxmock.NewRows([]string{"low_stock_threshold", "track_stock"}).AddRow(5, true))
	mock.ExpectQuery("SELECT quantity FROM product_variations").
		WithArgs(v.ID, v.ProductID).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}).AddRow(6))
	mock.ExpectExec("UPDATE product_variations SET name").
		WithArgs(v.Name, v.SKU, v.Quantity, v.ID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE products SET quantity").
		WithArgs(-4, v.ProductID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectQuery("INSERT INTO stock_adjustments").
		WithArgs(v.ProductID, &v.ID, domain.CategorySystem, 6, 2, -4, UntrackedChangeReason).
		WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).
			AddRow("adj-2", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)))
	mock.ExpectCommit()

	adj, err := writer.SaveVariation(context.Background(), v)

	require.NoError(t, err)
	require.NotNil(t, adj)
	assert.Equal(t, -4, adj.Adjustment)
	require.NotNil(t, adj.VariationID)
	assert.Equal(t, v.ID, *adj.VariationID)

	require.Len(t, alerter.items, 1)
	assert.Equal(t, 2, alerter.items[0].Quantity)
	assert.Equal(t, 5, alerter.items[0].LowStockThreshold)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTrackedWriter_SaveVariation_WrongProduct(t *testing.T) {
	writer, mock, alerter := setupWriter(t)
	defer mock.Close()

	v := &domain.Variation{
		ID:        "var-1",
		ProductID: "prod-1",
		Name:      "Large / Blue",
		SKU:       "WS-001-LB",
		Quantity:  2,
	}

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT low_stock_threshold, track_stock FROM products").
		WithArgs(v.ProductID).
		WillReturnRows(pgxmock.NewRows([]string{"low_stock_threshold", "track_stock"}).AddRow(5, true))
	mock.ExpectQuery("SELECT quantity FROM product_variations").
		WithArgs(v.ID, v.ProductID).
		WillReturnRows(pgxmock.NewRows([]string{"quantity"}))
	mock.ExpectQuery("SELECT product_id FROM product_variations").
		WithArgs(v.ID).
		WillReturnRows(pgxmock.NewRows([]string{"product_id"}).AddRow("prod-2"))
	mock.ExpectRollback()

	adj, err := writer.SaveVariation(context.Background(), v)

	assert.Nil(t, adj)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "does not belong to product")
	assert.Empty(t, alerter.items)
	assert.NoError(t, mock.ExpectationsWereMet())
}
