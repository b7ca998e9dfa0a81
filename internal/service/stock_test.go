package service

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	apperrors "github.com/veltashop/inventory/pkg/errors"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/repository"
	"github.com/veltashop/inventory/internal/tracking"
)

// --- Mock StockRepository ---

type mockStockRepository struct {
	mock.Mock
}

func (m *mockStockRepository) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Product), args.Error(1)
}

func (m *mockStockRepository) GetVariation(ctx context.Context, id string) (*domain.Variation, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Variation), args.Error(1)
}

func (m *mockStockRepository) GetStockItem(ctx context.Context, productID string, variationID *string) (*domain.StockItem, error) {
	args := m.Called(ctx, productID, variationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.StockItem), args.Error(1)
}

func (m *mockStockRepository) AdjustQuantity(ctx context.Context, params repository.AdjustParams) (*domain.Adjustment, *domain.StockItem, error) {
	args := m.Called(ctx, params)
	var adj *domain.Adjustment
	var item *domain.StockItem
	if args.Get(0) != nil {
		adj = args.Get(0).(*domain.Adjustment)
	}
	if args.Get(1) != nil {
		item = args.Get(1).(*domain.StockItem)
	}
	return adj, item, args.Error(2)
}

func (m *mockStockRepository) SetQuantity(ctx context.Context, params repository.SetParams) (*domain.Adjustment, *domain.StockItem, error) {
	args := m.Called(ctx, params)
	var adj *domain.Adjustment
	var item *domain.StockItem
	if args.Get(0) != nil {
		adj = args.Get(0).(*domain.Adjustment)
	}
	if args.Get(1) != nil {
		item = args.Get(1).(*domain.StockItem)
	}
	return adj, item, args.Error(2)
}

func (m *mockStockRepository) ListBelowThreshold(ctx context.Context, page, perPage int) ([]domain.StockItem, int, error) {
	args := m.Called(ctx, page, perPage)
	return args.Get(0).([]domain.StockItem), args.Int(1), args.Error(2)
}

// --- Mock AdjustmentRepository ---

type mockLedgerRepository struct {
	mock.Mock
}

func (m *mockLedgerRepository) List(ctx context.Context, filter domain.AdjustmentFilter, page, perPage int) ([]domain.Adjustment, int, error) {
	args := m.Called(ctx, filter, page, perPage)
	return args.Get(0).([]domain.Adjustment), args.Int(1), args.Error(2)
}

// --- Stub publisher and alerter ---

type stubPublisher struct {
	published []*domain.Adjustment
	err       error
}

func (p *stubPublisher) PublishStockAdjusted(_ context.Context, adj *domain.Adjustment, _ *domain.StockItem) error {
	if p.err != nil {
		return p.err
	}
	p.published = append(p.published, adj)
	return nil
}

type stubAlerter struct {
	checked []*domain.StockItem
}

func (a *stubAlerter) CheckAndNotify(_ context.Context, item *domain.StockItem) {
	a.checked = append(a.checked, item)
}

// --- Helpers ---

func newTestService(stockRepo *mockStockRepository, ledgerRepo *mockLedgerRepository) (*StockService, *stubPublisher, *stubAlerter) {
	publisher := &stubPublisher{}
	alerter := &stubAlerter{}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewStockService(stockRepo, ledgerRepo, publisher, alerter, logger), publisher, alerter
}

// --- AdjustStock ---

func TestAdjustStock_Success(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, publisher, alerter := newTestService(stockRepo, new(mockLedgerRepository))

	// 8 on hand, order for 5: ledger (8, 3, -5), quantity 3.
	adj := &domain.Adjustment{
		ID: "adj-1", ProductID: "prod-1", Category: domain.CategoryOrder,
		QuantityBefore: 8, QuantityAfter: 3, Adjustment: -5, Reason: "order placed",
	}
	item := &domain.StockItem{ProductID: "prod-1", Quantity: 3, LowStockThreshold: 5}
	stockRepo.On("AdjustQuantity", mock.Anything, mock.MatchedBy(func(p repository.AdjustParams) bool {
		return p.ProductID == "prod-1" && p.Delta == -5 && p.Category == domain.CategoryOrder
	})).Return(adj, item, nil)

	ctx := tracking.WithRecorder(context.Background())
	gotAdj, gotItem, err := svc.AdjustStock(ctx, AdjustStockInput{
		ProductID: "prod-1",
		Delta:     -5,
		Category:  domain.CategoryOrder,
		Reason:    "order placed",
	})

	require.NoError(t, err)
	assert.Equal(t, adj, gotAdj)
	assert.Equal(t, 3, gotItem.Quantity)

	// Post-commit steps: recorded token, event, low-stock check.
	assert.True(t, tracking.IsRecorded(ctx, "prod-1", nil))
	require.Len(t, publisher.published, 1)
	assert.Equal(t, "adj-1", publisher.published[0].ID)
	require.Len(t, alerter.checked, 1)
	assert.Equal(t, 3, alerter.checked[0].Quantity)

	stockRepo.AssertExpectations(t)
}

func TestAdjustStock_InsufficientStock(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, publisher, alerter := newTestService(stockRepo, new(mockLedgerRepository))

	stockRepo.On("AdjustQuantity", mock.Anything, mock.Anything).
		Return(nil, nil, apperrors.InsufficientStock("adjustment of -11 would drive quantity below zero (current 10)"))

	ctx := tracking.WithRecorder(context.Background())
	adj, item, err := svc.AdjustStock(ctx, AdjustStockInput{
		ProductID: "prod-1",
		Delta:     -11,
		Category:  domain.CategoryManual,
		Reason:    "correction",
	})

	assert.Nil(t, adj)
	assert.Nil(t, item)
	assert.ErrorIs(t, err, apperrors.ErrInsufficientStock)

	// Rejected mutation: no token, no event, no alert.
	assert.False(t, tracking.IsRecorded(ctx, "prod-1", nil))
	assert.Empty(t, publisher.published)
	assert.Empty(t, alerter.checked)
}

func TestAdjustStock_InvalidCategory(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, _ := newTestService(stockRepo, new(mockLedgerRepository))

	_, _, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		ProductID: "prod-1",
		Delta:     1,
		Category:  "refund",
		Reason:    "whatever",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	stockRepo.AssertNotCalled(t, "AdjustQuantity", mock.Anything, mock.Anything)
}

func TestAdjustStock_ZeroDelta(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, _ := newTestService(stockRepo, new(mockLedgerRepository))

	_, _, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		ProductID: "prod-1",
		Delta:     0,
		Category:  domain.CategoryManual,
		Reason:    "noop",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAdjustStock_MissingReason(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, _ := newTestService(stockRepo, new(mockLedgerRepository))

	_, _, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		ProductID: "prod-1",
		Delta:     1,
		Category:  domain.CategoryManual,
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

func TestAdjustStock_PublishFailureDoesNotFailMutation(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, publisher, alerter := newTestService(stockRepo, new(mockLedgerRepository))
	publisher.err = assert.AnError

	adj := &domain.Adjustment{
		ID: "adj-1", ProductID: "prod-1", Category: domain.CategoryOrderCancel,
		QuantityBefore: 3, QuantityAfter: 5, Adjustment: 2, Reason: "order canceled",
	}
	item := &domain.StockItem{ProductID: "prod-1", Quantity: 5, LowStockThreshold: 5}
	stockRepo.On("AdjustQuantity", mock.Anything, mock.Anything).Return(adj, item, nil)

	gotAdj, _, err := svc.AdjustStock(context.Background(), AdjustStockInput{
		ProductID: "prod-1",
		Delta:     2,
		Category:  domain.CategoryOrderCancel,
		Reason:    "order canceled",
	})

	require.NoError(t, err)
	assert.Equal(t, adj, gotAdj)
	// The low-stock check still ran; 5 <= threshold 5 re-fires the alert.
	require.Len(t, alerter.checked, 1)
	assert.Equal(t, 5, alerter.checked[0].Quantity)
}

// --- SetQuantity ---

func TestSetQuantity_Success(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, publisher, _ := newTestService(stockRepo, new(mockLedgerRepository))

	adj := &domain.Adjustment{
		ID: "adj-2", ProductID: "prod-1", Category: domain.CategoryManual,
		QuantityBefore: 10, QuantityAfter: 25, Adjustment: 15, Reason: "recount",
	}
	item := &domain.StockItem{ProductID: "prod-1", Quantity: 25, LowStockThreshold: 5}
	stockRepo.On("SetQuantity", mock.Anything, mock.MatchedBy(func(p repository.SetParams) bool {
		return p.ProductID == "prod-1" && p.Quantity == 25
	})).Return(adj, item, nil)

	gotAdj, gotItem, err := svc.SetQuantity(context.Background(), SetQuantityInput{
		ProductID: "prod-1",
		Quantity:  25,
		Category:  domain.CategoryManual,
		Reason:    "recount",
	})

	require.NoError(t, err)
	assert.Equal(t, 15, gotAdj.Adjustment)
	assert.Equal(t, 25, gotItem.Quantity)
	assert.Len(t, publisher.published, 1)
}

func TestSetQuantity_NoChange(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, publisher, alerter := newTestService(stockRepo, new(mockLedgerRepository))

	item := &domain.StockItem{ProductID: "prod-1", Quantity: 10, LowStockThreshold: 5}
	stockRepo.On("SetQuantity", mock.Anything, mock.Anything).Return(nil, item, nil)

	adj, gotItem, err := svc.SetQuantity(context.Background(), SetQuantityInput{
		ProductID: "prod-1",
		Quantity:  10,
		Category:  domain.CategoryManual,
		Reason:    "recount",
	})

	require.NoError(t, err)
	assert.Nil(t, adj)
	assert.Equal(t, 10, gotItem.Quantity)
	assert.Empty(t, publisher.published)
	assert.Empty(t, alerter.checked)
}

func TestSetQuantity_Negative(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, _ := newTestService(stockRepo, new(mockLedgerRepository))

	_, _, err := svc.SetQuantity(context.Background(), SetQuantityInput{
		ProductID: "prod-1",
		Quantity:  -1,
		Category:  domain.CategoryManual,
		Reason:    "recount",
	})

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
}

// --- ListAdjustments ---

func TestListAdjustments_Success(t *testing.T) {
	ledgerRepo := new(mockLedgerRepository)
	svc, _, _ := newTestService(new(mockStockRepository), ledgerRepo)

	expected := []domain.Adjustment{{ID: "adj-1", ProductID: "prod-1"}}
	ledgerRepo.On("List", mock.Anything, mock.Anything, 1, 20).Return(expected, 1, nil)

	adjustments, total, err := svc.ListAdjustments(context.Background(), domain.AdjustmentFilter{
		ProductID: "prod-1",
	}, 1, 20)

	require.NoError(t, err)
	assert.Equal(t, 1, total)
	assert.Equal(t, expected, adjustments)
}

func TestListAdjustments_InvalidCategoryFilter(t *testing.T) {
	ledgerRepo := new(mockLedgerRepository)
	svc, _, _ := newTestService(new(mockStockRepository), ledgerRepo)

	_, _, err := svc.ListAdjustments(context.Background(), domain.AdjustmentFilter{
		ProductID: "prod-1",
		Category:  "bogus",
	}, 1, 20)

	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	ledgerRepo.AssertNotCalled(t, "List", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

// --- SweepLowStock ---

func TestSweepLowStock_ChecksEveryItem(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, alerter := newTestService(stockRepo, new(mockLedgerRepository))

	items := []domain.StockItem{
		{ProductID: "prod-1", Quantity: 2, LowStockThreshold: 5},
		{ProductID: "prod-2", Quantity: 4, LowStockThreshold: 5},
	}
	stockRepo.On("ListBelowThreshold", mock.Anything, 1, sweepPageSize).Return(items, 2, nil)

	checked, err := svc.SweepLowStock(context.Background())

	require.NoError(t, err)
	assert.Equal(t, 2, checked)
	assert.Len(t, alerter.checked, 2)
}

func TestSweepLowStock_Empty(t *testing.T) {
	stockRepo := new(mockStockRepository)
	svc, _, alerter := newTestService(stockRepo, new(mockLedgerRepository))

	stockRepo.On("ListBelowThreshold", mock.Anything, 1, sweepPageSize).Return([]domain.StockItem{}, 0, nil)

	checked, err := svc.SweepLowStock(context.Background())

	require.NoError(t, err)
	assert.Zero(t, checked)
	assert.Empty(t, alerter.checked)
}
