package http

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/veltashop/inventory/pkg/httputil"
	"github.com/veltashop/inventory/pkg/pagination"
	"github.com/veltashop/inventory/pkg/validator"

	"github.com/veltashop/inventory/internal/domain"
	"github.com/veltashop/inventory/internal/service"
	"github.com/veltashop/inventory/internal/tracking"
)

// StockHandler handles HTTP requests for stock endpoints.
type StockHandler struct {
	service          *service.StockService
	writer           *tracking.TrackedWriter
	defaultThreshold int
	logger           *slog.Logger
}

// NewStockHandler creates a stock HTTP handler. defaultThreshold is applied
// to product saves that omit low_stock_threshold.
func NewStockHandler(svc *service.StockService, writer *tracking.TrackedWriter, defaultThreshold int, logger *slog.Logger) *StockHandler {
	return &StockHandler{
		service:          svc,
		writer:           writer,
		defaultThreshold: defaultThreshold,
		logger:           logger,
	}
}

// --- Request DTOs ---

// AdjustStockRequest is the JSON request body for a relative stock change.
type AdjustStockRequest struct {
	Delta       int     `json:"delta" validate:"required"`
	Reason      string  `json:"reason" validate:"required,max=255"`
	Category    string  `json:"category" validate:"required,oneof=manual order order_cancel system"`
	VariationID *string `json:"variation_id" validate:"omitempty,uuid"`
	Reference   *string `json:"reference" validate:"omitempty,max=255"`
}

// SetQuantityRequest is the JSON request body for an absolute stock write.
// Quantity is a pointer so zero is distinguishable from absent.
type SetQuantityRequest struct {
	Quantity    *int    `json:"quantity" validate:"required,gte=0"`
	Reason      string  `json:"reason" validate:"required,max=255"`
	Category    string  `json:"category" validate:"required,oneof=manual order order_cancel system"`
	VariationID *string `json:"variation_id" validate:"omitempty,uuid"`
	Reference   *string `json:"reference" validate:"omitempty,max=255"`
}

// SaveProductRequest is the JSON request body for a full product save.
type SaveProductRequest struct {
	Name              string `json:"name" validate:"required,max=255"`
	SKU               string `json:"sku" validate:"required,max=64"`
	Quantity          *int   `json:"quantity" validate:"required,gte=0"`
	LowStockThreshold *int   `json:"low_stock_threshold" validate:"omitempty,gte=0"`
	TrackStock        *bool  `json:"track_stock"`
}

// SaveVariationRequest is the JSON request body for a full variation save.
type SaveVariationRequest struct {
	Name     string `json:"name" validate:"required,max=255"`
	SKU      string `json:"sku" validate:"required,max=64"`
	Quantity *int   `json:"quantity" validate:"required,gte=0"`
}

// AdjustmentResponse pairs the appended ledger row with the resulting stock.
type AdjustmentResponse struct {
	Adjustment *domain.Adjustment `json:"adjustment,omitempty"`
	Stock      *domain.StockItem  `json:"stock"`
}

// decodeBody decodes and validates a JSON request body, writing the error
// response itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, 1<<20)

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
			Error: &httputil.ErrorResponse{Code: "INVALID_INPUT", Message: "invalid request body: " + err.Error()},
		})
		return false
	}
	if err := validator.Validate(dst); err != nil {
		httputil.WriteValidationError(w, err)
		return false
	}
	return true
}

// actorID extracts the acting user from the X-User-ID header set by the API
// gateway. Nil for unauthenticated internal calls.
func actorID(r *http.Request) *string {
	if id := r.Header.Get("X-User-ID"); id != "" {
		return &id
	}
	return nil
}

// --- Handlers ---

// AdjustStock handles POST /api/v1/stock/{productId}/adjustments
func (h *StockHandler) AdjustStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req AdjustStockRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := tracking.WithRecorder(r.Context())
	adj, item, err := h.service.AdjustStock(ctx, service.AdjustStockInput{
		ProductID:   productID.String(),
		VariationID: req.VariationID,
		Delta:       req.Delta,
		Category:    req.Category,
		Reason:      req.Reason,
		UserID:      actorID(r),
		Reference:   req.Reference,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusCreated, httputil.Response{
		Data: AdjustmentResponse{Adjustment: adj, Stock: item},
	})
}

// SetQuantity handles PUT /api/v1/stock/{productId}/quantity
func (h *StockHandler) SetQuantity(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req SetQuantityRequest
	if !decodeBody(w, r, &req) {
		return
	}

	ctx := tracking.WithRecorder(r.Context())
	adj, item, err := h.service.SetQuantity(ctx, service.SetQuantityInput{
		ProductID:   productID.String(),
		VariationID: req.VariationID,
		Quantity:    *req.Quantity,
		Category:    req.Category,
		Reason:      req.Reason,
		UserID:      actorID(r),
		Reference:   req.Reference,
	})
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AdjustmentResponse{Adjustment: adj, Stock: item},
	})
}

// GetStock handles GET /api/v1/stock/{productId}
func (h *StockHandler) GetStock(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var variationID *string
	if v := r.URL.Query().Get("variation_id"); v != "" {
		id, ok := httputil.ParseUUID(w, v)
		if !ok {
			return
		}
		s := id.String()
		variationID = &s
	}

	item, err := h.service.GetStock(r.Context(), productID.String(), variationID)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{Data: item})
}

// ListAdjustments handles GET /api/v1/stock/{productId}/adjustments
//
// Query parameters: variation_id, scope=product (include variation rows),
// category, from, to (RFC 3339), page, per_page.
func (h *StockHandler) ListAdjustments(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	filter := domain.AdjustmentFilter{
		ProductID:    productID.String(),
		Category:     r.URL.Query().Get("category"),
		ProductScope: r.URL.Query().Get("scope") == "product",
	}

	if v := r.URL.Query().Get("variation_id"); v != "" {
		id, ok := httputil.ParseUUID(w, v)
		if !ok {
			return
		}
		s := id.String()
		filter.VariationID = &s
	}

	if v := r.URL.Query().Get("from"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid from timestamp: " + v},
			})
			return
		}
		filter.From = &ts
	}
	if v := r.URL.Query().Get("to"); v != "" {
		ts, err := time.Parse(time.RFC3339, v)
		if err != nil {
			httputil.WriteJSON(w, http.StatusBadRequest, httputil.Response{
				Error: &httputil.ErrorResponse{Code: "INVALID_PARAMETER", Message: "invalid to timestamp: " + v},
			})
			return
		}
		filter.To = &ts
	}

	params := pagination.FromRequest(r)
	adjustments, total, err := h.service.ListAdjustments(r.Context(), filter, params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(adjustments, total, params))
}

// ListLowStock handles GET /api/v1/stock/low
func (h *StockHandler) ListLowStock(w http.ResponseWriter, r *http.Request) {
	params := pagination.FromRequest(r)

	items, total, err := h.service.ListLowStock(r.Context(), params.Page, params.PerPage)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, pagination.NewResult(items, total, params))
}

// SweepLowStock handles POST /api/v1/stock/low/sweep
func (h *StockHandler) SweepLowStock(w http.ResponseWriter, r *http.Request) {
	checked, err := h.service.SweepLowStock(r.Context())
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: map[string]int{"checked": checked},
	})
}

// SaveProduct handles PUT /api/v1/products/{productId}
//
// Full-record save: a changed quantity goes through the tracked writer and
// is journaled as a system adjustment.
func (h *StockHandler) SaveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}

	var req SaveProductRequest
	if !decodeBody(w, r, &req) {
		return
	}

	threshold := h.defaultThreshold
	if req.LowStockThreshold != nil {
		threshold = *req.LowStockThreshold
	}
	trackStock := true
	if req.TrackStock != nil {
		trackStock = *req.TrackStock
	}

	product := &domain.Product{
		ID:                productID.String(),
		Name:              req.Name,
		SKU:               req.SKU,
		Quantity:          *req.Quantity,
		LowStockThreshold: threshold,
		TrackStock:        trackStock,
	}

	adj, err := h.writer.SaveProduct(tracking.WithRecorder(r.Context()), product)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AdjustmentResponse{
			Adjustment: adj,
			Stock: &domain.StockItem{
				ProductID:         product.ID,
				Quantity:          product.Quantity,
				LowStockThreshold: product.LowStockThreshold,
			},
		},
	})
}

// SaveVariation handles PUT /api/v1/products/{productId}/variations/{variationId}
func (h *StockHandler) SaveVariation(w http.ResponseWriter, r *http.Request) {
	productID, ok := httputil.ParseUUID(w, chi.URLParam(r, "productId"))
	if !ok {
		return
	}
	variationID, ok := httputil.ParseUUID(w, chi.URLParam(r, "variationId"))
	if !ok {
		return
	}

	var req SaveVariationRequest
	if !decodeBody(w, r, &req) {
		return
	}

	variation := &domain.Variation{
		ID:        variationID.String(),
		ProductID: productID.String(),
		Name:      req.Name,
		SKU:       req.SKU,
		Quantity:  *req.Quantity,
	}

	adj, err := h.writer.SaveVariation(tracking.WithRecorder(r.Context()), variation)
	if err != nil {
		httputil.WriteError(w, r, err, h.logger)
		return
	}

	varID := variation.ID
	httputil.WriteJSON(w, http.StatusOK, httputil.Response{
		Data: AdjustmentResponse{
			Adjustment: adj,
			Stock: &domain.StockItem{
				ProductID:   variation.ProductID,
				VariationID: &varID,
				Quantity:    variation.Quantity,
			},
		},
	})
}
