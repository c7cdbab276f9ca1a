package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/fulfillment"
	"github.com/bookhaven/storefront/internal/domain/inventory"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
)

type cartLineRequest struct {
	BookID   string `json:"book_id"`
	Quantity int    `json:"quantity"`
	Format   string `json:"format,omitempty"`
}

type paymentRequest struct {
	Method     string `json:"method"`
	CardNumber string `json:"card_number,omitempty"`
	CardName   string `json:"card_name,omitempty"`
	Expiry     string `json:"expiry,omitempty"`
	CVC        string `json:"cvc,omitempty"`
}

type placeOrderRequest struct {
	UserID         string            `json:"user_id"`
	Items          []cartLineRequest `json:"items"`
	Address        *order.Address    `json:"shipping_address,omitempty"`
	ShippingMethod string            `json:"shipping_method,omitempty"`
	Payment        paymentRequest    `json:"payment"`
	PromoCode      string            `json:"promo_code,omitempty"`
}

type placeOrderResponse struct {
	OrderID          string                `json:"order_id"`
	TransactionID    string                `json:"transaction_id"`
	Total            decimal.Decimal       `json:"total"`
	TrackingCode     string                `json:"tracking_code,omitempty"`
	DeliveryEstimate string                `json:"delivery_estimate,omitempty"`
	Downloads        []order.DownloadGrant `json:"downloads,omitempty"`
}

func (h *Handler) placeOrder(w http.ResponseWriter, r *http.Request) {
	var req placeOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	lines := make([]order.CartLine, 0, len(req.Items))
	for _, item := range req.Items {
		line := order.CartLine{BookID: item.BookID, Quantity: item.Quantity}
		if item.Format != "" {
			f, err := catalog.ParseFormat(item.Format)
			if err != nil {
				writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
				return
			}
			line.Format = f
		}
		lines = append(lines, line)
	}

	var method *pricing.Method
	if req.ShippingMethod != "" {
		m, err := pricing.ParseMethod(req.ShippingMethod)
		if err != nil {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		method = &m
	}

	result, err := h.orders.PlaceOrder(r.Context(), order.PlaceOrderRequest{
		UserID:  req.UserID,
		Lines:   lines,
		Address: req.Address,
		Payment: order.Payment{
			Method:     order.PaymentMethod(req.Payment.Method),
			CardNumber: req.Payment.CardNumber,
			CardName:   req.Payment.CardName,
			Expiry:     req.Payment.Expiry,
			CVC:        req.Payment.CVC,
		},
		Method:    method,
		PromoCode: req.PromoCode,
	})
	if err != nil {
		writeOrderError(w, r, err)
		return
	}

	writeJSON(w, r, http.StatusCreated, placeOrderResponse{
		OrderID:          result.OrderID,
		TransactionID:    result.TransactionID,
		Total:            result.Total,
		TrackingCode:     result.TrackingCode,
		DeliveryEstimate: result.DeliveryEstimate,
		Downloads:        result.Grants,
	})
}

// writeOrderError maps order pipeline failures to HTTP statuses. Cart shape
// problems are 400, business rule rejections 422, stock contention 409.
func writeOrderError(w http.ResponseWriter, r *http.Request, err error) {
	var (
		bookErr    *order.BookNotFoundError
		qtyErr     *order.InvalidQuantityError
		formatErr  *order.UnsupportedFormatError
		paymentErr *order.PaymentError
		methodErr  *pricing.MethodUnavailableError
		stockErr   *inventory.OutOfStockError
	)
	switch {
	case errors.Is(err, order.ErrEmptyCart):
		writeError(w, r, http.StatusBadRequest, err.Error(), nil)
	case errors.As(err, &qtyErr), errors.As(err, &bookErr), errors.As(err, &formatErr):
		writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
	case errors.As(err, &paymentErr):
		writeError(w, r, http.StatusUnprocessableEntity, "payment validation failed", paymentErr.Fields)
	case errors.As(err, &methodErr):
		writeError(w, r, http.StatusUnprocessableEntity, methodErr.Error(), map[string]any{
			"available_methods": methodErr.Available,
		})
	case errors.As(err, &stockErr):
		writeError(w, r, http.StatusConflict, "some items are out of stock", stockErr.Report.Lines)
	default:
		if perr := promoStatus(err); perr != nil {
			writeError(w, r, http.StatusUnprocessableEntity, perr.Error(), nil)
			return
		}
		zctx.From(r.Context()).Error("place order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to place order", nil)
	}
}

type trackOrderResponse struct {
	OrderID          string              `json:"order_id"`
	Status           order.Status        `json:"status"`
	TrackingCode     string              `json:"tracking_code,omitempty"`
	DeliveryEstimate string              `json:"delivery_estimate"`
	Events           []fulfillment.Event `json:"events"`
}

func (h *Handler) trackOrder(w http.ResponseWriter, r *http.Request) {
	info, err := h.tracker.TrackOrder(r.Context(), r.PathValue("id"))
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found", nil)
			return
		}
		zctx.From(r.Context()).Error("track order", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to track order", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, trackOrderResponse{
		OrderID:          info.OrderID,
		Status:           info.Status,
		TrackingCode:     info.TrackingCode,
		DeliveryEstimate: info.DeliveryEstimate,
		Events:           info.Events,
	})
}

type returnOrderRequest struct {
	BookIDs []string `json:"book_ids"`
	Reason  string   `json:"reason,omitempty"`
}

type returnOrderResponse struct {
	ReturnID           string          `json:"return_id"`
	RefundAmount       decimal.Decimal `json:"refund_amount"`
	ProcessingEstimate string          `json:"processing_estimate"`
}

func (h *Handler) returnOrder(w http.ResponseWriter, r *http.Request) {
	var req returnOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	result, err := h.tracker.ProcessReturn(r.Context(), r.PathValue("id"), req.BookIDs, req.Reason)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			writeError(w, r, http.StatusNotFound, "order not found", nil)
			return
		}
		zctx.From(r.Context()).Error("process return", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to process return", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, returnOrderResponse{
		ReturnID:           result.ReturnID,
		RefundAmount:       result.RefundAmount,
		ProcessingEstimate: result.ProcessingEstimate,
	})
}
