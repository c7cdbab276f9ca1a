// Package handler exposes the store's HTTP API.
package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/entitlement"
	"github.com/bookhaven/storefront/internal/domain/fulfillment"
	"github.com/bookhaven/storefront/internal/domain/order"
	"github.com/bookhaven/storefront/internal/domain/pricing"
	"github.com/bookhaven/storefront/internal/domain/promo"
)

// Handler wires the domain services to their HTTP routes.
type Handler struct {
	books        catalog.Repository
	orders       *order.Service
	tracker      *fulfillment.Tracker
	promos       promo.Validator
	pricing      *pricing.Engine
	entitlements *entitlement.Service
}

// New creates a Handler over the given domain services.
func New(
	books catalog.Repository,
	orders *order.Service,
	tracker *fulfillment.Tracker,
	promos promo.Validator,
	engine *pricing.Engine,
	entitlements *entitlement.Service,
) *Handler {
	return &Handler{
		books:        books,
		orders:       orders,
		tracker:      tracker,
		promos:       promos,
		pricing:      engine,
		entitlements: entitlements,
	}
}

// Routes returns the API route table.
func (h *Handler) Routes() *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/books", h.listBooks)
	mux.HandleFunc("GET /api/shipping-methods", h.listShippingMethods)
	mux.HandleFunc("POST /api/orders", h.placeOrder)
	mux.HandleFunc("GET /api/orders/{id}/tracking", h.trackOrder)
	mux.HandleFunc("POST /api/orders/{id}/return", h.returnOrder)
	mux.HandleFunc("POST /api/promo/validate", h.validatePromo)
	mux.HandleFunc("POST /api/subscriptions", h.subscribe)
	mux.HandleFunc("GET /api/subscriptions/{userID}", h.subscriptionStatus)
	mux.HandleFunc("GET /api/themes/{userID}/{themeID}", h.themeAccess)
	return mux
}

// errorResponse is the uniform error payload. Details carries structured
// context for validation-style failures.
type errorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		zctx.From(r.Context()).Error("encode response", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, r *http.Request, status int, message string, details any) {
	if status >= http.StatusInternalServerError {
		zctx.From(r.Context()).Error("handler error",
			zap.Int("status", status),
			zap.String("message", message),
		)
	}
	writeJSON(w, r, status, errorResponse{Error: message, Details: details})
}
