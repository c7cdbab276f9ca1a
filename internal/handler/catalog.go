package handler

import (
	"net/http"

	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/catalog"
	"github.com/bookhaven/storefront/internal/domain/pricing"
)

type bookResponse struct {
	ID          string           `json:"id"`
	Title       string           `json:"title"`
	Author      string           `json:"author"`
	ISBN        string           `json:"isbn,omitempty"`
	Price       decimal.Decimal  `json:"price"`
	Kind        catalog.Kind     `json:"kind"`
	WeightOz    float64          `json:"weight_oz,omitempty"`
	Formats     []catalog.Format `json:"formats,omitempty"`
	FileSizeMB  float64          `json:"file_size_mb,omitempty"`
	Description string           `json:"description,omitempty"`
}

func (h *Handler) listBooks(w http.ResponseWriter, r *http.Request) {
	books, err := h.books.List(r.Context())
	if err != nil {
		zctx.From(r.Context()).Error("list books", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to list books", nil)
		return
	}

	resp := make([]bookResponse, 0, len(books))
	for _, b := range books {
		resp = append(resp, bookResponse{
			ID:          b.ID,
			Title:       b.Title,
			Author:      b.Author,
			ISBN:        b.ISBN,
			Price:       b.Price,
			Kind:        b.Kind,
			WeightOz:    b.WeightOz,
			Formats:     b.Formats,
			FileSizeMB:  b.FileSizeMB,
			Description: b.Description,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}

type shippingMethodResponse struct {
	Method       pricing.Method  `json:"method"`
	Name         string          `json:"name"`
	BaseCost     decimal.Decimal `json:"base_cost"`
	DeliveryDays string          `json:"delivery_days"`
}

func (h *Handler) listShippingMethods(w http.ResponseWriter, r *http.Request) {
	country := r.URL.Query().Get("country")
	if country == "" {
		country = h.pricing.HomeCountry()
	}

	methods := h.pricing.AvailableMethods(country)
	resp := make([]shippingMethodResponse, 0, len(methods))
	for _, m := range methods {
		resp = append(resp, shippingMethodResponse{
			Method:       m.Method,
			Name:         m.Name,
			BaseCost:     m.BaseCost,
			DeliveryDays: m.DeliveryDays,
		})
	}
	writeJSON(w, r, http.StatusOK, resp)
}
