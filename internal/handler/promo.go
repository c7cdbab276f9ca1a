package handler

import (
	"encoding/json"
	"net/http"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/promo"
)

type validatePromoRequest struct {
	Code       string          `json:"code"`
	OrderTotal decimal.Decimal `json:"order_total"`
}

type validatePromoResponse struct {
	Valid      bool            `json:"valid"`
	Code       string          `json:"code"`
	Discount   decimal.Decimal `json:"discount"`
	FinalTotal decimal.Decimal `json:"final_total"`
}

func (h *Handler) validatePromo(w http.ResponseWriter, r *http.Request) {
	var req validatePromoRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}

	discount, err := h.promos.Validate(r.Context(), req.Code, req.OrderTotal)
	if err != nil {
		if perr := promoStatus(err); perr != nil {
			writeError(w, r, http.StatusUnprocessableEntity, perr.Error(), nil)
			return
		}
		zctx.From(r.Context()).Error("validate promo", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to validate promo code", nil)
		return
	}

	writeJSON(w, r, http.StatusOK, validatePromoResponse{
		Valid:      true,
		Code:       discount.Code,
		Discount:   discount.Amount,
		FinalTotal: discount.FinalTotal,
	})
}

// promoStatus returns err when it is one of the promo rejection reasons a
// client can act on, nil otherwise.
func promoStatus(err error) error {
	var minErr *promo.MinimumNotMetError
	switch {
	case errors.Is(err, promo.ErrUnknownCode),
		errors.Is(err, promo.ErrInactive),
		errors.Is(err, promo.ErrNotYetValid),
		errors.Is(err, promo.ErrExpired),
		errors.Is(err, promo.ErrUsageExceeded):
		return err
	case errors.As(err, &minErr):
		return minErr
	}
	return nil
}
