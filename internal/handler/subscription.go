package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/bookhaven/storefront/internal/domain/entitlement"
)

type subscribeRequest struct {
	UserID        string `json:"user_id"`
	Tier          string `json:"tier"`
	TransactionID string `json:"transaction_id,omitempty"`
}

type subscribeResponse struct {
	UserID      string              `json:"user_id"`
	Tier        entitlement.Tier    `json:"tier"`
	Start       time.Time           `json:"start"`
	End         time.Time           `json:"end"`
	Unlocked    []entitlement.Theme `json:"unlocked"`
	AutoApplied *entitlement.Theme  `json:"auto_applied,omitempty"`
}

func (h *Handler) subscribe(w http.ResponseWriter, r *http.Request) {
	var req subscribeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, r, http.StatusBadRequest, "invalid request body", nil)
		return
	}
	if req.UserID == "" {
		writeError(w, r, http.StatusBadRequest, "user_id is required", nil)
		return
	}

	tier, err := entitlement.ParseTier(req.Tier)
	if err != nil {
		writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
		return
	}

	result, err := h.entitlements.Apply(r.Context(), req.UserID, tier, req.TransactionID)
	if err != nil {
		if errors.Is(err, entitlement.ErrInvalidTier) {
			writeError(w, r, http.StatusUnprocessableEntity, err.Error(), nil)
			return
		}
		zctx.From(r.Context()).Error("apply subscription", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to apply subscription", nil)
		return
	}

	writeJSON(w, r, http.StatusCreated, subscribeResponse{
		UserID:      result.Subscription.UserID,
		Tier:        result.Subscription.Tier,
		Start:       result.Subscription.Start,
		End:         result.Subscription.End,
		Unlocked:    result.Unlocked,
		AutoApplied: result.AutoApplied,
	})
}

type subscriptionStatusResponse struct {
	Tier          entitlement.Tier    `json:"tier"`
	IsPremium     bool                `json:"is_premium"`
	Active        bool                `json:"active"`
	Expired       bool                `json:"expired,omitempty"`
	End           *time.Time          `json:"end,omitempty"`
	Themes        []entitlement.Theme `json:"themes"`
	NewlyUnlocked []string            `json:"newly_unlocked,omitempty"`
	AutoApplied   string              `json:"auto_applied,omitempty"`
}

func (h *Handler) subscriptionStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.entitlements.Status(r.Context(), r.PathValue("userID"))
	if err != nil {
		zctx.From(r.Context()).Error("subscription status", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to load subscription status", nil)
		return
	}
	writeJSON(w, r, http.StatusOK, subscriptionStatusResponse{
		Tier:          status.Tier,
		IsPremium:     status.IsPremium,
		Active:        status.Active,
		Expired:       status.Expired,
		End:           status.End,
		Themes:        status.Themes,
		NewlyUnlocked: status.NewlyUnlocked,
		AutoApplied:   status.AutoApplied,
	})
}

type themeAccessResponse struct {
	ThemeID string             `json:"theme_id"`
	Allowed bool               `json:"allowed"`
	Theme   *entitlement.Theme `json:"theme,omitempty"`
}

func (h *Handler) themeAccess(w http.ResponseWriter, r *http.Request) {
	userID := r.PathValue("userID")
	themeID := r.PathValue("themeID")

	theme, ok := h.entitlements.Catalog().Get(themeID)
	if !ok {
		writeError(w, r, http.StatusNotFound, "unknown theme", nil)
		return
	}

	allowed, err := h.entitlements.HasAccess(r.Context(), userID, themeID)
	if err != nil {
		zctx.From(r.Context()).Error("theme access", zap.Error(err))
		writeError(w, r, http.StatusInternalServerError, "failed to check theme access", nil)
		return
	}

	resp := themeAccessResponse{ThemeID: themeID, Allowed: allowed}
	if allowed {
		resp.Theme = &theme
	}
	writeJSON(w, r, http.StatusOK, resp)
}
