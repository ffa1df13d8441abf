package shipping

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/obs"
)

// SubtotalFunc resolves the live subtotal for a cart, wired from the cart
// service.
type SubtotalFunc func(ctx context.Context, cartID string) (money.Money, error)

// Handler exposes shipping quotes over HTTP.
type Handler struct {
	Svc      *Service
	Subtotal SubtotalFunc
}

// Quote resolves the destination and returns every method with its effective
// cost against the cart's current subtotal.
func (h *Handler) Quote(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "shipping service not configured", nil)
		return
	}
	var payload struct {
		Destination string `json:"destination"`
		CartID      string `json:"cartId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Destination = strings.TrimSpace(payload.Destination)
	if payload.Destination == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "destination is required", nil)
		return
	}

	subtotal := money.Zero(h.Svc.Currency)
	if cartID := strings.TrimSpace(payload.CartID); cartID != "" && h.Subtotal != nil {
		s, err := h.Subtotal(r.Context(), cartID)
		if err != nil {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
			return
		}
		subtotal = s
	}

	zone, quotes, err := h.Svc.QuoteFor(r.Context(), payload.Destination, subtotal)
	if err != nil {
		if errors.Is(err, ErrUnresolvedDestination) {
			countQuote("unresolved")
			common.JSONError(w, http.StatusUnprocessableEntity, "DESTINATION_UNRESOLVED", "no shipping zone covers the destination", nil)
			return
		}
		countQuote("error")
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to quote shipping", nil)
		return
	}
	countQuote("ok")

	methods := make([]map[string]any, 0, len(quotes))
	for _, q := range quotes {
		methods = append(methods, map[string]any{
			"id":            q.Method.ID,
			"name":          q.Method.Name,
			"etaDays":       q.Method.ETADays,
			"effectiveCost": q.EffectiveCost.Amount,
			"free":          q.EffectiveCost.IsZero(),
		})
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"zone":     zone.Name,
		"currency": h.Svc.Currency,
		"methods":  methods,
	})
}

func countQuote(result string) {
	if obs.ShippingQuoteTotal != nil {
		obs.ShippingQuoteTotal.WithLabelValues(result).Inc()
	}
}
