package coupon

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	validator "github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/money"
	"github.com/noah-isme/backend-bazaar/internal/obs"
)

// SubtotalFunc resolves the live subtotal for a cart. Wired from the cart
// service so the coupon package stays free of cart internals.
type SubtotalFunc func(ctx context.Context, cartID string, user User) (money.Money, error)

// Handler wires coupon browsing, previews and administration to HTTP.
type Handler struct {
	Svc      *Service
	Validate *validator.Validate
	Subtotal SubtotalFunc
}

// Browse lists the coupons visible to the current user.
func (h *Handler) Browse(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	visible, err := h.Svc.Browse(r.Context(), userFromContext(r.Context()))
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load coupons", nil)
		return
	}
	common.JSONData(w, http.StatusOK, map[string]any{
		"general":  presentAll(visible.General),
		"personal": presentAll(visible.Personal),
	})
}

// Preview resolves a code against a cart's live subtotal without consuming
// anything. The storefront uses it to show the discount before checkout.
func (h *Handler) Preview(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil || h.Subtotal == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	var payload struct {
		Code   string `json:"code"`
		CartID string `json:"cartId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.Code = strings.TrimSpace(payload.Code)
	payload.CartID = strings.TrimSpace(payload.CartID)
	if payload.Code == "" || payload.CartID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "code and cartId are required", nil)
		return
	}
	user := userFromContext(r.Context())
	subtotal, err := h.Subtotal(r.Context(), payload.CartID, user)
	if err != nil {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "cart not found", nil)
		return
	}
	applied, err := h.Svc.RedeemPreview(r.Context(), payload.Code, user, subtotal)
	if err != nil {
		countRedemption(outcomeLabel(err))
		h.writeError(w, err)
		return
	}
	countRedemption("preview_ok")
	discount := applied.Discount(subtotal)
	common.JSONData(w, http.StatusOK, map[string]any{
		"code":     applied.Code,
		"discount": discount.Amount,
		"currency": discount.Currency,
	})
}

// AdminCreate registers a new coupon rule.
func (h *Handler) AdminCreate(w http.ResponseWriter, r *http.Request) {
	def, ok := h.decodeDefinition(w, r)
	if !ok {
		return
	}
	created, err := h.Svc.Create(r.Context(), def)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusCreated, present(created))
}

// AdminUpdate rewrites an existing coupon rule.
func (h *Handler) AdminUpdate(w http.ResponseWriter, r *http.Request) {
	def, ok := h.decodeDefinition(w, r)
	if !ok {
		return
	}
	def.Code = chi.URLParam(r, "code")
	updated, err := h.Svc.Update(r.Context(), def)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSONData(w, http.StatusOK, present(updated))
}

// AdminList returns every rule, including inactive and expired ones.
func (h *Handler) AdminList(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return
	}
	coupons, err := h.Svc.ListAll(r.Context())
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unable to load coupons", nil)
		return
	}
	common.JSONData(w, http.StatusOK, presentAll(coupons))
}

func (h *Handler) decodeDefinition(w http.ResponseWriter, r *http.Request) (Definition, bool) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "coupon service not configured", nil)
		return Definition{}, false
	}
	var def Definition
	if err := json.NewDecoder(r.Body).Decode(&def); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return Definition{}, false
	}
	if h.Validate != nil {
		if err := h.Validate.Struct(def); err != nil {
			var verrs validator.ValidationErrors
			details := map[string]string{}
			if errors.As(err, &verrs) {
				for _, fe := range verrs {
					details[fe.Field()] = fe.Tag()
				}
			}
			common.JSONError(w, http.StatusBadRequest, "VALIDATION_FAILED", "coupon payload failed validation", details)
			return Definition{}, false
		}
	}
	return def, true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, ErrNotAssigned):
		common.JSONError(w, http.StatusForbidden, "COUPON_NOT_ASSIGNED", "coupon is not assigned to this account", nil)
	case errors.Is(err, ErrInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INACTIVE", "coupon is not active", nil)
	case errors.Is(err, ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXPIRED", "coupon has expired", nil)
	case errors.Is(err, ErrBelowMinimumOrder):
		common.JSONError(w, http.StatusUnprocessableEntity, "MIN_SPEND_NOT_MET", "cart subtotal is below the coupon minimum", nil)
	case errors.Is(err, ErrUsageExceeded):
		common.JSONError(w, http.StatusConflict, "USAGE_LIMIT_REACHED", "coupon usage limit reached", nil)
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
	}
}

// countRedemption tolerates unregistered metrics so handler tests need no
// Prometheus setup.
func countRedemption(outcome string) {
	if obs.CouponRedemptionsTotal != nil {
		obs.CouponRedemptionsTotal.WithLabelValues(outcome).Inc()
	}
}

func outcomeLabel(err error) string {
	switch {
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrNotAssigned):
		return "not_assigned"
	case errors.Is(err, ErrInactive):
		return "inactive"
	case errors.Is(err, ErrExpired):
		return "expired"
	case errors.Is(err, ErrBelowMinimumOrder):
		return "min_spend"
	case errors.Is(err, ErrUsageExceeded):
		return "usage_exceeded"
	default:
		return "error"
	}
}

func present(c Coupon) map[string]any {
	out := map[string]any{
		"code":      c.Code,
		"kind":      string(c.Kind),
		"minSpend":  c.MinSpend.Amount,
		"active":    c.Active,
		"restricted": c.Restricted(),
	}
	switch c.Kind {
	case KindPercent:
		out["percentBps"] = c.PercentBps
	case KindFixedAmount:
		out["value"] = c.Value.Amount
	}
	if c.ExpiresAt != nil {
		out["expiresAt"] = c.ExpiresAt
	}
	if c.PerUserLimit != nil {
		out["perUserLimit"] = *c.PerUserLimit
	}
	return out
}

func presentAll(coupons []Coupon) []map[string]any {
	out := make([]map[string]any, 0, len(coupons))
	for _, c := range coupons {
		out = append(out, present(c))
	}
	return out
}

func userFromContext(ctx context.Context) User {
	var u User
	if id, ok := common.UserID(ctx); ok {
		if parsed, err := uuid.Parse(id); err == nil {
			u.ID = parsed
		}
	}
	if email, ok := common.UserEmail(ctx); ok {
		u.Email = email
	}
	return u
}
