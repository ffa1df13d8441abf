package checkout

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/coupon"
	"github.com/noah-isme/backend-bazaar/internal/obs"
	"github.com/noah-isme/backend-bazaar/internal/shipping"
)

// Handler exposes the checkout confirmation endpoint.
type Handler struct {
	Svc  *Service
	Idem *common.IdempotencyStore
}

// Confirm handles POST /checkout. Requests may carry an Idempotency-Key
// header; replays within the key's TTL return the original order reference
// instead of confirming twice.
func (h *Handler) Confirm(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Svc == nil {
		common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "checkout is not available", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}

	var in Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		common.JSONError(w, http.StatusBadRequest, "INVALID_BODY", "invalid JSON body", nil)
		return
	}

	idemKey := r.Header.Get("Idempotency-Key")
	if idemKey != "" {
		claimed, err := h.Idem.Claim(r.Context(), idemKey)
		if err != nil {
			common.JSONError(w, http.StatusServiceUnavailable, "UNAVAILABLE", "could not reserve idempotency key", nil)
			return
		}
		if !claimed {
			ref, err := h.Idem.Lookup(r.Context(), idemKey)
			if err != nil || ref == "" || ref == "pending" {
				common.JSONError(w, http.StatusConflict, "CHECKOUT_IN_PROGRESS", "a checkout with this key is already in progress", nil)
				return
			}
			common.JSONData(w, http.StatusOK, map[string]any{"orderId": ref, "replayed": true})
			return
		}
	}

	start := time.Now()
	out, err := h.Svc.Confirm(r.Context(), userID, currentUser(r.Context()), in)
	observeCheckout(start, err)
	if err != nil {
		if idemKey != "" {
			h.Idem.Release(r.Context(), idemKey)
		}
		writeError(w, err)
		return
	}
	if idemKey != "" {
		_ = h.Idem.Record(r.Context(), idemKey, out.OrderID)
	}
	common.JSONData(w, http.StatusCreated, out)
}

func writeError(w http.ResponseWriter, err error) {
	if cart.WriteCouponError(w, err) {
		return
	}
	switch {
	case errors.Is(err, cart.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "CART_NOT_FOUND", "cart not found", nil)
	case errors.Is(err, ErrCartNotOwned):
		common.JSONError(w, http.StatusForbidden, "CART_NOT_OWNED", "cart belongs to another user", nil)
	case errors.Is(err, ErrCartEmpty):
		common.JSONError(w, http.StatusUnprocessableEntity, "CART_EMPTY", "cannot check out an empty cart", nil)
	case errors.Is(err, ErrNoShippingMethod):
		common.JSONError(w, http.StatusUnprocessableEntity, "SHIPPING_METHOD_UNAVAILABLE", "shipping method not available for destination", nil)
	case errors.Is(err, shipping.ErrUnresolvedDestination):
		common.JSONError(w, http.StatusUnprocessableEntity, "DESTINATION_UNRESOLVED", "destination does not match any shipping zone", nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "checkout failed", nil)
	}
}

func observeCheckout(start time.Time, err error) {
	result := "ok"
	if err != nil {
		result = "error"
		if errors.Is(err, coupon.ErrUsageExceeded) {
			result = "usage_exceeded"
		}
	}
	if obs.CheckoutTotal != nil {
		obs.CheckoutTotal.WithLabelValues(result).Inc()
	}
	if obs.CheckoutDuration != nil {
		obs.CheckoutDuration.Observe(float64(time.Since(start).Milliseconds()))
	}
}

func currentUser(ctx context.Context) coupon.User {
	var u coupon.User
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
