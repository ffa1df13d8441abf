package cart

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/coupon"
)

// Handler wires cart services to HTTP.
type Handler struct {
	Svc *Service
}

// Create creates or returns a guest cart identifier.
func (h *Handler) Create(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	var payload struct {
		AnonID string `json:"anonId"`
	}
	_ = json.NewDecoder(r.Body).Decode(&payload)
	anonID := strings.TrimSpace(payload.AnonID)
	if anonID == "" {
		anonID = uuid.NewString()
	}
	cart, err := h.Svc.EnsureCart(r.Context(), nil, &anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusCreated, map[string]any{
		"data": map[string]any{
			"cartId": UUIDString(cart.ID),
			"anonId": anonID,
			"coupon": nullableText(cart.AppliedCouponCode),
		},
	})
}

// Get returns cart contents with freshly computed totals.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	if _, err := toUUID(cartID); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid cart id", nil)
		return
	}
	view, err := h.Svc.Evaluate(r.Context(), cartID, currentUser(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	h.writeView(w, http.StatusOK, view)
}

// GetActive resolves the current active cart for the user or anon ID.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	ctx := r.Context()

	var userID *string
	if uID, ok := common.UserID(ctx); ok && strings.TrimSpace(uID) != "" {
		userID = &uID
	}
	var anonID *string
	if aID := r.URL.Query().Get("anonId"); strings.TrimSpace(aID) != "" {
		anonID = &aID
	}
	if userID == nil && anonID == nil {
		common.JSONError(w, http.StatusOK, "NO_CONTENT", "no active cart context", nil)
		return
	}

	cart, err := h.Svc.EnsureCart(ctx, userID, anonID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": map[string]any{
			"id":     UUIDString(cart.ID),
			"anonId": nullableText(cart.AnonID),
			"coupon": nullableText(cart.AppliedCouponCode),
		},
	})
}

// AddItem adds or increments a cart line.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var payload struct {
		ProductID string `json:"productId"`
		Qty       int    `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.ProductID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "productId is required", nil)
		return
	}
	if payload.Qty <= 0 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be positive", nil)
		return
	}
	if err := h.Svc.AddItem(r.Context(), cartID, payload.ProductID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// UpdateItem updates the quantity for a cart line.
func (h *Handler) UpdateItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	itemID := chi.URLParam(r, "itemId")
	var payload struct {
		Qty int `json:"qty"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	if payload.Qty < 1 {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "qty must be at least 1", nil)
		return
	}
	if err := h.Svc.UpdateQty(r.Context(), itemID, payload.Qty); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// RemoveItem deletes a cart line.
func (h *Handler) RemoveItem(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	itemID := chi.URLParam(r, "itemId")
	if err := h.Svc.RemoveItem(r.Context(), cartID, itemID); err != nil {
		h.writeError(w, err)
		return
	}
	h.Get(w, r)
}

// ApplyCoupon applies a coupon code to the cart.
func (h *Handler) ApplyCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	var payload struct {
		Code string `json:"code"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	discount, err := h.Svc.ApplyCoupon(r.Context(), cartID, strings.TrimSpace(payload.Code), currentUser(r.Context()))
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"discount": discount.Amount, "currency": discount.Currency}})
}

// RemoveCoupon removes the applied coupon from the cart.
func (h *Handler) RemoveCoupon(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	cartID := chi.URLParam(r, "id")
	if err := h.Svc.RemoveCoupon(r.Context(), cartID); err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"coupon": nil}})
}

// Merge merges a guest cart into the authenticated user's cart.
func (h *Handler) Merge(w http.ResponseWriter, r *http.Request) {
	if h.Svc == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "cart service not configured", nil)
		return
	}
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return
	}
	var payload struct {
		CartID string `json:"cartId"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid payload", nil)
		return
	}
	payload.CartID = strings.TrimSpace(payload.CartID)
	if payload.CartID == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "cartId is required", nil)
		return
	}
	mergedID, err := h.Svc.Merge(r.Context(), payload.CartID, userID)
	if err != nil {
		h.writeError(w, err)
		return
	}
	common.JSON(w, http.StatusOK, map[string]any{"data": map[string]any{"cartId": mergedID}})
}

func (h *Handler) writeView(w http.ResponseWriter, status int, view View) {
	items := make([]map[string]any, 0, len(view.Items))
	for _, it := range view.Items {
		items = append(items, map[string]any{
			"id":        UUIDString(it.ID),
			"productId": UUIDString(it.ProductID),
			"title":     it.Title,
			"slug":      it.Slug,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  it.Subtotal,
		})
	}
	data := map[string]any{
		"id":       view.CartID,
		"items":    items,
		"currency": view.Subtotal.Currency,
		"pricing": map[string]any{
			"subtotal": view.Subtotal.Amount,
			"discount": view.Discount.Amount,
		},
	}
	if view.CouponCode != "" {
		data["coupon"] = view.CouponCode
	}
	if view.CouponNotice != "" {
		data["couponNotice"] = view.CouponNotice
	}
	common.JSON(w, status, map[string]any{"data": data})
}

// WriteCouponError maps coupon resolution failures onto distinct error codes.
// Each rejection keeps its own code so the storefront can tell the shopper
// exactly why the code was refused.
func WriteCouponError(w http.ResponseWriter, err error) bool {
	switch {
	case errors.Is(err, coupon.ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "COUPON_NOT_FOUND", "coupon not found", nil)
	case errors.Is(err, coupon.ErrNotAssigned):
		common.JSONError(w, http.StatusForbidden, "COUPON_NOT_ASSIGNED", "coupon is not assigned to this account", nil)
	case errors.Is(err, coupon.ErrInactive):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_INACTIVE", "coupon is not active", nil)
	case errors.Is(err, coupon.ErrExpired):
		common.JSONError(w, http.StatusUnprocessableEntity, "COUPON_EXPIRED", "coupon has expired", nil)
	case errors.Is(err, coupon.ErrBelowMinimumOrder):
		common.JSONError(w, http.StatusUnprocessableEntity, "MIN_SPEND_NOT_MET", "cart subtotal is below the coupon minimum", nil)
	case errors.Is(err, coupon.ErrUsageExceeded):
		common.JSONError(w, http.StatusConflict, "USAGE_LIMIT_REACHED", "coupon usage limit reached", nil)
	default:
		return false
	}
	return true
}

func (h *Handler) writeError(w http.ResponseWriter, err error) {
	if err == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "unknown error", nil)
		return
	}
	if WriteCouponError(w, err) {
		return
	}
	var appErr *common.AppError
	if errors.As(err, &appErr) {
		status := appErr.HTTPStatus
		if status == 0 {
			status = http.StatusBadRequest
		}
		code := appErr.Code
		if code == "" {
			code = "BAD_REQUEST"
		}
		common.JSONError(w, status, code, appErr.Message, appErr.Details)
		return
	}
	switch {
	case errors.Is(err, ErrInvalidInput):
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", err.Error(), nil)
	case errors.Is(err, ErrNotFound):
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", err.Error(), nil)
	default:
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", err.Error(), nil)
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

func nullableText(v pgtype.Text) *string {
	if !v.Valid {
		return nil
	}
	s := v.String
	return &s
}
