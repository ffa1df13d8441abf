package order

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// Querier is the persistence surface order reads need.
type Querier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	ListOrdersByUser(ctx context.Context, arg store.ListOrdersByUserParams) ([]store.Order, error)
	CountOrdersByUser(ctx context.Context, userID pgtype.UUID) (int64, error)
	ListOrderItems(ctx context.Context, orderID pgtype.UUID) ([]store.OrderItem, error)
}

// Handler serves a user's own order history. Orders are immutable
// snapshots; these endpoints only read.
type Handler struct {
	Q Querier
}

// List handles GET /orders.
func (h *Handler) List(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	uID, ok := requireUser(w, r)
	if !ok {
		return
	}
	page := common.ParsePage(r)
	total, err := h.Q.CountOrdersByUser(r.Context(), uID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to count orders", nil)
		return
	}
	rows, err := h.Q.ListOrdersByUser(r.Context(), store.ListOrdersByUserParams{
		UserID: uID,
		Limit:  page.Size,
		Offset: page.Offset(),
	})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to list orders", nil)
		return
	}
	out := make([]map[string]any, 0, len(rows))
	for _, row := range rows {
		out = append(out, presentOrder(row))
	}
	common.JSON(w, http.StatusOK, map[string]any{
		"data": out,
		"meta": common.NewPageMeta(page, total),
	})
}

// Get handles GET /orders/{orderId}, items included.
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	uID, ok := requireUser(w, r)
	if !ok {
		return
	}
	oID, err := cart.ToUUID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	row, err := h.Q.GetOrderByID(r.Context(), oID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	// Ownership resolves to not-found so order ids cannot be probed.
	if !row.UserID.Valid || row.UserID.Bytes != uID.Bytes {
		common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
		return
	}
	items, err := h.Q.ListOrderItems(r.Context(), row.ID)
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order items", nil)
		return
	}
	body := presentOrder(row)
	lines := make([]map[string]any, 0, len(items))
	for _, it := range items {
		lines = append(lines, map[string]any{
			"id":        cart.UUIDString(it.ID),
			"productId": cart.UUIDString(it.ProductID),
			"title":     it.Title,
			"slug":      it.Slug,
			"qty":       it.Qty,
			"unitPrice": it.UnitPrice,
			"subtotal":  it.Subtotal,
		})
	}
	body["items"] = lines
	common.JSONData(w, http.StatusOK, body)
}

func presentOrder(row store.Order) map[string]any {
	body := map[string]any{
		"id":             cart.UUIDString(row.ID),
		"status":         row.Status,
		"currency":       row.Currency,
		"subtotal":       row.Subtotal,
		"discount":       row.Discount,
		"shipping":       row.Shipping,
		"tax":            row.Tax,
		"total":          row.Total,
		"destination":    row.Destination,
		"shippingMethod": row.ShippingMethod,
	}
	if row.CouponCode.Valid {
		body["couponCode"] = row.CouponCode.String
	}
	if row.CreatedAt.Valid {
		body["createdAt"] = row.CreatedAt.Time.UTC().Format(time.RFC3339)
	}
	return body
}

func requireUser(w http.ResponseWriter, r *http.Request) (pgtype.UUID, bool) {
	userID, ok := common.UserID(r.Context())
	if !ok || userID == "" {
		common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "authentication required", nil)
		return pgtype.UUID{}, false
	}
	uID, err := cart.ToUUID(userID)
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid user id", nil)
		return pgtype.UUID{}, false
	}
	return uID, true
}
