package order_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/order"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

type stubQuerier struct {
	orders []store.Order
	items  map[string][]store.OrderItem
}

func pgID() pgtype.UUID {
	var id pgtype.UUID
	id.Bytes = uuid.New()
	id.Valid = true
	return id
}

func (s *stubQuerier) GetOrderByID(_ context.Context, id pgtype.UUID) (store.Order, error) {
	for _, o := range s.orders {
		if o.ID.Bytes == id.Bytes {
			return o, nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func (s *stubQuerier) ListOrdersByUser(_ context.Context, arg store.ListOrdersByUserParams) ([]store.Order, error) {
	var out []store.Order
	for _, o := range s.orders {
		if o.UserID.Bytes == arg.UserID.Bytes {
			out = append(out, o)
		}
	}
	if int(arg.Offset) >= len(out) {
		return nil, nil
	}
	out = out[arg.Offset:]
	if int(arg.Limit) < len(out) {
		out = out[:arg.Limit]
	}
	return out, nil
}

func (s *stubQuerier) CountOrdersByUser(_ context.Context, userID pgtype.UUID) (int64, error) {
	var n int64
	for _, o := range s.orders {
		if o.UserID.Bytes == userID.Bytes {
			n++
		}
	}
	return n, nil
}

func (s *stubQuerier) ListOrderItems(_ context.Context, orderID pgtype.UUID) ([]store.OrderItem, error) {
	return s.items[cart.UUIDString(orderID)], nil
}

func (s *stubQuerier) UpdateOrderStatus(_ context.Context, arg store.UpdateOrderStatusParams) (store.Order, error) {
	for i, o := range s.orders {
		if o.ID.Bytes == arg.ID.Bytes {
			s.orders[i].Status = arg.Status
			return s.orders[i], nil
		}
	}
	return store.Order{}, pgx.ErrNoRows
}

func authed(r *http.Request, userID pgtype.UUID) *http.Request {
	ctx := common.WithUserID(r.Context(), cart.UUIDString(userID))
	return r.WithContext(ctx)
}

func TestListOrders(t *testing.T) {
	userID := pgID()
	q := &stubQuerier{orders: []store.Order{
		{ID: pgID(), UserID: userID, Status: order.StatusConfirmed, Currency: "INR", Total: 104_400},
		{ID: pgID(), UserID: userID, Status: order.StatusDelivered, Currency: "INR", Total: 52_000},
		{ID: pgID(), UserID: pgID(), Status: order.StatusConfirmed, Currency: "INR", Total: 99_999},
	}}
	h := &order.Handler{Q: q}

	req := authed(httptest.NewRequest(http.MethodGet, "/orders?page=1&page_size=10", nil), userID)
	rec := httptest.NewRecorder()
	h.List(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	var body struct {
		Data []map[string]any `json:"data"`
		Meta common.PageMeta  `json:"meta"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Len(t, body.Data, 2)
	require.Equal(t, int64(2), body.Meta.Total)
}

func TestGetOrderHidesOtherUsers(t *testing.T) {
	owner := pgID()
	o := store.Order{ID: pgID(), UserID: owner, Status: order.StatusConfirmed, Currency: "INR", Total: 104_400}
	q := &stubQuerier{orders: []store.Order{o}, items: map[string][]store.OrderItem{}}
	h := &order.Handler{Q: q}

	get := func(as pgtype.UUID) *httptest.ResponseRecorder {
		router := chi.NewRouter()
		router.Get("/orders/{orderId}", h.Get)
		req := authed(httptest.NewRequest(http.MethodGet, "/orders/"+cart.UUIDString(o.ID), nil), as)
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, get(owner).Code)
	require.Equal(t, http.StatusNotFound, get(pgID()).Code)
}

func TestAdminPatchStatus(t *testing.T) {
	o := store.Order{ID: pgID(), UserID: pgID(), Status: order.StatusConfirmed, Currency: "INR"}
	q := &stubQuerier{orders: []store.Order{o}}
	h := &order.AdminHandler{Q: q}

	patch := func(status string) *httptest.ResponseRecorder {
		router := chi.NewRouter()
		router.Patch("/admin/orders/{orderId}/status", h.PatchStatus)
		req := httptest.NewRequest(http.MethodPatch, "/admin/orders/"+cart.UUIDString(o.ID)+"/status",
			strings.NewReader(`{"status":"`+status+`"}`))
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	require.Equal(t, http.StatusOK, patch(order.StatusShipped).Code)
	require.Equal(t, order.StatusShipped, q.orders[0].Status)

	// Backwards transition is refused.
	require.Equal(t, http.StatusConflict, patch(order.StatusPacked).Code)

	require.Equal(t, http.StatusOK, patch(order.StatusDelivered).Code)

	// Delivered is terminal.
	require.Equal(t, http.StatusConflict, patch(order.StatusCanceled).Code)
}
