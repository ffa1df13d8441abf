package order

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"

	"github.com/noah-isme/backend-bazaar/internal/cart"
	"github.com/noah-isme/backend-bazaar/internal/common"
	"github.com/noah-isme/backend-bazaar/internal/events"
	"github.com/noah-isme/backend-bazaar/internal/store"
)

// AdminQuerier is the persistence surface for fulfilment updates.
type AdminQuerier interface {
	GetOrderByID(ctx context.Context, id pgtype.UUID) (store.Order, error)
	UpdateOrderStatus(ctx context.Context, arg store.UpdateOrderStatusParams) (store.Order, error)
}

// AdminHandler moves orders through the fulfilment state machine.
type AdminHandler struct {
	Q      AdminQuerier
	Events *events.Bus
}

type patchStatusRequest struct {
	Status string `json:"status"`
}

// PatchStatus handles PATCH /admin/orders/{orderId}/status. Transitions only
// move forward; CANCELED is reachable from any non-terminal state.
func (h *AdminHandler) PatchStatus(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.Q == nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "order queries not configured", nil)
		return
	}
	oID, err := cart.ToUUID(chi.URLParam(r, "orderId"))
	if err != nil {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "invalid order id", nil)
		return
	}
	var req patchStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil || req.Status == "" {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "status is required", nil)
		return
	}
	if statusRank(req.Status) <= 0 && req.Status != StatusCanceled {
		common.JSONError(w, http.StatusBadRequest, "BAD_REQUEST", "unsupported status", nil)
		return
	}
	current, err := h.Q.GetOrderByID(r.Context(), oID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			common.JSONError(w, http.StatusNotFound, "NOT_FOUND", "order not found", nil)
			return
		}
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to load order", nil)
		return
	}
	if !transitionAllowed(current.Status, req.Status) {
		common.JSONError(w, http.StatusConflict, "INVALID_STATE", "state transition not allowed", nil)
		return
	}
	updated, err := h.Q.UpdateOrderStatus(r.Context(), store.UpdateOrderStatusParams{ID: oID, Status: req.Status})
	if err != nil {
		common.JSONError(w, http.StatusInternalServerError, "INTERNAL", "failed to update order status", nil)
		return
	}
	if h.Events != nil {
		_, _ = h.Events.Emit(r.Context(), "order.status_changed", updated.ID, map[string]any{
			"orderId": cart.UUIDString(updated.ID),
			"from":    current.Status,
			"to":      updated.Status,
		})
	}
	common.JSONData(w, http.StatusOK, presentOrder(updated))
}

// Fulfilment states. Confirmation creates orders in StatusConfirmed.
const (
	StatusConfirmed = "CONFIRMED"
	StatusPacked    = "PACKED"
	StatusShipped   = "SHIPPED"
	StatusDelivered = "DELIVERED"
	StatusCanceled  = "CANCELED"
)

func statusRank(status string) int {
	switch status {
	case StatusConfirmed:
		return 1
	case StatusPacked:
		return 2
	case StatusShipped:
		return 3
	case StatusDelivered:
		return 4
	default:
		return 0
	}
}

func transitionAllowed(from, to string) bool {
	if from == StatusCanceled || from == StatusDelivered {
		return false
	}
	if to == StatusCanceled {
		return statusRank(from) > 0
	}
	return statusRank(to) > statusRank(from) && statusRank(from) > 0
}
