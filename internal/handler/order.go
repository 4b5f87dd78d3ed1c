package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/antonwidjaya/store-api/internal/domain/order"
	"github.com/antonwidjaya/store-api/internal/events"
)

type orderItemRequest struct {
	VariantID int64 `json:"product_variant_id"`
	Quantity  int   `json:"quantity"`
}

type createOrderRequest struct {
	// UserID lets administrators place orders on behalf of a customer.
	// Regular callers may omit it or set their own ID.
	UserID string             `json:"user_id"`
	Items  []orderItemRequest `json:"items"`
}

// createOrder places an order for the caller (or, for admins, any user).
func (h *Handler) createOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	userID := req.UserID
	if userID == "" {
		userID = identity.UserID
	}
	if userID != identity.UserID && !identity.IsAdmin() {
		respondError(w, r, errForbidden)
		return
	}

	place := order.PlaceRequest{UserID: userID}
	for _, it := range req.Items {
		place.Items = append(place.Items, order.ItemRequest{
			VariantID: it.VariantID,
			Quantity:  it.Quantity,
		})
	}

	o, err := h.orders.Place(r.Context(), place)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.publishOrderEvent(r, events.TypeOrderCreated, o)
	respondData(w, http.StatusCreated, toOrderResponse(o))
}

// listOrders returns every order. Admin only.
func (h *Handler) listOrders(w http.ResponseWriter, r *http.Request) {
	orders, err := h.orders.ListAll(r.Context())
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponses(orders))
}

// listMyOrders returns the caller's orders.
func (h *Handler) listMyOrders(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	orders, err := h.orders.ListByUser(r.Context(), identity.UserID)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponses(orders))
}

// getOrder returns one order. Admins may read any order; users only their
// own.
func (h *Handler) getOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	o, err := h.orders.Get(r.Context(), chi.URLParam(r, "orderID"))
	if err != nil {
		respondError(w, r, err)
		return
	}
	if !identity.IsAdmin() && o.UserID != identity.UserID {
		respondError(w, r, order.ErrForbidden)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(o))
}

// cancelOrder cancels a pending or processing order and restores stock.
func (h *Handler) cancelOrder(w http.ResponseWriter, r *http.Request) {
	identity, ok := identityFrom(r.Context())
	if !ok {
		respondError(w, r, errUnauthenticated)
		return
	}

	o, err := h.orders.Cancel(r.Context(), chi.URLParam(r, "orderID"), identity)
	if err != nil {
		respondError(w, r, err)
		return
	}

	h.publishOrderEvent(r, events.TypeOrderCancelled, o)
	respondData(w, http.StatusOK, toOrderResponse(o))
}

type updateOrderStatusRequest struct {
	Status string `json:"status"`
}

// updateOrderStatus writes any valid status. Admin only.
func (h *Handler) updateOrderStatus(w http.ResponseWriter, r *http.Request) {
	var req updateOrderStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, r, err)
		return
	}

	o, err := h.orders.UpdateStatus(r.Context(), chi.URLParam(r, "orderID"), order.Status(req.Status))
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, toOrderResponse(o))
}

// deleteOrder removes an order without restoring stock. Admin only.
func (h *Handler) deleteOrder(w http.ResponseWriter, r *http.Request) {
	if err := h.orders.Delete(r.Context(), chi.URLParam(r, "orderID")); err != nil {
		respondError(w, r, err)
		return
	}
	respondData(w, http.StatusOK, map[string]string{"message": "order deleted"})
}

// publishOrderEvent emits an order lifecycle event. Failures are logged, not
// surfaced: the order is already committed.
func (h *Handler) publishOrderEvent(r *http.Request, eventType string, o *order.Order) {
	ev := events.OrderEvent{
		Type:       eventType,
		OrderID:    o.ID,
		UserID:     o.UserID,
		Status:     string(o.Status),
		TotalPrice: o.TotalPrice,
		OccurredAt: time.Now().UTC(),
	}
	if err := h.events.Publish(r.Context(), ev); err != nil {
		zctx.From(r.Context()).Warn("publish order event",
			zap.String("type", eventType),
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
	}
}
