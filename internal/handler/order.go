package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/forez0/bikeshop/internal/domain/auth"
	"github.com/forez0/bikeshop/internal/domain/catalog"
	"github.com/forez0/bikeshop/internal/domain/fulfillment"
	"github.com/forez0/bikeshop/internal/domain/order"
	"github.com/forez0/bikeshop/internal/domain/payment"
	"github.com/forez0/bikeshop/internal/notice"
)

type addItemRequest struct {
	BikeID string `json:"bike_id" validate:"required"`
}

type checkoutRequest struct {
	// PaymentMethod selects the payment strategy. Unknown or empty values
	// resolve to credit card.
	PaymentMethod string `json:"payment_method"`
}

type checkoutResponse struct {
	Order    orderResponse `json:"order"`
	Paid     bool          `json:"paid"`
	Messages messages      `json:"messages"`
}

type successResponse struct {
	Order    orderResponse `json:"order"`
	Messages messages      `json:"messages"`
}

// ListOrders returns the authenticated user's orders, newest first.
func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromContext(ctx)

	orders, err := h.orders.History(ctx, user.ID)
	if err != nil {
		zctx.From(ctx).Error("list orders failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := make([]orderResponse, len(orders))
	for i := range orders {
		resp[i] = orderToResponse(&orders[i])
	}
	writeJSON(w, http.StatusOK, resp)
}

// CurrentOrder returns the user's open order.
func (h *Handler) CurrentOrder(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromContext(ctx)

	o, err := h.orders.Current(ctx, user.ID)
	if errors.Is(err, order.ErrNoOpenOrder) {
		writeError(w, http.StatusNotFound, "no open order")
		return
	}
	if err != nil {
		zctx.From(ctx).Error("get current order failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// AddItem puts a catalog bike into the user's open order, creating the order
// when none exists.
func (h *Handler) AddItem(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	user := auth.UserFromContext(ctx)

	var req addItemRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.validate.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, "bike_id is required")
		return
	}

	o, err := h.orders.AddBike(ctx, user.ID, req.BikeID)
	if errors.Is(err, catalog.ErrNotFound) {
		writeError(w, http.StatusNotFound, "bike not found")
		return
	}
	if err != nil {
		zctx.From(ctx).Error("add item failed",
			zap.String("bike_id", req.BikeID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, orderToResponse(o))
}

// Checkout pays for the user's open order. The automatic discount policy is
// applied to the order first; whatever its outcome, checkout proceeds. The
// chosen payment strategy then runs against the resulting total, and on
// acceptance the order is finalized with a tracking code.
func (h *Handler) Checkout(w http.ResponseWriter, r *http.Request) {
	rec := &notice.Recorder{}
	ctx := notice.With(r.Context(), rec)
	user := auth.UserFromContext(ctx)

	var req checkoutRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	h.policy.Apply(ctx, user)

	o, err := h.orders.Current(ctx, user.ID)
	if errors.Is(err, order.ErrNoOpenOrder) {
		writeError(w, http.StatusNotFound, "no open order")
		return
	}
	if err != nil {
		zctx.From(ctx).Error("checkout failed", zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	payCtx := payment.NewContext(payment.ForMethod(req.PaymentMethod))
	ok, err := payCtx.Execute(ctx, o.Total)
	if err != nil {
		h.metrics.paymentsFailed.Add(ctx, 1)
		writeError(w, http.StatusBadGateway, "payment provider unavailable")
		return
	}
	if !ok {
		h.metrics.paymentsFailed.Add(ctx, 1)
		rec.Error("Payment was declined.")
		writeJSON(w, http.StatusPaymentRequired, checkoutResponse{
			Order:    orderToResponse(o),
			Paid:     false,
			Messages: collectMessages(rec),
		})
		return
	}

	if err := h.coordinator.MarkPaid(ctx, o); err != nil {
		zctx.From(ctx).Error("finalize order failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	h.metrics.ordersPlaced.Add(ctx, 1)

	rec.Info("Your order has been placed. Tracking code: " + o.TrackingCode)
	writeJSON(w, http.StatusOK, checkoutResponse{
		Order:    orderToResponse(o),
		Paid:     true,
		Messages: collectMessages(rec),
	})
}

// OrderSuccess runs the one-shot fulfillment side effects for a paid order.
// Repeated calls return the order again without repeating the side effects.
func (h *Handler) OrderSuccess(w http.ResponseWriter, r *http.Request) {
	rec := &notice.Recorder{}
	ctx := notice.With(r.Context(), rec)
	user := auth.UserFromContext(ctx)
	id := chi.URLParam(r, "id")

	o, err := h.orders.Get(ctx, user.ID, id)
	if errors.Is(err, order.ErrNotFound) {
		writeError(w, http.StatusNotFound, "order not found")
		return
	}
	if err != nil {
		zctx.From(ctx).Error("get order failed", zap.String("order_id", id), zap.Error(err))
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	firstVisit := !o.SuccessHandled

	err = h.coordinator.HandleSuccess(ctx, user, o)
	switch {
	case errors.Is(err, fulfillment.ErrNotPaid):
		writeError(w, http.StatusConflict, "order is not paid")
		return
	case err != nil:
		// The fulfillment claim is spent either way; report the failure but
		// still show the success page.
		zctx.From(ctx).Error("fulfillment side effects failed",
			zap.String("order_id", o.ID),
			zap.Error(err),
		)
		rec.Error("We could not send your order confirmation.")
	case firstVisit:
		h.metrics.ordersFulfilled.Add(ctx, 1)
	}

	writeJSON(w, http.StatusOK, successResponse{
		Order:    orderToResponse(o),
		Messages: collectMessages(rec),
	})
}
