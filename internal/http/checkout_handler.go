package httpapi

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

// Checkout calls the payment provider and may send emails, so it gets more
// room than a plain read.
const checkoutTimeout = 30 * time.Second

type startCheckoutRequest struct {
	Customer   order.Customer `json:"customer"`
	Shipping   order.Address  `json:"shipping"`
	Notes      string         `json:"notes"`
	SuccessURL string         `json:"successUrl"`
	CancelURL  string         `json:"cancelUrl"`
}

type notificationView struct {
	Recipient  notify.Role `json:"recipient"`
	To         string      `json:"to"`
	Delivered  bool        `json:"delivered"`
	DeliveryID string      `json:"deliveryId,omitempty"`
	Error      string      `json:"error,omitempty"`
}

func notificationViews(r notify.Result) []notificationView {
	out := make([]notificationView, 0, 2)
	for _, d := range r.Deliveries() {
		out = append(out, notificationView{
			Recipient:  d.Role,
			To:         d.To,
			Delivered:  d.OK(),
			DeliveryID: d.DeliveryID,
			Error:      d.ErrorText(),
		})
	}
	return out
}

type reconcileResponse struct {
	Status        checkout.Status    `json:"status"`
	Order         *order.Order       `json:"order,omitempty"`
	Created       bool               `json:"created"`
	Notifications []notificationView `json:"notifications,omitempty"`
}

func (h *Handler) StartCheckout(w http.ResponseWriter, r *http.Request) {
	var req startCheckoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), checkoutTimeout)
	defer cancel()

	res, err := h.checkout.Start(ctx, tenantOf(r), checkout.StartRequest{
		CartID:     cartIDOf(r),
		Customer:   req.Customer,
		Shipping:   req.Shipping,
		Notes:      req.Notes,
		SuccessURL: req.SuccessURL,
		CancelURL:  req.CancelURL,
	})
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, res)
}

func (h *Handler) ReconcileCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkoutTimeout)
	defer cancel()

	res, err := h.checkout.Reconcile(ctx, tenantOf(r), chi.URLParam(r, "sessionId"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}

	out := reconcileResponse{Status: res.Status, Order: res.Order, Created: res.Created}
	if res.Notifications != nil {
		out.Notifications = notificationViews(*res.Notifications)
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) CancelCheckout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	status, err := h.checkout.Cancel(ctx, tenantOf(r), chi.URLParam(r, "sessionId"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]checkout.Status{"status": status})
}

// GetOrder shows an order to its customer. Order numbers are guessable, so the
// caller must also present the customer email or the payment session id. A
// mismatch looks exactly like a missing order.
func (h *Handler) GetOrder(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	email := strings.TrimSpace(q.Get("email"))
	sessionID := strings.TrimSpace(q.Get("sessionId"))
	if email == "" && sessionID == "" {
		writeError(w, http.StatusBadRequest, "email or sessionId is required")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.orders.GetByNumber(ctx, tenantOf(r), chi.URLParam(r, "orderNumber"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if !ownsOrder(o, email, sessionID) {
		fail(w, r, h.logger, order.ErrNotFound)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func ownsOrder(o *order.Order, email, sessionID string) bool {
	if sessionID != "" && subtle.ConstantTimeCompare([]byte(sessionID), []byte(o.PaymentSessionID)) == 1 {
		return true
	}
	return email != "" && o.Customer.Email != "" && strings.EqualFold(email, o.Customer.Email)
}

func (h *Handler) GetAdminOrder(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	o, err := h.orders.GetByNumber(ctx, tenantOf(r), chi.URLParam(r, "orderNumber"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, o)
}

func (h *Handler) ListOrders(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	orders, err := h.orders.ListByTenant(ctx, tenantOf(r), limit)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	if orders == nil {
		orders = []order.Order{}
	}
	writeJSON(w, http.StatusOK, orders)
}

func (h *Handler) ResendNotifications(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), checkoutTimeout)
	defer cancel()

	o, res, err := h.checkout.Resend(ctx, tenantOf(r), chi.URLParam(r, "orderNumber"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"orderNumber":   o.Number,
		"notifications": notificationViews(res),
	})
}
