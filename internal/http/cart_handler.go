package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

// HeaderCartID carries the customer's cart id. It is returned on every cart
// response so a client can pick up the id of a freshly created cart.
const HeaderCartID = "X-Cart-Id"

type cartItemRequest struct {
	ProductID   string `json:"productId"`
	VariantCode string `json:"variantCode"`
	Quantity    int    `json:"quantity"`
}

type cartResponse struct {
	CartID       string          `json:"cartId"`
	Items        []cartLineView  `json:"items"`
	ItemCount    int             `json:"itemCount"`
	Total        decimal.Decimal `json:"total"`
	TotalDisplay string          `json:"totalDisplay"`
}

type cartLineView struct {
	cart.Line
	LineTotal decimal.Decimal `json:"lineTotal"`
}

func toCartResponse(c cart.Cart) cartResponse {
	lines := c.Lines()
	out := cartResponse{CartID: c.ID, Items: make([]cartLineView, 0, len(lines)), Total: c.Total()}
	for _, l := range lines {
		out.Items = append(out.Items, cartLineView{Line: l, LineTotal: l.Total()})
		out.ItemCount += l.Quantity
	}
	out.TotalDisplay = pricing.Display(out.Total)
	return out
}

func cartIDOf(r *http.Request) string {
	return strings.TrimSpace(r.Header.Get(HeaderCartID))
}

func (h *Handler) writeCart(w http.ResponseWriter, c cart.Cart) {
	if c.ID != "" {
		w.Header().Set(HeaderCartID, c.ID)
	}
	writeJSON(w, http.StatusOK, toCartResponse(c))
}

func (h *Handler) GetCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.carts.Get(ctx, tenantOf(r), cartIDOf(r))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) AddCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.carts.AddItem(ctx, tenantOf(r), cartIDOf(r), req.ProductID, req.VariantCode, req.Quantity)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) UpdateCartItem(w http.ResponseWriter, r *http.Request) {
	var req cartItemRequest
	if err := decodeJSON(w, r, &req); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.carts.UpdateQuantity(ctx, tenantOf(r), cartIDOf(r), req.ProductID, req.VariantCode, req.Quantity)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) RemoveCartItem(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	c, err := h.carts.RemoveItem(ctx, tenantOf(r), cartIDOf(r), chi.URLParam(r, "productId"), chi.URLParam(r, "variantCode"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	h.writeCart(w, c)
}

func (h *Handler) ClearCart(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.carts.Clear(ctx, tenantOf(r), cartIDOf(r)); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
