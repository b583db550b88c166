package httpapi

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
)

const requestTimeout = 3 * time.Second

func (h *Handler) ListProducts(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	filter := catalog.ProductFilter{Category: strings.TrimSpace(r.URL.Query().Get("category"))}
	products, err := h.catalog.ListProducts(ctx, tenantOf(r), filter)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, products)
}

func (h *Handler) GetProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	p, err := h.catalog.GetProductBySlug(ctx, tenantOf(r), chi.URLParam(r, "slug"))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func (h *Handler) ListFabrics(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	fabrics, err := h.catalog.ListFabrics(ctx, tenantOf(r), strings.TrimSpace(r.URL.Query().Get("color")))
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, fabrics)
}

func (h *Handler) CreateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(w, r, &p); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	created, err := h.catalog.CreateProduct(ctx, tenantOf(r), p)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateProduct(w http.ResponseWriter, r *http.Request) {
	var p catalog.Product
	if err := decodeJSON(w, r, &p); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	p.ID = chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	updated, err := h.catalog.UpdateProduct(ctx, tenantOf(r), p)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

func (h *Handler) DeleteProduct(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	if err := h.catalog.DeleteProduct(ctx, tenantOf(r), chi.URLParam(r, "id")); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) CreateFabric(w http.ResponseWriter, r *http.Request) {
	var f catalog.FabricVariant
	if err := decodeJSON(w, r, &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	created, err := h.catalog.CreateFabric(ctx, tenantOf(r), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusCreated, created)
}

func (h *Handler) UpdateFabric(w http.ResponseWriter, r *http.Request) {
	var f catalog.FabricVariant
	if err := decodeJSON(w, r, &f); err != nil {
		fail(w, r, h.logger, err)
		return
	}
	f.Code = chi.URLParam(r, "code")

	ctx, cancel := context.WithTimeout(r.Context(), requestTimeout)
	defer cancel()

	updated, err := h.catalog.UpdateFabric(ctx, tenantOf(r), f)
	if err != nil {
		fail(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}
