package httpapi

import (
	"context"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

type CartService interface {
	Get(ctx context.Context, tenantID tenant.ID, cartID string) (cart.Cart, error)
	AddItem(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string, quantity int) (cart.Cart, error)
	UpdateQuantity(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string, quantity int) (cart.Cart, error)
	RemoveItem(ctx context.Context, tenantID tenant.ID, cartID, productID, variantCode string) (cart.Cart, error)
	Clear(ctx context.Context, tenantID tenant.ID, cartID string) error
}

type CheckoutService interface {
	Start(ctx context.Context, tenantID tenant.ID, req checkout.StartRequest) (checkout.StartResult, error)
	Reconcile(ctx context.Context, tenantID tenant.ID, sessionID string) (checkout.ReconcileResult, error)
	Cancel(ctx context.Context, tenantID tenant.ID, sessionID string) (checkout.Status, error)
	Resend(ctx context.Context, tenantID tenant.ID, orderNumber string) (*order.Order, notify.Result, error)
}

type OrderReader interface {
	GetByNumber(ctx context.Context, tenantID tenant.ID, number string) (*order.Order, error)
	ListByTenant(ctx context.Context, tenantID tenant.ID, limit int) ([]order.Order, error)
}

type Deps struct {
	Logger   *log.Logger
	Resolver *tenant.Resolver

	Catalog  catalog.Repository
	Carts    CartService
	Checkout CheckoutService
	Orders   OrderReader

	CORSAllowOrigins []string
}

type Handler struct {
	catalog  catalog.Repository
	carts    CartService
	checkout CheckoutService
	orders   OrderReader
	logger   *log.Logger
}

func NewRouter(d Deps) http.Handler {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	h := &Handler{
		catalog:  d.Catalog,
		carts:    d.Carts,
		checkout: d.Checkout,
		orders:   d.Orders,
		logger:   logger,
	}

	r := chi.NewRouter()
	r.Use(chimw.RealIP)
	r.Use(chimw.Logger)
	r.Use(middleware.CorrelationID)
	r.Use(middleware.Recover(logger))
	r.Use(middleware.CORS(d.CORSAllowOrigins))

	r.Get("/health", h.Health)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(tenant.Middleware(d.Resolver))

			r.Get("/products", h.ListProducts)
			r.Get("/products/{slug}", h.GetProduct)
			r.Get("/fabrics", h.ListFabrics)

			r.Route("/cart", func(r chi.Router) {
				r.Get("/", h.GetCart)
				r.Delete("/", h.ClearCart)
				r.Post("/items", h.AddCartItem)
				r.Patch("/items", h.UpdateCartItem)
				r.Delete("/items/{productId}/{variantCode}", h.RemoveCartItem)
			})

			r.Route("/checkout", func(r chi.Router) {
				r.Post("/", h.StartCheckout)
				r.Post("/{sessionId}/reconcile", h.ReconcileCheckout)
				r.Post("/{sessionId}/cancel", h.CancelCheckout)
			})

			r.Get("/orders/{orderNumber}", h.GetOrder)
		})

		// Admin calls get their tenant from the shop's admin key only.
		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireAdminKey(d.Resolver))

			r.Post("/products", h.CreateProduct)
			r.Put("/products/{id}", h.UpdateProduct)
			r.Delete("/products/{id}", h.DeleteProduct)
			r.Post("/fabrics", h.CreateFabric)
			r.Put("/fabrics/{code}", h.UpdateFabric)

			r.Get("/orders", h.ListOrders)
			r.Get("/orders/{orderNumber}", h.GetAdminOrder)
			r.Post("/orders/{orderNumber}/notifications", h.ResendNotifications)
		})
	})

	return r
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"service": "storefront-service",
	})
}

func tenantOf(r *http.Request) tenant.ID {
	id, _ := tenant.FromContext(r.Context())
	return id
}
