package middleware

import (
	"net/http"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

const HeaderAdminKey = "X-Admin-Key"

// AdminKeys maps an admin key to the one shop it administers.
type AdminKeys interface {
	ByAdminKey(key string) (tenant.ID, bool)
}

// RequireAdminKey authenticates admin calls with a per-shop key and scopes the
// request to that shop. Host and tenant headers play no part.
func RequireAdminKey(keys AdminKeys) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok := keys.ByAdminKey(r.Header.Get(HeaderAdminKey))
			if !ok {
				writeError(w, r, http.StatusUnauthorized, "admin key required")
				return
			}
			next.ServeHTTP(w, r.WithContext(tenant.WithID(r.Context(), id)))
		})
	}
}
