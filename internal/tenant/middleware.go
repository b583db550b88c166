package tenant

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"
)

const (
	// HeaderTenantID carries the tenant claim set by the authenticating gateway.
	HeaderTenantID = "X-Tenant-Id"
	// HeaderGatewayKey proves the claim came from the gateway.
	HeaderGatewayKey = "X-Gateway-Key"
)

type ctxKey string

const ctxTenantID ctxKey = "tenant_id"

// Middleware resolves the tenant once per request and rejects the request when
// no tenant can be found. The tenant claim header is ignored unless the request
// also carries the gateway key.
func Middleware(res *Resolver) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			p := Principal{Host: r.Host}
			claim := strings.TrimSpace(r.Header.Get(HeaderTenantID))
			if claim != "" && res.TrustsGateway(r.Header.Get(HeaderGatewayKey)) {
				p.Claims = map[string]string{ClaimTenantID: claim}
			}

			id, err := res.Resolve(p)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}

			next.ServeHTTP(w, r.WithContext(WithID(r.Context(), id)))
		})
	}
}

// WithID returns a copy of ctx carrying id.
func WithID(ctx context.Context, id ID) context.Context {
	return context.WithValue(ctx, ctxTenantID, id)
}

// FromContext returns the tenant stored by Middleware. Only the HTTP layer reads
// it; everything below takes the ID as an explicit argument.
func FromContext(ctx context.Context) (ID, bool) {
	id, ok := ctx.Value(ctxTenantID).(ID)
	return id, ok && id != ""
}
