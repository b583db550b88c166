package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"
)

const HeaderCorrelationID = "X-Correlation-Id"

// Inbound ids end up in log lines and event envelopes.
const maxCorrelationIDLen = 128

type ctxKey string

const ctxCorrelationID ctxKey = "correlation_id"

// CorrelationID keeps a caller supplied id when it looks sane and mints a new
// one otherwise. The id is echoed on the response.
func CorrelationID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cid := r.Header.Get(HeaderCorrelationID)
		if !validCorrelationID(cid) {
			cid = uuid.NewString()
		}
		w.Header().Set(HeaderCorrelationID, cid)

		next.ServeHTTP(w, r.WithContext(WithCorrelationID(r.Context(), cid)))
	})
}

func validCorrelationID(cid string) bool {
	if cid == "" || len(cid) > maxCorrelationIDLen {
		return false
	}
	for i := 0; i < len(cid); i++ {
		if c := cid[i]; c <= ' ' || c > '~' {
			return false
		}
	}
	return true
}

func WithCorrelationID(ctx context.Context, cid string) context.Context {
	return context.WithValue(ctx, ctxCorrelationID, cid)
}

func GetCorrelationID(ctx context.Context) string {
	cid, _ := ctx.Value(ctxCorrelationID).(string)
	return cid
}
