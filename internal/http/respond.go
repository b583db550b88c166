package httpapi

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/checkout"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// fail maps err to a status code. Server-side failures are logged and their
// detail kept out of the response.
func fail(w http.ResponseWriter, r *http.Request, logger *log.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Printf("%s %s: %v", r.Method, r.URL.Path, err)
	}
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	writeError(w, status, msg)
}

func statusFor(err error) int {
	var (
		ve *checkout.ValidationError
		pe *checkout.ProviderError
		se *checkout.PersistenceError
	)
	switch {
	case errors.As(err, &ve),
		errors.Is(err, tenant.ErrUnresolved),
		errors.Is(err, catalog.ErrInvalid),
		errors.Is(err, cart.ErrInvalidQuantity),
		errors.Is(err, cart.ErrUnavailable),
		errors.Is(err, pricing.ErrInvalidPrice),
		errors.Is(err, errBadRequest):
		return http.StatusBadRequest
	case errors.Is(err, catalog.ErrNotFound),
		errors.Is(err, order.ErrNotFound),
		errors.Is(err, checkout.ErrSessionNotFound),
		errors.Is(err, cart.ErrLineNotFound):
		return http.StatusNotFound
	case errors.Is(err, catalog.ErrConflict):
		return http.StatusConflict
	case errors.As(err, &pe):
		return http.StatusBadGateway
	case errors.As(err, &se):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

var errBadRequest = errors.New("bad request")

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(v); err != nil {
		return errors.Join(errBadRequest, err)
	}
	return nil
}
