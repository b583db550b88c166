package checkout

import (
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/clients"
)

var (
	ErrSessionNotFound     = errors.New("checkout session not found")
	ErrIllegalTransition   = errors.New("illegal transition of checkout status")
	ErrStaleSessionVersion = errors.New("checkout session status changed concurrently")
)

// ValidationError is raised before any call to the payment provider.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Reason
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// ProviderError wraps a failed or timed out payment provider call. Nothing
// was persisted on this path, so the caller may retry.
type ProviderError struct {
	Op  string
	Err error
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("payment provider %s: %v", e.Op, e.Err)
}

func (e *ProviderError) Unwrap() error { return e.Err }

func (e *ProviderError) Timeout() bool {
	return errors.Is(e.Err, clients.ErrTimeout)
}

// PersistenceError wraps a failed database write or read. When it happens
// after the provider reported the session paid, the session stays pending
// and reconciling it again recovers the order.
type PersistenceError struct {
	Op  string
	Err error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s: %v", e.Op, e.Err)
}

func (e *PersistenceError) Unwrap() error { return e.Err }
