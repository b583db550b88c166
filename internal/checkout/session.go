// Package checkout turns a cart into a payment provider session and later
// reconciles that session into exactly one persisted order.
package checkout

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// Snapshot is the frozen cart and customer data an order is built from.
type Snapshot struct {
	Lines    []cart.Line    `json:"lines"`
	Customer order.Customer `json:"customer"`
	Shipping order.Address  `json:"shipping"`
	Notes    string         `json:"notes,omitempty"`
}

func (s Snapshot) Subtotal() decimal.Decimal {
	lines := make([]pricing.Line, 0, len(s.Lines))
	for _, l := range s.Lines {
		lines = append(lines, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return pricing.CartTotal(lines)
}

type Session struct {
	ID          string
	TenantID    tenant.ID
	Status      Status
	CartID      string
	AmountMinor int64
	Currency    string
	SuccessURL  string
	CancelURL   string
	Snapshot    Snapshot
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

func (s *Session) transition(to Status) error {
	if !CanTransitionTo(s.Status, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, s.Status, to)
	}
	s.Status = to
	return nil
}

// buildOrder builds the order for a paid session. amountTotalMinor is what
// the provider charged; anything above the cart subtotal is shipping.
func (s *Session) buildOrder(number string, amountTotalMinor int64, shipTo *order.Address, now time.Time) *order.Order {
	subtotal := s.Snapshot.Subtotal()
	shipping := decimal.Zero
	if amountTotalMinor > 0 {
		if diff := pricing.FromMinorUnits(amountTotalMinor).Sub(subtotal); diff.IsPositive() {
			shipping = diff
		}
	}

	address := s.Snapshot.Shipping
	if shipTo != nil && !shipTo.IsZero() {
		address = *shipTo
	}

	items := make([]order.Item, 0, len(s.Snapshot.Lines))
	for _, l := range s.Snapshot.Lines {
		items = append(items, order.Item{
			ProductID:    l.ProductID,
			Name:         l.Name,
			VariantCode:  l.VariantCode,
			VariantLabel: l.VariantLabel,
			Image:        l.Image,
			Price:        l.UnitPrice,
			Quantity:     l.Quantity,
		})
	}

	return &order.Order{
		Number:           number,
		TenantID:         s.TenantID,
		Customer:         s.Snapshot.Customer,
		Shipping:         address,
		Items:            items,
		Subtotal:         subtotal,
		ShippingAmount:   shipping,
		Total:            subtotal.Add(shipping),
		Notes:            s.Snapshot.Notes,
		PaymentSessionID: s.ID,
		CreatedAt:        now.UTC(),
	}
}
