// Package cart holds a customer's in-progress cart.
//
// Cart is a value: every mutation returns a new Cart and leaves the receiver
// untouched, so a snapshot taken at checkout cannot drift.
package cart

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// MaxLineQuantity caps a single line.
const MaxLineQuantity = 1000

var (
	ErrInvalidQuantity = errors.New("quantity must be positive")
	ErrQuantityLimit   = fmt.Errorf("%w and at most %d per line", ErrInvalidQuantity, MaxLineQuantity)
	ErrLineNotFound    = errors.New("cart line not found")
)

type Line struct {
	ProductID    string          `json:"productId"`
	VariantCode  string          `json:"variantCode"`
	Quantity     int             `json:"quantity"`
	UnitPrice    decimal.Decimal `json:"unitPrice"`
	Name         string          `json:"name"`
	VariantLabel string          `json:"variantLabel"`
	Image        string          `json:"image,omitempty"`
}

func (l Line) Total() decimal.Decimal {
	return pricing.LineTotal(l.UnitPrice, l.Quantity)
}

func (l Line) sameKey(productID, variantCode string) bool {
	return l.ProductID == productID && l.VariantCode == variantCode
}

type Cart struct {
	ID        string    `json:"cartId"`
	TenantID  tenant.ID `json:"-"`
	Items     []Line    `json:"items"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func New(tenantID tenant.ID, id string) Cart {
	return Cart{ID: id, TenantID: tenantID, Items: []Line{}}
}

// AddLine adds l, or increments the quantity of the existing line with the
// same product and variant. An existing line keeps the unit price it was
// first added at.
func (c Cart) AddLine(l Line) (Cart, error) {
	if l.Quantity <= 0 {
		return c, ErrInvalidQuantity
	}
	if l.Quantity > MaxLineQuantity {
		return c, ErrQuantityLimit
	}
	out := c.clone()
	for i := range out.Items {
		if out.Items[i].sameKey(l.ProductID, l.VariantCode) {
			if out.Items[i].Quantity > MaxLineQuantity-l.Quantity {
				return c, ErrQuantityLimit
			}
			out.Items[i].Quantity += l.Quantity
			return out, nil
		}
	}
	out.Items = append(out.Items, l)
	return out, nil
}

// UpdateQuantity sets the quantity of a line. Zero or less removes it.
func (c Cart) UpdateQuantity(productID, variantCode string, quantity int) (Cart, error) {
	if quantity <= 0 {
		return c.RemoveLine(productID, variantCode), nil
	}
	if quantity > MaxLineQuantity {
		return c, ErrQuantityLimit
	}
	out := c.clone()
	for i := range out.Items {
		if out.Items[i].sameKey(productID, variantCode) {
			out.Items[i].Quantity = quantity
			return out, nil
		}
	}
	return c, ErrLineNotFound
}

// RemoveLine drops a line. Removing a line that is not there is a no-op.
func (c Cart) RemoveLine(productID, variantCode string) Cart {
	out := c.clone()
	out.Items = out.Items[:0]
	for _, l := range c.Items {
		if !l.sameKey(productID, variantCode) {
			out.Items = append(out.Items, l)
		}
	}
	return out
}

func (c Cart) Clear() Cart {
	out := c
	out.Items = []Line{}
	return out
}

// Lines returns a copy of the cart lines in insertion order.
func (c Cart) Lines() []Line {
	lines := make([]Line, len(c.Items))
	copy(lines, c.Items)
	return lines
}

func (c Cart) Total() decimal.Decimal {
	pl := make([]pricing.Line, 0, len(c.Items))
	for _, l := range c.Items {
		pl = append(pl, pricing.Line{UnitPrice: l.UnitPrice, Quantity: l.Quantity})
	}
	return pricing.CartTotal(pl)
}

func (c Cart) IsEmpty() bool {
	return len(c.Items) == 0
}

func (c Cart) clone() Cart {
	out := c
	out.Items = make([]Line, len(c.Items), len(c.Items)+1)
	copy(out.Items, c.Items)
	return out
}
