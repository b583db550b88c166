// Package pricing derives line and cart amounts from catalog prices.
//
// Amounts are shopspring decimals kept at full precision; rounding to cents only
// happens at the edges (Display for people, MinorUnits for the payment provider).
package pricing

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/catalog"
)

// Currency is the single currency every shop charges in.
const Currency = "usd"

var ErrInvalidPrice = errors.New("invalid price")

var hundred = decimal.NewFromInt(100)

// Line is the pricing view of one cart line.
type Line struct {
	UnitPrice decimal.Decimal
	Quantity  int
}

// UnitPrice is the product's base price plus the selected variant's upcharge.
// Products without variant selection must be priced with p.DefaultVariant().
func UnitPrice(p catalog.Product, v catalog.FabricVariant) (decimal.Decimal, error) {
	if p.BasePrice.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: product %s has negative base price %s", ErrInvalidPrice, p.ID, p.BasePrice)
	}
	if v.Upcharge.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: variant %s has negative upcharge %s", ErrInvalidPrice, v.Code, v.Upcharge)
	}
	if !p.HasVariantSelection && !v.Upcharge.IsZero() {
		return decimal.Zero, fmt.Errorf("%w: product %s has no variant selection but variant %s carries an upcharge", ErrInvalidPrice, p.ID, v.Code)
	}
	return p.BasePrice.Add(v.Upcharge), nil
}

func LineTotal(unit decimal.Decimal, quantity int) decimal.Decimal {
	return unit.Mul(decimal.NewFromInt(int64(quantity)))
}

// CartTotal sums unit price times quantity over all lines.
func CartTotal(lines []Line) decimal.Decimal {
	total := decimal.Zero
	for _, l := range lines {
		total = total.Add(LineTotal(l.UnitPrice, l.Quantity))
	}
	return total
}

// MinorUnits converts an amount to cents, rounding half up.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FromMinorUnits converts cents back to an amount.
func FromMinorUnits(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

// Display formats an amount with two fraction digits, e.g. "$199.98".
func Display(amount decimal.Decimal) string {
	return "$" + amount.StringFixed(2)
}
