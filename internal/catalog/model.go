package catalog

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// DefaultVariantCode names the implicit variant of products without variant selection.
const DefaultVariantCode = "default"

type Product struct {
	ID                  string          `json:"id"`
	TenantID            tenant.ID       `json:"-"`
	Slug                string          `json:"slug"`
	Name                string          `json:"name"`
	BasePrice           decimal.Decimal `json:"basePrice"`
	Category            string          `json:"category"`
	HasVariantSelection bool            `json:"hasVariantSelection"`
	Images              []string        `json:"images"`
	FabricCodes         []string        `json:"fabricCodes"`
	CreatedAt           time.Time       `json:"createdAt"`
	UpdatedAt           time.Time       `json:"updatedAt"`
}

// FabricVariant is a selectable fabric; the same fabric may be offered by many products.
type FabricVariant struct {
	Code           string          `json:"code"`
	TenantID       tenant.ID       `json:"-"`
	Label          string          `json:"label"`
	Color          string          `json:"color"`
	Upcharge       decimal.Decimal `json:"upcharge"`
	SwatchImage    string          `json:"swatchImage"`
	ImageOverrides []string        `json:"imageOverrides,omitempty"`
}

// ProductFilter narrows ListProducts. The zero value matches everything.
type ProductFilter struct {
	Category string
}

// DefaultVariant is the zero-upcharge variant used when a product offers no choice.
func (p Product) DefaultVariant() FabricVariant {
	return FabricVariant{
		Code:     DefaultVariantCode,
		TenantID: p.TenantID,
		Label:    "Standard",
		Upcharge: decimal.Zero,
	}
}

// OffersFabric reports whether code is one of the product's selectable fabrics.
func (p Product) OffersFabric(code string) bool {
	for _, c := range p.FabricCodes {
		if c == code {
			return true
		}
	}
	return false
}

// DisplayImage picks the image shown for this product in variant v.
func (p Product) DisplayImage(v FabricVariant) string {
	if len(v.ImageOverrides) > 0 {
		return v.ImageOverrides[0]
	}
	if len(p.Images) > 0 {
		return p.Images[0]
	}
	return ""
}
