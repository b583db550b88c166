package order

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

type Customer struct {
	Name  string `json:"name"`
	Email string `json:"email"`
	Phone string `json:"phone,omitempty"`
}

type Address struct {
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state,omitempty"`
	PostalCode string `json:"postalCode"`
	Country    string `json:"country"`
}

func (a Address) IsZero() bool {
	return a == Address{}
}

type Item struct {
	ProductID    string          `json:"productId"`
	Name         string          `json:"name"`
	VariantCode  string          `json:"variantCode"`
	VariantLabel string          `json:"variantLabel"`
	Image        string          `json:"image,omitempty"`
	Price        decimal.Decimal `json:"price"`
	Quantity     int             `json:"quantity"`
}

func (it Item) Total() decimal.Decimal {
	return it.Price.Mul(decimal.NewFromInt(int64(it.Quantity)))
}

type Order struct {
	ID               string          `json:"orderId"`
	Number           string          `json:"orderNumber"`
	TenantID         tenant.ID       `json:"-"`
	Customer         Customer        `json:"customer"`
	Shipping         Address         `json:"shippingAddress"`
	Items            []Item          `json:"items"`
	Subtotal         decimal.Decimal `json:"subtotal"`
	ShippingAmount   decimal.Decimal `json:"shipping"`
	Total            decimal.Decimal `json:"total"`
	Notes            string          `json:"notes,omitempty"`
	PaymentSessionID string          `json:"paymentSessionId"`
	CreatedAt        time.Time       `json:"createdAt"`
}
