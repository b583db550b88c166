package events

import (
	"time"

	"github.com/google/uuid"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

type OrderLine struct {
	ProductID    string `json:"productId"`
	Name         string `json:"name"`
	VariantCode  string `json:"variantCode"`
	VariantLabel string `json:"variantLabel"`
	Quantity     int    `json:"quantity"`
	Price        string `json:"price"`
}

type OrderCreatedPayload struct {
	OrderID          string      `json:"orderId"`
	OrderNumber      string      `json:"orderNumber"`
	PaymentSessionID string      `json:"paymentSessionId"`
	CustomerEmail    string      `json:"customerEmail"`
	Items            []OrderLine `json:"items"`
	Subtotal         string      `json:"subtotal"`
	Shipping         string      `json:"shipping"`
	Total            string      `json:"total"`
	Currency         string      `json:"currency"`
	CreatedAt        time.Time   `json:"createdAt"`
}

// NotificationOutcome is the delivery result for one recipient of an order email.
type NotificationOutcome struct {
	Recipient  string `json:"recipient"`
	To         string `json:"to"`
	Delivered  bool   `json:"delivered"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Error      string `json:"error,omitempty"`
}

type OrderNotifiedPayload struct {
	OrderID     string                `json:"orderId"`
	OrderNumber string                `json:"orderNumber"`
	Outcomes    []NotificationOutcome `json:"outcomes"`
}

type OrderCreatedEvent = EventEnvelope[OrderCreatedPayload]

type OrderNotifiedEvent = EventEnvelope[OrderNotifiedPayload]

func orderCreatedPayload(o *order.Order, currency string) OrderCreatedPayload {
	p := OrderCreatedPayload{
		OrderID:          o.ID,
		OrderNumber:      o.Number,
		PaymentSessionID: o.PaymentSessionID,
		CustomerEmail:    o.Customer.Email,
		Items:            make([]OrderLine, 0, len(o.Items)),
		Subtotal:         o.Subtotal.StringFixed(2),
		Shipping:         o.ShippingAmount.StringFixed(2),
		Total:            o.Total.StringFixed(2),
		Currency:         currency,
		CreatedAt:        o.CreatedAt,
	}
	for _, it := range o.Items {
		p.Items = append(p.Items, OrderLine{
			ProductID:    it.ProductID,
			Name:         it.Name,
			VariantCode:  it.VariantCode,
			VariantLabel: it.VariantLabel,
			Quantity:     it.Quantity,
			Price:        it.Price.StringFixed(2),
		})
	}
	return p
}

func newEnvelope[T any](name, schema string, meta EventMeta, tenantID string, seq int64, producer string, payload T, occurredAt time.Time) EventEnvelope[T] {
	return EventEnvelope[T]{
		EventName:     name,
		EventVersion:  1,
		EventID:       uuid.NewString(),
		CorrelationID: meta.CorrelationID,
		CausationID:   meta.CausationID,
		Producer:      producer,
		TenantID:      tenantID,
		PartitionKey:  tenantPartition(tenantID),
		Sequence:      seq,
		OccurredAt:    occurredAt,
		Schema:        schema,
		Payload:       payload,
	}
}
