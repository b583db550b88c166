package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	amqp "github.com/rabbitmq/amqp091-go"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
)

// channel is the part of *amqp.Channel the publisher needs.
type channel interface {
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Close() error
}

type Publisher struct {
	ch       channel
	seq      Sequencer
	producer string
	now      func() time.Time
}

func NewPublisher(conn *amqp.Connection, seq Sequencer, producer string) (*Publisher, error) {
	ch, err := conn.Channel()
	if err != nil {
		return nil, fmt.Errorf("open channel: %w", err)
	}

	if err := declareEventsExchange(ch); err != nil {
		_ = ch.Close()
		return nil, fmt.Errorf("declare events exchange: %w", err)
	}

	return newPublisher(ch, seq, producer), nil
}

func newPublisher(ch channel, seq Sequencer, producer string) *Publisher {
	if producer == "" {
		producer = defaultProducer
	}
	return &Publisher{ch: ch, seq: seq, producer: producer, now: time.Now}
}

func (p *Publisher) Close() error {
	return p.ch.Close()
}

func (p *Publisher) PublishOrderCreated(ctx context.Context, meta EventMeta, o *order.Order) error {
	seq, err := p.seq.Next(ctx, o.TenantID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	env := newEnvelope(EventTypeOrderCreated, orderCreatedSchema, meta, string(o.TenantID), seq, p.producer,
		orderCreatedPayload(o, pricing.Currency), p.now().UTC())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderCreated envelope: %w", err)
	}

	return p.publishJSON(ctx, OrderCreatedRoutingKey, body)
}

func (p *Publisher) PublishOrderNotified(ctx context.Context, meta EventMeta, o *order.Order, outcomes []NotificationOutcome) error {
	seq, err := p.seq.Next(ctx, o.TenantID)
	if err != nil {
		return fmt.Errorf("reserve sequence: %w", err)
	}

	payload := OrderNotifiedPayload{OrderID: o.ID, OrderNumber: o.Number, Outcomes: outcomes}
	env := newEnvelope(EventTypeOrderNotified, orderNotifiedSchema, meta, string(o.TenantID), seq, p.producer,
		payload, p.now().UTC())
	body, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("marshal OrderNotified envelope: %w", err)
	}

	return p.publishJSON(ctx, OrderNotifiedRoutingKey, body)
}

func (p *Publisher) publishJSON(ctx context.Context, routingKey string, body []byte) error {
	pubCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()

	return p.ch.PublishWithContext(
		pubCtx,
		EventsExchange,
		routingKey,
		false,
		false,
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			Body:         body,
		},
	)
}
