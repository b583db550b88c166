// Package notify sends the order confirmation to the customer and the new
// order notice to the shop owner.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

type Role string

const (
	RoleCustomer Role = "customer"
	RoleOwner    Role = "owner"
)

var ErrNoOwnerAddress = errors.New("no owner address configured for shop")

// Delivery is the outcome of one send.
type Delivery struct {
	Role       Role   `json:"recipient"`
	To         string `json:"to"`
	DeliveryID string `json:"deliveryId,omitempty"`
	Err        error  `json:"-"`
}

func (d Delivery) OK() bool { return d.Err == nil }

func (d Delivery) ErrorText() string {
	if d.Err == nil {
		return ""
	}
	return d.Err.Error()
}

type Result struct {
	Customer Delivery
	Owner    Delivery
}

func (r Result) Deliveries() []Delivery {
	return []Delivery{r.Customer, r.Owner}
}

// ShopDirectory looks up a tenant's shop settings.
type ShopDirectory interface {
	Shop(id tenant.ID) (tenant.Shop, bool)
}

type Dispatcher struct {
	mailer Mailer
	shops  ShopDirectory
	logger *log.Logger
}

func NewDispatcher(mailer Mailer, shops ShopDirectory, logger *log.Logger) *Dispatcher {
	if logger == nil {
		logger = log.Default()
	}
	return &Dispatcher{mailer: mailer, shops: shops, logger: logger}
}

// Notify sends both emails concurrently. Neither send can stop or undo the
// other, and failures are only reported in the Result. Calling Notify again
// for the same order sends both emails again.
func (d *Dispatcher) Notify(ctx context.Context, o *order.Order) Result {
	shop, _ := d.shops.Shop(o.TenantID)
	shopName := shop.Name
	if shopName == "" {
		shopName = string(o.TenantID)
	}
	data := templateData{ShopName: shopName, Order: o}

	res := Result{
		Customer: Delivery{Role: RoleCustomer, To: o.Customer.Email},
		Owner:    Delivery{Role: RoleOwner, To: shop.OwnerEmail},
	}

	var g errgroup.Group
	g.Go(func() error {
		res.Customer.DeliveryID, res.Customer.Err = d.send(ctx, customerTemplates, data, Email{
			From:    FromOrders,
			To:      o.Customer.Email,
			Subject: fmt.Sprintf("Your %s order %s", shopName, o.Number),
		})
		return nil
	})
	g.Go(func() error {
		if shop.OwnerEmail == "" {
			res.Owner.Err = ErrNoOwnerAddress
			return nil
		}
		res.Owner.DeliveryID, res.Owner.Err = d.send(ctx, ownerTemplates, data, Email{
			From:    FromContact,
			To:      shop.OwnerEmail,
			Subject: fmt.Sprintf("New order %s from %s", o.Number, o.Customer.Name),
		})
		return nil
	})
	_ = g.Wait()

	for _, del := range res.Deliveries() {
		if del.Err != nil {
			d.logger.Printf("notify tenant=%s order=%s recipient=%s failed: %v", o.TenantID, o.Number, del.Role, del.Err)
		}
	}
	return res
}

func (d *Dispatcher) send(ctx context.Context, tpl pair, data templateData, e Email) (string, error) {
	html, text, err := tpl.render(data)
	if err != nil {
		return "", fmt.Errorf("render %s email: %w", e.From, err)
	}
	e.HTML = html
	e.Text = text
	return d.mailer.Send(ctx, e)
}
