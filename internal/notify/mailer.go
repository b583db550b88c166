package notify

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/clients"
)

// FromClass picks which configured sender address an email goes out from.
type FromClass string

const (
	FromOrders  FromClass = "orders"
	FromContact FromClass = "contact"
)

type Email struct {
	From    FromClass
	To      string
	Subject string
	HTML    string
	Text    string
}

type Mailer interface {
	// Send returns the provider's delivery id.
	Send(ctx context.Context, e Email) (string, error)
}

// HTTPMailer posts emails to the email provider's REST API.
type HTTPMailer struct {
	c    *clients.Client
	from map[FromClass]string
}

func NewHTTPMailer(c *clients.Client, ordersFrom, contactFrom string) *HTTPMailer {
	return &HTTPMailer{c: c, from: map[FromClass]string{
		FromOrders:  ordersFrom,
		FromContact: contactFrom,
	}}
}

type sendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	HTML    string   `json:"html"`
	Text    string   `json:"text"`
}

type sendResponse struct {
	ID string `json:"id"`
}

func (m *HTTPMailer) Send(ctx context.Context, e Email) (string, error) {
	from := m.from[e.From]
	if from == "" {
		return "", fmt.Errorf("no sender address for class %q", e.From)
	}
	if e.To == "" {
		return "", errors.New("recipient is required")
	}

	var out sendResponse
	err := m.c.DoJSON(ctx, http.MethodPost, "/emails", sendRequest{
		From:    from,
		To:      []string{e.To},
		Subject: e.Subject,
		HTML:    e.HTML,
		Text:    e.Text,
	}, &out)
	if err != nil {
		return "", err
	}
	return out.ID, nil
}
