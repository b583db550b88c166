// Package payment is the contract with the hosted payment provider: create a
// checkout session, then read back how it ended.
package payment

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/clients"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
)

type Status string

const (
	StatusPaid    Status = "paid"
	StatusUnpaid  Status = "unpaid"
	StatusExpired Status = "expired"
)

var ErrSessionNotFound = errors.New("payment session not found")

type CreateSessionRequest struct {
	CustomerName     string            `json:"customerName"`
	CustomerEmail    string            `json:"customerEmail"`
	LineDescription  string            `json:"lineDescription"`
	AmountMinorUnits int64             `json:"amountMinorUnits"`
	Currency         string            `json:"currency"`
	SuccessURL       string            `json:"successUrl"`
	CancelURL        string            `json:"cancelUrl"`
	Metadata         map[string]string `json:"metadata,omitempty"`
}

type CreateSessionResponse struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
}

type ShippingDetails struct {
	Name    string        `json:"name"`
	Address order.Address `json:"address"`
}

type Session struct {
	ID              string           `json:"sessionId"`
	PaymentStatus   Status           `json:"paymentStatus"`
	CustomerEmail   string           `json:"customerEmail"`
	ShippingDetails *ShippingDetails `json:"shippingDetails,omitempty"`
	AmountTotal     int64            `json:"amountTotal"`
}

type Provider interface {
	CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResponse, error)
	RetrieveSession(ctx context.Context, sessionID string) (Session, error)
}

type HTTPProvider struct {
	c *clients.Client
}

func NewHTTPProvider(c *clients.Client) *HTTPProvider {
	return &HTTPProvider{c: c}
}

func (p *HTTPProvider) CreateSession(ctx context.Context, req CreateSessionRequest) (CreateSessionResponse, error) {
	var out CreateSessionResponse
	if err := p.c.DoJSON(ctx, http.MethodPost, "/v1/checkout/sessions", req, &out); err != nil {
		return CreateSessionResponse{}, err
	}
	if out.SessionID == "" || out.RedirectURL == "" {
		return CreateSessionResponse{}, fmt.Errorf("%s: session response missing id or redirect url", p.c.Name)
	}
	return out, nil
}

func (p *HTTPProvider) RetrieveSession(ctx context.Context, sessionID string) (Session, error) {
	var out Session
	err := p.c.DoJSON(ctx, http.MethodGet, "/v1/checkout/sessions/"+url.PathEscape(sessionID), nil, &out)
	if err != nil {
		var se *clients.StatusError
		if errors.As(err, &se) && se.Code == http.StatusNotFound {
			return Session{}, ErrSessionNotFound
		}
		return Session{}, err
	}
	switch out.PaymentStatus {
	case StatusPaid, StatusUnpaid, StatusExpired:
	default:
		return Session{}, fmt.Errorf("%s: unknown payment status %q", p.c.Name, out.PaymentStatus)
	}
	if out.ID == "" {
		out.ID = sessionID
	}
	return out, nil
}
