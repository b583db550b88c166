package checkout

import (
	"context"
	"errors"
	"log"
	"net/mail"
	"net/url"
	"strings"
	"time"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/middleware"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/pricing"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

const (
	numberAttempts   = 3
	followUpTimeout  = 15 * time.Second
	checkoutIDMarker = "{CHECKOUT_SESSION_ID}"
)

type CartStore interface {
	Get(ctx context.Context, tenantID tenant.ID, cartID string) (cart.Cart, error)
	Clear(ctx context.Context, tenantID tenant.ID, cartID string) error
}

type Notifier interface {
	Notify(ctx context.Context, o *order.Order) notify.Result
}

type EventPublisher interface {
	PublishOrderCreated(ctx context.Context, meta events.EventMeta, o *order.Order) error
	PublishOrderNotified(ctx context.Context, meta events.EventMeta, o *order.Order, outcomes []events.NotificationOutcome) error
}

type NumberSource interface {
	Next(prefix string) string
}

type Deps struct {
	Carts         CartStore
	Provider      payment.Provider
	Sessions      SessionRepository
	Orders        order.Repository
	Numbers       NumberSource
	Shops         notify.ShopDirectory
	Notifier      Notifier
	// Events may be nil; publishing is skipped then.
	Events        EventPublisher
	PublicBaseURL string
	Logger        *log.Logger
}

type Orchestrator struct {
	carts    CartStore
	provider payment.Provider
	sessions SessionRepository
	orders   order.Repository
	numbers  NumberSource
	shops    notify.ShopDirectory
	notifier Notifier
	events   EventPublisher
	baseURL  string
	baseHost string
	logger   *log.Logger
	now      func() time.Time
}

func NewOrchestrator(d Deps) *Orchestrator {
	logger := d.Logger
	if logger == nil {
		logger = log.Default()
	}
	numbers := d.Numbers
	if numbers == nil {
		numbers = order.NewNumberGenerator()
	}
	baseURL := strings.TrimRight(d.PublicBaseURL, "/")
	var baseHost string
	if u, err := url.Parse(baseURL); err == nil {
		baseHost = u.Hostname()
	}
	return &Orchestrator{
		carts:    d.Carts,
		provider: d.Provider,
		sessions: d.Sessions,
		orders:   d.Orders,
		numbers:  numbers,
		shops:    d.Shops,
		notifier: d.Notifier,
		events:   d.Events,
		baseURL:  baseURL,
		baseHost: baseHost,
		logger:   logger,
		now:      time.Now,
	}
}

type StartRequest struct {
	CartID     string
	Customer   order.Customer
	Shipping   order.Address
	Notes      string
	SuccessURL string
	CancelURL  string
}

type StartResult struct {
	SessionID   string `json:"sessionId"`
	RedirectURL string `json:"redirectUrl"`
	AmountMinor int64  `json:"amountMinorUnits"`
	Currency    string `json:"currency"`
}

// Start snapshots the cart, opens a session with the payment provider and
// records it as pending. Validation runs before the provider is called.
func (o *Orchestrator) Start(ctx context.Context, tenantID tenant.ID, req StartRequest) (StartResult, error) {
	if tenantID == "" {
		return StartResult{}, tenant.ErrUnresolved
	}
	if err := validateCustomer(req.Customer); err != nil {
		return StartResult{}, err
	}
	if strings.TrimSpace(req.CartID) == "" {
		return StartResult{}, &ValidationError{Field: "cart", Reason: "cart is empty"}
	}

	c, err := o.carts.Get(ctx, tenantID, req.CartID)
	if err != nil {
		return StartResult{}, &PersistenceError{Op: "load cart", Err: err}
	}
	if c.IsEmpty() {
		return StartResult{}, &ValidationError{Field: "cart", Reason: "cart is empty"}
	}

	successURL, err := o.returnURL(tenantID, "successUrl", req.SuccessURL, o.baseURL+"/checkout/success?session_id="+checkoutIDMarker)
	if err != nil {
		return StartResult{}, err
	}
	cancelURL, err := o.returnURL(tenantID, "cancelUrl", req.CancelURL, o.baseURL+"/cart")
	if err != nil {
		return StartResult{}, err
	}

	now := o.now().UTC()
	s := &Session{
		TenantID:   tenantID,
		Status:     StatusCreated,
		CartID:     c.ID,
		Currency:   pricing.Currency,
		SuccessURL: successURL,
		CancelURL:  cancelURL,
		Snapshot: Snapshot{
			Lines:    c.Lines(),
			Customer: trimCustomer(req.Customer),
			Shipping: req.Shipping,
			Notes:    strings.TrimSpace(req.Notes),
		},
		CreatedAt: now,
		UpdatedAt: now,
	}

	amount := pricing.MinorUnits(s.Snapshot.Subtotal())
	if amount <= 0 {
		return StartResult{}, &ValidationError{Field: "cart", Reason: "cart total must be positive"}
	}
	s.AmountMinor = amount

	resp, err := o.provider.CreateSession(ctx, payment.CreateSessionRequest{
		CustomerName:     s.Snapshot.Customer.Name,
		CustomerEmail:    s.Snapshot.Customer.Email,
		LineDescription:  lineDescription(s.Snapshot.Lines),
		AmountMinorUnits: amount,
		Currency:         s.Currency,
		SuccessURL:       s.SuccessURL,
		CancelURL:        s.CancelURL,
		Metadata:         map[string]string{"tenantId": string(tenantID), "cartId": c.ID},
	})
	if err != nil {
		return StartResult{}, &ProviderError{Op: "create session", Err: err}
	}

	s.ID = resp.SessionID
	if err := s.transition(StatusPending); err != nil {
		return StartResult{}, err
	}
	if err := o.sessions.Create(ctx, s); err != nil {
		return StartResult{}, &PersistenceError{Op: "checkout session", Err: err}
	}

	o.logger.Printf("checkout started tenant=%s session=%s amount=%d", tenantID, s.ID, amount)
	return StartResult{SessionID: s.ID, RedirectURL: resp.RedirectURL, AmountMinor: amount, Currency: s.Currency}, nil
}

type ReconcileResult struct {
	Status Status
	Order  *order.Order
	// Created is true only for the call that persisted the order.
	Created       bool
	Notifications *notify.Result
}

// Reconcile asks the provider how the session ended. A paid session yields
// exactly one order however many times, or however concurrently, it is
// reconciled; later calls return the order already stored.
func (o *Orchestrator) Reconcile(ctx context.Context, tenantID tenant.ID, sessionID string) (ReconcileResult, error) {
	if tenantID == "" {
		return ReconcileResult{}, tenant.ErrUnresolved
	}
	if strings.TrimSpace(sessionID) == "" {
		return ReconcileResult{}, &ValidationError{Field: "sessionId", Reason: "is required"}
	}

	if existing, err := o.orders.GetBySessionID(ctx, tenantID, sessionID); err == nil {
		return ReconcileResult{Status: StatusCompleted, Order: existing}, nil
	} else if !errors.Is(err, order.ErrNotFound) {
		return ReconcileResult{}, &PersistenceError{Op: "lookup order", Err: err}
	}

	s, err := o.sessions.Get(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return ReconcileResult{}, err
		}
		return ReconcileResult{}, &PersistenceError{Op: "lookup session", Err: err}
	}
	// A canceled session is still asked about: the customer may have paid on
	// the provider page after leaving it.
	if s.Status == StatusExpired {
		return ReconcileResult{Status: s.Status}, nil
	}

	ps, err := o.provider.RetrieveSession(ctx, sessionID)
	if err != nil {
		return ReconcileResult{}, &ProviderError{Op: "retrieve session", Err: err}
	}

	switch ps.PaymentStatus {
	case payment.StatusPaid:
		return o.completePaid(ctx, s, ps)
	case payment.StatusExpired:
		return o.close(ctx, s, StatusExpired)
	default:
		return o.close(ctx, s, StatusCanceled)
	}
}

// Cancel marks a pending session canceled. Closed sessions are left alone and
// their status returned. A payment that still lands on the provider side is
// picked up by the next Reconcile.
func (o *Orchestrator) Cancel(ctx context.Context, tenantID tenant.ID, sessionID string) (Status, error) {
	if tenantID == "" {
		return "", tenant.ErrUnresolved
	}
	s, err := o.sessions.Get(ctx, tenantID, sessionID)
	if err != nil {
		if errors.Is(err, ErrSessionNotFound) {
			return "", err
		}
		return "", &PersistenceError{Op: "lookup session", Err: err}
	}
	if s.Status.IsClosed() {
		return s.Status, nil
	}
	res, err := o.close(ctx, s, StatusCanceled)
	return res.Status, err
}

// Resend dispatches both order emails again. Nothing deduplicates repeated
// resends.
func (o *Orchestrator) Resend(ctx context.Context, tenantID tenant.ID, orderNumber string) (*order.Order, notify.Result, error) {
	if tenantID == "" {
		return nil, notify.Result{}, tenant.ErrUnresolved
	}
	ord, err := o.orders.GetByNumber(ctx, tenantID, orderNumber)
	if err != nil {
		return nil, notify.Result{}, err
	}
	res := o.notifyAndPublish(ctx, ord)
	return ord, res, nil
}

func (o *Orchestrator) completePaid(ctx context.Context, s *Session, ps payment.Session) (ReconcileResult, error) {
	var shipTo *order.Address
	if ps.ShippingDetails != nil {
		shipTo = &ps.ShippingDetails.Address
	}

	prefix := order.DefaultPrefix
	if shop, ok := o.shops.Shop(s.TenantID); ok && shop.OrderPrefix != "" {
		prefix = shop.OrderPrefix
	}

	var (
		ord *order.Order
		err error
	)
	for attempt := 0; attempt < numberAttempts; attempt++ {
		ord = s.buildOrder(o.numbers.Next(prefix), ps.AmountTotal, shipTo, o.now())
		err = o.orders.Create(ctx, ord)
		if !errors.Is(err, order.ErrDuplicateNumber) {
			break
		}
		o.logger.Printf("order number %s taken tenant=%s, retrying", ord.Number, s.TenantID)
	}

	switch {
	case err == nil:
	case errors.Is(err, order.ErrDuplicateSession):
		// another reconciliation of this session won the insert
		existing, lookupErr := o.orders.GetBySessionID(ctx, s.TenantID, s.ID)
		if lookupErr != nil {
			return ReconcileResult{}, &PersistenceError{Op: "lookup order", Err: lookupErr}
		}
		return ReconcileResult{Status: StatusCompleted, Order: existing}, nil
	default:
		return ReconcileResult{}, &PersistenceError{Op: "order", Err: err}
	}

	o.logger.Printf("order created tenant=%s order=%s session=%s total=%s", s.TenantID, ord.Number, s.ID, ord.Total.StringFixed(2))

	// The order is durable from here on; the rest must not fail the request
	// or be cut short by a client disconnect.
	followCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
	defer cancel()

	o.markCompleted(followCtx, s)

	if o.events != nil {
		if err := o.events.PublishOrderCreated(followCtx, eventMeta(ctx, s.ID), ord); err != nil {
			o.logger.Printf("publish order.created tenant=%s order=%s: %v", s.TenantID, ord.Number, err)
		}
	}

	res := o.notifyAndPublish(followCtx, ord)

	if s.CartID != "" {
		if err := o.carts.Clear(followCtx, s.TenantID, s.CartID); err != nil {
			o.logger.Printf("clear cart tenant=%s cart=%s: %v", s.TenantID, s.CartID, err)
		}
	}

	return ReconcileResult{Status: StatusCompleted, Order: ord, Created: true, Notifications: &res}, nil
}

// markCompleted follows the session if a concurrent Cancel moved it after it
// was read; a paid session ends completed either way.
func (o *Orchestrator) markCompleted(ctx context.Context, s *Session) {
	from := s.Status
	for attempt := 0; attempt < 2; attempt++ {
		err := o.sessions.UpdateStatus(ctx, s.TenantID, s.ID, from, StatusCompleted)
		if err == nil {
			return
		}
		if !errors.Is(err, ErrStaleSessionVersion) {
			o.logger.Printf("mark session completed tenant=%s session=%s: %v", s.TenantID, s.ID, err)
			return
		}
		current, getErr := o.sessions.Get(ctx, s.TenantID, s.ID)
		if getErr != nil {
			o.logger.Printf("mark session completed tenant=%s session=%s: %v", s.TenantID, s.ID, getErr)
			return
		}
		if current.Status == StatusCompleted {
			return
		}
		from = current.Status
	}
	o.logger.Printf("mark session completed tenant=%s session=%s: status keeps moving", s.TenantID, s.ID)
}

func (o *Orchestrator) notifyAndPublish(ctx context.Context, ord *order.Order) notify.Result {
	res := o.notifier.Notify(ctx, ord)
	if o.events != nil {
		if err := o.events.PublishOrderNotified(ctx, eventMeta(ctx, ord.PaymentSessionID), ord, outcomes(res)); err != nil {
			o.logger.Printf("publish order.notified tenant=%s order=%s: %v", ord.TenantID, ord.Number, err)
		}
	}
	return res
}

// close moves a session to canceled or expired when that is a legal move and
// otherwise reports the status it already has. The cart is untouched so the
// customer can try again.
func (o *Orchestrator) close(ctx context.Context, s *Session, to Status) (ReconcileResult, error) {
	if !CanTransitionTo(s.Status, to) {
		return ReconcileResult{Status: s.Status}, nil
	}
	err := o.sessions.UpdateStatus(ctx, s.TenantID, s.ID, s.Status, to)
	switch {
	case err == nil:
		return ReconcileResult{Status: to}, nil
	case errors.Is(err, ErrStaleSessionVersion):
		current, getErr := o.sessions.Get(ctx, s.TenantID, s.ID)
		if getErr != nil {
			return ReconcileResult{}, &PersistenceError{Op: "lookup session", Err: getErr}
		}
		return ReconcileResult{Status: current.Status}, nil
	default:
		return ReconcileResult{}, &PersistenceError{Op: "checkout session status", Err: err}
	}
}

// returnURL accepts a caller supplied redirect only when it points back at
// the public base URL or one of the shop's own hosts.
func (o *Orchestrator) returnURL(tenantID tenant.ID, field, requested, fallback string) (string, error) {
	requested = strings.TrimSpace(requested)
	if requested == "" {
		return fallback, nil
	}
	u, err := url.Parse(requested)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host == "" || u.User != nil {
		return "", &ValidationError{Field: field, Reason: "must be an absolute http(s) URL"}
	}
	if o.baseHost != "" && strings.EqualFold(u.Hostname(), o.baseHost) {
		return requested, nil
	}
	if shop, ok := o.shops.Shop(tenantID); ok && shop.ServesHost(u.Host) {
		return requested, nil
	}
	return "", &ValidationError{Field: field, Reason: "must point at the shop"}
}

func validateCustomer(c order.Customer) error {
	if strings.TrimSpace(c.Name) == "" {
		return &ValidationError{Field: "customer.name", Reason: "is required"}
	}
	email := strings.TrimSpace(c.Email)
	if email == "" {
		return &ValidationError{Field: "customer.email", Reason: "is required"}
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return &ValidationError{Field: "customer.email", Reason: "is not a valid address"}
	}
	return nil
}

func trimCustomer(c order.Customer) order.Customer {
	return order.Customer{
		Name:  strings.TrimSpace(c.Name),
		Email: strings.TrimSpace(c.Email),
		Phone: strings.TrimSpace(c.Phone),
	}
}

// lineDescription lists each product name once, in cart order.
func lineDescription(lines []cart.Line) string {
	seen := make(map[string]bool, len(lines))
	names := make([]string, 0, len(lines))
	for _, l := range lines {
		if l.Name == "" || seen[l.Name] {
			continue
		}
		seen[l.Name] = true
		names = append(names, l.Name)
	}
	return strings.Join(names, ", ")
}

func eventMeta(ctx context.Context, causation string) events.EventMeta {
	return events.EventMeta{CorrelationID: middleware.GetCorrelationID(ctx), CausationID: causation}
}

func outcomes(r notify.Result) []events.NotificationOutcome {
	out := make([]events.NotificationOutcome, 0, 2)
	for _, d := range r.Deliveries() {
		out = append(out, events.NotificationOutcome{
			Recipient:  string(d.Role),
			To:         d.To,
			Delivered:  d.OK(),
			DeliveryID: d.DeliveryID,
			Error:      d.ErrorText(),
		})
	}
	return out
}

