package checkout

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/cart"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/events"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/notify"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/order"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/payment"
	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

type fakeCarts struct {
	mu      sync.Mutex
	carts   map[string]cart.Cart
	cleared []string
}

func (f *fakeCarts) Get(_ context.Context, tenantID tenant.ID, cartID string) (cart.Cart, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.carts[string(tenantID)+"/"+cartID]
	if !ok {
		return cart.New(tenantID, cartID), nil
	}
	return c, nil
}

func (f *fakeCarts) Clear(_ context.Context, tenantID tenant.ID, cartID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.carts, string(tenantID)+"/"+cartID)
	f.cleared = append(f.cleared, cartID)
	return nil
}

type fakeProvider struct {
	mu        sync.Mutex
	created   []payment.CreateSessionRequest
	createErr error
	sessions  map[string]payment.Session
	getErr    error
	gets      int
}

func (p *fakeProvider) CreateSession(_ context.Context, req payment.CreateSessionRequest) (payment.CreateSessionResponse, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.created = append(p.created, req)
	if p.createErr != nil {
		return payment.CreateSessionResponse{}, p.createErr
	}
	id := fmt.Sprintf("cs_%d", len(p.created))
	return payment.CreateSessionResponse{SessionID: id, RedirectURL: "https://pay.test/" + id}, nil
}

func (p *fakeProvider) RetrieveSession(_ context.Context, id string) (payment.Session, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.gets++
	if p.getErr != nil {
		return payment.Session{}, p.getErr
	}
	s, ok := p.sessions[id]
	if !ok {
		return payment.Session{}, payment.ErrSessionNotFound
	}
	return s, nil
}

func (p *fakeProvider) set(s payment.Session) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.sessions == nil {
		p.sessions = map[string]payment.Session{}
	}
	p.sessions[s.ID] = s
}

type memSessions struct {
	mu       sync.Mutex
	sessions map[string]Session
}

func (m *memSessions) key(t tenant.ID, id string) string { return string(t) + "/" + id }

func (m *memSessions) Create(_ context.Context, s *Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sessions == nil {
		m.sessions = map[string]Session{}
	}
	m.sessions[m.key(s.TenantID, s.ID)] = *s
	return nil
}

func (m *memSessions) Get(_ context.Context, t tenant.ID, id string) (*Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.sessions[m.key(t, id)]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return &s, nil
}

func (m *memSessions) UpdateStatus(_ context.Context, t tenant.ID, id string, from, to Status) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !CanTransitionTo(from, to) {
		return ErrIllegalTransition
	}
	s, ok := m.sessions[m.key(t, id)]
	if !ok || s.Status != from {
		return ErrStaleSessionVersion
	}
	s.Status = to
	m.sessions[m.key(t, id)] = s
	return nil
}

func (m *memSessions) status(t tenant.ID, id string) Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.sessions[m.key(t, id)].Status
}

// memOrders enforces the same two unique keys as the orders table.
type memOrders struct {
	mu       sync.Mutex
	orders   []order.Order
	failNext error
}

func (m *memOrders) Create(_ context.Context, o *order.Order) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.failNext; err != nil {
		m.failNext = nil
		return err
	}
	for _, existing := range m.orders {
		if existing.TenantID != o.TenantID {
			continue
		}
		if existing.PaymentSessionID == o.PaymentSessionID {
			return order.ErrDuplicateSession
		}
		if existing.Number == o.Number {
			return order.ErrDuplicateNumber
		}
	}
	o.ID = fmt.Sprintf("order-%d", len(m.orders)+1)
	m.orders = append(m.orders, *o)
	return nil
}

func (m *memOrders) find(match func(order.Order) bool) (*order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.orders {
		if match(o) {
			out := o
			return &out, nil
		}
	}
	return nil, order.ErrNotFound
}

func (m *memOrders) GetBySessionID(_ context.Context, t tenant.ID, id string) (*order.Order, error) {
	return m.find(func(o order.Order) bool { return o.TenantID == t && o.PaymentSessionID == id })
}

func (m *memOrders) GetByNumber(_ context.Context, t tenant.ID, n string) (*order.Order, error) {
	return m.find(func(o order.Order) bool { return o.TenantID == t && o.Number == n })
}

func (m *memOrders) ListByTenant(_ context.Context, t tenant.ID, _ int) ([]order.Order, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []order.Order
	for _, o := range m.orders {
		if o.TenantID == t {
			out = append(out, o)
		}
	}
	return out, nil
}

func (m *memOrders) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.orders)
}

type seqNumbers struct {
	mu   sync.Mutex
	list []string
	n    int
}

func (s *seqNumbers) Next(prefix string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.n++
	if s.n <= len(s.list) {
		return s.list[s.n-1]
	}
	return fmt.Sprintf("%s%09d", prefix, s.n)
}

type countingNotifier struct {
	mu    sync.Mutex
	calls int
}

func (n *countingNotifier) Notify(_ context.Context, o *order.Order) notify.Result {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls++
	return notify.Result{
		Customer: notify.Delivery{Role: notify.RoleCustomer, To: o.Customer.Email, DeliveryID: "m1"},
		Owner:    notify.Delivery{Role: notify.RoleOwner, To: "owner@loom.test", Err: errors.New("mailbox full")},
	}
}

func (n *countingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.calls
}

type recordingEvents struct {
	mu       sync.Mutex
	created  []string
	notified [][]events.NotificationOutcome
}

func (r *recordingEvents) PublishOrderCreated(_ context.Context, _ events.EventMeta, o *order.Order) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.created = append(r.created, o.Number)
	return nil
}

func (r *recordingEvents) PublishOrderNotified(_ context.Context, _ events.EventMeta, _ *order.Order, out []events.NotificationOutcome) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.notified = append(r.notified, out)
	return nil
}

type shopMap map[tenant.ID]tenant.Shop

func (s shopMap) Shop(id tenant.ID) (tenant.Shop, bool) {
	shop, ok := s[id]
	return shop, ok
}

type harness struct {
	orch     *Orchestrator
	carts    *fakeCarts
	provider *fakeProvider
	sessions *memSessions
	orders   *memOrders
	numbers  *seqNumbers
	notifier *countingNotifier
	events   *recordingEvents
}

var totes = []cart.Line{
	{ProductID: "tote", VariantCode: "default", Quantity: 1, UnitPrice: decimal.RequireFromString("79.99"), Name: "Essential Tote", VariantLabel: "Standard"},
	{ProductID: "tote", VariantCode: "canvas", Quantity: 1, UnitPrice: decimal.RequireFromString("89.99"), Name: "Essential Tote", VariantLabel: "Canvas"},
	{ProductID: "pouch", VariantCode: "default", Quantity: 2, UnitPrice: decimal.RequireFromString("0.00"), Name: "Gift Pouch", VariantLabel: "Standard"},
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	h := &harness{
		carts: &fakeCarts{carts: map[string]cart.Cart{
			"shopA/cart-1": {ID: "cart-1", TenantID: "shopA", Items: append([]cart.Line(nil), totes...)},
		}},
		provider: &fakeProvider{},
		sessions: &memSessions{},
		orders:   &memOrders{},
		numbers:  &seqNumbers{},
		notifier: &countingNotifier{},
		events:   &recordingEvents{},
	}
	h.orch = NewOrchestrator(Deps{
		Carts:         h.carts,
		Provider:      h.provider,
		Sessions:      h.sessions,
		Orders:        h.orders,
		Numbers:       h.numbers,
		Shops:         shopMap{"shopA": {ID: "shopA", OrderPrefix: "LO", Hosts: []string{"shop-a.test"}}},
		Notifier:      h.notifier,
		Events:        h.events,
		PublicBaseURL: "https://loom.test/",
		Logger:        log.New(io.Discard, "", 0),
	})
	h.orch.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	return h
}

var ada = order.Customer{Name: " Ada ", Email: "ada@example.com"}

func (h *harness) start(t *testing.T) string {
	t.Helper()
	res, err := h.orch.Start(context.Background(), "shopA", StartRequest{
		CartID:   "cart-1",
		Customer: ada,
		Shipping: order.Address{Line1: "1 Loom St", City: "Leeds", PostalCode: "LS1", Country: "GB"},
		Notes:    "gift wrap",
	})
	require.NoError(t, err)
	return res.SessionID
}

func TestStart_PersistsPendingSession(t *testing.T) {
	h := newHarness(t)

	res, err := h.orch.Start(context.Background(), "shopA", StartRequest{CartID: "cart-1", Customer: ada})
	require.NoError(t, err)
	assert.Equal(t, "cs_1", res.SessionID)
	assert.Equal(t, "https://pay.test/cs_1", res.RedirectURL)
	assert.Equal(t, int64(16998), res.AmountMinor)

	require.Len(t, h.provider.created, 1)
	req := h.provider.created[0]
	assert.Equal(t, "Ada", req.CustomerName)
	assert.Equal(t, "Essential Tote, Gift Pouch", req.LineDescription)
	assert.Equal(t, "usd", req.Currency)
	assert.Equal(t, "https://loom.test/checkout/success?session_id={CHECKOUT_SESSION_ID}", req.SuccessURL)
	assert.Equal(t, "https://loom.test/cart", req.CancelURL)

	s, err := h.sessions.Get(context.Background(), "shopA", "cs_1")
	require.NoError(t, err)
	assert.Equal(t, StatusPending, s.Status)
	assert.Len(t, s.Snapshot.Lines, 3)
	assert.Equal(t, "cart-1", s.CartID)
}

func TestStart_ValidatesBeforeCallingProvider(t *testing.T) {
	cases := map[string]StartRequest{
		"empty cart":    {CartID: "cart-missing", Customer: ada},
		"no cart id":    {Customer: ada},
		"missing email": {CartID: "cart-1", Customer: order.Customer{Name: "Ada"}},
		"missing name":  {CartID: "cart-1", Customer: order.Customer{Email: "ada@example.com"}},
		"bad email":     {CartID: "cart-1", Customer: order.Customer{Name: "Ada", Email: "not-an-email"}},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.orch.Start(context.Background(), "shopA", req)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Empty(t, h.provider.created)
		})
	}
}

func TestStart_ReturnURLsMustPointAtShop(t *testing.T) {
	allowed := map[string]string{
		"public base": "https://loom.test/thanks?session_id={CHECKOUT_SESSION_ID}",
		"shop host":   "https://SHOP-A.test:8443/checkout/done",
	}
	for name, u := range allowed {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			_, err := h.orch.Start(context.Background(), "shopA", StartRequest{CartID: "cart-1", Customer: ada, SuccessURL: u, CancelURL: u})
			require.NoError(t, err)
			require.Len(t, h.provider.created, 1)
			assert.Equal(t, u, h.provider.created[0].SuccessURL)
			assert.Equal(t, u, h.provider.created[0].CancelURL)
		})
	}

	rejected := map[string]StartRequest{
		"foreign success": {SuccessURL: "https://evil.test/phish"},
		"foreign cancel":  {CancelURL: "https://loom.test.evil.test/cart"},
		"javascript":      {SuccessURL: "javascript:alert(1)"},
		"relative":        {CancelURL: "/cart"},
		"userinfo":        {SuccessURL: "https://loom.test@evil.test/"},
	}
	for name, req := range rejected {
		t.Run(name, func(t *testing.T) {
			h := newHarness(t)
			req.CartID = "cart-1"
			req.Customer = ada
			_, err := h.orch.Start(context.Background(), "shopA", req)

			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Empty(t, h.provider.created)
		})
	}
}

func TestStart_ProviderFailurePersistsNothing(t *testing.T) {
	h := newHarness(t)
	h.provider.createErr = errors.New("connection refused")

	_, err := h.orch.Start(context.Background(), "shopA", StartRequest{CartID: "cart-1", Customer: ada})

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Empty(t, h.sessions.sessions)
}

func TestStart_RequiresTenant(t *testing.T) {
	h := newHarness(t)
	_, err := h.orch.Start(context.Background(), "", StartRequest{CartID: "cart-1", Customer: ada})
	assert.ErrorIs(t, err, tenant.ErrUnresolved)
}

func TestReconcile_PaidCreatesOrderOnce(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	first, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.True(t, first.Created)
	assert.Equal(t, StatusCompleted, first.Status)
	require.NotNil(t, first.Order)
	assert.Equal(t, "169.98", first.Order.Subtotal.StringFixed(2))
	assert.True(t, first.Order.ShippingAmount.IsZero())
	assert.Equal(t, "169.98", first.Order.Total.StringFixed(2))
	assert.Equal(t, "LO000000001", first.Order.Number)
	assert.Equal(t, "Ada", first.Order.Customer.Name)
	assert.Equal(t, "gift wrap", first.Order.Notes)
	assert.Len(t, first.Order.Items, 3)

	require.NotNil(t, first.Notifications)
	assert.True(t, first.Notifications.Customer.OK())
	assert.False(t, first.Notifications.Owner.OK())

	assert.Equal(t, StatusCompleted, h.sessions.status("shopA", id))
	assert.Equal(t, []string{"cart-1"}, h.carts.cleared)
	assert.Equal(t, []string{"LO000000001"}, h.events.created)
	require.Len(t, h.events.notified, 1)
	assert.Equal(t, "mailbox full", h.events.notified[0][1].Error)

	second, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.False(t, second.Created)
	assert.Nil(t, second.Notifications)
	assert.Equal(t, first.Order.ID, second.Order.ID)
	assert.Equal(t, 1, h.orders.count())
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, 1, h.provider.gets)
}

func TestReconcile_ConcurrentCallsCreateOneOrder(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	const callers = 8
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
		ids     = map[string]bool{}
	)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := h.orch.Reconcile(context.Background(), "shopA", id)
			if !assert.NoError(t, err) {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			ids[res.Order.ID] = true
			if res.Created {
				created++
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, h.orders.count())
	assert.Equal(t, 1, created)
	assert.Len(t, ids, 1)
	assert.Equal(t, 1, h.notifier.count())
}

func TestReconcile_ProviderShippingAndAddress(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{
		ID:            id,
		PaymentStatus: payment.StatusPaid,
		AmountTotal:   17998,
		ShippingDetails: &payment.ShippingDetails{
			Name:    "Ada",
			Address: order.Address{Line1: "9 Mill Rd", City: "York", PostalCode: "YO1", Country: "GB"},
		},
	})

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, "10.00", res.Order.ShippingAmount.StringFixed(2))
	assert.Equal(t, "179.98", res.Order.Total.StringFixed(2))
	assert.Equal(t, "9 Mill Rd", res.Order.Shipping.Line1)
}

func TestReconcile_UndercutAmountNeverNegativeShipping(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 15000})

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.True(t, res.Order.ShippingAmount.IsZero())
	assert.Equal(t, "169.98", res.Order.Total.StringFixed(2))
	assert.Equal(t, "1 Loom St", res.Order.Shipping.Line1)
}

func TestReconcile_UnpaidAndExpiredCreateNoOrder(t *testing.T) {
	for ps, want := range map[payment.Status]Status{
		payment.StatusUnpaid:  StatusCanceled,
		payment.StatusExpired: StatusExpired,
	} {
		t.Run(string(ps), func(t *testing.T) {
			h := newHarness(t)
			id := h.start(t)
			h.provider.set(payment.Session{ID: id, PaymentStatus: ps})

			res, err := h.orch.Reconcile(context.Background(), "shopA", id)
			require.NoError(t, err)
			assert.Equal(t, want, res.Status)
			assert.Nil(t, res.Order)
			assert.Zero(t, h.orders.count())
			assert.Empty(t, h.carts.cleared)
			assert.Zero(t, h.notifier.count())

			again, err := h.orch.Reconcile(context.Background(), "shopA", id)
			require.NoError(t, err)
			assert.Equal(t, want, again.Status)
			assert.Zero(t, h.orders.count())
		})
	}
}

func TestReconcile_ExpiredIsNotAskedAgain(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusExpired})

	_, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, res.Status)
	assert.Equal(t, 1, h.provider.gets)
}

func TestReconcile_PaidAfterCancelCreatesOrder(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)

	st, err := h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, st)

	// the provider page stayed open and the customer paid anyway
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, StatusCompleted, res.Status)
	require.NotNil(t, res.Order)
	assert.Equal(t, 1, h.orders.count())
	assert.Equal(t, 1, h.notifier.count())
	assert.Equal(t, StatusCompleted, h.sessions.status("shopA", id))
	assert.Equal(t, []string{"cart-1"}, h.carts.cleared)
}

func TestReconcile_PaidAfterEarlyUnpaidPoll(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusUnpaid})

	first, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	require.Equal(t, StatusCanceled, first.Status)

	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	second, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.True(t, second.Created)
	require.NotNil(t, second.Order)
	assert.Equal(t, "169.98", second.Order.Total.StringFixed(2))
	assert.Equal(t, StatusCompleted, h.sessions.status("shopA", id))
	assert.Equal(t, 2, h.provider.gets)
}

func TestReconcile_CanceledThenExpired(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	_, err := h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusExpired})

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, StatusExpired, res.Status)
	assert.Equal(t, StatusExpired, h.sessions.status("shopA", id))
	assert.Zero(t, h.orders.count())
}

func TestMarkCompleted_FollowsConcurrentCancel(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	stale, err := h.sessions.Get(context.Background(), "shopA", id)
	require.NoError(t, err)

	_, err = h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)

	h.orch.markCompleted(context.Background(), stale)
	assert.Equal(t, StatusCompleted, h.sessions.status("shopA", id))
}

func TestReconcile_ProviderErrorLeavesSessionPending(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.getErr = errors.New("502 from provider")

	_, err := h.orch.Reconcile(context.Background(), "shopA", id)

	var pe *ProviderError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StatusPending, h.sessions.status("shopA", id))
	assert.Zero(t, h.orders.count())
}

func TestReconcile_PersistenceFailureThenRetry(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})
	h.orders.failNext = errors.New("connection reset")

	_, err := h.orch.Reconcile(context.Background(), "shopA", id)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, StatusPending, h.sessions.status("shopA", id))
	assert.Zero(t, h.notifier.count())
	assert.Empty(t, h.carts.cleared)

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.True(t, res.Created)
	assert.Equal(t, 1, h.orders.count())
}

func TestReconcile_RetriesTakenOrderNumber(t *testing.T) {
	h := newHarness(t)
	h.orders.orders = []order.Order{{ID: "old", TenantID: "shopA", Number: "LO111111111", PaymentSessionID: "cs_old"}}
	h.numbers.list = []string{"LO111111111", "LO111111111", "LO222222222"}
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	res, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, "LO222222222", res.Order.Number)
}

func TestReconcile_GivesUpAfterRepeatedNumberCollisions(t *testing.T) {
	h := newHarness(t)
	h.orders.orders = []order.Order{{ID: "old", TenantID: "shopA", Number: "LO111111111", PaymentSessionID: "cs_old"}}
	h.numbers.list = []string{"LO111111111", "LO111111111", "LO111111111"}
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	_, err := h.orch.Reconcile(context.Background(), "shopA", id)
	var pe *PersistenceError
	require.ErrorAs(t, err, &pe)
	assert.ErrorIs(t, err, order.ErrDuplicateNumber)
	assert.Equal(t, StatusPending, h.sessions.status("shopA", id))
}

func TestReconcile_OtherTenantCannotSeeSession(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})

	_, err := h.orch.Reconcile(context.Background(), "shopB", id)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.Zero(t, h.provider.gets)
	assert.Zero(t, h.orders.count())
}

func TestCancel(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)

	st, err := h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, st)

	st, err = h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, st)

	_, err = h.orch.Cancel(context.Background(), "shopA", "cs_nope")
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestCancel_CompletedSessionStaysCompleted(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})
	_, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)

	st, err := h.orch.Cancel(context.Background(), "shopA", id)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, st)
}

func TestResend(t *testing.T) {
	h := newHarness(t)
	id := h.start(t)
	h.provider.set(payment.Session{ID: id, PaymentStatus: payment.StatusPaid, AmountTotal: 16998})
	first, err := h.orch.Reconcile(context.Background(), "shopA", id)
	require.NoError(t, err)

	ord, res, err := h.orch.Resend(context.Background(), "shopA", first.Order.Number)
	require.NoError(t, err)
	assert.Equal(t, first.Order.ID, ord.ID)
	assert.True(t, res.Customer.OK())
	assert.Equal(t, 2, h.notifier.count())
	assert.Len(t, h.events.notified, 2)

	_, _, err = h.orch.Resend(context.Background(), "shopB", first.Order.Number)
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestStatusTransitions(t *testing.T) {
	assert.True(t, CanTransitionTo(StatusCreated, StatusPending))
	assert.True(t, CanTransitionTo(StatusPending, StatusCompleted))
	assert.True(t, CanTransitionTo(StatusPending, StatusCanceled))
	assert.True(t, CanTransitionTo(StatusPending, StatusExpired))
	assert.False(t, CanTransitionTo(StatusCreated, StatusCompleted))

	// a late payment or expiry may still close a canceled session
	assert.True(t, CanTransitionTo(StatusCanceled, StatusCompleted))
	assert.True(t, CanTransitionTo(StatusCanceled, StatusExpired))
	assert.False(t, CanTransitionTo(StatusCanceled, StatusPending))
	assert.False(t, StatusCanceled.IsTerminal())
	assert.True(t, StatusCanceled.IsClosed())

	for _, terminal := range []Status{StatusCompleted, StatusExpired} {
		assert.True(t, terminal.IsTerminal())
		for _, to := range []Status{StatusCreated, StatusPending, StatusCompleted, StatusCanceled, StatusExpired} {
			assert.False(t, CanTransitionTo(terminal, to), "%s -> %s", terminal, to)
		}
	}
}
