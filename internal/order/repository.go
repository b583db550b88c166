// Package order persists completed orders, one per payment session.
package order

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

var (
	ErrNotFound = errors.New("order not found")
	// ErrDuplicateSession means an order already exists for the payment session.
	ErrDuplicateSession = errors.New("order already exists for payment session")
	ErrDuplicateNumber  = errors.New("order number already taken")
)

const (
	sessionConstraint = "orders_tenant_session_key"
	numberConstraint  = "orders_tenant_number_key"
)

type Repository interface {
	Create(ctx context.Context, o *Order) error
	GetBySessionID(ctx context.Context, tenantID tenant.ID, sessionID string) (*Order, error)
	GetByNumber(ctx context.Context, tenantID tenant.ID, number string) (*Order, error)
	ListByTenant(ctx context.Context, tenantID tenant.ID, limit int) ([]Order, error)
}

type repo struct {
	db *sql.DB
}

func NewRepository(db *sql.DB) Repository {
	return &repo{db: db}
}

// Create inserts the order and its items in one transaction. The unique
// (tenant_id, payment_session_id) index decides which of two concurrent
// reconciliations wins; the loser gets ErrDuplicateSession.
func (r *repo) Create(ctx context.Context, o *Order) error {
	if o.TenantID == "" {
		return tenant.ErrUnresolved
	}
	if o.ID == "" {
		o.ID = uuid.NewString()
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO orders (id, tenant_id, order_number, payment_session_id, customer_name, customer_email, customer_phone,
         ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
         subtotal, shipping, total, notes, created_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		o.ID, string(o.TenantID), o.Number, o.PaymentSessionID, o.Customer.Name, o.Customer.Email, o.Customer.Phone,
		o.Shipping.Line1, o.Shipping.Line2, o.Shipping.City, o.Shipping.State, o.Shipping.PostalCode, o.Shipping.Country,
		o.Subtotal, o.ShippingAmount, o.Total, o.Notes, o.CreatedAt,
	)
	if err != nil {
		return mapInsertErr(err)
	}

	for i, it := range o.Items {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO order_items (order_id, position, product_id, name, variant_code, variant_label, image, price, quantity)
             VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			o.ID, i, it.ProductID, it.Name, it.VariantCode, it.VariantLabel, it.Image, it.Price, it.Quantity,
		)
		if err != nil {
			return fmt.Errorf("insert order_item: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

const selectOrder = `SELECT id, tenant_id, order_number, payment_session_id, customer_name, customer_email, customer_phone,
         ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country,
         subtotal, shipping, total, notes, created_at
         FROM orders`

func (r *repo) GetBySessionID(ctx context.Context, tenantID tenant.ID, sessionID string) (*Order, error) {
	return r.getOne(ctx, tenantID, `payment_session_id`, sessionID)
}

func (r *repo) GetByNumber(ctx context.Context, tenantID tenant.ID, number string) (*Order, error) {
	return r.getOne(ctx, tenantID, `order_number`, number)
}

func (r *repo) getOne(ctx context.Context, tenantID tenant.ID, column, value string) (*Order, error) {
	if tenantID == "" {
		return nil, tenant.ErrUnresolved
	}

	o, err := scanOrder(r.db.QueryRowContext(ctx,
		selectOrder+` WHERE tenant_id = $1 AND `+column+` = $2`,
		string(tenantID), value,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("select order: %w", err)
	}
	if o.TenantID != tenantID {
		return nil, ErrNotFound
	}

	if o.Items, err = r.loadItems(ctx, o.ID); err != nil {
		return nil, err
	}
	return &o, nil
}

func (r *repo) ListByTenant(ctx context.Context, tenantID tenant.ID, limit int) ([]Order, error) {
	if tenantID == "" {
		return nil, tenant.ErrUnresolved
	}
	if limit <= 0 || limit > 200 {
		limit = 50
	}

	rows, err := r.db.QueryContext(ctx,
		selectOrder+` WHERE tenant_id = $1 ORDER BY created_at DESC, id LIMIT $2`,
		string(tenantID), limit,
	)
	if err != nil {
		return nil, fmt.Errorf("select orders: %w", err)
	}
	defer rows.Close()

	orders := []Order{}
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("scan order: %w", err)
		}
		orders = append(orders, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}

	for i := range orders {
		if orders[i].Items, err = r.loadItems(ctx, orders[i].ID); err != nil {
			return nil, err
		}
	}
	return orders, nil
}

func (r *repo) loadItems(ctx context.Context, orderID string) ([]Item, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT product_id, name, variant_code, variant_label, image, price, quantity
         FROM order_items WHERE order_id = $1 ORDER BY position`,
		orderID,
	)
	if err != nil {
		return nil, fmt.Errorf("select order_items: %w", err)
	}
	defer rows.Close()

	items := []Item{}
	for rows.Next() {
		var it Item
		if err := rows.Scan(&it.ProductID, &it.Name, &it.VariantCode, &it.VariantLabel, &it.Image, &it.Price, &it.Quantity); err != nil {
			return nil, fmt.Errorf("scan order_item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows: %w", err)
	}
	return items, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanOrder(row scanner) (Order, error) {
	var (
		o        Order
		tenantID string
	)
	err := row.Scan(&o.ID, &tenantID, &o.Number, &o.PaymentSessionID, &o.Customer.Name, &o.Customer.Email, &o.Customer.Phone,
		&o.Shipping.Line1, &o.Shipping.Line2, &o.Shipping.City, &o.Shipping.State, &o.Shipping.PostalCode, &o.Shipping.Country,
		&o.Subtotal, &o.ShippingAmount, &o.Total, &o.Notes, &o.CreatedAt)
	o.TenantID = tenant.ID(tenantID)
	return o, err
}

func mapInsertErr(err error) error {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code == "23505" {
		switch pqErr.Constraint {
		case sessionConstraint:
			return ErrDuplicateSession
		case numberConstraint:
			return ErrDuplicateNumber
		}
	}
	return fmt.Errorf("insert order: %w", err)
}
