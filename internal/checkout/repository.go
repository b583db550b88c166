package checkout

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// SessionRepository stores checkout sessions. Every lookup is scoped to the
// tenant; a session id from another shop is simply not found.
type SessionRepository interface {
	Create(ctx context.Context, s *Session) error
	Get(ctx context.Context, tenantID tenant.ID, sessionID string) (*Session, error)
	// UpdateStatus moves a session from one status to another. It returns
	// ErrStaleSessionVersion when the stored status is no longer from.
	UpdateStatus(ctx context.Context, tenantID tenant.ID, sessionID string, from, to Status) error
}

type sqlSessionRepo struct {
	db *sql.DB
}

func NewSessionRepository(db *sql.DB) SessionRepository {
	return &sqlSessionRepo{db: db}
}

func (r *sqlSessionRepo) Create(ctx context.Context, s *Session) error {
	if s.TenantID == "" {
		return tenant.ErrUnresolved
	}
	snapshot, err := json.Marshal(s.Snapshot)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}

	_, err = r.db.ExecContext(ctx,
		`INSERT INTO checkout_sessions (tenant_id, session_id, status, cart_id, amount_minor, currency, success_url, cancel_url, snapshot, created_at, updated_at)
         VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`,
		string(s.TenantID), s.ID, string(s.Status), s.CartID, s.AmountMinor, s.Currency,
		s.SuccessURL, s.CancelURL, snapshot, s.CreatedAt, s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert checkout_session: %w", err)
	}
	return nil
}

func (r *sqlSessionRepo) Get(ctx context.Context, tenantID tenant.ID, sessionID string) (*Session, error) {
	if tenantID == "" {
		return nil, tenant.ErrUnresolved
	}

	var (
		s        Session
		tid      string
		status   string
		snapshot []byte
	)
	err := r.db.QueryRowContext(ctx,
		`SELECT tenant_id, session_id, status, cart_id, amount_minor, currency, success_url, cancel_url, snapshot, created_at, updated_at
         FROM checkout_sessions
         WHERE tenant_id = $1 AND session_id = $2`,
		string(tenantID), sessionID,
	).Scan(&tid, &s.ID, &status, &s.CartID, &s.AmountMinor, &s.Currency, &s.SuccessURL, &s.CancelURL, &snapshot, &s.CreatedAt, &s.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrSessionNotFound
		}
		return nil, fmt.Errorf("select checkout_session: %w", err)
	}
	if tenant.ID(tid) != tenantID {
		return nil, ErrSessionNotFound
	}
	s.TenantID = tenant.ID(tid)
	s.Status = Status(status)

	if err := json.Unmarshal(snapshot, &s.Snapshot); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	return &s, nil
}

func (r *sqlSessionRepo) UpdateStatus(ctx context.Context, tenantID tenant.ID, sessionID string, from, to Status) error {
	if tenantID == "" {
		return tenant.ErrUnresolved
	}
	if !CanTransitionTo(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}

	res, err := r.db.ExecContext(ctx,
		`UPDATE checkout_sessions SET status = $4, updated_at = now()
         WHERE tenant_id = $1 AND session_id = $2 AND status = $3`,
		string(tenantID), sessionID, string(from), string(to),
	)
	if err != nil {
		return fmt.Errorf("update checkout_session: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrStaleSessionVersion
	}
	return nil
}
