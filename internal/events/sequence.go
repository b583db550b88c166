package events

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/andreasstove999/ecommerce-system/storefront-service-go/internal/tenant"
)

// Sequencer hands out increasing event sequence numbers per tenant, so
// consumers can order one shop's events and spot gaps.
type Sequencer interface {
	Next(ctx context.Context, tenantID tenant.ID) (int64, error)
}

type SQLSequencer struct {
	db *sql.DB
}

func NewSQLSequencer(db *sql.DB) *SQLSequencer {
	return &SQLSequencer{db: db}
}

// The upsert is a single statement, so the row lock serializes concurrent
// publishers for the same tenant.
const nextSequenceSQL = `
INSERT INTO event_sequences (partition_key, last_sequence, updated_at)
VALUES ($1, 1, NOW())
ON CONFLICT (partition_key) DO UPDATE
SET last_sequence = event_sequences.last_sequence + 1,
    updated_at = NOW()
RETURNING last_sequence
`

func (s *SQLSequencer) Next(ctx context.Context, tenantID tenant.ID) (int64, error) {
	if tenantID == "" {
		return 0, tenant.ErrUnresolved
	}

	var next int64
	if err := s.db.QueryRowContext(ctx, nextSequenceSQL, tenantPartition(string(tenantID))).Scan(&next); err != nil {
		return 0, fmt.Errorf("increment sequence: %w", err)
	}
	return next, nil
}
