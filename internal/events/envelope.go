package events

import (
	"fmt"
	"time"
)

// EventEnvelope is the common envelope for every event this service emits.
type EventEnvelope[T any] struct {
	EventName     string    `json:"eventName"`
	EventVersion  int       `json:"eventVersion"`
	EventID       string    `json:"eventId"`
	CorrelationID string    `json:"correlationId,omitempty"`
	CausationID   string    `json:"causationId,omitempty"`
	Producer      string    `json:"producer"`
	TenantID      string    `json:"tenantId"`
	PartitionKey  string    `json:"partitionKey"`
	Sequence      int64     `json:"sequence"`
	OccurredAt    time.Time `json:"occurredAt"`
	Schema        string    `json:"schema"`
	Payload       T         `json:"payload"`
}

// EventMeta carries correlation/causation context for emitted events.
type EventMeta struct {
	CorrelationID string
	CausationID   string
}

// Validate ensures the envelope contains the expected event identity.
func (e EventEnvelope[T]) Validate(expectedName string, expectedVersion int) error {
	if e.EventName != expectedName {
		return fmt.Errorf("unexpected eventName: %s", e.EventName)
	}
	if e.EventVersion != expectedVersion {
		return fmt.Errorf("unexpected eventVersion: %d", e.EventVersion)
	}
	if e.TenantID == "" {
		return fmt.Errorf("missing tenantId")
	}
	if e.PartitionKey == "" {
		return fmt.Errorf("missing partitionKey")
	}
	if e.Sequence < 1 {
		return fmt.Errorf("invalid sequence: %d", e.Sequence)
	}
	return nil
}
