package domain

import (
	"encoding/json"
	"time"
)

const CurrentEventSchemaVersion = 1

const (
	OutboxStatusPending    = "pending"
	OutboxStatusDispatched = "dispatched"
	OutboxStatusDead       = "dead"
)

const (
	EventCollectionCreated      = "collection.created"
	EventCollectionUpdated      = "collection.updated"
	EventCollectionDeleted      = "collection.deleted"
	EventCollectionFieldRenamed = "collection.field_renamed"
	EventCollectionFieldDeleted = "collection.field_deleted"
)

type MutationMetadata struct {
	Actor         string
	Source        string
	RequestID     string
	CorrelationID string
	OccurredAt    time.Time
}

func (m MutationMetadata) Normalize() MutationMetadata {
	if m.Actor == "" {
		m.Actor = "api"
	}
	if m.Source == "" {
		m.Source = "api"
	}
	if m.OccurredAt.IsZero() {
		m.OccurredAt = time.Now().UTC()
	}
	return m
}

type EventEnvelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	SchemaVersion int             `json:"schema_version"`
	AggregateType string          `json:"aggregate_type"`
	AggregateID   string          `json:"aggregate_id"`
	OccurredAt    time.Time       `json:"occurred_at"`
	RequestID     string          `json:"request_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Actor         string          `json:"actor"`
	Source        string          `json:"source"`
	Payload       json.RawMessage `json:"payload"`
}

type OutboxEvent struct {
	ID            int64
	EventID       string
	Topic         string
	PayloadJSON   json.RawMessage
	Status        string
	Attempts      int
	NextAttemptAt time.Time
	LastError     string
	CreatedAt     time.Time
	DispatchedAt  *time.Time
}
