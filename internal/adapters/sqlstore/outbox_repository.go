package sqlstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/atvirokodosprendimai/pcm/internal/adapters/sqlstore/gormdb"
	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
	"github.com/atvirokodosprendimai/pcm/internal/core/ports"
)

type outboxEventModel struct {
	ID            int64      `gorm:"column:id;primaryKey;autoIncrement"`
	EventID       string     `gorm:"column:event_id;not null"`
	Topic         string     `gorm:"column:topic;not null"`
	PayloadJSON   string     `gorm:"column:payload_json;not null"`
	Status        string     `gorm:"column:status;not null"`
	Attempts      int        `gorm:"column:attempts;not null"`
	NextAttemptAt time.Time  `gorm:"column:next_attempt_at;not null"`
	LastError     string     `gorm:"column:last_error;not null"`
	CreatedAt     time.Time  `gorm:"column:created_at;not null"`
	DispatchedAt  *time.Time `gorm:"column:dispatched_at"`
}

func (outboxEventModel) TableName() string {
	return "pcm_outbox_event"
}

// outboxWriter stages events in the caller's write transaction.
type outboxWriter struct {
	tx *gorm.DB
}

var _ ports.OutboxWriter = (*outboxWriter)(nil)

func (w *outboxWriter) Enqueue(ctx context.Context, topic string, envelope domain.EventEnvelope) error {
	payload, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal envelope: %w", err)
	}
	now := time.Now().UTC()
	model := outboxEventModel{
		EventID:       envelope.EventID,
		Topic:         topic,
		PayloadJSON:   string(payload),
		Status:        domain.OutboxStatusPending,
		NextAttemptAt: now,
		CreatedAt:     now,
	}
	if err := w.tx.WithContext(ctx).Create(&model).Error; err != nil {
		return fmt.Errorf("insert outbox event: %w", err)
	}
	return nil
}

type OutboxRepository struct {
	db *gormdb.DB
}

var _ ports.OutboxRepository = (*OutboxRepository)(nil)

func NewOutboxRepository(db *gormdb.DB) *OutboxRepository {
	return &OutboxRepository{db: db}
}

func (r *OutboxRepository) FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var rows []outboxEventModel
	now := time.Now().UTC()
	err := r.db.ReadTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Where("status = ? AND next_attempt_at <= ?", domain.OutboxStatusPending, now).
			Order("id ASC").
			Limit(limit).
			Find(&rows).Error
	})
	if err != nil {
		return nil, fmt.Errorf("fetch pending outbox: %w", err)
	}

	result := make([]domain.OutboxEvent, 0, len(rows))
	for _, row := range rows {
		result = append(result, outboxToDomain(row))
	}
	return result, nil
}

func (r *OutboxRepository) MarkDispatched(ctx context.Context, id int64) error {
	now := time.Now().UTC()
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.OutboxStatusDispatched, "dispatched_at": &now, "last_error": ""}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dispatched: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error {
	parsed, err := time.Parse(time.RFC3339Nano, nextAttemptAt)
	if err != nil {
		return fmt.Errorf("parse next attempt: %w", err)
	}
	err = r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"attempts": attempts, "next_attempt_at": parsed.UTC(), "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox failed: %w", err)
	}
	return nil
}

func (r *OutboxRepository) MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error {
	err := r.db.WriteTX(ctx, func(tx *gormdb.Tx) error {
		return tx.Model(&outboxEventModel{}).
			Where("id = ?", id).
			Updates(map[string]any{"status": domain.OutboxStatusDead, "attempts": attempts, "last_error": errMsg}).Error
	})
	if err != nil {
		return fmt.Errorf("mark outbox dead: %w", err)
	}
	return nil
}

func outboxToDomain(row outboxEventModel) domain.OutboxEvent {
	return domain.OutboxEvent{
		ID:            row.ID,
		EventID:       row.EventID,
		Topic:         row.Topic,
		PayloadJSON:   json.RawMessage(row.PayloadJSON),
		Status:        row.Status,
		Attempts:      row.Attempts,
		NextAttemptAt: row.NextAttemptAt,
		LastError:     row.LastError,
		CreatedAt:     row.CreatedAt,
		DispatchedAt:  row.DispatchedAt,
	}
}
