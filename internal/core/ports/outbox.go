package ports

import (
	"context"

	"github.com/atvirokodosprendimai/pcm/internal/core/domain"
)

// OutboxWriter stages an event inside the current write transaction.
type OutboxWriter interface {
	Enqueue(ctx context.Context, topic string, envelope domain.EventEnvelope) error
}

type OutboxRepository interface {
	FetchPending(ctx context.Context, limit int) ([]domain.OutboxEvent, error)
	MarkDispatched(ctx context.Context, id int64) error
	MarkFailed(ctx context.Context, id int64, attempts int, nextAttemptAt string, errMsg string) error
	MarkDead(ctx context.Context, id int64, attempts int, errMsg string) error
}
