package repository

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// QueueRepository handles processing queue entries. Retry counters are
// stored for the external pipeline; this layer never re-runs work itself.
type QueueRepository interface {
	// Enqueue inserts a pending queue entry for a paper and stage.
	// Returns domain.ErrNotFound if the paper or workspace does not exist.
	Enqueue(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error)

	// GetByID retrieves a queue entry.
	// Returns domain.ErrNotFound if no matching entry exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error)

	// ListByStatus retrieves entries with the given status, highest
	// priority first, then oldest first, up to limit.
	ListByStatus(ctx context.Context, status domain.QueueStatus, limit int) ([]*domain.QueueEntry, error)

	// MarkProcessing transitions a pending entry to processing and stamps
	// started_at. Returns domain.ErrNotFound if the entry does not exist or
	// is not pending.
	MarkProcessing(ctx context.Context, id uuid.UUID) error

	// MarkCompleted transitions an entry to completed and stamps
	// completed_at. Returns domain.ErrNotFound if the entry does not exist.
	MarkCompleted(ctx context.Context, id uuid.UUID) error

	// MarkFailed transitions an entry to failed, increments retry_count,
	// and records the failure detail.
	// Returns domain.ErrNotFound if the entry does not exist.
	MarkFailed(ctx context.Context, id uuid.UUID, detail string) error

	// ListStuck finds entries that have been in processing longer than
	// threshold. The diagnostics report these.
	ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.QueueEntry, error)

	// ListRetryExhausted finds entries whose retry_count has reached
	// max_retries without completing.
	ListRetryExhausted(ctx context.Context) ([]*domain.QueueEntry, error)
}
