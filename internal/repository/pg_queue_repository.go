package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ QueueRepository = (*PgQueueRepository)(nil)

// PgQueueRepository is a PostgreSQL implementation of QueueRepository.
type PgQueueRepository struct {
	db DBTX
}

// NewPgQueueRepository creates a new PostgreSQL queue repository.
func NewPgQueueRepository(db DBTX) *PgQueueRepository {
	return &PgQueueRepository{db: db}
}

const queueColumns = `id, paper_id, workspace_id, stage, status, priority,
	retry_count, max_retries, started_at, completed_at, details,
	created_at, updated_at`

// Enqueue inserts a pending queue entry for a paper and stage.
func (r *PgQueueRepository) Enqueue(ctx context.Context, entry *domain.QueueEntry) (*domain.QueueEntry, error) {
	if entry == nil {
		return nil, domain.NewValidationError("entry", "entry cannot be nil")
	}
	if entry.PaperID == uuid.Nil {
		return nil, domain.NewValidationError("paper_id", "paper ID is required")
	}
	if entry.WorkspaceID == uuid.Nil {
		return nil, domain.NewValidationError("workspace_id", "workspace ID is required")
	}
	if !entry.Stage.IsValid() {
		return nil, domain.NewValidationError("stage", fmt.Sprintf("unknown stage %q", entry.Stage))
	}

	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.Status == "" {
		entry.Status = domain.QueuePending
	}
	if entry.MaxRetries == 0 {
		entry.MaxRetries = domain.DefaultMaxRetries
	}

	var detailsJSON []byte
	var err error
	if entry.Details != nil {
		detailsJSON, err = json.Marshal(entry.Details)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal details: %w", err)
		}
	}

	query := `
		INSERT INTO processing_queue (
			id, paper_id, workspace_id, stage, status, priority,
			retry_count, max_retries, details, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING id, created_at, updated_at`

	now := time.Now().UTC()
	err = r.db.QueryRow(ctx, query,
		entry.ID,
		entry.PaperID,
		entry.WorkspaceID,
		entry.Stage,
		entry.Status,
		entry.Priority,
		entry.RetryCount,
		entry.MaxRetries,
		detailsJSON,
		now,
	).Scan(&entry.ID, &entry.CreatedAt, &entry.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
			return nil, domain.NewNotFoundError("paper", entry.PaperID.String())
		}
		return nil, fmt.Errorf("failed to enqueue entry: %w", err)
	}

	return entry, nil
}

// GetByID retrieves a queue entry.
func (r *PgQueueRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.QueueEntry, error) {
	query := fmt.Sprintf(`SELECT %s FROM processing_queue WHERE id = $1`, queueColumns)

	row := r.db.QueryRow(ctx, query, id)
	entry, err := scanQueueEntry(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("queue entry", id.String())
		}
		return nil, fmt.Errorf("failed to get queue entry: %w", err)
	}

	return entry, nil
}

// ListByStatus retrieves entries with the given status.
func (r *PgQueueRepository) ListByStatus(ctx context.Context, status domain.QueueStatus, limit int) ([]*domain.QueueEntry, error) {
	if !status.IsValid() {
		return nil, domain.NewValidationError("status", fmt.Sprintf("unknown status %q", status))
	}
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM processing_queue
		WHERE status = $1
		ORDER BY priority DESC, created_at
		LIMIT $2`, queueColumns)

	rows, err := r.db.Query(ctx, query, status, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list queue entries: %w", err)
	}
	defer rows.Close()

	return collectQueueEntries(rows)
}

// MarkProcessing transitions a pending entry to processing.
func (r *PgQueueRepository) MarkProcessing(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE processing_queue
		SET status = $1, started_at = $2, updated_at = $2
		WHERE id = $3 AND status = $4`

	result, err := r.db.Exec(ctx, query, domain.QueueProcessing, time.Now().UTC(), id, domain.QueuePending)
	if err != nil {
		return fmt.Errorf("failed to mark entry processing: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("pending queue entry", id.String())
	}

	return nil
}

// MarkCompleted transitions an entry to completed.
func (r *PgQueueRepository) MarkCompleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE processing_queue
		SET status = $1, completed_at = $2, updated_at = $2
		WHERE id = $3`

	result, err := r.db.Exec(ctx, query, domain.QueueCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark entry completed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("queue entry", id.String())
	}

	return nil
}

// MarkFailed transitions an entry to failed and increments retry_count.
func (r *PgQueueRepository) MarkFailed(ctx context.Context, id uuid.UUID, detail string) error {
	query := `
		UPDATE processing_queue
		SET status = $1, retry_count = retry_count + 1, completed_at = $2,
			details = COALESCE(details, '{}'::jsonb) || jsonb_build_object('last_error', $3::text),
			updated_at = $2
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, domain.QueueFailed, time.Now().UTC(), detail, id)
	if err != nil {
		return fmt.Errorf("failed to mark entry failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("queue entry", id.String())
	}

	return nil
}

// ListStuck finds entries in processing longer than threshold.
func (r *PgQueueRepository) ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.QueueEntry, error) {
	if threshold <= 0 {
		return nil, domain.NewValidationError("threshold", "threshold must be positive")
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM processing_queue
		WHERE status = $1 AND started_at IS NOT NULL AND started_at < $2
		ORDER BY started_at`, queueColumns)

	cutoff := time.Now().UTC().Add(-threshold)
	rows, err := r.db.Query(ctx, query, domain.QueueProcessing, cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck entries: %w", err)
	}
	defer rows.Close()

	return collectQueueEntries(rows)
}

// ListRetryExhausted finds entries whose retry budget is spent.
func (r *PgQueueRepository) ListRetryExhausted(ctx context.Context) ([]*domain.QueueEntry, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM processing_queue
		WHERE retry_count >= max_retries AND status != $1
		ORDER BY updated_at`, queueColumns)

	rows, err := r.db.Query(ctx, query, domain.QueueCompleted)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry-exhausted entries: %w", err)
	}
	defer rows.Close()

	return collectQueueEntries(rows)
}

// queueScanDest holds the destination pointers for scanning a QueueEntry row.
type queueScanDest struct {
	entry       domain.QueueEntry
	detailsJSON []byte
}

func (d *queueScanDest) destinations() []interface{} {
	return []interface{}{
		&d.entry.ID, &d.entry.PaperID, &d.entry.WorkspaceID, &d.entry.Stage,
		&d.entry.Status, &d.entry.Priority, &d.entry.RetryCount, &d.entry.MaxRetries,
		&d.entry.StartedAt, &d.entry.CompletedAt, &d.detailsJSON,
		&d.entry.CreatedAt, &d.entry.UpdatedAt,
	}
}

func (d *queueScanDest) finalize() (*domain.QueueEntry, error) {
	if len(d.detailsJSON) > 0 {
		if err := json.Unmarshal(d.detailsJSON, &d.entry.Details); err != nil {
			return nil, fmt.Errorf("failed to unmarshal details: %w", err)
		}
	}
	return &d.entry, nil
}

func scanQueueEntry(row pgx.Row) (*domain.QueueEntry, error) {
	var dest queueScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

func collectQueueEntries(rows pgx.Rows) ([]*domain.QueueEntry, error) {
	var entries []*domain.QueueEntry
	for rows.Next() {
		var dest queueScanDest
		if err := rows.Scan(dest.destinations()...); err != nil {
			return nil, fmt.Errorf("failed to scan queue entry: %w", err)
		}
		entry, err := dest.finalize()
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating queue entries: %w", err)
	}

	return entries, nil
}
