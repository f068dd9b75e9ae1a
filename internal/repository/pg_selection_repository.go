package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ SelectionRepository = (*PgSelectionRepository)(nil)

// PgSelectionRepository is a PostgreSQL implementation of SelectionRepository.
type PgSelectionRepository struct {
	db DBTX
}

// NewPgSelectionRepository creates a new PostgreSQL selection repository.
func NewPgSelectionRepository(db DBTX) *PgSelectionRepository {
	return &PgSelectionRepository{db: db}
}

// Upsert creates or updates the selection row for (workspace, paper).
func (r *PgSelectionRepository) Upsert(ctx context.Context, workspaceID, paperID uuid.UUID, selected bool) (*domain.PaperSelection, error) {
	if workspaceID == uuid.Nil {
		return nil, domain.NewValidationError("workspace_id", "workspace ID is required")
	}
	if paperID == uuid.Nil {
		return nil, domain.NewValidationError("paper_id", "paper ID is required")
	}

	query := `
		INSERT INTO paper_selections (id, workspace_id, paper_id, is_selected, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (workspace_id, paper_id) DO UPDATE SET
			is_selected = EXCLUDED.is_selected,
			updated_at = NOW()
		RETURNING id, workspace_id, paper_id, is_selected, created_at, updated_at`

	now := time.Now().UTC()
	var sel domain.PaperSelection
	err := r.db.QueryRow(ctx, query, uuid.New(), workspaceID, paperID, selected, now).Scan(
		&sel.ID, &sel.WorkspaceID, &sel.PaperID, &sel.IsSelected, &sel.CreatedAt, &sel.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
			return nil, domain.NewNotFoundError("paper", paperID.String())
		}
		return nil, fmt.Errorf("failed to upsert selection: %w", err)
	}

	return &sel, nil
}

// Get retrieves the selection row for (workspace, paper).
func (r *PgSelectionRepository) Get(ctx context.Context, workspaceID, paperID uuid.UUID) (*domain.PaperSelection, error) {
	query := `
		SELECT id, workspace_id, paper_id, is_selected, created_at, updated_at
		FROM paper_selections
		WHERE workspace_id = $1 AND paper_id = $2`

	var sel domain.PaperSelection
	err := r.db.QueryRow(ctx, query, workspaceID, paperID).Scan(
		&sel.ID, &sel.WorkspaceID, &sel.PaperID, &sel.IsSelected, &sel.CreatedAt, &sel.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("selection", workspaceID.String()+"/"+paperID.String())
		}
		return nil, fmt.Errorf("failed to get selection: %w", err)
	}

	return &sel, nil
}

// ListSelected retrieves the papers currently selected in a workspace.
func (r *PgSelectionRepository) ListSelected(ctx context.Context, workspaceID uuid.UUID) ([]*domain.PaperSelection, error) {
	query := `
		SELECT id, workspace_id, paper_id, is_selected, created_at, updated_at
		FROM paper_selections
		WHERE workspace_id = $1 AND is_selected = true
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, workspaceID)
	if err != nil {
		return nil, fmt.Errorf("failed to list selections: %w", err)
	}
	defer rows.Close()

	var selections []*domain.PaperSelection
	for rows.Next() {
		var sel domain.PaperSelection
		err := rows.Scan(&sel.ID, &sel.WorkspaceID, &sel.PaperID, &sel.IsSelected, &sel.CreatedAt, &sel.UpdatedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan selection: %w", err)
		}
		selections = append(selections, &sel)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating selections: %w", err)
	}

	return selections, nil
}

// Delete removes the selection row for (workspace, paper).
func (r *PgSelectionRepository) Delete(ctx context.Context, workspaceID, paperID uuid.UUID) error {
	result, err := r.db.Exec(ctx,
		`DELETE FROM paper_selections WHERE workspace_id = $1 AND paper_id = $2`,
		workspaceID, paperID)
	if err != nil {
		return fmt.Errorf("failed to delete selection: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("selection", workspaceID.String()+"/"+paperID.String())
	}

	return nil
}

// ListDuplicates finds (workspace, paper) pairs with more than one row.
func (r *PgSelectionRepository) ListDuplicates(ctx context.Context) ([]*SelectionDuplicate, error) {
	query := `
		SELECT workspace_id, paper_id, COUNT(*)
		FROM paper_selections
		GROUP BY workspace_id, paper_id
		HAVING COUNT(*) > 1
		ORDER BY workspace_id, paper_id`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query duplicate selections: %w", err)
	}
	defer rows.Close()

	var duplicates []*SelectionDuplicate
	for rows.Next() {
		var dup SelectionDuplicate
		if err := rows.Scan(&dup.WorkspaceID, &dup.PaperID, &dup.RowCount); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate selection: %w", err)
		}
		duplicates = append(duplicates, &dup)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating duplicate selections: %w", err)
	}

	return duplicates, nil
}
