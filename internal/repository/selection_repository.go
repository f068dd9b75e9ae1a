package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// SelectionRepository handles the per-workspace analysis selection set.
// At most one selection row exists per (workspace, paper); the repository
// exposes an upsert rather than separate create/update operations.
type SelectionRepository interface {
	// Upsert creates or updates the selection row for (workspace, paper).
	// Returns domain.ErrNotFound if the workspace or paper does not exist.
	Upsert(ctx context.Context, workspaceID, paperID uuid.UUID, selected bool) (*domain.PaperSelection, error)

	// Get retrieves the selection row for (workspace, paper).
	// Returns domain.ErrNotFound if none exists.
	Get(ctx context.Context, workspaceID, paperID uuid.UUID) (*domain.PaperSelection, error)

	// ListSelected retrieves the papers currently selected in a workspace.
	ListSelected(ctx context.Context, workspaceID uuid.UUID) ([]*domain.PaperSelection, error)

	// Delete removes the selection row for (workspace, paper).
	// Returns domain.ErrNotFound if none exists.
	Delete(ctx context.Context, workspaceID, paperID uuid.UUID) error

	// ListDuplicates finds (workspace, paper) pairs with more than one
	// selection row. Such rows can only predate the uniqueness constraint;
	// the diagnostics report them.
	ListDuplicates(ctx context.Context) ([]*SelectionDuplicate, error)
}

// SelectionDuplicate describes a (workspace, paper) pair holding more than
// one selection row.
type SelectionDuplicate struct {
	WorkspaceID uuid.UUID
	PaperID     uuid.UUID
	RowCount    int64
}
