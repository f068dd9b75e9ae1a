package diagnostics

import (
	"context"
	"fmt"

	"github.com/paperlyzer/analysis-service/internal/repository"
)

// CheckSelectionUniqueness is the name of the selection uniqueness check.
const CheckSelectionUniqueness = "selection_uniqueness"

// SelectionUniquenessCheck reports (workspace, paper) pairs with more than
// one selection row. The unique constraint prevents new duplicates, so any
// hit predates the workspace retrofit and needs manual resolution.
type SelectionUniquenessCheck struct {
	selections repository.SelectionRepository
}

// NewSelectionUniquenessCheck creates the selection uniqueness check.
func NewSelectionUniquenessCheck(selections repository.SelectionRepository) *SelectionUniquenessCheck {
	return &SelectionUniquenessCheck{selections: selections}
}

// Name implements Check.
func (c *SelectionUniquenessCheck) Name() string { return CheckSelectionUniqueness }

// Run implements Check.
func (c *SelectionUniquenessCheck) Run(ctx context.Context) (*Result, error) {
	duplicates, err := c.selections.ListDuplicates(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicate selections: %w", err)
	}

	result := &Result{}
	for _, dup := range duplicates {
		result.Findings = append(result.Findings, Finding{
			Check:    c.Name(),
			Severity: SeverityError,
			Entity:   fmt.Sprintf("workspace %s / paper %s", dup.WorkspaceID, dup.PaperID),
			Detail:   fmt.Sprintf("%d selection rows for one (workspace, paper) pair", dup.RowCount),
		})
	}

	return result, nil
}
