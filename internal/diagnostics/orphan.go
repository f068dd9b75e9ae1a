package diagnostics

import (
	"context"
	"fmt"

	"github.com/paperlyzer/analysis-service/internal/database"
)

// CheckOrphanScan is the name of the orphan scan check.
const CheckOrphanScan = "orphan_scan"

// orphanQuery counts rows in a child table whose parent row is missing.
// The cascading foreign keys make hits impossible on a healthy database;
// a non-zero count means the constraints were dropped or bypassed.
type orphanQuery struct {
	entity string
	query  string
}

var orphanQueries = []orphanQuery{
	{
		entity: "sentences without section",
		query: `SELECT COUNT(*) FROM sentences s
			LEFT JOIN paper_sections ps ON ps.id = s.section_id
			WHERE ps.id IS NULL`,
	},
	{
		entity: "sentences without paper",
		query: `SELECT COUNT(*) FROM sentences s
			LEFT JOIN papers p ON p.id = s.paper_id
			WHERE p.id IS NULL`,
	},
	{
		entity: "sections without paper",
		query: `SELECT COUNT(*) FROM paper_sections ps
			LEFT JOIN papers p ON p.id = ps.paper_id
			WHERE p.id IS NULL`,
	},
	{
		entity: "selections without paper",
		query: `SELECT COUNT(*) FROM paper_selections sel
			LEFT JOIN papers p ON p.id = sel.paper_id
			WHERE p.id IS NULL`,
	},
	{
		entity: "queue entries without paper",
		query: `SELECT COUNT(*) FROM processing_queue q
			LEFT JOIN papers p ON p.id = q.paper_id
			WHERE p.id IS NULL`,
	},
	{
		entity: "papers without workspace",
		query: `SELECT COUNT(*) FROM papers p
			LEFT JOIN workspaces w ON w.id = p.workspace_id
			WHERE w.id IS NULL`,
	},
}

// OrphanScanCheck verifies referential integrity across the content tables.
type OrphanScanCheck struct {
	db database.DBTX
}

// NewOrphanScanCheck creates the orphan scan check.
func NewOrphanScanCheck(db database.DBTX) *OrphanScanCheck {
	return &OrphanScanCheck{db: db}
}

// Name implements Check.
func (c *OrphanScanCheck) Name() string { return CheckOrphanScan }

// Run implements Check.
func (c *OrphanScanCheck) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, oq := range orphanQueries {
		var count int64
		if err := c.db.QueryRow(ctx, oq.query).Scan(&count); err != nil {
			return nil, fmt.Errorf("orphan query %q failed: %w", oq.entity, err)
		}

		if count > 0 {
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityError,
				Entity:   oq.entity,
				Detail:   fmt.Sprintf("%d orphaned rows", count),
			})
		}
	}

	return result, nil
}
