package diagnostics

import (
	"context"
	"fmt"

	"github.com/paperlyzer/analysis-service/internal/database"
)

// CheckSchemaPresence is the name of the schema presence check.
const CheckSchemaPresence = "schema_presence"

// expectedTable describes the columns and constraints a table must carry
// after the full migration chain.
type expectedTable struct {
	name        string
	columns     []string
	constraints []string
	optional    bool
}

var expectedSchema = []expectedTable{
	{
		name:    "users",
		columns: []string{"id", "external_id", "email", "display_name", "avatar_url"},
	},
	{
		name:    "workspaces",
		columns: []string{"id", "owner_id", "name"},
	},
	{
		name: "papers",
		columns: []string{
			"id", "workspace_id", "filename", "file_hash",
			"parsed", "sentences_processed", "definitions_detected", "source_deleted",
		},
		constraints: []string{"uq_papers_workspace_file_hash"},
	},
	{
		name:    "paper_sections",
		columns: []string{"id", "paper_id", "section_type", "order_index", "section_text"},
	},
	{
		name: "sentences",
		columns: []string{
			"id", "section_id", "paper_id", "sentence_text",
			"classification", "confidence", "detection_status", "retry_count",
		},
	},
	{
		name:        "paper_selections",
		columns:     []string{"id", "workspace_id", "paper_id", "is_selected"},
		constraints: []string{"uq_paper_selections_workspace_paper"},
	},
	{
		name: "processing_queue",
		columns: []string{
			"id", "paper_id", "workspace_id", "stage", "status",
			"priority", "retry_count", "max_retries",
		},
	},
	{
		name:    "chat_histories",
		columns: []string{"id", "workspace_id", "role", "content"},
	},
	{
		name:    "system_settings",
		columns: []string{"id", "setting_key", "setting_value"},
	},
	// Created by the web application when its task tracking is enabled;
	// only checked for column shape when present.
	{name: "processing_tasks", columns: []string{"workspace_id"}, optional: true},
	{name: "processing_errors", columns: []string{"workspace_id"}, optional: true},
	{name: "processing_events", columns: []string{"workspace_id"}, optional: true},
}

// SchemaPresenceCheck verifies the expected tables, columns, and
// constraints exist in the live schema.
type SchemaPresenceCheck struct {
	inspector *database.Inspector
}

// NewSchemaPresenceCheck creates the schema presence check.
func NewSchemaPresenceCheck(inspector *database.Inspector) *SchemaPresenceCheck {
	return &SchemaPresenceCheck{inspector: inspector}
}

// Name implements Check.
func (c *SchemaPresenceCheck) Name() string { return CheckSchemaPresence }

// Run implements Check.
func (c *SchemaPresenceCheck) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	for _, table := range expectedSchema {
		exists, err := c.inspector.TableExists(ctx, table.name)
		if err != nil {
			return nil, fmt.Errorf("failed to check table %s: %w", table.name, err)
		}

		if !exists {
			if table.optional {
				continue
			}
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityError,
				Entity:   fmt.Sprintf("table %s", table.name),
				Detail:   "expected table is missing",
			})
			continue
		}

		for _, column := range table.columns {
			ok, err := c.inspector.ColumnExists(ctx, table.name, column)
			if err != nil {
				return nil, fmt.Errorf("failed to check column %s.%s: %w", table.name, column, err)
			}
			if !ok {
				result.Findings = append(result.Findings, Finding{
					Check:    c.Name(),
					Severity: SeverityError,
					Entity:   fmt.Sprintf("column %s.%s", table.name, column),
					Detail:   "expected column is missing",
				})
			}
		}

		for _, constraint := range table.constraints {
			ok, err := c.inspector.ConstraintExists(ctx, table.name, constraint)
			if err != nil {
				return nil, fmt.Errorf("failed to check constraint %s on %s: %w", constraint, table.name, err)
			}
			if !ok {
				result.Findings = append(result.Findings, Finding{
					Check:    c.Name(),
					Severity: SeverityError,
					Entity:   fmt.Sprintf("constraint %s on %s", constraint, table.name),
					Detail:   "expected constraint is missing",
				})
			}
		}
	}

	return result, nil
}
