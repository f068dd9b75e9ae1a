package database

import (
	"context"
	"fmt"
)

// Inspector answers questions about the live schema via catalog queries.
// Migrations use the same probes in SQL (information_schema / to_regclass);
// this type exposes them to Go callers such as the diagnostics suite and
// the migration validate command.
type Inspector struct {
	db DBTX
}

// NewInspector creates an Inspector over the given connection or transaction.
func NewInspector(db DBTX) *Inspector {
	return &Inspector{db: db}
}

// TableExists reports whether a table is present in the public schema.
func (i *Inspector) TableExists(ctx context.Context, table string) (bool, error) {
	var regclass *string
	err := i.db.QueryRow(ctx, "SELECT to_regclass('public.' || $1)::text", table).Scan(&regclass)
	if err != nil {
		return false, fmt.Errorf("failed to check table %s: %w", table, err)
	}
	return regclass != nil, nil
}

// ColumnExists reports whether a column is present on a table.
func (i *Inspector) ColumnExists(ctx context.Context, table, column string) (bool, error) {
	var exists bool
	err := i.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.columns
			WHERE table_schema = 'public' AND table_name = $1 AND column_name = $2
		)`, table, column).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check column %s.%s: %w", table, column, err)
	}
	return exists, nil
}

// ConstraintExists reports whether a named constraint is present on a table.
func (i *Inspector) ConstraintExists(ctx context.Context, table, constraint string) (bool, error) {
	var exists bool
	err := i.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM information_schema.table_constraints
			WHERE table_schema = 'public' AND table_name = $1 AND constraint_name = $2
		)`, table, constraint).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check constraint %s on %s: %w", constraint, table, err)
	}
	return exists, nil
}

// IndexExists reports whether a named index is present in the public schema.
func (i *Inspector) IndexExists(ctx context.Context, index string) (bool, error) {
	var exists bool
	err := i.db.QueryRow(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM pg_indexes
			WHERE schemaname = 'public' AND indexname = $1
		)`, index).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check index %s: %w", index, err)
	}
	return exists, nil
}

// TableColumns returns the ordered column names of a table.
func (i *Inspector) TableColumns(ctx context.Context, table string) ([]string, error) {
	rows, err := i.db.Query(ctx, `
		SELECT column_name FROM information_schema.columns
		WHERE table_schema = 'public' AND table_name = $1
		ORDER BY ordinal_position`, table)
	if err != nil {
		return nil, fmt.Errorf("failed to list columns of %s: %w", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("failed to scan column name: %w", err)
		}
		columns = append(columns, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating columns: %w", err)
	}
	return columns, nil
}
