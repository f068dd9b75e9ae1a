// Package repository provides data access interfaces and PostgreSQL
// implementations for the paper analysis service.
//
// # Repository Interfaces
//
//   - PaperRepository: papers and their processing flags
//   - SentenceRepository: sections and sentences produced by segmentation
//   - SelectionRepository: per-workspace analysis selections
//   - QueueRepository: processing queue entries
//   - WorkspaceRepository: users, workspaces, and chat history
//   - SettingsRepository: system settings rows
//
// # Thread Safety
//
// All implementations are safe for concurrent use. The underlying pgxpool
// handles connection pooling and synchronization.
//
// # Error Handling
//
// Methods return domain-specific errors from the domain package and wrap
// database errors with fmt.Errorf and the %w verb:
//
//   - domain.ErrNotFound: resource does not exist
//   - domain.ErrAlreadyExists: unique constraint violation
//   - domain.ErrInvalidInput: invalid parameters provided
//
// # Transactions
//
// Repositories accept DBTX, so they work against the pool or inside a
// transaction obtained from database.DB.WithTransaction:
//
//	err := db.WithTransaction(ctx, func(tx pgx.Tx) error {
//	    txRepo := repository.NewPgPaperRepository(tx)
//	    return txRepo.MarkSentencesProcessed(ctx, paperID)
//	})
package repository

import (
	"github.com/paperlyzer/analysis-service/internal/database"
)

// DBTX is the database interface supporting both pool and transaction
// contexts. Satisfied by *database.DB, pgxpool.Pool, and pgx.Tx.
type DBTX = database.DBTX

// Postgres error codes the repositories translate into domain errors.
const (
	pgCodeUniqueViolation     = "23505"
	pgCodeForeignKeyViolation = "23503"
)

// Filter pagination defaults and limits.
const (
	defaultFilterLimit = 100
	maxFilterLimit     = 1000
)

// applyPaginationDefaults normalizes limit and offset values for filter
// queries. It clamps limit to [1, maxFilterLimit] and ensures offset >= 0.
func applyPaginationDefaults(limit, offset *int) {
	if *limit <= 0 {
		*limit = defaultFilterLimit
	}
	if *limit > maxFilterLimit {
		*limit = maxFilterLimit
	}
	if *offset < 0 {
		*offset = 0
	}
}
