package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// PaperRepository handles paper persistence and the pipeline status flags.
type PaperRepository interface {
	// Create inserts a new paper. Duplicate content within a workspace is
	// rejected by the (workspace_id, file_hash) unique constraint.
	// Returns domain.ErrAlreadyExists on a duplicate, domain.ErrNotFound
	// if the workspace does not exist.
	Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error)

	// GetByID retrieves a paper by its UUID.
	// Returns domain.ErrNotFound if no matching paper exists.
	GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error)

	// GetByWorkspaceAndHash retrieves a paper by its tenant-scoped content
	// identity. Returns domain.ErrNotFound if no matching paper exists.
	GetByWorkspaceAndHash(ctx context.Context, workspaceID uuid.UUID, fileHash string) (*domain.Paper, error)

	// List retrieves papers matching the filter criteria.
	// Returns the matching papers and total count for pagination.
	List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error)

	// MarkParsed records successful GROBID parsing and stores the extracted
	// raw text. Returns domain.ErrNotFound if the paper does not exist.
	MarkParsed(ctx context.Context, id uuid.UUID, rawText string) error

	// MarkSentencesProcessed sets the sentences_processed flag.
	// Returns domain.ErrNotFound if the paper does not exist.
	MarkSentencesProcessed(ctx context.Context, id uuid.UUID) error

	// MarkDefinitionsDetected sets the definitions_detected flag.
	// Returns domain.ErrNotFound if the paper does not exist.
	MarkDefinitionsDetected(ctx context.Context, id uuid.UUID) error

	// MarkSourceDeleted records that the uploaded source file was removed
	// after processing. Returns domain.ErrNotFound if the paper does not exist.
	MarkSourceDeleted(ctx context.Context, id uuid.UUID) error

	// SetError stores a pipeline error message on the paper.
	// Returns domain.ErrNotFound if the paper does not exist.
	SetError(ctx context.Context, id uuid.UUID, message string) error

	// Delete removes a paper. Sections, sentences, selections, and queue
	// entries cascade. Returns domain.ErrNotFound if the paper does not exist.
	Delete(ctx context.Context, id uuid.UUID) error

	// ListUnflaggedWithSentences finds papers whose sentences_processed flag
	// is false even though sentence rows exist. These are the drift records
	// the diagnostics repair.
	ListUnflaggedWithSentences(ctx context.Context) ([]*FlagDriftRecord, error)

	// ListFlaggedWithoutSentences finds papers whose sentences_processed flag
	// is true but which have no sentence rows. Reported, never repaired.
	ListFlaggedWithoutSentences(ctx context.Context) ([]*FlagDriftRecord, error)
}

// FlagDriftRecord describes a paper whose sentences_processed flag
// disagrees with its actual sentence rows.
type FlagDriftRecord struct {
	PaperID       uuid.UUID
	WorkspaceID   uuid.UUID
	Filename      string
	SentenceCount int64
}

// PaperFilter specifies criteria for listing papers.
type PaperFilter struct {
	// WorkspaceID restricts results to a single workspace (optional).
	WorkspaceID *uuid.UUID

	// Parsed filters by the GROBID parsing flag (optional).
	Parsed *bool

	// SentencesProcessed filters by the segmentation flag (optional).
	SentencesProcessed *bool

	// DefinitionsDetected filters by the classification flag (optional).
	DefinitionsDetected *bool

	// Limit specifies maximum number of results (default: 100, max: 1000).
	Limit int

	// Offset specifies the starting position for pagination.
	Offset int
}

// Validate checks if the filter has valid values and sets defaults.
func (f *PaperFilter) Validate() error {
	applyPaginationDefaults(&f.Limit, &f.Offset)
	return nil
}
