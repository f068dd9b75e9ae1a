package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ PaperRepository = (*PgPaperRepository)(nil)

// PgPaperRepository is a PostgreSQL implementation of PaperRepository.
type PgPaperRepository struct {
	db DBTX
}

// NewPgPaperRepository creates a new PostgreSQL paper repository.
func NewPgPaperRepository(db DBTX) *PgPaperRepository {
	return &PgPaperRepository{db: db}
}

const paperColumns = `id, workspace_id, filename, file_hash,
	parsed, sentences_processed, definitions_detected, source_deleted,
	raw_text, paper_metadata, error_message, created_at, updated_at`

// Create inserts a new paper.
func (r *PgPaperRepository) Create(ctx context.Context, paper *domain.Paper) (*domain.Paper, error) {
	if paper == nil {
		return nil, domain.NewValidationError("paper", "paper cannot be nil")
	}
	if paper.WorkspaceID == uuid.Nil {
		return nil, domain.NewValidationError("workspace_id", "workspace ID is required")
	}
	if paper.Filename == "" {
		return nil, domain.NewValidationError("filename", "filename is required")
	}
	if paper.FileHash == "" {
		return nil, domain.NewValidationError("file_hash", "file hash is required")
	}

	var metadataJSON []byte
	var err error
	if paper.Metadata != nil {
		metadataJSON, err = json.Marshal(paper.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	if paper.ID == uuid.Nil {
		paper.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO papers (
			id, workspace_id, filename, file_hash,
			parsed, sentences_processed, definitions_detected, source_deleted,
			raw_text, paper_metadata, error_message, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $12
		)
		RETURNING id, created_at, updated_at`

	err = r.db.QueryRow(ctx, query,
		paper.ID,
		paper.WorkspaceID,
		paper.Filename,
		paper.FileHash,
		paper.Parsed,
		paper.SentencesProcessed,
		paper.DefinitionsDetected,
		paper.SourceDeleted,
		paper.RawText,
		metadataJSON,
		paper.ErrorMessage,
		now,
	).Scan(&paper.ID, &paper.CreatedAt, &paper.UpdatedAt)

	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) {
			if pgErr.Code == pgCodeUniqueViolation {
				return nil, domain.NewAlreadyExistsError("paper", paper.Fingerprint())
			}
			if pgErr.Code == pgCodeForeignKeyViolation {
				return nil, domain.NewNotFoundError("workspace", paper.WorkspaceID.String())
			}
		}
		return nil, fmt.Errorf("failed to create paper: %w", err)
	}

	return paper, nil
}

// GetByID retrieves a paper by its UUID.
func (r *PgPaperRepository) GetByID(ctx context.Context, id uuid.UUID) (*domain.Paper, error) {
	query := fmt.Sprintf(`SELECT %s FROM papers WHERE id = $1`, paperColumns)

	row := r.db.QueryRow(ctx, query, id)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", id.String())
		}
		return nil, fmt.Errorf("failed to get paper by ID: %w", err)
	}

	return paper, nil
}

// GetByWorkspaceAndHash retrieves a paper by its tenant-scoped content identity.
func (r *PgPaperRepository) GetByWorkspaceAndHash(ctx context.Context, workspaceID uuid.UUID, fileHash string) (*domain.Paper, error) {
	if fileHash == "" {
		return nil, domain.NewValidationError("file_hash", "file hash is required")
	}

	query := fmt.Sprintf(`SELECT %s FROM papers WHERE workspace_id = $1 AND file_hash = $2`, paperColumns)

	row := r.db.QueryRow(ctx, query, workspaceID, fileHash)
	paper, err := scanPaper(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("paper", workspaceID.String()+"/"+fileHash)
		}
		return nil, fmt.Errorf("failed to get paper by workspace and hash: %w", err)
	}

	return paper, nil
}

// List retrieves papers matching the filter criteria.
func (r *PgPaperRepository) List(ctx context.Context, filter PaperFilter) ([]*domain.Paper, int64, error) {
	if err := filter.Validate(); err != nil {
		return nil, 0, err
	}

	var conditions []string
	var args []interface{}
	argIndex := 1

	if filter.WorkspaceID != nil {
		conditions = append(conditions, fmt.Sprintf("workspace_id = $%d", argIndex))
		args = append(args, *filter.WorkspaceID)
		argIndex++
	}

	if filter.Parsed != nil {
		conditions = append(conditions, fmt.Sprintf("parsed = $%d", argIndex))
		args = append(args, *filter.Parsed)
		argIndex++
	}

	if filter.SentencesProcessed != nil {
		conditions = append(conditions, fmt.Sprintf("sentences_processed = $%d", argIndex))
		args = append(args, *filter.SentencesProcessed)
		argIndex++
	}

	if filter.DefinitionsDetected != nil {
		conditions = append(conditions, fmt.Sprintf("definitions_detected = $%d", argIndex))
		args = append(args, *filter.DefinitionsDetected)
		argIndex++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM papers %s", whereClause)
	var totalCount int64
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&totalCount); err != nil {
		return nil, 0, fmt.Errorf("failed to count papers: %w", err)
	}

	selectQuery := fmt.Sprintf(`
		SELECT %s
		FROM papers
		%s
		ORDER BY created_at DESC
		LIMIT $%d OFFSET $%d`,
		paperColumns, whereClause, argIndex, argIndex+1)

	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.Query(ctx, selectQuery, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list papers: %w", err)
	}
	defer rows.Close()

	papers := make([]*domain.Paper, 0, filter.Limit)
	for rows.Next() {
		paper, err := scanPaperFromRows(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan paper: %w", err)
		}
		papers = append(papers, paper)
	}

	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("error iterating papers: %w", err)
	}

	return papers, totalCount, nil
}

// MarkParsed records successful GROBID parsing and stores the raw text.
func (r *PgPaperRepository) MarkParsed(ctx context.Context, id uuid.UUID, rawText string) error {
	query := `
		UPDATE papers
		SET parsed = true, raw_text = $1, error_message = '', updated_at = $2
		WHERE id = $3`

	return r.execPaperUpdate(ctx, id, "failed to mark parsed", query, rawText, time.Now().UTC(), id)
}

// MarkSentencesProcessed sets the sentences_processed flag.
func (r *PgPaperRepository) MarkSentencesProcessed(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE papers
		SET sentences_processed = true, updated_at = $1
		WHERE id = $2`

	return r.execPaperUpdate(ctx, id, "failed to mark sentences processed", query, time.Now().UTC(), id)
}

// MarkDefinitionsDetected sets the definitions_detected flag.
func (r *PgPaperRepository) MarkDefinitionsDetected(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE papers
		SET definitions_detected = true, updated_at = $1
		WHERE id = $2`

	return r.execPaperUpdate(ctx, id, "failed to mark definitions detected", query, time.Now().UTC(), id)
}

// MarkSourceDeleted records removal of the uploaded source file.
func (r *PgPaperRepository) MarkSourceDeleted(ctx context.Context, id uuid.UUID) error {
	query := `
		UPDATE papers
		SET source_deleted = true, updated_at = $1
		WHERE id = $2`

	return r.execPaperUpdate(ctx, id, "failed to mark source deleted", query, time.Now().UTC(), id)
}

// SetError stores a pipeline error message on the paper.
func (r *PgPaperRepository) SetError(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE papers
		SET error_message = $1, updated_at = $2
		WHERE id = $3`

	return r.execPaperUpdate(ctx, id, "failed to set error message", query, message, time.Now().UTC(), id)
}

// Delete removes a paper; dependent rows cascade.
func (r *PgPaperRepository) Delete(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM papers WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete paper: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// ListUnflaggedWithSentences finds papers with sentences_processed = false
// that nonetheless have sentence rows.
func (r *PgPaperRepository) ListUnflaggedWithSentences(ctx context.Context) ([]*FlagDriftRecord, error) {
	query := `
		SELECT p.id, p.workspace_id, p.filename, COUNT(s.id)
		FROM papers p
		INNER JOIN sentences s ON s.paper_id = p.id
		WHERE p.sentences_processed = false
		GROUP BY p.id, p.workspace_id, p.filename
		ORDER BY p.created_at`

	return r.queryDriftRecords(ctx, query)
}

// ListFlaggedWithoutSentences finds papers with sentences_processed = true
// but no sentence rows.
func (r *PgPaperRepository) ListFlaggedWithoutSentences(ctx context.Context) ([]*FlagDriftRecord, error) {
	query := `
		SELECT p.id, p.workspace_id, p.filename, 0::bigint
		FROM papers p
		WHERE p.sentences_processed = true
		  AND NOT EXISTS (SELECT 1 FROM sentences s WHERE s.paper_id = p.id)
		ORDER BY p.created_at`

	return r.queryDriftRecords(ctx, query)
}

func (r *PgPaperRepository) queryDriftRecords(ctx context.Context, query string) ([]*FlagDriftRecord, error) {
	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query flag drift: %w", err)
	}
	defer rows.Close()

	var records []*FlagDriftRecord
	for rows.Next() {
		var rec FlagDriftRecord
		if err := rows.Scan(&rec.PaperID, &rec.WorkspaceID, &rec.Filename, &rec.SentenceCount); err != nil {
			return nil, fmt.Errorf("failed to scan flag drift record: %w", err)
		}
		records = append(records, &rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating flag drift records: %w", err)
	}

	return records, nil
}

func (r *PgPaperRepository) execPaperUpdate(ctx context.Context, id uuid.UUID, failMsg, query string, args ...interface{}) error {
	result, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", failMsg, err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("paper", id.String())
	}

	return nil
}

// paperScanDest holds the destination pointers for scanning a Paper row.
type paperScanDest struct {
	paper        domain.Paper
	metadataJSON []byte
}

// destinations returns the slice of pointers for Scan operations.
func (d *paperScanDest) destinations() []interface{} {
	return []interface{}{
		&d.paper.ID, &d.paper.WorkspaceID, &d.paper.Filename, &d.paper.FileHash,
		&d.paper.Parsed, &d.paper.SentencesProcessed, &d.paper.DefinitionsDetected, &d.paper.SourceDeleted,
		&d.paper.RawText, &d.metadataJSON, &d.paper.ErrorMessage, &d.paper.CreatedAt, &d.paper.UpdatedAt,
	}
}

// finalize performs post-scan processing: unmarshals JSON fields.
func (d *paperScanDest) finalize() (*domain.Paper, error) {
	if len(d.metadataJSON) > 0 {
		if err := json.Unmarshal(d.metadataJSON, &d.paper.Metadata); err != nil {
			return nil, fmt.Errorf("failed to unmarshal metadata: %w", err)
		}
	}

	return &d.paper, nil
}

// scanPaper scans a single row into a Paper.
func scanPaper(row pgx.Row) (*domain.Paper, error) {
	var dest paperScanDest
	if err := row.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}

// scanPaperFromRows scans the current row from pgx.Rows into a Paper.
func scanPaperFromRows(rows pgx.Rows) (*domain.Paper, error) {
	var dest paperScanDest
	if err := rows.Scan(dest.destinations()...); err != nil {
		return nil, err
	}
	return dest.finalize()
}
