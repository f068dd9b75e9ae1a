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
var _ SentenceRepository = (*PgSentenceRepository)(nil)

// PgSentenceRepository is a PostgreSQL implementation of SentenceRepository.
type PgSentenceRepository struct {
	db DBTX
}

// NewPgSentenceRepository creates a new PostgreSQL sentence repository.
func NewPgSentenceRepository(db DBTX) *PgSentenceRepository {
	return &PgSentenceRepository{db: db}
}

const sentenceColumns = `id, section_id, paper_id, sentence_text,
	classification, confidence, detection_status, retry_count, error_message,
	created_at, updated_at`

// CreateSections inserts the ordered sections of a paper in a single batch.
func (r *PgSentenceRepository) CreateSections(ctx context.Context, sections []*domain.PaperSection) error {
	if len(sections) == 0 {
		return nil
	}

	for i, section := range sections {
		if section == nil {
			return domain.NewValidationError("section", fmt.Sprintf("section at index %d is nil", i))
		}
		if section.PaperID == uuid.Nil {
			return domain.NewValidationError("paper_id", fmt.Sprintf("section at index %d has no paper ID", i))
		}
		if section.ID == uuid.Nil {
			section.ID = uuid.New()
		}
	}

	query := `
		INSERT INTO paper_sections (
			id, paper_id, section_type, page_number, order_index,
			section_text, word_count, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, section := range sections {
		batch.Queue(query,
			section.ID,
			section.PaperID,
			section.SectionType,
			section.PageNumber,
			section.OrderIndex,
			section.Text,
			section.WordCount,
			now,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i, section := range sections {
		if err := br.QueryRow().Scan(&section.CreatedAt, &section.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
				return domain.NewNotFoundError("paper", section.PaperID.String())
			}
			return fmt.Errorf("failed to insert section at index %d: %w", i, err)
		}
	}

	return nil
}

// ListSectionsByPaper retrieves a paper's sections ordered by order_index.
func (r *PgSentenceRepository) ListSectionsByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.PaperSection, error) {
	query := `
		SELECT id, paper_id, section_type, page_number, order_index,
			section_text, word_count, created_at, updated_at
		FROM paper_sections
		WHERE paper_id = $1
		ORDER BY order_index`

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sections: %w", err)
	}
	defer rows.Close()

	var sections []*domain.PaperSection
	for rows.Next() {
		var s domain.PaperSection
		err := rows.Scan(
			&s.ID, &s.PaperID, &s.SectionType, &s.PageNumber, &s.OrderIndex,
			&s.Text, &s.WordCount, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan section: %w", err)
		}
		sections = append(sections, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sections: %w", err)
	}

	return sections, nil
}

// CreateSentences inserts sentences in a single batch roundtrip.
func (r *PgSentenceRepository) CreateSentences(ctx context.Context, sentences []*domain.Sentence) error {
	if len(sentences) == 0 {
		return nil
	}

	for i, sentence := range sentences {
		if sentence == nil {
			return domain.NewValidationError("sentence", fmt.Sprintf("sentence at index %d is nil", i))
		}
		if sentence.SectionID == uuid.Nil {
			return domain.NewValidationError("section_id", fmt.Sprintf("sentence at index %d has no section ID", i))
		}
		if sentence.PaperID == uuid.Nil {
			return domain.NewValidationError("paper_id", fmt.Sprintf("sentence at index %d has no paper ID", i))
		}
		if sentence.ID == uuid.Nil {
			sentence.ID = uuid.New()
		}
		if sentence.Classification == "" {
			sentence.Classification = domain.ClassificationUnknown
		}
		if sentence.DetectionStatus == "" {
			sentence.DetectionStatus = domain.DetectionPending
		}
	}

	query := `
		INSERT INTO sentences (
			id, section_id, paper_id, sentence_text,
			classification, confidence, detection_status, retry_count,
			error_message, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		RETURNING created_at, updated_at`

	now := time.Now().UTC()
	batch := &pgx.Batch{}
	for _, sentence := range sentences {
		batch.Queue(query,
			sentence.ID,
			sentence.SectionID,
			sentence.PaperID,
			sentence.Text,
			sentence.Classification,
			sentence.Confidence,
			sentence.DetectionStatus,
			sentence.RetryCount,
			sentence.ErrorMessage,
			now,
		)
	}

	br := r.db.SendBatch(ctx, batch)
	defer br.Close()

	for i, sentence := range sentences {
		if err := br.QueryRow().Scan(&sentence.CreatedAt, &sentence.UpdatedAt); err != nil {
			var pgErr *pgconn.PgError
			if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
				return domain.NewNotFoundError("section", sentence.SectionID.String())
			}
			return fmt.Errorf("failed to insert sentence at index %d: %w", i, err)
		}
	}

	return nil
}

// ListByPaper retrieves a paper's sentences ordered by creation.
func (r *PgSentenceRepository) ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Sentence, error) {
	query := fmt.Sprintf(`
		SELECT %s
		FROM sentences
		WHERE paper_id = $1
		ORDER BY created_at, id`, sentenceColumns)

	rows, err := r.db.Query(ctx, query, paperID)
	if err != nil {
		return nil, fmt.Errorf("failed to list sentences: %w", err)
	}
	defer rows.Close()

	return collectSentences(rows)
}

// CountByPaper returns the number of sentence rows for a paper.
func (r *PgSentenceRepository) CountByPaper(ctx context.Context, paperID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM sentences WHERE paper_id = $1`, paperID).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count sentences: %w", err)
	}
	return count, nil
}

// ListPendingDetection retrieves sentences awaiting classification.
func (r *PgSentenceRepository) ListPendingDetection(ctx context.Context, limit int) ([]*domain.Sentence, error) {
	if limit <= 0 {
		limit = defaultFilterLimit
	}
	if limit > maxFilterLimit {
		limit = maxFilterLimit
	}

	query := fmt.Sprintf(`
		SELECT %s
		FROM sentences
		WHERE detection_status = $1
		ORDER BY created_at
		LIMIT $2`, sentenceColumns)

	rows, err := r.db.Query(ctx, query, domain.DetectionPending, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list pending sentences: %w", err)
	}
	defer rows.Close()

	return collectSentences(rows)
}

// UpdateClassification stores a classification result.
func (r *PgSentenceRepository) UpdateClassification(ctx context.Context, id uuid.UUID, label domain.ClassificationLabel, confidence float64) error {
	if !label.IsValid() {
		return domain.NewValidationError("classification", fmt.Sprintf("unknown label %q", label))
	}

	query := `
		UPDATE sentences
		SET classification = $1, confidence = $2, detection_status = $3,
			error_message = '', updated_at = $4
		WHERE id = $5`

	result, err := r.db.Exec(ctx, query, label, confidence, domain.DetectionCompleted, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to update classification: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("sentence", id.String())
	}

	return nil
}

// MarkDetectionFailed records a failed classification attempt.
func (r *PgSentenceRepository) MarkDetectionFailed(ctx context.Context, id uuid.UUID, message string) error {
	query := `
		UPDATE sentences
		SET detection_status = $1, retry_count = retry_count + 1,
			error_message = $2, updated_at = $3
		WHERE id = $4`

	result, err := r.db.Exec(ctx, query, domain.DetectionFailed, message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to mark detection failed: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("sentence", id.String())
	}

	return nil
}

// CountDefinitionsByPaper counts a paper's definition sentences.
func (r *PgSentenceRepository) CountDefinitionsByPaper(ctx context.Context, paperID uuid.UUID) (int64, error) {
	query := `
		SELECT COUNT(*)
		FROM sentences
		WHERE paper_id = $1 AND classification IN ($2, $3)`

	var count int64
	err := r.db.QueryRow(ctx, query, paperID, domain.ClassificationOperational, domain.ClassificationConceptual).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count definitions: %w", err)
	}
	return count, nil
}

func collectSentences(rows pgx.Rows) ([]*domain.Sentence, error) {
	var sentences []*domain.Sentence
	for rows.Next() {
		var s domain.Sentence
		err := rows.Scan(
			&s.ID, &s.SectionID, &s.PaperID, &s.Text,
			&s.Classification, &s.Confidence, &s.DetectionStatus, &s.RetryCount,
			&s.ErrorMessage, &s.CreatedAt, &s.UpdatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan sentence: %w", err)
		}
		sentences = append(sentences, &s)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating sentences: %w", err)
	}

	return sentences, nil
}
