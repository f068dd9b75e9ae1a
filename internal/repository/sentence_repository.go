package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// SentenceRepository handles the sections and sentences produced by the
// segmentation pipeline, and the per-sentence classification results.
type SentenceRepository interface {
	// CreateSections inserts the ordered sections of a paper in a single
	// batch. Returns domain.ErrNotFound if the paper does not exist.
	CreateSections(ctx context.Context, sections []*domain.PaperSection) error

	// ListSectionsByPaper retrieves a paper's sections ordered by order_index.
	ListSectionsByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.PaperSection, error)

	// CreateSentences inserts sentences in a single batch roundtrip.
	// Each sentence must carry both its section and its paper reference.
	// Returns domain.ErrInvalidInput if any sentence lacks either.
	CreateSentences(ctx context.Context, sentences []*domain.Sentence) error

	// ListByPaper retrieves a paper's sentences ordered by creation.
	ListByPaper(ctx context.Context, paperID uuid.UUID) ([]*domain.Sentence, error)

	// CountByPaper returns the number of sentence rows for a paper.
	CountByPaper(ctx context.Context, paperID uuid.UUID) (int64, error)

	// ListPendingDetection retrieves sentences awaiting classification,
	// oldest first, up to limit.
	ListPendingDetection(ctx context.Context, limit int) ([]*domain.Sentence, error)

	// UpdateClassification stores a classification result and marks the
	// sentence's detection completed.
	// Returns domain.ErrInvalidInput for an unknown label and
	// domain.ErrNotFound if the sentence does not exist.
	UpdateClassification(ctx context.Context, id uuid.UUID, label domain.ClassificationLabel, confidence float64) error

	// MarkDetectionFailed records a failed classification attempt,
	// incrementing the sentence's retry counter.
	// Returns domain.ErrNotFound if the sentence does not exist.
	MarkDetectionFailed(ctx context.Context, id uuid.UUID, message string) error

	// CountDefinitionsByPaper returns the number of sentences classified as
	// operational or conceptual definitions for a paper.
	CountDefinitionsByPaper(ctx context.Context, paperID uuid.UUID) (int64, error)
}
