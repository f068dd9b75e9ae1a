package domain

import (
	"time"

	"github.com/google/uuid"
)

// ClassificationLabel is the OD/CD label assigned to a sentence.
type ClassificationLabel string

// Classification labels. A sentence starts as unknown and is labeled
// operational (OD) or conceptual (CD) by the external classifier.
const (
	ClassificationUnknown     ClassificationLabel = "unknown"
	ClassificationOperational ClassificationLabel = "operational"
	ClassificationConceptual  ClassificationLabel = "conceptual"
)

// IsValid reports whether the label is one of the known values.
func (l ClassificationLabel) IsValid() bool {
	switch l {
	case ClassificationUnknown, ClassificationOperational, ClassificationConceptual:
		return true
	}
	return false
}

// IsDefinition reports whether the label marks a definition sentence.
func (l ClassificationLabel) IsDefinition() bool {
	return l == ClassificationOperational || l == ClassificationConceptual
}

// DetectionStatus tracks the classification attempt for a sentence.
type DetectionStatus string

// Detection statuses.
const (
	DetectionPending   DetectionStatus = "pending"
	DetectionCompleted DetectionStatus = "completed"
	DetectionFailed    DetectionStatus = "failed"
)

// IsValid reports whether the status is one of the known values.
func (s DetectionStatus) IsValid() bool {
	switch s {
	case DetectionPending, DetectionCompleted, DetectionFailed:
		return true
	}
	return false
}

// Sentence belongs to exactly one section and, denormalized, to its paper.
// PaperID duplicates the section's paper so per-paper queries skip a join;
// both foreign keys cascade from the paper.
type Sentence struct {
	ID              uuid.UUID
	SectionID       uuid.UUID
	PaperID         uuid.UUID
	Text            string
	Classification  ClassificationLabel
	Confidence      float64
	DetectionStatus DetectionStatus
	RetryCount      int
	ErrorMessage    string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}
