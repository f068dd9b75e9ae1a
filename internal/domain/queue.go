package domain

import (
	"time"

	"github.com/google/uuid"
)

// PipelineStage identifies the processing step a queue entry belongs to.
type PipelineStage string

// Pipeline stages, in execution order.
const (
	StageParse    PipelineStage = "parse"
	StageSegment  PipelineStage = "segment"
	StageClassify PipelineStage = "classify"
)

// IsValid reports whether the stage is one of the known values.
func (s PipelineStage) IsValid() bool {
	switch s {
	case StageParse, StageSegment, StageClassify:
		return true
	}
	return false
}

// QueueStatus is the lifecycle state of a queue entry.
type QueueStatus string

// Queue statuses.
const (
	QueuePending    QueueStatus = "pending"
	QueueProcessing QueueStatus = "processing"
	QueueCompleted  QueueStatus = "completed"
	QueueFailed     QueueStatus = "failed"
)

// IsValid reports whether the status is one of the known values.
func (s QueueStatus) IsValid() bool {
	switch s {
	case QueuePending, QueueProcessing, QueueCompleted, QueueFailed:
		return true
	}
	return false
}

// DefaultMaxRetries is the retry budget a new queue entry carries.
// The retry policy itself belongs to the external processing pipeline;
// this layer only stores and reports the counters.
const DefaultMaxRetries = 3

// QueueEntry is a unit of work for a paper at a given pipeline stage.
type QueueEntry struct {
	ID          uuid.UUID
	PaperID     uuid.UUID
	WorkspaceID uuid.UUID
	Stage       PipelineStage
	Status      QueueStatus
	Priority    int
	RetryCount  int
	MaxRetries  int
	StartedAt   *time.Time
	CompletedAt *time.Time
	Details     map[string]interface{}
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// ExhaustedRetries reports whether the entry has used its retry budget.
func (e *QueueEntry) ExhaustedRetries() bool {
	return e.RetryCount >= e.MaxRetries
}
