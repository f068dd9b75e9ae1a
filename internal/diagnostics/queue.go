package diagnostics

import (
	"context"
	"fmt"
	"time"

	"github.com/paperlyzer/analysis-service/internal/repository"
)

// CheckQueueHealth is the name of the queue health check.
const CheckQueueHealth = "queue_health"

// QueueHealthCheck reports processing queue entries stuck in processing
// past the threshold and entries whose retry budget is exhausted. This
// layer never re-runs queue work; the findings point operators at the
// external pipeline.
type QueueHealthCheck struct {
	queue     repository.QueueRepository
	threshold time.Duration
}

// NewQueueHealthCheck creates the queue health check.
func NewQueueHealthCheck(queue repository.QueueRepository, threshold time.Duration) *QueueHealthCheck {
	if threshold <= 0 {
		threshold = 30 * time.Minute
	}
	return &QueueHealthCheck{queue: queue, threshold: threshold}
}

// Name implements Check.
func (c *QueueHealthCheck) Name() string { return CheckQueueHealth }

// Run implements Check.
func (c *QueueHealthCheck) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	stuck, err := c.queue.ListStuck(ctx, c.threshold)
	if err != nil {
		return nil, fmt.Errorf("failed to list stuck entries: %w", err)
	}

	for _, entry := range stuck {
		age := time.Duration(0)
		if entry.StartedAt != nil {
			age = time.Since(*entry.StartedAt).Round(time.Second)
		}
		result.Findings = append(result.Findings, Finding{
			Check:    c.Name(),
			Severity: SeverityWarning,
			Entity:   fmt.Sprintf("queue entry %s (paper %s, stage %s)", entry.ID, entry.PaperID, entry.Stage),
			Detail:   fmt.Sprintf("in processing for %s (threshold %s)", age, c.threshold),
		})
	}

	exhausted, err := c.queue.ListRetryExhausted(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list retry-exhausted entries: %w", err)
	}

	for _, entry := range exhausted {
		result.Findings = append(result.Findings, Finding{
			Check:    c.Name(),
			Severity: SeverityWarning,
			Entity:   fmt.Sprintf("queue entry %s (paper %s, stage %s)", entry.ID, entry.PaperID, entry.Stage),
			Detail:   fmt.Sprintf("retry budget exhausted (%d/%d), status %s", entry.RetryCount, entry.MaxRetries, entry.Status),
		})
	}

	return result, nil
}
