package diagnostics

import (
	"context"
	"fmt"

	"github.com/paperlyzer/analysis-service/internal/repository"
)

// CheckSentenceFlagDrift is the name of the sentence-flag drift check.
const CheckSentenceFlagDrift = "sentence_flag_drift"

// SentenceFlagDriftCheck detects papers whose sentences_processed flag
// disagrees with their sentence rows. Papers with sentences but an unset
// flag are corrected when repair is enabled; the inverse drift is only
// reported, since deleting the flag would discard pipeline history.
type SentenceFlagDriftCheck struct {
	papers repository.PaperRepository
	repair bool
}

// NewSentenceFlagDriftCheck creates the drift check.
func NewSentenceFlagDriftCheck(papers repository.PaperRepository, repair bool) *SentenceFlagDriftCheck {
	return &SentenceFlagDriftCheck{papers: papers, repair: repair}
}

// Name implements Check.
func (c *SentenceFlagDriftCheck) Name() string { return CheckSentenceFlagDrift }

// Run implements Check.
func (c *SentenceFlagDriftCheck) Run(ctx context.Context) (*Result, error) {
	result := &Result{}

	unflagged, err := c.papers.ListUnflaggedWithSentences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list unflagged papers: %w", err)
	}

	for _, rec := range unflagged {
		if c.repair {
			if err := c.papers.MarkSentencesProcessed(ctx, rec.PaperID); err != nil {
				return nil, fmt.Errorf("failed to repair paper %s: %w", rec.PaperID, err)
			}
			result.Repairs++
			result.Findings = append(result.Findings, Finding{
				Check:    c.Name(),
				Severity: SeverityInfo,
				Entity:   fmt.Sprintf("paper %s (%s)", rec.PaperID, rec.Filename),
				Detail:   fmt.Sprintf("sentences_processed was false with %d sentence rows; flag set", rec.SentenceCount),
			})
			continue
		}

		result.Findings = append(result.Findings, Finding{
			Check:    c.Name(),
			Severity: SeverityWarning,
			Entity:   fmt.Sprintf("paper %s (%s)", rec.PaperID, rec.Filename),
			Detail:   fmt.Sprintf("sentences_processed is false with %d sentence rows (repair disabled)", rec.SentenceCount),
		})
	}

	flagged, err := c.papers.ListFlaggedWithoutSentences(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list flagged papers: %w", err)
	}

	for _, rec := range flagged {
		result.Findings = append(result.Findings, Finding{
			Check:    c.Name(),
			Severity: SeverityWarning,
			Entity:   fmt.Sprintf("paper %s (%s)", rec.PaperID, rec.Filename),
			Detail:   "sentences_processed is true but no sentence rows exist",
		})
	}

	return result, nil
}
