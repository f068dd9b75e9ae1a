package diagnostics

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/paperlyzer/analysis-service/internal/observability"
)

// Check is a single diagnostic. Checks observe; only the sentence-flag
// drift check may write, and only when repair is enabled.
type Check interface {
	// Name returns the check's stable identifier used in reports,
	// logs, and metrics labels.
	Name() string

	// Run executes the check and returns its findings.
	Run(ctx context.Context) (*Result, error)
}

// Suite runs checks in order and assembles a report.
type Suite struct {
	checks  []Check
	metrics *observability.Metrics
	logger  zerolog.Logger
}

// NewSuite creates a suite. metrics may be nil.
func NewSuite(metrics *observability.Metrics, logger zerolog.Logger, checks ...Check) *Suite {
	return &Suite{
		checks:  checks,
		metrics: metrics,
		logger:  logger.With().Str("component", "diagnostics").Logger(),
	}
}

// Run executes all checks. A check error is recorded in the report and
// does not stop the remaining checks.
func (s *Suite) Run(ctx context.Context) *Report {
	report := &Report{
		StartedAt: time.Now().UTC(),
		Results:   make([]CheckResult, 0, len(s.checks)),
	}

	for _, check := range s.checks {
		log := observability.WithCheckContext(s.logger, check.Name())
		log.Debug().Msg("running check")

		start := time.Now()
		result, err := check.Run(ctx)
		elapsed := time.Since(start)

		checkResult := CheckResult{
			Name:     check.Name(),
			Duration: elapsed,
		}

		if err != nil {
			checkResult.Error = err.Error()
			log.Error().Err(err).Dur("duration", elapsed).Msg("check failed")
			if s.metrics != nil {
				s.metrics.RecordCheckFailed(check.Name())
			}
		} else {
			checkResult.Findings = result.Findings
			checkResult.Repairs = result.Repairs
			log.Info().
				Int("findings", len(result.Findings)).
				Int("repairs", result.Repairs).
				Dur("duration", elapsed).
				Msg("check completed")
		}

		if s.metrics != nil {
			s.metrics.RecordCheck(check.Name(), elapsed.Seconds())
			for _, finding := range checkResult.Findings {
				s.metrics.RecordFinding(finding.Check, string(finding.Severity))
			}
			for i := 0; i < checkResult.Repairs; i++ {
				s.metrics.RecordRepair()
			}
		}

		report.Results = append(report.Results, checkResult)
	}

	report.FinishedAt = time.Now().UTC()
	s.logger.Info().
		Int("checks", len(report.Results)).
		Int("problems", report.Problems()).
		Int("repairs", report.Repairs()).
		Msg("diagnostic run finished")

	return report
}
