// Package diagnostics implements the data verification suite for the
// paper analysis database: drift detection, orphan scanning, queue health,
// schema presence, and webhook wiring probes.
package diagnostics

import (
	"fmt"
	"io"
	"time"
)

// Severity classifies a finding.
type Severity string

// Finding severities. Info findings (including applied repairs) never fail
// a run; warnings and errors do.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Finding is a single observation produced by a check.
type Finding struct {
	Check    string   `json:"check"`
	Severity Severity `json:"severity"`
	Entity   string   `json:"entity"`
	Detail   string   `json:"detail"`
}

// Result is what a single check produces.
type Result struct {
	Findings []Finding
	Repairs  int
}

// CheckResult is a check's outcome within a report.
type CheckResult struct {
	Name     string        `json:"name"`
	Findings []Finding     `json:"findings,omitempty"`
	Repairs  int           `json:"repairs,omitempty"`
	Duration time.Duration `json:"duration_ns"`
	Error    string        `json:"error,omitempty"`
}

// Report is the outcome of one full suite run.
type Report struct {
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Results    []CheckResult `json:"results"`
}

// Problems counts warning and error findings plus errored checks.
func (r *Report) Problems() int {
	count := 0
	for _, result := range r.Results {
		if result.Error != "" {
			count++
		}
		for _, finding := range result.Findings {
			if finding.Severity != SeverityInfo {
				count++
			}
		}
	}
	return count
}

// Repairs counts corrective writes applied during the run.
func (r *Report) Repairs() int {
	count := 0
	for _, result := range r.Results {
		count += result.Repairs
	}
	return count
}

// Failed reports whether the run should exit non-zero. Repairs alone do
// not fail a run.
func (r *Report) Failed() bool {
	return r.Problems() > 0
}

// Render writes a human-readable report.
func (r *Report) Render(w io.Writer) {
	fmt.Fprintf(w, "Diagnostic report (%s)\n", r.FinishedAt.Format(time.RFC3339))
	fmt.Fprintf(w, "Duration: %s\n\n", r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))

	for _, result := range r.Results {
		status := "ok"
		switch {
		case result.Error != "":
			status = "ERROR"
		case len(result.Findings) > 0:
			status = fmt.Sprintf("%d finding(s)", len(result.Findings))
		}
		fmt.Fprintf(w, "  %-22s %s (%s)\n", result.Name, status, result.Duration.Round(time.Millisecond))

		if result.Error != "" {
			fmt.Fprintf(w, "      error: %s\n", result.Error)
		}
		for _, finding := range result.Findings {
			fmt.Fprintf(w, "      [%s] %s: %s\n", finding.Severity, finding.Entity, finding.Detail)
		}
		if result.Repairs > 0 {
			fmt.Fprintf(w, "      repairs applied: %d\n", result.Repairs)
		}
	}

	fmt.Fprintf(w, "\nProblems: %d, repairs: %d\n", r.Problems(), r.Repairs())
}
