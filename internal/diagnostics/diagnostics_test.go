package diagnostics

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlyzer/analysis-service/internal/domain"
	"github.com/paperlyzer/analysis-service/internal/repository"
	"github.com/paperlyzer/analysis-service/internal/webhook"
)

// stubCheck is a fixed-result check for suite tests.
type stubCheck struct {
	name   string
	result *Result
	err    error
}

func (c *stubCheck) Name() string { return c.name }

func (c *stubCheck) Run(ctx context.Context) (*Result, error) {
	return c.result, c.err
}

func TestSuite_Run(t *testing.T) {
	ctx := context.Background()

	t.Run("collects results from all checks", func(t *testing.T) {
		suite := NewSuite(nil, zerolog.Nop(),
			&stubCheck{name: "clean", result: &Result{}},
			&stubCheck{name: "noisy", result: &Result{Findings: []Finding{
				{Check: "noisy", Severity: SeverityWarning, Entity: "x", Detail: "y"},
			}}},
		)

		report := suite.Run(ctx)
		require.Len(t, report.Results, 2)
		assert.Equal(t, "clean", report.Results[0].Name)
		assert.Empty(t, report.Results[0].Findings)
		assert.Len(t, report.Results[1].Findings, 1)
		assert.True(t, report.Failed())
	})

	t.Run("check error does not stop remaining checks", func(t *testing.T) {
		suite := NewSuite(nil, zerolog.Nop(),
			&stubCheck{name: "broken", err: errors.New("query failed")},
			&stubCheck{name: "fine", result: &Result{}},
		)

		report := suite.Run(ctx)
		require.Len(t, report.Results, 2)
		assert.Equal(t, "query failed", report.Results[0].Error)
		assert.Empty(t, report.Results[1].Error)
		assert.True(t, report.Failed())
	})

	t.Run("repairs alone do not fail the run", func(t *testing.T) {
		suite := NewSuite(nil, zerolog.Nop(),
			&stubCheck{name: "repairing", result: &Result{
				Repairs: 3,
				Findings: []Finding{
					{Check: "repairing", Severity: SeverityInfo, Entity: "paper", Detail: "flag set"},
				},
			}},
		)

		report := suite.Run(ctx)
		assert.Equal(t, 3, report.Repairs())
		assert.Equal(t, 0, report.Problems())
		assert.False(t, report.Failed())
	})
}

// fakePaperRepo implements the PaperRepository methods the drift check uses.
type fakePaperRepo struct {
	repository.PaperRepository

	unflagged []*repository.FlagDriftRecord
	flagged   []*repository.FlagDriftRecord
	repaired  []uuid.UUID
	markErr   error
}

func (f *fakePaperRepo) ListUnflaggedWithSentences(ctx context.Context) ([]*repository.FlagDriftRecord, error) {
	return f.unflagged, nil
}

func (f *fakePaperRepo) ListFlaggedWithoutSentences(ctx context.Context) ([]*repository.FlagDriftRecord, error) {
	return f.flagged, nil
}

func (f *fakePaperRepo) MarkSentencesProcessed(ctx context.Context, id uuid.UUID) error {
	if f.markErr != nil {
		return f.markErr
	}
	f.repaired = append(f.repaired, id)
	return nil
}

func TestSentenceFlagDriftCheck(t *testing.T) {
	ctx := context.Background()
	drifted := &repository.FlagDriftRecord{
		PaperID:       uuid.New(),
		WorkspaceID:   uuid.New(),
		Filename:      "drifted.pdf",
		SentenceCount: 12,
	}

	t.Run("repairs unflagged papers when enabled", func(t *testing.T) {
		repo := &fakePaperRepo{unflagged: []*repository.FlagDriftRecord{drifted}}
		check := NewSentenceFlagDriftCheck(repo, true)

		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Repairs)
		assert.Equal(t, []uuid.UUID{drifted.PaperID}, repo.repaired)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, SeverityInfo, result.Findings[0].Severity)
	})

	t.Run("reports only when repair disabled", func(t *testing.T) {
		repo := &fakePaperRepo{unflagged: []*repository.FlagDriftRecord{drifted}}
		check := NewSentenceFlagDriftCheck(repo, false)

		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Repairs)
		assert.Empty(t, repo.repaired)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, SeverityWarning, result.Findings[0].Severity)
	})

	t.Run("reports flag set without sentences", func(t *testing.T) {
		repo := &fakePaperRepo{flagged: []*repository.FlagDriftRecord{drifted}}
		check := NewSentenceFlagDriftCheck(repo, true)

		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Repairs)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, SeverityWarning, result.Findings[0].Severity)
	})

	t.Run("propagates repair failure", func(t *testing.T) {
		repo := &fakePaperRepo{
			unflagged: []*repository.FlagDriftRecord{drifted},
			markErr:   domain.NewNotFoundError("paper", drifted.PaperID.String()),
		}
		check := NewSentenceFlagDriftCheck(repo, true)

		_, err := check.Run(ctx)
		assert.Error(t, err)
	})
}

// fakeQueueRepo implements the QueueRepository methods the health check uses.
type fakeQueueRepo struct {
	repository.QueueRepository

	stuck     []*domain.QueueEntry
	exhausted []*domain.QueueEntry
}

func (f *fakeQueueRepo) ListStuck(ctx context.Context, threshold time.Duration) ([]*domain.QueueEntry, error) {
	return f.stuck, nil
}

func (f *fakeQueueRepo) ListRetryExhausted(ctx context.Context) ([]*domain.QueueEntry, error) {
	return f.exhausted, nil
}

func TestQueueHealthCheck(t *testing.T) {
	ctx := context.Background()
	started := time.Now().Add(-2 * time.Hour)

	repo := &fakeQueueRepo{
		stuck: []*domain.QueueEntry{{
			ID:        uuid.New(),
			PaperID:   uuid.New(),
			Stage:     domain.StageParse,
			Status:    domain.QueueProcessing,
			StartedAt: &started,
		}},
		exhausted: []*domain.QueueEntry{{
			ID:         uuid.New(),
			PaperID:    uuid.New(),
			Stage:      domain.StageClassify,
			Status:     domain.QueueFailed,
			RetryCount: 3,
			MaxRetries: 3,
		}},
	}

	check := NewQueueHealthCheck(repo, 30*time.Minute)
	result, err := check.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result.Findings, 2)
	for _, finding := range result.Findings {
		assert.Equal(t, SeverityWarning, finding.Severity)
	}
}

// fakeProber returns canned probe results.
type fakeProber struct {
	results []webhook.ProbeResult
}

func (f *fakeProber) Probe(ctx context.Context) []webhook.ProbeResult {
	return f.results
}

func TestWebhookWiringCheck(t *testing.T) {
	ctx := context.Background()

	check := NewWebhookWiringCheck(&fakeProber{results: []webhook.ProbeResult{
		{Endpoint: "keywords", URL: "https://n8n/webhook/a", Reachable: true, StatusCode: 200, Latency: 20 * time.Millisecond},
		{Endpoint: "classification", URL: "https://n8n/webhook/b", Reachable: true, StatusCode: 404},
		{Endpoint: "orphan", URL: "https://down/webhook/c", Reachable: false, Error: "connection refused"},
	}})

	result, err := check.Run(ctx)
	require.NoError(t, err)
	require.Len(t, result.Findings, 3)

	assert.Equal(t, SeverityInfo, result.Findings[0].Severity)
	assert.Equal(t, SeverityWarning, result.Findings[1].Severity)
	assert.Contains(t, result.Findings[1].Detail, "404")
	assert.Equal(t, SeverityWarning, result.Findings[2].Severity)
	assert.Equal(t, "connection refused", result.Findings[2].Detail)
}

func TestReport_Render(t *testing.T) {
	report := &Report{
		StartedAt:  time.Now().Add(-time.Second),
		FinishedAt: time.Now(),
		Results: []CheckResult{
			{Name: "sentence_flag_drift", Repairs: 1, Findings: []Finding{
				{Check: "sentence_flag_drift", Severity: SeverityInfo, Entity: "paper x", Detail: "flag set"},
			}},
			{Name: "orphan_scan", Error: "connection lost"},
		},
	}

	var buf bytes.Buffer
	report.Render(&buf)

	output := buf.String()
	assert.Contains(t, output, "sentence_flag_drift")
	assert.Contains(t, output, "repairs applied: 1")
	assert.Contains(t, output, "error: connection lost")
	assert.Contains(t, output, "Problems: 1, repairs: 1")
}

func TestServer_ReportHandler(t *testing.T) {
	server := NewServer("127.0.0.1:0", nil, "/metrics", zerolog.Nop())

	t.Run("404 before first run", func(t *testing.T) {
		rec := httptest.NewRecorder()
		server.reportHandler(rec, httptest.NewRequest(http.MethodGet, "/report", nil))
		assert.Equal(t, http.StatusNotFound, rec.Code)
	})

	t.Run("serves latest report as JSON", func(t *testing.T) {
		server.SetReport(&Report{
			FinishedAt: time.Now().UTC(),
			Results:    []CheckResult{{Name: "schema_presence"}},
		})

		rec := httptest.NewRecorder()
		server.reportHandler(rec, httptest.NewRequest(http.MethodGet, "/report", nil))

		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Body.String(), "schema_presence")
	})
}
