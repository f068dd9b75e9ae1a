//go:build integration

package integration

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlyzer/analysis-service/internal/database"
	"github.com/paperlyzer/analysis-service/internal/diagnostics"
	"github.com/paperlyzer/analysis-service/internal/domain"
	"github.com/paperlyzer/analysis-service/internal/repository"
)

func TestSentenceFlagDriftCheck_Integration(t *testing.T) {
	cleanTable(t, "users")
	ctx := context.Background()
	papers := repository.NewPgPaperRepository(testPool)
	sentences := repository.NewPgSentenceRepository(testPool)

	ws := seedWorkspace(t, ctx)
	paper := seedPaper(t, ctx, ws.ID)

	section := &domain.PaperSection{PaperID: paper.ID, SectionType: domain.SectionTypeBody}
	require.NoError(t, sentences.CreateSections(ctx, []*domain.PaperSection{section}))
	require.NoError(t, sentences.CreateSentences(ctx, []*domain.Sentence{
		{SectionID: section.ID, PaperID: paper.ID, Text: "Recall is defined as TP over TP plus FN."},
	}))

	// Sentences exist but the flag was never set. This is the drift.
	got, err := papers.GetByID(ctx, paper.ID)
	require.NoError(t, err)
	require.False(t, got.SentencesProcessed)

	t.Run("repair disabled only reports", func(t *testing.T) {
		check := diagnostics.NewSentenceFlagDriftCheck(papers, false)
		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Repairs)
		require.Len(t, result.Findings, 1)
		assert.Equal(t, diagnostics.SeverityWarning, result.Findings[0].Severity)

		got, err := papers.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.False(t, got.SentencesProcessed)
	})

	t.Run("repair flips the flag", func(t *testing.T) {
		check := diagnostics.NewSentenceFlagDriftCheck(papers, true)
		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, result.Repairs)

		got, err := papers.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.True(t, got.SentencesProcessed)
	})

	t.Run("second run finds nothing", func(t *testing.T) {
		check := diagnostics.NewSentenceFlagDriftCheck(papers, true)
		result, err := check.Run(ctx)
		require.NoError(t, err)
		assert.Zero(t, result.Repairs)
		assert.Empty(t, result.Findings)
	})
}

func TestOrphanScanCheck_Integration(t *testing.T) {
	cleanTable(t, "users")
	ctx := context.Background()

	ws := seedWorkspace(t, ctx)
	seedPaper(t, ctx, ws.ID)

	// Cascading foreign keys should make orphans impossible.
	check := diagnostics.NewOrphanScanCheck(testPool)
	result, err := check.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}

func TestSchemaPresenceCheck_Integration(t *testing.T) {
	check := diagnostics.NewSchemaPresenceCheck(database.NewInspector(testPool))
	result, err := check.Run(context.Background())
	require.NoError(t, err)

	for _, f := range result.Findings {
		assert.Equal(t, diagnostics.SeverityInfo, f.Severity,
			"migrated schema should satisfy the contract: %s", f.Detail)
	}
}

func TestSelectionUniquenessCheck_Integration(t *testing.T) {
	cleanTable(t, "users")
	ctx := context.Background()

	ws := seedWorkspace(t, ctx)
	paper := seedPaper(t, ctx, ws.ID)

	selections := repository.NewPgSelectionRepository(testPool)
	_, err := selections.Upsert(ctx, ws.ID, paper.ID, true)
	require.NoError(t, err)

	check := diagnostics.NewSelectionUniquenessCheck(selections)
	result, err := check.Run(ctx)
	require.NoError(t, err)
	assert.Empty(t, result.Findings)
}
