//go:build integration

package integration

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlyzer/analysis-service/internal/domain"
	"github.com/paperlyzer/analysis-service/internal/repository"
)

// seedWorkspace creates a fresh user with one workspace for a test.
func seedWorkspace(t *testing.T, ctx context.Context) *domain.Workspace {
	t.Helper()
	repo := repository.NewPgWorkspaceRepository(testPool)

	user, err := repo.UpsertUser(ctx, &domain.User{
		ExternalID:  "google-oauth2|" + uuid.NewString(),
		Email:       "integration@example.com",
		DisplayName: "Integration Tester",
	})
	require.NoError(t, err)

	ws, err := repo.CreateWorkspace(ctx, &domain.Workspace{
		OwnerID: user.ID,
		Name:    "Integration Workspace",
	})
	require.NoError(t, err)
	return ws
}

// seedPaper creates a paper with a unique file hash in the workspace.
func seedPaper(t *testing.T, ctx context.Context, workspaceID uuid.UUID) *domain.Paper {
	t.Helper()
	repo := repository.NewPgPaperRepository(testPool)

	paper, err := repo.Create(ctx, &domain.Paper{
		WorkspaceID: workspaceID,
		Filename:    "attention-is-all-you-need.pdf",
		FileHash:    uuid.NewString(),
	})
	require.NoError(t, err)
	return paper
}

func TestPgPaperRepository_Integration(t *testing.T) {
	cleanTable(t, "users")
	repo := repository.NewPgPaperRepository(testPool)
	ctx := context.Background()
	ws := seedWorkspace(t, ctx)

	t.Run("Create and Get roundtrip", func(t *testing.T) {
		created, err := repo.Create(ctx, &domain.Paper{
			WorkspaceID: ws.ID,
			Filename:    "bert.pdf",
			FileHash:    "9f86d081884c7d659a2feaa0c55ad015",
		})
		require.NoError(t, err)
		assert.NotEqual(t, uuid.Nil, created.ID)
		assert.False(t, created.CreatedAt.IsZero())
		assert.False(t, created.Parsed)

		got, err := repo.GetByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, got.ID)
		assert.Equal(t, "bert.pdf", got.Filename)

		byHash, err := repo.GetByWorkspaceAndHash(ctx, ws.ID, "9f86d081884c7d659a2feaa0c55ad015")
		require.NoError(t, err)
		assert.Equal(t, created.ID, byHash.ID)
	})

	t.Run("duplicate hash in same workspace rejected", func(t *testing.T) {
		paper := seedPaper(t, ctx, ws.ID)

		_, err := repo.Create(ctx, &domain.Paper{
			WorkspaceID: ws.ID,
			Filename:    "same-content-other-name.pdf",
			FileHash:    paper.FileHash,
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrAlreadyExists)
	})

	t.Run("same hash in another workspace allowed", func(t *testing.T) {
		paper := seedPaper(t, ctx, ws.ID)
		other := seedWorkspace(t, ctx)

		dup, err := repo.Create(ctx, &domain.Paper{
			WorkspaceID: other.ID,
			Filename:    paper.Filename,
			FileHash:    paper.FileHash,
		})
		require.NoError(t, err)
		assert.NotEqual(t, paper.ID, dup.ID)
		assert.NotEqual(t, paper.Fingerprint(), dup.Fingerprint())
	})

	t.Run("Create with missing workspace returns not found", func(t *testing.T) {
		_, err := repo.Create(ctx, &domain.Paper{
			WorkspaceID: uuid.New(),
			Filename:    "orphan.pdf",
			FileHash:    uuid.NewString(),
		})
		require.Error(t, err)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})

	t.Run("pipeline flag transitions", func(t *testing.T) {
		paper := seedPaper(t, ctx, ws.ID)

		require.NoError(t, repo.MarkParsed(ctx, paper.ID, "extracted text"))
		require.NoError(t, repo.MarkSentencesProcessed(ctx, paper.ID))
		require.NoError(t, repo.MarkDefinitionsDetected(ctx, paper.ID))
		require.NoError(t, repo.MarkSourceDeleted(ctx, paper.ID))

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.True(t, got.Parsed)
		assert.True(t, got.SentencesProcessed)
		assert.True(t, got.DefinitionsDetected)
		assert.True(t, got.SourceDeleted)
		assert.Equal(t, "extracted text", got.RawText)
		assert.True(t, got.UpdatedAt.After(got.CreatedAt), "trigger should bump updated_at")
	})

	t.Run("SetError stores pipeline failure", func(t *testing.T) {
		paper := seedPaper(t, ctx, ws.ID)

		require.NoError(t, repo.SetError(ctx, paper.ID, "grobid timeout"))

		got, err := repo.GetByID(ctx, paper.ID)
		require.NoError(t, err)
		assert.Equal(t, "grobid timeout", got.ErrorMessage)
	})

	t.Run("List scoped to workspace", func(t *testing.T) {
		other := seedWorkspace(t, ctx)
		seedPaper(t, ctx, other.ID)
		seedPaper(t, ctx, other.ID)

		papers, total, err := repo.List(ctx, repository.PaperFilter{WorkspaceID: &other.ID})
		require.NoError(t, err)
		assert.EqualValues(t, 2, total)
		assert.Len(t, papers, 2)
	})

	t.Run("Delete cascades to sections sentences selections and queue", func(t *testing.T) {
		paper := seedPaper(t, ctx, ws.ID)
		sentences := repository.NewPgSentenceRepository(testPool)
		selections := repository.NewPgSelectionRepository(testPool)
		queue := repository.NewPgQueueRepository(testPool)

		section := &domain.PaperSection{PaperID: paper.ID, SectionType: domain.SectionTypeAbstract}
		require.NoError(t, sentences.CreateSections(ctx, []*domain.PaperSection{section}))
		require.NoError(t, sentences.CreateSentences(ctx, []*domain.Sentence{
			{SectionID: section.ID, PaperID: paper.ID, Text: "We define accuracy as the fraction of correct predictions."},
		}))
		_, err := selections.Upsert(ctx, ws.ID, paper.ID, true)
		require.NoError(t, err)
		_, err = queue.Enqueue(ctx, &domain.QueueEntry{
			PaperID: paper.ID, WorkspaceID: ws.ID, Stage: domain.StageClassify,
		})
		require.NoError(t, err)

		require.NoError(t, repo.Delete(ctx, paper.ID))

		_, err = repo.GetByID(ctx, paper.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		count, err := sentences.CountByPaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 0, count)

		_, err = selections.Get(ctx, ws.ID, paper.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgSentenceRepository_Integration(t *testing.T) {
	cleanTable(t, "users")
	repo := repository.NewPgSentenceRepository(testPool)
	ctx := context.Background()
	ws := seedWorkspace(t, ctx)
	paper := seedPaper(t, ctx, ws.ID)

	section := &domain.PaperSection{
		PaperID:     paper.ID,
		SectionType: domain.SectionTypeBody,
		OrderIndex:  1,
		Text:        "Body text.",
		WordCount:   2,
	}
	require.NoError(t, repo.CreateSections(ctx, []*domain.PaperSection{section}))

	t.Run("CreateSentences applies defaults", func(t *testing.T) {
		batch := []*domain.Sentence{
			{SectionID: section.ID, PaperID: paper.ID, Text: "Precision is defined as TP over TP plus FP."},
			{SectionID: section.ID, PaperID: paper.ID, Text: "The weather was nice."},
		}
		require.NoError(t, repo.CreateSentences(ctx, batch))

		got, err := repo.ListByPaper(ctx, paper.ID)
		require.NoError(t, err)
		require.Len(t, got, 2)
		for _, s := range got {
			assert.Equal(t, domain.ClassificationUnknown, s.Classification)
			assert.Equal(t, domain.DetectionPending, s.DetectionStatus)
		}
	})

	t.Run("classification completes detection", func(t *testing.T) {
		pending, err := repo.ListPendingDetection(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, pending)

		target := pending[0]
		err = repo.UpdateClassification(ctx, target.ID, domain.ClassificationOperational, 0.93)
		require.NoError(t, err)

		got, err := repo.ListByPaper(ctx, paper.ID)
		require.NoError(t, err)
		var found bool
		for _, s := range got {
			if s.ID == target.ID {
				found = true
				assert.Equal(t, domain.ClassificationOperational, s.Classification)
				assert.InDelta(t, 0.93, s.Confidence, 1e-9)
				assert.Equal(t, domain.DetectionCompleted, s.DetectionStatus)
			}
		}
		require.True(t, found)

		defs, err := repo.CountDefinitionsByPaper(ctx, paper.ID)
		require.NoError(t, err)
		assert.EqualValues(t, 1, defs)
	})

	t.Run("MarkDetectionFailed increments retry count", func(t *testing.T) {
		pending, err := repo.ListPendingDetection(ctx, 10)
		require.NoError(t, err)
		require.NotEmpty(t, pending)

		target := pending[0]
		require.NoError(t, repo.MarkDetectionFailed(ctx, target.ID, "webhook returned 500"))
		require.NoError(t, repo.MarkDetectionFailed(ctx, target.ID, "webhook returned 500"))

		got, err := repo.ListByPaper(ctx, paper.ID)
		require.NoError(t, err)
		for _, s := range got {
			if s.ID == target.ID {
				assert.Equal(t, domain.DetectionFailed, s.DetectionStatus)
				assert.Equal(t, 2, s.RetryCount)
				assert.Equal(t, "webhook returned 500", s.ErrorMessage)
			}
		}
	})
}

func TestPgSelectionRepository_Integration(t *testing.T) {
	cleanTable(t, "users")
	repo := repository.NewPgSelectionRepository(testPool)
	ctx := context.Background()
	ws := seedWorkspace(t, ctx)
	paper := seedPaper(t, ctx, ws.ID)

	t.Run("Upsert is idempotent per workspace and paper", func(t *testing.T) {
		first, err := repo.Upsert(ctx, ws.ID, paper.ID, true)
		require.NoError(t, err)
		assert.True(t, first.IsSelected)

		second, err := repo.Upsert(ctx, ws.ID, paper.ID, false)
		require.NoError(t, err)
		assert.Equal(t, first.ID, second.ID, "upsert should update the existing row")
		assert.False(t, second.IsSelected)

		dups, err := repo.ListDuplicates(ctx)
		require.NoError(t, err)
		assert.Empty(t, dups)
	})

	t.Run("constraint rejects a second row for the same pair", func(t *testing.T) {
		_, err := testPool.Exec(ctx, `
			INSERT INTO paper_selections (workspace_id, paper_id, is_selected)
			VALUES ($1, $2, TRUE)`, ws.ID, paper.ID)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "uq_paper_selections_workspace_paper")
	})

	t.Run("ListSelected returns only selected rows", func(t *testing.T) {
		other := seedPaper(t, ctx, ws.ID)
		_, err := repo.Upsert(ctx, ws.ID, other.ID, true)
		require.NoError(t, err)

		selected, err := repo.ListSelected(ctx, ws.ID)
		require.NoError(t, err)
		require.Len(t, selected, 1)
		assert.Equal(t, other.ID, selected[0].PaperID)
	})

	t.Run("Delete removes the row", func(t *testing.T) {
		require.NoError(t, repo.Delete(ctx, ws.ID, paper.ID))

		_, err := repo.Get(ctx, ws.ID, paper.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		err = repo.Delete(ctx, ws.ID, paper.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	})
}

func TestPgQueueRepository_Integration(t *testing.T) {
	cleanTable(t, "users")
	repo := repository.NewPgQueueRepository(testPool)
	ctx := context.Background()
	ws := seedWorkspace(t, ctx)
	paper := seedPaper(t, ctx, ws.ID)

	t.Run("lifecycle pending processing completed", func(t *testing.T) {
		entry, err := repo.Enqueue(ctx, &domain.QueueEntry{
			PaperID:     paper.ID,
			WorkspaceID: ws.ID,
			Stage:       domain.StageParse,
		})
		require.NoError(t, err)
		assert.Equal(t, domain.QueuePending, entry.Status)
		assert.Equal(t, domain.DefaultMaxRetries, entry.MaxRetries)

		require.NoError(t, repo.MarkProcessing(ctx, entry.ID))

		// Not pending anymore, a second claim must fail.
		err = repo.MarkProcessing(ctx, entry.ID)
		assert.ErrorIs(t, err, domain.ErrNotFound)

		got, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueueProcessing, got.Status)
		require.NotNil(t, got.StartedAt)

		require.NoError(t, repo.MarkCompleted(ctx, entry.ID))
		got, err = repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueueCompleted, got.Status)
		require.NotNil(t, got.CompletedAt)
	})

	t.Run("MarkFailed records detail and counts retries", func(t *testing.T) {
		entry, err := repo.Enqueue(ctx, &domain.QueueEntry{
			PaperID:     paper.ID,
			WorkspaceID: ws.ID,
			Stage:       domain.StageSegment,
		})
		require.NoError(t, err)

		for i := 0; i < domain.DefaultMaxRetries; i++ {
			require.NoError(t, repo.MarkFailed(ctx, entry.ID, "segmentation oom"))
		}

		got, err := repo.GetByID(ctx, entry.ID)
		require.NoError(t, err)
		assert.Equal(t, domain.QueueFailed, got.Status)
		assert.Equal(t, domain.DefaultMaxRetries, got.RetryCount)
		assert.True(t, got.ExhaustedRetries())
		assert.Equal(t, "segmentation oom", got.Details["last_error"])

		exhausted, err := repo.ListRetryExhausted(ctx)
		require.NoError(t, err)
		require.Len(t, exhausted, 1)
		assert.Equal(t, entry.ID, exhausted[0].ID)
	})

	t.Run("ListStuck finds long running processing entries", func(t *testing.T) {
		entry, err := repo.Enqueue(ctx, &domain.QueueEntry{
			PaperID:     paper.ID,
			WorkspaceID: ws.ID,
			Stage:       domain.StageClassify,
		})
		require.NoError(t, err)
		require.NoError(t, repo.MarkProcessing(ctx, entry.ID))

		// Age the claim artificially.
		_, err = testPool.Exec(ctx,
			`UPDATE processing_queue SET started_at = NOW() - INTERVAL '2 hours' WHERE id = $1`, entry.ID)
		require.NoError(t, err)

		stuck, err := repo.ListStuck(ctx, 30*time.Minute)
		require.NoError(t, err)
		require.Len(t, stuck, 1)
		assert.Equal(t, entry.ID, stuck[0].ID)
	})
}
