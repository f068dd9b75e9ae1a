package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

func TestPgWorkspaceRepository_UpsertUser(t *testing.T) {
	ctx := context.Background()

	t.Run("upserts user by external ID", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkspaceRepository(mock)
		now := time.Now().UTC()
		id := uuid.New()

		mock.ExpectQuery("INSERT INTO users").
			WithArgs(pgxmock.AnyArg(), "google-oauth2|12345", "ada@example.com", "Ada", "", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(id, now, now))

		user, err := repo.UpsertUser(ctx, &domain.User{
			ExternalID:  "google-oauth2|12345",
			Email:       "ada@example.com",
			DisplayName: "Ada",
		})
		require.NoError(t, err)
		assert.Equal(t, id, user.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects missing external ID", func(t *testing.T) {
		repo := NewPgWorkspaceRepository(nil)

		user, err := repo.UpsertUser(ctx, &domain.User{Email: "no-subject@example.com"})
		assert.Nil(t, user)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("rejects nil user", func(t *testing.T) {
		repo := NewPgWorkspaceRepository(nil)

		_, err := repo.UpsertUser(ctx, nil)
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgWorkspaceRepository_GetUserByExternalID(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgWorkspaceRepository(mock)

	mock.ExpectQuery("SELECT (.+) FROM users").
		WithArgs("google-oauth2|unknown").
		WillReturnError(pgx.ErrNoRows)

	user, err := repo.GetUserByExternalID(ctx, "google-oauth2|unknown")
	assert.Nil(t, user)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPgWorkspaceRepository_CreateWorkspace(t *testing.T) {
	ctx := context.Background()

	t.Run("creates workspace", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkspaceRepository(mock)
		ownerID := uuid.New()
		now := time.Now().UTC()
		id := uuid.New()

		mock.ExpectQuery("INSERT INTO workspaces").
			WithArgs(pgxmock.AnyArg(), ownerID, "Thesis Corpus", pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at", "updated_at"}).
				AddRow(id, now, now))

		ws, err := repo.CreateWorkspace(ctx, &domain.Workspace{OwnerID: ownerID, Name: "Thesis Corpus"})
		require.NoError(t, err)
		assert.Equal(t, id, ws.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("maps missing owner to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkspaceRepository(mock)
		ownerID := uuid.New()

		mock.ExpectQuery("INSERT INTO workspaces").
			WithArgs(pgxmock.AnyArg(), ownerID, "Orphan", pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgCodeForeignKeyViolation})

		ws, err := repo.CreateWorkspace(ctx, &domain.Workspace{OwnerID: ownerID, Name: "Orphan"})
		assert.Nil(t, ws)
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})

	t.Run("rejects empty name", func(t *testing.T) {
		repo := NewPgWorkspaceRepository(nil)

		_, err := repo.CreateWorkspace(ctx, &domain.Workspace{OwnerID: uuid.New()})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})
}

func TestPgWorkspaceRepository_DeleteWorkspace(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgWorkspaceRepository(mock)
	id := uuid.New()

	mock.ExpectExec("DELETE FROM workspaces").
		WithArgs(id).
		WillReturnResult(pgxmock.NewResult("DELETE", 0))

	err = repo.DeleteWorkspace(ctx, id)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestPgWorkspaceRepository_AppendChatMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("appends message", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkspaceRepository(mock)
		workspaceID := uuid.New()
		id := uuid.New()
		now := time.Now().UTC()

		mock.ExpectQuery("INSERT INTO chat_histories").
			WithArgs(pgxmock.AnyArg(), workspaceID, domain.ChatRoleUser,
				"what did paper 3 define?", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnRows(pgxmock.NewRows([]string{"id", "created_at"}).AddRow(id, now))

		msg, err := repo.AppendChatMessage(ctx, &domain.ChatMessage{
			WorkspaceID: workspaceID,
			Role:        domain.ChatRoleUser,
			Content:     "what did paper 3 define?",
		})
		require.NoError(t, err)
		assert.Equal(t, id, msg.ID)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("rejects unknown role", func(t *testing.T) {
		repo := NewPgWorkspaceRepository(nil)

		_, err := repo.AppendChatMessage(ctx, &domain.ChatMessage{
			WorkspaceID: uuid.New(),
			Role:        "system",
			Content:     "not a conversation role",
		})
		assert.True(t, errors.Is(err, domain.ErrInvalidInput))
	})

	t.Run("maps missing workspace to not found", func(t *testing.T) {
		mock, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mock.Close()

		repo := NewPgWorkspaceRepository(mock)
		workspaceID := uuid.New()

		mock.ExpectQuery("INSERT INTO chat_histories").
			WithArgs(pgxmock.AnyArg(), workspaceID, domain.ChatRoleAssistant,
				"answer", pgxmock.AnyArg(), pgxmock.AnyArg()).
			WillReturnError(&pgconn.PgError{Code: pgCodeForeignKeyViolation})

		_, err = repo.AppendChatMessage(ctx, &domain.ChatMessage{
			WorkspaceID: workspaceID,
			Role:        domain.ChatRoleAssistant,
			Content:     "answer",
		})
		assert.True(t, errors.Is(err, domain.ErrNotFound))
	})
}

func TestPgWorkspaceRepository_ListChatHistory(t *testing.T) {
	ctx := context.Background()

	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewPgWorkspaceRepository(mock)
	workspaceID := uuid.New()
	now := time.Now().UTC()

	// Limit of zero falls back to the default page size.
	mock.ExpectQuery("SELECT (.+) FROM chat_histories").
		WithArgs(workspaceID, defaultFilterLimit, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"id", "workspace_id", "role", "content", "chat_metadata", "created_at",
		}).
			AddRow(uuid.New(), workspaceID, domain.ChatRoleUser, "question", []byte(nil), now).
			AddRow(uuid.New(), workspaceID, domain.ChatRoleAssistant, "answer", []byte(`{"model":"gpt-4"}`), now))

	messages, err := repo.ListChatHistory(ctx, workspaceID, 0, 0)
	require.NoError(t, err)
	require.Len(t, messages, 2)
	assert.Equal(t, domain.ChatRoleAssistant, messages[1].Role)
	assert.Equal(t, "gpt-4", messages[1].Metadata["model"])
	assert.NoError(t, mock.ExpectationsWereMet())
}
