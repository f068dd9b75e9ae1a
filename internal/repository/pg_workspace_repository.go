package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ WorkspaceRepository = (*PgWorkspaceRepository)(nil)

// PgWorkspaceRepository is a PostgreSQL implementation of WorkspaceRepository.
type PgWorkspaceRepository struct {
	db DBTX
}

// NewPgWorkspaceRepository creates a new PostgreSQL workspace repository.
func NewPgWorkspaceRepository(db DBTX) *PgWorkspaceRepository {
	return &PgWorkspaceRepository{db: db}
}

// UpsertUser creates or updates a user keyed by the OAuth external ID.
func (r *PgWorkspaceRepository) UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error) {
	if user == nil {
		return nil, domain.NewValidationError("user", "user cannot be nil")
	}
	if user.ExternalID == "" {
		return nil, domain.NewValidationError("external_id", "external ID is required")
	}

	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO users (id, external_id, email, display_name, avatar_url, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		ON CONFLICT (external_id) DO UPDATE SET
			email = EXCLUDED.email,
			display_name = EXCLUDED.display_name,
			avatar_url = EXCLUDED.avatar_url,
			updated_at = NOW()
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		user.ID, user.ExternalID, user.Email, user.DisplayName, user.AvatarURL, now,
	).Scan(&user.ID, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to upsert user: %w", err)
	}

	return user, nil
}

// GetUserByExternalID retrieves a user by the OAuth subject.
func (r *PgWorkspaceRepository) GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error) {
	if externalID == "" {
		return nil, domain.NewValidationError("external_id", "external ID is required")
	}

	query := `
		SELECT id, external_id, email, display_name, avatar_url, created_at, updated_at
		FROM users
		WHERE external_id = $1`

	var user domain.User
	err := r.db.QueryRow(ctx, query, externalID).Scan(
		&user.ID, &user.ExternalID, &user.Email, &user.DisplayName, &user.AvatarURL,
		&user.CreatedAt, &user.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("user", externalID)
		}
		return nil, fmt.Errorf("failed to get user: %w", err)
	}

	return &user, nil
}

// CreateWorkspace inserts a new workspace for an owner.
func (r *PgWorkspaceRepository) CreateWorkspace(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error) {
	if workspace == nil {
		return nil, domain.NewValidationError("workspace", "workspace cannot be nil")
	}
	if workspace.OwnerID == uuid.Nil {
		return nil, domain.NewValidationError("owner_id", "owner ID is required")
	}
	if workspace.Name == "" {
		return nil, domain.NewValidationError("name", "workspace name is required")
	}

	if workspace.ID == uuid.Nil {
		workspace.ID = uuid.New()
	}
	now := time.Now().UTC()

	query := `
		INSERT INTO workspaces (id, owner_id, name, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $4)
		RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query, workspace.ID, workspace.OwnerID, workspace.Name, now).
		Scan(&workspace.ID, &workspace.CreatedAt, &workspace.UpdatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
			return nil, domain.NewNotFoundError("user", workspace.OwnerID.String())
		}
		return nil, fmt.Errorf("failed to create workspace: %w", err)
	}

	return workspace, nil
}

// GetWorkspace retrieves a workspace by ID.
func (r *PgWorkspaceRepository) GetWorkspace(ctx context.Context, id uuid.UUID) (*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM workspaces
		WHERE id = $1`

	var ws domain.Workspace
	err := r.db.QueryRow(ctx, query, id).Scan(
		&ws.ID, &ws.OwnerID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("workspace", id.String())
		}
		return nil, fmt.Errorf("failed to get workspace: %w", err)
	}

	return &ws, nil
}

// ListWorkspacesByOwner retrieves an owner's workspaces, oldest first.
func (r *PgWorkspaceRepository) ListWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Workspace, error) {
	query := `
		SELECT id, owner_id, name, created_at, updated_at
		FROM workspaces
		WHERE owner_id = $1
		ORDER BY created_at`

	rows, err := r.db.Query(ctx, query, ownerID)
	if err != nil {
		return nil, fmt.Errorf("failed to list workspaces: %w", err)
	}
	defer rows.Close()

	var workspaces []*domain.Workspace
	for rows.Next() {
		var ws domain.Workspace
		if err := rows.Scan(&ws.ID, &ws.OwnerID, &ws.Name, &ws.CreatedAt, &ws.UpdatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan workspace: %w", err)
		}
		workspaces = append(workspaces, &ws)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating workspaces: %w", err)
	}

	return workspaces, nil
}

// DeleteWorkspace removes a workspace; scoped content cascades.
func (r *PgWorkspaceRepository) DeleteWorkspace(ctx context.Context, id uuid.UUID) error {
	result, err := r.db.Exec(ctx, `DELETE FROM workspaces WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete workspace: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("workspace", id.String())
	}

	return nil
}

// AppendChatMessage inserts a chat message into a workspace conversation.
func (r *PgWorkspaceRepository) AppendChatMessage(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error) {
	if message == nil {
		return nil, domain.NewValidationError("message", "message cannot be nil")
	}
	if message.WorkspaceID == uuid.Nil {
		return nil, domain.NewValidationError("workspace_id", "workspace ID is required")
	}
	if message.Role != domain.ChatRoleUser && message.Role != domain.ChatRoleAssistant {
		return nil, domain.NewValidationError("role", fmt.Sprintf("unknown role %q", message.Role))
	}

	var metadataJSON []byte
	var err error
	if message.Metadata != nil {
		metadataJSON, err = json.Marshal(message.Metadata)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	if message.ID == uuid.Nil {
		message.ID = uuid.New()
	}

	query := `
		INSERT INTO chat_histories (id, workspace_id, role, content, chat_metadata, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at`

	err = r.db.QueryRow(ctx, query,
		message.ID, message.WorkspaceID, message.Role, message.Content, metadataJSON, time.Now().UTC(),
	).Scan(&message.ID, &message.CreatedAt)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == pgCodeForeignKeyViolation {
			return nil, domain.NewNotFoundError("workspace", message.WorkspaceID.String())
		}
		return nil, fmt.Errorf("failed to append chat message: %w", err)
	}

	return message, nil
}

// ListChatHistory retrieves a workspace's messages, oldest first.
func (r *PgWorkspaceRepository) ListChatHistory(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error) {
	applyPaginationDefaults(&limit, &offset)

	query := `
		SELECT id, workspace_id, role, content, chat_metadata, created_at
		FROM chat_histories
		WHERE workspace_id = $1
		ORDER BY created_at, id
		LIMIT $2 OFFSET $3`

	rows, err := r.db.Query(ctx, query, workspaceID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to list chat history: %w", err)
	}
	defer rows.Close()

	var messages []*domain.ChatMessage
	for rows.Next() {
		var msg domain.ChatMessage
		var metadataJSON []byte
		if err := rows.Scan(&msg.ID, &msg.WorkspaceID, &msg.Role, &msg.Content, &metadataJSON, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan chat message: %w", err)
		}
		if len(metadataJSON) > 0 {
			if err := json.Unmarshal(metadataJSON, &msg.Metadata); err != nil {
				return nil, fmt.Errorf("failed to unmarshal chat metadata: %w", err)
			}
		}
		messages = append(messages, &msg)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating chat messages: %w", err)
	}

	return messages, nil
}
