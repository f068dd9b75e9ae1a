package repository

import (
	"context"

	"github.com/google/uuid"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// WorkspaceRepository handles users, workspaces, and chat history.
type WorkspaceRepository interface {
	// UpsertUser creates or updates a user keyed by the OAuth external ID.
	// Profile fields are refreshed on conflict.
	UpsertUser(ctx context.Context, user *domain.User) (*domain.User, error)

	// GetUserByExternalID retrieves a user by the OAuth subject.
	// Returns domain.ErrNotFound if no matching user exists.
	GetUserByExternalID(ctx context.Context, externalID string) (*domain.User, error)

	// CreateWorkspace inserts a new workspace for an owner.
	// Returns domain.ErrNotFound if the owner does not exist.
	CreateWorkspace(ctx context.Context, workspace *domain.Workspace) (*domain.Workspace, error)

	// GetWorkspace retrieves a workspace by ID.
	// Returns domain.ErrNotFound if no matching workspace exists.
	GetWorkspace(ctx context.Context, id uuid.UUID) (*domain.Workspace, error)

	// ListWorkspacesByOwner retrieves an owner's workspaces, oldest first.
	ListWorkspacesByOwner(ctx context.Context, ownerID uuid.UUID) ([]*domain.Workspace, error)

	// DeleteWorkspace removes a workspace; all scoped content cascades.
	// Returns domain.ErrNotFound if the workspace does not exist.
	DeleteWorkspace(ctx context.Context, id uuid.UUID) error

	// AppendChatMessage inserts a chat message into a workspace conversation.
	// Returns domain.ErrNotFound if the workspace does not exist.
	AppendChatMessage(ctx context.Context, message *domain.ChatMessage) (*domain.ChatMessage, error)

	// ListChatHistory retrieves a workspace's messages, oldest first,
	// up to limit starting at offset.
	ListChatHistory(ctx context.Context, workspaceID uuid.UUID, limit, offset int) ([]*domain.ChatMessage, error)
}
