// Package domain defines the entities persisted by the paper analysis service.
package domain

import (
	"time"

	"github.com/google/uuid"
)

// User is an identity from the external OAuth provider.
type User struct {
	ID          uuid.UUID
	ExternalID  string
	Email       string
	DisplayName string
	AvatarURL   string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Workspace is the tenant-scoping container owning papers, chat history,
// and selections. Every content entity below Paper is transitively scoped
// to exactly one workspace.
type Workspace struct {
	ID        uuid.UUID
	OwnerID   uuid.UUID
	Name      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Chat message roles.
const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

// ChatMessage is one message within a workspace conversation.
type ChatMessage struct {
	ID          uuid.UUID
	WorkspaceID uuid.UUID
	Role        string
	Content     string
	Metadata    map[string]interface{}
	CreatedAt   time.Time
}

// SystemSetting is a key-value configuration row with a JSON value.
type SystemSetting struct {
	ID          uuid.UUID
	Key         string
	Value       map[string]interface{}
	Description string
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// Well-known system setting keys.
const (
	// SettingWebhookBaseURL overrides the configured n8n base URL.
	SettingWebhookBaseURL = "webhook_base_url"
)
