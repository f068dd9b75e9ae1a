package repository

import (
	"context"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// SettingsRepository handles system settings rows. The diagnostics read
// the webhook base URL override from here when present.
type SettingsRepository interface {
	// Get retrieves a setting by key.
	// Returns domain.ErrNotFound if the key does not exist.
	Get(ctx context.Context, key string) (*domain.SystemSetting, error)

	// Set creates or replaces a setting's value and description.
	Set(ctx context.Context, key string, value map[string]interface{}, description string) (*domain.SystemSetting, error)

	// List retrieves all settings ordered by key.
	List(ctx context.Context) ([]*domain.SystemSetting, error)

	// Delete removes a setting.
	// Returns domain.ErrNotFound if the key does not exist.
	Delete(ctx context.Context, key string) error
}
