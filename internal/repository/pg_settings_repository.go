package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/paperlyzer/analysis-service/internal/domain"
)

// Compile-time interface verification.
var _ SettingsRepository = (*PgSettingsRepository)(nil)

// PgSettingsRepository is a PostgreSQL implementation of SettingsRepository.
type PgSettingsRepository struct {
	db DBTX
}

// NewPgSettingsRepository creates a new PostgreSQL settings repository.
func NewPgSettingsRepository(db DBTX) *PgSettingsRepository {
	return &PgSettingsRepository{db: db}
}

// Get retrieves a setting by key.
func (r *PgSettingsRepository) Get(ctx context.Context, key string) (*domain.SystemSetting, error) {
	if key == "" {
		return nil, domain.NewValidationError("setting_key", "setting key is required")
	}

	query := `
		SELECT id, setting_key, setting_value, description, created_at, updated_at
		FROM system_settings
		WHERE setting_key = $1`

	row := r.db.QueryRow(ctx, query, key)
	setting, err := scanSetting(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.NewNotFoundError("setting", key)
		}
		return nil, fmt.Errorf("failed to get setting: %w", err)
	}

	return setting, nil
}

// Set creates or replaces a setting's value and description.
func (r *PgSettingsRepository) Set(ctx context.Context, key string, value map[string]interface{}, description string) (*domain.SystemSetting, error) {
	if key == "" {
		return nil, domain.NewValidationError("setting_key", "setting key is required")
	}

	valueJSON, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal setting value: %w", err)
	}

	query := `
		INSERT INTO system_settings (id, setting_key, setting_value, description, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (setting_key) DO UPDATE SET
			setting_value = EXCLUDED.setting_value,
			description = EXCLUDED.description,
			updated_at = NOW()
		RETURNING id, setting_key, setting_value, description, created_at, updated_at`

	row := r.db.QueryRow(ctx, query, uuid.New(), key, valueJSON, description, time.Now().UTC())
	setting, err := scanSetting(row)
	if err != nil {
		return nil, fmt.Errorf("failed to set setting: %w", err)
	}

	return setting, nil
}

// List retrieves all settings ordered by key.
func (r *PgSettingsRepository) List(ctx context.Context) ([]*domain.SystemSetting, error) {
	query := `
		SELECT id, setting_key, setting_value, description, created_at, updated_at
		FROM system_settings
		ORDER BY setting_key`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list settings: %w", err)
	}
	defer rows.Close()

	var settings []*domain.SystemSetting
	for rows.Next() {
		setting, err := scanSetting(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan setting: %w", err)
		}
		settings = append(settings, setting)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating settings: %w", err)
	}

	return settings, nil
}

// Delete removes a setting.
func (r *PgSettingsRepository) Delete(ctx context.Context, key string) error {
	result, err := r.db.Exec(ctx, `DELETE FROM system_settings WHERE setting_key = $1`, key)
	if err != nil {
		return fmt.Errorf("failed to delete setting: %w", err)
	}

	if result.RowsAffected() == 0 {
		return domain.NewNotFoundError("setting", key)
	}

	return nil
}

func scanSetting(row pgx.Row) (*domain.SystemSetting, error) {
	var setting domain.SystemSetting
	var valueJSON []byte
	err := row.Scan(&setting.ID, &setting.Key, &valueJSON, &setting.Description, &setting.CreatedAt, &setting.UpdatedAt)
	if err != nil {
		return nil, err
	}

	if len(valueJSON) > 0 {
		if err := json.Unmarshal(valueJSON, &setting.Value); err != nil {
			return nil, fmt.Errorf("failed to unmarshal setting value: %w", err)
		}
	}

	return &setting, nil
}
