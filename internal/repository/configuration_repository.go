package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/vigilance-tracker-api/internal/models"
)

const (
	selectConfigurations = `SELECT key, value, type, description, updated_by, updated_at FROM configurations`

	upsertConfiguration = `INSERT INTO configurations (key, value, type, description, updated_by, updated_at)
VALUES (:key, :value, :type, :description, :updated_by, :updated_at)
ON CONFLICT (key)
DO UPDATE SET value = EXCLUDED.value, type = EXCLUDED.type, description = EXCLUDED.description,
              updated_by = EXCLUDED.updated_by, updated_at = EXCLUDED.updated_at`
)

// ConfigurationRepository stores the key/value toggles behind the field rules.
type ConfigurationRepository struct {
	db *sqlx.DB
}

func NewConfigurationRepository(db *sqlx.DB) *ConfigurationRepository {
	return &ConfigurationRepository{db: db}
}

// ListBooleans returns every BOOLEAN entry ordered by key.
func (r *ConfigurationRepository) ListBooleans(ctx context.Context) ([]models.Configuration, error) {
	var out []models.Configuration
	err := r.db.SelectContext(ctx, &out, selectConfigurations+` WHERE type = $1 ORDER BY key`, models.ConfigurationTypeBoolean)
	if err != nil {
		return nil, fmt.Errorf("list field rule toggles: %w", err)
	}
	return out, nil
}

// Get returns sql.ErrNoRows untouched so callers can fall back to defaults.
func (r *ConfigurationRepository) Get(ctx context.Context, key string) (*models.Configuration, error) {
	var cfg models.Configuration
	if err := r.db.GetContext(ctx, &cfg, selectConfigurations+` WHERE key = $1`, key); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (r *ConfigurationRepository) Upsert(ctx context.Context, cfg *models.Configuration) error {
	cfg.UpdatedAt = time.Now().UTC()
	if _, err := r.db.NamedExecContext(ctx, upsertConfiguration, cfg); err != nil {
		return fmt.Errorf("upsert configuration %s: %w", cfg.Key, err)
	}
	return nil
}

// BulkUpsert applies a whole field rule form atomically.
func (r *ConfigurationRepository) BulkUpsert(ctx context.Context, cfgs []models.Configuration) error {
	if len(cfgs) == 0 {
		return nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin field rule tx: %w", err)
	}
	now := time.Now().UTC()
	for i := range cfgs {
		cfgs[i].UpdatedAt = now
		if _, err := tx.NamedExecContext(ctx, upsertConfiguration, cfgs[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("upsert configuration %s: %w", cfgs[i].Key, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit field rule tx: %w", err)
	}
	return nil
}
