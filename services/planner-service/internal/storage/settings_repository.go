package storage

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/mobrickeu-cmd/gym-planner/libs/db"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/outbox"
)

const settingsKey = "time_range"

// SettingsRepository keeps the trainer's booking window as a single JSONB row.
type SettingsRepository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewSettingsRepository(pool *db.Pool, ob *outbox.Repository) *SettingsRepository {
	return &SettingsRepository{pool: pool, outbox: ob}
}

func (r *SettingsRepository) LoadSettings(ctx context.Context) (model.TimeRangeSettings, bool, error) {
	var raw []byte
	err := r.pool.QueryRow(ctx, `
		SELECT value FROM settings WHERE key = $1
	`, settingsKey).Scan(&raw)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return model.TimeRangeSettings{}, false, nil
		}
		return model.TimeRangeSettings{}, false, err
	}

	var s model.TimeRangeSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		return model.TimeRangeSettings{}, false, err
	}
	return s, true, nil
}

func (r *SettingsRepository) SaveSettings(ctx context.Context, s model.TimeRangeSettings) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return err
	}

	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `
		INSERT INTO settings (key, value)
		VALUES ($1, $2)
		ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = now()
	`, settingsKey, raw); err != nil {
		return err
	}

	if r.outbox != nil {
		evt := outbox.Event{
			AggregateType: "settings",
			AggregateID:   settingsKey,
			EventType:     outbox.EventSettingsUpdated,
			Payload:       raw,
		}
		if err := r.outbox.Insert(ctx, tx, evt); err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}
