// Package policy owns the trainer-configured TimeRangeSettings and its
// validation rules. The settings are a single process-wide policy record;
// every availability computation reads it, only the trainer mutates it.
package policy

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mobrickeu-cmd/gym-planner/services/planner-service/internal/model"
)

// ValidationError names the specific rule a rejected settings update violated.
// The prior settings are always retained on rejection.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid settings: %s %s", e.Field, e.Reason)
}

// Validate checks a candidate TimeRangeSettings against the policy rules.
func Validate(s model.TimeRangeSettings) error {
	if s.StartHour < 0 || s.StartHour > 23 {
		return &ValidationError{Field: "startHour", Reason: "must be between 0 and 23"}
	}
	if s.EndHour < 0 || s.EndHour > 23 {
		return &ValidationError{Field: "endHour", Reason: "must be between 0 and 23"}
	}
	if s.StartHour >= s.EndHour {
		return &ValidationError{Field: "startHour", Reason: "must be before endHour"}
	}
	if s.MaxReservationsPerSlot < 1 {
		return &ValidationError{Field: "maxReservationsPerSlot", Reason: "must be at least 1"}
	}
	return nil
}

// Store is the durable home of the settings record.
type Store interface {
	LoadSettings(ctx context.Context) (model.TimeRangeSettings, bool, error)
	SaveSettings(ctx context.Context, s model.TimeRangeSettings) error
}

// Manager mediates reads and validated writes of the settings singleton.
type Manager struct {
	store  Store
	logger *slog.Logger
}

func NewManager(store Store, logger *slog.Logger) *Manager {
	return &Manager{store: store, logger: logger}
}

// Current returns the active settings. A missing or unreadable record yields
// the defaults; records predating maxReservationsPerSlot are normalized.
func (m *Manager) Current(ctx context.Context) model.TimeRangeSettings {
	s, ok, err := m.store.LoadSettings(ctx)
	if err != nil {
		m.logger.Warn("settings load failed; using defaults", "err", err)
		return model.DefaultTimeRangeSettings()
	}
	if !ok {
		return model.DefaultTimeRangeSettings()
	}
	return s.Normalize()
}

// Update replaces the settings only after validation succeeds; otherwise the
// prior settings remain in force and the violated rule is returned.
func (m *Manager) Update(ctx context.Context, s model.TimeRangeSettings) error {
	if err := Validate(s); err != nil {
		return err
	}
	if err := m.store.SaveSettings(ctx, s); err != nil {
		return err
	}
	m.logger.Info("settings updated",
		"start_hour", s.StartHour,
		"end_hour", s.EndHour,
		"max_per_slot", s.MaxReservationsPerSlot,
	)
	return nil
}

// Reset restores the default settings and returns them.
func (m *Manager) Reset(ctx context.Context) (model.TimeRangeSettings, error) {
	def := model.DefaultTimeRangeSettings()
	if err := m.store.SaveSettings(ctx, def); err != nil {
		return model.TimeRangeSettings{}, err
	}
	return def, nil
}
