package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/plugwatch/plugwatch/internal/model"
)

// LoadSettings returns the persisted settings, or defaults when nothing has
// been saved yet.
func (r *Repository) LoadSettings(ctx context.Context) (model.Settings, error) {
	var (
		s         model.Settings
		enabled   int
		exportAt  sql.NullString
		updatedAt string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT debounce_window_ms, monitoring_enabled, last_state, last_export_at, last_export_hash, updated_at
		FROM app_settings WHERE id = 1`).
		Scan(&s.DebounceWindowMs, &enabled, &s.LastState, &exportAt, &s.LastExportHash, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultSettings(), nil
	}
	if err != nil {
		return model.Settings{}, err
	}
	s.MonitoringEnabled = enabled != 0
	s.LastExportAt = toTimePtr(exportAt)
	if ts, err := time.Parse(time.RFC3339Nano, updatedAt); err == nil {
		s.UpdatedAt = ts.UTC()
	}
	return s, nil
}

// SaveSettings upserts the singleton settings row.
func (r *Repository) SaveSettings(ctx context.Context, s model.Settings) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_settings (id, debounce_window_ms, monitoring_enabled, last_state, last_export_at, last_export_hash, updated_at)
		VALUES (1, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			debounce_window_ms=excluded.debounce_window_ms,
			monitoring_enabled=excluded.monitoring_enabled,
			last_state=excluded.last_state,
			last_export_at=excluded.last_export_at,
			last_export_hash=excluded.last_export_hash,
			updated_at=excluded.updated_at`,
		s.DebounceWindowMs,
		boolToInt(s.MonitoringEnabled),
		s.LastState,
		fromTimePtr(s.LastExportAt),
		s.LastExportHash,
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// DebounceWindowMs reads the current debounce window. It is re-read on every
// signal so a settings change applies from the next signal on.
func (r *Repository) DebounceWindowMs(ctx context.Context) (int64, error) {
	var ms int64
	err := r.db.QueryRowContext(ctx,
		`SELECT debounce_window_ms FROM app_settings WHERE id = 1`).Scan(&ms)
	if errors.Is(err, sql.ErrNoRows) {
		return model.DefaultDebounceWindowMs, nil
	}
	if err != nil {
		return 0, err
	}
	return ms, nil
}

// SetMonitoringEnabled flips the monitoring flag, creating the settings row
// if needed.
func (r *Repository) SetMonitoringEnabled(ctx context.Context, enabled bool) error {
	s, err := r.LoadSettings(ctx)
	if err != nil {
		return err
	}
	s.MonitoringEnabled = enabled
	return r.SaveSettings(ctx, s)
}

// RecordExport stores the last export timestamp and content hash.
func (r *Repository) RecordExport(ctx context.Context, at time.Time, hash string) error {
	s, err := r.LoadSettings(ctx)
	if err != nil {
		return err
	}
	at = at.UTC()
	s.LastExportAt = &at
	s.LastExportHash = hash
	return r.SaveSettings(ctx, s)
}

// RecordHeartbeat persists the monitoring liveness timestamp.
func (r *Repository) RecordHeartbeat(ctx context.Context, at time.Time) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO app_settings (id, debounce_window_ms, monitoring_enabled, heartbeat_at, updated_at)
		VALUES (1, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET heartbeat_at=excluded.heartbeat_at`,
		model.DefaultDebounceWindowMs,
		at.UTC().Format(time.RFC3339Nano),
		time.Now().UTC().Format(time.RFC3339Nano),
	)
	return err
}

// LastHeartbeat returns the last persisted liveness timestamp, if any.
func (r *Repository) LastHeartbeat(ctx context.Context) (*time.Time, error) {
	var raw sql.NullString
	err := r.db.QueryRowContext(ctx,
		`SELECT heartbeat_at FROM app_settings WHERE id = 1`).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return toTimePtr(raw), nil
}

func toTimePtr(v sql.NullString) *time.Time {
	if !v.Valid || v.String == "" {
		return nil
	}
	ts, err := time.Parse(time.RFC3339Nano, v.String)
	if err != nil {
		return nil
	}
	utc := ts.UTC()
	return &utc
}

func fromTimePtr(v *time.Time) any {
	if v == nil {
		return nil
	}
	return v.UTC().Format(time.RFC3339Nano)
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
