package storage

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/plugwatch/plugwatch/internal/model"
)

var ErrNotFound = errors.New("not found")

// Insert stores a new interval and returns its assigned id.
func (r *Repository) Insert(ctx context.Context, iv model.OutageInterval) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO outage_intervals (start_time_ms, end_time_ms, duration_seconds, source, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		iv.StartTimeMs,
		fromInt64Ptr(iv.EndTimeMs),
		fromInt64Ptr(iv.DurationSeconds),
		string(iv.Source),
		iv.CreatedAt.UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// Update replaces the stored record by id. Used only to close an ongoing
// interval.
func (r *Repository) Update(ctx context.Context, iv model.OutageInterval) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outage_intervals
		SET start_time_ms = ?, end_time_ms = ?, duration_seconds = ?, source = ?
		WHERE id = ?`,
		iv.StartTimeMs,
		fromInt64Ptr(iv.EndTimeMs),
		fromInt64Ptr(iv.DurationSeconds),
		string(iv.Source),
		iv.ID,
	)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes one interval. Deleting an unknown id is a no-op.
func (r *Repository) Delete(ctx context.Context, id int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outage_intervals WHERE id = ?`, id)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteAll removes every interval and returns the number removed.
func (r *Repository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM outage_intervals`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// DeleteForRange removes intervals whose start falls in [startMs, endMs).
func (r *Repository) DeleteForRange(ctx context.Context, startMs, endMs int64) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM outage_intervals WHERE start_time_ms >= ? AND start_time_ms < ?`,
		startMs, endMs)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// FindOngoing returns all intervals without an end time, newest first.
func (r *Repository) FindOngoing(ctx context.Context) ([]model.OutageInterval, error) {
	return r.query(ctx, `
		SELECT id, start_time_ms, end_time_ms, duration_seconds, source, created_at
		FROM outage_intervals
		WHERE end_time_ms IS NULL
		ORDER BY start_time_ms DESC`)
}

// FindForRange returns intervals whose start falls in [startMs, endMs),
// newest first. Intervals that only span into the range are excluded.
func (r *Repository) FindForRange(ctx context.Context, startMs, endMs int64) ([]model.OutageInterval, error) {
	return r.query(ctx, `
		SELECT id, start_time_ms, end_time_ms, duration_seconds, source, created_at
		FROM outage_intervals
		WHERE start_time_ms >= ? AND start_time_ms < ?
		ORDER BY start_time_ms DESC`, startMs, endMs)
}

// FindSpanning returns intervals overlapping [startMs, endMs): those starting
// inside it, those ending inside it, and earlier starters that are still open
// or end at or after the range start.
func (r *Repository) FindSpanning(ctx context.Context, startMs, endMs int64) ([]model.OutageInterval, error) {
	return r.query(ctx, `
		SELECT id, start_time_ms, end_time_ms, duration_seconds, source, created_at
		FROM outage_intervals
		WHERE (start_time_ms >= ? AND start_time_ms < ?)
		   OR (start_time_ms < ? AND (end_time_ms IS NULL OR end_time_ms >= ?))
		   OR (end_time_ms IS NOT NULL AND end_time_ms >= ? AND end_time_ms < ?)
		ORDER BY start_time_ms DESC`,
		startMs, endMs, startMs, startMs, startMs, endMs)
}

// ListAll returns every interval, newest start first.
func (r *Repository) ListAll(ctx context.Context) ([]model.OutageInterval, error) {
	return r.query(ctx, `
		SELECT id, start_time_ms, end_time_ms, duration_seconds, source, created_at
		FROM outage_intervals
		ORDER BY start_time_ms DESC`)
}

func (r *Repository) query(ctx context.Context, stmt string, args ...any) ([]model.OutageInterval, error) {
	rows, err := r.db.QueryContext(ctx, stmt, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []model.OutageInterval
	for rows.Next() {
		var (
			iv            model.OutageInterval
			endMs, durSec sql.NullInt64
			source        string
			createdAt     string
		)
		if err := rows.Scan(&iv.ID, &iv.StartTimeMs, &endMs, &durSec, &source, &createdAt); err != nil {
			return nil, err
		}
		iv.EndTimeMs = toInt64Ptr(endMs)
		iv.DurationSeconds = toInt64Ptr(durSec)
		iv.Source = model.SignalKind(source)
		if ts, err := time.Parse(time.RFC3339Nano, createdAt); err == nil {
			iv.CreatedAt = ts.UTC()
		}
		result = append(result, iv)
	}
	return result, rows.Err()
}

func toInt64Ptr(v sql.NullInt64) *int64 {
	if !v.Valid {
		return nil
	}
	value := v.Int64
	return &value
}

func fromInt64Ptr(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}
