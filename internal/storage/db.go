package storage

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"
)

// Repository provides durable storage for outage intervals and settings.
type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

func New(ctx context.Context, dbPath string, logger *slog.Logger) (*Repository, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)
	db.SetConnMaxIdleTime(0)

	repo := &Repository{db: db, logger: logger}
	if err := repo.migrate(ctx); err != nil {
		_ = db.Close()
		return nil, err
	}
	return repo, nil
}

func (r *Repository) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}

func (r *Repository) migrate(ctx context.Context) error {
	statements := []string{
		`PRAGMA journal_mode = WAL;`,
		`CREATE TABLE IF NOT EXISTS outage_intervals (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			start_time_ms INTEGER NOT NULL,
			end_time_ms INTEGER,
			duration_seconds INTEGER,
			source TEXT NOT NULL,
			created_at TEXT NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS app_settings (
			id INTEGER PRIMARY KEY CHECK (id = 1),
			debounce_window_ms INTEGER NOT NULL,
			monitoring_enabled INTEGER NOT NULL,
			last_state TEXT NOT NULL DEFAULT '',
			last_export_at TEXT,
			last_export_hash TEXT NOT NULL DEFAULT '',
			heartbeat_at TEXT,
			updated_at TEXT NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_outage_intervals_start ON outage_intervals(start_time_ms);`,
		`CREATE INDEX IF NOT EXISTS idx_outage_intervals_open ON outage_intervals(end_time_ms) WHERE end_time_ms IS NULL;`,
	}

	for _, stmt := range statements {
		if _, err := r.db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate failed: %w", err)
		}
	}
	return nil
}
