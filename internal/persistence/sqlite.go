package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLite wraps the embedded database used when STORE_DRIVER=sqlite.
type SQLite struct {
	DB *sql.DB
}

// NewSQLite opens (or creates) the database file and applies the schema.
func NewSQLite(ctx context.Context, path string, logger *zap.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("sqlite: open: %w", err)
	}
	// a single writer keeps CAS updates serialized without SQLITE_BUSY retries
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("sqlite: foreign keys: %w", err)
	}

	s := &SQLite{DB: db}
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, err
	}
	if logger != nil {
		logger.Info("opened sqlite store", zap.String("path", path))
	}
	return s, nil
}

func (s *SQLite) migrate(ctx context.Context) error {
	_, err := s.DB.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS tickets (
			ticket_number     TEXT PRIMARY KEY COLLATE NOCASE,
			requester_id      TEXT NOT NULL,
			requester_name    TEXT NOT NULL,
			item_description  TEXT NOT NULL,
			quantity          TEXT NOT NULL,
			reference_link    TEXT NOT NULL,
			justification     TEXT NOT NULL,
			primary_status    TEXT NOT NULL,
			treasury_progress TEXT,
			dept_reason       TEXT NOT NULL DEFAULT '',
			treasury_reason   TEXT NOT NULL DEFAULT '',
			notified_flags    TEXT NOT NULL DEFAULT '[]',
			created_at        INTEGER NOT NULL,
			last_updated      INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_last_updated ON tickets(last_updated);

		CREATE TABLE IF NOT EXISTS ticket_history (
			id                TEXT PRIMARY KEY,
			ticket_number     TEXT NOT NULL REFERENCES tickets(ticket_number),
			actor_id          TEXT NOT NULL,
			actor_role        TEXT NOT NULL,
			from_status       TEXT,
			to_status         TEXT NOT NULL,
			treasury_progress TEXT,
			reason            TEXT NOT NULL DEFAULT '',
			created_at        INTEGER NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_ticket_history_ticket ON ticket_history(ticket_number, created_at);
	`)
	if err != nil {
		return fmt.Errorf("sqlite: migrate: %w", err)
	}
	return nil
}

// Close releases the database handle.
func (s *SQLite) Close() {
	if s != nil && s.DB != nil {
		_ = s.DB.Close()
	}
}

// Ping verifies the database is reachable.
func (s *SQLite) Ping(ctx context.Context) error {
	if s == nil || s.DB == nil {
		return errors.New("sqlite not configured")
	}
	return s.DB.PingContext(ctx)
}
