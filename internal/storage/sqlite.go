package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"

	_ "modernc.org/sqlite"
)

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS rate_limit_windows (
		key          TEXT PRIMARY KEY,
		count        INTEGER NOT NULL,
		window_start INTEGER NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_rate_limit_windows_start ON rate_limit_windows (window_start)`,
}

// The CASE arms read the pre-update row, so both columns see the same
// expiry decision.
const sqliteRecord = `
INSERT INTO rate_limit_windows (key, count, window_start) VALUES (?, 1, ?)
ON CONFLICT(key) DO UPDATE SET
	count = CASE WHEN excluded.window_start - window_start > ? THEN 1 ELSE count + 1 END,
	window_start = CASE WHEN excluded.window_start - window_start > ? THEN excluded.window_start ELSE window_start END
RETURNING count, window_start`

// SQLiteStore persists windows in a SQLite database. Each Record is a single
// UPSERT statement and the pool is limited to one connection, so updates to
// a key are serialized.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens the database at cfg.DSN and creates the schema.
func NewSQLiteStore(cfg models.DatabaseConfig) (*SQLiteStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connection string is required for SQLite storage")
	}

	db, err := sql.Open("sqlite", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A recycled connection would drop a :memory: database.
	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(0)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	for _, stmt := range sqliteSchema {
		if _, err := db.Exec(stmt); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to create schema: %w", err)
		}
	}

	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	windowUs := window.Microseconds()
	var count, start int64
	err := s.db.QueryRowContext(ctx, sqliteRecord, key, toMicros(now), windowUs, windowUs).Scan(&count, &start)
	if err != nil {
		return Window{}, fmt.Errorf("failed to record request for %s: %w", key, err)
	}
	return Window{Count: count, Start: fromMicros(start)}, nil
}

func (s *SQLiteStore) Get(ctx context.Context, key string) (Window, error) {
	var count, start int64
	err := s.db.QueryRowContext(ctx,
		`SELECT count, window_start FROM rate_limit_windows WHERE key = ?`, key).Scan(&count, &start)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Window{}, ErrNotFound
		}
		return Window{}, fmt.Errorf("failed to get window for %s: %w", key, err)
	}
	return Window{Count: count, Start: fromMicros(start)}, nil
}

func (s *SQLiteStore) Reset(ctx context.Context, key string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM rate_limit_windows WHERE key = ?`, key); err != nil {
		return fmt.Errorf("failed to reset window for %s: %w", key, err)
	}
	return nil
}

func (s *SQLiteStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	res, err := s.db.ExecContext(ctx,
		`DELETE FROM rate_limit_windows WHERE ? - window_start > ?`, toMicros(now), window.Microseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired windows: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count purged windows: %w", err)
	}
	return int(n), nil
}

func (s *SQLiteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
