package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gatekeeper/internal/models"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS rate_limit_windows (
	key          TEXT PRIMARY KEY,
	count        BIGINT NOT NULL,
	window_start BIGINT NOT NULL
)`

const postgresRecord = `
INSERT INTO rate_limit_windows AS w (key, count, window_start) VALUES ($1, 1, $2)
ON CONFLICT (key) DO UPDATE SET
	count = CASE WHEN EXCLUDED.window_start - w.window_start > $3 THEN 1 ELSE w.count + 1 END,
	window_start = CASE WHEN EXCLUDED.window_start - w.window_start > $3 THEN EXCLUDED.window_start ELSE w.window_start END
RETURNING count, window_start`

// PostgresStore persists windows in PostgreSQL. Record is one INSERT ... ON
// CONFLICT statement, which takes a row lock on the key, so it is safe to
// share the table between many gatekeeper instances.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore connects a pool to cfg.DSN and creates the schema.
func NewPostgresStore(ctx context.Context, cfg models.DatabaseConfig) (*PostgresStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("connection string is required for PostgreSQL storage")
	}

	poolConfig, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to parse connection string: %w", err)
	}
	if cfg.MaxOpenConns > 0 {
		poolConfig.MaxConns = int32(cfg.MaxOpenConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		poolConfig.MaxConnLifetime = cfg.ConnMaxLifetime
	}
	if cfg.ConnMaxIdleTime > 0 {
		poolConfig.MaxConnIdleTime = cfg.ConnMaxIdleTime
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if _, err := pool.Exec(ctx, postgresSchema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &PostgresStore{pool: pool}, nil
}

func (ps *PostgresStore) Record(ctx context.Context, key string, now time.Time, window time.Duration) (Window, error) {
	var count, start int64
	err := ps.pool.QueryRow(ctx, postgresRecord, key, toMicros(now), window.Microseconds()).Scan(&count, &start)
	if err != nil {
		return Window{}, fmt.Errorf("failed to record request for %s: %w", key, err)
	}
	return Window{Count: count, Start: fromMicros(start)}, nil
}

func (ps *PostgresStore) Get(ctx context.Context, key string) (Window, error) {
	var count, start int64
	err := ps.pool.QueryRow(ctx,
		`SELECT count, window_start FROM rate_limit_windows WHERE key = $1`, key).Scan(&count, &start)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return Window{}, ErrNotFound
		}
		return Window{}, fmt.Errorf("failed to get window for %s: %w", key, err)
	}
	return Window{Count: count, Start: fromMicros(start)}, nil
}

func (ps *PostgresStore) Reset(ctx context.Context, key string) error {
	if _, err := ps.pool.Exec(ctx, `DELETE FROM rate_limit_windows WHERE key = $1`, key); err != nil {
		return fmt.Errorf("failed to reset window for %s: %w", key, err)
	}
	return nil
}

func (ps *PostgresStore) PurgeExpired(ctx context.Context, now time.Time, window time.Duration) (int, error) {
	tag, err := ps.pool.Exec(ctx,
		`DELETE FROM rate_limit_windows WHERE window_start < $1`, toMicros(now)-window.Microseconds())
	if err != nil {
		return 0, fmt.Errorf("failed to purge expired windows: %w", err)
	}
	return int(tag.RowsAffected()), nil
}

func (ps *PostgresStore) Ping(ctx context.Context) error {
	return ps.pool.Ping(ctx)
}

func (ps *PostgresStore) Close() error {
	ps.pool.Close()
	return nil
}
