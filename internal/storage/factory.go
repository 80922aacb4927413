package storage

import (
	"context"
	"fmt"
	"time"

	"gatekeeper/internal/models"
)

// Factory creates window stores from configuration. Window and
// CleanupInterval drive the memory store's background purge.
type Factory struct {
	Window          time.Duration
	CleanupInterval time.Duration
}

// NewFactory creates a factory for the given rate limit policy.
func NewFactory(rl models.RateLimitConfig) *Factory {
	return &Factory{
		Window:          rl.Window,
		CleanupInterval: rl.CleanupInterval,
	}
}

// Create instantiates a store based on the provided configuration.
// Supported providers:
//   - memory: process-local map (default, single instance only)
//   - sqlite: SQLite file or in-memory database
//   - postgres: PostgreSQL via a pgx connection pool
//   - redis: Redis hash per key with TTL eviction
//   - dynamodb: DynamoDB table with TTL eviction
func (f *Factory) Create(ctx context.Context, config models.StorageConfig) (Store, error) {
	switch config.Type {
	case models.StorageTypeMemory:
		return NewMemoryStore(f.Window, f.CleanupInterval), nil
	case models.StorageTypeSQLite:
		return NewSQLiteStore(config.Database)
	case models.StorageTypePostgres:
		return NewPostgresStore(ctx, config.Database)
	case models.StorageTypeRedis:
		return NewRedisStore(ctx, config.Redis)
	case models.StorageTypeDynamoDB:
		return NewDynamoDBStore(ctx, config.DynamoDB)
	default:
		return nil, fmt.Errorf("unsupported storage type: %s", config.Type)
	}
}

// GetSupportedProviders returns a list of all supported storage provider types
func (f *Factory) GetSupportedProviders() []string {
	return []string{
		models.StorageTypeMemory,
		models.StorageTypeSQLite,
		models.StorageTypePostgres,
		models.StorageTypeRedis,
		models.StorageTypeDynamoDB,
	}
}
