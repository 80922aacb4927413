package storage

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"gatekeeper/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFactory_Create(t *testing.T) {
	factory := NewFactory(models.RateLimitConfig{Window: time.Minute, CleanupInterval: time.Minute})
	ctx := context.Background()

	tests := []struct {
		name     string
		config   models.StorageConfig
		wantType interface{}
		wantErr  string
	}{
		{
			name:     "memory",
			config:   models.StorageConfig{Type: models.StorageTypeMemory},
			wantType: &MemoryStore{},
		},
		{
			name: "sqlite",
			config: models.StorageConfig{
				Type:     models.StorageTypeSQLite,
				Database: models.DatabaseConfig{DSN: "file:" + filepath.Join(t.TempDir(), "factory.db")},
			},
			wantType: &SQLiteStore{},
		},
		{
			name:    "sqlite without dsn",
			config:  models.StorageConfig{Type: models.StorageTypeSQLite},
			wantErr: "connection string is required",
		},
		{
			name:    "redis without address",
			config:  models.StorageConfig{Type: models.StorageTypeRedis},
			wantErr: "address is required",
		},
		{
			name:    "dynamodb without table",
			config:  models.StorageConfig{Type: models.StorageTypeDynamoDB},
			wantErr: "table is required",
		},
		{
			name:    "unsupported",
			config:  models.StorageConfig{Type: "etcd"},
			wantErr: "unsupported storage type: etcd",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store, err := factory.Create(ctx, tt.config)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			defer store.Close()
			assert.IsType(t, tt.wantType, store)
		})
	}
}

func TestFactory_GetSupportedProviders(t *testing.T) {
	providers := NewFactory(models.RateLimitConfig{}).GetSupportedProviders()
	assert.ElementsMatch(t, []string{"memory", "sqlite", "postgres", "redis", "dynamodb"}, providers)
}
