package models

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDefaultConfig(t *testing.T) {
	config := NewDefaultConfig()

	// Server defaults
	assert.Equal(t, 8080, config.Server.Port)
	assert.Equal(t, "0.0.0.0", config.Server.Host)
	assert.Equal(t, 30*time.Second, config.Server.ReadTimeout)
	assert.Equal(t, 60*time.Second, config.Server.IdleTimeout)
	assert.False(t, config.Server.TLSEnabled)
	assert.False(t, config.Server.CORS.Enabled)

	// Rate limit defaults follow the deployed rule: 10 per minute, 429
	assert.True(t, config.RateLimit.Enabled)
	assert.Equal(t, AlgorithmFixedWindow, config.RateLimit.Algorithm)
	assert.Equal(t, 10, config.RateLimit.Limit)
	assert.Equal(t, 60*time.Second, config.RateLimit.Window)
	assert.Equal(t, RateLimitModeBlock, config.RateLimit.Mode)
	assert.Equal(t, http.StatusTooManyRequests, config.RateLimit.ResponseCode)
	assert.Equal(t, PathTransformNone, config.RateLimit.PathTransformation)
	assert.Equal(t, []string{"/health"}, config.RateLimit.ExemptPaths)

	// Storage defaults
	assert.Equal(t, StorageTypeMemory, config.Storage.Type)
	assert.Equal(t, "gatekeeper:rl:", config.Storage.Redis.KeyPrefix)
	assert.Equal(t, "gatekeeper-rate-limits", config.Storage.DynamoDB.Table)

	// Logging defaults
	assert.Equal(t, "info", config.Logging.Level)
	assert.Equal(t, "json", config.Logging.Format)
	assert.Equal(t, "stdout", config.Logging.Output)

	// Metrics and observability defaults
	assert.True(t, config.Metrics.Enabled)
	assert.Equal(t, "/metrics", config.Metrics.Path)
	assert.Equal(t, 9090, config.Metrics.Port)
	assert.Equal(t, "gatekeeper", config.Observability.ServiceName)
	assert.False(t, config.Observability.Tracing.Enabled)

	require.NoError(t, config.Validate())
}

func TestServerConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*ServerConfig)
		expectError bool
		errorMsg    string
	}{
		{name: "defaults", mutate: func(*ServerConfig) {}},
		{name: "zero port", mutate: func(c *ServerConfig) { c.Port = 0 }, expectError: true, errorMsg: "port must be between"},
		{name: "port too high", mutate: func(c *ServerConfig) { c.Port = 70000 }, expectError: true, errorMsg: "port must be between"},
		{name: "empty host", mutate: func(c *ServerConfig) { c.Host = "" }, expectError: true, errorMsg: "host cannot be empty"},
		{name: "negative read timeout", mutate: func(c *ServerConfig) { c.ReadTimeout = -1 }, expectError: true, errorMsg: "read timeout"},
		{name: "tls without cert", mutate: func(c *ServerConfig) { c.TLSEnabled = true; c.TLSKeyFile = "k" }, expectError: true, errorMsg: "cert file"},
		{name: "tls without key", mutate: func(c *ServerConfig) { c.TLSEnabled = true; c.TLSCertFile = "c" }, expectError: true, errorMsg: "key file"},
		{name: "tls complete", mutate: func(c *ServerConfig) { c.TLSEnabled = true; c.TLSCertFile = "c"; c.TLSKeyFile = "k" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().Server
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestRateLimitConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		mutate      func(*RateLimitConfig)
		expectError bool
		errorMsg    string
	}{
		{name: "defaults", mutate: func(*RateLimitConfig) {}},
		{name: "disabled ignores other fields", mutate: func(c *RateLimitConfig) { c.Enabled = false; c.Limit = -1 }},
		{name: "zero limit", mutate: func(c *RateLimitConfig) { c.Limit = 0 }, expectError: true, errorMsg: "limit must be greater than zero"},
		{name: "zero window", mutate: func(c *RateLimitConfig) { c.Window = 0 }, expectError: true, errorMsg: "window must be greater than zero"},
		{name: "unknown algorithm", mutate: func(c *RateLimitConfig) { c.Algorithm = "leaky" }, expectError: true, errorMsg: "invalid algorithm"},
		{name: "token bucket without burst", mutate: func(c *RateLimitConfig) { c.Algorithm = AlgorithmTokenBucket; c.BurstSize = 0 }, expectError: true, errorMsg: "burst size"},
		{name: "token bucket", mutate: func(c *RateLimitConfig) { c.Algorithm = AlgorithmTokenBucket }},
		{name: "count mode", mutate: func(c *RateLimitConfig) { c.Mode = RateLimitModeCount }},
		{name: "unknown mode", mutate: func(c *RateLimitConfig) { c.Mode = "allow" }, expectError: true, errorMsg: "invalid mode"},
		{name: "2xx response code", mutate: func(c *RateLimitConfig) { c.ResponseCode = 200 }, expectError: true, errorMsg: "response code"},
		{name: "403 response code", mutate: func(c *RateLimitConfig) { c.ResponseCode = 403 }},
		{name: "lowercase transformation", mutate: func(c *RateLimitConfig) { c.PathTransformation = PathTransformLowercase }},
		{name: "unknown transformation", mutate: func(c *RateLimitConfig) { c.PathTransformation = "compress_white_space" }, expectError: true, errorMsg: "path transformation"},
		{name: "negative cleanup", mutate: func(c *RateLimitConfig) { c.CleanupInterval = -time.Second }, expectError: true, errorMsg: "cleanup interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := NewDefaultConfig().RateLimit
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStorageConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      StorageConfig
		expectError bool
	}{
		{name: "memory", config: StorageConfig{Type: StorageTypeMemory}},
		{name: "sqlite with dsn", config: StorageConfig{Type: StorageTypeSQLite, Database: DatabaseConfig{DSN: "file.db"}}},
		{name: "sqlite without dsn", config: StorageConfig{Type: StorageTypeSQLite}, expectError: true},
		{name: "postgres without dsn", config: StorageConfig{Type: StorageTypePostgres}, expectError: true},
		{name: "redis with addr", config: StorageConfig{Type: StorageTypeRedis, Redis: RedisConfig{Addr: "localhost:6379"}}},
		{name: "redis without addr", config: StorageConfig{Type: StorageTypeRedis}, expectError: true},
		{name: "dynamodb with table", config: StorageConfig{Type: StorageTypeDynamoDB, DynamoDB: DynamoDBConfig{Table: "t"}}},
		{name: "dynamodb without table", config: StorageConfig{Type: StorageTypeDynamoDB}, expectError: true},
		{name: "unknown type", config: StorageConfig{Type: "json"}, expectError: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoggingConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      LoggingConfig
		expectError bool
	}{
		{name: "valid", config: LoggingConfig{Level: "info", Format: "json", Output: "stdout"}},
		{name: "text to stderr", config: LoggingConfig{Level: "debug", Format: "text", Output: "stderr"}},
		{name: "invalid level", config: LoggingConfig{Level: "trace", Format: "json", Output: "stdout"}, expectError: true},
		{name: "invalid format", config: LoggingConfig{Level: "info", Format: "xml", Output: "stdout"}, expectError: true},
		{name: "invalid output", config: LoggingConfig{Level: "info", Format: "json", Output: "syslog"}, expectError: true},
		{name: "file without path", config: LoggingConfig{Level: "info", Format: "json", Output: "file"}, expectError: true},
		{name: "file with path", config: LoggingConfig{Level: "info", Format: "json", Output: "file", FilePath: "/tmp/x.log"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestMetricsConfig_Validate(t *testing.T) {
	assert.NoError(t, (&MetricsConfig{Enabled: false}).Validate())
	assert.NoError(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Path: "", Port: 9090}).Validate())
	assert.Error(t, (&MetricsConfig{Enabled: true, Path: "/metrics", Port: 0}).Validate())
}

func TestObservabilityConfig_Validate(t *testing.T) {
	tests := []struct {
		name        string
		config      ObservabilityConfig
		expectError bool
		errorMsg    string
	}{
		{
			name:   "tracing disabled",
			config: ObservabilityConfig{Tracing: TracingConfig{Enabled: false}},
		},
		{
			name:   "valid stdout tracing",
			config: ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.0}},
		},
		{
			name:   "valid otlp tracing",
			config: ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 0.5, OTLPEndpoint: "localhost:4317"}},
		},
		{
			name:        "otlp without endpoint",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "otlp", SampleRate: 1.0}},
			expectError: true,
			errorMsg:    "OTLP endpoint",
		},
		{
			name:        "invalid exporter",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "jaeger", SampleRate: 1.0}},
			expectError: true,
			errorMsg:    "invalid trace exporter",
		},
		{
			name:        "sample rate out of range",
			config:      ObservabilityConfig{Tracing: TracingConfig{Enabled: true, Exporter: "stdout", SampleRate: 1.5}},
			expectError: true,
			errorMsg:    "sample rate",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.config.Validate()
			if tt.expectError {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.errorMsg)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestConfig_Validate_WrapsSection(t *testing.T) {
	config := NewDefaultConfig()
	config.RateLimit.Limit = 0

	err := config.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid rate limit config")
}

func TestRateLimitConfig_IsExempt(t *testing.T) {
	cfg := NewDefaultConfig().RateLimit
	assert.True(t, cfg.IsExempt("/health"))
	assert.False(t, cfg.IsExempt("/hello"))
	assert.False(t, cfg.IsExempt("/health/"))
}
