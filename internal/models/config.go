// Package models - Service configuration.
// This file defines the configuration tree shared by the HTTP server, the
// Lambda entrypoint and the limitctl CLI.
//
// Configuration layout:
// - Server: HTTP listener, timeouts, TLS and CORS
// - RateLimit: admission control policy (limit, window, response)
// - Storage: where rate limit windows live
// - Logging, Metrics, Observability: ambient concerns
// - Lambda: settings that only apply when running inside AWS Lambda
package models

import (
	"errors"
	"fmt"
	"net/http"
	"slices"
	"time"
)

// Storage type constants
const (
	StorageTypeMemory   = "memory"
	StorageTypeSQLite   = "sqlite"
	StorageTypePostgres = "postgres"
	StorageTypeRedis    = "redis"
	StorageTypeDynamoDB = "dynamodb"
)

// Rate limit algorithms
const (
	AlgorithmFixedWindow = "fixed_window"
	AlgorithmTokenBucket = "token_bucket"
)

// Rate limit modes. Count records and logs over-limit requests without
// rejecting them.
const (
	RateLimitModeBlock = "block"
	RateLimitModeCount = "count"
)

// Path transformations applied before the path becomes part of a rate limit key.
const (
	PathTransformNone      = "none"
	PathTransformLowercase = "lowercase"
	PathTransformURLDecode = "url_decode"
)

// Config is the root configuration structure.
type Config struct {
	Server        ServerConfig        `yaml:"server" json:"server"`
	RateLimit     RateLimitConfig     `yaml:"rate_limit" json:"rate_limit"`
	Storage       StorageConfig       `yaml:"storage" json:"storage"`
	Logging       LoggingConfig       `yaml:"logging" json:"logging"`
	Metrics       MetricsConfig       `yaml:"metrics" json:"metrics"`
	Observability ObservabilityConfig `yaml:"observability" json:"observability"`
	Lambda        LambdaConfig        `yaml:"lambda" json:"lambda"`
}

type ServerConfig struct {
	Port         int           `yaml:"port" json:"port"`
	Host         string        `yaml:"host" json:"host"`
	ReadTimeout  time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout  time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	TLSEnabled   bool          `yaml:"tls_enabled" json:"tls_enabled"`
	TLSCertFile  string        `yaml:"tls_cert_file" json:"tls_cert_file"`
	TLSKeyFile   string        `yaml:"tls_key_file" json:"tls_key_file"`
	CORS         CORSConfig    `yaml:"cors" json:"cors"`
}

type CORSConfig struct {
	Enabled        bool     `yaml:"enabled" json:"enabled"`
	AllowedOrigins []string `yaml:"allowed_origins" json:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods" json:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers" json:"allowed_headers"`
	MaxAge         int      `yaml:"max_age" json:"max_age"`
}

// RateLimitConfig describes the admission control rule.
//
// Limit requests are accepted per key within each Window; the key is the
// pair (client network address, request path after PathTransformation).
// BurstSize only applies to the token_bucket algorithm.
type RateLimitConfig struct {
	Enabled            bool          `yaml:"enabled" json:"enabled"`
	Algorithm          string        `yaml:"algorithm" json:"algorithm"`
	Limit              int           `yaml:"limit" json:"limit"`
	Window             time.Duration `yaml:"window" json:"window"`
	BurstSize          int           `yaml:"burst_size" json:"burst_size"`
	Mode               string        `yaml:"mode" json:"mode"`
	ResponseCode       int           `yaml:"response_code" json:"response_code"`
	PathTransformation string        `yaml:"path_transformation" json:"path_transformation"`
	ExemptPaths        []string      `yaml:"exempt_paths" json:"exempt_paths"`
	CleanupInterval    time.Duration `yaml:"cleanup_interval" json:"cleanup_interval"`
}

type StorageConfig struct {
	Type     string         `yaml:"type" json:"type"`
	Database DatabaseConfig `yaml:"database" json:"database"`
	Redis    RedisConfig    `yaml:"redis" json:"redis"`
	DynamoDB DynamoDBConfig `yaml:"dynamodb" json:"dynamodb"`
}

type DatabaseConfig struct {
	DSN             string        `yaml:"dsn" json:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns" json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time" json:"conn_max_idle_time"`
}

type RedisConfig struct {
	Addr      string `yaml:"addr" json:"addr"`
	Password  string `yaml:"password" json:"password"`
	DB        int    `yaml:"db" json:"db"`
	PoolSize  int    `yaml:"pool_size" json:"pool_size"`
	KeyPrefix string `yaml:"key_prefix" json:"key_prefix"`
}

type DynamoDBConfig struct {
	Table    string `yaml:"table" json:"table"`
	Region   string `yaml:"region" json:"region"`
	Endpoint string `yaml:"endpoint" json:"endpoint"`
}

type LoggingConfig struct {
	Level    string `yaml:"level" json:"level"`
	Format   string `yaml:"format" json:"format"`
	Output   string `yaml:"output" json:"output"`
	FilePath string `yaml:"file_path" json:"file_path"`
}

type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path" json:"path"`
	Port    int    `yaml:"port" json:"port"`
}

type ObservabilityConfig struct {
	ServiceName string        `yaml:"service_name" json:"service_name"`
	Tracing     TracingConfig `yaml:"tracing" json:"tracing"`
}

type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	Exporter     string  `yaml:"exporter" json:"exporter"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" json:"otlp_endpoint"`
	SampleRate   float64 `yaml:"sample_rate" json:"sample_rate"`
}

// LambdaConfig only matters for cmd/lambda.
type LambdaConfig struct {
	LogEvent bool `yaml:"log_event" json:"log_event"`
}

// NewDefaultConfig returns a configuration that works without any external
// service: in-memory windows, 10 requests per client and path per minute,
// rejected requests answered with 429.
func NewDefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         8080,
			Host:         "0.0.0.0",
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
			CORS: CORSConfig{
				Enabled:        false,
				AllowedOrigins: []string{"*"},
				AllowedMethods: []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
				AllowedHeaders: []string{"*"},
				MaxAge:         86400,
			},
		},
		RateLimit: RateLimitConfig{
			Enabled:            true,
			Algorithm:          AlgorithmFixedWindow,
			Limit:              10,
			Window:             60 * time.Second,
			BurstSize:          10,
			Mode:               RateLimitModeBlock,
			ResponseCode:       http.StatusTooManyRequests,
			PathTransformation: PathTransformNone,
			ExemptPaths:        []string{"/health"},
			CleanupInterval:    5 * time.Minute,
		},
		Storage: StorageConfig{
			Type: StorageTypeMemory,
			Database: DatabaseConfig{
				MaxOpenConns:    25,
				MaxIdleConns:    5,
				ConnMaxLifetime: 5 * time.Minute,
				ConnMaxIdleTime: 5 * time.Minute,
			},
			Redis: RedisConfig{
				PoolSize:  10,
				KeyPrefix: "gatekeeper:rl:",
			},
			DynamoDB: DynamoDBConfig{
				Table: "gatekeeper-rate-limits",
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Metrics: MetricsConfig{
			Enabled: true,
			Path:    "/metrics",
			Port:    9090,
		},
		Observability: ObservabilityConfig{
			ServiceName: "gatekeeper",
			Tracing: TracingConfig{
				Enabled:    false,
				Exporter:   "stdout",
				SampleRate: 1.0,
			},
		},
	}
}

func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("invalid server config: %w", err)
	}

	if err := c.RateLimit.Validate(); err != nil {
		return fmt.Errorf("invalid rate limit config: %w", err)
	}

	if err := c.Storage.Validate(); err != nil {
		return fmt.Errorf("invalid storage config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("invalid logging config: %w", err)
	}

	if err := c.Metrics.Validate(); err != nil {
		return fmt.Errorf("invalid metrics config: %w", err)
	}

	if err := c.Observability.Validate(); err != nil {
		return fmt.Errorf("invalid observability config: %w", err)
	}

	return nil
}

func (sc *ServerConfig) Validate() error {
	if sc.Port <= 0 || sc.Port > 65535 {
		return errors.New("port must be between 1 and 65535")
	}

	if sc.Host == "" {
		return errors.New("host cannot be empty")
	}

	if sc.ReadTimeout < 0 {
		return errors.New("read timeout cannot be negative")
	}

	if sc.WriteTimeout < 0 {
		return errors.New("write timeout cannot be negative")
	}

	if sc.IdleTimeout < 0 {
		return errors.New("idle timeout cannot be negative")
	}

	if sc.TLSEnabled {
		if sc.TLSCertFile == "" {
			return errors.New("TLS cert file is required when TLS is enabled")
		}
		if sc.TLSKeyFile == "" {
			return errors.New("TLS key file is required when TLS is enabled")
		}
	}

	return nil
}

func (rc *RateLimitConfig) Validate() error {
	if !rc.Enabled {
		return nil
	}

	if !slices.Contains([]string{AlgorithmFixedWindow, AlgorithmTokenBucket}, rc.Algorithm) {
		return fmt.Errorf("invalid algorithm: %s", rc.Algorithm)
	}

	if rc.Limit <= 0 {
		return errors.New("limit must be greater than zero")
	}

	if rc.Window <= 0 {
		return errors.New("window must be greater than zero")
	}

	if rc.Algorithm == AlgorithmTokenBucket && rc.BurstSize <= 0 {
		return errors.New("burst size must be greater than zero for token_bucket")
	}

	if !slices.Contains([]string{RateLimitModeBlock, RateLimitModeCount}, rc.Mode) {
		return fmt.Errorf("invalid mode: %s", rc.Mode)
	}

	if rc.ResponseCode < 400 || rc.ResponseCode > 599 {
		return fmt.Errorf("response code must be a 4xx or 5xx status, got %d", rc.ResponseCode)
	}

	if !slices.Contains([]string{PathTransformNone, PathTransformLowercase, PathTransformURLDecode}, rc.PathTransformation) {
		return fmt.Errorf("invalid path transformation: %s", rc.PathTransformation)
	}

	if rc.CleanupInterval < 0 {
		return errors.New("cleanup interval cannot be negative")
	}

	return nil
}

func (stc *StorageConfig) Validate() error {
	switch stc.Type {
	case StorageTypeMemory:
		return nil
	case StorageTypeSQLite, StorageTypePostgres:
		if stc.Database.DSN == "" {
			return fmt.Errorf("database DSN is required for %s storage", stc.Type)
		}
	case StorageTypeRedis:
		if stc.Redis.Addr == "" {
			return errors.New("Redis address is required when storage type is redis")
		}
	case StorageTypeDynamoDB:
		if stc.DynamoDB.Table == "" {
			return errors.New("DynamoDB table is required when storage type is dynamodb")
		}
	default:
		return fmt.Errorf("invalid storage type: %s", stc.Type)
	}
	return nil
}

func (lc *LoggingConfig) Validate() error {
	if !slices.Contains([]string{"debug", "info", "warn", "error"}, lc.Level) {
		return fmt.Errorf("invalid log level: %s", lc.Level)
	}

	if !slices.Contains([]string{"json", "text"}, lc.Format) {
		return fmt.Errorf("invalid log format: %s", lc.Format)
	}

	if !slices.Contains([]string{"stdout", "stderr", "file"}, lc.Output) {
		return fmt.Errorf("invalid log output: %s", lc.Output)
	}

	if lc.Output == "file" && lc.FilePath == "" {
		return errors.New("file path is required when output is file")
	}

	return nil
}

func (mc *MetricsConfig) Validate() error {
	if !mc.Enabled {
		return nil
	}

	if mc.Path == "" {
		return errors.New("metrics path cannot be empty")
	}

	if mc.Port <= 0 || mc.Port > 65535 {
		return errors.New("metrics port must be between 1 and 65535")
	}

	return nil
}

func (oc *ObservabilityConfig) Validate() error {
	if !oc.Tracing.Enabled {
		return nil
	}

	switch oc.Tracing.Exporter {
	case "stdout":
	case "otlp":
		if oc.Tracing.OTLPEndpoint == "" {
			return errors.New("OTLP endpoint is required when exporter is otlp")
		}
	default:
		return fmt.Errorf("invalid trace exporter: %s", oc.Tracing.Exporter)
	}

	if oc.Tracing.SampleRate < 0 || oc.Tracing.SampleRate > 1 {
		return errors.New("sample rate must be between 0 and 1")
	}

	return nil
}

// IsExempt reports whether path bypasses the rate limiter.
func (rc *RateLimitConfig) IsExempt(path string) bool {
	return slices.Contains(rc.ExemptPaths, path)
}
