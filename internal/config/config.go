/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package config

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Database backend selection.
type DatabaseBackend string

const (
	DatabasePostgres DatabaseBackend = "postgres"
	DatabaseMySQL    DatabaseBackend = "mysql"
	DatabaseSQLite   DatabaseBackend = "sqlite"
)

// Config covers process level configuration read from environment variables.
type Config struct {
	Environment string
	HTTPBind    string
	HTTPPort    int
	DBBackend   DatabaseBackend
	DBDSN       string
	MetricsBind string

	// Recent log lines kept in memory for GET /api/v1/logs.
	LogBufferSize int

	// Timeline cache (Redis). An empty address disables the cache.
	RedisAddr     string
	RedisPassword string
	RedisDB       int
	CacheTTL      time.Duration

	// Cross-process event fan-out. An empty URL keeps events in-process.
	NATSURL string

	// Project snapshots. Snapshots go to S3 when a bucket is set, else to SnapshotDir.
	SnapshotDir       string
	S3AccessKeyID     string
	S3SecretAccessKey string
	S3Region          string
	S3Bucket          string
	S3Endpoint        string // For S3-compatible services (MinIO, Spaces, etc.)
	S3UsePathStyle    bool   // Required for MinIO

	// Scheduled snapshots. Zero disables them. With Redis configured only
	// the elected leader among replicas saves.
	SnapshotInterval time.Duration

	// Tracing configuration
	TracingEnabled    bool
	OTLPEndpoint      string
	TracingSampleRate float64

	LegacyEnvWarnings []string
}

// Load reads environment variables, applies defaults, and validates the result.
func Load() (*Config, error) {
	cfg := &Config{
		Environment: getEnv("HYDROPLAN_ENV", "development"),
		HTTPBind:    getEnv("HYDROPLAN_HTTP_BIND", "0.0.0.0"),
		HTTPPort:    getEnvInt("HYDROPLAN_HTTP_PORT", 8080),
		DBBackend:   DatabaseBackend(strings.ToLower(getEnv("HYDROPLAN_DB_BACKEND", string(DatabaseSQLite)))),
		DBDSN:       getEnv("HYDROPLAN_DB_DSN", "hydroplan.db"),
		MetricsBind: getEnv("HYDROPLAN_METRICS_BIND", "127.0.0.1:9000"),

		LogBufferSize: getEnvInt("HYDROPLAN_LOG_BUFFER_SIZE", 2000),

		RedisAddr:     getEnv("HYDROPLAN_REDIS_ADDR", ""),
		RedisPassword: getEnv("HYDROPLAN_REDIS_PASSWORD", ""),
		RedisDB:       getEnvInt("HYDROPLAN_REDIS_DB", 0),
		CacheTTL:      time.Duration(getEnvInt("HYDROPLAN_CACHE_TTL_MINUTES", 30)) * time.Minute,

		NATSURL: getEnv("HYDROPLAN_NATS_URL", ""),

		SnapshotDir:       getEnv("HYDROPLAN_SNAPSHOT_DIR", "./snapshots"),
		S3AccessKeyID:     getEnvAny([]string{"HYDROPLAN_S3_ACCESS_KEY_ID", "AWS_ACCESS_KEY_ID"}, ""),
		S3SecretAccessKey: getEnvAny([]string{"HYDROPLAN_S3_SECRET_ACCESS_KEY", "AWS_SECRET_ACCESS_KEY"}, ""),
		S3Region:          getEnvAny([]string{"HYDROPLAN_S3_REGION", "AWS_REGION"}, "us-east-1"),
		S3Bucket:          getEnv("HYDROPLAN_S3_BUCKET", ""),
		S3Endpoint:        getEnv("HYDROPLAN_S3_ENDPOINT", ""),
		S3UsePathStyle:    getEnvBool("HYDROPLAN_S3_USE_PATH_STYLE", false),
		SnapshotInterval:  time.Duration(getEnvInt("HYDROPLAN_SNAPSHOT_INTERVAL_MINUTES", 0)) * time.Minute,

		TracingEnabled:    getEnvBool("HYDROPLAN_TRACING_ENABLED", false),
		OTLPEndpoint:      getEnv("HYDROPLAN_OTLP_ENDPOINT", "localhost:4317"),
		TracingSampleRate: getEnvFloat("HYDROPLAN_TRACING_SAMPLE_RATE", 1.0),
	}

	if cfg.DBBackend != DatabasePostgres && cfg.DBBackend != DatabaseMySQL && cfg.DBBackend != DatabaseSQLite {
		return nil, fmt.Errorf("unsupported database backend %q", cfg.DBBackend)
	}

	if strings.TrimSpace(cfg.DBDSN) == "" {
		return nil, fmt.Errorf("HYDROPLAN_DB_DSN must not be empty")
	}

	if cfg.TracingSampleRate < 0 || cfg.TracingSampleRate > 1 {
		return nil, fmt.Errorf("HYDROPLAN_TRACING_SAMPLE_RATE must be between 0 and 1, got %v", cfg.TracingSampleRate)
	}

	if cfg.SnapshotInterval < 0 {
		return nil, fmt.Errorf("HYDROPLAN_SNAPSHOT_INTERVAL_MINUTES must not be negative")
	}

	if cfg.CacheTTL <= 0 {
		return nil, fmt.Errorf("HYDROPLAN_CACHE_TTL_MINUTES must be positive")
	}

	cfg.LegacyEnvWarnings = detectLegacyEnvWarnings()

	return cfg, nil
}

// Unprefixed keys people tend to set by habit; they are ignored.
func detectLegacyEnvWarnings() []string {
	legacy := map[string]string{
		"DB_DSN":          "use HYDROPLAN_DB_DSN",
		"DB_BACKEND":      "use HYDROPLAN_DB_BACKEND",
		"REDIS_ADDR":      "use HYDROPLAN_REDIS_ADDR",
		"NATS_URL":        "use HYDROPLAN_NATS_URL",
		"TRACING_ENABLED": "use HYDROPLAN_TRACING_ENABLED",
		"OTLP_ENDPOINT":   "use HYDROPLAN_OTLP_ENDPOINT",
	}

	warnings := make([]string, 0, len(legacy))
	for key, recommendation := range legacy {
		if os.Getenv(key) != "" {
			warnings = append(warnings, fmt.Sprintf("legacy env key %s is set; %s", key, recommendation))
		}
	}
	sort.Strings(warnings)
	return warnings
}

// HTTPAddr returns the API listen address.
func (c *Config) HTTPAddr() string {
	return fmt.Sprintf("%s:%d", c.HTTPBind, c.HTTPPort)
}

// CacheEnabled reports whether a Redis address was configured.
func (c *Config) CacheEnabled() bool {
	return c != nil && c.RedisAddr != ""
}

// S3Enabled reports whether snapshots should go to S3.
func (c *Config) S3Enabled() bool {
	return c != nil && c.S3Bucket != ""
}

func getEnv(key, def string) string {
	if val := os.Getenv(key); val != "" {
		return val
	}
	return def
}

func getEnvInt(key string, def int) int {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			return parsed
		}
	}
	return def
}

func getEnvBool(key string, def bool) bool {
	return getEnvBoolAny([]string{key}, def)
}

func getEnvFloat(key string, def float64) float64 {
	if val := os.Getenv(key); val != "" {
		if parsed, err := strconv.ParseFloat(val, 64); err == nil {
			return parsed
		}
	}
	return def
}

// getEnvAny returns the first non-empty environment variable value from keys, or def if none set.
func getEnvAny(keys []string, def string) string {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			return v
		}
	}
	return def
}

// getEnvBoolAny returns the first set boolean environment variable value from keys, or def.
func getEnvBoolAny(keys []string, def bool) bool {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			v = strings.ToLower(strings.TrimSpace(v))
			if v == "true" || v == "1" || v == "yes" {
				return true
			}
			if v == "false" || v == "0" || v == "no" {
				return false
			}
		}
	}
	return def
}
