// Package config provides application configuration management from environment variables.
//
// # Overview
//
// This package loads and validates configuration from environment variables with
// sensible defaults for all settings.
//
// # Configuration Structure
//
// Server settings:
//
//	ADMINKIT_HOST="0.0.0.0"
//	ADMINKIT_PORT="8080"
//	ADMINKIT_HEALTH_PORT="9090"
//	ADMINKIT_READ_TIMEOUT="15s"
//	ADMINKIT_WRITE_TIMEOUT="60s"
//
// Storage settings:
//
//	ADMINKIT_DB_DRIVER="postgres"  # memory, postgres, sqlite3
//	ADMINKIT_DB_URL="postgres://localhost/adminkit?sslmode=disable"
//	ADMINKIT_DB_MAX_CONNS="20"
//
// Cache settings:
//
//	ADMINKIT_CACHE_ENABLED="true"
//	ADMINKIT_FIELD_CACHE_SIZE="1000"
//	ADMINKIT_FIELD_CACHE_TTL="10m"
//	ADMINKIT_REDIS_URL="redis://localhost:6379"
//
// Search and export settings:
//
//	ADMINKIT_SEARCH_DEFAULT_PAGE_SIZE="25"
//	ADMINKIT_SEARCH_MAX_PAGE_SIZE="1000"
//	ADMINKIT_EXPORT_DIR="/tmp/adminkit-exports"
//	ADMINKIT_EXPORT_RETENTION="24h"
//	ADMINKIT_EXPORT_PURGE_SCHEDULE="0 * * * *"
//	ADMINKIT_EXPORT_ARCHIVE="true"  # requires ADMINKIT_S3_BUCKET
//
// Rate limiting (per user, or per client address when anonymous; shared
// through Redis when ADMINKIT_REDIS_URL is set):
//
//	ADMINKIT_RATE_LIMIT_ENABLED="true"
//	ADMINKIT_RATE_LIMIT_USER_PER_MINUTE="1000"
//	ADMINKIT_RATE_LIMIT_USER_BURST="50"
//	ADMINKIT_RATE_LIMIT_ANON_PER_MINUTE="100"
//	ADMINKIT_RATE_LIMIT_ANON_BURST="10"
//
// Manifests:
//
//	ADMINKIT_EXTENSION_POINTS="/etc/adminkit/points.yaml"
//	ADMINKIT_LOV_DIR="/etc/adminkit/lov"
//	ADMINKIT_POLICY="/etc/adminkit/policy.yaml"
//
// Observability settings:
//
//	ADMINKIT_LOG_LEVEL="info"  # debug, info, warn, error
//	ADMINKIT_LOG_FORMAT="json" # json, text
//	ADMINKIT_METRICS_ENABLED="true"
//	ADMINKIT_OTEL_ENABLED="true"
//	ADMINKIT_OTEL_ENDPOINT="otel-collector:4317"
//
// # Usage Example
//
//	cfg, err := config.LoadConfig()
//	if err != nil {
//		log.Fatal(err)
//	}
//
// # Related Packages
//
//   - pkg/storage: Uses storage configuration
//   - pkg/observability: Uses observability configuration
package config
