package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/platinummonkey/adminkit/pkg/storage"
)

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig

	// Storage configuration
	Storage storage.Config

	// Search configuration
	Search SearchConfig

	// API rate limiting
	RateLimit RateLimitConfig

	// Export configuration
	Export ExportConfig

	// Boot-time manifests
	Manifests ManifestConfig

	// Observability configuration
	Observability ObservabilityConfig
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string
	Port            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// Health/metrics server (separate port for k8s probes)
	HealthPort string
}

// SearchConfig holds search engine limits
type SearchConfig struct {
	DefaultPageSize int
	MaxPageSize     int
}

// RateLimitConfig holds per-minute request budgets. Users are keyed by
// X-User-ID, anonymous callers by client address.
type RateLimitConfig struct {
	Enabled            bool
	UserPerMinute      int
	UserBurst          int
	AnonymousPerMinute int
	AnonymousBurst     int
}

// ExportConfig holds CSV export and cleanup settings
type ExportConfig struct {
	Dir string
	// Files older than Retention are removed by the janitor
	Retention time.Duration
	// Schedule is a cron expression for the janitor
	Schedule string
	// Archive copies every export to the configured S3 bucket
	Archive bool
}

// ManifestConfig points at the YAML files read at boot
type ManifestConfig struct {
	ExtensionPoints string
	LOVDir          string
	WatchLOV        bool
	Policy          string
	PolicyCacheTTL  time.Duration
	// Seed loads the sample employees when the store is empty
	Seed bool
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string
	LogFormat string

	// Metrics
	MetricsEnabled bool

	// OpenTelemetry
	OTelEnabled        bool
	OTelEndpoint       string
	OTelServiceName    string
	OTelServiceVersion string
	OTelInsecure       bool // Use insecure gRPC connection
	OTelSampleRatio    float64
}

// LoadConfig loads configuration from environment variables
func LoadConfig() (*Config, error) {
	cfg := &Config{
		Server:        loadServerConfig(),
		Storage:       loadStorageConfig(),
		Search:        loadSearchConfig(),
		RateLimit:     loadRateLimitConfig(),
		Export:        loadExportConfig(),
		Manifests:     loadManifestConfig(),
		Observability: loadObservabilityConfig(),
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig() ServerConfig {
	return ServerConfig{
		Host:            getEnv("ADMINKIT_HOST", "0.0.0.0"),
		Port:            getEnv("ADMINKIT_PORT", "8080"),
		ReadTimeout:     getEnvDuration("ADMINKIT_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getEnvDuration("ADMINKIT_WRITE_TIMEOUT", 60*time.Second),
		IdleTimeout:     getEnvDuration("ADMINKIT_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getEnvDuration("ADMINKIT_SHUTDOWN_TIMEOUT", 30*time.Second),
		HealthPort:      getEnv("ADMINKIT_HEALTH_PORT", "9090"),
	}
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig() storage.Config {
	cfg := storage.DefaultConfig()

	if driver := getEnv("ADMINKIT_DB_DRIVER", ""); driver != "" {
		cfg.Driver = strings.ToLower(driver)
	}
	cfg.URL = getEnv("ADMINKIT_DB_URL", cfg.URL)
	if maxConns := getEnvInt("ADMINKIT_DB_MAX_CONNS", 0); maxConns > 0 {
		cfg.MaxConns = maxConns
	}
	if minConns := getEnvInt("ADMINKIT_DB_MIN_CONNS", 0); minConns > 0 {
		cfg.MinConns = minConns
	}
	cfg.Timeout = getEnvDuration("ADMINKIT_DB_TIMEOUT", cfg.Timeout)
	cfg.MaxLifetime = getEnvDuration("ADMINKIT_DB_MAX_LIFETIME", cfg.MaxLifetime)
	cfg.MaxIdleTime = getEnvDuration("ADMINKIT_DB_MAX_IDLE_TIME", cfg.MaxIdleTime)

	// Redis config
	cfg.RedisURL = getEnv("ADMINKIT_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("ADMINKIT_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("ADMINKIT_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("ADMINKIT_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("ADMINKIT_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}

	// Field-list cache config
	cfg.CacheEnabled = getEnvBool("ADMINKIT_CACHE_ENABLED", cfg.CacheEnabled)
	if size := getEnvInt("ADMINKIT_FIELD_CACHE_SIZE", 0); size > 0 {
		cfg.FieldCacheSize = size
	}
	cfg.FieldCacheTTL = getEnvDuration("ADMINKIT_FIELD_CACHE_TTL", cfg.FieldCacheTTL)

	// S3 config
	cfg.S3Endpoint = getEnv("ADMINKIT_S3_ENDPOINT", cfg.S3Endpoint)
	cfg.S3Region = getEnv("ADMINKIT_S3_REGION", "us-east-1")
	cfg.S3Bucket = getEnv("ADMINKIT_S3_BUCKET", cfg.S3Bucket)
	cfg.S3AccessKey = getEnv("ADMINKIT_S3_ACCESS_KEY", cfg.S3AccessKey)
	cfg.S3SecretKey = getEnv("ADMINKIT_S3_SECRET_KEY", cfg.S3SecretKey)
	cfg.S3UsePathStyle = getEnvBool("ADMINKIT_S3_USE_PATH_STYLE", cfg.S3UsePathStyle)

	return cfg
}

// loadSearchConfig loads search limits from environment
func loadSearchConfig() SearchConfig {
	return SearchConfig{
		DefaultPageSize: getEnvInt("ADMINKIT_SEARCH_DEFAULT_PAGE_SIZE", 25),
		MaxPageSize:     getEnvInt("ADMINKIT_SEARCH_MAX_PAGE_SIZE", 1000),
	}
}

// loadRateLimitConfig loads rate limits from environment
func loadRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		Enabled:            getEnvBool("ADMINKIT_RATE_LIMIT_ENABLED", false),
		UserPerMinute:      getEnvInt("ADMINKIT_RATE_LIMIT_USER_PER_MINUTE", 1000),
		UserBurst:          getEnvInt("ADMINKIT_RATE_LIMIT_USER_BURST", 50),
		AnonymousPerMinute: getEnvInt("ADMINKIT_RATE_LIMIT_ANON_PER_MINUTE", 100),
		AnonymousBurst:     getEnvInt("ADMINKIT_RATE_LIMIT_ANON_BURST", 10),
	}
}

// loadExportConfig loads export settings from environment
func loadExportConfig() ExportConfig {
	return ExportConfig{
		Dir:       getEnv("ADMINKIT_EXPORT_DIR", "/tmp/adminkit-exports"),
		Retention: getEnvDuration("ADMINKIT_EXPORT_RETENTION", 24*time.Hour),
		Schedule:  getEnv("ADMINKIT_EXPORT_PURGE_SCHEDULE", "0 * * * *"),
		Archive:   getEnvBool("ADMINKIT_EXPORT_ARCHIVE", false),
	}
}

// loadManifestConfig loads manifest paths from environment
func loadManifestConfig() ManifestConfig {
	return ManifestConfig{
		ExtensionPoints: getEnv("ADMINKIT_EXTENSION_POINTS", ""),
		LOVDir:          getEnv("ADMINKIT_LOV_DIR", ""),
		WatchLOV:        getEnvBool("ADMINKIT_LOV_WATCH", true),
		Policy:          getEnv("ADMINKIT_POLICY", ""),
		PolicyCacheTTL:  getEnvDuration("ADMINKIT_POLICY_CACHE_TTL", time.Minute),
		Seed:            getEnvBool("ADMINKIT_SEED", false),
	}
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig() ObservabilityConfig {
	return ObservabilityConfig{
		LogLevel:           parseLogLevel(getEnv("ADMINKIT_LOG_LEVEL", "info")),
		LogFormat:          strings.ToLower(getEnv("ADMINKIT_LOG_FORMAT", "json")),
		MetricsEnabled:     getEnvBool("ADMINKIT_METRICS_ENABLED", true),
		OTelEnabled:        getEnvBool("ADMINKIT_OTEL_ENABLED", false),
		OTelEndpoint:       getEnv("ADMINKIT_OTEL_ENDPOINT", "localhost:4317"),
		OTelServiceName:    getEnv("ADMINKIT_OTEL_SERVICE_NAME", "adminkit"),
		OTelServiceVersion: getEnv("ADMINKIT_OTEL_SERVICE_VERSION", "1.0.0"),
		OTelInsecure:       getEnvBool("ADMINKIT_OTEL_INSECURE", true),
		OTelSampleRatio:    getEnvFloat("ADMINKIT_OTEL_SAMPLE_RATIO", 1.0),
	}
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port == "" {
		return fmt.Errorf("server port is required")
	}
	if c.Server.HealthPort == "" {
		return fmt.Errorf("health port is required")
	}
	if c.Server.Port == c.Server.HealthPort {
		return fmt.Errorf("server port and health port must be different")
	}

	// Validate storage config based on driver
	switch c.Storage.Driver {
	case "memory":
	case "postgres", "sqlite3":
		if c.Storage.URL == "" {
			return fmt.Errorf("database URL is required for %s storage", c.Storage.Driver)
		}
	default:
		return fmt.Errorf("invalid storage driver: %s (must be memory, postgres, or sqlite3)", c.Storage.Driver)
	}

	// Validate search limits
	if c.Search.DefaultPageSize <= 0 {
		return fmt.Errorf("default page size must be positive")
	}
	if c.Search.MaxPageSize < c.Search.DefaultPageSize {
		return fmt.Errorf("max page size must be at least the default page size")
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.UserPerMinute <= 0 || c.RateLimit.AnonymousPerMinute <= 0 {
			return fmt.Errorf("rate limits must be positive when rate limiting is enabled")
		}
		if c.RateLimit.UserBurst < 0 || c.RateLimit.AnonymousBurst < 0 {
			return fmt.Errorf("rate limit bursts must not be negative")
		}
	}

	// Validate export config
	if c.Export.Dir == "" {
		return fmt.Errorf("export directory is required")
	}
	if c.Export.Retention <= 0 {
		return fmt.Errorf("export retention must be positive")
	}
	if _, err := cron.ParseStandard(c.Export.Schedule); err != nil {
		return fmt.Errorf("invalid export purge schedule %q: %w", c.Export.Schedule, err)
	}
	if c.Export.Archive && c.Storage.S3Bucket == "" {
		return fmt.Errorf("S3 bucket is required when export archiving is enabled")
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return fmt.Errorf("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return fmt.Errorf("OpenTelemetry service name is required when OTel is enabled")
		}
	}

	return nil
}

// parseLogLevel normalizes a log level string
func parseLogLevel(level string) string {
	switch strings.ToLower(level) {
	case "debug":
		return "debug"
	case "warn", "warning":
		return "warn"
	case "error":
		return "error"
	default:
		return "info"
	}
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
