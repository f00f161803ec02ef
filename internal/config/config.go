package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	DatabaseURL        string
	RedisURL           string
	DBAutoMigrate      bool
	CORSAllowedOrigins []string

	// Catalog CSV files, re-read on every request.
	CatalogServicesPath    string
	CatalogNoUnitPricePath string

	SnapshotTTL time.Duration
	// Breaker guarding the Redis snapshot store.
	SnapshotBreakerMinCalls int
	SnapshotBreakerRatio    float64
	SnapshotBreakerOpenFor  time.Duration

	ProjectLockEnabled bool
	LockTTL            time.Duration
	LockRetryBackoff   time.Duration
	ListDefaultPerPage int
	ListMaxPerPage     int
	RateLimit          string
	TrustProxy         bool
	MaxFormBytes       int64
	PDFTitle           string

	Obs ObsConfig
}

// ObsConfig groups logging, metrics and tracing settings.
type ObsConfig struct {
	LogFormat        string
	LogLevel         string
	MetricsEnabled   bool
	MetricsNamespace string
	MetricsBuckets   string
	TracingEnabled   bool
	TracingExporter  string
	OTLPEndpoint     string
	SamplingRatio    float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:                  valueOrDefault(k.String("APP_ENV"), "development"),
		Port:                    valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:             strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:                strings.TrimSpace(k.String("REDIS_URL")),
		DBAutoMigrate:           parseBool(k.String("DB_AUTO_MIGRATE"), false),
		CORSAllowedOrigins:      splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),
		CatalogServicesPath:     valueOrDefault(k.String("CATALOG_SERVICES_PATH"), "services.csv"),
		CatalogNoUnitPricePath:  valueOrDefault(k.String("CATALOG_NO_UNIT_PRICE_PATH"), "services_with_no_unit_price.csv"),
		SnapshotTTL:             parseDuration(k.String("SNAPSHOT_TTL"), "1h"),
		SnapshotBreakerMinCalls: parseInt(k.String("SNAPSHOT_BREAKER_MIN_CALLS"), 5),
		SnapshotBreakerRatio:    parseFloat(k.String("SNAPSHOT_BREAKER_FAILURE_RATIO"), 0.5),
		SnapshotBreakerOpenFor:  parseDuration(k.String("SNAPSHOT_BREAKER_OPEN_FOR"), "30s"),
		ProjectLockEnabled:      parseBool(k.String("PROJECT_LOCK_ENABLED"), false),
		LockTTL:                 parseDuration(k.String("LOCK_TTL"), "30s"),
		LockRetryBackoff:        parseDuration(k.String("LOCK_RETRY_BACKOFF"), "50ms"),
		ListDefaultPerPage:      parseInt(k.String("LIST_DEFAULT_PER_PAGE"), 10),
		ListMaxPerPage:          parseInt(k.String("LIST_MAX_PER_PAGE"), 100),
		RateLimit:               valueOrDefault(k.String("RATE_LIMIT"), "300-M"),
		TrustProxy:              parseBool(k.String("TRUST_PROXY"), false),
		MaxFormBytes:            int64(parseInt(k.String("MAX_FORM_BYTES"), 1<<20)),
		PDFTitle:                valueOrDefault(k.String("PDF_TITLE"), "CoreB Interdepartmental Invoice"),
		Obs:                     ObsConfig{
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsEnabled:   parseBool(k.String("OBS_ENABLE_PROMETHEUS"), true),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "coreb"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingEnabled:   parseBool(k.String("OBS_ENABLE_TRACING"), false),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "otlp"),
			OTLPEndpoint:     strings.TrimSpace(k.String("OBS_OTLP_ENDPOINT")),
			SamplingRatio:    parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1.0),
		},
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ProjectLockEnabled && cfg.RedisURL == "" {
		return nil, errors.New("PROJECT_LOCK_ENABLED requires REDIS_URL")
	}
	if cfg.ListMaxPerPage < cfg.ListDefaultPerPage {
		cfg.ListMaxPerPage = cfg.ListDefaultPerPage
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

// HasRedis reports whether a Redis endpoint was configured.
func (c *Config) HasRedis() bool { return c.RedisURL != "" }

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil || d <= 0 {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

func parseInt(value string, fallback int) int {
	n, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}

func parseFloat(value string, fallback float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return f
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests allows tests to override environment variables without touching the real environment.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}
