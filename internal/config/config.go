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
	MigrationsPath     string
	CORSAllowedOrigins []string

	DefaultVATRate float64

	ListDefaultLimit int
	ListMaxLimit     int

	TaxCatalogCacheTTL time.Duration
	IdempotencyTTL     time.Duration

	RateLimitWindow time.Duration
	RateLimitMax    int
	BodyLimitBytes  int64

	DBMaxOpenConns int
	DBMaxIdleConns int

	AuditEnabled    bool
	AuditSampleRate float64

	WebhookDeliveryEnabled    bool
	WebhookRequestTimeout     time.Duration
	WebhookBackoffBaseSec     int
	WebhookDefaultMaxAttempts int
	WebhookReplayTTL          time.Duration
	WebhookWorkerInterval     time.Duration
	WebhookWorkerBatch        int
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		DatabaseURL:        k.String("DATABASE_URL"),
		RedisURL:           k.String("REDIS_URL"),
		MigrationsPath:     valueOrDefault(k.String("MIGRATIONS_PATH"), "migrations"),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		DefaultVATRate: parseFloat(k.String("DEFAULT_VAT_RATE"), 21),

		ListDefaultLimit: parseInt(k.String("LIST_DEFAULT_LIMIT"), 20),
		ListMaxLimit:     parseInt(k.String("LIST_MAX_LIMIT"), 100),

		TaxCatalogCacheTTL: parseDuration(k.String("TAX_CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:     parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),

		RateLimitWindow: parseDuration(k.String("RATE_LIMIT_WINDOW"), "1m"),
		RateLimitMax:    parseInt(k.String("RATE_LIMIT_MAX"), 300),
		BodyLimitBytes:  int64(parseInt(k.String("BODY_LIMIT_BYTES"), 1<<20)),

		DBMaxOpenConns: parseInt(k.String("DB_MAX_OPEN_CONNS"), 0),
		DBMaxIdleConns: parseInt(k.String("DB_MAX_IDLE_CONNS"), 0),

		AuditEnabled:    parseBool(k.String("AUDIT_ENABLED"), true),
		AuditSampleRate: parseFloat(k.String("AUDIT_SAMPLE_RATE"), 1),

		WebhookDeliveryEnabled:    parseBool(k.String("WEBHOOK_DELIVERY_ENABLED"), false),
		WebhookRequestTimeout:     parseDuration(k.String("WEBHOOK_REQUEST_TIMEOUT"), "5s"),
		WebhookBackoffBaseSec:     parseInt(k.String("WEBHOOK_BACKOFF_BASE_SEC"), 5),
		WebhookDefaultMaxAttempts: parseInt(k.String("WEBHOOK_MAX_ATTEMPTS"), 6),
		WebhookReplayTTL:          parseDuration(k.String("WEBHOOK_REPLAY_TTL"), "10m"),
		WebhookWorkerInterval:     parseDuration(k.String("WEBHOOK_WORKER_INTERVAL"), "2s"),
		WebhookWorkerBatch:        parseInt(k.String("WEBHOOK_WORKER_BATCH"), 50),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
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
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int) int {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.Atoi(trimmed)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseFloat(value string, fallback float64) float64 {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}
	parsed, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fallback
	}
	return parsed
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "true", "yes", "on":
		return true
	case "0", "false", "no", "off":
		return false
	default:
		return fallback
	}
}

// MustLoad behaves like Load but panics on error. Useful for command
// entrypoints.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of a Load
// call and restores them afterwards.
func LoadForTests(envVars map[string]string) (*Config, error) {
	original := make(map[string]string, len(envVars))
	for key := range envVars {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, envVars[key]); err != nil {
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
