package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Env string

	IdentityURL              string
	IdentityAnonKey          string
	AllowedEmailDomains      []string
	ProfileEnrichDelay       time.Duration
	PasswordResetRedirectURL string

	SessionStore string
	SessionFile  string

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisPrefix   string

	HTTPPort               string
	CORSAllowedOrigins     []string
	DatabaseDriver         string
	DatabaseURL            string
	JWTSecret              string
	JWTAccessTTL           time.Duration
	JWTRefreshTTL          time.Duration
	RecoveryTokenTTL       time.Duration
	AuthAutoconfirm        bool
	AuthRateLimitPerMin    int
	SignInGuardEnabled     bool
	SignInFreeAttempts     int
	RateLimitRedisEnabled  bool
	ReadinessCheckTimeout  time.Duration
	ServerStartGracePeriod time.Duration
	ShutdownTimeout        time.Duration

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string
}

// LoadEnvFile loads KEY=VALUE pairs from path into the environment.
// Variables that are already set win; a missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if _, err := os.Stat(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("stat env file: %w", err)
	}
	if err := godotenv.Load(path); err != nil {
		return fmt.Errorf("load env file: %w", err)
	}
	return nil
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")
	cfg := &Config{
		Env:                      env,
		IdentityURL:              strings.TrimRight(getEnv("IDENTITY_URL", "http://localhost:9999"), "/"),
		IdentityAnonKey:          os.Getenv("IDENTITY_ANON_KEY"),
		AllowedEmailDomains:      splitCSV(getEnv("ALLOWED_EMAIL_DOMAINS", "@uwo.ca")),
		PasswordResetRedirectURL: os.Getenv("PASSWORD_RESET_REDIRECT_URL"),
		SessionStore:             strings.ToLower(getEnv("SESSION_STORE", "file")),
		SessionFile:              getEnv("SESSION_FILE", defaultSessionFile()),
		RedisAddr:                getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:            os.Getenv("REDIS_PASSWORD"),
		RedisDB:                  getEnvInt("REDIS_DB", 0),
		RedisPrefix:              getEnv("REDIS_PREFIX", "accountkit"),

		HTTPPort:              getEnv("HTTP_PORT", "9999"),
		CORSAllowedOrigins:    splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "*")),
		DatabaseDriver:        strings.ToLower(getEnv("DATABASE_DRIVER", "sqlite")),
		DatabaseURL:           getEnv("DATABASE_URL", "file:accountkit.db?_pragma=foreign_keys(1)"),
		JWTSecret:             os.Getenv("JWT_SECRET"),
		AuthAutoconfirm:       getEnvBool("AUTH_AUTOCONFIRM", true),
		AuthRateLimitPerMin:   getEnvInt("AUTH_RATE_LIMIT_PER_MIN", 30),
		RateLimitRedisEnabled: getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		SignInGuardEnabled:    getEnvBool("SIGNIN_GUARD_ENABLED", true),
		SignInFreeAttempts:    getEnvInt("SIGNIN_GUARD_FREE_ATTEMPTS", 5),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "campus-accountkit"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", false),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", false),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", false),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
	}

	durations := []struct {
		key string
		def string
		dst *time.Duration
	}{
		{"PROFILE_ENRICH_DELAY", "500ms", &cfg.ProfileEnrichDelay},
		{"JWT_ACCESS_TTL", "1h", &cfg.JWTAccessTTL},
		{"JWT_REFRESH_TTL", "720h", &cfg.JWTRefreshTTL},
		{"RECOVERY_TOKEN_TTL", "1h", &cfg.RecoveryTokenTTL},
		{"READINESS_CHECK_TIMEOUT", "1s", &cfg.ReadinessCheckTimeout},
		{"SERVER_START_GRACE_PERIOD", "0s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.dst = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the settings every entry point needs.
func (c *Config) Validate() error {
	var errs []string
	if u, err := url.Parse(c.IdentityURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, "IDENTITY_URL must be an absolute URL")
	}
	if len(c.AllowedEmailDomains) == 0 {
		errs = append(errs, "ALLOWED_EMAIL_DOMAINS must list at least one domain")
	}
	if c.ProfileEnrichDelay < 0 || c.ProfileEnrichDelay > 10*time.Second {
		errs = append(errs, "PROFILE_ENRICH_DELAY must be between 0 and 10s")
	}
	switch c.SessionStore {
	case "memory", "redis":
	case "file":
		if strings.TrimSpace(c.SessionFile) == "" {
			errs = append(errs, "SESSION_FILE is required when SESSION_STORE=file")
		}
	default:
		errs = append(errs, "SESSION_STORE must be one of memory, file, redis")
	}
	if c.SessionStore == "redis" && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when SESSION_STORE=redis")
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

// ValidateServer adds the requirements of the local identity server.
func (c *Config) ValidateServer() error {
	var errs []string
	if err := c.Validate(); err != nil {
		errs = append(errs, err.Error())
	}
	switch c.DatabaseDriver {
	case "postgres", "sqlite":
	default:
		errs = append(errs, "DATABASE_DRIVER must be one of postgres, sqlite")
	}
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTSecret) < 32 {
		errs = append(errs, "JWT_SECRET must be at least 32 chars")
	}
	if c.IdentityAnonKey == "" {
		errs = append(errs, "IDENTITY_ANON_KEY is required")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > 24*time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 24h")
	}
	if c.JWTRefreshTTL <= 0 || c.JWTRefreshTTL > (90*24*time.Hour) {
		errs = append(errs, "JWT_REFRESH_TTL must be between 1s and 90d")
	}
	if c.RecoveryTokenTTL <= 0 {
		errs = append(errs, "RECOVERY_TOKEN_TTL must be > 0")
	}
	if c.AuthRateLimitPerMin <= 0 {
		errs = append(errs, "AUTH_RATE_LIMIT_PER_MIN must be > 0")
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED=true")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) RedisRequired() bool {
	return c.SessionStore == "redis" || c.RateLimitRedisEnabled
}

func defaultSessionFile() string {
	dir, err := os.UserConfigDir()
	if err != nil || dir == "" {
		return ".campus-session.json"
	}
	return dir + string(os.PathSeparator) + "campus" + string(os.PathSeparator) + "session.json"
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
