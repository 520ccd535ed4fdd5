package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func validClientConfig() *Config {
	return &Config{
		Env:                       "development",
		IdentityURL:               "http://localhost:9999",
		AllowedEmailDomains:       []string{"@uwo.ca"},
		ProfileEnrichDelay:        500 * time.Millisecond,
		SessionStore:              "memory",
		OTELMetricsExportInterval: 10 * time.Second,
		OTELTraceSamplingRatio:    1.0,
		OTELLogLevel:              "info",
	}
}

func validServerConfig() *Config {
	cfg := validClientConfig()
	cfg.DatabaseDriver = "sqlite"
	cfg.DatabaseURL = "file::memory:"
	cfg.JWTSecret = "abcdefghijklmnopqrstuvwxyz123456"
	cfg.IdentityAnonKey = "anon-key"
	cfg.JWTAccessTTL = time.Hour
	cfg.JWTRefreshTTL = 24 * time.Hour
	cfg.RecoveryTokenTTL = time.Hour
	cfg.AuthRateLimitPerMin = 30
	return cfg
}

func TestValidateClientConfig(t *testing.T) {
	if err := validClientConfig().Validate(); err != nil {
		t.Fatalf("expected valid config, got %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"relative identity url", func(c *Config) { c.IdentityURL = "localhost" }, "IDENTITY_URL"},
		{"no domains", func(c *Config) { c.AllowedEmailDomains = nil }, "ALLOWED_EMAIL_DOMAINS"},
		{"negative delay", func(c *Config) { c.ProfileEnrichDelay = -time.Second }, "PROFILE_ENRICH_DELAY"},
		{"unknown session store", func(c *Config) { c.SessionStore = "cookie" }, "SESSION_STORE"},
		{"file store without path", func(c *Config) { c.SessionStore = "file"; c.SessionFile = " " }, "SESSION_FILE"},
		{"bad log level", func(c *Config) { c.OTELLogLevel = "trace" }, "OTEL_LOG_LEVEL"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validClientConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error mentioning %s, got %v", tc.want, err)
			}
		})
	}
}

func TestValidateServerRequiresSecrets(t *testing.T) {
	if err := validServerConfig().ValidateServer(); err != nil {
		t.Fatalf("expected valid server config, got %v", err)
	}

	cfg := validServerConfig()
	cfg.JWTSecret = "short"
	cfg.IdentityAnonKey = ""
	cfg.DatabaseDriver = "mysql"
	err := cfg.ValidateServer()
	if err == nil {
		t.Fatal("expected server validation errors")
	}
	for _, want := range []string{"JWT_SECRET", "IDENTITY_ANON_KEY", "DATABASE_DRIVER"} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %s in %q", want, err.Error())
		}
	}
}

func TestLoadReadsEnvironment(t *testing.T) {
	t.Setenv("IDENTITY_URL", "https://auth.example.com/")
	t.Setenv("ALLOWED_EMAIL_DOMAINS", "@uwo.ca, @example.edu")
	t.Setenv("PROFILE_ENRICH_DELAY", "250ms")
	t.Setenv("SESSION_STORE", "memory")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.IdentityURL != "https://auth.example.com" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.IdentityURL)
	}
	if len(cfg.AllowedEmailDomains) != 2 || cfg.AllowedEmailDomains[1] != "@example.edu" {
		t.Fatalf("unexpected domains: %v", cfg.AllowedEmailDomains)
	}
	if cfg.ProfileEnrichDelay != 250*time.Millisecond {
		t.Fatalf("expected 250ms delay, got %s", cfg.ProfileEnrichDelay)
	}
}

func TestLoadRejectsBadDuration(t *testing.T) {
	t.Setenv("SESSION_STORE", "memory")
	t.Setenv("PROFILE_ENRICH_DELAY", "soon")
	if _, err := Load(); err == nil {
		t.Fatal("expected parse error")
	}
}

func TestLoadEnvFileKeepsExistingValues(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".env")
	content := "CAMPUS_TEST_FROM_FILE=file\nCAMPUS_TEST_PRESET=file\n"
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("CAMPUS_TEST_PRESET", "env")
	t.Setenv("CAMPUS_TEST_FROM_FILE", "")
	os.Unsetenv("CAMPUS_TEST_FROM_FILE")

	if err := LoadEnvFile(path); err != nil {
		t.Fatalf("load env file: %v", err)
	}
	if got := os.Getenv("CAMPUS_TEST_FROM_FILE"); got != "file" {
		t.Fatalf("expected value from file, got %q", got)
	}
	if got := os.Getenv("CAMPUS_TEST_PRESET"); got != "env" {
		t.Fatalf("expected existing env to win, got %q", got)
	}
	if err := LoadEnvFile(filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("missing file should be ignored: %v", err)
	}
}
