package di

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/service"
	"github.com/campusmarket/accountkit/internal/session"
)

func TestProvideHTTPServer(t *testing.T) {
	cfg := &config.Config{HTTPPort: "9999"}
	srv := provideHTTPServer(cfg, nil)
	if srv.Addr != ":9999" {
		t.Fatalf("unexpected addr: %s", srv.Addr)
	}
	if srv.ReadTimeout.Seconds() != 10 {
		t.Fatalf("unexpected read timeout: %v", srv.ReadTimeout)
	}
}

func TestProvideRouterDependencies(t *testing.T) {
	cfg := &config.Config{
		CORSAllowedOrigins:  []string{"http://localhost:19006"},
		AuthRateLimitPerMin: 10,
		IdentityAnonKey:     "anon",
		OTELMetricsEnabled:  true,
	}
	dep := provideRouterDependencies(nil, nil, nil, nil, nil, cfg)
	if dep.AuthRateLimitRPM != 10 || dep.AnonKey != "anon" {
		t.Fatalf("unexpected dependencies: %+v", dep)
	}
	if !dep.EnableOTelHTTP {
		t.Fatal("expected otel http enabled")
	}
	if len(dep.CORSOrigins) != 1 || dep.CORSOrigins[0] != "http://localhost:19006" {
		t.Fatalf("unexpected cors origins: %+v", dep.CORSOrigins)
	}
}

func TestProvideSessionStore(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cases := []struct {
		store string
		check func(session.Store) bool
	}{
		{"memory", func(s session.Store) bool { _, ok := s.(*session.MemoryStore); return ok }},
		{"file", func(s session.Store) bool { _, ok := s.(*session.FileStore); return ok }},
		{"redis", func(s session.Store) bool { _, ok := s.(*session.RedisStore); return ok }},
	}
	for _, tc := range cases {
		cfg := &config.Config{
			SessionStore: tc.store,
			SessionFile:  filepath.Join(t.TempDir(), "session.json"),
			RedisPrefix:  "test",
		}
		if got := provideSessionStore(cfg, client); !tc.check(got) {
			t.Fatalf("store %q: unexpected implementation %T", tc.store, got)
		}
	}
}

func TestProvideClientRedisOnlyForRedisSessions(t *testing.T) {
	logger := provideClientLogger(&config.Config{OTELLogLevel: "info"})
	if c := provideClientRedis(&config.Config{SessionStore: "file"}, logger); c != nil {
		t.Fatalf("expected no redis client for file sessions, got %T", c)
	}
	mr := miniredis.RunT(t)
	c := provideClientRedis(&config.Config{SessionStore: "redis", RedisAddr: mr.Addr()}, logger)
	if c == nil {
		t.Fatal("expected redis client for redis sessions")
	}
	defer c.Close()
	if err := c.Ping(context.Background()).Err(); err != nil {
		t.Fatalf("ping: %v", err)
	}
}

func TestProvideGotrueClientRejectsBadURL(t *testing.T) {
	cfg := &config.Config{IdentityURL: "not a url"}
	if _, err := provideGotrueClient(cfg, session.NewMemoryStore(), provideClientLogger(cfg)); err == nil {
		t.Fatal("expected error for invalid identity url")
	}
}

func TestProvideAuthRateLimiterUsesRedis(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	cfg := &config.Config{RateLimitRedisEnabled: true, RedisPrefix: "rl", AuthRateLimitPerMin: 1}
	mw := provideAuthRateLimiter(cfg, client)
	h := mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusNoContent) }))

	codes := make([]int, 0, 2)
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/auth/v1/token", nil)
		req.RemoteAddr = "203.0.113.7:1234"
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)
		codes = append(codes, rr.Code)
	}
	if codes[0] != http.StatusNoContent || codes[1] != http.StatusTooManyRequests {
		t.Fatalf("expected [204 429], got %v", codes)
	}
	if !mr.Exists("rl:ratelimit:auth:203.0.113.7:60000ms") {
		t.Fatalf("expected the auth window key, got %v", mr.Keys())
	}
}

func TestProvideSignInGuard(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	if _, ok := provideSignInGuard(&config.Config{}, client).(service.NoopSignInGuard); !ok {
		t.Fatal("expected noop guard when disabled")
	}
	if _, ok := provideSignInGuard(&config.Config{SignInGuardEnabled: true}, nil).(*service.MemorySignInGuard); !ok {
		t.Fatal("expected in-process guard without redis")
	}
	cfg := &config.Config{SignInGuardEnabled: true, RateLimitRedisEnabled: true, RedisPrefix: "sg"}
	if _, ok := provideSignInGuard(cfg, client).(*service.RedisSignInGuard); !ok {
		t.Fatal("expected redis guard when the limiter uses redis")
	}
}

func newSQLiteConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
	}
}

func openSQLite(t *testing.T) (*config.Config, *gorm.DB) {
	t.Helper()
	cfg := newSQLiteConfig(t)
	db, err := provideOpenDB(cfg)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return cfg, db
}

func TestMigrationRunnerLifecycle(t *testing.T) {
	cfg, db := openSQLite(t)
	m := NewMigrationRunner(cfg, db)
	ctx := context.Background()

	if err := m.Ping(ctx); err != nil {
		t.Fatalf("ping: %v", err)
	}
	before, err := m.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !database.Pending(before) {
		t.Fatal("expected pending migrations on an empty database")
	}
	if err := m.Up(); err != nil {
		t.Fatalf("up: %v", err)
	}
	after, err := m.Status()
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if database.Pending(after) {
		t.Fatalf("expected no pending migrations, got %+v", after)
	}

	report, err := m.Seed(ctx, false)
	if err != nil {
		t.Fatalf("seed: %v", err)
	}
	if len(report.Created) != len(database.DemoAccounts) {
		t.Fatalf("expected %d demo accounts, got %+v", len(database.DemoAccounts), report)
	}
	if m.Driver() != "sqlite" {
		t.Fatalf("unexpected driver %q", m.Driver())
	}
}

func TestProvideReadinessRunner(t *testing.T) {
	cfg, db := openSQLite(t)
	cfg.ReadinessCheckTimeout = time.Second
	runner := provideReadinessRunner(cfg, db, nil)
	ready, results := runner.Ready(context.Background())
	if !ready || len(results) != 1 {
		t.Fatalf("expected one healthy db check, got %v %+v", ready, results)
	}
}
