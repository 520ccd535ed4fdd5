package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/emailgate"
	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/http/handler"
	"github.com/campusmarket/accountkit/internal/http/middleware"
	"github.com/campusmarket/accountkit/internal/http/router"
	"github.com/campusmarket/accountkit/internal/identity/gotrue"
	"github.com/campusmarket/accountkit/internal/repository"
	"github.com/campusmarket/accountkit/internal/security"
	"github.com/campusmarket/accountkit/internal/service"
	"github.com/campusmarket/accountkit/internal/session"
)

const testAnonKey = "integration-anon-key"

// capturingNotifier keeps every email the server would have sent.
type capturingNotifier struct {
	mu     sync.Mutex
	signup []service.VerificationNotification
	reset  []service.VerificationNotification
}

func (n *capturingNotifier) SendSignupConfirmation(_ context.Context, v service.VerificationNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.signup = append(n.signup, v)
	return nil
}

func (n *capturingNotifier) SendPasswordReset(_ context.Context, v service.VerificationNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.reset = append(n.reset, v)
	return nil
}

func (n *capturingNotifier) lastReset(t *testing.T) service.VerificationNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.reset) == 0 {
		t.Fatal("expected a password reset email")
	}
	return n.reset[len(n.reset)-1]
}

func (n *capturingNotifier) lastSignup(t *testing.T) service.VerificationNotification {
	t.Helper()
	n.mu.Lock()
	defer n.mu.Unlock()
	if len(n.signup) == 0 {
		t.Fatal("expected a signup confirmation email")
	}
	return n.signup[len(n.signup)-1]
}

type serverOptions struct {
	autoconfirm bool
	rpm         int
	db          *gorm.DB
}

type identityServer struct {
	URL      string
	DB       *gorm.DB
	Notifier *capturingNotifier
}

func newSQLiteDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := database.Open(&config.Config{
		DatabaseDriver: "sqlite",
		DatabaseURL:    "file:" + t.Name() + "?mode=memory&cache=shared",
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate sqlite: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

// newIdentityServer wires the dev server the way cmd/devserver does, on
// top of db (a fresh sqlite database when nil).
func newIdentityServer(t *testing.T, opts serverOptions) *identityServer {
	t.Helper()
	db := opts.db
	if db == nil {
		db = newSQLiteDB(t)
	}
	if opts.rpm == 0 {
		opts.rpm = 1000
	}
	cfg := &config.Config{
		IdentityAnonKey:          testAnonKey,
		JWTSecret:                strings.Repeat("s", 32),
		JWTAccessTTL:             15 * time.Minute,
		JWTRefreshTTL:            24 * time.Hour,
		RecoveryTokenTTL:         time.Hour,
		AuthAutoconfirm:          opts.autoconfirm,
		AuthRateLimitPerMin:      opts.rpm,
		PasswordResetRedirectURL: "campus://reset",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	jwtMgr := security.NewJWTManager("accountkit", domain.AudienceDefault, cfg.JWTSecret)
	tokens := service.NewTokenService(jwtMgr, repository.NewRefreshTokenRepository(db), cfg.JWTAccessTTL, cfg.JWTRefreshTTL)
	notifier := &capturingNotifier{}
	authSvc := service.NewAuthService(cfg, repository.NewIdentityRepository(db), tokens, repository.NewVerificationTokenRepository(db), notifier, logger)
	profileSvc := service.NewProfileService(repository.NewProfileRepository(db))

	h := router.NewRouter(router.Dependencies{
		AuthHandler:      handler.NewAuthHandler(authSvc, "integration"),
		RestHandler:      handler.NewRestHandler(profileSvc),
		JWTManager:       jwtMgr,
		AnonKey:          testAnonKey,
		AuthRateLimitRPM: cfg.AuthRateLimitPerMin,
		AuthRateLimiter:  middleware.NewRateLimiter(cfg.AuthRateLimitPerMin, time.Minute).Middleware(),
		Readiness:        health.NewReadinessRunner(time.Second, 0, health.NewDBChecker(db)),
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &identityServer{URL: srv.URL, DB: db, Notifier: notifier}
}

// newAccount returns an account service speaking to srv with its own
// in-memory session.
func (s *identityServer) newAccount(t *testing.T) *service.AccountService {
	t.Helper()
	client, err := gotrue.New(gotrue.Options{
		BaseURL: s.URL,
		AnonKey: testAnonKey,
		Store:   session.NewMemoryStore(),
		Timeout: 5 * time.Second,
	})
	if err != nil {
		t.Fatalf("create identity client: %v", err)
	}
	return service.NewAccountService(client, client, emailgate.NewGate(emailgate.DefaultDomains), service.AccountConfig{
		ProfileEnrichDelay:       10 * time.Millisecond,
		PasswordResetRedirectURL: "campus://reset",
	}, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func (s *identityServer) postJSON(t *testing.T, path string, body any) (int, map[string]any) {
	t.Helper()
	return s.sendJSON(t, http.MethodPost, path, "", body)
}

// sendJSON sends body with the apikey header, plus a bearer when token is set.
func (s *identityServer) sendJSON(t *testing.T, method, path, token string, body any) (int, map[string]any) {
	t.Helper()
	raw, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	req, err := http.NewRequest(method, s.URL+path, bytes.NewReader(raw))
	if err != nil {
		t.Fatalf("build request: %v", err)
	}
	req.Header.Set("apikey", testAnonKey)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post %s: %v", path, err)
	}
	defer resp.Body.Close()
	var out map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&out)
	return resp.StatusCode, out
}

func sampleProfile() domain.SignUpProfile {
	return domain.SignUpProfile{
		FirstName:   "Jane",
		LastName:    "Doe",
		Program:     "Computer Science",
		YearOfStudy: "3rd Year",
		Bio:         "selling a road bike",
	}
}
