package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/http/handler"
	"github.com/campusmarket/accountkit/internal/security"
	"github.com/campusmarket/accountkit/internal/service"
)

const anonKey = "router-test-anon-key"

type fakeAuth struct{ signUps int }

func (f *fakeAuth) SignUp(_ context.Context, email, _ string, _ domain.Metadata) (*domain.Identity, *domain.Session, error) {
	f.signUps++
	return &domain.Identity{ID: "id-1", Email: email}, nil, nil
}

func (f *fakeAuth) SignInWithPassword(context.Context, string, string) (*domain.Session, error) {
	return nil, service.ErrInvalidCredentials
}

func (f *fakeAuth) Refresh(context.Context, string) (*domain.Session, error) {
	return nil, service.ErrRefreshTokenInvalid
}

func (f *fakeAuth) Logout(context.Context, string) error { return nil }

func (f *fakeAuth) User(_ context.Context, id string) (*domain.Identity, error) {
	return &domain.Identity{ID: id}, nil
}

func (f *fakeAuth) UpdatePassword(_ context.Context, id, _ string) (*domain.Identity, error) {
	return &domain.Identity{ID: id}, nil
}

func (f *fakeAuth) Recover(context.Context, string, string) error { return nil }

func (f *fakeAuth) Verify(context.Context, string, string, string) (*domain.Session, error) {
	return nil, service.ErrVerificationInvalid
}

type fakeProfiles struct{}

func (fakeProfiles) Get(_ context.Context, filter service.ProfileFilter) (*domain.Profile, error) {
	if filter.ID != "id-1" {
		return nil, service.ErrNoRows
	}
	return &domain.Profile{ID: "id-1", Email: "jane.doe@uwo.ca"}, nil
}

func (fakeProfiles) Update(_ context.Context, callerID, id string, _ map[string]any) (*domain.Profile, error) {
	if callerID != id {
		return nil, service.ErrNoRows
	}
	return &domain.Profile{ID: id}, nil
}

type staticChecker struct{ healthy bool }

func (c staticChecker) Check(context.Context) health.CheckResult {
	return health.CheckResult{Name: "db", Healthy: c.healthy}
}

func newTestRouter(t *testing.T, rpm int, readiness *health.ReadinessRunner) (http.Handler, *fakeAuth, *security.JWTManager) {
	t.Helper()
	auth := &fakeAuth{}
	jwtMgr := security.NewJWTManager("accountkit", domain.AudienceDefault, strings.Repeat("k", 32))
	h := NewRouter(Dependencies{
		AuthHandler:      handler.NewAuthHandler(auth, "test"),
		RestHandler:      handler.NewRestHandler(fakeProfiles{}),
		JWTManager:       jwtMgr,
		AnonKey:          anonKey,
		CORSOrigins:      []string{"*"},
		AuthRateLimitRPM: rpm,
		Readiness:        readiness,
	})
	return h, auth, jwtMgr
}

func send(h http.Handler, method, target, body string, header map[string]string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, target, strings.NewReader(body))
	} else {
		req = httptest.NewRequest(method, target, nil)
	}
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	return rr
}

func TestRouterRequiresAPIKey(t *testing.T) {
	h, _, _ := newTestRouter(t, 100, nil)

	if rr := send(h, http.MethodGet, "/auth/v1/health", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without apikey, got %d", rr.Code)
	}
	if rr := send(h, http.MethodGet, "/auth/v1/health", "", map[string]string{"apikey": anonKey}); rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with apikey, got %d", rr.Code)
	}
	if rr := send(h, http.MethodGet, "/rest/v1/profiles?id=eq.id-1", "", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 on rest without apikey, got %d", rr.Code)
	}
}

func TestRouterHealthEndpoints(t *testing.T) {
	h, _, _ := newTestRouter(t, 100, health.NewReadinessRunner(time.Second, 0, staticChecker{healthy: false}))

	if rr := send(h, http.MethodGet, "/health/live", "", nil); rr.Code != http.StatusOK {
		t.Fatalf("expected live 200, got %d", rr.Code)
	}
	rr := send(h, http.MethodGet, "/health/ready", "", nil)
	if rr.Code != http.StatusServiceUnavailable || !strings.Contains(rr.Body.String(), "unready") {
		t.Fatalf("expected 503 unready, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterUserRequiresBearer(t *testing.T) {
	h, _, jwtMgr := newTestRouter(t, 100, nil)
	key := map[string]string{"apikey": anonKey}

	if rr := send(h, http.MethodGet, "/auth/v1/user", "", key); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without bearer, got %d", rr.Code)
	}

	tok, _, err := jwtMgr.SignAccessToken(security.AccessTokenInput{Subject: "id-1", Role: domain.RoleAuthenticated, TTL: time.Minute})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rr := send(h, http.MethodGet, "/auth/v1/user", "", map[string]string{"apikey": anonKey, "Authorization": "Bearer " + tok})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "id-1") {
		t.Fatalf("expected user for bearer, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterRestAnonymousReadAndOwnerWrite(t *testing.T) {
	h, _, jwtMgr := newTestRouter(t, 100, nil)
	object := "application/vnd.pgrst.object+json"

	rr := send(h, http.MethodGet, "/rest/v1/profiles?id=eq.id-1&select=*", "", map[string]string{
		"apikey": anonKey, "Authorization": "Bearer " + anonKey, "Accept": object,
	})
	if rr.Code != http.StatusOK || !strings.Contains(rr.Body.String(), "jane.doe@uwo.ca") {
		t.Fatalf("expected anonymous read, got %d %s", rr.Code, rr.Body.String())
	}

	rr = send(h, http.MethodPatch, "/rest/v1/profiles?id=eq.id-1", `{"bio":"x"}`, map[string]string{
		"apikey": anonKey, "Accept": object, "Prefer": "return=representation",
	})
	if rr.Code != http.StatusNotAcceptable {
		t.Fatalf("expected 406 for anonymous write, got %d", rr.Code)
	}

	tok, _, err := jwtMgr.SignAccessToken(security.AccessTokenInput{Subject: "id-1", Role: domain.RoleAuthenticated, TTL: time.Minute})
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	rr = send(h, http.MethodPatch, "/rest/v1/profiles?id=eq.id-1", `{"bio":"x"}`, map[string]string{
		"apikey": anonKey, "Authorization": "Bearer " + tok, "Accept": object, "Prefer": "return=representation",
	})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected owner write to succeed, got %d %s", rr.Code, rr.Body.String())
	}
}

func TestRouterRateLimitsSignUp(t *testing.T) {
	h, auth, _ := newTestRouter(t, 2, nil)
	key := map[string]string{"apikey": anonKey}
	body := `{"email":"jane.doe@uwo.ca","password":"hunter22"}`

	for i := 0; i < 2; i++ {
		if rr := send(h, http.MethodPost, "/auth/v1/signup", body, key); rr.Code != http.StatusOK {
			t.Fatalf("request %d: expected 200, got %d", i, rr.Code)
		}
	}
	rr := send(h, http.MethodPost, "/auth/v1/signup", body, key)
	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if rr.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header")
	}
	if auth.signUps != 2 {
		t.Fatalf("expected 2 sign-ups to reach the service, got %d", auth.signUps)
	}
}

func TestRouterCORSPreflight(t *testing.T) {
	h, _, _ := newTestRouter(t, 100, nil)
	rr := send(h, http.MethodOptions, "/auth/v1/signup", "", map[string]string{"Origin": "http://localhost:19006"})
	if rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 preflight without apikey, got %d", rr.Code)
	}
}
