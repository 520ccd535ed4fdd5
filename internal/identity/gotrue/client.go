// Package gotrue is a client for the hosted identity service: the GoTrue
// auth API under /auth/v1 and the PostgREST profiles table under /rest/v1.
package gotrue

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/oauth2"
	"golang.org/x/sync/singleflight"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/session"
)

const (
	maxResponseBytes = 1 << 20
	clientInfo       = "accountkit-go"
	pgrstObject      = "application/vnd.pgrst.object+json"

	// refreshLeeway refreshes access tokens this long before they expire.
	refreshLeeway = 10 * time.Second
)

type Options struct {
	BaseURL string
	AnonKey string
	Store   session.Store
	// Transport is the base round tripper; http.DefaultTransport when nil.
	Transport http.RoundTripper
	Timeout   time.Duration
	Logger    *slog.Logger
}

// Client implements identity.Auth and identity.ProfileTable. The signed-in
// session lives only in the configured store and is read through on every call.
type Client struct {
	baseURL   *url.URL
	anonKey   string
	store     session.Store
	transport http.RoundTripper
	timeout   time.Duration
	logger    *slog.Logger
	refreshes singleflight.Group
}

var (
	_ identity.Auth         = (*Client)(nil)
	_ identity.ProfileTable = (*Client)(nil)
)

func New(opts Options) (*Client, error) {
	u, err := url.Parse(strings.TrimRight(opts.BaseURL, "/"))
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gotrue: invalid base url %q", opts.BaseURL)
	}
	base := opts.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	store := opts.Store
	if store == nil {
		store = session.NewMemoryStore()
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		baseURL:   u,
		anonKey:   opts.AnonKey,
		store:     store,
		transport: otelhttp.NewTransport(&apiKeyTransport{key: opts.AnonKey, next: base}),
		timeout:   timeout,
		logger:    logger,
	}, nil
}

// apiKeyTransport adds the project key every identity endpoint requires.
type apiKeyTransport struct {
	key  string
	next http.RoundTripper
}

func (t *apiKeyTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	r2 := r.Clone(r.Context())
	if t.key != "" {
		r2.Header.Set("apikey", t.key)
	}
	r2.Header.Set("X-Client-Info", clientInfo)
	return t.next.RoundTrip(r2)
}

type call struct {
	endpoint string
	method   string
	path     string
	query    url.Values
	header   http.Header
	body     any
	token    *oauth2.Token
	out      any
}

func (c *Client) do(ctx context.Context, req call) error {
	u := c.baseURL.JoinPath(req.path)
	if len(req.query) > 0 {
		u.RawQuery = req.query.Encode()
	}

	var body io.Reader
	if req.body != nil {
		raw, err := json.Marshal(req.body)
		if err != nil {
			return fmt.Errorf("gotrue: encode %s request: %w", req.endpoint, err)
		}
		body = bytes.NewReader(raw)
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u.String(), body)
	if err != nil {
		return fmt.Errorf("gotrue: build %s request: %w", req.endpoint, err)
	}
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}
	for k, vs := range req.header {
		httpReq.Header[k] = vs
	}

	tok := req.token
	if tok == nil {
		tok = &oauth2.Token{AccessToken: c.anonKey, TokenType: domain.TokenTypeBearer}
	}
	httpClient := &http.Client{
		Transport: &oauth2.Transport{Source: oauth2.StaticTokenSource(tok), Base: c.transport},
		Timeout:   c.timeout,
	}

	start := time.Now()
	status := "transport_error"
	defer func() {
		observability.RecordIdentityClientRequest(ctx, req.endpoint, status, time.Since(start))
	}()

	resp, err := httpClient.Do(httpReq)
	if err != nil {
		return &identity.Error{Code: identity.CodeTransport, Message: err.Error(), Err: err}
	}
	defer resp.Body.Close()
	status = strconv.Itoa(resp.StatusCode)

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &identity.Error{Status: resp.StatusCode, Code: identity.CodeTransport, Message: err.Error(), Err: err}
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return decodeError(resp.StatusCode, raw)
	}
	if req.out == nil || len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	if err := json.Unmarshal(raw, req.out); err != nil {
		return &identity.Error{Status: resp.StatusCode, Code: identity.CodeUnexpected, Message: "malformed response from identity service", Err: err}
	}
	return nil
}

func (c *Client) SignUp(ctx context.Context, params identity.SignUpParams) (*identity.AuthResponse, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		endpoint: "signup",
		method:   http.MethodPost,
		path:     "/auth/v1/signup",
		body: map[string]any{
			"email":    params.Email,
			"password": params.Password,
			"data":     params.Data,
		},
		out: &raw,
	})
	if err != nil {
		return nil, err
	}
	return c.acceptAuthResponse(ctx, raw)
}

func (c *Client) SignInWithPassword(ctx context.Context, email, password string) (*identity.AuthResponse, error) {
	var raw json.RawMessage
	err := c.do(ctx, call{
		endpoint: "token_password",
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"password"}},
		body:     map[string]string{"email": email, "password": password},
		out:      &raw,
	})
	if err != nil {
		return nil, err
	}
	return c.acceptAuthResponse(ctx, raw)
}

// acceptAuthResponse decodes either a session or a bare user. A session is
// persisted and becomes the ambient session.
func (c *Client) acceptAuthResponse(ctx context.Context, raw json.RawMessage) (*identity.AuthResponse, error) {
	var s domain.Session
	if err := json.Unmarshal(raw, &s); err != nil {
		return nil, &identity.Error{Code: identity.CodeUnexpected, Message: "malformed auth response", Err: err}
	}
	if s.AccessToken != "" {
		c.fillExpiry(&s)
		if err := c.store.Save(ctx, &s); err != nil {
			return nil, fmt.Errorf("gotrue: persist session: %w", err)
		}
		return &identity.AuthResponse{User: s.User, Session: &s}, nil
	}
	var user domain.Identity
	if err := json.Unmarshal(raw, &user); err != nil {
		return nil, &identity.Error{Code: identity.CodeUnexpected, Message: "malformed auth response", Err: err}
	}
	if user.ID == "" {
		return &identity.AuthResponse{}, nil
	}
	return &identity.AuthResponse{User: &user}, nil
}

func (c *Client) fillExpiry(s *domain.Session) {
	if s.ExpiresAt == 0 && s.ExpiresIn > 0 {
		s.ExpiresAt = time.Now().Add(time.Duration(s.ExpiresIn) * time.Second).Unix()
	}
}

// SignOut revokes the session server side and always forgets it locally.
// A session the server no longer knows is not an error.
func (c *Client) SignOut(ctx context.Context) error {
	s, err := c.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("gotrue: load session: %w", err)
	}
	var remoteErr error
	if s != nil && s.AccessToken != "" {
		remoteErr = c.do(ctx, call{
			endpoint: "logout",
			method:   http.MethodPost,
			path:     "/auth/v1/logout",
			token:    s.OAuth2Token(),
		})
		var ie *identity.Error
		if errors.As(remoteErr, &ie) && (ie.Status == http.StatusUnauthorized || ie.Status == http.StatusNotFound || ie.Status == http.StatusForbidden) {
			remoteErr = nil
		}
	}
	if err := c.store.Clear(ctx); err != nil {
		return errors.Join(remoteErr, fmt.Errorf("gotrue: clear session: %w", err))
	}
	return remoteErr
}

// GetSession returns the stored session, refreshing it first when the
// access token has expired. It returns (nil, nil) when signed out.
func (c *Client) GetSession(ctx context.Context) (*domain.Session, error) {
	s, err := c.store.Load(ctx)
	if err != nil {
		return nil, fmt.Errorf("gotrue: load session: %w", err)
	}
	if s == nil || !s.Expired(time.Now(), refreshLeeway) {
		return s, nil
	}
	if s.RefreshToken == "" {
		_ = c.store.Clear(ctx)
		return nil, nil
	}
	// The refresh is shared by every waiter, so it must outlive the caller
	// that started it. The client timeout still bounds it.
	v, err, _ := c.refreshes.Do(s.RefreshToken, func() (any, error) {
		return c.refresh(context.WithoutCancel(ctx), s.RefreshToken)
	})
	if err != nil {
		return nil, err
	}
	return v.(*domain.Session), nil
}

func (c *Client) refresh(ctx context.Context, refreshToken string) (*domain.Session, error) {
	var s domain.Session
	err := c.do(ctx, call{
		endpoint: "token_refresh",
		method:   http.MethodPost,
		path:     "/auth/v1/token",
		query:    url.Values{"grant_type": {"refresh_token"}},
		body:     map[string]string{"refresh_token": refreshToken},
		out:      &s,
	})
	if err != nil {
		var ie *identity.Error
		if errors.As(err, &ie) && ie.Code != identity.CodeTransport && ie.Status >= 400 && ie.Status < 500 {
			observability.RecordSessionRefresh(ctx, "rejected")
			c.logger.WarnContext(ctx, "session refresh rejected, signing out locally", "code", ie.Code)
			_ = c.store.Clear(ctx)
			return nil, err
		}
		observability.RecordSessionRefresh(ctx, "error")
		return nil, err
	}
	c.fillExpiry(&s)
	if err := c.store.Save(ctx, &s); err != nil {
		observability.RecordSessionRefresh(ctx, "error")
		return nil, fmt.Errorf("gotrue: persist refreshed session: %w", err)
	}
	observability.RecordSessionRefresh(ctx, "success")
	return &s, nil
}

// GetUser asks the service who the current access token belongs to.
func (c *Client) GetUser(ctx context.Context) (*domain.Identity, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, identity.ErrNoSession
	}
	var user domain.Identity
	if err := c.do(ctx, call{
		endpoint: "user",
		method:   http.MethodGet,
		path:     "/auth/v1/user",
		token:    s.OAuth2Token(),
		out:      &user,
	}); err != nil {
		return nil, err
	}
	return &user, nil
}

// UpdatePassword changes the password of the signed-in identity.
func (c *Client) UpdatePassword(ctx context.Context, password string) (*domain.Identity, error) {
	s, err := c.GetSession(ctx)
	if err != nil {
		return nil, err
	}
	if s == nil {
		return nil, identity.ErrNoSession
	}
	var user domain.Identity
	if err := c.do(ctx, call{
		endpoint: "user_update",
		method:   http.MethodPut,
		path:     "/auth/v1/user",
		token:    s.OAuth2Token(),
		body:     map[string]string{"password": password},
		out:      &user,
	}); err != nil {
		return nil, err
	}
	return &user, nil
}

func (c *Client) ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error {
	var query url.Values
	if redirectTo != "" {
		query = url.Values{"redirect_to": {redirectTo}}
	}
	return c.do(ctx, call{
		endpoint: "recover",
		method:   http.MethodPost,
		path:     "/auth/v1/recover",
		query:    query,
		body:     map[string]string{"email": email},
	})
}

// VerifyRecovery exchanges an emailed recovery token for a session.
func (c *Client) VerifyRecovery(ctx context.Context, email, token string) (*domain.Session, error) {
	var raw json.RawMessage
	if err := c.do(ctx, call{
		endpoint: "verify",
		method:   http.MethodPost,
		path:     "/auth/v1/verify",
		body:     map[string]string{"type": "recovery", "email": email, "token": token},
		out:      &raw,
	}); err != nil {
		return nil, err
	}
	resp, err := c.acceptAuthResponse(ctx, raw)
	if err != nil {
		return nil, err
	}
	if resp.Session == nil {
		return nil, &identity.Error{Code: identity.CodeUnexpected, Message: "verify returned no session"}
	}
	return resp.Session, nil
}

// Health calls the auth API liveness endpoint.
func (c *Client) Health(ctx context.Context) error {
	return c.do(ctx, call{endpoint: "health", method: http.MethodGet, path: "/auth/v1/health"})
}

func (c *Client) SelectByID(ctx context.Context, id string) (*domain.Profile, error) {
	return c.selectProfile(ctx, "id", id)
}

func (c *Client) SelectByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	return c.selectProfile(ctx, "email", email)
}

func (c *Client) selectProfile(ctx context.Context, column, value string) (*domain.Profile, error) {
	var p domain.Profile
	err := c.do(ctx, call{
		endpoint: "profiles_select",
		method:   http.MethodGet,
		path:     "/rest/v1/profiles",
		query:    url.Values{column: {"eq." + value}, "select": {"*"}},
		header:   http.Header{"Accept": {pgrstObject}},
		token:    c.bearer(ctx),
		out:      &p,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *Client) UpdateByID(ctx context.Context, id string, columns map[string]any) (*domain.Profile, error) {
	var p domain.Profile
	err := c.do(ctx, call{
		endpoint: "profiles_update",
		method:   http.MethodPatch,
		path:     "/rest/v1/profiles",
		query:    url.Values{"id": {"eq." + id}},
		header: http.Header{
			"Accept": {pgrstObject},
			"Prefer": {"return=representation"},
		},
		body:  columns,
		token: c.bearer(ctx),
		out:   &p,
	})
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// bearer is the session token for row level access, or nil for the anon key.
func (c *Client) bearer(ctx context.Context) *oauth2.Token {
	s, err := c.GetSession(ctx)
	if err != nil || s == nil {
		return nil
	}
	return s.OAuth2Token()
}
