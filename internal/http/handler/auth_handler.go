package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/http/middleware"
	"github.com/campusmarket/accountkit/internal/http/response"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/service"
)

var (
	errBadJSON    = &identity.Error{Status: http.StatusBadRequest, Code: identity.CodeValidationFailed, Message: "Could not parse request body as JSON"}
	errBodyTooBig = &identity.Error{Status: http.StatusRequestEntityTooLarge, Code: identity.CodeValidationFailed, Message: "Request body too large"}
	errNoClaims   = &identity.Error{Status: http.StatusUnauthorized, Code: identity.CodeBadJWT, Message: "This endpoint requires a Bearer token"}
)

// AuthHandler serves the GoTrue compatible endpoints under /auth/v1.
type AuthHandler struct {
	authSvc service.AuthServiceInterface
	guard   service.SignInGuard
	name    string
}

func NewAuthHandler(authSvc service.AuthServiceInterface, name string) *AuthHandler {
	if name == "" {
		name = "accountkit"
	}
	return &AuthHandler{authSvc: authSvc, guard: service.NoopSignInGuard{}, name: name}
}

// WithSignInGuard throttles password grants and recovery emails.
func (h *AuthHandler) WithSignInGuard(g service.SignInGuard) *AuthHandler {
	if g != nil {
		h.guard = g
	}
	return h
}

type signUpRequest struct {
	Email    string          `json:"email"`
	Password string          `json:"password"`
	Data     domain.Metadata `json:"data"`
}

type tokenRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	RefreshToken string `json:"refresh_token"`
}

type updateUserRequest struct {
	Password string `json:"password"`
}

type recoverRequest struct {
	Email string `json:"email"`
}

type verifyRequest struct {
	Type  string `json:"type"`
	Email string `json:"email"`
	Token string `json:"token"`
}

// SignUp answers with a session when the account is usable immediately and
// with the bare user otherwise.
func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	var req signUpRequest
	if err := decodeJSON(r, &req); err != nil {
		response.AuthError(w, r, err)
		return
	}
	user, sess, err := h.authSvc.SignUp(r.Context(), req.Email, req.Password, req.Data)
	if err != nil {
		observability.Audit(r, "auth.signup.failed", "code", identity.CodeOf(err))
		response.AuthError(w, r, err)
		return
	}
	if sess == nil {
		observability.Audit(r, "auth.signup.pending")
		response.JSON(w, r, http.StatusOK, user)
		return
	}
	observability.Audit(r, "auth.signup.success", "identity_id", user.ID)
	response.JSON(w, r, http.StatusOK, sess)
}

// Token dispatches on the grant_type query parameter.
func (h *AuthHandler) Token(w http.ResponseWriter, r *http.Request) {
	grant := r.URL.Query().Get("grant_type")
	var req tokenRequest
	if err := decodeJSON(r, &req); err != nil {
		response.AuthError(w, r, err)
		return
	}

	var (
		sess *domain.Session
		err  error
	)
	switch grant {
	case "password":
		sess, err = h.passwordGrant(r, req)
	case "refresh_token":
		sess, err = h.authSvc.Refresh(r.Context(), req.RefreshToken)
	default:
		grant = "unsupported"
		err = service.ErrUnsupportedGrantType
	}
	if err != nil {
		observability.Audit(r, "auth.token.failed", "grant_type", grant, "code", identity.CodeOf(err))
		response.AuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.token.success", "grant_type", grant, "identity_id", sess.User.ID)
	response.JSON(w, r, http.StatusOK, sess)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		response.AuthError(w, r, errNoClaims)
		return
	}
	if err := h.authSvc.Logout(r.Context(), subject); err != nil {
		observability.Audit(r, "auth.logout.failed", "identity_id", subject)
		response.AuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.logout.success", "identity_id", subject)
	response.NoContent(w)
}

func (h *AuthHandler) GetUser(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		response.AuthError(w, r, errNoClaims)
		return
	}
	user, err := h.authSvc.User(r.Context(), subject)
	if err != nil {
		response.AuthError(w, r, err)
		return
	}
	response.JSON(w, r, http.StatusOK, user)
}

// UpdateUser only supports password changes.
func (h *AuthHandler) UpdateUser(w http.ResponseWriter, r *http.Request) {
	subject := middleware.SubjectFromContext(r.Context())
	if subject == "" {
		response.AuthError(w, r, errNoClaims)
		return
	}
	var req updateUserRequest
	if err := decodeJSON(r, &req); err != nil {
		response.AuthError(w, r, err)
		return
	}
	user, err := h.authSvc.UpdatePassword(r.Context(), subject, req.Password)
	if err != nil {
		observability.Audit(r, "auth.password.update.failed", "identity_id", subject, "code", identity.CodeOf(err))
		response.AuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.password.update.success", "identity_id", subject)
	response.JSON(w, r, http.StatusOK, user)
}

// Recover always answers {} for a well formed request so the endpoint does
// not reveal which emails are registered.
func (h *AuthHandler) Recover(w http.ResponseWriter, r *http.Request) {
	var req recoverRequest
	if err := decodeJSON(r, &req); err != nil {
		response.AuthError(w, r, err)
		return
	}
	if err := h.guarded(r, service.GuardScopeRecover, req.Email, func() error {
		return h.authSvc.Recover(r.Context(), req.Email, r.URL.Query().Get("redirect_to"))
	}, true); err != nil {
		observability.Audit(r, "auth.recover.failed", "code", identity.CodeOf(err))
		response.AuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.recover.requested")
	response.JSON(w, r, http.StatusOK, struct{}{})
}

func (h *AuthHandler) Verify(w http.ResponseWriter, r *http.Request) {
	var req verifyRequest
	if err := decodeJSON(r, &req); err != nil {
		response.AuthError(w, r, err)
		return
	}
	sess, err := h.authSvc.Verify(r.Context(), req.Type, req.Email, req.Token)
	if err != nil {
		observability.Audit(r, "auth.verify.failed", "type", req.Type, "code", identity.CodeOf(err))
		response.AuthError(w, r, err)
		return
	}
	observability.Audit(r, "auth.verify.success", "type", req.Type, "identity_id", sess.User.ID)
	response.JSON(w, r, http.StatusOK, sess)
}

func (h *AuthHandler) passwordGrant(r *http.Request, req tokenRequest) (*domain.Session, error) {
	var sess *domain.Session
	err := h.guarded(r, service.GuardScopePassword, req.Email, func() error {
		var err error
		sess, err = h.authSvc.SignInWithPassword(r.Context(), req.Email, req.Password)
		return err
	}, false)
	return sess, err
}

// guarded runs fn unless scope is cooling down for the email or client.
// Credential failures are counted; when countAll is set every call is.
// A broken guard backend lets the request through.
func (h *AuthHandler) guarded(r *http.Request, scope service.GuardScope, email string, fn func() error, countAll bool) error {
	ctx := r.Context()
	ip := middleware.ClientIP(r)
	wait, err := h.guard.Check(ctx, scope, email, ip)
	switch {
	case err != nil:
		observability.RecordSignInGuard(ctx, string(scope), "check", "error")
	case wait > 0:
		observability.RecordSignInGuard(ctx, string(scope), "check", "blocked")
		return service.ErrSignInCooldown(wait)
	default:
		observability.RecordSignInGuard(ctx, string(scope), "check", "allowed")
	}

	err = fn()
	switch {
	case err == nil && !countAll:
		if resetErr := h.guard.Reset(ctx, scope, email, ip); resetErr != nil {
			observability.RecordSignInGuard(ctx, string(scope), "reset", "error")
		}
	case countAll || identity.CodeOf(err) == identity.CodeInvalidCredentials:
		outcome := "counted"
		if _, regErr := h.guard.RegisterFailure(ctx, scope, email, ip); regErr != nil {
			outcome = "error"
		}
		observability.RecordSignInGuard(ctx, string(scope), "failure", outcome)
	}
	return err
}

func (h *AuthHandler) Health(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{
		"name":        h.name,
		"description": "campus identity service",
	})
}

// decodeJSON reads a single JSON object. An empty body decodes to the zero value.
func decodeJSON(r *http.Request, dst any) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxBytes *http.MaxBytesError
		switch {
		case errors.Is(err, io.EOF):
			return nil
		case errors.As(err, &maxBytes):
			return errBodyTooBig
		default:
			return errBadJSON
		}
	}
	return nil
}
