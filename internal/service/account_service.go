package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/emailgate"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/observability"
)

const DefaultProfileEnrichDelay = 500 * time.Millisecond

type AccountConfig struct {
	// ProfileEnrichDelay is how long sign-up waits for the server side
	// profile trigger before writing the enrichment fields.
	ProfileEnrichDelay       time.Duration
	PasswordResetRedirectURL string
}

type AuthResult struct {
	User    *domain.Identity `json:"user"`
	Session *domain.Session  `json:"session"`
}

type SignUpResult struct {
	AuthResult
	ProfileEnriched bool `json:"profile_enriched"`
}

// AccountService is the sign-up, sign-in and profile flow on top of the
// identity service. Every method recovers panics raised by the backend
// client and reports them as identity.CodeUnexpected errors.
type AccountService struct {
	auth     identity.Auth
	profiles identity.ProfileTable
	gate     *emailgate.Gate
	cfg      AccountConfig
	logger   *slog.Logger

	now  func() time.Time
	wait func(ctx context.Context, d time.Duration) error
}

func NewAccountService(auth identity.Auth, profiles identity.ProfileTable, gate *emailgate.Gate, cfg AccountConfig, logger *slog.Logger) *AccountService {
	if cfg.ProfileEnrichDelay < 0 {
		cfg.ProfileEnrichDelay = 0
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &AccountService{
		auth:     auth,
		profiles: profiles,
		gate:     gate,
		cfg:      cfg,
		logger:   logger,
		now:      time.Now,
		wait:     sleepContext,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func (s *AccountService) Gate() *emailgate.Gate { return s.gate }

// SignUp creates an account for an allow-listed email. An email the service
// already knows yields identity.ErrUserAlreadyExists. After a successful
// sign-up the profile row is enriched once; a failed enrichment is logged
// and does not fail the sign-up.
func (s *AccountService) SignUp(ctx context.Context, email, password string, fields domain.SignUpProfile) (res *SignUpResult, err error) {
	defer s.observe(ctx, "sign_up", time.Now(), &err)
	defer s.recoverPanic(ctx, "sign_up", &err)

	email = domain.NormalizeEmail(email)
	if !s.gate.IsValidSchoolEmail(email) {
		s.logger.InfoContext(ctx, "sign up rejected by email gate", "domain", emailgate.EmailDomain(email))
		return nil, identity.ErrInvalidEmailDomain
	}

	resp, err := s.auth.SignUp(ctx, identity.SignUpParams{
		Email:    email,
		Password: password,
		Data:     fields.Metadata(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "sign up failed", "code", identity.CodeOf(err), "error", err)
		if identity.CodeOf(err) == identity.CodeEmailExists {
			return nil, identity.ErrUserAlreadyExists
		}
		return nil, err
	}
	if resp == nil || resp.User == nil {
		return nil, &identity.Error{Code: identity.CodeUnexpected, Message: "identity service returned no user"}
	}
	if resp.Session == nil {
		return nil, identity.ErrUserAlreadyExists
	}

	result := &SignUpResult{AuthResult: AuthResult{User: resp.User, Session: resp.Session}}
	result.ProfileEnriched = s.enrichProfile(ctx, resp.User.ID, fields)
	return result, nil
}

func (s *AccountService) enrichProfile(ctx context.Context, userID string, fields domain.SignUpProfile) bool {
	if err := s.wait(ctx, s.cfg.ProfileEnrichDelay); err != nil {
		observability.RecordProfileEnrichment(ctx, "skipped")
		s.logger.WarnContext(ctx, "profile enrichment skipped", "user_id", userID, "error", err)
		return false
	}
	if _, err := s.profiles.UpdateByID(ctx, userID, fields.EnrichmentColumns(s.now())); err != nil {
		observability.RecordProfileEnrichment(ctx, "failure")
		s.logger.ErrorContext(ctx, "profile enrichment failed", "user_id", userID, "code", identity.CodeOf(err), "error", err)
		return false
	}
	observability.RecordProfileEnrichment(ctx, "success")
	return true
}

// SignIn authenticates with email and password. The email gate is not
// consulted: accounts may predate it.
func (s *AccountService) SignIn(ctx context.Context, email, password string) (res *AuthResult, err error) {
	defer s.observe(ctx, "sign_in", time.Now(), &err)
	defer s.recoverPanic(ctx, "sign_in", &err)

	resp, err := s.auth.SignInWithPassword(ctx, domain.NormalizeEmail(email), password)
	if err != nil {
		return nil, err
	}
	if resp == nil {
		return &AuthResult{}, nil
	}
	return &AuthResult{User: resp.User, Session: resp.Session}, nil
}

func (s *AccountService) SignOut(ctx context.Context) (err error) {
	defer s.observe(ctx, "sign_out", time.Now(), &err)
	defer s.recoverPanic(ctx, "sign_out", &err)
	return s.auth.SignOut(ctx)
}

// CurrentSession returns the ambient session, or nil when signed out.
func (s *AccountService) CurrentSession(ctx context.Context) (sess *domain.Session, err error) {
	defer s.observe(ctx, "current_session", time.Now(), &err)
	defer s.recoverPanic(ctx, "current_session", &err)
	return s.auth.GetSession(ctx)
}

// CurrentUser returns the signed-in identity, or nil when signed out.
func (s *AccountService) CurrentUser(ctx context.Context) (user *domain.Identity, err error) {
	defer s.observe(ctx, "current_user", time.Now(), &err)
	defer s.recoverPanic(ctx, "current_user", &err)

	user, err = s.auth.GetUser(ctx)
	if errors.Is(err, identity.ErrNoSession) {
		return nil, nil
	}
	return user, err
}

// GetUserProfile returns (nil, nil) when the row does not exist yet.
func (s *AccountService) GetUserProfile(ctx context.Context, id string) (p *domain.Profile, err error) {
	defer s.observe(ctx, "get_profile", time.Now(), &err)
	defer s.recoverPanic(ctx, "get_profile", &err)

	p, err = s.profiles.SelectByID(ctx, id)
	if errors.Is(err, identity.ErrProfileNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UpdateUserProfile merges the set fields into the row and always stamps
// updated_at.
func (s *AccountService) UpdateUserProfile(ctx context.Context, id string, update domain.ProfileUpdate) (p *domain.Profile, err error) {
	defer s.observe(ctx, "update_profile", time.Now(), &err)
	defer s.recoverPanic(ctx, "update_profile", &err)
	return s.profiles.UpdateByID(ctx, id, update.Columns(s.now()))
}

func (s *AccountService) ResetPassword(ctx context.Context, email string) (err error) {
	defer s.observe(ctx, "reset_password", time.Now(), &err)
	defer s.recoverPanic(ctx, "reset_password", &err)
	return s.auth.ResetPasswordForEmail(ctx, domain.NormalizeEmail(email), s.cfg.PasswordResetRedirectURL)
}

// ConfirmPasswordReset redeems an emailed recovery token, which signs the
// account in, and then sets newPassword on it.
func (s *AccountService) ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) (user *domain.Identity, err error) {
	defer s.observe(ctx, "confirm_reset", time.Now(), &err)
	defer s.recoverPanic(ctx, "confirm_reset", &err)

	if _, err := s.auth.VerifyRecovery(ctx, domain.NormalizeEmail(email), strings.TrimSpace(token)); err != nil {
		return nil, err
	}
	return s.auth.UpdatePassword(ctx, newPassword)
}

// ChangePassword sets a new password for the signed-in account.
func (s *AccountService) ChangePassword(ctx context.Context, password string) (user *domain.Identity, err error) {
	defer s.observe(ctx, "change_password", time.Now(), &err)
	defer s.recoverPanic(ctx, "change_password", &err)
	return s.auth.UpdatePassword(ctx, password)
}

// CheckEmailExists reports whether a profile is registered for email.
func (s *AccountService) CheckEmailExists(ctx context.Context, email string) (exists bool, err error) {
	defer s.observe(ctx, "check_email", time.Now(), &err)
	defer s.recoverPanic(ctx, "check_email", &err)

	_, err = s.profiles.SelectByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, identity.ErrProfileNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (s *AccountService) recoverPanic(ctx context.Context, op string, err *error) {
	r := recover()
	if r == nil {
		return
	}
	s.logger.ErrorContext(ctx, "account operation panicked", "operation", op, "panic", r, "stack", string(debug.Stack()))
	*err = &identity.Error{Code: identity.CodeUnexpected, Message: fmt.Sprintf("unexpected error: %v", r)}
}

func (s *AccountService) observe(ctx context.Context, op string, start time.Time, err *error) {
	outcome := "success"
	if *err != nil {
		outcome = string(identity.CodeOf(*err))
	}
	observability.RecordAccountOperation(ctx, op, outcome, time.Since(start))
}
