package service

import (
	"context"
	"errors"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/repository"
	"github.com/campusmarket/accountkit/internal/security"
)

const (
	confirmationTokenTTL = 24 * time.Hour
	verificationBytes    = 24
)

// AuthService implements the identity server flows behind /auth/v1.
type AuthService struct {
	cfg                   *config.Config
	identities            repository.IdentityRepository
	tokenSvc              *TokenService
	verificationTokenRepo repository.VerificationTokenRepository
	notifier              Notifier
	logger                *slog.Logger
	now                   func() time.Time
}

func NewAuthService(
	cfg *config.Config,
	identities repository.IdentityRepository,
	tokenSvc *TokenService,
	verificationTokenRepo repository.VerificationTokenRepository,
	notifier Notifier,
	logger *slog.Logger,
) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		cfg:                   cfg,
		identities:            identities,
		tokenSvc:              tokenSvc,
		verificationTokenRepo: verificationTokenRepo,
		notifier:              notifier,
		logger:                logger,
		now:                   time.Now,
	}
}

// SignUp registers email. A session is returned only when the address is
// new and confirmation is not required. An address that is already taken
// gets an unsaved look-alike user and no session, so callers cannot learn
// which emails are registered.
func (s *AuthService) SignUp(ctx context.Context, email, password string, data domain.Metadata) (ident *domain.Identity, sess *domain.Session, err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "signup", eventOutcome(err, sess != nil)) }()

	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return nil, nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, nil, err
	}
	if data == nil {
		data = domain.Metadata{}
	}

	if _, err := s.identities.FindByEmail(ctx, email); err == nil {
		return s.obfuscatedUser(email, data), nil, nil
	} else if !errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, nil, err
	}

	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	now := s.now().UTC()
	ident = &domain.Identity{
		ID:           uuid.NewString(),
		Aud:          domain.AudienceDefault,
		Role:         domain.RoleAuthenticated,
		Email:        email,
		UserMetadata: data,
	}
	if s.cfg.AuthAutoconfirm {
		ident.EmailConfirmedAt = &now
	}
	if err := s.identities.Create(ctx, ident, hash); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			return s.obfuscatedUser(email, data), nil, nil
		}
		return nil, nil, err
	}

	if !s.cfg.AuthAutoconfirm {
		if err := s.sendVerification(ctx, ident, domain.TokenPurposeSignup, confirmationTokenTTL, ""); err != nil {
			return nil, nil, err
		}
		return ident, nil, nil
	}
	sess, err = s.startSession(ctx, ident)
	if err != nil {
		return nil, nil, err
	}
	return ident, sess, nil
}

func (s *AuthService) obfuscatedUser(email string, data domain.Metadata) *domain.Identity {
	now := s.now().UTC()
	return &domain.Identity{
		ID:           uuid.NewString(),
		Aud:          domain.AudienceDefault,
		Role:         domain.RoleAuthenticated,
		Email:        email,
		UserMetadata: data,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func (s *AuthService) SignInWithPassword(ctx context.Context, email, password string) (sess *domain.Session, err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "password_grant", eventOutcome(err, true)) }()

	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, ErrInvalidCredentials
	}
	ident, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	cred, err := s.identities.FindCredential(ctx, ident.ID)
	if errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	ok, err := security.VerifyPassword(cred.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}
	if !ident.Confirmed() {
		return nil, ErrEmailNotConfirmed
	}
	return s.startSession(ctx, ident)
}

func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (sess *domain.Session, err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "refresh_grant", eventOutcome(err, true)) }()

	if strings.TrimSpace(refreshToken) == "" {
		return nil, ErrRefreshTokenInvalid
	}
	return s.tokenSvc.Rotate(ctx, refreshToken, s.identities.FindByID)
}

// Logout revokes every refresh token of the identity.
func (s *AuthService) Logout(ctx context.Context, identityID string) (err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "logout", eventOutcome(err, true)) }()
	return s.tokenSvc.RevokeAll(ctx, identityID)
}

func (s *AuthService) User(ctx context.Context, identityID string) (*domain.Identity, error) {
	ident, err := s.identities.FindByID(ctx, identityID)
	if errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, ErrUserNotFound
	}
	return ident, err
}

func (s *AuthService) UpdatePassword(ctx context.Context, identityID, password string) (ident *domain.Identity, err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "update_user", eventOutcome(err, true)) }()

	if err := validatePassword(password); err != nil {
		return nil, err
	}
	hash, err := security.HashPassword(password)
	if err != nil {
		return nil, err
	}
	if err := s.identities.UpdatePasswordHash(ctx, identityID, hash); err != nil {
		if errors.Is(err, repository.ErrIdentityNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, err
	}
	return s.User(ctx, identityID)
}

// Recover emails a recovery token. Unknown addresses succeed silently.
func (s *AuthService) Recover(ctx context.Context, email, redirectTo string) (err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "recover", eventOutcome(err, true)) }()

	email = domain.NormalizeEmail(email)
	if err := validateEmail(email); err != nil {
		return err
	}
	ident, err := s.identities.FindByEmail(ctx, email)
	if errors.Is(err, repository.ErrIdentityNotFound) {
		s.logger.InfoContext(ctx, "recovery requested for unknown email")
		return nil
	}
	if err != nil {
		return err
	}
	if strings.TrimSpace(redirectTo) == "" {
		redirectTo = s.cfg.PasswordResetRedirectURL
	}
	return s.sendVerification(ctx, ident, domain.TokenPurposeRecovery, s.cfg.RecoveryTokenTTL, redirectTo)
}

// Verify redeems an emailed token of the given type ("signup" or
// "recovery"), confirms the address and starts a session.
func (s *AuthService) Verify(ctx context.Context, kind, email, token string) (sess *domain.Session, err error) {
	defer func() { observability.RecordIdentityServerEvent(ctx, "verify", eventOutcome(err, true)) }()

	var purpose string
	switch kind {
	case domain.TokenPurposeSignup, domain.TokenPurposeRecovery:
		purpose = kind
	default:
		return nil, ErrUnsupportedVerify
	}
	now := s.now().UTC()
	ident, err := s.identities.FindByEmail(ctx, domain.NormalizeEmail(email))
	if errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, ErrVerificationInvalid
	}
	if err != nil {
		return nil, err
	}
	vt, err := s.verificationTokenRepo.FindActiveByHashPurpose(ctx, security.HashToken(token), purpose, now)
	if errors.Is(err, repository.ErrVerificationTokenNotFound) {
		return nil, ErrVerificationInvalid
	}
	if err != nil {
		return nil, err
	}
	if vt.IdentityID != ident.ID {
		return nil, ErrVerificationInvalid
	}
	if err := s.verificationTokenRepo.Consume(ctx, vt.ID, ident.ID, now); err != nil {
		if errors.Is(err, repository.ErrVerificationTokenNotFound) {
			return nil, ErrVerificationInvalid
		}
		return nil, err
	}
	if !ident.Confirmed() {
		if err := s.identities.Confirm(ctx, ident.ID, now); err != nil {
			return nil, err
		}
		ident.EmailConfirmedAt = &now
	}
	return s.startSession(ctx, ident)
}

func (s *AuthService) startSession(ctx context.Context, ident *domain.Identity) (*domain.Session, error) {
	now := s.now().UTC()
	if err := s.identities.MarkSignedIn(ctx, ident.ID, now); err != nil {
		return nil, err
	}
	ident.LastSignInAt = &now
	return s.tokenSvc.Issue(ctx, ident)
}

func (s *AuthService) sendVerification(ctx context.Context, ident *domain.Identity, purpose string, ttl time.Duration, redirectTo string) error {
	raw, err := security.NewOpaqueToken(verificationBytes)
	if err != nil {
		return err
	}
	now := s.now().UTC()
	token := &domain.VerificationToken{
		IdentityID: ident.ID,
		Purpose:    purpose,
		TokenHash:  security.HashToken(raw),
		ExpiresAt:  now.Add(ttl),
	}
	if err := s.verificationTokenRepo.Issue(ctx, token, now); err != nil {
		return err
	}
	n := VerificationNotification{
		IdentityID: ident.ID,
		Email:      ident.Email,
		Token:      raw,
		ExpiresAt:  token.ExpiresAt,
		RedirectTo: redirectTo,
	}
	if purpose == domain.TokenPurposeSignup {
		err = s.notifier.SendSignupConfirmation(ctx, n)
	} else {
		err = s.notifier.SendPasswordReset(ctx, n)
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "verification email failed", "purpose", purpose, "identity_id", ident.ID, "error", err)
	}
	return nil
}

func eventOutcome(err error, issued bool) string {
	switch {
	case err != nil:
		return "failure"
	case !issued:
		return "no_session"
	default:
		return "success"
	}
}

func validateEmail(email string) error {
	if email == "" {
		return ErrInvalidEmail
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return ErrInvalidEmail
	}
	return nil
}

func validatePassword(password string) error {
	if password == "" {
		return ErrMissingCredentials
	}
	if len([]rune(password)) < MinPasswordLength {
		return ErrWeakPassword
	}
	return nil
}
