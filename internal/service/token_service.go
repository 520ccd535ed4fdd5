package service

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/repository"
	"github.com/campusmarket/accountkit/internal/security"
)

const refreshTokenBytes = 32

// TokenService issues sessions: a signed access token plus an opaque refresh
// token whose hash is stored. Refresh tokens rotate on use; presenting a
// rotated token again revokes its whole family.
type TokenService struct {
	jwtMgr      *security.JWTManager
	refreshRepo repository.RefreshTokenRepository
	accessTTL   time.Duration
	refreshTTL  time.Duration
	now         func() time.Time
}

func NewTokenService(jwtMgr *security.JWTManager, refreshRepo repository.RefreshTokenRepository, accessTTL, refreshTTL time.Duration) *TokenService {
	return &TokenService{jwtMgr: jwtMgr, refreshRepo: refreshRepo, accessTTL: accessTTL, refreshTTL: refreshTTL, now: time.Now}
}

// Issue starts a new refresh token family for ident.
func (s *TokenService) Issue(ctx context.Context, ident *domain.Identity) (*domain.Session, error) {
	familyID := uuid.NewString()
	raw, row, err := s.newRefreshToken(ident.ID, familyID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRepo.Create(ctx, row); err != nil {
		return nil, err
	}
	return s.session(ident, familyID, raw)
}

// Rotate exchanges a refresh token for a new session. lookup loads the
// identity the token belongs to.
func (s *TokenService) Rotate(ctx context.Context, raw string, lookup func(ctx context.Context, id string) (*domain.Identity, error)) (*domain.Session, error) {
	now := s.now()
	current, err := s.refreshRepo.FindByHash(ctx, security.HashToken(raw))
	if errors.Is(err, repository.ErrRefreshTokenNotFound) {
		return nil, ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, err
	}
	if current.RevokedAt != nil {
		if err := s.refreshRepo.RevokeFamily(ctx, current.FamilyID, now); err != nil {
			return nil, err
		}
		return nil, ErrRefreshTokenReused
	}
	if !current.Active(now) {
		return nil, ErrRefreshTokenInvalid
	}

	ident, err := lookup(ctx, current.IdentityID)
	if errors.Is(err, repository.ErrIdentityNotFound) {
		return nil, ErrRefreshTokenInvalid
	}
	if err != nil {
		return nil, err
	}

	nextRaw, next, err := s.newRefreshToken(ident.ID, current.FamilyID)
	if err != nil {
		return nil, err
	}
	if err := s.refreshRepo.Rotate(ctx, current, next, now); err != nil {
		if errors.Is(err, repository.ErrRefreshTokenNotFound) {
			return nil, ErrRefreshTokenReused
		}
		return nil, err
	}
	return s.session(ident, current.FamilyID, nextRaw)
}

func (s *TokenService) RevokeAll(ctx context.Context, identityID string) error {
	_, err := s.refreshRepo.RevokeByIdentity(ctx, identityID, s.now())
	return err
}

func (s *TokenService) newRefreshToken(identityID, familyID string) (string, *domain.RefreshToken, error) {
	raw, err := security.NewOpaqueToken(refreshTokenBytes)
	if err != nil {
		return "", nil, err
	}
	return raw, &domain.RefreshToken{
		IdentityID: identityID,
		TokenHash:  security.HashToken(raw),
		FamilyID:   familyID,
		ExpiresAt:  s.now().Add(s.refreshTTL),
	}, nil
}

func (s *TokenService) session(ident *domain.Identity, sessionID, refresh string) (*domain.Session, error) {
	access, exp, err := s.jwtMgr.SignAccessToken(security.AccessTokenInput{
		Subject:      ident.ID,
		Email:        ident.Email,
		Role:         ident.Role,
		SessionID:    sessionID,
		UserMetadata: ident.UserMetadata,
		TTL:          s.accessTTL,
	})
	if err != nil {
		return nil, err
	}
	return &domain.Session{
		AccessToken:  access,
		TokenType:    domain.TokenTypeBearer,
		ExpiresIn:    int64(s.accessTTL / time.Second),
		ExpiresAt:    exp.Unix(),
		RefreshToken: refresh,
		User:         ident,
	}, nil
}
