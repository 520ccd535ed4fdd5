package service

import (
	"context"

	"github.com/campusmarket/accountkit/internal/domain"
)

type AuthServiceInterface interface {
	SignUp(ctx context.Context, email, password string, data domain.Metadata) (*domain.Identity, *domain.Session, error)
	SignInWithPassword(ctx context.Context, email, password string) (*domain.Session, error)
	Refresh(ctx context.Context, refreshToken string) (*domain.Session, error)
	Logout(ctx context.Context, identityID string) error
	User(ctx context.Context, identityID string) (*domain.Identity, error)
	UpdatePassword(ctx context.Context, identityID, password string) (*domain.Identity, error)
	Recover(ctx context.Context, email, redirectTo string) error
	Verify(ctx context.Context, kind, email, token string) (*domain.Session, error)
}

type ProfileServiceInterface interface {
	Get(ctx context.Context, filter ProfileFilter) (*domain.Profile, error)
	Update(ctx context.Context, callerID, id string, columns map[string]any) (*domain.Profile, error)
}

var (
	_ AuthServiceInterface    = (*AuthService)(nil)
	_ ProfileServiceInterface = (*ProfileService)(nil)
)
