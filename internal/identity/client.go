// Package identity defines the contract of the hosted identity and profile
// service the account flow is built on.
package identity

import (
	"context"

	"github.com/campusmarket/accountkit/internal/domain"
)

type SignUpParams struct {
	Email    string
	Password string
	Data     domain.Metadata
}

// AuthResponse carries the user and session returned by sign-up and sign-in.
// A user without a session after sign-up means the email was already registered.
type AuthResponse struct {
	User    *domain.Identity `json:"user"`
	Session *domain.Session  `json:"session"`
}

//go:generate mockgen -source=client.go -destination=gomock/mock_identity.go -package=gomock

type Auth interface {
	SignUp(ctx context.Context, params SignUpParams) (*AuthResponse, error)
	SignInWithPassword(ctx context.Context, email, password string) (*AuthResponse, error)
	SignOut(ctx context.Context) error
	GetSession(ctx context.Context) (*domain.Session, error)
	GetUser(ctx context.Context) (*domain.Identity, error)
	ResetPasswordForEmail(ctx context.Context, email, redirectTo string) error
	VerifyRecovery(ctx context.Context, email, token string) (*domain.Session, error)
	UpdatePassword(ctx context.Context, password string) (*domain.Identity, error)
}

// ProfileTable is the profiles table. Missing rows are reported as an
// *Error with CodeProfileNotFound.
type ProfileTable interface {
	SelectByID(ctx context.Context, id string) (*domain.Profile, error)
	SelectByEmail(ctx context.Context, email string) (*domain.Profile, error)
	UpdateByID(ctx context.Context, id string, columns map[string]any) (*domain.Profile, error)
}
