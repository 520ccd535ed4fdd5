package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/observability"
)

var (
	ErrIdentityNotFound          = errors.New("identity not found")
	ErrEmailTaken                = errors.New("email already registered")
	ErrProfileNotFound           = errors.New("profile not found")
	ErrRefreshTokenNotFound      = errors.New("refresh token not found")
	ErrVerificationTokenNotFound = errors.New("verification token not found")
)

// record reports the outcome of a repository call and passes err through.
// notFound is returned in place of gorm.ErrRecordNotFound.
func record(ctx context.Context, repo, op string, err, notFound error) error {
	switch {
	case err == nil:
		observability.RecordRepositoryOperation(ctx, repo, op, "success")
		return nil
	case notFound != nil && errors.Is(err, gorm.ErrRecordNotFound):
		observability.RecordRepositoryOperation(ctx, repo, op, "not_found")
		return notFound
	default:
		observability.RecordRepositoryOperation(ctx, repo, op, "error")
		return err
	}
}
