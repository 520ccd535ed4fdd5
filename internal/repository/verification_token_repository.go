package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
)

type VerificationTokenRepository interface {
	// Issue invalidates the identity's outstanding tokens of the same
	// purpose and stores token.
	Issue(ctx context.Context, token *domain.VerificationToken, now time.Time) error
	FindActiveByHashPurpose(ctx context.Context, hash, purpose string, now time.Time) (*domain.VerificationToken, error)
	Consume(ctx context.Context, tokenID uint, identityID string, now time.Time) error
}

type GormVerificationTokenRepository struct {
	db *gorm.DB
}

func NewVerificationTokenRepository(db *gorm.DB) VerificationTokenRepository {
	return &GormVerificationTokenRepository{db: db}
}

func (r *GormVerificationTokenRepository) Issue(ctx context.Context, token *domain.VerificationToken, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&domain.VerificationToken{}).
			Where("identity_id = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", token.IdentityID, token.Purpose, now).
			Updates(map[string]any{"used_at": now, "updated_at": now}).Error; err != nil {
			return err
		}
		return tx.Create(token).Error
	})
	return record(ctx, "verification_token", "issue", err, nil)
}

func (r *GormVerificationTokenRepository) FindActiveByHashPurpose(ctx context.Context, hash, purpose string, now time.Time) (*domain.VerificationToken, error) {
	var token domain.VerificationToken
	err := r.db.WithContext(ctx).
		Where("token_hash = ? AND purpose = ? AND used_at IS NULL AND expires_at > ?", hash, purpose, now).
		First(&token).Error
	if err := record(ctx, "verification_token", "find_active", err, ErrVerificationTokenNotFound); err != nil {
		return nil, err
	}
	return &token, nil
}

func (r *GormVerificationTokenRepository) Consume(ctx context.Context, tokenID uint, identityID string, now time.Time) error {
	res := r.db.WithContext(ctx).Model(&domain.VerificationToken{}).
		Where("id = ? AND identity_id = ? AND used_at IS NULL", tokenID, identityID).
		Updates(map[string]any{"used_at": now, "updated_at": now})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
	}
	return record(ctx, "verification_token", "consume", err, ErrVerificationTokenNotFound)
}
