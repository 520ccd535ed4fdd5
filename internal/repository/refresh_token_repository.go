package repository

import (
	"context"
	"time"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
)

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *domain.RefreshToken) error
	FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error)
	// Rotate revokes old and stores next in the same family. It fails with
	// ErrRefreshTokenNotFound when old was already revoked.
	Rotate(ctx context.Context, old *domain.RefreshToken, next *domain.RefreshToken, now time.Time) error
	RevokeFamily(ctx context.Context, familyID string, now time.Time) error
	RevokeByIdentity(ctx context.Context, identityID string, now time.Time) (int64, error)
	CleanupExpired(ctx context.Context, now time.Time) (int64, error)
}

type GormRefreshTokenRepository struct{ db *gorm.DB }

func NewRefreshTokenRepository(db *gorm.DB) RefreshTokenRepository {
	return &GormRefreshTokenRepository{db: db}
}

func (r *GormRefreshTokenRepository) Create(ctx context.Context, token *domain.RefreshToken) error {
	return record(ctx, "refresh_token", "create", r.db.WithContext(ctx).Create(token).Error, nil)
}

func (r *GormRefreshTokenRepository) FindByHash(ctx context.Context, hash string) (*domain.RefreshToken, error) {
	var t domain.RefreshToken
	err := r.db.WithContext(ctx).Where("token_hash = ?", hash).First(&t).Error
	if err := record(ctx, "refresh_token", "find_by_hash", err, ErrRefreshTokenNotFound); err != nil {
		return nil, err
	}
	return &t, nil
}

func (r *GormRefreshTokenRepository) Rotate(ctx context.Context, old *domain.RefreshToken, next *domain.RefreshToken, now time.Time) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		next.FamilyID = old.FamilyID
		next.IdentityID = old.IdentityID
		if err := tx.Create(next).Error; err != nil {
			return err
		}
		res := tx.Model(&domain.RefreshToken{}).
			Where("id = ? AND revoked_at IS NULL", old.ID).
			Updates(map[string]any{"revoked_at": now, "replaced_by": next.ID, "updated_at": now})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return gorm.ErrRecordNotFound
		}
		return nil
	})
	return record(ctx, "refresh_token", "rotate", err, ErrRefreshTokenNotFound)
}

func (r *GormRefreshTokenRepository) RevokeFamily(ctx context.Context, familyID string, now time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("family_id = ? AND revoked_at IS NULL", familyID).
		Updates(map[string]any{"revoked_at": now, "updated_at": now}).Error
	return record(ctx, "refresh_token", "revoke_family", err, nil)
}

func (r *GormRefreshTokenRepository) RevokeByIdentity(ctx context.Context, identityID string, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Model(&domain.RefreshToken{}).
		Where("identity_id = ? AND revoked_at IS NULL", identityID).
		Updates(map[string]any{"revoked_at": now, "updated_at": now})
	return res.RowsAffected, record(ctx, "refresh_token", "revoke_by_identity", res.Error, nil)
}

func (r *GormRefreshTokenRepository) CleanupExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Where("expires_at <= ?", now).Delete(&domain.RefreshToken{})
	return res.RowsAffected, record(ctx, "refresh_token", "cleanup_expired", res.Error, nil)
}
