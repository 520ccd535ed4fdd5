package repository

import (
	"context"
	"errors"
	"time"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
)

type IdentityRepository interface {
	// Create stores the identity and its password hash in one transaction.
	// The profile row is provisioned by the identity's create hook.
	Create(ctx context.Context, identity *domain.Identity, passwordHash string) error
	FindByID(ctx context.Context, id string) (*domain.Identity, error)
	FindByEmail(ctx context.Context, email string) (*domain.Identity, error)
	FindCredential(ctx context.Context, identityID string) (*domain.LocalCredential, error)
	UpdatePasswordHash(ctx context.Context, identityID, hash string) error
	MarkSignedIn(ctx context.Context, identityID string, at time.Time) error
	Confirm(ctx context.Context, identityID string, at time.Time) error
	Count(ctx context.Context) (int64, error)
}

type GormIdentityRepository struct{ db *gorm.DB }

func NewIdentityRepository(db *gorm.DB) IdentityRepository {
	return &GormIdentityRepository{db: db}
}

func (r *GormIdentityRepository) Create(ctx context.Context, identity *domain.Identity, passwordHash string) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing int64
		if err := tx.Model(&domain.Identity{}).Where("email = ?", identity.Email).Count(&existing).Error; err != nil {
			return err
		}
		if existing > 0 {
			return ErrEmailTaken
		}
		if err := tx.Create(identity).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return ErrEmailTaken
			}
			return err
		}
		return tx.Create(&domain.LocalCredential{IdentityID: identity.ID, PasswordHash: passwordHash}).Error
	})
	return record(ctx, "identity", "create", err, nil)
}

func (r *GormIdentityRepository) FindByID(ctx context.Context, id string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&identity).Error
	if err := record(ctx, "identity", "find_by_id", err, ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *GormIdentityRepository) FindByEmail(ctx context.Context, email string) (*domain.Identity, error) {
	var identity domain.Identity
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&identity).Error
	if err := record(ctx, "identity", "find_by_email", err, ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &identity, nil
}

func (r *GormIdentityRepository) FindCredential(ctx context.Context, identityID string) (*domain.LocalCredential, error) {
	var cred domain.LocalCredential
	err := r.db.WithContext(ctx).Where("identity_id = ?", identityID).First(&cred).Error
	if err := record(ctx, "identity", "find_credential", err, ErrIdentityNotFound); err != nil {
		return nil, err
	}
	return &cred, nil
}

func (r *GormIdentityRepository) UpdatePasswordHash(ctx context.Context, identityID, hash string) error {
	res := r.db.WithContext(ctx).Model(&domain.LocalCredential{}).
		Where("identity_id = ?", identityID).
		Updates(map[string]any{"password_hash": hash, "updated_at": time.Now().UTC()})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
	}
	return record(ctx, "identity", "update_password", err, ErrIdentityNotFound)
}

func (r *GormIdentityRepository) MarkSignedIn(ctx context.Context, identityID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ?", identityID).
		Update("last_sign_in_at", at.UTC()).Error
	return record(ctx, "identity", "mark_signed_in", err, nil)
}

func (r *GormIdentityRepository) Confirm(ctx context.Context, identityID string, at time.Time) error {
	err := r.db.WithContext(ctx).Model(&domain.Identity{}).
		Where("id = ? AND email_confirmed_at IS NULL", identityID).
		Update("email_confirmed_at", at.UTC()).Error
	return record(ctx, "identity", "confirm", err, nil)
}

func (r *GormIdentityRepository) Count(ctx context.Context) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&domain.Identity{}).Count(&n).Error
	return n, record(ctx, "identity", "count", err, nil)
}
