package repository

import (
	"context"

	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
)

// profileColumns are the columns a caller may write.
var profileColumns = map[string]struct{}{
	"first_name":    {},
	"last_name":     {},
	"program":       {},
	"year_of_study": {},
	"bio":           {},
	"phone_number":  {},
	"updated_at":    {},
}

// WritableProfileColumn reports whether callers may set the named column.
func WritableProfileColumn(name string) bool {
	_, ok := profileColumns[name]
	return ok
}

// NullableProfileColumn reports whether the named column may be set to null.
// A null updated_at means "now".
func NullableProfileColumn(name string) bool {
	return name == "phone_number" || name == "updated_at"
}

type ProfileRepository interface {
	FindByID(ctx context.Context, id string) (*domain.Profile, error)
	FindByEmail(ctx context.Context, email string) (*domain.Profile, error)
	Update(ctx context.Context, id string, columns map[string]any) (*domain.Profile, error)
}

type GormProfileRepository struct{ db *gorm.DB }

func NewProfileRepository(db *gorm.DB) ProfileRepository {
	return &GormProfileRepository{db: db}
}

func (r *GormProfileRepository) FindByID(ctx context.Context, id string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&p).Error
	if err := record(ctx, "profile", "find_by_id", err, ErrProfileNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *GormProfileRepository) FindByEmail(ctx context.Context, email string) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.WithContext(ctx).Where("email = ?", email).First(&p).Error
	if err := record(ctx, "profile", "find_by_email", err, ErrProfileNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}

// Update writes the known columns of columns and returns the stored row.
// Unknown keys are dropped.
func (r *GormProfileRepository) Update(ctx context.Context, id string, columns map[string]any) (*domain.Profile, error) {
	updates := make(map[string]any, len(columns))
	for k, v := range columns {
		if _, ok := profileColumns[k]; ok {
			updates[k] = v
		}
	}
	var p domain.Profile
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("id = ?", id).First(&p).Error; err != nil {
			return err
		}
		if len(updates) == 0 {
			return nil
		}
		if err := tx.Model(&domain.Profile{}).Where("id = ?", id).Updates(updates).Error; err != nil {
			return err
		}
		p = domain.Profile{}
		return tx.Where("id = ?", id).First(&p).Error
	})
	if err := record(ctx, "profile", "update", err, ErrProfileNotFound); err != nil {
		return nil, err
	}
	return &p, nil
}
