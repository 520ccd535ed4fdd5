package domain

import (
	"time"

	"gorm.io/gorm"
)

const (
	RoleAuthenticated = "authenticated"
	AudienceDefault   = "authenticated"
)

// Metadata is the free-form user_metadata object carried with an identity.
type Metadata map[string]any

func (m Metadata) String(key string) string {
	if m == nil {
		return ""
	}
	v, _ := m[key].(string)
	return v
}

// Identity is the account record owned by the identity service. Its ID is
// the foreign key of the profile row.
type Identity struct {
	ID               string     `gorm:"primaryKey;size:36" json:"id"`
	Aud              string     `gorm:"size:64;not null;default:authenticated" json:"aud"`
	Role             string     `gorm:"size:64;not null;default:authenticated" json:"role"`
	Email            string     `gorm:"uniqueIndex;size:255;not null" json:"email"`
	UserMetadata     Metadata   `gorm:"serializer:json" json:"user_metadata"`
	EmailConfirmedAt *time.Time `json:"email_confirmed_at,omitempty"`
	LastSignInAt     *time.Time `json:"last_sign_in_at,omitempty"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
}

func (i *Identity) Confirmed() bool {
	return i != nil && i.EmailConfirmedAt != nil
}

// AfterCreate provisions the profile row inside the identity's transaction,
// so a profile exists exactly when its identity does.
func (i *Identity) AfterCreate(tx *gorm.DB) error {
	profile := &Profile{
		ID:        i.ID,
		Email:     i.Email,
		FirstName: i.UserMetadata.String(MetadataFirstName),
		LastName:  i.UserMetadata.String(MetadataLastName),
		UpdatedAt: i.CreatedAt,
	}
	return tx.Create(profile).Error
}
