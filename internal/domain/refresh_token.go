package domain

import "time"

// RefreshToken rows store only the hash of the opaque token handed to clients.
type RefreshToken struct {
	ID         uint       `gorm:"primaryKey"`
	IdentityID string     `gorm:"index;size:36;not null"`
	TokenHash  string     `gorm:"uniqueIndex;size:128;not null"`
	FamilyID   string     `gorm:"index;size:36;not null"`
	ExpiresAt  time.Time  `gorm:"index;not null"`
	RevokedAt  *time.Time `gorm:"index"`
	ReplacedBy *uint
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (t *RefreshToken) Active(now time.Time) bool {
	return t.RevokedAt == nil && now.Before(t.ExpiresAt)
}
