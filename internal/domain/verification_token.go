package domain

import "time"

const (
	TokenPurposeRecovery = "recovery"
	TokenPurposeSignup   = "signup"
)

// VerificationToken is a single-use emailed token. Only its hash is stored.
type VerificationToken struct {
	ID         uint       `gorm:"primaryKey"`
	IdentityID string     `gorm:"index;size:36;not null"`
	Purpose    string     `gorm:"index;size:32;not null"`
	TokenHash  string     `gorm:"uniqueIndex;size:128;not null"`
	ExpiresAt  time.Time  `gorm:"index;not null"`
	UsedAt     *time.Time `gorm:"index"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}
