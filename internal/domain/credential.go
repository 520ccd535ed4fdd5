package domain

import (
	"strings"
	"time"
)

// NormalizeEmail trims and lower-cases an email before comparison or transmission.
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

// LocalCredential is the password hash stored by the local identity server.
type LocalCredential struct {
	ID           uint      `gorm:"primaryKey" json:"id"`
	IdentityID   string    `gorm:"uniqueIndex;size:36;not null" json:"identity_id"`
	PasswordHash string    `gorm:"size:1024;not null" json:"-"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}
