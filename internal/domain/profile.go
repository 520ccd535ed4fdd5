package domain

import (
	"errors"
	"strings"
	"time"
)

const (
	MetadataFirstName = "first_name"
	MetadataLastName  = "last_name"
)

var (
	ErrProgramRequired     = errors.New("program is required")
	ErrYearOfStudyRequired = errors.New("year of study is required")
)

type Profile struct {
	ID          string    `gorm:"primaryKey;size:36" json:"id"`
	Email       string    `gorm:"uniqueIndex;size:255;not null" json:"email"`
	FirstName   string    `gorm:"size:255" json:"first_name"`
	LastName    string    `gorm:"size:255" json:"last_name"`
	Program     string    `gorm:"size:255" json:"program"`
	YearOfStudy string    `gorm:"size:64" json:"year_of_study"`
	Bio         string    `gorm:"size:2048" json:"bio"`
	PhoneNumber *string   `gorm:"size:32" json:"phone_number"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (p *Profile) FullName() string {
	return strings.TrimSpace(p.FirstName + " " + p.LastName)
}

// SignUpProfile is what the onboarding form collects next to the credential.
type SignUpProfile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Program     string `json:"program"`
	YearOfStudy string `json:"year_of_study"`
	Bio         string `json:"bio"`
	PhoneNumber string `json:"phone_number"`
}

func (p SignUpProfile) Validate() error {
	if strings.TrimSpace(p.Program) == "" {
		return ErrProgramRequired
	}
	if strings.TrimSpace(p.YearOfStudy) == "" {
		return ErrYearOfStudyRequired
	}
	return nil
}

func (p SignUpProfile) Metadata() Metadata {
	return Metadata{
		MetadataFirstName: p.FirstName,
		MetadataLastName:  p.LastName,
	}
}

// EnrichmentColumns returns the profile columns written after sign-up.
// An empty phone number is stored as null.
func (p SignUpProfile) EnrichmentColumns(now time.Time) map[string]any {
	var phone any
	if v := strings.TrimSpace(p.PhoneNumber); v != "" {
		phone = v
	}
	return map[string]any{
		"program":       p.Program,
		"year_of_study": p.YearOfStudy,
		"bio":           p.Bio,
		"phone_number":  phone,
		"updated_at":    now.UTC(),
	}
}

// ProfileUpdate is a partial update; nil fields are left untouched.
type ProfileUpdate struct {
	FirstName   *string `json:"first_name,omitempty"`
	LastName    *string `json:"last_name,omitempty"`
	Program     *string `json:"program,omitempty"`
	YearOfStudy *string `json:"year_of_study,omitempty"`
	Bio         *string `json:"bio,omitempty"`
	PhoneNumber *string `json:"phone_number,omitempty"`
}

func (u ProfileUpdate) Empty() bool {
	return u.FirstName == nil && u.LastName == nil && u.Program == nil &&
		u.YearOfStudy == nil && u.Bio == nil && u.PhoneNumber == nil
}

// Columns merges the set fields with an updated_at stamp.
func (u ProfileUpdate) Columns(now time.Time) map[string]any {
	cols := map[string]any{"updated_at": now.UTC()}
	set := func(name string, v *string) {
		if v != nil {
			cols[name] = *v
		}
	}
	set("first_name", u.FirstName)
	set("last_name", u.LastName)
	set("program", u.Program)
	set("year_of_study", u.YearOfStudy)
	set("bio", u.Bio)
	if u.PhoneNumber != nil {
		if strings.TrimSpace(*u.PhoneNumber) == "" {
			cols["phone_number"] = nil
		} else {
			cols["phone_number"] = *u.PhoneNumber
		}
	}
	return cols
}
