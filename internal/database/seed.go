package database

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/observability"
	"github.com/campusmarket/accountkit/internal/repository"
	"github.com/campusmarket/accountkit/internal/security"
)

// DemoPassword is shared by every seeded account.
const DemoPassword = "campus-demo"

type DemoAccount struct {
	Email   string
	Profile domain.SignUpProfile
}

var DemoAccounts = []DemoAccount{
	{
		Email: "jane.doe@uwo.ca",
		Profile: domain.SignUpProfile{
			FirstName: "Jane", LastName: "Doe",
			Program: "Computer Science", YearOfStudy: "3rd Year",
			Bio: "Selling textbooks and a desk lamp.",
		},
	},
	{
		Email: "sam.lee@uwo.ca",
		Profile: domain.SignUpProfile{
			FirstName: "Sam", LastName: "Lee",
			Program: "Engineering", YearOfStudy: "1st Year",
			PhoneNumber: "519-555-0142",
		},
	},
	{
		Email: "priya.patel@uwo.ca",
		Profile: domain.SignUpProfile{
			FirstName: "Priya", LastName: "Patel",
			Program: "Health Sciences", YearOfStudy: "4th Year",
		},
	},
}

type SeedReport struct {
	Created  []string `json:"created"`
	Existing []string `json:"existing"`
	Noop     bool     `json:"noop"`
}

// Seed creates the demo accounts that do not exist yet. Identities go
// through the regular create path so their profile rows are provisioned
// the same way as a sign-up, then enriched. With dryRun nothing is written.
func Seed(ctx context.Context, db *gorm.DB, dryRun bool) (*SeedReport, error) {
	identities := repository.NewIdentityRepository(db)
	profiles := repository.NewProfileRepository(db)
	report := &SeedReport{}

	for _, acct := range DemoAccounts {
		email := domain.NormalizeEmail(acct.Email)
		_, err := identities.FindByEmail(ctx, email)
		if err == nil {
			report.Existing = append(report.Existing, email)
			continue
		}
		if !errors.Is(err, repository.ErrIdentityNotFound) {
			observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
			return nil, err
		}
		report.Created = append(report.Created, email)
		if dryRun {
			continue
		}

		hash, err := security.HashPassword(DemoPassword)
		if err != nil {
			return nil, err
		}
		now := time.Now().UTC()
		ident := &domain.Identity{
			ID:               uuid.NewString(),
			Aud:              domain.AudienceDefault,
			Role:             domain.RoleAuthenticated,
			Email:            email,
			UserMetadata:     acct.Profile.Metadata(),
			EmailConfirmedAt: &now,
		}
		if err := identities.Create(ctx, ident, hash); err != nil {
			observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
			return nil, err
		}
		if _, err := profiles.Update(ctx, ident.ID, acct.Profile.EnrichmentColumns(now)); err != nil {
			observability.RecordDatabaseStartupEvent(ctx, "seed", "error")
			return nil, err
		}
	}

	report.Noop = len(report.Created) == 0
	observability.RecordDatabaseStartupEvent(ctx, "seed", "success")
	return report, nil
}

// ConfirmEmail marks the identity registered for email as confirmed, for
// servers running without AUTH_AUTOCONFIRM.
func ConfirmEmail(ctx context.Context, db *gorm.DB, email string) (*domain.Identity, error) {
	identities := repository.NewIdentityRepository(db)
	ident, err := identities.FindByEmail(ctx, domain.NormalizeEmail(email))
	if err != nil {
		return nil, err
	}
	if ident.Confirmed() {
		return ident, nil
	}
	now := time.Now().UTC()
	if err := identities.Confirm(ctx, ident.ID, now); err != nil {
		return nil, err
	}
	ident.EmailConfirmedAt = &now
	return ident, nil
}
