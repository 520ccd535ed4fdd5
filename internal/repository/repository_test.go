package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/campusmarket/accountkit/internal/domain"
)

func newRepositoryDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         gormlogger.Default.LogMode(gormlogger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&domain.Identity{}, &domain.LocalCredential{}, &domain.Profile{}, &domain.RefreshToken{}, &domain.VerificationToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	})
	return db
}

func newIdentity(email string) *domain.Identity {
	return &domain.Identity{
		ID:           uuid.NewString(),
		Aud:          domain.AudienceDefault,
		Role:         domain.RoleAuthenticated,
		Email:        email,
		UserMetadata: domain.Metadata{"first_name": "Ada", "last_name": "Lovelace"},
	}
}

func TestIdentityCreateProvisionsProfile(t *testing.T) {
	ctx := context.Background()
	db := newRepositoryDBForTest(t)
	identities := NewIdentityRepository(db)
	profiles := NewProfileRepository(db)

	id := newIdentity("ada@uwo.ca")
	if err := identities.Create(ctx, id, "hash"); err != nil {
		t.Fatalf("create identity: %v", err)
	}

	p, err := profiles.FindByID(ctx, id.ID)
	if err != nil {
		t.Fatalf("expected profile provisioned with identity: %v", err)
	}
	if p.Email != "ada@uwo.ca" || p.FirstName != "Ada" || p.LastName != "Lovelace" {
		t.Fatalf("unexpected provisioned profile: %+v", p)
	}
	cred, err := identities.FindCredential(ctx, id.ID)
	if err != nil || cred.PasswordHash != "hash" {
		t.Fatalf("unexpected credential %+v err=%v", cred, err)
	}

	if err := identities.Create(ctx, newIdentity("ada@uwo.ca"), "hash"); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}
	var profileCount int64
	db.Model(&domain.Profile{}).Count(&profileCount)
	if profileCount != 1 {
		t.Fatalf("expected exactly one profile, got %d", profileCount)
	}
}

func TestIdentityLookupsAndUpdates(t *testing.T) {
	ctx := context.Background()
	repo := NewIdentityRepository(newRepositoryDBForTest(t))

	if _, err := repo.FindByEmail(ctx, "nobody@uwo.ca"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
	id := newIdentity("grace@uwo.ca")
	if err := repo.Create(ctx, id, "old"); err != nil {
		t.Fatal(err)
	}
	now := time.Now().UTC().Truncate(time.Second)
	if err := repo.Confirm(ctx, id.ID, now); err != nil {
		t.Fatal(err)
	}
	if err := repo.MarkSignedIn(ctx, id.ID, now); err != nil {
		t.Fatal(err)
	}
	loaded, err := repo.FindByEmail(ctx, "grace@uwo.ca")
	if err != nil {
		t.Fatal(err)
	}
	if !loaded.Confirmed() || loaded.LastSignInAt == nil {
		t.Fatalf("expected confirmed identity with sign-in time, got %+v", loaded)
	}
	if loaded.UserMetadata.String("first_name") != "Ada" {
		t.Fatalf("expected metadata round trip, got %v", loaded.UserMetadata)
	}
	if err := repo.UpdatePasswordHash(ctx, id.ID, "new"); err != nil {
		t.Fatal(err)
	}
	if err := repo.UpdatePasswordHash(ctx, uuid.NewString(), "new"); !errors.Is(err, ErrIdentityNotFound) {
		t.Fatalf("expected ErrIdentityNotFound, got %v", err)
	}
	n, err := repo.Count(ctx)
	if err != nil || n != 1 {
		t.Fatalf("expected one identity, got %d err=%v", n, err)
	}
}

func TestProfileUpdateFiltersColumns(t *testing.T) {
	ctx := context.Background()
	db := newRepositoryDBForTest(t)
	id := newIdentity("alan@uwo.ca")
	if err := NewIdentityRepository(db).Create(ctx, id, "hash"); err != nil {
		t.Fatal(err)
	}
	repo := NewProfileRepository(db)

	stamp := time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC)
	updated, err := repo.Update(ctx, id.ID, map[string]any{
		"program":       "Computer Science",
		"year_of_study": "3rd",
		"phone_number":  nil,
		"updated_at":    stamp,
		"email":         "hijack@gmail.com",
	})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.Program != "Computer Science" || updated.YearOfStudy != "3rd" || updated.PhoneNumber != nil {
		t.Fatalf("unexpected updated profile: %+v", updated)
	}
	if updated.Email != "alan@uwo.ca" {
		t.Fatalf("email must not be writable, got %q", updated.Email)
	}
	if !updated.UpdatedAt.Equal(stamp) {
		t.Fatalf("expected updated_at %s, got %s", stamp, updated.UpdatedAt)
	}

	if _, err := repo.Update(ctx, uuid.NewString(), map[string]any{"bio": "x"}); !errors.Is(err, ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
	if _, err := repo.FindByEmail(ctx, "alan@uwo.ca"); err != nil {
		t.Fatalf("find by email: %v", err)
	}
}

func TestRefreshTokenRotation(t *testing.T) {
	ctx := context.Background()
	repo := NewRefreshTokenRepository(newRepositoryDBForTest(t))
	now := time.Now().UTC()

	first := &domain.RefreshToken{IdentityID: "u1", TokenHash: "h1", FamilyID: "f1", ExpiresAt: now.Add(time.Hour)}
	if err := repo.Create(ctx, first); err != nil {
		t.Fatal(err)
	}
	second := &domain.RefreshToken{TokenHash: "h2", ExpiresAt: now.Add(time.Hour)}
	if err := repo.Rotate(ctx, first, second, now); err != nil {
		t.Fatalf("rotate: %v", err)
	}
	if second.FamilyID != "f1" || second.IdentityID != "u1" {
		t.Fatalf("expected family inherited, got %+v", second)
	}
	old, err := repo.FindByHash(ctx, "h1")
	if err != nil {
		t.Fatal(err)
	}
	if old.Active(now) || old.ReplacedBy == nil || *old.ReplacedBy != second.ID {
		t.Fatalf("expected old token revoked and linked, got %+v", old)
	}

	third := &domain.RefreshToken{TokenHash: "h3", ExpiresAt: now.Add(time.Hour)}
	if err := repo.Rotate(ctx, old, third, now); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("expected reuse to fail, got %v", err)
	}
	if _, err := repo.FindByHash(ctx, "h3"); !errors.Is(err, ErrRefreshTokenNotFound) {
		t.Fatalf("failed rotation must not persist the new token, got %v", err)
	}

	if err := repo.RevokeFamily(ctx, "f1", now); err != nil {
		t.Fatal(err)
	}
	latest, _ := repo.FindByHash(ctx, "h2")
	if latest.Active(now) {
		t.Fatal("expected family revoked")
	}
	n, err := repo.CleanupExpired(ctx, now.Add(2*time.Hour))
	if err != nil || n != 2 {
		t.Fatalf("expected 2 expired rows removed, got %d err=%v", n, err)
	}
}

func TestVerificationTokenIssueAndConsume(t *testing.T) {
	ctx := context.Background()
	repo := NewVerificationTokenRepository(newRepositoryDBForTest(t))
	now := time.Now().UTC()

	issue := func(hash, purpose string) {
		t.Helper()
		tok := &domain.VerificationToken{IdentityID: "u1", Purpose: purpose, TokenHash: hash, ExpiresAt: now.Add(time.Hour)}
		if err := repo.Issue(ctx, tok, now); err != nil {
			t.Fatalf("issue %s: %v", hash, err)
		}
	}
	issue("r1", domain.TokenPurposeRecovery)
	issue("s1", domain.TokenPurposeSignup)
	issue("r2", domain.TokenPurposeRecovery)

	if _, err := repo.FindActiveByHashPurpose(ctx, "r1", domain.TokenPurposeRecovery, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected first token invalidated, got %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose(ctx, "s1", domain.TokenPurposeSignup, now); err != nil {
		t.Fatalf("expected signup token untouched by recovery issue, got %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose(ctx, "r2", domain.TokenPurposeSignup, now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected purpose mismatch to miss, got %v", err)
	}
	active, err := repo.FindActiveByHashPurpose(ctx, "r2", domain.TokenPurposeRecovery, now)
	if err != nil {
		t.Fatal(err)
	}
	if err := repo.Consume(ctx, active.ID, "someone-else", now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected consume by another identity to fail, got %v", err)
	}
	if err := repo.Consume(ctx, active.ID, "u1", now); err != nil {
		t.Fatal(err)
	}
	if err := repo.Consume(ctx, active.ID, "u1", now); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected second consume to fail, got %v", err)
	}
	if _, err := repo.FindActiveByHashPurpose(ctx, "s1", domain.TokenPurposeSignup, now.Add(2*time.Hour)); !errors.Is(err, ErrVerificationTokenNotFound) {
		t.Fatalf("expected expired lookup to fail, got %v", err)
	}
}
