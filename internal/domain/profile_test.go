package domain

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func TestSignUpProfileValidate(t *testing.T) {
	if err := (SignUpProfile{YearOfStudy: "2nd"}).Validate(); !errors.Is(err, ErrProgramRequired) {
		t.Fatalf("expected ErrProgramRequired, got %v", err)
	}
	if err := (SignUpProfile{Program: "CS", YearOfStudy: "  "}).Validate(); !errors.Is(err, ErrYearOfStudyRequired) {
		t.Fatalf("expected ErrYearOfStudyRequired, got %v", err)
	}
	if err := (SignUpProfile{Program: "CS", YearOfStudy: "2nd"}).Validate(); err != nil {
		t.Fatalf("expected valid profile, got %v", err)
	}
}

func TestEnrichmentColumnsNullsEmptyPhone(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	got := SignUpProfile{Program: "Engineering", YearOfStudy: "1st", Bio: "hi"}.EnrichmentColumns(now)
	want := map[string]any{
		"program":       "Engineering",
		"year_of_study": "1st",
		"bio":           "hi",
		"phone_number":  nil,
		"updated_at":    now,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}
}

func TestProfileUpdateColumnsAlwaysStampsUpdatedAt(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	got := ProfileUpdate{}.Columns(now)
	if diff := cmp.Diff(map[string]any{"updated_at": now}, got); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}

	bio := "new bio"
	phone := ""
	got = ProfileUpdate{Bio: &bio, PhoneNumber: &phone}.Columns(now)
	want := map[string]any{"updated_at": now, "bio": "new bio", "phone_number": nil}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("unexpected columns (-want +got):\n%s", diff)
	}
}

func TestSessionExpired(t *testing.T) {
	now := time.Unix(1_000_000, 0)
	s := &Session{ExpiresAt: now.Add(30 * time.Second).Unix()}
	if s.Expired(now, 0) {
		t.Fatal("expected session to be valid")
	}
	if !s.Expired(now, time.Minute) {
		t.Fatal("expected session inside leeway to count as expired")
	}
	if (&Session{}).Expired(now, time.Minute) {
		t.Fatal("session without expiry should never expire")
	}
	tok := s.OAuth2Token()
	if tok.TokenType != TokenTypeBearer || !tok.Expiry.Equal(s.Expiry()) {
		t.Fatalf("unexpected oauth2 token: %+v", tok)
	}
}
