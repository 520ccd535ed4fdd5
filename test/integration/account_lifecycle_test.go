package integration

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/identity"
)

func TestAccountLifecycleSignUpEnrichSignInUpdate(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	acct := srv.newAccount(t)
	ctx := context.Background()

	res, err := acct.SignUp(ctx, " Jane.Doe@UWO.ca ", "password123", sampleProfile())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if res.Session == nil || res.User == nil {
		t.Fatalf("expected session and user, got %+v", res)
	}
	if !res.ProfileEnriched {
		t.Fatal("expected the profile row to be enriched")
	}
	if res.User.Email != "jane.doe@uwo.ca" {
		t.Fatalf("expected normalized email, got %q", res.User.Email)
	}

	profile, err := acct.GetUserProfile(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	want := domain.SignUpProfile{
		FirstName:   "Jane",
		LastName:    "Doe",
		Program:     "Computer Science",
		YearOfStudy: "3rd Year",
		Bio:         "selling a road bike",
	}
	got := domain.SignUpProfile{
		FirstName:   profile.FirstName,
		LastName:    profile.LastName,
		Program:     profile.Program,
		YearOfStudy: profile.YearOfStudy,
		Bio:         profile.Bio,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("profile mismatch (-want +got):\n%s", diff)
	}

	if err := acct.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if sess, err := acct.CurrentSession(ctx); err != nil || sess != nil {
		t.Fatalf("expected no session after sign out, got %+v err=%v", sess, err)
	}
	if user, err := acct.CurrentUser(ctx); err != nil || user != nil {
		t.Fatalf("expected no user after sign out, got %+v err=%v", user, err)
	}

	in, err := acct.SignIn(ctx, "jane.doe@uwo.ca", "password123")
	if err != nil {
		t.Fatalf("sign in: %v", err)
	}
	if in.Session == nil || in.User.ID != res.User.ID {
		t.Fatalf("unexpected sign in result %+v", in)
	}
	user, err := acct.CurrentUser(ctx)
	if err != nil || user == nil || user.ID != res.User.ID {
		t.Fatalf("expected current user %s, got %+v err=%v", res.User.ID, user, err)
	}

	program := "Software Engineering"
	updated, err := acct.UpdateUserProfile(ctx, user.ID, domain.ProfileUpdate{Program: &program})
	if err != nil {
		t.Fatalf("update profile: %v", err)
	}
	if updated.Program != program || updated.FirstName != "Jane" {
		t.Fatalf("expected merged update, got %+v", updated)
	}
	if updated.UpdatedAt.Before(profile.UpdatedAt) {
		t.Fatalf("expected updated_at to move forward, got %v then %v", profile.UpdatedAt, updated.UpdatedAt)
	}

	exists, err := acct.CheckEmailExists(ctx, "JANE.DOE@uwo.ca")
	if err != nil || !exists {
		t.Fatalf("expected email to exist, got %v err=%v", exists, err)
	}
	exists, err = acct.CheckEmailExists(ctx, "nobody@uwo.ca")
	if err != nil || exists {
		t.Fatalf("expected unknown email, got %v err=%v", exists, err)
	}
}

func TestAccountSignUpRejectsOutsideDomainAndDuplicates(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	acct := srv.newAccount(t)
	ctx := context.Background()

	if _, err := acct.SignUp(ctx, "jane@gmail.com", "password123", sampleProfile()); !errors.Is(err, identity.ErrInvalidEmailDomain) {
		t.Fatalf("expected invalid email domain, got %v", err)
	}
	if exists, _ := acct.CheckEmailExists(ctx, "jane@gmail.com"); exists {
		t.Fatal("rejected sign up must not create an account")
	}

	if _, err := acct.SignUp(ctx, "sam@uwo.ca", "password123", sampleProfile()); err != nil {
		t.Fatalf("first sign up: %v", err)
	}
	other := srv.newAccount(t)
	if _, err := other.SignUp(ctx, "sam@uwo.ca", "password456", sampleProfile()); !errors.Is(err, identity.ErrUserAlreadyExists) {
		t.Fatalf("expected user already exists, got %v", err)
	}

	if _, err := other.SignUp(ctx, "kim@uwo.ca", "123", sampleProfile()); identity.CodeOf(err) != identity.CodeWeakPassword {
		t.Fatalf("expected weak password, got %v", err)
	}
}

func TestAccountSignInFailuresAreClassified(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	acct := srv.newAccount(t)
	ctx := context.Background()

	if _, err := acct.SignUp(ctx, "lee@uwo.ca", "password123", sampleProfile()); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := acct.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	_, err := acct.SignIn(ctx, "lee@uwo.ca", "wrong-password")
	if identity.CodeOf(err) != identity.CodeInvalidCredentials {
		t.Fatalf("expected invalid credentials, got %v", err)
	}
	if sess, _ := acct.CurrentSession(ctx); sess != nil {
		t.Fatal("failed sign in must not store a session")
	}
}

func TestProfileUpdateIsLimitedToOwnRow(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	ctx := context.Background()

	alice := srv.newAccount(t)
	a, err := alice.SignUp(ctx, "alice@uwo.ca", "password123", sampleProfile())
	if err != nil {
		t.Fatalf("alice sign up: %v", err)
	}
	bob := srv.newAccount(t)
	if _, err := bob.SignUp(ctx, "bob@uwo.ca", "password123", sampleProfile()); err != nil {
		t.Fatalf("bob sign up: %v", err)
	}

	// Profiles are readable by anyone signed in.
	p, err := bob.GetUserProfile(ctx, a.User.ID)
	if err != nil || p == nil || p.Email != "alice@uwo.ca" {
		t.Fatalf("expected alice's profile, got %+v err=%v", p, err)
	}

	bio := "hijacked"
	_, err = bob.UpdateUserProfile(ctx, a.User.ID, domain.ProfileUpdate{Bio: &bio})
	if !errors.Is(err, identity.ErrProfileNotFound) {
		t.Fatalf("expected foreign update to match no row, got %v", err)
	}
	p, _ = alice.GetUserProfile(ctx, a.User.ID)
	if p.Bio == bio {
		t.Fatal("foreign update must not change the row")
	}
}

func TestSignUpWithoutAutoconfirmRequiresVerification(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: false})
	acct := srv.newAccount(t)
	ctx := context.Background()

	// Without a session the new account is indistinguishable from a taken email.
	if _, err := acct.SignUp(ctx, "pat@uwo.ca", "password123", sampleProfile()); !errors.Is(err, identity.ErrUserAlreadyExists) {
		t.Fatalf("expected sign up without session to be reported as existing, got %v", err)
	}
	_, err := acct.SignIn(ctx, "pat@uwo.ca", "password123")
	if identity.CodeOf(err) != identity.CodeEmailNotConfirmed {
		t.Fatalf("expected email not confirmed, got %v", err)
	}

	mail := srv.Notifier.lastSignup(t)
	status, body := srv.postJSON(t, "/auth/v1/verify", map[string]string{
		"type":  domain.TokenPurposeSignup,
		"email": mail.Email,
		"token": mail.Token,
	})
	if status != http.StatusOK || body["access_token"] == nil {
		t.Fatalf("expected verify to start a session, got %d %v", status, body)
	}
	if _, err := acct.SignIn(ctx, "pat@uwo.ca", "password123"); err != nil {
		t.Fatalf("sign in after verify: %v", err)
	}

	// Tokens are single use.
	status, _ = srv.postJSON(t, "/auth/v1/verify", map[string]string{
		"type":  domain.TokenPurposeSignup,
		"email": mail.Email,
		"token": mail.Token,
	})
	if status == http.StatusOK {
		t.Fatal("expected a consumed token to be rejected")
	}
}

func TestResetPasswordSendsRecoveryEmail(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	acct := srv.newAccount(t)
	ctx := context.Background()

	if _, err := acct.SignUp(ctx, "max@uwo.ca", "password123", sampleProfile()); err != nil {
		t.Fatalf("sign up: %v", err)
	}
	if err := acct.ResetPassword(ctx, "MAX@uwo.ca"); err != nil {
		t.Fatalf("reset password: %v", err)
	}
	mail := srv.Notifier.lastReset(t)
	if mail.Email != "max@uwo.ca" || mail.RedirectTo != "campus://reset" {
		t.Fatalf("unexpected recovery email %+v", mail)
	}

	// Unknown addresses succeed silently.
	if err := acct.ResetPassword(ctx, "ghost@uwo.ca"); err != nil {
		t.Fatalf("expected silent success for unknown email, got %v", err)
	}

	other := srv.newAccount(t)
	user, err := other.ConfirmPasswordReset(ctx, mail.Email, mail.Token, "new-password-1")
	if err != nil {
		t.Fatalf("confirm reset: %v", err)
	}
	if user.Email != "max@uwo.ca" {
		t.Fatalf("unexpected recovered user %+v", user)
	}
	if sess, _ := other.CurrentSession(ctx); sess == nil {
		t.Fatal("expected the recovery to leave a session behind")
	}
	if _, err := other.ConfirmPasswordReset(ctx, mail.Email, mail.Token, "another-pass"); err == nil {
		t.Fatal("expected a redeemed recovery token to be rejected")
	}

	if err := acct.SignOut(ctx); err != nil {
		t.Fatalf("sign out: %v", err)
	}
	if _, err := acct.SignIn(ctx, "max@uwo.ca", "password123"); identity.CodeOf(err) != identity.CodeInvalidCredentials {
		t.Fatalf("expected old password to stop working, got %v", err)
	}
	if _, err := acct.SignIn(ctx, "max@uwo.ca", "new-password-1"); err != nil {
		t.Fatalf("sign in with new password: %v", err)
	}
	if _, err := acct.ChangePassword(ctx, "123"); identity.CodeOf(err) != identity.CodeWeakPassword {
		t.Fatalf("expected weak password on change, got %v", err)
	}
	if _, err := acct.ChangePassword(ctx, "newest-pass"); err != nil {
		t.Fatalf("change password: %v", err)
	}
}

func TestAuthEndpointsAreRateLimited(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true, rpm: 2})
	acct := srv.newAccount(t)
	ctx := context.Background()

	var last error
	for i := 0; i < 3; i++ {
		_, last = acct.SignIn(ctx, "nobody@uwo.ca", "password123")
	}
	if identity.CodeOf(last) != identity.CodeOverRequestRateLimit {
		t.Fatalf("expected rate limit on third attempt, got %v", last)
	}
}

func TestProfilePatchRejectsNonTextValues(t *testing.T) {
	srv := newIdentityServer(t, serverOptions{autoconfirm: true})
	acct := srv.newAccount(t)
	ctx := context.Background()

	res, err := acct.SignUp(ctx, "val@uwo.ca", "password123", sampleProfile())
	if err != nil {
		t.Fatalf("sign up: %v", err)
	}
	path := "/rest/v1/profiles?id=eq." + res.User.ID
	for _, body := range []map[string]any{
		{"year_of_study": 3},
		{"program": true},
		{"bio": map[string]any{}},
	} {
		status, out := srv.sendJSON(t, http.MethodPatch, path, res.Session.AccessToken, body)
		if status != http.StatusBadRequest {
			t.Fatalf("expected 400 for %v, got %d %v", body, status, out)
		}
	}

	p, err := acct.GetUserProfile(ctx, res.User.ID)
	if err != nil {
		t.Fatalf("get profile: %v", err)
	}
	if p.YearOfStudy != "3rd Year" || p.Program != "Computer Science" || p.Bio != "selling a road bike" {
		t.Fatalf("expected rejected patches to leave the row alone, got %+v", p)
	}
}
