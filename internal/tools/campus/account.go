package campus

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/identity"
)

var (
	errEmailRequired    = identity.NewError(identity.CodeValidationFailed, "--email is required")
	errPasswordRequired = identity.NewError(identity.CodeValidationFailed, "--password is required")
	errNothingToUpdate  = identity.NewError(identity.CodeValidationFailed, "no profile fields given")
	errTokenRequired    = identity.NewError(identity.CodeValidationFailed, "--token is required")
)

type profileFlags struct {
	firstName string
	lastName  string
	program   string
	year      string
	socials   string
	bio       string
}

func (f *profileFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.firstName, "first-name", "", "first name")
	cmd.Flags().StringVar(&f.lastName, "last-name", "", "last name")
	cmd.Flags().StringVar(&f.program, "program", "", "program of study")
	cmd.Flags().StringVar(&f.year, "year", "", "year of study")
	cmd.Flags().StringVar(&f.socials, "socials", "", "phone number or social handle")
	cmd.Flags().StringVar(&f.bio, "bio", "", "about you")
}

func (f *profileFlags) signUpProfile() domain.SignUpProfile {
	return domain.SignUpProfile{
		FirstName:   strings.TrimSpace(f.firstName),
		LastName:    strings.TrimSpace(f.lastName),
		Program:     strings.TrimSpace(f.program),
		YearOfStudy: strings.TrimSpace(f.year),
		Bio:         strings.TrimSpace(f.bio),
		PhoneNumber: strings.TrimSpace(f.socials),
	}
}

// update keeps only the flags given on the command line.
func (f *profileFlags) update(cmd *cobra.Command) domain.ProfileUpdate {
	var u domain.ProfileUpdate
	pick := func(name string, v string) *string {
		if !cmd.Flags().Changed(name) {
			return nil
		}
		return &v
	}
	u.FirstName = pick("first-name", f.firstName)
	u.LastName = pick("last-name", f.lastName)
	u.Program = pick("program", f.program)
	u.YearOfStudy = pick("year", f.year)
	u.PhoneNumber = pick("socials", f.socials)
	u.Bio = pick("bio", f.bio)
	return u
}

type credentialFlags struct {
	email    string
	password string
}

func (f *credentialFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.email, "email", "", "school email address")
	cmd.Flags().StringVar(&f.password, "password", "", "account password")
}

func (f *credentialFlags) validate() error {
	if strings.TrimSpace(f.email) == "" {
		return errEmailRequired
	}
	if f.password == "" {
		return errPasswordRequired
	}
	return nil
}

func newSignUpCommand(opts *options) *cobra.Command {
	var creds credentialFlags
	var profile profileFlags
	cmd := &cobra.Command{
		Use:   "signup",
		Short: "Create an account with a school email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.validate(); err != nil {
				return usageError(cmd, opts, "signup", err)
			}
			fields := profile.signUpProfile()
			if err := fields.Validate(); err != nil {
				return usageError(cmd, opts, "signup", identity.NewError(identity.CodeValidationFailed, err.Error()))
			}
			return runAccount(cmd, opts, "signup", func(ctx context.Context, b *Backend) ([]string, error) {
				res, err := b.Account.SignUp(ctx, creds.email, creds.password, fields)
				if err != nil {
					return nil, err
				}
				return []string{
					"signed up: " + res.User.Email,
					"user id: " + res.User.ID,
					fmt.Sprintf("profile enriched: %t", res.ProfileEnriched),
				}, nil
			})
		},
	}
	creds.bind(cmd)
	profile.bind(cmd)
	return cmd
}

func newSignInCommand(opts *options) *cobra.Command {
	var creds credentialFlags
	cmd := &cobra.Command{
		Use:   "signin",
		Short: "Sign in with email and password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.validate(); err != nil {
				return usageError(cmd, opts, "signin", err)
			}
			return runAccount(cmd, opts, "signin", func(ctx context.Context, b *Backend) ([]string, error) {
				res, err := b.Account.SignIn(ctx, creds.email, creds.password)
				if err != nil {
					return nil, err
				}
				if res.User == nil {
					return []string{"signed in"}, nil
				}
				return []string{"signed in: " + res.User.Email, "user id: " + res.User.ID}, nil
			})
		},
	}
	creds.bind(cmd)
	return cmd
}

func newSignOutCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "signout",
		Short: "End the current session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(cmd, opts, "signout", func(ctx context.Context, b *Backend) ([]string, error) {
				if err := b.Account.SignOut(ctx); err != nil {
					return nil, err
				}
				return []string{"signed out"}, nil
			})
		},
	}
}

func newSessionCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "session",
		Short: "Show the stored session",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(cmd, opts, "session", func(ctx context.Context, b *Backend) ([]string, error) {
				s, err := b.Account.CurrentSession(ctx)
				if err != nil {
					return nil, err
				}
				if s == nil {
					return []string{"signed out"}, nil
				}
				details := []string{"signed in"}
				if s.User != nil {
					details = append(details, "email: "+s.User.Email)
				}
				if exp := s.Expiry(); !exp.IsZero() {
					details = append(details, "expires at: "+exp.UTC().Format(time.RFC3339))
				}
				return details, nil
			})
		},
	}
}

func newWhoAmICommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the signed-in user and profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(cmd, opts, "whoami", func(ctx context.Context, b *Backend) ([]string, error) {
				user, err := b.Account.CurrentUser(ctx)
				if err != nil {
					return nil, err
				}
				if user == nil {
					return nil, identity.ErrNoSession
				}
				details := []string{"email: " + user.Email, "user id: " + user.ID}
				p, err := b.Account.GetUserProfile(ctx, user.ID)
				if err != nil {
					return details, err
				}
				return append(details, profileLines(p)...), nil
			})
		},
	}
}

func newProfileCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "profile", Short: "Read or update a profile"}
	cmd.AddCommand(newProfileGetCommand(opts), newProfileUpdateCommand(opts))
	return cmd
}

func newProfileGetCommand(opts *options) *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "get",
		Short: "Show a profile (defaults to your own)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(cmd, opts, "profile get", func(ctx context.Context, b *Backend) ([]string, error) {
				target, err := resolveID(ctx, b, id)
				if err != nil {
					return nil, err
				}
				p, err := b.Account.GetUserProfile(ctx, target)
				if err != nil {
					return nil, err
				}
				return profileLines(p), nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "profile id")
	return cmd
}

func newProfileUpdateCommand(opts *options) *cobra.Command {
	var fields profileFlags
	cmd := &cobra.Command{
		Use:   "update",
		Short: "Update fields of your profile",
		RunE: func(cmd *cobra.Command, args []string) error {
			update := fields.update(cmd)
			if update.Empty() {
				return usageError(cmd, opts, "profile update", errNothingToUpdate)
			}
			return runAccount(cmd, opts, "profile update", func(ctx context.Context, b *Backend) ([]string, error) {
				id, err := resolveID(ctx, b, "")
				if err != nil {
					return nil, err
				}
				p, err := b.Account.UpdateUserProfile(ctx, id, update)
				if err != nil {
					return nil, err
				}
				return append([]string{"profile updated"}, profileLines(p)...), nil
			})
		},
	}
	fields.bind(cmd)
	return cmd
}

// resolveID returns id, or the signed-in user's id when id is empty.
func resolveID(ctx context.Context, b *Backend, id string) (string, error) {
	if id != "" {
		return id, nil
	}
	user, err := b.Account.CurrentUser(ctx)
	if err != nil {
		return "", err
	}
	if user == nil {
		return "", identity.ErrNoSession
	}
	return user.ID, nil
}

func profileLines(p *domain.Profile) []string {
	if p == nil {
		return []string{"profile: not created yet"}
	}
	phone := ""
	if p.PhoneNumber != nil {
		phone = *p.PhoneNumber
	}
	return []string{
		"name: " + p.FullName(),
		"program: " + p.Program,
		"year of study: " + p.YearOfStudy,
		"socials: " + phone,
		"about: " + p.Bio,
	}
}

func newResetPasswordCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "reset-password",
		Short: "Send a password reset email",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				return usageError(cmd, opts, "reset-password", errEmailRequired)
			}
			return runAccount(cmd, opts, "reset-password", func(ctx context.Context, b *Backend) ([]string, error) {
				if err := b.Account.ResetPassword(ctx, email); err != nil {
					return nil, err
				}
				return []string{"if an account exists for " + domain.NormalizeEmail(email) + ", a reset email is on its way"}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.AddCommand(newResetPasswordConfirmCommand(opts))
	return cmd
}

func newResetPasswordConfirmCommand(opts *options) *cobra.Command {
	var creds credentialFlags
	var token string
	cmd := &cobra.Command{
		Use:   "confirm",
		Short: "Redeem the emailed reset code and set a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := creds.validate(); err != nil {
				return usageError(cmd, opts, "reset-password confirm", err)
			}
			if strings.TrimSpace(token) == "" {
				return usageError(cmd, opts, "reset-password confirm", errTokenRequired)
			}
			return runAccount(cmd, opts, "reset-password confirm", func(ctx context.Context, b *Backend) ([]string, error) {
				user, err := b.Account.ConfirmPasswordReset(ctx, creds.email, token, creds.password)
				if err != nil {
					return nil, err
				}
				return []string{"password updated", "signed in: " + user.Email}, nil
			})
		},
	}
	creds.bind(cmd)
	cmd.Flags().StringVar(&token, "token", "", "code from the reset email")
	return cmd
}

func newPasswordCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{Use: "password", Short: "Manage the password of the signed-in account"}
	cmd.AddCommand(newPasswordSetCommand(opts))
	return cmd
}

func newPasswordSetCommand(opts *options) *cobra.Command {
	var password string
	cmd := &cobra.Command{
		Use:   "set",
		Short: "Set a new password",
		RunE: func(cmd *cobra.Command, args []string) error {
			if password == "" {
				return usageError(cmd, opts, "password set", errPasswordRequired)
			}
			return runAccount(cmd, opts, "password set", func(ctx context.Context, b *Backend) ([]string, error) {
				user, err := b.Account.ChangePassword(ctx, password)
				if err != nil {
					return nil, err
				}
				return []string{"password updated for " + user.Email}, nil
			})
		},
	}
	cmd.Flags().StringVar(&password, "password", "", "new password")
	return cmd
}

func newCheckEmailCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "check-email <email>",
		Short: "Check whether an email may sign up and is registered",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			email := args[0]
			return runAccount(cmd, opts, "check-email", func(ctx context.Context, b *Backend) ([]string, error) {
				allowed := b.Gate != nil && b.Gate.IsValidSchoolEmail(email)
				exists, err := b.Account.CheckEmailExists(ctx, email)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("school email: %t", allowed),
					fmt.Sprintf("registered: %t", exists),
				}, nil
			})
		},
	}
}

func newDoctorCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check the identity service",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAccount(cmd, opts, "doctor", func(ctx context.Context, b *Backend) ([]string, error) {
				checker := health.NewUpstreamChecker("identity", b.Health)
				if checker == nil {
					return nil, errors.New("identity client has no health check")
				}
				start := time.Now()
				res := checker.Check(ctx)
				line := fmt.Sprintf("%s: healthy=%t latency=%dms", res.Name, res.Healthy, time.Since(start).Milliseconds())
				if !res.Healthy {
					return []string{line}, identity.NewError(identity.CodeTransport, res.Error)
				}
				return []string{line}, nil
			})
		},
	}
}
