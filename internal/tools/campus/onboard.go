package campus

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

var errInteractiveOnly = identity.NewError(identity.CodeValidationFailed, "onboard is interactive; use signup or signin with --ci")

// Onboarder runs the interactive form. Tests replace it.
type Onboarder func(ui.OnboardingOptions) (ui.OnboardingResult, error)

func newOnboardCommand(opts *options) *cobra.Command {
	var signIn, force bool
	cmd := &cobra.Command{
		Use:   "onboard",
		Short: "Sign up or sign in interactively",
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.ci {
				return usageError(cmd, opts, "onboard", errInteractiveOnly)
			}
			run := opts.onboard
			if run == nil {
				run = ui.RunOnboarding
			}
			return runPlain(cmd, opts, "onboard", func(ctx context.Context, b *Backend) ([]string, error) {
				if !force {
					s, err := b.Account.CurrentSession(ctx)
					if err != nil {
						return nil, err
					}
					if s != nil && s.User != nil {
						return []string{"already signed in as " + s.User.Email}, nil
					}
				}
				mode := ui.ModeSignUp
				if signIn {
					mode = ui.ModeSignIn
				}
				form := ui.OnboardingOptions{Mode: mode, Submit: submitOnboarding(b)}
				if b.Gate != nil {
					form.EmailAllowed = b.Gate.IsValidSchoolEmail
					if domains := b.Gate.Domains(); len(domains) > 0 {
						form.Example = "student" + domains[0]
					}
				}
				res, err := run(form)
				if err != nil {
					return nil, err
				}
				if res.Cancelled {
					return []string{"onboarding cancelled"}, nil
				}
				return []string{res.Summary}, nil
			})
		},
	}
	cmd.Flags().BoolVar(&signIn, "signin", false, "start on the sign in form")
	cmd.Flags().BoolVar(&force, "force", false, "show the form even when a session exists")
	return cmd
}

// submitOnboarding performs the sign-up or sign-in the form collected.
func submitOnboarding(b *Backend) ui.SubmitFunc {
	return func(ctx context.Context, in ui.OnboardingInput) (string, error) {
		if in.Mode == ui.ModeSignIn {
			res, err := b.Account.SignIn(ctx, in.Email, in.Password)
			if err != nil {
				return "", err
			}
			if res.User == nil {
				return "signed in", nil
			}
			return "signed in as " + res.User.Email, nil
		}
		res, err := b.Account.SignUp(ctx, in.Email, in.Password, in.Profile)
		if err != nil {
			return "", err
		}
		if !res.ProfileEnriched {
			return fmt.Sprintf("welcome %s; run `campus profile update` to finish your profile", res.User.Email), nil
		}
		return "welcome " + res.User.Email, nil
	}
}
