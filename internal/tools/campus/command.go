// Package campus is the command line front end of the account kit: sign-up,
// sign-in, profile management, and listing browsing against the identity
// service.
package campus

import (
	"context"
	"errors"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/di"
	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/emailgate"
	"github.com/campusmarket/accountkit/internal/health"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/service"
	"github.com/campusmarket/accountkit/internal/tools/common"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

const toolName = "campus"

// Account is the subset of service.AccountService the commands drive.
type Account interface {
	SignUp(ctx context.Context, email, password string, fields domain.SignUpProfile) (*service.SignUpResult, error)
	SignIn(ctx context.Context, email, password string) (*service.AuthResult, error)
	SignOut(ctx context.Context) error
	CurrentSession(ctx context.Context) (*domain.Session, error)
	CurrentUser(ctx context.Context) (*domain.Identity, error)
	GetUserProfile(ctx context.Context, id string) (*domain.Profile, error)
	UpdateUserProfile(ctx context.Context, id string, update domain.ProfileUpdate) (*domain.Profile, error)
	ResetPassword(ctx context.Context, email string) error
	ConfirmPasswordReset(ctx context.Context, email, token, newPassword string) (*domain.Identity, error)
	ChangePassword(ctx context.Context, password string) (*domain.Identity, error)
	CheckEmailExists(ctx context.Context, email string) (bool, error)
}

// Backend is one connected account client.
type Backend struct {
	Account Account
	Gate    *emailgate.Gate
	Health  health.Pinger
	Close   func() error
}

// Connector builds a Backend after the env file has been applied.
type Connector func(envFile string) (*Backend, error)

// Connect wires the account client from the environment.
func Connect(envFile string) (*Backend, error) {
	if err := config.LoadEnvFile(envFile); err != nil {
		return nil, err
	}
	client, err := di.InitializeAccountClient()
	if err != nil {
		return nil, err
	}
	return &Backend{
		Account: client.Account,
		Gate:    client.Account.Gate(),
		Health:  client.Identity,
		Close:   client.Close,
	}, nil
}

// Progress shows action behind a spinner and a result view. Tests replace it.
type Progress func(title string, action func(context.Context) ([]string, error)) ([]string, error)

type options struct {
	envFile  string
	timeout  time.Duration
	ci       bool
	connect  Connector
	onboard  Onboarder
	progress Progress
}

func NewRootCommand() *cobra.Command {
	return NewRootCommandWith(Connect)
}

// NewRootCommandWith builds the command tree over a custom connector.
func NewRootCommandWith(connect Connector) *cobra.Command {
	return newRootCommand(&options{connect: connect})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "campus",
		Short:         "Campus marketplace account tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newSignUpCommand(opts),
		newSignInCommand(opts),
		newSignOutCommand(opts),
		newSessionCommand(opts),
		newWhoAmICommand(opts),
		newProfileCommand(opts),
		newResetPasswordCommand(opts),
		newPasswordCommand(opts),
		newCheckEmailCommand(opts),
		newExploreCommand(opts),
		newOnboardCommand(opts),
		newDoctorCommand(opts),
	)
	return cmd
}

// action is the body of one command. It returns the detail lines to print.
type action func(ctx context.Context, b *Backend) ([]string, error)

// runAccount connects and runs fn under the timeout. Interactive runs show
// progress through ui.Run; --ci runs print one JSON result.
func runAccount(cmd *cobra.Command, opts *options, title string, fn action) error {
	start := time.Now()
	body := func(ctx context.Context) ([]string, error) {
		ctx, cancel := context.WithTimeout(ctx, opts.timeout)
		defer cancel()
		b, err := opts.connect(opts.envFile)
		if err != nil {
			return nil, err
		}
		if b.Close != nil {
			defer func() { _ = b.Close() }()
		}
		return fn(ctx, b)
	}

	if !opts.ci {
		progress := opts.progress
		if progress == nil {
			progress = ui.Run
		}
		_, err := progress(title, body)
		common.Record(cmd.Context(), toolName, title, start, err)
		if err != nil {
			return &common.ExitError{Code: exitCodeFor(err), Err: err}
		}
		return nil
	}
	details, err := body(cmd.Context())
	common.Record(cmd.Context(), toolName, title, start, err)
	return report(cmd, opts, title, details, err, exitCodeFor(err))
}

// runPlain is runAccount for commands that drive their own terminal UI.
func runPlain(cmd *cobra.Command, opts *options, title string, fn action) error {
	start := time.Now()
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()

	b, err := opts.connect(opts.envFile)
	if err != nil {
		return report(cmd, opts, title, nil, err, common.ExitFailure)
	}
	if b.Close != nil {
		defer func() { _ = b.Close() }()
	}
	details, err := fn(ctx, b)
	common.Record(ctx, toolName, title, start, err)
	return report(cmd, opts, title, details, err, exitCodeFor(err))
}

func exitCodeFor(err error) int {
	switch {
	case err == nil:
		return 0
	case errors.Is(err, identity.ErrNoSession):
		return common.ExitSignedOut
	case identity.CodeOf(err) == identity.CodeTransport:
		return common.ExitBackend
	default:
		return common.ExitFailure
	}
}

func report(cmd *cobra.Command, opts *options, title string, details []string, err error, code int) error {
	return common.Finish(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.ci, title, details, err, code)
}

func usageError(cmd *cobra.Command, opts *options, title string, err error) error {
	return report(cmd, opts, title, nil, err, common.ExitUsage)
}
