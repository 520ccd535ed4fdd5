package seed

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/di"
	"github.com/campusmarket/accountkit/internal/domain"
	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/tools/common"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

const toolName = "seed"

// Seeder is the database surface the commands need.
type Seeder interface {
	Up() error
	Seed(ctx context.Context, dryRun bool) (*database.SeedReport, error)
	ConfirmEmail(ctx context.Context, email string) (*domain.Identity, error)
	Close() error
}

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
	open    func() (Seeder, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{open: func() (Seeder, error) { return di.InitializeMigrationRunner() }})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "seed",
		Short:         "Demo account seeding for the identity server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newApplyCommand(opts), newDryRunCommand(opts), newConfirmEmailCommand(opts))
	return cmd
}

func newApplyCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "apply",
		Short: "Create the demo accounts that do not exist yet",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "apply", func(ctx context.Context, s Seeder) ([]string, error) {
				if err := s.Up(); err != nil {
					return nil, err
				}
				report, err := s.Seed(ctx, false)
				if err != nil {
					return nil, err
				}
				return reportLines(report, "created"), nil
			})
		},
	}
}

func newDryRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "dry-run",
		Short: "Show what apply would create",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "dry-run", func(ctx context.Context, s Seeder) ([]string, error) {
				report, err := s.Seed(ctx, true)
				if err != nil {
					return nil, err
				}
				return append(reportLines(report, "would create"), "no mutation executed in dry-run mode"), nil
			})
		},
	}
}

func newConfirmEmailCommand(opts *options) *cobra.Command {
	var email string
	cmd := &cobra.Command{
		Use:   "confirm-email",
		Short: "Mark an account email as confirmed",
		RunE: func(cmd *cobra.Command, args []string) error {
			if strings.TrimSpace(email) == "" {
				err := identity.NewError(identity.CodeValidationFailed, "--email is required")
				return common.Finish(cmd.OutOrStdout(), cmd.ErrOrStderr(), opts.ci, "seed confirm-email", nil, err, common.ExitUsage)
			}
			return execute(cmd, opts, "confirm-email", func(ctx context.Context, s Seeder) ([]string, error) {
				ident, err := s.ConfirmEmail(ctx, email)
				if err != nil {
					return nil, err
				}
				return []string{"email confirmed: " + ident.Email}, nil
			})
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	return cmd
}

func reportLines(r *database.SeedReport, verb string) []string {
	lines := make([]string, 0, len(r.Created)+len(r.Existing)+2)
	for _, e := range r.Created {
		lines = append(lines, verb+": "+e)
	}
	for _, e := range r.Existing {
		lines = append(lines, "exists: "+e)
	}
	if r.Noop {
		lines = append(lines, "nothing to seed")
	} else {
		lines = append(lines, fmt.Sprintf("demo password: %s", database.DemoPassword))
	}
	return lines
}

func execute(cmd *cobra.Command, opts *options, name string, fn func(context.Context, Seeder) ([]string, error)) error {
	start := time.Now()
	title := "seed " + name
	action := func(ctx context.Context) ([]string, error) {
		if err := config.LoadEnvFile(opts.envFile); err != nil {
			return nil, err
		}
		s, err := opts.open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = s.Close() }()
		return fn(ctx, s)
	}

	if !opts.ci {
		_, err := ui.Run(title, action)
		common.Record(cmd.Context(), toolName, name, start, err)
		if err != nil {
			return &common.ExitError{Code: common.ExitBackend, Err: err}
		}
		return nil
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	details, err := action(ctx)
	common.Record(ctx, toolName, name, start, err)
	return common.Finish(cmd.OutOrStdout(), cmd.ErrOrStderr(), true, title, details, err, common.ExitBackend)
}
