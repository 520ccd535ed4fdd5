package migrate

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/config"
	"github.com/campusmarket/accountkit/internal/database"
	"github.com/campusmarket/accountkit/internal/di"
	"github.com/campusmarket/accountkit/internal/tools/common"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

const toolName = "migrate"

// Runner is the schema surface the commands need.
type Runner interface {
	Up() error
	Status() ([]database.TableStatus, error)
	Driver() string
	Ping(ctx context.Context) error
	Close() error
}

type options struct {
	envFile string
	timeout time.Duration
	ci      bool
	open    func() (Runner, error)
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{open: openRunner})
}

func openRunner() (Runner, error) {
	return di.InitializeMigrationRunner()
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "migrate",
		Short:         "Identity server schema tooling",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "operation timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")

	cmd.AddCommand(
		newUpCommand(opts),
		newStatusCommand(opts),
		newPlanCommand(opts),
	)
	return cmd
}

func newUpCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "up",
		Short: "Apply schema migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "up", func(ctx context.Context, r Runner) ([]string, error) {
				if err := r.Up(); err != nil {
					return nil, err
				}
				statuses, err := r.Status()
				if err != nil {
					return nil, err
				}
				return append([]string{"schema migration applied", "driver: " + r.Driver()}, statusLines(statuses)...), nil
			})
		},
	}
}

func newStatusCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Compare the schema with the models",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "status", func(ctx context.Context, r Runner) ([]string, error) {
				statuses, err := r.Status()
				if err != nil {
					return nil, err
				}
				state := "up to date"
				if database.Pending(statuses) {
					state = "pending"
				}
				return append([]string{"database reachable", "driver: " + r.Driver(), "migrations: " + state}, statusLines(statuses)...), nil
			})
		},
	}
}

func newPlanCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "plan",
		Short: "Show what up would change (dry-run)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return execute(cmd, opts, "plan", func(ctx context.Context, r Runner) ([]string, error) {
				statuses, err := r.Status()
				if err != nil {
					return nil, err
				}
				var details []string
				for _, s := range statuses {
					switch {
					case !s.Exists:
						details = append(details, "would create table "+s.Table)
					case len(s.MissingColumns) > 0:
						details = append(details, fmt.Sprintf("would add %v to %s", s.MissingColumns, s.Table))
					}
				}
				if len(details) == 0 {
					details = append(details, "nothing to apply")
				}
				return append(details, "no mutation executed in plan mode"), nil
			})
		},
	}
}

func statusLines(statuses []database.TableStatus) []string {
	out := make([]string, 0, len(statuses))
	for _, s := range statuses {
		switch {
		case !s.Exists:
			out = append(out, s.Table+": missing")
		case len(s.MissingColumns) > 0:
			out = append(out, fmt.Sprintf("%s: missing columns %v", s.Table, s.MissingColumns))
		default:
			out = append(out, s.Table+": ok")
		}
	}
	return out
}

// execute opens the database, pings it, and runs fn, with a spinner unless
// --ci is set.
func execute(cmd *cobra.Command, opts *options, name string, fn func(context.Context, Runner) ([]string, error)) error {
	start := time.Now()
	title := "migrate " + name
	action := func(ctx context.Context) ([]string, error) {
		if err := config.LoadEnvFile(opts.envFile); err != nil {
			return nil, err
		}
		r, err := opts.open()
		if err != nil {
			return nil, err
		}
		defer func() { _ = r.Close() }()
		if err := r.Ping(ctx); err != nil {
			return nil, fmt.Errorf("db ping: %w", err)
		}
		return fn(ctx, r)
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
