package loadgen

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/tools/common"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

type options struct {
	envFile     string
	baseURL     string
	anonKey     string
	profile     string
	duration    time.Duration
	rps         int
	concurrency int
	seed        int64
	ci          bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{
		Use:           "loadgen",
		Short:         "Generate sign-up and sign-in traffic against the identity server",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "identity server URL (default IDENTITY_URL)")
	cmd.PersistentFlags().StringVar(&opts.anonKey, "anon-key", "", "project apikey (default IDENTITY_ANON_KEY)")
	cmd.PersistentFlags().StringVar(&opts.profile, "profile", "mixed", "traffic profile: auth|mixed|error-heavy")
	cmd.PersistentFlags().DurationVar(&opts.duration, "duration", 15*time.Second, "traffic duration")
	cmd.PersistentFlags().IntVar(&opts.rps, "rps", 20, "requests per second")
	cmd.PersistentFlags().IntVar(&opts.concurrency, "concurrency", 6, "concurrent workers")
	cmd.PersistentFlags().Int64Var(&opts.seed, "seed", time.Now().Unix(), "namespace for generated emails")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run load generation",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			action := func(ctx context.Context) ([]string, error) {
				cfg, err := resolveConfig(opts)
				if err != nil {
					return nil, err
				}
				res, err := Run(ctx, cfg)
				if err != nil {
					return nil, err
				}
				return []string{
					fmt.Sprintf("total_requests=%d", res.TotalRequests),
					fmt.Sprintf("failures=%d", res.Failures),
					fmt.Sprintf("status_2xx=%d", res.Status2xx),
					fmt.Sprintf("status_4xx=%d", res.Status4xx),
					fmt.Sprintf("status_429=%d", res.Status429),
					fmt.Sprintf("status_5xx=%d", res.Status5xx),
				}, nil
			}
			if !opts.ci {
				_, err := ui.Run("loadgen run", action)
				common.Record(cmd.Context(), "loadgen", "run", start, err)
				if err != nil {
					return &common.ExitError{Code: common.ExitFailure, Err: err}
				}
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), opts.duration+15*time.Second)
			defer cancel()
			details, err := action(ctx)
			common.Record(ctx, "loadgen", "run", start, err)
			return common.Finish(cmd.OutOrStdout(), cmd.ErrOrStderr(), true, "loadgen run", details, err, common.ExitFailure)
		},
	}
}

// resolveConfig fills the target from the environment when flags are unset.
func resolveConfig(opts *options) (Config, error) {
	cfg := Config{
		BaseURL:     opts.baseURL,
		AnonKey:     opts.anonKey,
		Profile:     opts.profile,
		Duration:    opts.duration,
		RPS:         opts.rps,
		Concurrency: opts.concurrency,
		Seed:        opts.seed,
	}
	if cfg.BaseURL != "" && cfg.AnonKey != "" {
		return cfg, nil
	}
	env, err := common.LoadConfig(opts.envFile)
	if err != nil {
		return Config{}, err
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = env.IdentityURL
	}
	if cfg.AnonKey == "" {
		cfg.AnonKey = env.IdentityAnonKey
	}
	return cfg, nil
}
