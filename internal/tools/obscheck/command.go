package obscheck

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/campusmarket/accountkit/internal/identity"
	"github.com/campusmarket/accountkit/internal/tools/common"
	"github.com/campusmarket/accountkit/internal/tools/loadgen"
	"github.com/campusmarket/accountkit/internal/tools/ui"
)

// exemplarMetric is the identity server request histogram as Prometheus
// exposes it.
const exemplarMetric = "identity_server_request_duration_seconds_bucket"

type options struct {
	envFile         string
	grafanaURL      string
	grafanaUser     string
	grafanaPassword string
	prometheusUID   string
	tempoUID        string
	lokiUID         string
	serviceName     string
	window          time.Duration
	settle          time.Duration
	ci              bool
	baseURL         string
	anonKey         string

	traffic func(ctx context.Context, cfg loadgen.Config) (loadgen.Result, error)
	client  *http.Client
}

func NewRootCommand() *cobra.Command {
	return newRootCommand(&options{traffic: loadgen.Run, client: &http.Client{Timeout: 20 * time.Second}})
}

func newRootCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:           "obscheck",
		Short:         "Verify that identity server metrics, traces and logs correlate",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "path to env file")
	cmd.PersistentFlags().StringVar(&opts.grafanaURL, "grafana-url", "http://localhost:3000", "Grafana base URL")
	cmd.PersistentFlags().StringVar(&opts.grafanaUser, "grafana-user", "admin", "Grafana username")
	cmd.PersistentFlags().StringVar(&opts.grafanaPassword, "grafana-password", "admin", "Grafana password")
	cmd.PersistentFlags().StringVar(&opts.prometheusUID, "prometheus-uid", "prometheus", "Grafana datasource uid for metrics")
	cmd.PersistentFlags().StringVar(&opts.tempoUID, "tempo-uid", "tempo", "Grafana datasource uid for traces")
	cmd.PersistentFlags().StringVar(&opts.lokiUID, "loki-uid", "loki", "Grafana datasource uid for logs")
	cmd.PersistentFlags().StringVar(&opts.serviceName, "service-name", "campus-accountkit", "OTel service name of the identity server")
	cmd.PersistentFlags().DurationVar(&opts.window, "window", 20*time.Minute, "query lookback window")
	cmd.PersistentFlags().DurationVar(&opts.settle, "settle", 8*time.Second, "wait between traffic and queries")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "", "identity server URL (default IDENTITY_URL)")
	cmd.PersistentFlags().StringVar(&opts.anonKey, "anon-key", "", "project apikey (default IDENTITY_ANON_KEY)")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Generate traffic and follow an exemplar to its trace and logs",
		RunE: func(cmd *cobra.Command, args []string) error {
			start := time.Now()
			action := func(ctx context.Context) ([]string, error) { return check(ctx, opts) }
			if !opts.ci {
				_, err := ui.Run("obscheck run", action)
				common.Record(cmd.Context(), "obscheck", "run", start, err)
				if err != nil {
					return &common.ExitError{Code: common.ExitBackend, Err: err}
				}
				return nil
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Minute)
			defer cancel()
			details, err := action(ctx)
			common.Record(ctx, "obscheck", "run", start, err)
			return common.Finish(cmd.OutOrStdout(), cmd.ErrOrStderr(), true, "obscheck run", details, err, common.ExitBackend)
		},
	}
}

func check(ctx context.Context, opts *options) ([]string, error) {
	baseURL, anonKey := opts.baseURL, opts.anonKey
	if baseURL == "" || anonKey == "" {
		cfg, err := common.LoadConfig(opts.envFile)
		if err != nil {
			return nil, err
		}
		if baseURL == "" {
			baseURL = cfg.IdentityURL
		}
		if anonKey == "" {
			anonKey = cfg.IdentityAnonKey
		}
	}
	res, err := opts.traffic(ctx, loadgen.Config{
		BaseURL:     baseURL,
		AnonKey:     anonKey,
		Profile:     "mixed",
		Duration:    6 * time.Second,
		RPS:         20,
		Concurrency: 6,
		Seed:        time.Now().Unix(),
	})
	if err != nil {
		return nil, err
	}
	details := []string{fmt.Sprintf("traffic generated total=%d failures=%d", res.TotalRequests, res.Failures)}

	select {
	case <-ctx.Done():
		return details, ctx.Err()
	case <-time.After(opts.settle):
	}

	traceID, err := fetchTraceIDFromExemplar(ctx, opts)
	if err != nil {
		return details, err
	}
	details = append(details, "exemplar trace_id="+traceID)

	if err := verifyTempoTrace(ctx, opts, traceID); err != nil {
		return details, err
	}
	details = append(details, "tempo trace lookup: ok")

	if err := verifyLokiTraceLogs(ctx, opts, traceID); err != nil {
		return details, err
	}
	details = append(details, "loki trace correlation: ok")
	return details, nil
}

func grafanaGET(ctx context.Context, opts *options, uid, path string, query url.Values) (map[string]any, error) {
	u, err := url.Parse(opts.grafanaURL)
	if err != nil {
		return nil, err
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/api/datasources/proxy/uid/" + uid + path
	u.RawQuery = query.Encode()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	req.SetBasicAuth(opts.grafanaUser, opts.grafanaPassword)
	resp, err := opts.client.Do(req)
	if err != nil {
		return nil, &identity.Error{Code: identity.CodeTransport, Message: "grafana is unreachable", Err: err}
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("grafana request failed: %s", resp.Status)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, 4<<20))
	if err != nil {
		return nil, err
	}
	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, err
	}
	return payload, nil
}

func fetchTraceIDFromExemplar(ctx context.Context, opts *options) (string, error) {
	now := time.Now()
	payload, err := grafanaGET(ctx, opts, opts.prometheusUID, "/api/v1/query_exemplars", url.Values{
		"query": {exemplarMetric},
		"start": {fmt.Sprint(now.Add(-opts.window).Unix())},
		"end":   {fmt.Sprint(now.Unix())},
	})
	if err != nil {
		return "", err
	}
	data, _ := payload["data"].([]any)
	for _, series := range data {
		sm, _ := series.(map[string]any)
		exemplars, _ := sm["exemplars"].([]any)
		for _, e := range exemplars {
			em, _ := e.(map[string]any)
			labels, _ := em["labels"].(map[string]any)
			if tid, ok := labels["trace_id"].(string); ok && len(tid) == 32 {
				return tid, nil
			}
		}
	}
	return "", fmt.Errorf("no trace_id exemplar found for %s", exemplarMetric)
}

func verifyTempoTrace(ctx context.Context, opts *options, traceID string) error {
	payload, err := grafanaGET(ctx, opts, opts.tempoUID, "/api/traces/"+traceID, nil)
	if err != nil {
		return err
	}
	batches, _ := payload["batches"].([]any)
	if len(batches) == 0 {
		return fmt.Errorf("tempo trace %s has no batches", traceID)
	}
	return nil
}

func verifyLokiTraceLogs(ctx context.Context, opts *options, traceID string) error {
	now := time.Now()
	payload, err := grafanaGET(ctx, opts, opts.lokiUID, "/loki/api/v1/query_range", url.Values{
		"query":     {fmt.Sprintf("{service_name=%q} |= %q", opts.serviceName, traceID)},
		"start":     {fmt.Sprint(now.Add(-opts.window).UnixNano())},
		"end":       {fmt.Sprint(now.UnixNano())},
		"limit":     {"1"},
		"direction": {"backward"},
	})
	if err != nil {
		return err
	}
	data, _ := payload["data"].(map[string]any)
	result, _ := data["result"].([]any)
	if len(result) == 0 {
		return fmt.Errorf("no correlated loki logs found for trace_id %s", traceID)
	}
	return nil
}
