package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/campusmarket/accountkit/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
)

const meterName = "github.com/campusmarket/accountkit"

var durationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5}

type AppMetrics struct {
	accountOpsCounter        metric.Int64Counter
	accountOpDuration        metric.Float64Histogram
	profileEnrichCounter     metric.Int64Counter
	identityClientDuration   metric.Float64Histogram
	sessionRefreshCounter    metric.Int64Counter
	identityServerCounter    metric.Int64Counter
	identityServerDuration   metric.Float64Histogram
	repositoryOpsCounter     metric.Int64Counter
	rateLimitDecisionCounter metric.Int64Counter
	signInGuardCounter       metric.Int64Counter
	rateLimitRetryAfter      metric.Float64Histogram
	healthCheckResultCounter metric.Int64Counter
	healthCheckDuration      metric.Float64Histogram
	databaseStartupCounter   metric.Int64Counter
	toolCommandRuns          metric.Int64Counter
	toolCommandDuration      metric.Float64Histogram
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := serviceResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	histogramView := func(name string) sdkmetric.View {
		return sdkmetric.NewView(
			sdkmetric.Instrument{Name: name},
			sdkmetric.Stream{Aggregation: sdkmetric.AggregationExplicitBucketHistogram{Boundaries: durationBuckets}},
		)
	}
	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(
			histogramView("account.operation.duration"),
			histogramView("identity.client.request.duration"),
			histogramView("identity.server.request.duration"),
		),
	)
	otel.SetMeterProvider(mp)

	m, err := NewAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	setAppMetrics(m)

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

// NewAppMetrics creates every instrument on meter.
func NewAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	m := &AppMetrics{}
	counters := []struct {
		dst  *metric.Int64Counter
		name string
		desc string
	}{
		{&m.accountOpsCounter, "account.operations", "Account flow operations by outcome"},
		{&m.profileEnrichCounter, "account.profile_enrichment", "Post sign-up profile enrichment attempts"},
		{&m.sessionRefreshCounter, "identity.session.refresh", "Access token refreshes performed by the identity client"},
		{&m.identityServerCounter, "identity.server.events", "Identity server flow events"},
		{&m.repositoryOpsCounter, "repository.operations", "Repository operations by outcome"},
		{&m.rateLimitDecisionCounter, "http.rate_limit.decisions", "Rate limiter decisions"},
		{&m.signInGuardCounter, "identity.server.signin_guard", "Failed credential backoff decisions"},
		{&m.healthCheckResultCounter, "health.check.results", "Health dependency check results"},
		{&m.databaseStartupCounter, "database.startup.events", "Database connect and migrate events"},
		{&m.toolCommandRuns, "tool.command.runs", "Tool command executions"},
	}
	for _, c := range counters {
		counter, err := meter.Int64Counter(c.name, metric.WithDescription(c.desc))
		if err != nil {
			return nil, fmt.Errorf("create counter %s: %w", c.name, err)
		}
		*c.dst = counter
	}

	histograms := []struct {
		dst  *metric.Float64Histogram
		name string
		desc string
	}{
		{&m.accountOpDuration, "account.operation.duration", "Duration of account flow operations in seconds"},
		{&m.identityClientDuration, "identity.client.request.duration", "Duration of identity service requests in seconds"},
		{&m.identityServerDuration, "identity.server.request.duration", "Duration of identity server endpoint requests in seconds"},
		{&m.rateLimitRetryAfter, "http.rate_limit.retry_after", "Retry-after duration in seconds for throttled requests"},
		{&m.healthCheckDuration, "health.check.duration", "Duration of health dependency checks in seconds"},
		{&m.toolCommandDuration, "tool.command.duration", "Duration of tool commands in seconds"},
	}
	for _, h := range histograms {
		hist, err := meter.Float64Histogram(h.name, metric.WithUnit("s"), metric.WithDescription(h.desc))
		if err != nil {
			return nil, fmt.Errorf("create histogram %s: %w", h.name, err)
		}
		*h.dst = hist
	}
	return m, nil
}

func setAppMetrics(m *AppMetrics) {
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
}

func current() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

func RecordAccountOperation(ctx context.Context, operation, outcome string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	)
	m.accountOpsCounter.Add(ctx, 1, attrs)
	m.accountOpDuration.Record(ctx, duration.Seconds(), attrs)
}

// RecordSignInGuard counts one backoff decision; action is check, failure
// or reset.
func RecordSignInGuard(ctx context.Context, scope, action, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.signInGuardCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("action", action),
		attribute.String("outcome", outcome),
	))
}

func RecordProfileEnrichment(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.profileEnrichCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordIdentityClientRequest(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.identityClientDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordSessionRefresh(ctx context.Context, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.sessionRefreshCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordIdentityServerEvent(ctx context.Context, flow, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.identityServerCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("flow", flow),
		attribute.String("outcome", outcome),
	))
}

func RecordIdentityServerRequestDuration(ctx context.Context, endpoint, status string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.identityServerDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordRepositoryOperation(ctx context.Context, repository, operation, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.repositoryOpsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("repository", repository),
		attribute.String("operation", operation),
		attribute.String("outcome", outcome),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode string) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope string, retryAfter time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(attribute.String("scope", scope)))
}

func RecordHealthCheckResult(ctx context.Context, check, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("outcome", outcome),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.String("check", check)))
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	m := current()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	))
}

func RecordToolCommandRun(ctx context.Context, tool, command, outcome string, duration time.Duration) {
	m := current()
	if m == nil {
		return
	}
	attrs := metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("outcome", outcome),
	)
	m.toolCommandRuns.Add(ctx, 1, attrs)
	m.toolCommandDuration.Record(ctx, duration.Seconds(), attrs)
}
