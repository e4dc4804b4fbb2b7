package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/exemplar"
	"go.opentelemetry.io/otel/sdk/resource"
)

const meterName = "fundraising-accounts-service"

type AppMetrics struct {
	authLoginCounter             metric.Int64Counter
	authLogoutCounter            metric.Int64Counter
	lockoutCounter               metric.Int64Counter
	lockoutRemaining             metric.Float64Histogram
	registrationCounter          metric.Int64Counter
	otpIssuedCounter             metric.Int64Counter
	otpVerificationCounter       metric.Int64Counter
	otpResendCooldown            metric.Float64Histogram
	verificationSessionCounter   metric.Int64Counter
	passwordResetCounter         metric.Int64Counter
	notificationCounter          metric.Int64Counter
	notificationDuration         metric.Float64Histogram
	authReqDuration              metric.Float64Histogram
	accessTokenValidationCounter metric.Int64Counter
	rateLimitDecisionCounter     metric.Int64Counter
	rateLimitRetryAfter          metric.Float64Histogram
	sessionStoreCounter          metric.Int64Counter
	healthCheckResultCounter     metric.Int64Counter
	healthCheckDuration          metric.Float64Histogram
	databaseStartupCounter       metric.Int64Counter
	databaseStartupDuration      metric.Float64Histogram
	toolCommandRuns              metric.Int64Counter
	toolCommandDuration          metric.Float64Histogram
	loadgenRequestsCounter       metric.Int64Counter
	middlewareValidationCounter  metric.Int64Counter
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

	res, err := resource.New(ctx,
		resource.WithAttributes(
			attribute.String("service.name", cfg.OTELServiceName),
			attribute.String("deployment.environment", cfg.OTELEnvironment),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
		sdkmetric.WithExemplarFilter(exemplar.TraceBasedFilter),
		sdkmetric.WithView(sdkmetric.NewView(
			sdkmetric.Instrument{Name: "auth.request.duration"},
			sdkmetric.Stream{
				Aggregation: sdkmetric.AggregationExplicitBucketHistogram{
					Boundaries: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5},
				},
			},
		)),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	var firstErr error
	counter := func(name, desc string) metric.Int64Counter {
		c, err := meter.Int64Counter(name, metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create counter %s: %w", name, err)
		}
		return c
	}
	hist := func(name, unit, desc string) metric.Float64Histogram {
		h, err := meter.Float64Histogram(name, metric.WithUnit(unit), metric.WithDescription(desc))
		if err != nil && firstErr == nil {
			firstErr = fmt.Errorf("create histogram %s: %w", name, err)
		}
		return h
	}

	m := &AppMetrics{
		authLoginCounter:             counter("auth.login.attempts", "Login attempts by outcome"),
		authLogoutCounter:            counter("auth.logout.attempts", "Logout requests by status"),
		lockoutCounter:               counter("account.lockout.events", "Lockout policy transitions"),
		lockoutRemaining:             hist("account.lockout.remaining", "s", "Remaining lock time reported to blocked logins"),
		registrationCounter:          counter("account.registration.events", "Registration submissions by outcome"),
		otpIssuedCounter:             counter("account.otp.issued", "One-time codes issued by reason"),
		otpVerificationCounter:       counter("account.otp.verifications", "One-time code verification outcomes"),
		otpResendCooldown:            hist("account.otp.resend_cooldown", "s", "Remaining resend cooldown when a resend is refused"),
		verificationSessionCounter:   counter("account.verification_session.events", "Verification session lifecycle events"),
		passwordResetCounter:         counter("account.password_reset.events", "Password reset request and confirm outcomes"),
		notificationCounter:          counter("notification.delivery.events", "Outbound notification delivery results"),
		notificationDuration:         hist("notification.delivery.duration", "s", "Outbound notification delivery latency"),
		authReqDuration:              hist("auth.request.duration", "s", "Duration of account endpoint handlers"),
		accessTokenValidationCounter: counter("auth.access_token.validation.events", "Access token validation outcomes"),
		rateLimitDecisionCounter:     counter("http.rate_limit.decisions", "Rate limiter allow and deny decisions"),
		rateLimitRetryAfter:          hist("http.rate_limit.retry_after", "s", "Retry-After durations issued on denial"),
		sessionStoreCounter:          counter("session.store.operations", "Verification session store operations"),
		healthCheckResultCounter:     counter("health.check.results", "Health dependency check outcomes"),
		healthCheckDuration:          hist("health.check.duration", "s", "Duration of health dependency checks in seconds"),
		databaseStartupCounter:       counter("database.startup.events", "Database connect and migrate events"),
		databaseStartupDuration:      hist("database.startup.duration", "s", "Database startup phase duration"),
		toolCommandRuns:              counter("tool.command.runs", "CLI tool command runs"),
		toolCommandDuration:          hist("tool.command.duration", "s", "CLI tool command duration"),
		loadgenRequestsCounter:       counter("loadgen.requests", "Load generator requests by status class"),
		middlewareValidationCounter:  counter("http.middleware.validation.events", "Request validation outcomes by middleware"),
	}
	if firstErr != nil {
		return nil, firstErr
	}
	return m, nil
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	m := appMetrics
	metricsMu.RUnlock()
	return m
}

func RecordAuthLogin(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLoginCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordAuthLogout(ctx context.Context, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authLogoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("status", status)))
}

// RecordAccountLockoutEvent counts lockout transitions: triggered, blocked,
// window_reset and success_reset.
func RecordAccountLockoutEvent(ctx context.Context, event string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.lockoutCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func RecordAccountLockoutRemaining(ctx context.Context, remaining time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.lockoutRemaining.Record(ctx, remaining.Seconds())
}

func RecordRegistrationEvent(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.registrationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordOTPIssued(ctx context.Context, reason string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.otpIssuedCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("reason", reason)))
}

func RecordOTPVerification(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.otpVerificationCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordOTPResendCooldown(ctx context.Context, remaining time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.otpResendCooldown.Record(ctx, remaining.Seconds())
}

func RecordVerificationSessionEvent(ctx context.Context, event string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.verificationSessionCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("event", event)))
}

func RecordPasswordResetEvent(ctx context.Context, stage, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.passwordResetCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("stage", stage),
		attribute.String("outcome", outcome),
	))
}

func RecordNotificationDelivery(ctx context.Context, kind, channel, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.notificationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("kind", kind),
		attribute.String("channel", channel),
		attribute.String("status", status),
	))
}

func RecordNotificationDuration(ctx context.Context, kind string, d time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.notificationDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("kind", kind)))
}

func RecordAuthRequestDuration(ctx context.Context, endpoint, status string, d time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.authReqDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("endpoint", endpoint),
		attribute.String("status", status),
	))
}

func RecordAccessTokenValidation(ctx context.Context, outcome, source string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.accessTokenValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("outcome", outcome),
		attribute.String("source", source),
	))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome, mode, keyType string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitDecisionCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("outcome", outcome),
		attribute.String("mode", mode),
		attribute.String("key_type", keyType),
	))
}

func RecordRateLimitRetryAfter(ctx context.Context, scope, reason string, retryAfter time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitRetryAfter.Record(ctx, retryAfter.Seconds(), metric.WithAttributes(
		attribute.String("scope", scope),
		attribute.String("reason", reason),
	))
}

func RecordSessionStoreOperation(ctx context.Context, backend, op, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionStoreCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("backend", backend),
		attribute.String("operation", op),
		attribute.String("status", status),
	))
}

func RecordHealthCheckResult(ctx context.Context, check, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckResultCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("check", check),
		attribute.String("status", status),
	))
}

func RecordHealthCheckDuration(ctx context.Context, check string, d time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.healthCheckDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("check", check)))
}

func RecordDatabaseStartupEvent(ctx context.Context, phase, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("phase", phase),
		attribute.String("outcome", outcome),
	))
}

func RecordDatabaseStartupDuration(ctx context.Context, phase string, d time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.databaseStartupDuration.Record(ctx, d.Seconds(), metric.WithAttributes(attribute.String("phase", phase)))
}

func RecordToolCommandRun(ctx context.Context, tool, command, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandRuns.Add(ctx, 1, metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

func RecordToolCommandDuration(ctx context.Context, tool, command, status string, d time.Duration) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.toolCommandDuration.Record(ctx, d.Seconds(), metric.WithAttributes(
		attribute.String("tool", tool),
		attribute.String("command", command),
		attribute.String("status", status),
	))
}

func RecordLoadgenRequest(ctx context.Context, statusClass, profile string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.loadgenRequestsCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("status_class", statusClass),
		attribute.String("profile", profile),
	))
}

func RecordMiddlewareValidationEvent(ctx context.Context, middleware, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.middlewareValidationCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("middleware", middleware),
		attribute.String("outcome", outcome),
	))
}
