package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/app"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/database"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/health"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/handler"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/router"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/service"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

var ConfigSet = wire.NewSet(config.Load)

var ObservabilitySet = wire.NewSet(
	provideObservabilityRuntime,
	provideAppLogger,
)

var RuntimeInfraSet = wire.NewSet(
	provideRuntimeDB,
	provideRedisClient,
	provideSessionStore,
	provideReadinessProbeRunner,
)

var RepositorySet = wire.NewSet(
	repository.NewUserRepository,
	repository.NewOneTimeCodeRepository,
	repository.NewPasswordResetTokenRepository,
)

var SecuritySet = wire.NewSet(
	provideClock,
	provideJWTManager,
	provideCookieManager,
	provideSessionIDSigner,
	provideOTPIssuer,
	provideLockoutPolicy,
)

var ServiceSet = wire.NewSet(
	provideNotifier,
	service.NewRegistrationService,
	service.NewPasswordResetService,
	service.NewAuthGate,
	service.NewUserService,
	wire.Bind(new(service.RegistrationServiceInterface), new(*service.RegistrationService)),
	wire.Bind(new(service.PasswordResetServiceInterface), new(*service.PasswordResetService)),
	wire.Bind(new(service.AuthenticatorInterface), new(*service.AuthGate)),
	wire.Bind(new(service.UserServiceInterface), new(*service.UserService)),
)

var HTTPSet = wire.NewSet(
	provideAccountHandler,
	handler.NewUserHandler,
	provideLimiterBackend,
	provideAPIRateLimiter,
	provideRouteRateLimitPolicies,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
)

var AppSet = wire.NewSet(provideApp)

func provideObservabilityRuntime(cfg *config.Config) (*observability.Runtime, error) {
	bootstrapLogger := observability.NewBootstrapLogger(cfg)
	return observability.InitRuntime(context.Background(), cfg, bootstrapLogger)
}

func provideAppLogger(cfg *config.Config, runtime *observability.Runtime) *slog.Logger {
	return observability.InitLogger(cfg, runtime.LoggerProvider)
}

func provideRuntimeDB(cfg *config.Config) (*gorm.DB, error) {
	db, err := database.Open(cfg)
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(db); err != nil {
		return nil, err
	}
	return db, nil
}

// provideRedisClient returns nil unless a Redis-backed limiter or session
// store is configured.
func provideRedisClient(cfg *config.Config, logger *slog.Logger) redis.UniversalClient {
	if !cfg.RateLimitRedisEnabled && cfg.SessionStoreBackend != config.SessionStoreRedis {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	observability.InstrumentRedisClient(client, logger)
	return client
}

func provideSessionStore(cfg *config.Config, redisClient redis.UniversalClient) session.Store {
	if cfg.SessionStoreBackend == config.SessionStoreRedis && redisClient != nil {
		return session.NewRedisStore(redisClient, cfg.RedisKeyPrefix+":session")
	}
	return session.NewMemoryStore(nil)
}

func provideClock() security.Clock {
	return security.SystemClock{}
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideCookieManager(cfg *config.Config) *security.CookieManager {
	return security.NewCookieManager(cfg.CookieDomain, cfg.CookieSecure, cfg.CookieSameSite)
}

func provideSessionIDSigner(cfg *config.Config) *security.SessionIDSigner {
	return security.NewSessionIDSigner(cfg.SessionSigningSecret)
}

func provideOTPIssuer(cfg *config.Config, clock security.Clock) *security.OTPIssuer {
	return security.NewOTPIssuer(security.OTPConfig{TTL: cfg.OTPTTL}, clock)
}

func provideLockoutPolicy(cfg *config.Config) security.LockoutPolicy {
	return security.NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow)
}

// provideNotifier sends real mail when SMTP is enabled. Otherwise codes and
// links are logged, and only revealed in development.
func provideNotifier(cfg *config.Config, logger *slog.Logger) service.Notifier {
	if cfg.SMTPEnabled {
		dialer := service.NewSMTPDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		return service.NewSMTPNotifier(dialer, cfg.SMTPFrom, cfg.SiteName, logger)
	}
	return service.NewDevNotifier(logger, cfg.IsDevelopment())
}

func provideAccountHandler(
	registration service.RegistrationServiceInterface,
	reset service.PasswordResetServiceInterface,
	auth service.AuthenticatorInterface,
	sessions session.Store,
	jwtMgr *security.JWTManager,
	cookieMgr *security.CookieManager,
	policy security.LockoutPolicy,
	cfg *config.Config,
	logger *slog.Logger,
) *handler.AccountHandler {
	return handler.NewAccountHandler(registration, reset, auth, sessions, jwtMgr, cookieMgr, cfg.JWTAccessTTL, policy.Window, logger)
}

// provideLimiterBackend shares one sliding-window store across every route
// scope; keys are namespaced by scope.
func provideLimiterBackend(cfg *config.Config, redisClient redis.UniversalClient) middleware.Limiter {
	if cfg.RateLimitRedisEnabled && redisClient != nil {
		return middleware.NewRedisSlidingWindowLimiter(redisClient, cfg.RateLimitRedisPrefix)
	}
	return middleware.NewLocalSlidingWindowLimiter(nil)
}

func provideAPIRateLimiter(cfg *config.Config, limiter middleware.Limiter) router.APIRateLimiterFunc {
	mode := middleware.ParseFailureMode(cfg.RateLimitRedisOutagePolicyAPI, middleware.FailOpen)
	return middleware.NewDistributedRateLimiter(limiter, cfg.APIRateLimitPerMin, time.Minute, mode, "api").Middleware()
}

func provideRouteRateLimitPolicies(
	cfg *config.Config,
	limiter middleware.Limiter,
	sessions session.Store,
	logger *slog.Logger,
) router.RouteRateLimitPolicies {
	routes := []struct {
		scope     string
		perMinute int
		outage    string
	}{
		{middleware.ScopeLogin, cfg.RateLimitLoginPerMin, cfg.RateLimitRedisOutagePolicyLogin},
		{middleware.ScopeRegister, cfg.RateLimitRegisterPerMin, cfg.RateLimitRedisOutagePolicyRegister},
		{middleware.ScopeResend, cfg.RateLimitResendPerMin, cfg.RateLimitRedisOutagePolicyResend},
		{middleware.ScopeVerify, cfg.RateLimitVerifyPerMin, cfg.RateLimitRedisOutagePolicyVerify},
		{middleware.ScopePasswordReset, cfg.RateLimitPasswordResetPerMin, cfg.RateLimitRedisOutagePolicyPasswordReset},
	}
	policies := make(router.RouteRateLimitPolicies, len(routes))
	for _, rt := range routes {
		mode := middleware.ParseFailureMode(rt.outage, middleware.FailClosed)
		rl := middleware.NewRedirectRateLimiter(limiter, middleware.NewRoutePolicy(rt.scope, rt.perMinute), mode, sessions, logger)
		policies[rt.scope] = rl.Middleware()
	}
	return policies
}

func provideRouterDependencies(
	accountHandler *handler.AccountHandler,
	userHandler *handler.UserHandler,
	jwt *security.JWTManager,
	signer *security.SessionIDSigner,
	cookies *security.CookieManager,
	apiRateLimiter router.APIRateLimiterFunc,
	routeLimiters router.RouteRateLimitPolicies,
	readiness *health.ProbeRunner,
	logger *slog.Logger,
	cfg *config.Config,
) router.Dependencies {
	return router.Dependencies{
		AccountHandler: accountHandler,
		UserHandler:    userHandler,
		JWTManager:     jwt,
		SessionSigner:  signer,
		CookieManager:  cookies,
		SessionTTL:     cfg.VerificationSessionTTL,
		CORSOrigins:    cfg.CORSAllowedOrigins,
		APIRateLimiter: apiRateLimiter,
		RouteLimiters:  routeLimiters,
		Readiness:      readiness,
		Logger:         logger,
		EnableOTelHTTP: cfg.OTELMetricsEnabled || cfg.OTELTracingEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.HTTPPort,
		Handler:           h,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}
}

func provideReadinessProbeRunner(cfg *config.Config, db *gorm.DB, redisClient redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.NewDBChecker(db)}
	if redisClient != nil {
		checkers = append(checkers, health.NewRedisChecker(redisClient))
	}
	if cfg.SMTPEnabled && cfg.ReadinessProbeSMTP {
		dialer := service.NewSMTPDialer(cfg.SMTPHost, cfg.SMTPPort, cfg.SMTPUsername, cfg.SMTPPassword)
		checkers = append(checkers, health.NewSMTPChecker(dialer))
	}
	return health.NewProbeRunner(cfg.ReadinessProbeTimeout, cfg.ServerStartGracePeriod, checkers...)
}

func provideApp(
	cfg *config.Config,
	logger *slog.Logger,
	server *http.Server,
	runtime *observability.Runtime,
	db *gorm.DB,
	redisClient redis.UniversalClient,
) *app.App {
	return app.New(cfg, logger, server, runtime, db, redisClient)
}
