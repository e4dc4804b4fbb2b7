package router

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/health"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/handler"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/response"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

type Dependencies struct {
	AccountHandler *handler.AccountHandler
	UserHandler    *handler.UserHandler
	JWTManager     *security.JWTManager
	SessionSigner  *security.SessionIDSigner
	CookieManager  *security.CookieManager
	SessionTTL     time.Duration
	CORSOrigins    []string
	APIRateLimiter APIRateLimiterFunc
	RouteLimiters  RouteRateLimitPolicies
	Readiness      *health.ProbeRunner
	Logger         *slog.Logger
	EnableOTelHTTP bool
}

type APIRateLimiterFunc func(http.Handler) http.Handler

// RouteRateLimitPolicies maps a limiter scope to the middleware guarding the
// POST side of that account route.
type RouteRateLimitPolicies map[string]func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	logger := dep.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger(logger))
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))

	routePolicy := func(scope string) func(http.Handler) http.Handler {
		if mw, ok := dep.RouteLimiters[scope]; ok && mw != nil {
			return mw
		}
		return func(next http.Handler) http.Handler { return next }
	}
	apiLimiter := dep.APIRateLimiter
	if apiLimiter == nil {
		apiLimiter = func(next http.Handler) http.Handler { return next }
	}

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.SessionMiddleware(dep.SessionSigner, dep.CookieManager, dep.SessionTTL))

		acc := dep.AccountHandler
		r.Get(handler.PathHome, acc.Page)

		r.Get(handler.PathRegister, acc.Page)
		r.With(routePolicy(middleware.ScopeRegister)).Post(handler.PathRegister, acc.Register)

		r.Get(handler.PathVerifyOTP, acc.VerifyPage)
		r.With(routePolicy(middleware.ScopeVerify)).Post(handler.PathVerifyOTP, acc.VerifyOTP)

		r.Get(handler.PathResendOTP, acc.ResendPage)
		r.With(routePolicy(middleware.ScopeResend)).Post(handler.PathResendOTP, acc.ResendOTP)

		r.Get(handler.PathLogin, acc.Page)
		r.With(routePolicy(middleware.ScopeLogin)).Post(handler.PathLogin, acc.Login)
		r.Post(handler.PathLogout, acc.Logout)

		r.Get(handler.PathPasswordReset, acc.Page)
		r.With(routePolicy(middleware.ScopePasswordReset)).Post(handler.PathPasswordReset, acc.PasswordReset)
		r.Get(handler.PathPasswordResetDone, acc.Page)
		r.Get(handler.PathPasswordResetConfirm, acc.PasswordResetConfirmPage)
		r.Post(handler.PathPasswordResetConfirm, acc.PasswordResetConfirm)
		r.Get(handler.PathPasswordResetDoneAll, acc.Page)

		r.With(apiLimiter, middleware.AuthMiddleware(dep.JWTManager)).Get("/me/", dep.UserHandler.Me)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
