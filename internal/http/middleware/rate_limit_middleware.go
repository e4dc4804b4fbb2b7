package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/response"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

// Limiter admits at most limit requests per key within any trailing window.
// A refused request is not counted.
type Limiter interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
}

type FailureMode string

const (
	FailOpen   FailureMode = "fail_open"
	FailClosed FailureMode = "fail_closed"
)

func ParseFailureMode(v string, def FailureMode) FailureMode {
	switch FailureMode(v) {
	case FailOpen, FailClosed:
		return FailureMode(v)
	default:
		return def
	}
}

type LocalSlidingWindowLimiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	now     func() time.Time
	cleanup time.Time
}

func NewLocalSlidingWindowLimiter(now func() time.Time) *LocalSlidingWindowLimiter {
	if now == nil {
		now = time.Now
	}
	return &LocalSlidingWindowLimiter{
		hits:    make(map[string][]time.Time),
		now:     now,
		cleanup: now().Add(time.Minute),
	}
}

func (l *LocalSlidingWindowLimiter) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.After(l.cleanup) {
		for k, ts := range l.hits {
			if len(ts) == 0 || now.Sub(ts[len(ts)-1]) >= window {
				delete(l.hits, k)
			}
		}
		l.cleanup = now.Add(window)
	}

	ts := pruneBefore(l.hits[key], now.Add(-window))
	if len(ts) >= limit {
		l.hits[key] = ts
		retryAfter := ts[0].Add(window).Sub(now)
		if retryAfter < 0 {
			retryAfter = 0
		}
		return false, retryAfter, nil
	}
	l.hits[key] = append(ts, now)
	return true, 0, nil
}

// pruneBefore drops timestamps at or before cutoff. ts is sorted ascending.
func pruneBefore(ts []time.Time, cutoff time.Time) []time.Time {
	i := 0
	for i < len(ts) && !ts[i].After(cutoff) {
		i++
	}
	if i == 0 {
		return ts
	}
	return append(ts[:0], ts[i:]...)
}

// RateLimiter is the JSON 429 limiter for API routes.
type RateLimiter struct {
	limiter Limiter
	limit   int
	window  time.Duration
	mode    FailureMode
	scope   string
}

func NewRateLimiter(limit int, window time.Duration) *RateLimiter {
	return NewDistributedRateLimiter(NewLocalSlidingWindowLimiter(nil), limit, window, FailClosed, "local")
}

func NewDistributedRateLimiter(limiter Limiter, limit int, window time.Duration, mode FailureMode, scope string) *RateLimiter {
	if scope == "" {
		scope = "api"
	}
	return &RateLimiter{
		limiter: limiter,
		limit:   limit,
		window:  window,
		mode:    mode,
		scope:   scope,
	}
}

func (rl *RateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rl.scope + ":" + clientIPKey(r)
			allowed, retryAfter, err := rl.limiter.Allow(r.Context(), key, rl.limit, rl.window)
			if err != nil {
				if rl.mode == FailOpen {
					observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error_allowed", string(rl.mode), "ip")
					slog.WarnContext(r.Context(), "rate limiter backend unavailable, allowing request",
						"scope", rl.scope,
						"mode", string(rl.mode),
						"error", err.Error(),
					)
					next.ServeHTTP(w, r)
					return
				}
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "backend_error_denied", string(rl.mode), "ip")
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "backend_error", rl.window)
				w.Header().Set("Retry-After", retryAfterHeader(rl.window))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			if !allowed {
				observability.RecordRateLimitDecision(r.Context(), rl.scope, "denied", string(rl.mode), "ip")
				observability.RecordRateLimitRetryAfter(r.Context(), rl.scope, "limit_exceeded", retryAfter)
				w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
				response.Error(w, r, http.StatusTooManyRequests, "RATE_LIMITED", "too many requests", nil)
				return
			}
			observability.RecordRateLimitDecision(r.Context(), rl.scope, "allowed", string(rl.mode), "ip")
			next.ServeHTTP(w, r)
		})
	}
}

const (
	ScopeLogin         = "login"
	ScopeRegister      = "register"
	ScopeResend        = "resend"
	ScopeVerify        = "verify"
	ScopePasswordReset = "password_reset"
	ScopeDefault       = "default"
)

// RoutePolicy describes the ceiling on one account route and where a refused
// client is sent.
type RoutePolicy struct {
	Scope      string
	Limit      int
	Window     time.Duration
	Message    string
	RedirectTo string
}

var routeLandings = map[string]struct {
	message    string
	redirectTo string
}{
	ScopeLogin:         {"You've made too many login attempts. Please try again later.", "/login/"},
	ScopeRegister:      {"You've made too many registration attempts. Please try again later.", "/register/"},
	ScopeResend:        {"You've requested too many OTP resends. Please try again later.", "/verify-otp/"},
	ScopeVerify:        {"You've made too many verification attempts. Please try again later.", "/verify-otp/"},
	ScopePasswordReset: {"You've made too many password reset requests. Please try again later.", "/password-reset/"},
	ScopeDefault:       {"You've made too many requests. Please try again later.", "/"},
}

// NewRoutePolicy returns the per-minute policy for scope. Unknown scopes get
// the default message and landing page.
func NewRoutePolicy(scope string, perMinute int) RoutePolicy {
	landing, ok := routeLandings[scope]
	if !ok {
		landing = routeLandings[ScopeDefault]
	}
	return RoutePolicy{
		Scope:      scope,
		Limit:      perMinute,
		Window:     time.Minute,
		Message:    landing.message,
		RedirectTo: landing.redirectTo,
	}
}

// RedirectRateLimiter refuses over-limit requests with a flash message and a
// 303 to the route's landing page. The wrapped handler is never reached.
type RedirectRateLimiter struct {
	limiter  Limiter
	policy   RoutePolicy
	mode     FailureMode
	sessions session.Store
	logger   *slog.Logger
}

func NewRedirectRateLimiter(limiter Limiter, policy RoutePolicy, mode FailureMode, sessions session.Store, logger *slog.Logger) *RedirectRateLimiter {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedirectRateLimiter{limiter: limiter, policy: policy, mode: mode, sessions: sessions, logger: logger}
}

func (rl *RedirectRateLimiter) Policy() RoutePolicy { return rl.policy }

func (rl *RedirectRateLimiter) Middleware() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			scope := rl.policy.Scope
			key := scope + ":" + clientIPKey(r)
			allowed, retryAfter, err := rl.limiter.Allow(ctx, key, rl.policy.Limit, rl.policy.Window)
			if err != nil {
				if rl.mode == FailOpen {
					observability.RecordRateLimitDecision(ctx, scope, "backend_error_allowed", string(rl.mode), "ip")
					rl.logger.WarnContext(ctx, "rate limiter backend unavailable, allowing request",
						"scope", scope, "mode", string(rl.mode), "error", err.Error())
					next.ServeHTTP(w, r)
					return
				}
				observability.RecordRateLimitDecision(ctx, scope, "backend_error_denied", string(rl.mode), "ip")
				rl.logger.WarnContext(ctx, "rate limiter backend unavailable, refusing request",
					"scope", scope, "mode", string(rl.mode), "error", err.Error())
				rl.refuse(w, r, rl.policy.Window, "backend_error")
				return
			}
			if !allowed {
				observability.RecordRateLimitDecision(ctx, scope, "denied", string(rl.mode), "ip")
				rl.refuse(w, r, retryAfter, "limit_exceeded")
				return
			}
			observability.RecordRateLimitDecision(ctx, scope, "allowed", string(rl.mode), "ip")
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RedirectRateLimiter) refuse(w http.ResponseWriter, r *http.Request, retryAfter time.Duration, reason string) {
	ctx := r.Context()
	observability.RecordRateLimitRetryAfter(ctx, rl.policy.Scope, reason, retryAfter)
	observability.Audit(r, observability.AuditInput{
		EventName:  "account.rate_limited",
		TargetType: "route",
		TargetID:   rl.policy.Scope,
		Action:     "throttle",
		Outcome:    "rejected",
		Reason:     reason,
	})
	w.Header().Set("Retry-After", retryAfterHeader(retryAfter))
	msg := session.Message{Level: session.LevelError, Text: rl.policy.Message}
	if sid, ok := SessionIDFromContext(ctx); ok && rl.sessions != nil {
		if err := session.AddMessage(ctx, rl.sessions, sid, msg.Level, msg.Text, session.MessageTTL); err != nil {
			rl.logger.WarnContext(ctx, "store rate limit message", "scope", rl.policy.Scope, "error", err.Error())
		}
		msgs, err := session.PeekMessages(ctx, rl.sessions, sid)
		if err == nil && len(msgs) > 0 {
			response.Redirect(w, r, rl.policy.RedirectTo, msgs)
			return
		}
	}
	response.Redirect(w, r, rl.policy.RedirectTo, []session.Message{msg})
}

func clientIPKey(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err == nil && host != "" {
		return host
	}
	return r.RemoteAddr
}

func retryAfterHeader(d time.Duration) string {
	if d <= 0 {
		return "1"
	}
	seconds := int((d + time.Second - 1) / time.Second)
	if seconds <= 0 {
		seconds = 1
	}
	return fmt.Sprintf("%d", seconds)
}
