package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/database"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/health"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/handler"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/middleware"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/router"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/service"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"
)

const validPassword = "Valid#Pass1234"

type apiEnvelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string          `json:"code"`
		Message string          `json:"message"`
		Details json.RawMessage `json:"details"`
	} `json:"error"`
}

// pageData covers both landing-page payloads and redirect bodies.
type pageData struct {
	RedirectTo string            `json:"redirect_to"`
	Messages   []session.Message `json:"messages"`
	Email      string            `json:"email"`
	ExpiresIn  int               `json:"expires_in"`
	Cooldown   int               `json:"cooldown"`
	Token      string            `json:"token"`
	ValidLink  bool              `json:"valid_link"`
}

func (e apiEnvelope) page(t *testing.T) pageData {
	t.Helper()
	var p pageData
	if len(e.Data) > 0 {
		if err := json.Unmarshal(e.Data, &p); err != nil {
			t.Fatalf("decode page data: %v", err)
		}
	}
	return p
}

type captureNotifier struct {
	mu    sync.Mutex
	codes map[string][]string
	links map[string][]string
	fail  bool
}

func newCaptureNotifier() *captureNotifier {
	return &captureNotifier{codes: map[string][]string{}, links: map[string][]string{}}
}

func (n *captureNotifier) SendVerificationCode(_ context.Context, v service.VerificationCodeNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("smtp unavailable")
	}
	n.codes[v.Email] = append(n.codes[v.Email], v.Code)
	return nil
}

func (n *captureNotifier) SendPasswordReset(_ context.Context, p service.PasswordResetNotification) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.fail {
		return fmt.Errorf("smtp unavailable")
	}
	n.links[p.Email] = append(n.links[p.Email], p.Link)
	return nil
}

func (n *captureNotifier) LastCode(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	codes := n.codes[email]
	if len(codes) == 0 {
		return ""
	}
	return codes[len(codes)-1]
}

func (n *captureNotifier) CodeCount(email string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.codes[email])
}

// LastResetToken extracts the token query value from the most recent link.
func (n *captureNotifier) LastResetToken(email string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	links := n.links[email]
	if len(links) == 0 {
		return ""
	}
	u, err := url.Parse(links[len(links)-1])
	if err != nil {
		return ""
	}
	return u.Query().Get("token")
}

type manualClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *manualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *manualClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type accountsServerOptions struct {
	cfgOverride func(cfg *config.Config)
	db          *gorm.DB
	readiness   []health.Checker
}

type accountsServer struct {
	URL      string
	cfg      *config.Config
	db       *gorm.DB
	notifier *captureNotifier
	clock    *manualClock
	users    repository.UserRepository
	jwt      *security.JWTManager
}

func newAccountsServer(t *testing.T) *accountsServer {
	t.Helper()
	return newAccountsServerWithOptions(t, accountsServerOptions{})
}

func newAccountsServerWithOptions(t *testing.T, opts accountsServerOptions) *accountsServer {
	t.Helper()

	cfg := &config.Config{
		Env:                          "test",
		DatabaseURL:                  fmt.Sprintf("sqlite://file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_")),
		JWTIssuer:                    "fundraising-accounts-service",
		JWTAudience:                  "fundraising-platform",
		JWTAccessSecret:              "abcdefghijklmnopqrstuvwxyz123456",
		JWTAccessTTL:                 15 * time.Minute,
		SessionSigningSecret:         "integration-session-secret-0123456789",
		CookieSameSite:               "lax",
		OTPTTL:                       5 * time.Minute,
		OTPResendCooldown:            60 * time.Second,
		VerificationPageWindow:       10 * time.Minute,
		VerificationSessionTTL:       30 * time.Minute,
		LockoutThreshold:             5,
		LockoutWindow:                5 * time.Minute,
		PasswordResetTokenTTL:        time.Hour,
		RateLimitLoginPerMin:         1000,
		RateLimitRegisterPerMin:      1000,
		RateLimitResendPerMin:        1000,
		RateLimitVerifyPerMin:        1000,
		RateLimitPasswordResetPerMin: 1000,
		APIRateLimitPerMin:           1000,
		SiteName:                     "Fundraising",
		SiteDomain:                   "accounts.test",
		SiteProtocol:                 "https",
	}
	if opts.cfgOverride != nil {
		opts.cfgOverride(cfg)
	}

	db := opts.db
	if db == nil {
		var err error
		db, err = database.Open(cfg)
		if err != nil {
			t.Fatalf("open db: %v", err)
		}
		sqlDB, err := db.DB()
		if err != nil {
			t.Fatalf("sql db: %v", err)
		}
		t.Cleanup(func() { _ = sqlDB.Close() })
	}
	if err := database.Migrate(db); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	clock := &manualClock{now: time.Now().UTC()}
	notifier := newCaptureNotifier()
	sessions := session.NewMemoryStore(nil)

	users := repository.NewUserRepository(db)
	codes := repository.NewOneTimeCodeRepository(db)
	tokens := repository.NewPasswordResetTokenRepository(db)
	issuer := security.NewOTPIssuer(security.OTPConfig{TTL: cfg.OTPTTL}, clock)
	policy := security.NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow)

	registration := service.NewRegistrationService(cfg, users, codes, issuer, sessions, notifier, logger)
	reset := service.NewPasswordResetService(cfg, users, tokens, registration, notifier, clock, logger)
	gate := service.NewAuthGate(users, policy, clock, logger)
	jwtMgr := security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
	cookies := security.NewCookieManager("", false, cfg.CookieSameSite)

	limiter := middleware.NewLocalSlidingWindowLimiter(nil)
	routeLimiters := router.RouteRateLimitPolicies{}
	for scope, perMin := range map[string]int{
		middleware.ScopeLogin:         cfg.RateLimitLoginPerMin,
		middleware.ScopeRegister:      cfg.RateLimitRegisterPerMin,
		middleware.ScopeResend:        cfg.RateLimitResendPerMin,
		middleware.ScopeVerify:        cfg.RateLimitVerifyPerMin,
		middleware.ScopePasswordReset: cfg.RateLimitPasswordResetPerMin,
	} {
		rl := middleware.NewRedirectRateLimiter(limiter, middleware.NewRoutePolicy(scope, perMin), middleware.FailClosed, sessions, logger)
		routeLimiters[scope] = rl.Middleware()
	}

	h := router.NewRouter(router.Dependencies{
		AccountHandler: handler.NewAccountHandler(registration, reset, gate, sessions, jwtMgr, cookies, cfg.JWTAccessTTL, policy.Window, logger),
		UserHandler:    handler.NewUserHandler(service.NewUserService(users)),
		JWTManager:     jwtMgr,
		SessionSigner:  security.NewSessionIDSigner(cfg.SessionSigningSecret),
		CookieManager:  cookies,
		SessionTTL:     cfg.VerificationSessionTTL,
		CORSOrigins:    []string{"http://localhost"},
		APIRateLimiter: middleware.NewDistributedRateLimiter(limiter, cfg.APIRateLimitPerMin, time.Minute, middleware.FailOpen, "api").Middleware(),
		RouteLimiters:  routeLimiters,
		Readiness:      health.NewProbeRunner(time.Second, 0, append([]health.Checker{health.NewDBChecker(db)}, opts.readiness...)...),
		Logger:         logger,
	})
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	return &accountsServer{
		URL:      srv.URL,
		cfg:      cfg,
		db:       db,
		notifier: notifier,
		clock:    clock,
		users:    users,
		jwt:      jwtMgr,
	}
}

// newBrowser returns a client with its own cookie jar that reports redirects
// instead of following them.
func (s *accountsServer) newBrowser(t *testing.T) *http.Client {
	t.Helper()
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("cookie jar: %v", err)
	}
	return &http.Client{
		Jar:     jar,
		Timeout: 10 * time.Second,
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func (s *accountsServer) postForm(t *testing.T, client *http.Client, path string, form url.Values) (*http.Response, apiEnvelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodPost, s.URL+path, strings.NewReader(form.Encode()))
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return do(t, client, req)
}

func (s *accountsServer) get(t *testing.T, client *http.Client, path string) (*http.Response, apiEnvelope) {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, s.URL+path, nil)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	return do(t, client, req)
}

func do(t *testing.T, client *http.Client, req *http.Request) (*http.Response, apiEnvelope) {
	t.Helper()
	resp, err := client.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", req.Method, req.URL.Path, err)
	}
	defer func() { _ = resp.Body.Close() }()
	buf := new(bytes.Buffer)
	_, _ = buf.ReadFrom(resp.Body)
	var env apiEnvelope
	if buf.Len() > 0 {
		if err := json.Unmarshal(buf.Bytes(), &env); err != nil {
			t.Fatalf("decode %s %s body %q: %v", req.Method, req.URL.Path, buf.String(), err)
		}
	}
	return resp, env
}

func (s *accountsServer) register(t *testing.T, client *http.Client, email string) {
	t.Helper()
	resp, env := s.postForm(t, client, handler.PathRegister, url.Values{
		"email":            {email},
		"full_name":        {"Test Donor"},
		"password":         {validPassword},
		"confirm_password": {validPassword},
	})
	assertRedirect(t, resp, handler.PathVerifyOTP)
	if !env.Success {
		t.Fatalf("register rejected: %+v", env.Error)
	}
}

func (s *accountsServer) registerAndVerify(t *testing.T, client *http.Client, email string) {
	t.Helper()
	s.register(t, client, email)
	resp, _ := s.postForm(t, client, handler.PathVerifyOTP, url.Values{"otp": {s.notifier.LastCode(email)}})
	assertRedirect(t, resp, handler.PathLogin)
}

func (s *accountsServer) login(t *testing.T, client *http.Client, email, password string) (*http.Response, apiEnvelope) {
	t.Helper()
	return s.postForm(t, client, handler.PathLogin, url.Values{"username": {email}, "password": {password}})
}

func assertRedirect(t *testing.T, resp *http.Response, location string) {
	t.Helper()
	if resp.StatusCode != http.StatusSeeOther {
		t.Fatalf("expected 303 to %s, got %d", location, resp.StatusCode)
	}
	if got := resp.Header.Get("Location"); got != location {
		t.Fatalf("expected redirect to %q, got %q", location, got)
	}
}

func assertMessage(t *testing.T, msgs []session.Message, level, fragment string) {
	t.Helper()
	for _, m := range msgs {
		if m.Level == level && strings.Contains(m.Text, fragment) {
			return
		}
	}
	t.Fatalf("expected %s message containing %q, got %+v", level, fragment, msgs)
}

func assertErrorCode(t *testing.T, resp *http.Response, env apiEnvelope, status int, code string) {
	t.Helper()
	if resp.StatusCode != status {
		t.Fatalf("expected status %d, got %d", status, resp.StatusCode)
	}
	if env.Error == nil || env.Error.Code != code {
		t.Fatalf("expected error %s, got %+v", code, env.Error)
	}
}
