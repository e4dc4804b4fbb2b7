package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"

	"go.uber.org/mock/gomock"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const testPassword = "Str0ng!Pass"

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig() *config.Config {
	return &config.Config{
		Env:                    "test",
		OTPTTL:                 300 * time.Second,
		OTPResendCooldown:      60 * time.Second,
		VerificationPageWindow: 5 * time.Minute,
		VerificationSessionTTL: time.Hour,
		LockoutThreshold:       5,
		LockoutWindow:          300 * time.Second,
		PasswordResetTokenTTL:  time.Hour,
		SiteProtocol:           "https",
		SiteDomain:             "accounts.example.org",
	}
}

func newServiceDBForTest(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := fmt.Sprintf("file:svc_%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	// Shared-cache sqlite reports table locks under concurrent writers.
	sqlDB.SetMaxOpenConns(1)
	if err := db.AutoMigrate(&domain.User{}, &domain.OneTimeCode{}, &domain.PasswordResetToken{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

// accountFixture wires the workflows over sqlite and the memory session store.
// Codes and reset links sent through the mock notifier are captured.
type accountFixture struct {
	t        *testing.T
	cfg      *config.Config
	clock    *fakeClock
	users    repository.UserRepository
	codes    repository.OneTimeCodeRepository
	tokens   repository.PasswordResetTokenRepository
	sessions *session.MemoryStore
	notifier *MockNotifier
	reg      *RegistrationService
	reset    *PasswordResetService
	gate     *AuthGate

	mu         sync.Mutex
	sentCodes  []string
	resetLinks []string
}

func newAccountFixture(t *testing.T) *accountFixture {
	t.Helper()
	cfg := testConfig()
	clock := newFakeClock()
	db := newServiceDBForTest(t)
	ctrl := gomock.NewController(t)

	fx := &accountFixture{
		t:        t,
		cfg:      cfg,
		clock:    clock,
		users:    repository.NewUserRepository(db),
		codes:    repository.NewOneTimeCodeRepository(db),
		tokens:   repository.NewPasswordResetTokenRepository(db),
		sessions: session.NewMemoryStore(clock.Now),
		notifier: NewMockNotifier(ctrl),
	}
	issuer := security.NewOTPIssuer(security.OTPConfig{TTL: cfg.OTPTTL}, clock)
	fx.reg = NewRegistrationService(cfg, fx.users, fx.codes, issuer, fx.sessions, fx.notifier, discardLogger())
	fx.reset = NewPasswordResetService(cfg, fx.users, fx.tokens, fx.reg, fx.notifier, clock, discardLogger())
	fx.gate = NewAuthGate(fx.users, security.NewLockoutPolicy(cfg.LockoutThreshold, cfg.LockoutWindow), clock, discardLogger())
	return fx
}

// expectCodes lets the notifier accept any number of verification codes.
func (fx *accountFixture) expectCodes() {
	fx.notifier.EXPECT().SendVerificationCode(gomock.Any(), gomock.Any()).AnyTimes().
		DoAndReturn(func(_ any, n VerificationCodeNotification) error {
			fx.mu.Lock()
			fx.sentCodes = append(fx.sentCodes, n.Code)
			fx.mu.Unlock()
			return nil
		})
}

func (fx *accountFixture) expectResetLinks() {
	fx.notifier.EXPECT().SendPasswordReset(gomock.Any(), gomock.Any()).AnyTimes().
		DoAndReturn(func(_ any, n PasswordResetNotification) error {
			fx.mu.Lock()
			fx.resetLinks = append(fx.resetLinks, n.Link)
			fx.mu.Unlock()
			return nil
		})
}

func (fx *accountFixture) lastCode() string {
	fx.t.Helper()
	fx.mu.Lock()
	defer fx.mu.Unlock()
	if len(fx.sentCodes) == 0 {
		fx.t.Fatal("no verification code was sent")
	}
	return fx.sentCodes[len(fx.sentCodes)-1]
}

func (fx *accountFixture) register(sid, email string) *domain.User {
	fx.t.Helper()
	res, err := fx.reg.Register(context.Background(), sid, RegisterInput{
		Email:           email,
		FullName:        "Test Donor",
		Password:        testPassword,
		ConfirmPassword: testPassword,
	})
	if err != nil {
		fx.t.Fatalf("register %s: %v", email, err)
	}
	return res.User
}

func (fx *accountFixture) codeCount(userID uint) int64 {
	fx.t.Helper()
	n, err := fx.codes.CountByUser(userID)
	if err != nil {
		fx.t.Fatalf("count codes: %v", err)
	}
	return n
}

// wrongCode returns a six digit code different from code.
func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}
