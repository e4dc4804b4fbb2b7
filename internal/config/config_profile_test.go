package config

import (
	"strings"
	"testing"
	"time"
)

func validDevelopmentConfig() *Config {
	return &Config{
		Env:                          "development",
		DatabaseURL:                  "postgres://x",
		JWTAccessSecret:              "abcdefghijklmnopqrstuvwxyz123456",
		JWTAccessTTL:                 15 * time.Minute,
		SessionSigningSecret:         "session-secret-123456",
		SessionStoreBackend:          SessionStoreMemory,
		CookieSecure:                 false,
		CookieSameSite:               "lax",
		OTPTTL:                       300 * time.Second,
		OTPResendCooldown:            60 * time.Second,
		VerificationPageWindow:       5 * time.Minute,
		VerificationSessionTTL:       time.Hour,
		LockoutThreshold:             5,
		LockoutWindow:                300 * time.Second,
		PasswordResetTokenTTL:        time.Hour,
		RateLimitLoginPerMin:         10,
		RateLimitRegisterPerMin:      5,
		RateLimitResendPerMin:        3,
		RateLimitVerifyPerMin:        10,
		RateLimitPasswordResetPerMin: 5,
		APIRateLimitPerMin:           120,
		SiteProtocol:                 "http",
		OTELTraceSamplingRatio:       1.0,
		OTELMetricsExportInterval:    10 * time.Second,
		OTELLogLevel:                 "info",
		ReadinessProbeTimeout:        1 * time.Second,
		ShutdownTimeout:              20 * time.Second,
		ShutdownHTTPDrainTimeout:     10 * time.Second,
		ShutdownObservabilityTimeout: 8 * time.Second,
	}
}

func TestValidateDevelopmentProfileAllowsRelaxedSettings(t *testing.T) {
	if err := validDevelopmentConfig().Validate(); err != nil {
		t.Fatalf("expected relaxed dev validation to pass: %v", err)
	}
}

func TestValidateProdProfileStrictRules(t *testing.T) {
	cfg := validDevelopmentConfig()
	cfg.Env = "production"
	cfg.CookieSameSite = "none"

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected strict prod validation errors")
	}
	for _, want := range []string{
		"COOKIE_SAMESITE=none requires COOKIE_SECURE=true",
		"COOKIE_SECURE must be true",
		"SMTP_ENABLED must be true",
		"SITE_PROTOCOL must be https",
	} {
		if !strings.Contains(err.Error(), want) {
			t.Fatalf("expected %q in %q", want, err.Error())
		}
	}
}

func TestValidateProdProfilePassesWhenHardened(t *testing.T) {
	cfg := validDevelopmentConfig()
	cfg.Env = "production"
	cfg.CookieSecure = true
	cfg.SiteProtocol = "https"
	cfg.SMTPEnabled = true
	cfg.SMTPHost = "smtp.example.com"
	cfg.SMTPPort = 587
	cfg.SMTPFrom = "noreply@example.com"

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected hardened prod config to pass: %v", err)
	}
}

func TestValidateAccountTimers(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{
			name:   "cooldown longer than otp ttl",
			mutate: func(c *Config) { c.OTPResendCooldown = 10 * time.Minute },
			want:   "OTP_RESEND_COOLDOWN",
		},
		{
			name:   "session ttl shorter than page window",
			mutate: func(c *Config) { c.VerificationSessionTTL = time.Minute },
			want:   "VERIFICATION_SESSION_TTL",
		},
		{
			name:   "zero lockout threshold",
			mutate: func(c *Config) { c.LockoutThreshold = 0 },
			want:   "LOCKOUT_THRESHOLD",
		},
		{
			name:   "redis session store without addr",
			mutate: func(c *Config) { c.SessionStoreBackend = SessionStoreRedis },
			want:   "REDIS_ADDR is required when SESSION_STORE_BACKEND=redis",
		},
		{
			name:   "unknown outage policy",
			mutate: func(c *Config) { c.RateLimitRedisOutagePolicyLogin = "maybe" },
			want:   "RATE_LIMIT_REDIS_OUTAGE_POLICY_LOGIN",
		},
		{
			name:   "resend limit zero",
			mutate: func(c *Config) { c.RateLimitResendPerMin = 0 },
			want:   "RATE_LIMIT_RESEND_PER_MIN must be > 0",
		},
		{
			name:   "verify limit zero",
			mutate: func(c *Config) { c.RateLimitVerifyPerMin = 0 },
			want:   "RATE_LIMIT_VERIFY_PER_MIN must be > 0",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validDevelopmentConfig()
			tc.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tc.want) {
				t.Fatalf("expected error containing %q, got %v", tc.want, err)
			}
		})
	}
}

func TestLoadReadsDurationsAndDefaults(t *testing.T) {
	t.Setenv("DATABASE_URL", "postgres://x")
	t.Setenv("JWT_ACCESS_SECRET", "abcdefghijklmnopqrstuvwxyz123456")
	t.Setenv("SESSION_SIGNING_SECRET", "session-secret-123456")
	t.Setenv("OTP_TTL", "2m")
	t.Setenv("OTP_RESEND_COOLDOWN", "15s")
	t.Setenv("LOCKOUT_THRESHOLD", "3")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.OTPTTL != 2*time.Minute || cfg.OTPResendCooldown != 15*time.Second || cfg.LockoutThreshold != 3 {
		t.Fatalf("unexpected overrides: ttl=%s cooldown=%s threshold=%d", cfg.OTPTTL, cfg.OTPResendCooldown, cfg.LockoutThreshold)
	}
	if cfg.VerificationPageWindow != 5*time.Minute || cfg.VerificationSessionTTL != time.Hour || cfg.LockoutWindow != 300*time.Second {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
	if cfg.RateLimitLoginPerMin != 10 || cfg.RateLimitRegisterPerMin != 5 || cfg.RateLimitResendPerMin != 3 || cfg.RateLimitVerifyPerMin != 10 {
		t.Fatalf("unexpected rate limit defaults: %+v", cfg)
	}
	if cfg.SiteName != "Fundraising Platform" {
		t.Fatalf("unexpected site name %q", cfg.SiteName)
	}
	if got := cfg.SiteURL("/password-reset-confirm/"); got != "http://localhost:8080/password-reset-confirm/" {
		t.Fatalf("unexpected site url %q", got)
	}
}

func TestLoadRejectsMalformedDuration(t *testing.T) {
	t.Setenv("OTP_TTL", "five minutes")
	if _, err := Load(); err == nil || !strings.Contains(err.Error(), "parse OTP_TTL") {
		t.Fatalf("expected OTP_TTL parse error, got %v", err)
	}
}
