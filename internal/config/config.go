package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

const (
	RateLimitFailOpen   = "fail_open"
	RateLimitFailClosed = "fail_closed"

	SessionStoreMemory = "memory"
	SessionStoreRedis  = "redis"
)

type Config struct {
	Env      string
	HTTPPort string

	DatabaseURL string

	JWTIssuer            string
	JWTAudience          string
	JWTAccessSecret      string
	JWTAccessTTL         time.Duration
	SessionSigningSecret string
	SessionStoreBackend  string
	CookieDomain         string
	CookieSecure         bool
	CookieSameSite       string
	CORSAllowedOrigins   []string

	OTPTTL                 time.Duration
	OTPResendCooldown      time.Duration
	VerificationPageWindow time.Duration
	VerificationSessionTTL time.Duration
	LockoutThreshold       int
	LockoutWindow          time.Duration
	PasswordResetTokenTTL  time.Duration

	RateLimitLoginPerMin         int
	RateLimitRegisterPerMin      int
	RateLimitResendPerMin        int
	RateLimitVerifyPerMin        int
	RateLimitPasswordResetPerMin int
	APIRateLimitPerMin           int
	RateLimitRedisEnabled        bool
	RateLimitRedisPrefix         string

	RateLimitRedisOutagePolicyAPI           string
	RateLimitRedisOutagePolicyLogin         string
	RateLimitRedisOutagePolicyRegister      string
	RateLimitRedisOutagePolicyResend        string
	RateLimitRedisOutagePolicyVerify        string
	RateLimitRedisOutagePolicyPasswordReset string

	RedisAddr      string
	RedisPassword  string
	RedisDB        int
	RedisKeyPrefix string

	SMTPEnabled  bool
	SMTPHost     string
	SMTPPort     int
	SMTPUsername string
	SMTPPassword string
	SMTPFrom     string
	SiteName     string
	SiteDomain   string
	SiteProtocol string

	OTELServiceName           string
	OTELEnvironment           string
	OTELExporterOTLPEndpoint  string
	OTELExporterOTLPInsecure  bool
	OTELMetricsExportInterval time.Duration
	OTELTraceSamplingRatio    float64
	OTELMetricsEnabled        bool
	OTELTracingEnabled        bool
	OTELLogsEnabled           bool
	OTELLogLevel              string

	ReadinessProbeTimeout        time.Duration
	ReadinessProbeSMTP           bool
	ServerStartGracePeriod       time.Duration
	ShutdownTimeout              time.Duration
	ShutdownHTTPDrainTimeout     time.Duration
	ShutdownObservabilityTimeout time.Duration
}

func Load() (*Config, error) {
	env := getEnv("APP_ENV", "development")

	cfg := &Config{
		Env:                  env,
		HTTPPort:             getEnv("HTTP_PORT", "8080"),
		DatabaseURL:          os.Getenv("DATABASE_URL"),
		JWTIssuer:            getEnv("JWT_ISSUER", "fundraising-accounts-service"),
		JWTAudience:          getEnv("JWT_AUDIENCE", "fundraising-platform"),
		JWTAccessSecret:      os.Getenv("JWT_ACCESS_SECRET"),
		SessionSigningSecret: os.Getenv("SESSION_SIGNING_SECRET"),
		SessionStoreBackend:  strings.ToLower(getEnv("SESSION_STORE_BACKEND", SessionStoreMemory)),
		CookieDomain:         os.Getenv("COOKIE_DOMAIN"),
		CookieSecure:         getEnvBool("COOKIE_SECURE", true),
		CookieSameSite:       strings.ToLower(getEnv("COOKIE_SAMESITE", "lax")),
		CORSAllowedOrigins:   splitCSV(getEnv("CORS_ALLOWED_ORIGINS", "http://localhost:3000")),

		LockoutThreshold: getEnvInt("LOCKOUT_THRESHOLD", 5),

		RateLimitLoginPerMin:         getEnvInt("RATE_LIMIT_LOGIN_PER_MIN", 10),
		RateLimitRegisterPerMin:      getEnvInt("RATE_LIMIT_REGISTER_PER_MIN", 5),
		RateLimitResendPerMin:        getEnvInt("RATE_LIMIT_RESEND_PER_MIN", 3),
		RateLimitVerifyPerMin:        getEnvInt("RATE_LIMIT_VERIFY_PER_MIN", 10),
		RateLimitPasswordResetPerMin: getEnvInt("RATE_LIMIT_PASSWORD_RESET_PER_MIN", 5),
		APIRateLimitPerMin:           getEnvInt("RATE_LIMIT_API_PER_MIN", 120),
		RateLimitRedisEnabled:        getEnvBool("RATE_LIMIT_REDIS_ENABLED", false),
		RateLimitRedisPrefix:         getEnv("RATE_LIMIT_REDIS_PREFIX", "rl"),

		RateLimitRedisOutagePolicyAPI:           strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_API", RateLimitFailOpen)),
		RateLimitRedisOutagePolicyLogin:         strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_LOGIN", RateLimitFailClosed)),
		RateLimitRedisOutagePolicyRegister:      strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_REGISTER", RateLimitFailClosed)),
		RateLimitRedisOutagePolicyResend:        strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_RESEND", RateLimitFailClosed)),
		RateLimitRedisOutagePolicyVerify:        strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_VERIFY", RateLimitFailClosed)),
		RateLimitRedisOutagePolicyPasswordReset: strings.ToLower(getEnv("RATE_LIMIT_REDIS_OUTAGE_POLICY_PASSWORD_RESET", RateLimitFailClosed)),

		RedisAddr:      os.Getenv("REDIS_ADDR"),
		RedisPassword:  os.Getenv("REDIS_PASSWORD"),
		RedisDB:        getEnvInt("REDIS_DB", 0),
		RedisKeyPrefix: getEnv("REDIS_KEY_PREFIX", "fundraising"),

		SMTPEnabled:  getEnvBool("SMTP_ENABLED", false),
		SMTPHost:     os.Getenv("SMTP_HOST"),
		SMTPPort:     getEnvInt("SMTP_PORT", 587),
		SMTPUsername: os.Getenv("SMTP_USERNAME"),
		SMTPPassword: os.Getenv("SMTP_PASSWORD"),
		SMTPFrom:     os.Getenv("SMTP_FROM"),
		SiteName:     getEnv("SITE_NAME", "Fundraising Platform"),
		SiteDomain:   getEnv("SITE_DOMAIN", "localhost:8080"),
		SiteProtocol: strings.ToLower(getEnv("SITE_PROTOCOL", "http")),

		OTELServiceName:          getEnv("OTEL_SERVICE_NAME", "fundraising-accounts-service"),
		OTELEnvironment:          getEnv("OTEL_ENVIRONMENT", env),
		OTELExporterOTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELExporterOTLPInsecure: getEnvBool("OTEL_EXPORTER_OTLP_INSECURE", true),
		OTELTraceSamplingRatio:   getEnvFloat("OTEL_TRACE_SAMPLING_RATIO", 1.0),
		OTELMetricsEnabled:       getEnvBool("OTEL_METRICS_ENABLED", true),
		OTELTracingEnabled:       getEnvBool("OTEL_TRACING_ENABLED", true),
		OTELLogsEnabled:          getEnvBool("OTEL_LOGS_ENABLED", true),
		OTELLogLevel:             strings.ToLower(getEnv("OTEL_LOG_LEVEL", "info")),
		ReadinessProbeSMTP:       getEnvBool("READINESS_PROBE_SMTP", false),
	}

	durations := []struct {
		key    string
		def    string
		target *time.Duration
	}{
		{"JWT_ACCESS_TTL", "15m", &cfg.JWTAccessTTL},
		{"OTP_TTL", "300s", &cfg.OTPTTL},
		{"OTP_RESEND_COOLDOWN", "60s", &cfg.OTPResendCooldown},
		{"VERIFICATION_PAGE_WINDOW", "5m", &cfg.VerificationPageWindow},
		{"VERIFICATION_SESSION_TTL", "1h", &cfg.VerificationSessionTTL},
		{"LOCKOUT_WINDOW", "300s", &cfg.LockoutWindow},
		{"PASSWORD_RESET_TOKEN_TTL", "1h", &cfg.PasswordResetTokenTTL},
		{"OTEL_METRICS_EXPORT_INTERVAL", "10s", &cfg.OTELMetricsExportInterval},
		{"READINESS_PROBE_TIMEOUT", "1s", &cfg.ReadinessProbeTimeout},
		{"SERVER_START_GRACE_PERIOD", "2s", &cfg.ServerStartGracePeriod},
		{"SHUTDOWN_TIMEOUT", "20s", &cfg.ShutdownTimeout},
		{"SHUTDOWN_HTTP_DRAIN_TIMEOUT", "10s", &cfg.ShutdownHTTPDrainTimeout},
		{"SHUTDOWN_OBSERVABILITY_TIMEOUT", "8s", &cfg.ShutdownObservabilityTimeout},
	}
	for _, d := range durations {
		v, err := time.ParseDuration(getEnv(d.key, d.def))
		if err != nil {
			return nil, fmt.Errorf("parse %s: %w", d.key, err)
		}
		*d.target = v
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	var errs []string
	if c.DatabaseURL == "" {
		errs = append(errs, "DATABASE_URL is required")
	}
	if len(c.JWTAccessSecret) < 32 {
		errs = append(errs, "JWT_ACCESS_SECRET must be at least 32 chars")
	}
	if len(c.SessionSigningSecret) < 16 {
		errs = append(errs, "SESSION_SIGNING_SECRET must be at least 16 chars")
	}
	if c.JWTAccessSecret != "" && c.JWTAccessSecret == c.SessionSigningSecret {
		errs = append(errs, "JWT_ACCESS_SECRET and SESSION_SIGNING_SECRET must differ")
	}
	if c.JWTAccessTTL <= 0 || c.JWTAccessTTL > time.Hour {
		errs = append(errs, "JWT_ACCESS_TTL must be between 1s and 1h")
	}
	switch c.SessionStoreBackend {
	case SessionStoreMemory:
	case SessionStoreRedis:
		if c.RedisAddr == "" {
			errs = append(errs, "REDIS_ADDR is required when SESSION_STORE_BACKEND=redis")
		}
	default:
		errs = append(errs, "SESSION_STORE_BACKEND must be one of memory, redis")
	}
	if c.OTPTTL <= 0 {
		errs = append(errs, "OTP_TTL must be > 0")
	}
	if c.OTPResendCooldown < 0 || c.OTPResendCooldown >= c.OTPTTL {
		errs = append(errs, "OTP_RESEND_COOLDOWN must be >= 0 and shorter than OTP_TTL")
	}
	if c.VerificationPageWindow <= 0 {
		errs = append(errs, "VERIFICATION_PAGE_WINDOW must be > 0")
	}
	if c.VerificationSessionTTL < c.VerificationPageWindow {
		errs = append(errs, "VERIFICATION_SESSION_TTL must be >= VERIFICATION_PAGE_WINDOW")
	}
	if c.LockoutThreshold <= 0 {
		errs = append(errs, "LOCKOUT_THRESHOLD must be > 0")
	}
	if c.LockoutWindow <= 0 {
		errs = append(errs, "LOCKOUT_WINDOW must be > 0")
	}
	if c.PasswordResetTokenTTL <= 0 || c.PasswordResetTokenTTL > 24*time.Hour {
		errs = append(errs, "PASSWORD_RESET_TOKEN_TTL must be between 1s and 24h")
	}
	for _, limit := range []struct {
		key string
		v   int
	}{
		{"RATE_LIMIT_LOGIN_PER_MIN", c.RateLimitLoginPerMin},
		{"RATE_LIMIT_REGISTER_PER_MIN", c.RateLimitRegisterPerMin},
		{"RATE_LIMIT_RESEND_PER_MIN", c.RateLimitResendPerMin},
		{"RATE_LIMIT_VERIFY_PER_MIN", c.RateLimitVerifyPerMin},
		{"RATE_LIMIT_PASSWORD_RESET_PER_MIN", c.RateLimitPasswordResetPerMin},
		{"RATE_LIMIT_API_PER_MIN", c.APIRateLimitPerMin},
	} {
		if limit.v <= 0 {
			errs = append(errs, limit.key+" must be > 0")
		}
	}
	if c.RateLimitRedisEnabled && c.RedisAddr == "" {
		errs = append(errs, "REDIS_ADDR is required when RATE_LIMIT_REDIS_ENABLED=true")
	}
	for _, policy := range []struct {
		key string
		v   string
	}{
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_API", c.RateLimitRedisOutagePolicyAPI},
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_LOGIN", c.RateLimitRedisOutagePolicyLogin},
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_REGISTER", c.RateLimitRedisOutagePolicyRegister},
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_RESEND", c.RateLimitRedisOutagePolicyResend},
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_VERIFY", c.RateLimitRedisOutagePolicyVerify},
		{"RATE_LIMIT_REDIS_OUTAGE_POLICY_PASSWORD_RESET", c.RateLimitRedisOutagePolicyPasswordReset},
	} {
		if policy.v != "" && policy.v != RateLimitFailOpen && policy.v != RateLimitFailClosed {
			errs = append(errs, policy.key+" must be one of fail_open, fail_closed")
		}
	}
	if c.SMTPEnabled {
		if c.SMTPHost == "" {
			errs = append(errs, "SMTP_HOST is required when SMTP_ENABLED=true")
		}
		if c.SMTPPort <= 0 || c.SMTPPort > 65535 {
			errs = append(errs, "SMTP_PORT must be between 1 and 65535")
		}
		if c.SMTPFrom == "" {
			errs = append(errs, "SMTP_FROM is required when SMTP_ENABLED=true")
		}
	}
	if c.SiteProtocol != "" && c.SiteProtocol != "http" && c.SiteProtocol != "https" {
		errs = append(errs, "SITE_PROTOCOL must be http or https")
	}
	if c.CookieSameSite == "none" && !c.CookieSecure && !isLocalLikeEnv(c.Env) {
		errs = append(errs, "COOKIE_SAMESITE=none requires COOKIE_SECURE=true")
	}
	if !isLocalLikeEnv(c.Env) {
		if !c.CookieSecure {
			errs = append(errs, "COOKIE_SECURE must be true outside local environments")
		}
		if !c.SMTPEnabled {
			errs = append(errs, "SMTP_ENABLED must be true outside local environments")
		}
		if c.SiteProtocol != "https" {
			errs = append(errs, "SITE_PROTOCOL must be https outside local environments")
		}
	}
	if (c.OTELMetricsEnabled || c.OTELTracingEnabled || c.OTELLogsEnabled) && c.OTELExporterOTLPEndpoint == "" {
		errs = append(errs, "OTEL_EXPORTER_OTLP_ENDPOINT is required when OTel is enabled")
	}
	if c.OTELTraceSamplingRatio < 0 || c.OTELTraceSamplingRatio > 1 {
		errs = append(errs, "OTEL_TRACE_SAMPLING_RATIO must be between 0 and 1")
	}
	if c.OTELMetricsExportInterval <= 0 {
		errs = append(errs, "OTEL_METRICS_EXPORT_INTERVAL must be > 0")
	}
	if !isValidLogLevel(c.OTELLogLevel) {
		errs = append(errs, "OTEL_LOG_LEVEL must be one of debug, info, warn, error")
	}
	if c.ReadinessProbeTimeout <= 0 {
		errs = append(errs, "READINESS_PROBE_TIMEOUT must be > 0")
	}
	if c.ShutdownTimeout <= 0 {
		errs = append(errs, "SHUTDOWN_TIMEOUT must be > 0")
	}
	if c.ShutdownHTTPDrainTimeout <= 0 || c.ShutdownHTTPDrainTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_HTTP_DRAIN_TIMEOUT must be > 0 and <= SHUTDOWN_TIMEOUT")
	}
	if c.ShutdownObservabilityTimeout <= 0 || c.ShutdownObservabilityTimeout > c.ShutdownTimeout {
		errs = append(errs, "SHUTDOWN_OBSERVABILITY_TIMEOUT must be > 0 and <= SHUTDOWN_TIMEOUT")
	}
	if len(errs) > 0 {
		return errors.New(strings.Join(errs, "; "))
	}
	return nil
}

func (c *Config) IsDevelopment() bool { return isLocalLikeEnv(c.Env) }

// SiteURL joins the configured protocol and domain with path.
func (c *Config) SiteURL(path string) string {
	proto := c.SiteProtocol
	if proto == "" {
		proto = "http"
	}
	return proto + "://" + strings.TrimSuffix(c.SiteDomain, "/") + "/" + strings.TrimPrefix(path, "/")
}

func isLocalLikeEnv(env string) bool {
	switch strings.ToLower(strings.TrimSpace(env)) {
	case "development", "dev", "local", "test":
		return true
	default:
		return false
	}
}

func isValidLogLevel(v string) bool {
	switch strings.ToLower(v) {
	case "debug", "info", "warn", "error":
		return true
	default:
		return false
	}
}

func getEnv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getEnvBool(key string, def bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getEnvInt(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return n
}

func getEnvFloat(key string, def float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return def
	}
	return f
}

func splitCSV(v string) []string {
	parts := strings.Split(v, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		trim := strings.TrimSpace(p)
		if trim != "" {
			out = append(out, trim)
		}
	}
	return out
}
