package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/session"

	"golang.org/x/sync/singleflight"
)

type RegisterInput struct {
	Email           string
	FullName        string
	Password        string
	ConfirmPassword string
}

type RegisterResult struct {
	User      *domain.User
	Delivered bool
}

// VerificationState is what the verification page needs to render.
type VerificationState struct {
	Email     string
	StartedAt time.Time
	ExpiresIn time.Duration
}

type ResendResult struct {
	Email           string
	CooldownSeconds int
	Delivered       bool
}

// RegistrationService drives an account from registration to verified. The
// in-progress email lives in the caller's session, never in the database.
type RegistrationService struct {
	cfg      *config.Config
	users    repository.UserRepository
	codes    repository.OneTimeCodeRepository
	issuer   *security.OTPIssuer
	sessions session.Store
	notifier Notifier
	logger   *slog.Logger

	resends singleflight.Group
}

func NewRegistrationService(
	cfg *config.Config,
	users repository.UserRepository,
	codes repository.OneTimeCodeRepository,
	issuer *security.OTPIssuer,
	sessions session.Store,
	notifier Notifier,
	logger *slog.Logger,
) *RegistrationService {
	return &RegistrationService{
		cfg:      cfg,
		users:    users,
		codes:    codes,
		issuer:   issuer,
		sessions: sessions,
		notifier: notifier,
		logger:   logger,
	}
}

func (s *RegistrationService) Register(ctx context.Context, sid string, in RegisterInput) (*RegisterResult, error) {
	in.Email = normalizeEmail(in.Email)
	in.FullName = strings.TrimSpace(in.FullName)
	if err := s.validateRegistration(in); err != nil {
		observability.RecordRegistrationEvent(ctx, "invalid")
		return nil, err
	}

	hash, err := security.HashPassword(in.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}
	user := &domain.User{Email: in.Email, FullName: in.FullName, PasswordHash: hash}
	if err := s.users.Create(user); err != nil {
		if errors.Is(err, repository.ErrEmailTaken) {
			verr := NewValidationError()
			verr.Add("email", "This email is already registered.")
			observability.RecordRegistrationEvent(ctx, "duplicate")
			return nil, verr
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	code, err := s.createCode(ctx, user, "register")
	if err != nil {
		return nil, err
	}
	if err := s.startSession(ctx, sid, user.Email); err != nil {
		return nil, err
	}
	observability.RecordRegistrationEvent(ctx, "created")
	observability.RecordVerificationSessionEvent(ctx, "started")
	s.logger.InfoContext(ctx, "account registered", "user_id", user.ID)

	return &RegisterResult{User: user, Delivered: s.deliverCode(ctx, user, code)}, nil
}

func (s *RegistrationService) validateRegistration(in RegisterInput) error {
	verr := NewValidationError()
	if in.Email == "" {
		verr.Add("email", "This field is required.")
	} else if _, err := mail.ParseAddress(in.Email); err != nil {
		verr.Add("email", "Enter a valid email address.")
	}
	if in.FullName == "" {
		verr.Add("full_name", "This field is required.")
	}
	if in.Password != in.ConfirmPassword {
		verr.Add("confirm_password", "Passwords do not match.")
	}
	if violations := security.PasswordPolicyViolations(in.Password); len(violations) > 0 {
		verr.Add("password", strings.Join(violations, " "))
	}
	if _, ok := verr.Fields["email"]; !ok {
		_, err := s.users.FindByEmail(in.Email)
		switch {
		case err == nil:
			verr.Add("email", "This email is already registered.")
		case !errors.Is(err, repository.ErrUserNotFound):
			return fmt.Errorf("find user: %w", err)
		}
	}
	if verr.Empty() {
		return nil
	}
	return verr
}

// VerifyPage checks that the caller holds a live verification session.
func (s *RegistrationService) VerifyPage(ctx context.Context, sid string) (*VerificationState, error) {
	email, ok, err := s.sessions.Get(ctx, sid, session.KeyVerificationEmail)
	if err != nil {
		return nil, fmt.Errorf("read verification session: %w", err)
	}
	if !ok || email == "" {
		return nil, ErrVerificationSessionMissing
	}

	now := s.issuer.Now()
	started, err := s.sessionTimestamp(ctx, sid)
	if err != nil {
		return nil, err
	}
	if started.IsZero() {
		started = now
		if err := s.sessions.Set(ctx, sid, session.KeyRegistrationTimestamp, formatTimestamp(now), s.cfg.VerificationSessionTTL); err != nil {
			return nil, fmt.Errorf("stamp verification session: %w", err)
		}
	}

	elapsed := now.Sub(started)
	if elapsed > s.cfg.VerificationPageWindow {
		if err := s.clearVerification(ctx, sid); err != nil {
			return nil, err
		}
		observability.RecordVerificationSessionEvent(ctx, "expired")
		return nil, ErrVerificationSessionExpired
	}
	return &VerificationState{Email: email, StartedAt: started, ExpiresIn: s.cfg.VerificationPageWindow - elapsed}, nil
}

func (s *RegistrationService) Verify(ctx context.Context, sid, candidate string) (*domain.User, error) {
	state, err := s.VerifyPage(ctx, sid)
	if err != nil {
		return nil, err
	}

	user, err := s.users.FindByEmail(state.Email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			if err := s.clearVerification(ctx, sid); err != nil {
				return nil, err
			}
			observability.RecordOTPVerification(ctx, "unknown_user")
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	code, err := s.codes.LatestUnused(user.ID)
	if err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			observability.RecordOTPVerification(ctx, "no_code")
			return nil, ErrNoActiveCode
		}
		return nil, fmt.Errorf("find latest code: %w", err)
	}

	if s.issuer.IsExpired(code.CreatedAt) {
		s.rejectCode(ctx, user, security.OTPReasonExpired)
		return nil, ErrInvalidCode
	}
	if !s.issuer.Verify(candidate, code.CodeHash, code.Salt, code.CreatedAt, code.IsUsed) {
		s.rejectCode(ctx, user, s.issuer.Check(candidate, code.CodeHash, code.Salt, code.CreatedAt, code.IsUsed))
		return nil, ErrInvalidCode
	}

	if err := s.codes.CompleteVerification(user.ID, code.ID); err != nil {
		if errors.Is(err, repository.ErrCodeNotFound) {
			s.rejectCode(ctx, user, security.OTPReasonUsed)
			return nil, ErrInvalidCode
		}
		return nil, fmt.Errorf("complete verification: %w", err)
	}
	user.IsActive = true
	if err := s.clearVerification(ctx, sid); err != nil {
		return nil, err
	}
	observability.RecordOTPVerification(ctx, security.OTPReasonOK)
	observability.RecordVerificationSessionEvent(ctx, "completed")
	s.logger.InfoContext(ctx, "account verified", "user_id", user.ID)
	return user, nil
}

func (s *RegistrationService) rejectCode(ctx context.Context, user *domain.User, reason string) {
	observability.RecordOTPVerification(ctx, reason)
	s.logger.InfoContext(ctx, "otp rejected", "user_id", user.ID, "reason", reason)
}

// Resend issues a fresh code. A non-empty email replaces whatever the session
// holds, so the flow can be entered from the login page.
func (s *RegistrationService) Resend(ctx context.Context, sid, email string) (*ResendResult, error) {
	if email = normalizeEmail(email); email != "" {
		if err := s.startSession(ctx, sid, email); err != nil {
			return nil, err
		}
		observability.RecordVerificationSessionEvent(ctx, "started")
	}

	email, ok, err := s.sessions.Get(ctx, sid, session.KeyVerificationEmail)
	if err != nil {
		return nil, fmt.Errorf("read verification session: %w", err)
	}
	if !ok || email == "" {
		return nil, ErrVerificationSessionMissing
	}
	started, err := s.sessionTimestamp(ctx, sid)
	if err != nil {
		return nil, err
	}
	if !started.IsZero() && s.issuer.Now().Sub(started) > s.cfg.VerificationSessionTTL {
		if err := s.clearVerification(ctx, sid); err != nil {
			return nil, err
		}
		observability.RecordVerificationSessionEvent(ctx, "expired")
		return nil, ErrVerificationSessionExpired
	}

	// Concurrent resends for one email share a single code issue. The shared
	// call must not depend on any one caller's context or session.
	v, err, _ := s.resends.Do(email, func() (any, error) {
		return s.issueResend(context.WithoutCancel(ctx), email)
	})
	if err != nil {
		if errors.Is(err, ErrUserNotFound) || errors.Is(err, ErrAlreadyVerified) {
			if cerr := s.clearVerification(ctx, sid); cerr != nil {
				return nil, cerr
			}
		}
		return nil, err
	}
	if err := s.sessions.Set(ctx, sid, session.KeyRegistrationTimestamp, formatTimestamp(s.issuer.Now()), s.cfg.VerificationSessionTTL); err != nil {
		return nil, fmt.Errorf("refresh verification session: %w", err)
	}
	observability.RecordVerificationSessionEvent(ctx, "refreshed")
	res := *v.(*ResendResult)
	return &res, nil
}

func (s *RegistrationService) issueResend(ctx context.Context, email string) (*ResendResult, error) {
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if user.IsActive {
		return nil, ErrAlreadyVerified
	}

	latest, err := s.codes.LatestUnused(user.ID)
	switch {
	case err == nil:
		age := s.issuer.Now().Sub(latest.CreatedAt)
		if !s.issuer.IsExpired(latest.CreatedAt) && age < s.cfg.OTPResendCooldown {
			remaining := s.cfg.OTPResendCooldown - age
			observability.RecordOTPResendCooldown(ctx, remaining)
			return nil, &CooldownError{Remaining: remaining}
		}
	case !errors.Is(err, repository.ErrCodeNotFound):
		return nil, fmt.Errorf("find latest code: %w", err)
	}

	code, err := s.createCode(ctx, user, "resend")
	if err != nil {
		return nil, err
	}
	return &ResendResult{
		Email:           user.Email,
		CooldownSeconds: ceilSeconds(s.cfg.OTPResendCooldown),
		Delivered:       s.deliverCode(ctx, user, code),
	}, nil
}

// StartVerificationForEmail points the caller's session at an account that
// still needs verification.
func (s *RegistrationService) StartVerificationForEmail(ctx context.Context, sid, email string) error {
	email = normalizeEmail(email)
	if email == "" {
		return ErrVerificationSessionMissing
	}
	if err := s.startSession(ctx, sid, email); err != nil {
		return err
	}
	observability.RecordVerificationSessionEvent(ctx, "started")
	return nil
}

// ForceVerify activates an account and closes its codes without a code check.
func (s *RegistrationService) ForceVerify(email string) (*domain.User, error) {
	user, err := s.users.FindByEmail(normalizeEmail(email))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if err := s.codes.CompleteVerification(user.ID, 0); err != nil {
		return nil, err
	}
	user.IsActive = true
	return user, nil
}

func (s *RegistrationService) createCode(ctx context.Context, user *domain.User, reason string) (string, error) {
	code, err := s.issuer.GenerateCode()
	if err != nil {
		return "", err
	}
	salt, err := s.issuer.GenerateSalt()
	if err != nil {
		return "", err
	}
	row := &domain.OneTimeCode{
		UserID:    user.ID,
		CodeHash:  s.issuer.HashCode(code, salt),
		Salt:      salt,
		CreatedAt: s.issuer.Now(),
	}
	if err := s.codes.Create(row); err != nil {
		return "", fmt.Errorf("store one-time code: %w", err)
	}
	observability.RecordOTPIssued(ctx, reason)
	return code, nil
}

// deliverCode reports whether the notifier accepted the code. Failures are
// logged and never roll back the stored code.
func (s *RegistrationService) deliverCode(ctx context.Context, user *domain.User, code string) bool {
	now := s.issuer.Now()
	err := s.notifier.SendVerificationCode(ctx, VerificationCodeNotification{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Code:      code,
		ExpiresAt: now.Add(s.issuer.TTL()),
		ExpiresIn: s.issuer.TTL(),
	})
	if err != nil {
		s.logger.WarnContext(ctx, "verification code delivery failed", "user_id", user.ID, "error", err)
		return false
	}
	return true
}

func (s *RegistrationService) startSession(ctx context.Context, sid, email string) error {
	if err := s.sessions.Set(ctx, sid, session.KeyVerificationEmail, email, s.cfg.VerificationSessionTTL); err != nil {
		return fmt.Errorf("start verification session: %w", err)
	}
	if err := s.sessions.Set(ctx, sid, session.KeyRegistrationTimestamp, formatTimestamp(s.issuer.Now()), s.cfg.VerificationSessionTTL); err != nil {
		return fmt.Errorf("start verification session: %w", err)
	}
	return nil
}

// sessionTimestamp returns the zero time when the stamp is absent or unreadable.
func (s *RegistrationService) sessionTimestamp(ctx context.Context, sid string) (time.Time, error) {
	raw, ok, err := s.sessions.Get(ctx, sid, session.KeyRegistrationTimestamp)
	if err != nil {
		return time.Time{}, fmt.Errorf("read verification timestamp: %w", err)
	}
	if !ok {
		return time.Time{}, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, nil
	}
	return ts, nil
}

func (s *RegistrationService) clearVerification(ctx context.Context, sid string) error {
	if err := s.sessions.Delete(ctx, sid, session.KeyVerificationEmail, session.KeyRegistrationTimestamp); err != nil {
		return fmt.Errorf("clear verification session: %w", err)
	}
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
