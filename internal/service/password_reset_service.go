package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/config"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

const resetTokenBytes = 32

type ResetRequestResult struct {
	// RequiresVerification is set when the account exists but was never
	// verified; the session now points at the verification flow.
	RequiresVerification bool
	Delivered            bool
}

type PasswordResetService struct {
	cfg          *config.Config
	users        repository.UserRepository
	tokens       repository.PasswordResetTokenRepository
	registration *RegistrationService
	notifier     Notifier
	clock        security.Clock
	logger       *slog.Logger
}

func NewPasswordResetService(
	cfg *config.Config,
	users repository.UserRepository,
	tokens repository.PasswordResetTokenRepository,
	registration *RegistrationService,
	notifier Notifier,
	clock security.Clock,
	logger *slog.Logger,
) *PasswordResetService {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return &PasswordResetService{
		cfg:          cfg,
		users:        users,
		tokens:       tokens,
		registration: registration,
		notifier:     notifier,
		clock:        clock,
		logger:       logger,
	}
}

// Request never reveals whether an address is registered: unknown emails get
// the same accepted result as known ones.
func (s *PasswordResetService) Request(ctx context.Context, sid, email string) (*ResetRequestResult, error) {
	email = normalizeEmail(email)
	if email == "" {
		verr := NewValidationError()
		verr.Add("email", "This field is required.")
		return nil, verr
	}
	user, err := s.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			observability.RecordPasswordResetEvent(ctx, "request", "unknown_account")
			return &ResetRequestResult{}, nil
		}
		return nil, fmt.Errorf("find user: %w", err)
	}
	if !user.IsActive {
		if err := s.registration.StartVerificationForEmail(ctx, sid, user.Email); err != nil {
			return nil, err
		}
		observability.RecordPasswordResetEvent(ctx, "request", "unverified")
		s.logger.InfoContext(ctx, "password reset requested for unverified account", "user_id", user.ID)
		return &ResetRequestResult{RequiresVerification: true}, nil
	}

	now := s.clock.Now()
	if err := s.tokens.InvalidateActiveByUser(user.ID, now); err != nil {
		return nil, fmt.Errorf("invalidate reset tokens: %w", err)
	}
	raw, err := security.NewRandomString(resetTokenBytes)
	if err != nil {
		return nil, fmt.Errorf("generate reset token: %w", err)
	}
	expiresAt := now.Add(s.cfg.PasswordResetTokenTTL)
	if err := s.tokens.Create(&domain.PasswordResetToken{
		UserID:    user.ID,
		TokenHash: security.HashToken(raw),
		ExpiresAt: expiresAt,
	}); err != nil {
		return nil, fmt.Errorf("store reset token: %w", err)
	}

	err = s.notifier.SendPasswordReset(ctx, PasswordResetNotification{
		UserID:    user.ID,
		Email:     user.Email,
		FullName:  user.FullName,
		Link:      s.resetLink(raw),
		ExpiresAt: expiresAt,
	})
	if err != nil {
		s.logger.WarnContext(ctx, "password reset delivery failed", "user_id", user.ID, "error", err)
		observability.RecordPasswordResetEvent(ctx, "request", "delivery_failed")
		return &ResetRequestResult{}, nil
	}
	observability.RecordPasswordResetEvent(ctx, "request", "accepted")
	return &ResetRequestResult{Delivered: true}, nil
}

func (s *PasswordResetService) Confirm(ctx context.Context, token, newPassword, confirmPassword string) error {
	verr := NewValidationError()
	if newPassword != confirmPassword {
		verr.Add("confirm_password", "Passwords do not match.")
	}
	if violations := security.PasswordPolicyViolations(newPassword); len(violations) > 0 {
		verr.Add("new_password", strings.Join(violations, " "))
	}
	if !verr.Empty() {
		observability.RecordPasswordResetEvent(ctx, "confirm", "invalid")
		return verr
	}

	token = strings.TrimSpace(token)
	if token == "" {
		observability.RecordPasswordResetEvent(ctx, "confirm", "invalid_token")
		return ErrInvalidResetToken
	}
	now := s.clock.Now()
	record, err := s.tokens.FindActiveByHash(security.HashToken(token), now)
	if err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			observability.RecordPasswordResetEvent(ctx, "confirm", "invalid_token")
			return ErrInvalidResetToken
		}
		return fmt.Errorf("find reset token: %w", err)
	}

	hash, err := security.HashPassword(newPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}
	if err := s.tokens.Redeem(record.ID, record.UserID, hash, now); err != nil {
		if errors.Is(err, repository.ErrResetTokenNotFound) {
			observability.RecordPasswordResetEvent(ctx, "confirm", "invalid_token")
			return ErrInvalidResetToken
		}
		return fmt.Errorf("redeem reset token: %w", err)
	}
	observability.RecordPasswordResetEvent(ctx, "confirm", "success")
	s.logger.InfoContext(ctx, "password reset completed", "user_id", record.UserID)
	return nil
}

func (s *PasswordResetService) resetLink(raw string) string {
	return s.cfg.SiteURL("/password-reset-confirm/") + "?token=" + url.QueryEscape(raw)
}
