package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/observability"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

// AuthGate checks credentials against the lockout policy and keeps the
// failure counters on the user row current.
type AuthGate struct {
	users  repository.UserRepository
	policy security.LockoutPolicy
	clock  security.Clock
	logger *slog.Logger
}

func NewAuthGate(users repository.UserRepository, policy security.LockoutPolicy, clock security.Clock, logger *slog.Logger) *AuthGate {
	if clock == nil {
		clock = security.SystemClock{}
	}
	return &AuthGate{users: users, policy: policy, clock: clock, logger: logger}
}

func (g *AuthGate) Policy() security.LockoutPolicy { return g.policy }

func (g *AuthGate) Authenticate(ctx context.Context, email, password string) (*domain.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	user, err := g.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			security.VerifyPasswordDummy(password)
			observability.RecordAuthLogin(ctx, "unknown_account")
			return nil, ErrAccountNotFound
		}
		return nil, fmt.Errorf("find user: %w", err)
	}

	now := g.clock.Now()
	decision := g.policy.Evaluate(user.FailedLoginAttempts, user.LastFailedLogin, now)
	if decision.Locked {
		observability.RecordAuthLogin(ctx, "locked")
		observability.RecordAccountLockoutEvent(ctx, "blocked")
		observability.RecordAccountLockoutRemaining(ctx, decision.Remaining)
		g.logger.InfoContext(ctx, "login blocked by lockout",
			"user_id", user.ID,
			"failed_attempts", user.FailedLoginAttempts,
			"retry_after_seconds", ceilSeconds(decision.Remaining),
		)
		return nil, &AuthFailure{Reason: ErrAccountLocked, RetryAfter: decision.Remaining}
	}
	if decision.Reset {
		if err := g.writeCounters(user, 0, nil); err != nil {
			return nil, err
		}
		observability.RecordAccountLockoutEvent(ctx, "window_reset")
	}

	if !user.IsActive {
		observability.RecordAuthLogin(ctx, "unverified")
		return nil, ErrAccountUnverified
	}

	ok, err := security.VerifyPassword(user.PasswordHash, password)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return nil, g.recordFailure(ctx, user, now)
	}

	if user.FailedLoginAttempts != 0 || user.LastFailedLogin != nil {
		if err := g.writeCounters(user, 0, nil); err != nil {
			return nil, err
		}
		observability.RecordAccountLockoutEvent(ctx, "success_reset")
	}
	observability.RecordAuthLogin(ctx, "success")
	return user, nil
}

func (g *AuthGate) recordFailure(ctx context.Context, user *domain.User, now time.Time) error {
	failed := user.FailedLoginAttempts + 1
	last := now
	if err := g.writeCounters(user, failed, &last); err != nil {
		return err
	}
	observability.RecordAuthLogin(ctx, "invalid_password")

	if failed >= g.policy.Threshold {
		observability.RecordAccountLockoutEvent(ctx, "triggered")
		g.logger.WarnContext(ctx, "account locked after repeated failures",
			"user_id", user.ID,
			"failed_attempts", failed,
			"window_seconds", int(g.policy.Window.Seconds()),
		)
		return &AuthFailure{Reason: ErrAccountLocked, RetryAfter: g.policy.Window, Triggered: true}
	}
	return &AuthFailure{Reason: ErrInvalidPassword, RemainingAttempts: g.policy.RemainingAttempts(failed)}
}

func (g *AuthGate) writeCounters(user *domain.User, failed int, last *time.Time) error {
	if err := g.users.UpdateLoginCounters(user.ID, failed, last); err != nil {
		return fmt.Errorf("update login counters: %w", err)
	}
	user.FailedLoginAttempts = failed
	user.LastFailedLogin = last
	return nil
}

// Unlock clears the failure counters for an account.
func (g *AuthGate) Unlock(email string) (*domain.User, error) {
	user, err := g.users.FindByEmail(email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, ErrAccountNotFound
		}
		return nil, err
	}
	if err := g.writeCounters(user, 0, nil); err != nil {
		return nil, err
	}
	return user, nil
}
