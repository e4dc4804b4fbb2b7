package service

import (
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"
)

var (
	ErrValidation                 = errors.New("validation failed")
	ErrAccountNotFound            = errors.New("no account found with this email address")
	ErrAccountLocked              = errors.New("account is locked")
	ErrInvalidPassword            = errors.New("invalid password")
	ErrAccountUnverified          = errors.New("email verification required")
	ErrVerificationSessionMissing = errors.New("verification session missing")
	ErrVerificationSessionExpired = errors.New("verification session expired")
	ErrUserNotFound               = errors.New("user not found")
	ErrNoActiveCode               = errors.New("no valid otp found")
	ErrInvalidCode                = errors.New("invalid or expired otp")
	ErrAlreadyVerified            = errors.New("account already verified")
	ErrResendCooldown             = errors.New("otp resend cooldown active")
	ErrDelivery                   = errors.New("notification delivery failed")
	ErrInvalidResetToken          = errors.New("invalid or expired password reset token")
)

// ValidationError carries one message per rejected input field.
type ValidationError struct {
	Fields map[string]string
}

func NewValidationError() *ValidationError {
	return &ValidationError{Fields: map[string]string{}}
}

func (e *ValidationError) Add(field, message string) {
	if _, exists := e.Fields[field]; exists {
		return
	}
	e.Fields[field] = message
}

func (e *ValidationError) Empty() bool { return len(e.Fields) == 0 }

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// AuthFailure is returned by AuthGate for password and lockout rejections.
// Triggered is set on the attempt that crossed the threshold.
type AuthFailure struct {
	Reason            error
	RemainingAttempts int
	RetryAfter        time.Duration
	Triggered         bool
}

func (e *AuthFailure) Error() string {
	if errors.Is(e.Reason, ErrAccountLocked) {
		return fmt.Sprintf("%v: retry after %s", e.Reason, e.RetryAfter)
	}
	return fmt.Sprintf("%v: %d attempts remaining", e.Reason, e.RemainingAttempts)
}

func (e *AuthFailure) Unwrap() error { return e.Reason }

type CooldownError struct {
	Remaining time.Duration
}

func (e *CooldownError) Error() string {
	return fmt.Sprintf("%v: %d seconds remaining", ErrResendCooldown, e.Seconds())
}

func (e *CooldownError) Unwrap() error { return ErrResendCooldown }

// Seconds rounds the remaining cooldown up so a client never retries early.
func (e *CooldownError) Seconds() int {
	return ceilSeconds(e.Remaining)
}

type DeliveryError struct {
	Kind string
	Err  error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver %s: %v", e.Kind, e.Err)
}

func (e *DeliveryError) Unwrap() []error { return []error{ErrDelivery, e.Err} }

func ceilSeconds(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	secs := int(d / time.Second)
	if d%time.Second != 0 {
		secs++
	}
	return secs
}
