package service

import (
	"context"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
)

type RegistrationServiceInterface interface {
	Register(ctx context.Context, sid string, in RegisterInput) (*RegisterResult, error)
	VerifyPage(ctx context.Context, sid string) (*VerificationState, error)
	Verify(ctx context.Context, sid, candidate string) (*domain.User, error)
	Resend(ctx context.Context, sid, email string) (*ResendResult, error)
	StartVerificationForEmail(ctx context.Context, sid, email string) error
}

type PasswordResetServiceInterface interface {
	Request(ctx context.Context, sid, email string) (*ResetRequestResult, error)
	Confirm(ctx context.Context, token, newPassword, confirmPassword string) error
}

type AuthenticatorInterface interface {
	Authenticate(ctx context.Context, email, password string) (*domain.User, error)
}

type UserServiceInterface interface {
	GetByID(id uint) (*domain.User, error)
	List(page, pageSize int) (*repository.PageResult[domain.User], error)
}

var (
	_ RegistrationServiceInterface  = (*RegistrationService)(nil)
	_ PasswordResetServiceInterface = (*PasswordResetService)(nil)
	_ AuthenticatorInterface        = (*AuthGate)(nil)
	_ UserServiceInterface          = (*UserService)(nil)
)
