package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/domain"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/repository"
	repogomock "github.com/sandeepkv93/fundraising-accounts-service/internal/repository/gomock"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"

	"go.uber.org/mock/gomock"
)

func mustHash(t *testing.T, password string) string {
	t.Helper()
	h, err := security.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	return h
}

func newGateForTest(t *testing.T) (*AuthGate, *repogomock.MockUserRepository, *fakeClock) {
	t.Helper()
	ctrl := gomock.NewController(t)
	repo := repogomock.NewMockUserRepository(ctrl)
	clock := newFakeClock()
	gate := NewAuthGate(repo, security.NewLockoutPolicy(5, 300*time.Second), clock, discardLogger())
	return gate, repo, clock
}

func TestAuthGateUnknownAccount(t *testing.T) {
	gate, repo, _ := newGateForTest(t)
	repo.EXPECT().FindByEmail("ghost@example.com").Return(nil, repository.ErrUserNotFound)

	_, err := gate.Authenticate(context.Background(), "  Ghost@Example.com ", "whatever")
	if !errors.Is(err, ErrAccountNotFound) {
		t.Fatalf("expected ErrAccountNotFound, got %v", err)
	}
}

func TestAuthGateWrongPasswordCountsDown(t *testing.T) {
	gate, repo, clock := newGateForTest(t)
	user := &domain.User{ID: 7, Email: "donor@example.com", PasswordHash: mustHash(t, testPassword), IsActive: true, FailedLoginAttempts: 1}
	lastFailed := clock.Now().Add(-time.Minute)
	user.LastFailedLogin = &lastFailed

	repo.EXPECT().FindByEmail("donor@example.com").Return(user, nil)
	repo.EXPECT().UpdateLoginCounters(uint(7), 2, gomock.Any()).DoAndReturn(func(_ uint, _ int, last *time.Time) error {
		if last == nil || !last.Equal(clock.Now()) {
			t.Fatalf("expected last failure stamped now, got %v", last)
		}
		return nil
	})

	_, err := gate.Authenticate(context.Background(), "donor@example.com", "wrong")
	var failure *AuthFailure
	if !errors.As(err, &failure) {
		t.Fatalf("expected AuthFailure, got %v", err)
	}
	if !errors.Is(err, ErrInvalidPassword) || failure.RemainingAttempts != 3 {
		t.Fatalf("unexpected failure: %+v", failure)
	}
}

func TestAuthGateFifthFailureTriggersLockout(t *testing.T) {
	gate, repo, clock := newGateForTest(t)
	lastFailed := clock.Now().Add(-10 * time.Second)
	user := &domain.User{ID: 9, Email: "donor@example.com", PasswordHash: mustHash(t, testPassword), IsActive: true, FailedLoginAttempts: 4, LastFailedLogin: &lastFailed}

	repo.EXPECT().FindByEmail("donor@example.com").Return(user, nil)
	repo.EXPECT().UpdateLoginCounters(uint(9), 5, gomock.Any()).Return(nil)

	_, err := gate.Authenticate(context.Background(), "donor@example.com", "wrong")
	var failure *AuthFailure
	if !errors.As(err, &failure) || !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("expected lockout failure, got %v", err)
	}
	if !failure.Triggered || failure.RetryAfter != 300*time.Second {
		t.Fatalf("expected fresh lockout for the full window, got %+v", failure)
	}
}

func TestAuthGateLockoutWindowBoundaries(t *testing.T) {
	cases := []struct {
		name       string
		sinceLast  time.Duration
		wantLocked bool
		wantLeft   time.Duration
	}{
		{name: "just locked", sinceLast: 0, wantLocked: true, wantLeft: 300 * time.Second},
		{name: "one second left", sinceLast: 299 * time.Second, wantLocked: true, wantLeft: time.Second},
		{name: "window elapsed", sinceLast: 300 * time.Second},
		{name: "past window", sinceLast: 301 * time.Second},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			gate, repo, clock := newGateForTest(t)
			last := clock.Now().Add(-tc.sinceLast)
			user := &domain.User{ID: 3, Email: "donor@example.com", PasswordHash: mustHash(t, testPassword), IsActive: true, FailedLoginAttempts: 5, LastFailedLogin: &last}
			repo.EXPECT().FindByEmail("donor@example.com").Return(user, nil)
			if !tc.wantLocked {
				repo.EXPECT().UpdateLoginCounters(uint(3), 0, nil).Return(nil)
			}

			got, err := gate.Authenticate(context.Background(), "donor@example.com", testPassword)
			if tc.wantLocked {
				var failure *AuthFailure
				if !errors.As(err, &failure) || !errors.Is(err, ErrAccountLocked) {
					t.Fatalf("expected lockout, got %v", err)
				}
				if failure.Triggered || failure.RetryAfter != tc.wantLeft {
					t.Fatalf("unexpected lockout detail: %+v", failure)
				}
				return
			}
			if err != nil {
				t.Fatalf("expected success after window, got %v", err)
			}
			if got.FailedLoginAttempts != 0 || got.LastFailedLogin != nil {
				t.Fatalf("expected counters reset, got %+v", got)
			}
		})
	}
}

func TestAuthGateUnverifiedSkipsPasswordCheck(t *testing.T) {
	gate, repo, _ := newGateForTest(t)
	user := &domain.User{ID: 4, Email: "new@example.com", PasswordHash: mustHash(t, testPassword)}
	repo.EXPECT().FindByEmail("new@example.com").Return(user, nil)

	_, err := gate.Authenticate(context.Background(), "new@example.com", "wrong-password")
	if !errors.Is(err, ErrAccountUnverified) {
		t.Fatalf("expected ErrAccountUnverified, got %v", err)
	}
}

func TestAuthGateSuccessClearsCounters(t *testing.T) {
	gate, repo, clock := newGateForTest(t)
	last := clock.Now().Add(-30 * time.Second)
	user := &domain.User{ID: 5, Email: "donor@example.com", PasswordHash: mustHash(t, testPassword), IsActive: true, FailedLoginAttempts: 2, LastFailedLogin: &last}
	repo.EXPECT().FindByEmail("donor@example.com").Return(user, nil)
	repo.EXPECT().UpdateLoginCounters(uint(5), 0, nil).Return(nil)

	got, err := gate.Authenticate(context.Background(), "donor@example.com", testPassword)
	if err != nil {
		t.Fatalf("authenticate: %v", err)
	}
	if got.ID != 5 || got.FailedLoginAttempts != 0 {
		t.Fatalf("unexpected user: %+v", got)
	}
}

func TestAuthGateCounterWriteFailureSurfaces(t *testing.T) {
	gate, repo, _ := newGateForTest(t)
	user := &domain.User{ID: 6, Email: "donor@example.com", PasswordHash: mustHash(t, testPassword), IsActive: true}
	boom := errors.New("db down")
	repo.EXPECT().FindByEmail("donor@example.com").Return(user, nil)
	repo.EXPECT().UpdateLoginCounters(uint(6), 1, gomock.Any()).Return(boom)

	_, err := gate.Authenticate(context.Background(), "donor@example.com", "wrong")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped db error, got %v", err)
	}
}

func TestAuthGateLockoutAgainstSQLite(t *testing.T) {
	fx := newAccountFixture(t)
	fx.expectCodes()
	sid := "sid-lock"
	user := fx.register(sid, "lock@example.com")
	if _, err := fx.reg.Verify(context.Background(), sid, fx.lastCode()); err != nil {
		t.Fatalf("verify: %v", err)
	}

	ctx := context.Background()
	for i := 1; i <= 4; i++ {
		_, err := fx.gate.Authenticate(ctx, user.Email, "Wrong!Pass1")
		var failure *AuthFailure
		if !errors.As(err, &failure) || failure.RemainingAttempts != 5-i {
			t.Fatalf("attempt %d: unexpected %v", i, err)
		}
	}
	if _, err := fx.gate.Authenticate(ctx, user.Email, "Wrong!Pass1"); !errors.Is(err, ErrAccountLocked) {
		t.Fatalf("fifth attempt should lock, got %v", err)
	}

	fx.clock.Advance(299 * time.Second)
	_, err := fx.gate.Authenticate(ctx, user.Email, testPassword)
	var failure *AuthFailure
	if !errors.As(err, &failure) || failure.RetryAfter != time.Second {
		t.Fatalf("expected 1s remaining, got %v", err)
	}

	fx.clock.Advance(2 * time.Second)
	got, err := fx.gate.Authenticate(ctx, user.Email, testPassword)
	if err != nil {
		t.Fatalf("expected login after window, got %v", err)
	}
	stored, err := fx.users.FindByID(got.ID)
	if err != nil {
		t.Fatalf("reload user: %v", err)
	}
	if stored.FailedLoginAttempts != 0 || stored.LastFailedLogin != nil {
		t.Fatalf("expected counters cleared, got %+v", stored)
	}
}
