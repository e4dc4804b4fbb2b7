package integration

import (
	"encoding/json"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/handler"
)

func TestLoginLockoutAfterRepeatedFailures(t *testing.T) {
	srv := newAccountsServer(t)
	browser := srv.newBrowser(t)
	email := "lockout@example.com"
	srv.registerAndVerify(t, browser, email)

	for attempt := 1; attempt < srv.cfg.LockoutThreshold; attempt++ {
		resp, env := srv.login(t, browser, email, "Wrong#Pass1234")
		assertErrorCode(t, resp, env, http.StatusUnauthorized, "INVALID_CREDENTIALS")
		var details struct {
			RemainingAttempts int `json:"remaining_attempts"`
		}
		if err := json.Unmarshal(env.Error.Details, &details); err != nil {
			t.Fatalf("decode details: %v", err)
		}
		if want := srv.cfg.LockoutThreshold - attempt; details.RemainingAttempts != want {
			t.Fatalf("attempt %d: expected %d remaining, got %d", attempt, want, details.RemainingAttempts)
		}
	}

	resp, env := srv.login(t, browser, email, "Wrong#Pass1234")
	assertErrorCode(t, resp, env, http.StatusLocked, "ACCOUNT_LOCKED")
	if !strings.Contains(env.Error.Message, "Account locked for 5 minutes") {
		t.Fatalf("unexpected lock message %q", env.Error.Message)
	}

	// The correct password is refused from any browser while the lock holds.
	srv.clock.Advance(time.Minute)
	resp, env = srv.login(t, srv.newBrowser(t), email, validPassword)
	assertErrorCode(t, resp, env, http.StatusLocked, "ACCOUNT_LOCKED")
	if resp.Header.Get("Retry-After") != "240" {
		t.Fatalf("expected Retry-After 240, got %q", resp.Header.Get("Retry-After"))
	}
	if !strings.Contains(env.Error.Message, "try again after 240 seconds") {
		t.Fatalf("unexpected locked message %q", env.Error.Message)
	}

	srv.clock.Advance(srv.cfg.LockoutWindow)
	resp, _ = srv.login(t, browser, email, validPassword)
	assertRedirect(t, resp, handler.PathHome)

	user, err := srv.users.FindByEmail(email)
	if err != nil {
		t.Fatalf("find user: %v", err)
	}
	if user.FailedLoginAttempts != 0 || user.LastFailedLogin != nil {
		t.Fatalf("expected counters cleared after login, got %d %v", user.FailedLoginAttempts, user.LastFailedLogin)
	}
}

func TestSuccessfulLoginResetsFailureCount(t *testing.T) {
	srv := newAccountsServer(t)
	browser := srv.newBrowser(t)
	email := "recover@example.com"
	srv.registerAndVerify(t, browser, email)

	for i := 0; i < srv.cfg.LockoutThreshold-1; i++ {
		resp, env := srv.login(t, browser, email, "Wrong#Pass1234")
		assertErrorCode(t, resp, env, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}
	resp, _ := srv.login(t, browser, email, validPassword)
	assertRedirect(t, resp, handler.PathHome)

	resp, env := srv.login(t, browser, email, "Wrong#Pass1234")
	assertErrorCode(t, resp, env, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	if !strings.Contains(env.Error.Message, "4 attempts remaining") {
		t.Fatalf("expected a fresh failure budget, got %q", env.Error.Message)
	}
}

func TestLoginUnknownAccount(t *testing.T) {
	srv := newAccountsServer(t)
	resp, env := srv.login(t, srv.newBrowser(t), "ghost@example.com", validPassword)
	assertErrorCode(t, resp, env, http.StatusNotFound, "ACCOUNT_NOT_FOUND")
}
