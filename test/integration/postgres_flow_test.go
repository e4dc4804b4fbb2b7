package integration

import (
	"net/http"
	"net/url"
	"testing"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/database"
	"github.com/sandeepkv93/fundraising-accounts-service/internal/http/handler"
)

func TestPostgresRegistrationAndLockout(t *testing.T) {
	db := newPostgresDB(t)
	srv := newAccountsServerWithOptions(t, accountsServerOptions{db: db})
	browser := srv.newBrowser(t)
	email := "pg-donor@example.com"

	srv.registerAndVerify(t, browser, email)
	resp, env := srv.postForm(t, srv.newBrowser(t), handler.PathRegister, url.Values{
		"email":            {email},
		"full_name":        {"Again"},
		"password":         {validPassword},
		"confirm_password": {validPassword},
	})
	assertErrorCode(t, resp, env, http.StatusBadRequest, "VALIDATION_FAILED")

	for i := 0; i < srv.cfg.LockoutThreshold-1; i++ {
		resp, env = srv.login(t, browser, email, "Wrong#Pass1234")
		assertErrorCode(t, resp, env, http.StatusUnauthorized, "INVALID_CREDENTIALS")
	}
	resp, env = srv.login(t, browser, email, "Wrong#Pass1234")
	assertErrorCode(t, resp, env, http.StatusLocked, "ACCOUNT_LOCKED")

	user, err := srv.users.FindByEmail(email)
	if err != nil || user.FailedLoginAttempts != srv.cfg.LockoutThreshold || user.LastFailedLogin == nil {
		t.Fatalf("expected persisted lock, got %+v %v", user, err)
	}

	status, err := database.Status(db)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	for _, table := range status {
		if !table.Exists {
			t.Fatalf("expected table %s to exist", table.Table)
		}
	}
}
