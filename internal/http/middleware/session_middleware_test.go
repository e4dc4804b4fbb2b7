package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

func sessionProbe(got *string) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		*got, _ = SessionIDFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
}

func TestSessionMiddlewareIssuesCookieForNewVisitor(t *testing.T) {
	signer := security.NewSessionIDSigner("session-secret-for-tests")
	cookies := security.NewCookieManager("", false, "lax")
	var sid string
	h := SessionMiddleware(signer, cookies, time.Hour)(sessionProbe(&sid))

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/register/", nil))

	if sid == "" {
		t.Fatal("expected session id in context")
	}
	var issued *http.Cookie
	for _, c := range rr.Result().Cookies() {
		if c.Name == security.SessionCookie {
			issued = c
		}
	}
	if issued == nil || !issued.HttpOnly {
		t.Fatalf("expected HttpOnly session cookie, got %+v", issued)
	}
	if got, err := signer.Verify(issued.Value); err != nil || got != sid {
		t.Fatalf("cookie should carry signed sid %q, got %q err=%v", sid, got, err)
	}
}

func TestSessionMiddlewareReusesValidCookie(t *testing.T) {
	signer := security.NewSessionIDSigner("session-secret-for-tests")
	cookies := security.NewCookieManager("", false, "lax")
	signed, id := signer.New()
	var sid string
	h := SessionMiddleware(signer, cookies, time.Hour)(sessionProbe(&sid))

	req := httptest.NewRequest(http.MethodGet, "/verify-otp/", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookie, Value: signed})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if sid != id {
		t.Fatalf("expected sid %q, got %q", id, sid)
	}
	if len(rr.Result().Cookies()) != 0 {
		t.Fatal("did not expect a new cookie for a valid session")
	}
}

func TestSessionMiddlewareReplacesTamperedCookie(t *testing.T) {
	signer := security.NewSessionIDSigner("session-secret-for-tests")
	other := security.NewSessionIDSigner("a-different-secret-value")
	cookies := security.NewCookieManager("", false, "lax")
	forged, forgedID := other.New()
	var sid string
	h := SessionMiddleware(signer, cookies, time.Hour)(sessionProbe(&sid))

	req := httptest.NewRequest(http.MethodGet, "/verify-otp/", nil)
	req.AddCookie(&http.Cookie{Name: security.SessionCookie, Value: forged})
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)

	if sid == "" || sid == forgedID {
		t.Fatalf("expected a fresh session id, got %q", sid)
	}
	if len(rr.Result().Cookies()) != 1 {
		t.Fatal("expected replacement session cookie")
	}
}
