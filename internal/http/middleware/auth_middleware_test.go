package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

func newTestJWTManager() *security.JWTManager {
	return security.NewJWTManager("fundraising-accounts-service", "fundraising-platform", "abcdefghijklmnopqrstuvwxyz123456")
}

func TestAuthMiddlewareTokenSources(t *testing.T) {
	mgr := newTestJWTManager()
	token, err := mgr.SignAccessToken(7, "donor@example.org", 15*time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}

	tests := []struct {
		name     string
		prepare  func(r *http.Request)
		wantCode int
	}{
		{"cookie", func(r *http.Request) { r.AddCookie(&http.Cookie{Name: security.AccessTokenCookie, Value: token}) }, http.StatusOK},
		{"bearer", func(r *http.Request) { r.Header.Set("Authorization", "Bearer "+token) }, http.StatusOK},
		{"missing", func(*http.Request) {}, http.StatusUnauthorized},
		{"garbage", func(r *http.Request) { r.Header.Set("Authorization", "Bearer not-a-token") }, http.StatusUnauthorized},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var subject string
			h := AuthMiddleware(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				claims, ok := ClaimsFromContext(r.Context())
				if !ok {
					t.Fatal("expected claims in context")
				}
				subject = claims.Subject
				w.WriteHeader(http.StatusOK)
			}))
			req := httptest.NewRequest(http.MethodGet, "/me/", nil)
			tc.prepare(req)
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, req)
			if rr.Code != tc.wantCode {
				t.Fatalf("expected %d, got %d", tc.wantCode, rr.Code)
			}
			if tc.wantCode == http.StatusOK && subject != "7" {
				t.Fatalf("expected subject 7, got %q", subject)
			}
		})
	}
}

func TestAuthMiddlewareRejectsForeignAudience(t *testing.T) {
	foreign := security.NewJWTManager("fundraising-accounts-service", "somebody-else", "abcdefghijklmnopqrstuvwxyz123456")
	token, err := foreign.SignAccessToken(7, "donor@example.org", time.Minute)
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	h := AuthMiddleware(newTestJWTManager())(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	req := httptest.NewRequest(http.MethodGet, "/me/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, req)
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
}
