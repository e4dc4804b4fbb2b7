package middleware

import (
	"context"
	"net/http"
	"time"

	"github.com/sandeepkv93/fundraising-accounts-service/internal/security"
)

// SessionMiddleware resolves the signed session cookie to a session id. A
// missing or tampered cookie starts a fresh session.
func SessionMiddleware(signer *security.SessionIDSigner, cookies *security.CookieManager, ttl time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sid, err := signer.Verify(security.GetCookie(r, security.SessionCookie))
			if err != nil {
				var signed string
				signed, sid = signer.New()
				cookies.SetSessionCookie(w, signed, ttl)
			}
			next.ServeHTTP(w, r.WithContext(WithSessionID(r.Context(), sid)))
		})
	}
}

func WithSessionID(ctx context.Context, sid string) context.Context {
	return context.WithValue(ctx, SessionIDContextKey, sid)
}

func SessionIDFromContext(ctx context.Context) (string, bool) {
	sid, ok := ctx.Value(SessionIDContextKey).(string)
	return sid, ok && sid != ""
}
