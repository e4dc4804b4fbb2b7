package security

import (
	"strings"
	"testing"
	"time"
)

type fakeClock struct{ now time.Time }

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func TestOTPIssuerGenerateCodeFormat(t *testing.T) {
	issuer := NewOTPIssuer(OTPConfig{}, nil)
	for i := 0; i < 200; i++ {
		code, err := issuer.GenerateCode()
		if err != nil {
			t.Fatalf("generate code: %v", err)
		}
		if len(code) != OTPLength {
			t.Fatalf("expected %d digits, got %q", OTPLength, code)
		}
		if strings.Trim(code, "0123456789") != "" {
			t.Fatalf("expected numeric code, got %q", code)
		}
	}
}

func TestOTPIssuerSaltAndHash(t *testing.T) {
	issuer := NewOTPIssuer(OTPConfig{}, nil)
	s1, err := issuer.GenerateSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	s2, err := issuer.GenerateSalt()
	if err != nil {
		t.Fatalf("salt: %v", err)
	}
	if len(s1) != 32 || len(s2) != 32 {
		t.Fatalf("expected 32-char hex salts, got %q %q", s1, s2)
	}
	if s1 == s2 {
		t.Fatal("expected distinct salts")
	}

	h1 := issuer.HashCode("123456", s1)
	if len(h1) != 64 {
		t.Fatalf("expected 64-char hash, got %d", len(h1))
	}
	if issuer.HashCode("123456", s1) != h1 {
		t.Fatal("expected stable hash for same code and salt")
	}
	if issuer.HashCode("123456", s2) == h1 {
		t.Fatal("expected different hash for different salt")
	}
}

func TestOTPIssuerExpiry(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewOTPIssuer(OTPConfig{TTL: 300 * time.Second}, clock)
	created := clock.Now()

	if issuer.IsExpired(created) {
		t.Fatal("expected fresh code to be unexpired")
	}
	clock.Advance(300 * time.Second)
	if issuer.IsExpired(created) {
		t.Fatal("expected code at exactly ttl to be unexpired")
	}
	clock.Advance(time.Second)
	if !issuer.IsExpired(created) {
		t.Fatal("expected code past ttl to be expired")
	}
	if issuer.Remaining(created) != 0 {
		t.Fatalf("expected zero remaining, got %s", issuer.Remaining(created))
	}
}

func TestOTPIssuerVerifyMatrix(t *testing.T) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)}
	issuer := NewOTPIssuer(OTPConfig{TTL: 300 * time.Second}, clock)
	salt, _ := issuer.GenerateSalt()
	hash := issuer.HashCode("042042", salt)
	fresh := clock.Now().Add(-10 * time.Second)
	stale := clock.Now().Add(-6 * time.Minute)

	tests := []struct {
		name       string
		candidate  string
		createdAt  time.Time
		used       bool
		want       bool
		wantReason string
	}{
		{name: "correct", candidate: "042042", createdAt: fresh, want: true, wantReason: OTPReasonOK},
		{name: "wrong code", candidate: "042043", createdAt: fresh, wantReason: OTPReasonInvalid},
		{name: "used correct code", candidate: "042042", createdAt: fresh, used: true, wantReason: OTPReasonUsed},
		{name: "expired correct code", candidate: "042042", createdAt: stale, wantReason: OTPReasonExpired},
		{name: "empty candidate", candidate: "", createdAt: fresh, wantReason: OTPReasonInvalid},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := issuer.Verify(tc.candidate, hash, salt, tc.createdAt, tc.used); got != tc.want {
				t.Fatalf("verify=%v want %v", got, tc.want)
			}
			if got := issuer.Check(tc.candidate, hash, salt, tc.createdAt, tc.used); got != tc.wantReason {
				t.Fatalf("reason=%q want %q", got, tc.wantReason)
			}
		})
	}
}
