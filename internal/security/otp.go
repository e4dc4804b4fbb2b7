package security

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"math/big"
	"time"
)

const (
	OTPLength        = 6
	otpSaltBytes     = 16
	DefaultOTPTTL    = 300 * time.Second
	OTPReasonOK      = "ok"
	OTPReasonExpired = "expired"
	OTPReasonUsed    = "used"
	OTPReasonInvalid = "mismatch"
)

type OTPConfig struct {
	TTL time.Duration
}

type OTPIssuer struct {
	ttl   time.Duration
	clock Clock
}

func NewOTPIssuer(cfg OTPConfig, clock Clock) *OTPIssuer {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultOTPTTL
	}
	if clock == nil {
		clock = SystemClock{}
	}
	return &OTPIssuer{ttl: ttl, clock: clock}
}

func (i *OTPIssuer) TTL() time.Duration { return i.ttl }

func (i *OTPIssuer) Now() time.Time { return i.clock.Now() }

// GenerateCode returns a uniformly random numeric code. Leading zeros are kept.
func (i *OTPIssuer) GenerateCode() (string, error) {
	buf := make([]byte, OTPLength)
	ten := big.NewInt(10)
	for idx := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generate otp digit: %w", err)
		}
		buf[idx] = byte('0' + n.Int64())
	}
	return string(buf), nil
}

func (i *OTPIssuer) GenerateSalt() (string, error) {
	raw := make([]byte, otpSaltBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("generate otp salt: %w", err)
	}
	return hex.EncodeToString(raw), nil
}

func (i *OTPIssuer) HashCode(code, salt string) string {
	sum := sha256.Sum256([]byte(salt + code))
	return hex.EncodeToString(sum[:])
}

func (i *OTPIssuer) IsExpired(createdAt time.Time) bool {
	return i.clock.Now().Sub(createdAt) > i.ttl
}

// Remaining is how long a code created at createdAt stays valid.
func (i *OTPIssuer) Remaining(createdAt time.Time) time.Duration {
	left := i.ttl - i.clock.Now().Sub(createdAt)
	if left < 0 {
		return 0
	}
	return left
}

func (i *OTPIssuer) Verify(candidate, storedHash, salt string, createdAt time.Time, isUsed bool) bool {
	return i.Check(candidate, storedHash, salt, createdAt, isUsed) == OTPReasonOK
}

// Check reports why a candidate was rejected. Callers must not surface the
// reason to end users.
func (i *OTPIssuer) Check(candidate, storedHash, salt string, createdAt time.Time, isUsed bool) string {
	if isUsed {
		return OTPReasonUsed
	}
	if i.IsExpired(createdAt) {
		return OTPReasonExpired
	}
	got := i.HashCode(candidate, salt)
	if subtle.ConstantTimeCompare([]byte(got), []byte(storedHash)) != 1 {
		return OTPReasonInvalid
	}
	return OTPReasonOK
}
