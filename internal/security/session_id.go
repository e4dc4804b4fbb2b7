package security

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"strings"

	"github.com/google/uuid"
)

var ErrInvalidSessionID = errors.New("invalid session id")

// SessionIDSigner issues and checks opaque "<uuid>.<hmac>" identifiers.
type SessionIDSigner struct {
	secret []byte
}

func NewSessionIDSigner(secret string) *SessionIDSigner {
	return &SessionIDSigner{secret: []byte(secret)}
}

func (s *SessionIDSigner) New() (signed string, id string) {
	id = uuid.NewString()
	return id + "." + s.sign(id), id
}

func (s *SessionIDSigner) Verify(signed string) (string, error) {
	id, sig, ok := strings.Cut(signed, ".")
	if !ok || id == "" || sig == "" {
		return "", ErrInvalidSessionID
	}
	if _, err := uuid.Parse(id); err != nil {
		return "", ErrInvalidSessionID
	}
	if !hmac.Equal([]byte(sig), []byte(s.sign(id))) {
		return "", ErrInvalidSessionID
	}
	return id, nil
}

func (s *SessionIDSigner) sign(id string) string {
	mac := hmac.New(sha256.New, s.secret)
	_, _ = mac.Write([]byte(id))
	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
