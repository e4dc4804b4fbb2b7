package security

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

const (
	PasswordMinLength    = 8
	PasswordSpecialChars = `!@#$%^&*(),.?":{}|<>`
)

// PasswordPolicyViolations returns one message per unmet rule, in a stable
// order. An empty slice means the password is acceptable.
func PasswordPolicyViolations(password string) []string {
	var violations []string
	if utf8.RuneCountInString(password) < PasswordMinLength {
		violations = append(violations, "This password is too short. It must contain at least 8 characters.")
	}
	var hasUpper, hasLower, hasSpecial bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case strings.ContainsRune(PasswordSpecialChars, r):
			hasSpecial = true
		}
	}
	if !hasUpper {
		violations = append(violations, "Password must contain at least one uppercase letter.")
	}
	if !hasLower {
		violations = append(violations, "Password must contain at least one lowercase letter.")
	}
	if !hasSpecial {
		violations = append(violations, "Password must contain at least one special character.")
	}
	return violations
}
