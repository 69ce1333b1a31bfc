// Package password hashes and validates user passwords with bcrypt,
// matching the teacher's golang.org/x/crypto/bcrypt usage in
// services/auth/rpc/internal/logic.
package password

import (
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/suleymanmyradov/agentkey/shared/apperr"
)

const (
	cost      = 12
	minLength = 12
	specials  = "!@#$%^&*()_+-=[]{}|;':\",./<>?`~"
)

// Hash bcrypt-hashes password at cost 12. Every call produces a distinct
// output because bcrypt draws a fresh random salt.
func Hash(pwd string) (string, error) {
	h, err := bcrypt.GenerateFromPassword([]byte(pwd), cost)
	if err != nil {
		return "", apperr.Wrap(apperr.InternalError, "password hashing failed", err)
	}
	return string(h), nil
}

// Verify reports whether pwd matches hash, using bcrypt's constant-time
// comparison.
func Verify(pwd, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(pwd)) == nil
}

// ValidateComplexity enforces the policy: at least 12 characters,
// containing an uppercase letter, a lowercase letter, a digit, and a
// character from the fixed special-character set.
func ValidateComplexity(pwd string) error {
	if len(pwd) < minLength {
		return apperr.ValidationErrorf("password must be at least %d characters", minLength)
	}
	var hasUpper, hasLower, hasDigit, hasSpecial bool
	for _, r := range pwd {
		switch {
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= '0' && r <= '9':
			hasDigit = true
		case strings.ContainsRune(specials, r):
			hasSpecial = true
		}
	}
	switch {
	case !hasUpper:
		return apperr.ValidationErrorf("password must contain an uppercase letter")
	case !hasLower:
		return apperr.ValidationErrorf("password must contain a lowercase letter")
	case !hasDigit:
		return apperr.ValidationErrorf("password must contain a digit")
	case !hasSpecial:
		return apperr.ValidationErrorf("password must contain a special character")
	}
	return nil
}

// HashValidated validates complexity then hashes, combining the two steps
// the way the auth plane's register flow needs them.
func HashValidated(pwd string) (string, error) {
	if err := ValidateComplexity(pwd); err != nil {
		return "", err
	}
	return Hash(pwd)
}
