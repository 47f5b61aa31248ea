// Package auth derives the per-call login secrets for the broker: a
// deterministic password digest and a time-stepped one-time password.
// Both are stateless and recomputed on every authentication attempt.
package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp/totp"
)

// ErrInvalidCredential marks a malformed TOTP seed. This is a permanent
// configuration error; callers must not retry.
var ErrInvalidCredential = errors.New("invalid TOTP seed")

// PasswordDigest returns the hex SHA-256 of password+apiKey, the form the
// broker expects in the login payload.
func PasswordDigest(password, apiKey string) string {
	sum := sha256.Sum256([]byte(password + apiKey))
	return hex.EncodeToString(sum[:])
}

// CurrentTOTP computes the current 6-digit code for a base32 seed.
func CurrentTOTP(seed string) (string, error) {
	code, err := totp.GenerateCode(strings.ToUpper(strings.TrimSpace(seed)), time.Now())
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	return code, nil
}
