package auth

import (
	"crypto/rand"
	"encoding/base32"
	"fmt"
	"strings"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"golang.org/x/crypto/bcrypt"
)

const recoveryCodeCount = 10

// NewTOTPKey generates a secret for accountName and its otpauth:// URL.
func NewTOTPKey(issuer, accountName string) (secret, otpauthURL string, err error) {
	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      issuer,
		AccountName: accountName,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", "", fmt.Errorf("generating totp key: %w", err)
	}
	return key.Secret(), key.URL(), nil
}

// ValidateTOTP checks code against secret for the current period, allowing
// one period of clock skew.
func ValidateTOTP(code, secret string) bool {
	if secret == "" {
		return false
	}
	return totp.Validate(code, secret)
}

var recoveryEncoding = base32.StdEncoding.WithPadding(base32.NoPadding)

// NewRecoveryCodes returns plain codes for the user to keep and their
// bcrypt hashes for storage.
func NewRecoveryCodes() (plain, hashed []string, err error) {
	for i := 0; i < recoveryCodeCount; i++ {
		b := make([]byte, 6)
		if _, err := rand.Read(b); err != nil {
			return nil, nil, fmt.Errorf("generating recovery code: %w", err)
		}
		s := strings.ToLower(recoveryEncoding.EncodeToString(b))
		code := s[:5] + "-" + s[5:]
		h, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
		if err != nil {
			return nil, nil, fmt.Errorf("hashing recovery code: %w", err)
		}
		plain = append(plain, code)
		hashed = append(hashed, string(h))
	}
	return plain, hashed, nil
}

// UseRecoveryCode returns the hashes left after spending code, and whether
// code matched one of them.
func UseRecoveryCode(hashed []string, code string) ([]string, bool) {
	code = strings.ToLower(strings.TrimSpace(code))
	for i, h := range hashed {
		if bcrypt.CompareHashAndPassword([]byte(h), []byte(code)) == nil {
			rest := make([]string, 0, len(hashed)-1)
			rest = append(rest, hashed[:i]...)
			return append(rest, hashed[i+1:]...), true
		}
	}
	return hashed, false
}
