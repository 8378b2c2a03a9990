package utils

import (
	"time"

	"github.com/pquerna/otp/totp"
)

// GenerateTOTPCode produces the current code for an entity whose
// credentials carry a TOTP secret, so automated logins can answer the
// provider's 2FA challenge without user interaction.
func GenerateTOTPCode(secret string) (string, error) {
	return totp.GenerateCode(secret, time.Now())
}

// VerifyTOTP checks a code against a secret.
func VerifyTOTP(secret, code string) bool {
	return totp.Validate(code, secret)
}
