package utils

import "strings"

// Credential fields whose values must never reach the logs.
var sensitiveFields = map[string]bool{
	"password":    true,
	"pin":         true,
	"totp_secret": true,
	"api_token":   true,
	"abck":        true,
	"cookie":      true,
	"session":     true,
}

// MaskSecrets returns a loggable copy of a credential payload with secret
// values replaced by asterisks. Field matching is case-insensitive and also
// catches suffixed names like "user_password".
func MaskSecrets(payload map[string]string) map[string]string {
	masked := make(map[string]string, len(payload))
	for key, value := range payload {
		if isSensitive(key) {
			masked[key] = mask(value)
		} else {
			masked[key] = value
		}
	}
	return masked
}

func isSensitive(key string) bool {
	lower := strings.ToLower(key)
	if sensitiveFields[lower] {
		return true
	}
	for field := range sensitiveFields {
		if strings.HasSuffix(lower, "_"+field) {
			return true
		}
	}
	return false
}

func mask(value string) string {
	if len(value) <= 2 {
		return "****"
	}
	return value[:1] + "****" + value[len(value)-1:]
}
