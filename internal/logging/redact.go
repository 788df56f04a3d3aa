package logging

import "regexp"

// Patterns for secrets that should be redacted.
var secretPatterns = []*regexp.Regexp{
	// JWTs (three dot-separated base64url segments)
	regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),

	// Bearer tokens
	regexp.MustCompile(`(?i)bearer\s+([a-zA-Z0-9._-]{20,})`),

	// Generic long strings attached to secret-looking keys
	regexp.MustCompile(`(?i)(key|token|secret|password|auth)[=:]["']?([a-zA-Z0-9+/=._-]{20,})["']?`),
}

// RedactedValue is the replacement for sensitive values.
const RedactedValue = "[REDACTED]"

// Redact replaces sensitive information in a string.
func Redact(s string) string {
	result := s

	for _, pattern := range secretPatterns {
		result = pattern.ReplaceAllString(result, RedactedValue)
	}

	return result
}

// TokenPreview returns a short non-reversible preview of a token, safe for
// debug logs.
func TokenPreview(token string) string {
	if token == "" {
		return ""
	}
	if len(token) <= 8 {
		return RedactedValue
	}
	return token[:8] + "..."
}
