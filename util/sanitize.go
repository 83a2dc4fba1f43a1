package util

import (
	"regexp"
)

const (
	// MaxSanitizeLength is the maximum input length to prevent DoS attacks
	// Input longer than this will be truncated before sanitization
	MaxSanitizeLength = 1024 * 1024 // 1MB
)

var sanitizePatterns = []struct {
	pattern     *regexp.Regexp
	replacement string
}{
	// Connection strings with inline credentials
	{regexp.MustCompile(`(?i)\b(mongodb(?:\+srv)?|redis|rediss)://([^:/@\s]+):([^@\s]+)@`), "$1://$2:REDACTED@"},

	// Password patterns
	{regexp.MustCompile(`(?i)(password|passwd|pwd)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
	{regexp.MustCompile(`(?i)"password"\s*:\s*"[^"]+"`), `"password":"REDACTED"`},

	// JWT tokens (looks like xxx.yyy.zzz format); before the generic token rule
	{regexp.MustCompile(`eyJ[a-zA-Z0-9_\-]+\.eyJ[a-zA-Z0-9_\-]+\.[a-zA-Z0-9_\-]+`), "REDACTED_JWT"},

	// Token patterns
	{regexp.MustCompile(`(?i)bearer\s+[a-zA-Z0-9_\-\.]+`), "bearer REDACTED"},
	{regexp.MustCompile(`(?i)"token"\s*:\s*"[^"]+"`), `"token":"REDACTED"`},
	{regexp.MustCompile(`(?i)\b(token|jwt_secret)[\s:=]+[^\s\n]+`), "$1=REDACTED"},

	// Secret patterns
	{regexp.MustCompile(`(?i)\b(secret|client[_-]?secret)[\s:=]+[^\s\n]+`), "$1=REDACTED"},
}

// SanitizeError sanitizes an error message to remove sensitive information
// before logging. It redacts passwords, tokens and connection credentials.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}
	return SanitizeString(err.Error())
}

// SanitizeString sanitizes a string to remove sensitive information
// Input is truncated to MaxSanitizeLength to prevent DoS attacks via huge inputs
func SanitizeString(s string) string {
	if s == "" {
		return ""
	}

	if len(s) > MaxSanitizeLength {
		s = s[:MaxSanitizeLength] + "... [truncated]"
	}

	result := s
	for _, p := range sanitizePatterns {
		result = p.pattern.ReplaceAllString(result, p.replacement)
	}
	return result
}
