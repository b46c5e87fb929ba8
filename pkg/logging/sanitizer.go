package logging

import (
	"regexp"
)

const (
	// RedactedText is the replacement text for sensitive data
	RedactedText = "[REDACTED]"
	// MaxErrorLogLength caps sanitized error text
	MaxErrorLogLength = 512
)

var (
	// password=xxx, pwd=xxx, pass=xxx up to the next delimiter
	passwordPattern = regexp.MustCompile(`(?i)(password|pwd|pass)=[^;&\s]+`)

	// user:pass@host in postgres://, redis://, kafka SASL URLs
	connStringPattern = regexp.MustCompile(`://[^:/\s]*:[^@\s]+@[^/\s]+`)

	// Postgres constraint details echo row values: Key (email)=(ann@example.com)
	pgKeyDetailPattern = regexp.MustCompile(`Key \(([^)]*)\)=\([^)]*\)`)

	// Failing row contains (...) from NOT NULL / CHECK violations
	pgFailingRowPattern = regexp.MustCompile(`Failing row contains \(.*\)`)
)

// SanitizeConnectionString removes credentials from a DSN or URL.
func SanitizeConnectionString(connStr string) string {
	if connStr == "" {
		return ""
	}
	sanitized := passwordPattern.ReplaceAllString(connStr, "${1}="+RedactedText)
	return connStringPattern.ReplaceAllString(sanitized, "://"+RedactedText+"@"+RedactedText)
}

// SanitizeError returns err's text with credentials and echoed row values
// removed. Sink errors pass through here before they are logged, since a
// failed insert can quote the very snapshot fields the record redacted.
func SanitizeError(err error) string {
	if err == nil {
		return ""
	}

	sanitized := SanitizeConnectionString(err.Error())
	sanitized = pgKeyDetailPattern.ReplaceAllString(sanitized, "Key (${1})=("+RedactedText+")")
	sanitized = pgFailingRowPattern.ReplaceAllString(sanitized, "Failing row contains ("+RedactedText+")")

	if len(sanitized) > MaxErrorLogLength {
		sanitized = sanitized[:MaxErrorLogLength] + "..."
	}
	return sanitized
}
