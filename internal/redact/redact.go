// Package redact strips credentials and query text from strings before they
// are logged. Database and Redis errors routinely echo connection strings and
// SQL, and worker tokens travel in headers that end up in error messages.
package redact

import "regexp"

// Placeholders substituted for redacted fragments.
const (
	RedactedCredentialPlaceholder = "[REDACTED_CREDENTIAL]"
	RedactedTokenPlaceholder      = "[REDACTED_TOKEN]"
	RedactedSQLPlaceholder        = "[REDACTED_SQL]"
	RedactedStackPlaceholder      = "[STACK_TRACE_REDACTED]"
)

type rule struct {
	pattern     *regexp.Regexp
	placeholder string
}

// rules run in order; connection strings go first so their passwords are not
// half-matched by the generic password rule.
var rules = []rule{
	{
		regexp.MustCompile(`(?i)(postgres(?:ql)?|rediss?|mysql|mongodb)://[^@\s]+@`),
		RedactedCredentialPlaceholder + "@",
	},
	{
		regexp.MustCompile(`(?i)(password|passwd|pwd)(\s*[=:]\s*['"]?)[^'"&\s]{3,}`),
		"${1}${2}" + RedactedCredentialPlaceholder,
	},
	{
		regexp.MustCompile(`eyJ[a-zA-Z0-9_-]+\.eyJ[a-zA-Z0-9_-]+\.[a-zA-Z0-9_-]+`),
		RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(bearer\s+)[A-Za-z0-9_\-.~+/]{8,}=*`),
		"${1}" + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(?i)(secret|token)(\s*[=:]\s*['"]?)[A-Za-z0-9_\-.~+/]{8,}`),
		"${1}${2}" + RedactedTokenPlaceholder,
	},
	{
		regexp.MustCompile(`(?s)\b(SELECT|INSERT\s+INTO|UPDATE|DELETE\s+FROM)\b.*?(\bFROM\b|\bSET\b|\bVALUES\b|\bWHERE\b|\bRETURNING\b).*`),
		RedactedSQLPlaceholder,
	},
	{
		regexp.MustCompile(`(?:goroutine \d+|panic:)[\s\S]*?(\n\t.*)+`),
		RedactedStackPlaceholder,
	},
}

// String redacts sensitive fragments from s.
func String(s string) string {
	if s == "" {
		return s
	}
	for _, r := range rules {
		s = r.pattern.ReplaceAllString(s, r.placeholder)
	}
	return s
}

// Error redacts err.Error(); a nil error yields "".
func Error(err error) string {
	if err == nil {
		return ""
	}
	return String(err.Error())
}
