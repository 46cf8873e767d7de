package logger

import (
	"fmt"
	"regexp"
	"strings"
)

// Redacted replaces bound values of statements touching sensitive columns.
const Redacted = "***REDACTED***"

// maxValueLen caps a single formatted argument.
const maxValueLen = 100

// DefaultSensitiveFields is used when NewSanitizer gets no field names.
var DefaultSensitiveFields = []string{
	"password", "passwd", "pwd",
	"token", "api_key", "apikey", "api_token",
	"secret", "auth", "authorization",
	"credit_card", "card_number", "cvv", "cvc",
	"ssn", "private_key",
}

// Sanitizer keeps scope arguments compared against sensitive columns out of
// the statement log.
type Sanitizer struct {
	columns *regexp.Regexp
}

// NewSanitizer matches the given column names as whole words, ignoring case.
func NewSanitizer(fields []string) *Sanitizer {
	if len(fields) == 0 {
		fields = DefaultSensitiveFields
	}
	alts := make([]string, len(fields))
	for i, f := range fields {
		alts[i] = regexp.QuoteMeta(f)
	}
	return &Sanitizer{columns: regexp.MustCompile(`(?i)\b(?:` + strings.Join(alts, "|") + `)\b`)}
}

// MaskParams redacts every argument when sql mentions a sensitive column.
// Placeholders are not matched to columns, so a hit masks the whole list.
func (s *Sanitizer) MaskParams(sql string, params []interface{}) []interface{} {
	if len(params) == 0 || !s.columns.MatchString(sql) {
		return params
	}
	out := make([]interface{}, len(params))
	for i := range out {
		out[i] = Redacted
	}
	return out
}

// FormatParams renders params as a bracketed list for a log attribute.
func (s *Sanitizer) FormatParams(params []interface{}) string {
	var sb strings.Builder
	sb.WriteByte('[')
	for i, p := range params {
		if i > 0 {
			sb.WriteString(", ")
		}
		var v string
		switch p := p.(type) {
		case nil:
			v = "NULL"
		case []byte:
			v = string(p)
		default:
			v = fmt.Sprint(p)
		}
		if len(v) > maxValueLen {
			v = v[:maxValueLen] + "..."
		}
		sb.WriteString(v)
	}
	sb.WriteByte(']')
	return sb.String()
}
