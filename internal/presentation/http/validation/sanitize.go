package validation

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	htmlTagPattern      = regexp.MustCompile(`<[^>]*>`)
	controlCharPattern  = regexp.MustCompile(`[\x00-\x08\x0B\x0C\x0E-\x1F\x7F]`)
	jsProtocolPattern   = regexp.MustCompile(`(?i)javascript:`)
	eventHandlerPattern = regexp.MustCompile(`(?i)on\w+=`)
)

// SanitizeString strips HTML tags (keeping their inner text), control
// characters other than tab/newline/carriage-return, "javascript:" and
// on<event>= fragments, then trims surrounding whitespace.
func SanitizeString(input string) string {
	s := htmlTagPattern.ReplaceAllString(input, "")
	s = controlCharPattern.ReplaceAllString(s, "")
	s = jsProtocolPattern.ReplaceAllString(s, "")
	s = eventHandlerPattern.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// SanitizeOptionalString returns nil for nil, empty or all-whitespace input,
// otherwise a pointer to the sanitized value.
func SanitizeOptionalString(input *string) *string {
	if input == nil || *input == "" {
		return nil
	}
	s := SanitizeString(*input)
	if s == "" {
		return nil
	}
	return &s
}

// SanitizePatchString sanitizes a patch value while keeping "present but
// empty" distinguishable from "absent".
func SanitizePatchString(input *string) *string {
	if input == nil {
		return nil
	}
	s := SanitizeString(*input)
	return &s
}

// SanitizeEmail lower-cases a sanitized address.
func SanitizeEmail(input string) string {
	return strings.ToLower(SanitizeString(input))
}

// SafeRedirectPath accepts only same-origin relative paths and falls back to
// def for anything else.
func SafeRedirectPath(raw, def string) string {
	if raw == "" {
		return def
	}
	if !strings.HasPrefix(raw, "/") || strings.HasPrefix(raw, "//") || strings.HasPrefix(raw, `/\`) {
		return def
	}
	u, err := url.Parse(raw)
	if err != nil || u.IsAbs() || u.Host != "" {
		return def
	}
	return u.RequestURI()
}
