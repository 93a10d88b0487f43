// Package payload normalizes, screens, and validates inbound structured
// request bodies before they reach route handlers. Processing order is
// sanitize, then screen, then validate: screening sees input with its
// obfuscation layers peeled off, validation sees cleaned values so
// harmless whitespace never causes a reject.
package payload

import (
	"regexp"
	"strings"
)

// MaxStringLength bounds the cost of downstream processing. Longer
// strings are truncated, not rejected.
const MaxStringLength = 10000

var (
	dangerousChars = regexp.MustCompile("[\x00\x08\x09\x1a\n\r\"'\\\\%]")
	scriptTags     = regexp.MustCompile(`(?is)<script\b.*?</script>`)
	jsProtocol     = regexp.MustCompile(`(?i)javascript:`)
	eventHandlers  = regexp.MustCompile(`(?i)on\w+\s*=`)
)

// SanitizeString normalizes a single string value: trims surrounding
// whitespace, strips null/control and quote/percent characters, removes
// script tags, javascript: URIs and inline event handlers, and caps the
// length. Sanitizing an already-clean string is a no-op.
func SanitizeString(s string) string {
	s = strings.TrimSpace(s)
	s = dangerousChars.ReplaceAllString(s, "")
	s = scriptTags.ReplaceAllString(s, "")
	s = jsProtocol.ReplaceAllString(s, "")
	s = eventHandlers.ReplaceAllString(s, "")
	if runes := []rune(s); len(runes) > MaxStringLength {
		s = string(runes[:MaxStringLength])
	}
	return strings.TrimSpace(s)
}

// Sanitize walks a decoded JSON value and sanitizes every string in it,
// including map keys. Non-string scalars pass through untouched.
func Sanitize(value any) any {
	switch v := value.(type) {
	case string:
		return SanitizeString(v)
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			out[i] = Sanitize(item)
		}
		return out
	case map[string]any:
		out := make(map[string]any, len(v))
		for key, item := range v {
			out[SanitizeString(key)] = Sanitize(item)
		}
		return out
	default:
		return value
	}
}
