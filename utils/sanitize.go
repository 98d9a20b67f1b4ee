package utils

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var sanitizer = bluemonday.StrictPolicy()

// SanitizeText strips all markup from free text (announcements, display names, prize labels)
// and returns plain text. The strict policy entity-escapes what it keeps, so the result is
// unescaped again; applying it twice yields the same string.
func SanitizeText(input string) string {
	return strings.TrimSpace(html.UnescapeString(sanitizer.Sanitize(input)))
}
