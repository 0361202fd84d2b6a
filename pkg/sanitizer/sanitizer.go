package sanitizer

import (
	"html"
	"strings"

	"github.com/microcosm-cc/bluemonday"
)

var policy = bluemonday.StrictPolicy()

// Text strips all markup from user input and returns plain text.
// Line breaks are kept, surrounding whitespace is trimmed.
func Text(s string) string {
	cleaned := policy.Sanitize(s)
	return strings.TrimSpace(html.UnescapeString(cleaned))
}

// Line is Text with all whitespace runs collapsed to single spaces.
func Line(s string) string {
	return strings.Join(strings.Fields(Text(s)), " ")
}
