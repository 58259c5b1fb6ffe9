// Package slug turns titles into URL-safe identifiers and negotiates
// identifiers that no other record holds.
package slug

import (
	"regexp"
	"strings"
	"unicode"
)

var validPattern = regexp.MustCompile(`^[a-z0-9]+(-[a-z0-9]+)*$`)

// Normalize converts a title to a URL-safe slug.
//
// The result only contains [a-z0-9] runs joined by single hyphens. Input with
// no usable characters yields "".
func Normalize(title string) string {
	s := strings.ToLower(title)
	var b strings.Builder
	b.Grow(len(s))
	pendingSep := false
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			if pendingSep && b.Len() > 0 {
				b.WriteByte('-')
			}
			pendingSep = false
			b.WriteRune(r)
		case r == '-', r == '/', r == '\\', r == '_', unicode.IsSpace(r):
			pendingSep = true
		default:
			// dropped
		}
	}
	return b.String()
}

// Valid reports whether s is a non-empty normalized slug.
func Valid(s string) bool {
	return validPattern.MatchString(s)
}
