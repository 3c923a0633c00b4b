// Package textutil provides input sanitization and format validators shared by
// the session, feed, and social managers.
package textutil

import (
	"regexp"
	"strings"
)

var (
	emailRe    = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
	phoneRe    = regexp.MustCompile(`^\+?[0-9][0-9\s\-()]{6,14}$`)
	usernameRe = regexp.MustCompile(`^[A-Za-z0-9_]+$`)

	// Markup-significant characters are stripped from free text before storage.
	markupStripper = strings.NewReplacer(
		"<", "",
		">", "",
		`"`, "",
		"'", "",
		"`", "",
	)
)

// Sanitize strips markup-significant characters and surrounding whitespace from
// free text before it is written to the record service.
func Sanitize(s string) string {
	return strings.TrimSpace(markupStripper.Replace(s))
}

// IsValidEmail reports whether s looks like an email address.
func IsValidEmail(s string) bool {
	return emailRe.MatchString(s)
}

// IsValidPhone reports whether s looks like a phone number.
func IsValidPhone(s string) bool {
	return phoneRe.MatchString(s)
}

// IsValidUsername reports whether s uses only letters, digits, and underscores.
// Length bounds are checked separately by the caller.
func IsValidUsername(s string) bool {
	return usernameRe.MatchString(s)
}

// FoldUsername case-folds a username for lookup and reservation keys.
func FoldUsername(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
