package auth

import (
	"regexp"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var emailPattern = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// NormalizeEmail trims and lower-cases an address with the root-locale
// Unicode mapping. Every lookup and write goes through it so uniqueness is
// case-insensitive. Lowering, unlike full case folding, keeps "ß" and "ss"
// distinct so addresses stored before stay unique.
func NormalizeEmail(email string) string {
	// Casers carry state and are not safe to share between goroutines.
	return cases.Lower(language.Und).String(strings.TrimSpace(email))
}

// passwordLength counts UTF-16 code units, so an astral-plane character
// counts as two, matching the length browsers report for the field.
func passwordLength(pw string) int {
	return len(utf16.Encode([]rune(pw)))
}

func ValidEmail(email string) bool {
	return emailPattern.MatchString(email)
}
