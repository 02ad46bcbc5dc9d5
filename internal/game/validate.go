package game

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const maxMessageLen = 500

var (
	addressRe  = regexp.MustCompile(`^0x[a-fA-F0-9]{40}$`)
	usernameRe = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)
)

// ValidAddress reports whether s is a 0x-prefixed 40-hex wallet address.
func ValidAddress(s string) bool {
	return addressRe.MatchString(s)
}

// ValidUsername reports whether s is 3-20 chars of alnum/underscore/hyphen
// after trimming.
func ValidUsername(s string) bool {
	s = strings.TrimSpace(s)
	if len(s) < 3 || len(s) > 20 {
		return false
	}
	return usernameRe.MatchString(s)
}

// SanitizeMessage trims whitespace and truncates to the chat body limit,
// never splitting a multi-byte rune at the cut.
func SanitizeMessage(s string) string {
	s = strings.TrimSpace(s)
	if len(s) > maxMessageLen {
		cut := maxMessageLen
		for cut > 0 && !utf8.RuneStart(s[cut]) {
			cut--
		}
		s = s[:cut]
	}
	return s
}
