// Package textutil prepares letter text written by other users for display
// in a terminal.
package textutil

import (
	"strings"
	"unicode"

	"github.com/charmbracelet/x/ansi"
)

// Clean makes untrusted text safe to print: invalid UTF-8 is replaced,
// escape sequences are removed, line endings are normalized to \n and
// control characters other than newline and tab are dropped.
func Clean(s string) string {
	s = SanitizeUTF8(s)
	s = ansi.Strip(s)
	s = strings.ReplaceAll(s, "\r\n", "\n")
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\t':
			return r
		case r == '\r':
			return '\n'
		case unicode.IsControl(r):
			return -1
		}
		return r
	}, s)
}

// SanitizeUTF8 replaces each run of invalid UTF-8 bytes with U+FFFD.
func SanitizeUTF8(s string) string {
	return strings.ToValidUTF8(s, "�")
}

// FirstLine returns the first non-empty line of s, trimmed.
func FirstLine(s string) string {
	for line := range strings.Lines(s) {
		if line = strings.TrimSpace(line); line != "" {
			return line
		}
	}
	return ""
}
