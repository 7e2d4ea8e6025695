package services

import (
	"strings"
	"unicode"
)

// NormaliseText strips leading/trailing whitespace and collapses internal whitespace.
func NormaliseText(s string) string {
	s = strings.TrimSpace(s)
	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r)
	})
	return strings.Join(fields, " ")
}

// FirstLine returns the first non-empty line of s, normalised.
func FirstLine(s string) string {
	for _, line := range strings.Split(s, "\n") {
		if line = NormaliseText(line); line != "" {
			return line
		}
	}
	return ""
}
