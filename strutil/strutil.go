// Package strutil is a handful of string helpers (trim, case fold)
// used by ini, kept out of the core per spec.md §1.
// Grounded on original_source/src/utils/sv.hpp (ltrim/rtrim/trim over
// string_view) and utils/string.hpp (toupper/tolower).
package strutil

import "strings"

// TrimLeft strips leading ASCII whitespace, the Go equivalent of
// sv.hpp's ltrim.
func TrimLeft(s string) string {
	i := 0
	for i < len(s) && isSpace(s[i]) {
		i++
	}
	return s[i:]
}

// TrimRight strips trailing ASCII whitespace, the Go equivalent of
// sv.hpp's rtrim.
func TrimRight(s string) string {
	i := len(s)
	for i > 0 && isSpace(s[i-1]) {
		i--
	}
	return s[:i]
}

// Trim strips leading and trailing ASCII whitespace, the Go equivalent
// of sv.hpp's trim.
func Trim(s string) string {
	return TrimRight(TrimLeft(s))
}

// EqualFold reports whether a and b are equal under Unicode simple case
// folding (strings.EqualFold).
func EqualFold(a, b string) bool {
	return strings.EqualFold(a, b)
}

func isSpace(c byte) bool {
	switch c {
	case ' ', '\t', '\n', '\v', '\f', '\r':
		return true
	default:
		return false
	}
}
