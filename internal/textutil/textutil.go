// Package textutil has the small string helpers shared by extraction and
// report building.
package textutil

import "strings"

// Truncate returns the first n characters of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	i := 0
	for pos := range s {
		if i == n {
			return s[:pos]
		}
		i++
	}
	return s
}

// Ellipsize truncates s to n characters and appends "..." when it was cut.
func Ellipsize(s string, n int) string {
	t := Truncate(s, n)
	if len(t) < len(s) {
		return t + "..."
	}
	return t
}

// CollapseSpace replaces every run of whitespace with one space and trims the ends.
func CollapseSpace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// FirstNonEmpty returns the first argument that is not blank.
func FirstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
