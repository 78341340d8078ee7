// Package textutil cleans up text coming from pages and models.
package textutil

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

// Truncate shortens s to at most n bytes on a rune boundary.
func Truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

var codeFenceRegex = regexp.MustCompile("(?s)^```[a-zA-Z0-9_-]*\\s*\\n?(.*?)\\s*```$")

// StripCodeFences removes a single markdown code fence wrapping the whole of s.
func StripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	groups := codeFenceRegex.FindStringSubmatch(s)
	if groups == nil {
		return s
	}
	return strings.TrimSpace(groups[1])
}
