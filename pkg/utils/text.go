package utils

import (
	"strings"
	"unicode"
	"unicode/utf8"
)

// CollapseWhitespace trims s and folds every run of whitespace into a single
// space, keeping newlines.
func CollapseWhitespace(s string) string {
	var b strings.Builder
	b.Grow(len(s))

	pending := rune(0)
	for _, r := range strings.TrimSpace(s) {
		if unicode.IsSpace(r) {
			if r == '\n' {
				pending = '\n'
			} else if pending == 0 {
				pending = ' '
			}
			continue
		}
		if pending != 0 {
			b.WriteRune(pending)
			pending = 0
		}
		b.WriteRune(r)
	}
	return b.String()
}

// RuneCount is the length users see.
func RuneCount(s string) int {
	return utf8.RuneCountInString(s)
}
