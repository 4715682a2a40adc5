package utils

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// UTF16Length counts UTF-16 code units, the unit Messenger clients measure
// message length in. Characters outside the BMP count twice.
func UTF16Length(s string) int {
	n := 0
	for _, r := range s {
		if l := len(utf16.Encode([]rune{r})); l > 0 {
			n += l
		} else {
			n++
		}
	}
	return n
}

// Ellipsize shortens s to at most max runes for log output.
func Ellipsize(s string, max int) string {
	if max <= 0 {
		return ""
	}
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	var b strings.Builder
	n := 0
	for _, r := range s {
		if n == max-1 {
			break
		}
		b.WriteRune(r)
		n++
	}
	b.WriteRune('…')
	return b.String()
}
