package sanitizer

import (
	"strings"
	"unicode"
)

// SanitizeTitle trims and collapses whitespace and strips control characters
// from user-supplied reservation titles before validation sees them.
func SanitizeTitle(s string) string {
	return strings.Join(strings.Fields(stripControl(s)), " ")
}

// SanitizeDescription keeps intentional newlines but removes other control
// characters and trailing whitespace per line.
func SanitizeDescription(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(stripControl(line), " \t")
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

func stripControl(s string) string {
	return strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
}
