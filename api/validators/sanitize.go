package validators

import (
	"strings"
	"unicode"
)

// SanitizeString trims input, drops control characters and caps the result
// at maxLen runes. Free text from buyers and admins lands in the ledger and
// in provider metadata, so it must stay printable and valid UTF-8.
func SanitizeString(input string, maxLen int) string {
	cleaned := strings.Map(func(r rune) rune {
		if r == unicode.ReplacementChar || (unicode.IsControl(r) && r != '\n') {
			return -1
		}
		return r
	}, strings.TrimSpace(input))
	if maxLen <= 0 {
		return cleaned
	}
	runes := []rune(cleaned)
	if len(runes) > maxLen {
		return strings.TrimSpace(string(runes[:maxLen]))
	}
	return cleaned
}
