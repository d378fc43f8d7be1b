package util

import (
	"html"
	"strings"
)

// SanitizeInput trims and escapes HTML/script-like characters before a
// value is stored or echoed back in a response.
func SanitizeInput(s string) string {
	return html.EscapeString(strings.TrimSpace(s))
}

// ContainsSuspicious reports whether a free-form field carries characters
// or fragments commonly seen in injection attempts.
func ContainsSuspicious(s string) bool {
	lower := strings.ToLower(s)
	for _, frag := range []string{"<", ">", "$", "{", "}", "script", "onerror", "onload"} {
		if strings.Contains(lower, frag) {
			return true
		}
	}
	return false
}
