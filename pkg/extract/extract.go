// Package extract pulls structured contact fields out of free-form message
// text. The inbound router uses it to satisfy collect_email and collect_phone
// actions from whatever the user typed.
package extract

import (
	"regexp"
	"strings"
)

var (
	emailPattern = regexp.MustCompile(`[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}`)
	phonePattern = regexp.MustCompile(`\+?[0-9][0-9\s\-().]{6,}[0-9]`)
)

// Email returns the first email address found in text, or "" when none is
// present.
func Email(text string) string {
	return emailPattern.FindString(text)
}

// Phone returns the first phone-number-looking sequence found in text,
// normalized to digits plus a leading "+" when present. Returns "" when the
// text carries nothing with at least eight digits.
func Phone(text string) string {
	match := phonePattern.FindString(text)
	if match == "" {
		return ""
	}

	var b strings.Builder

	for i, r := range match {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}

		if r == '+' && i == 0 {
			b.WriteRune(r)
		}
	}

	normalized := b.String()
	if len(strings.TrimPrefix(normalized, "+")) < 8 {
		return ""
	}

	return normalized
}
