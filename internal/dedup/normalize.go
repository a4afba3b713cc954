package dedup

import (
	"strings"

	"golang.org/x/text/unicode/norm"
)

// NormalizeEmail lowercases and trims an email address for comparison.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// NormalizePhone reduces a phone string to its canonical digit form.
// Russian numbers canonicalize to a leading-7, 11-digit string: an
// 11-digit number starting with 8 has the 8 replaced by 7, and a bare
// 10-digit number gets 7 prepended. Other lengths pass through digits-only.
func NormalizePhone(phone string) string {
	var b strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()

	switch {
	case len(digits) == 11 && digits[0] == '8':
		return "7" + digits[1:]
	case len(digits) == 10:
		return "7" + digits
	default:
		return digits
	}
}

// NormalizeName lowercases a person or organization name and collapses
// internal whitespace. Input is NFC-normalized first so visually identical
// names with different combining sequences compare equal.
func NormalizeName(name string) string {
	name = norm.NFC.String(name)
	fields := strings.Fields(strings.ToLower(name))
	return strings.Join(fields, " ")
}
