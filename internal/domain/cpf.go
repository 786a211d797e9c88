package domain

import "strings"

// CPFLength is the number of digits in a Brazilian CPF.
const CPFLength = 11

// CPFDigits strips everything but decimal digits from s.
func CPFDigits(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// FormatCPF renders an 11-digit CPF with the display mask 000.000.000-00.
// Formatting an already-masked value yields the same output, so the mask
// can be re-applied on every keystroke. Inputs without 11 digits are
// returned digits-only, unmasked.
func FormatCPF(s string) string {
	digits := CPFDigits(s)
	if len(digits) != CPFLength {
		return digits
	}
	return digits[:3] + "." + digits[3:6] + "." + digits[6:9] + "-" + digits[9:]
}

// ValidCPF reports whether s carries exactly 11 digits once unmasked.
func ValidCPF(s string) bool {
	return len(CPFDigits(s)) == CPFLength
}
