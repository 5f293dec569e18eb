package services

import (
	"strings"
	"unicode/utf8"

	"github.com/sneakerhub/storefront/internal/domain"
)

const (
	cardNumberDigits = 16
	cvvDigits        = 3
	postalCodeDigits = 5
	maxNameRunes     = 30
)

// Normalize turns raw keystroke input for a checkout field into its canonical display form.
// previous is the field's current value and only matters for expiry, where it tells a
// deletion apart from an insertion. Unknown fields pass through unchanged.
func Normalize(field string, raw string, previous string) string {
	switch field {
	case domain.FieldCardNumber:
		return groupDigits(digitsOnly(raw, cardNumberDigits), 4, "-")
	case domain.FieldExpiry:
		return normalizeExpiry(raw, previous)
	case domain.FieldCVV:
		return digitsOnly(raw, cvvDigits)
	case domain.FieldFirstName, domain.FieldLastName:
		return truncateRunes(raw, maxNameRunes)
	case domain.FieldPostalCode:
		return digitsOnly(raw, postalCodeDigits)
	case domain.FieldPhone:
		return formatPhone(digitsOnly(raw, 0))
	default:
		return raw
	}
}

// normalizeExpiry builds MM/YY one digit at a time. Slashes in raw are ignored. On deletion
// the value is kept as typed, except that erasing back to three characters drops the year
// digit as well so the separator disappears in one keystroke.
func normalizeExpiry(raw string, previous string) string {
	value := strings.ReplaceAll(raw, "/", "")
	if len(value) < len(previous) {
		if len(value) == 3 {
			return value[:2]
		}
		return value
	}

	digits := digitsOnly(value, 0)
	if len(digits) == 1 && digits[0] > '1' {
		digits = "0" + digits
	}
	if len(digits) >= 2 {
		first, second := digits[0], digits[1]
		if (first == '1' && second > '2') || (first == '0' && second == '0') {
			digits = digits[:1]
		}
	}
	if len(digits) >= 2 {
		end := len(digits)
		if end > 4 {
			end = 4
		}
		return digits[:2] + "/" + digits[2:end]
	}
	return digits
}

func formatPhone(d string) string {
	switch n := len(d); {
	case n == 0:
		return ""
	case n <= 2:
		return "+" + d
	case n <= 5:
		return "+" + d[:2] + " (" + d[2:]
	case n <= 9:
		return "+" + d[:2] + " (" + d[2:5] + ") " + d[5:]
	default:
		end := n
		if end > 13 {
			end = 13
		}
		return "+" + d[:2] + " (" + d[2:5] + ") " + d[5:9] + "-" + d[9:end]
	}
}

// digitsOnly strips every non ASCII digit and truncates to max digits when max > 0.
func digitsOnly(s string, max int) string {
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if c := s[i]; c >= '0' && c <= '9' {
			b.WriteByte(c)
			if max > 0 && b.Len() == max {
				break
			}
		}
	}
	return b.String()
}

func groupDigits(digits string, size int, sep string) string {
	if len(digits) <= size {
		return digits
	}
	parts := make([]string, 0, (len(digits)+size-1)/size)
	for i := 0; i < len(digits); i += size {
		end := i + size
		if end > len(digits) {
			end = len(digits)
		}
		parts = append(parts, digits[i:end])
	}
	return strings.Join(parts, sep)
}

func truncateRunes(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
