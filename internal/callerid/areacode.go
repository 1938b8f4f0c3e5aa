package callerid

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// ExtractAreaCode derives a 3-digit NANP area code from a raw phone
// number string.
//
// This is a positional heuristic, not full E.164 parsing: it handles the
// common 10- and 11-digit North American shapes and approximates longer
// inputs by their last 10 digits. Too-short inputs are unclassifiable and
// return ok=false.
func ExtractAreaCode(phone string) (string, bool) {
	digits := stripNonDigits(phone)
	switch {
	case len(digits) < 10:
		return "", false
	case len(digits) == 11 && digits[0] == '1':
		return digits[1:4], true
	case len(digits) == 10:
		return digits[:3], true
	default:
		// Approximate: assume the national number is the last 10 digits.
		start := len(digits) - 10
		return digits[start : start+3], true
	}
}

func stripNonDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// NormalizeNumber formats a number as E.164 when it parses as a valid US
// number, falling back to the trimmed input otherwise. Used at import
// time; selection keeps the positional heuristic above.
func NormalizeNumber(raw string) string {
	trimmed := strings.TrimSpace(raw)
	parsed, err := phonenumbers.Parse(trimmed, "US")
	if err != nil || !phonenumbers.IsValidNumber(parsed) {
		return trimmed
	}
	return phonenumbers.Format(parsed, phonenumbers.E164)
}
