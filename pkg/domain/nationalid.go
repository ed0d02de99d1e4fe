package domain

import "strings"

// NationalIDLength is the number of digits in a CPF.
const NationalIDLength = 11

// maskedNationalIDLength is NationalIDLength digits plus the "..-" separators.
const maskedNationalIDLength = NationalIDLength + 3

// Messages surfaced next to the identifier field.
const (
	MsgNationalIDIncomplete = "CPF deve ter 11 dígitos"
	MsgNationalIDInvalid    = "CPF inválido. Verifique os números digitados."
)

// NationalIDCheck is the field-level validation state of an identifier.
// Invariant: Valid and a non-empty Error are mutually exclusive; both are
// zero for an empty identifier.
type NationalIDCheck struct {
	Error string `json:"error,omitempty"`
	Valid bool   `json:"valid"`
}

// NationalIDDigits strips every non-digit character from s.
func NationalIDDigits(s string) string {
	var b strings.Builder
	b.Grow(len(s))
	for _, r := range s {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// ValidNationalID reports whether s carries a CPF with correct check digits.
// Non-digit characters are ignored, so both raw and masked forms are accepted.
func ValidNationalID(s string) bool {
	digits := NationalIDDigits(s)
	if len(digits) != NationalIDLength {
		return false
	}
	if allSame(digits) {
		return false
	}

	d := make([]int, NationalIDLength)
	for i := range digits {
		d[i] = int(digits[i] - '0')
	}

	return checkDigit(d[:9]) == d[9] && checkDigit(d[:10]) == d[10]
}

// checkDigit computes the mod-11 verifier over prefix using descending
// weights that start at len(prefix)+1.
func checkDigit(prefix []int) int {
	sum := 0
	weight := len(prefix) + 1
	for _, n := range prefix {
		sum += n * weight
		weight--
	}
	rest := (sum * 10) % 11
	if rest == 10 || rest == 11 {
		return 0
	}
	return rest
}

func allSame(digits string) bool {
	for i := 1; i < len(digits); i++ {
		if digits[i] != digits[0] {
			return false
		}
	}
	return true
}

// MaskNationalID renders input progressively as ###.###.###-##.
// A separator only appears once a digit follows it, and digits beyond the
// eleventh are dropped. Masking an already masked value returns it unchanged.
func MaskNationalID(input string) string {
	digits := NationalIDDigits(input)
	if len(digits) > NationalIDLength {
		digits = digits[:NationalIDLength]
	}

	var b strings.Builder
	b.Grow(maskedNationalIDLength)
	for i := range digits {
		switch i {
		case 3, 6:
			b.WriteByte('.')
		case 9:
			b.WriteByte('-')
		}
		b.WriteByte(digits[i])
	}
	return b.String()
}

// CheckNationalID derives the validation state shown while the identifier is
// typed: nothing for an empty field, an "incomplete" message below eleven
// digits, and the checksum verdict at eleven.
func CheckNationalID(identifier string) NationalIDCheck {
	digits := NationalIDDigits(identifier)
	switch {
	case digits == "":
		return NationalIDCheck{}
	case len(digits) < NationalIDLength:
		return NationalIDCheck{Error: MsgNationalIDIncomplete}
	case ValidNationalID(digits):
		return NationalIDCheck{Valid: true}
	default:
		return NationalIDCheck{Error: MsgNationalIDInvalid}
	}
}
