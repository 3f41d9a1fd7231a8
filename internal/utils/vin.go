package utils

import (
	"fmt"
	"strings"
)

// VINLength is the fixed length of a Vehicle Identification Number.
const VINLength = 17

// ErrInvalidVIN is the human-readable message recorded on submissions
// rejected by local validation.
const ErrInvalidVIN = "invalid VIN"

// NormalizeVIN uppercases and trims a raw VIN string.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.TrimSpace(vin))
}

// ValidateVIN checks the 17-character VIN format: uppercase letters
// excluding I, O and Q, plus digits.
func ValidateVIN(vin string) error {
	if len(vin) != VINLength {
		return fmt.Errorf("%s: expected %d characters, got %d", ErrInvalidVIN, VINLength, len(vin))
	}

	for i := 0; i < len(vin); i++ {
		c := vin[i]
		switch {
		case c >= '0' && c <= '9':
		case c >= 'A' && c <= 'Z' && c != 'I' && c != 'O' && c != 'Q':
		default:
			return fmt.Errorf("%s: illegal character %q at position %d", ErrInvalidVIN, c, i)
		}
	}

	return nil
}

// IsValidVIN reports whether vin passes ValidateVIN.
func IsValidVIN(vin string) bool {
	return ValidateVIN(vin) == nil
}
