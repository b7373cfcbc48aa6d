package utils

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"strings"
)

// GenerateCode returns n random bytes as an upper-case hex string.
func GenerateCode(n int) (string, error) {
	byt := make([]byte, n)

	if _, err := rand.Read(byt); err != nil {
		return "", err
	}

	return strings.ToUpper(hex.EncodeToString(byt)), nil
}

// BookingReference builds the human-facing code printed on vouchers,
// e.g. "TRV-3F9A2C".
func BookingReference() (string, error) {
	code, err := GenerateCode(3)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("TRV-%s", code), nil
}
