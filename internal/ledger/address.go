package ledger

import (
	"fmt"
	"strings"
)

// AddressLength is the byte length of addresses and object ids.
const AddressLength = 32

// ClockObjectID is the shared system clock.
const ClockObjectID = "0x0000000000000000000000000000000000000000000000000000000000000006"

// NormalizeAddress returns the canonical form of an address or object id:
// lowercase, 0x-prefixed, left-padded to 64 hex digits.
func NormalizeAddress(addr string) (string, error) {
	trimmed := strings.TrimSpace(addr)
	if strings.HasPrefix(trimmed, "0x") || strings.HasPrefix(trimmed, "0X") {
		trimmed = trimmed[2:]
	}
	if trimmed == "" {
		return "", fmt.Errorf("empty address")
	}
	if len(trimmed) > AddressLength*2 {
		return "", fmt.Errorf("address too long: %d hex digits", len(trimmed))
	}
	for _, c := range trimmed {
		if (c >= '0' && c <= '9') ||
			(c >= 'a' && c <= 'f') ||
			(c >= 'A' && c <= 'F') {
			continue
		}
		return "", fmt.Errorf("invalid hex character %q in address", c)
	}
	return "0x" + strings.Repeat("0", AddressLength*2-len(trimmed)) + strings.ToLower(trimmed), nil
}

// IsValidAddress reports whether addr normalizes cleanly.
func IsValidAddress(addr string) bool {
	_, err := NormalizeAddress(addr)
	return err == nil
}

// SameAddress compares two addresses in canonical form. Malformed input never matches.
func SameAddress(a, b string) bool {
	na, err := NormalizeAddress(a)
	if err != nil {
		return false
	}
	nb, err := NormalizeAddress(b)
	if err != nil {
		return false
	}
	return na == nb
}
