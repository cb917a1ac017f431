package game

import "strings"

// NormalizeAddress lowercases and trims a hex wallet address.
func NormalizeAddress(address string) string {
	return strings.ToLower(strings.TrimSpace(address))
}

// SameAddress compares two addresses case-insensitively.
func SameAddress(a, b string) bool {
	return a != "" && NormalizeAddress(a) == NormalizeAddress(b)
}

// NormalizeTxHash lowercases and trims a transaction hash so replay checks
// match however the client cased the hex.
func NormalizeTxHash(hash string) string {
	return strings.ToLower(strings.TrimSpace(hash))
}
