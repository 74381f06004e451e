package util

import (
	"crypto/rand"
	"encoding/hex"
)

// RandomHex returns 2*n lowercase hex characters drawn from crypto/rand.
func RandomHex(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
