package common

import (
	"crypto/rand"
	"encoding/hex"
)

// MakeRandHexString returns size random bytes encoded as hex, so the result
// is 2*size characters long. Used to suggest fresh shared secrets.
func MakeRandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeByteArray zeroes b. Secrets read from the terminal are wiped once
// they have been copied into the coordination config.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
