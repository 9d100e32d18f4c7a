package common

import (
	"crypto/rand"
	"encoding/hex"
)

// RandBytes returns size cryptographically random bytes. It panics if the
// system randomness source fails, which is not a recoverable condition.
func RandBytes(size int) []byte {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		panic(err)
	}
	return b
}

// RandHexString generates a random hexadecimal string from size random bytes.
// The resulting string is twice as long as size, since each byte expands to
// two hex characters.
func RandHexString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// WipeBytes overwrites the contents of b with zeros. Useful for removing
// key material from memory after use. A nil slice is a no-op.
func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
