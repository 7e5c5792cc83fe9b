package common

import (
	"crypto/rand"
	"encoding/base64"
)

// MakeRandURLSafeString generates size random bytes and returns them encoded
// with unpadded base64url, suitable for tokens placed in URLs and JSON.
func MakeRandURLSafeString(size int) (string, error) {
	b := make([]byte, size)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// WipeByteArray overwrites b with zeros. Nil is a no-op.
func WipeByteArray(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
