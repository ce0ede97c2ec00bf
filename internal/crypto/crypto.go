package crypto

import (
	"crypto/rand"
	"crypto/sha1" // nolint:gosec
)

// RandomBytes returns n bytes read from crypto/rand.
func RandomBytes(n int) ([]byte, error) {
	buf := make([]byte, n)

	if _, err := rand.Read(buf); err != nil {
		return nil, err
	}

	return buf, nil
}

// Sha1 returns SHA-1 sum of provided data. Used as key derivation function
// for stored values, not for anything security related.
func Sha1(data []byte) []byte {
	sum := sha1.Sum(data) // nolint:gosec

	return sum[:]
}
