package orders

import (
	"crypto/rand"
	"fmt"
)

const (
	referenceLength   = 10
	referenceAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
)

// newReference returns a random uppercase alphanumeric order reference.
func newReference() (string, error) {
	buf := make([]byte, referenceLength)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate reference: %w", err)
	}
	// 256 % 36 bias is acceptable for a lookup reference
	for i, b := range buf {
		buf[i] = referenceAlphabet[int(b)%len(referenceAlphabet)]
	}
	return string(buf), nil
}
