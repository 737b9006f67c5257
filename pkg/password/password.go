// Package password generates the one-time credentials handed to citizens
// imported from another operator. The random source is an explicit parameter
// so callers inject crypto/rand in production and a deterministic reader in
// tests.
package password

import (
	"fmt"
	"io"
)

// Charset is the fixed alphabet for generated passwords. Mixed-case
// alphanumerics plus a small symbol set, matching what operator support
// staff can read to citizens over the phone.
const Charset = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789!@#$%^&*"

// Length is the number of characters in a generated password.
const Length = 8

// Generate draws Length characters from Charset using random. Rejection
// sampling keeps the distribution uniform across the alphabet.
func Generate(random io.Reader) (string, error) {
	// Largest multiple of len(Charset) below 256; bytes at or above it are
	// discarded to avoid modulo bias.
	limit := byte(256 / len(Charset) * len(Charset))

	out := make([]byte, 0, Length)
	buf := make([]byte, 1)
	for len(out) < Length {
		if _, err := io.ReadFull(random, buf); err != nil {
			return "", fmt.Errorf("read random source: %w", err)
		}
		if buf[0] >= limit {
			continue
		}
		out = append(out, Charset[int(buf[0])%len(Charset)])
	}
	return string(out), nil
}
