// Package token generates the short opaque identifiers embedded in public
// tracking links. Tokens correlate an outbound email with a recipient
// without exposing internal row IDs.
package token

import (
	"crypto/rand"
	"fmt"
)

// DefaultLength is the tracking identifier length used when callers pass 0.
const DefaultLength = 12

const alphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789"

// maxUnbiased is the largest multiple of len(alphabet) that fits in a byte.
// Bytes at or above it are rejected so every alphabet character is equally
// likely; a plain b % 62 would skew toward the first 256 % 62 characters.
const maxUnbiased = 256 - 256%len(alphabet)

// New returns a URL-safe alphanumeric token of the given length drawn from
// crypto/rand. The generator does not guarantee global uniqueness; callers
// inserting the token under a unique index must treat a constraint violation
// as a signal to regenerate and retry.
func New(length int) (string, error) {
	if length <= 0 {
		length = DefaultLength
	}

	out := make([]byte, 0, length)
	buf := make([]byte, length)
	for len(out) < length {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("read random bytes: %w", err)
		}
		for _, b := range buf {
			if int(b) >= maxUnbiased {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == length {
				break
			}
		}
	}
	return string(out), nil
}
