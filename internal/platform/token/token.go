// Package token generates opaque bearer tokens for sessions and links.
package token

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// defaultBytes is the token entropy in bytes. 32 bytes keeps tokens above
// the 256-bit floor required for unguessable session identifiers.
const defaultBytes = 32

// New returns a random URL-safe token with 256 bits of entropy.
func New() (string, error) {
	return NewFromReader(rand.Reader)
}

// NewFromReader generates a token from the given entropy source.
func NewFromReader(reader io.Reader) (string, error) {
	if reader == nil {
		reader = rand.Reader
	}
	buf := make([]byte, defaultBytes)
	if _, err := io.ReadFull(reader, buf); err != nil {
		return "", fmt.Errorf("generate random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
