// Package token generates document identifiers and opaque credentials.
package token

import (
	"crypto/rand"
	"encoding/hex"
	"fmt"

	"github.com/google/uuid"
)

// NewID returns a new random document identifier.
func NewID() string {
	return uuid.NewString()
}

// New returns a 64-character hex credential from 32 bytes of crypto/rand.
// Used for invitation tokens and session tokens, which must be unguessable.
func New() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(b), nil
}
