package identity

import (
	"crypto/ed25519"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// IdentifierPrefix starts every identifier.
const IdentifierPrefix = "P"

// Identifier is the public name of an identity: "P" followed by the hex
// sha256 of its public key.
type Identifier string

// IdentifierFromPublicKey computes the identifier of key.
func IdentifierFromPublicKey(key ed25519.PublicKey) Identifier {
	sum := sha256.Sum256(key)
	return Identifier(IdentifierPrefix + hex.EncodeToString(sum[:]))
}

// ParseIdentifier validates s.
func ParseIdentifier(s string) (Identifier, error) {
	if !strings.HasPrefix(s, IdentifierPrefix) {
		return "", fmt.Errorf("%w: %q must start with %s", ErrInvalidIdentifier, s, IdentifierPrefix)
	}
	raw, err := hex.DecodeString(s[len(IdentifierPrefix):])
	if err != nil || len(raw) != sha256.Size {
		return "", fmt.Errorf("%w: %q", ErrInvalidIdentifier, s)
	}
	return Identifier(s), nil
}

// String returns the identifier.
func (i Identifier) String() string {
	return string(i)
}
