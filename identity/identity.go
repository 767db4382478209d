// Package identity manages identities, their attributes and the credentials
// an issuer signs about them.
package identity

import (
	"bytes"
	"crypto/ed25519"
	"encoding/hex"
	"fmt"

	"github.com/davecgh/go-xdr/xdr"
)

const changeVersion = 1

// changeData is the signed part of a key change.
type changeData struct {
	Version   uint32
	PublicKey []byte
}

// change is a self-signed key change. An identity's change history is the
// xdr encoding of its change.
type change struct {
	Data      []byte
	Signature []byte
}

// Identity is the public half of an identity.
type Identity struct {
	identifier    Identifier
	publicKey     ed25519.PublicKey
	changeHistory []byte
}

// newIdentity builds the identity of key. The change history depends only
// on the key, so the same secret always yields the same identity.
func newIdentity(key ed25519.PrivateKey) (*Identity, error) {
	pub := key.Public().(ed25519.PublicKey)
	data, err := xdr.Marshal(changeData{
		Version:   changeVersion,
		PublicKey: pub,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode change: %w", err)
	}

	history, err := xdr.Marshal(change{Data: data, Signature: ed25519.Sign(key, data)})
	if err != nil {
		return nil, fmt.Errorf("failed to encode change history: %w", err)
	}

	return &Identity{
		identifier:    IdentifierFromPublicKey(pub),
		publicKey:     pub,
		changeHistory: history,
	}, nil
}

// ParseIdentity decodes a change history and checks its self-signature.
func ParseIdentity(changeHistory []byte) (*Identity, error) {
	var c change
	rest, err := xdr.Unmarshal(changeHistory, &c)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed", ErrInvalidChange)
	}

	var d changeData
	rest, err = xdr.Unmarshal(c.Data, &d)
	if err != nil || len(rest) != 0 {
		return nil, fmt.Errorf("%w: malformed change", ErrInvalidChange)
	}
	if d.Version != changeVersion {
		return nil, fmt.Errorf("%w: unsupported version %d", ErrInvalidChange, d.Version)
	}
	if len(d.PublicKey) != ed25519.PublicKeySize {
		return nil, fmt.Errorf("%w: public key is %d bytes", ErrInvalidChange, len(d.PublicKey))
	}

	pub := ed25519.PublicKey(d.PublicKey)
	if !ed25519.Verify(pub, c.Data, c.Signature) {
		return nil, fmt.Errorf("%w: change is not self-signed", ErrInvalidSignature)
	}

	history := make([]byte, len(changeHistory))
	copy(history, changeHistory)
	return &Identity{
		identifier:    IdentifierFromPublicKey(pub),
		publicKey:     pub,
		changeHistory: history,
	}, nil
}

// ParseIdentityHex decodes a hex change history.
func ParseIdentityHex(s string) (*Identity, error) {
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidChange, err)
	}
	return ParseIdentity(raw)
}

// Identifier returns the identifier.
func (i *Identity) Identifier() Identifier { return i.identifier }

// PublicKey returns the current public key.
func (i *Identity) PublicKey() ed25519.PublicKey { return i.publicKey }

// ChangeHistory returns the encoded change history.
func (i *Identity) ChangeHistory() []byte {
	out := make([]byte, len(i.changeHistory))
	copy(out, i.changeHistory)
	return out
}

// Export returns the change history as hex.
func (i *Identity) Export() string {
	return hex.EncodeToString(i.changeHistory)
}

// Verify checks sig over data with the identity's key.
func (i *Identity) Verify(data, sig []byte) bool {
	return ed25519.Verify(i.publicKey, data, sig)
}

// Equal reports whether both identities have the same change history.
func (i *Identity) Equal(other *Identity) bool {
	return other != nil && bytes.Equal(i.changeHistory, other.changeHistory)
}

// String prints the identifier and change history.
func (i *Identity) String() string {
	return fmt.Sprintf("Identifier:     %s\nChange history: %s", i.identifier, i.Export())
}
