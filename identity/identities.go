package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
)

// Identities is the identity store of a node: the known identities, the
// vault with the private keys of local ones and the attribute repository.
type Identities struct {
	vault       *Vault
	repository  *Repository
	credentials *Credentials

	mu    sync.RWMutex
	known map[Identifier]*Identity
}

// NewIdentities creates an empty store.
func NewIdentities() *Identities {
	s := &Identities{
		vault:      NewVault(),
		repository: NewRepository(),
		known:      make(map[Identifier]*Identity),
	}
	s.credentials = newCredentials(s)
	return s
}

// Vault returns the vault.
func (s *Identities) Vault() *Vault { return s.vault }

// Repository returns the attribute repository.
func (s *Identities) Repository() *Repository { return s.repository }

// Credentials returns the credential service backed by this store.
func (s *Identities) Credentials() *Credentials { return s.credentials }

// CreateIdentity creates an identity with a fresh key.
func (s *Identities) CreateIdentity() (*Identity, error) {
	_, key, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return s.addPrivate(key)
}

// IdentityFromSecret creates the identity of a hex 32-byte seed. The same
// seed always gives the same identity.
func (s *Identities) IdentityFromSecret(secretHex string) (*Identity, error) {
	key, err := keyFromSecret(secretHex)
	if err != nil {
		return nil, err
	}
	return s.addPrivate(key)
}

// ImportPrivateIdentity imports a change history together with the secret
// of its current key.
func (s *Identities) ImportPrivateIdentity(changeHistoryHex, secretHex string) (*Identity, error) {
	id, err := ParseIdentityHex(changeHistoryHex)
	if err != nil {
		return nil, err
	}
	key, err := keyFromSecret(secretHex)
	if err != nil {
		return nil, err
	}
	if !key.Public().(ed25519.PublicKey).Equal(id.PublicKey()) {
		return nil, fmt.Errorf("%w: %s", ErrKeyMismatch, id.Identifier())
	}

	s.vault.Store(id.Identifier(), key)
	s.remember(id)
	return id, nil
}

// ImportIdentityHex imports the public identity of a hex change history.
func (s *Identities) ImportIdentityHex(changeHistoryHex string) (*Identity, error) {
	id, err := ParseIdentityHex(changeHistoryHex)
	if err != nil {
		return nil, err
	}
	s.remember(id)
	return id, nil
}

// ImportIdentity imports the public identity of a change history.
func (s *Identities) ImportIdentity(changeHistory []byte) (*Identity, error) {
	id, err := ParseIdentity(changeHistory)
	if err != nil {
		return nil, err
	}
	s.remember(id)
	return id, nil
}

// Get returns a known identity.
func (s *Identities) Get(id Identifier) (*Identity, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ident, ok := s.known[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownIdentity, id)
	}
	return ident, nil
}

// Export returns the hex change history of a known identity.
func (s *Identities) Export(id Identifier) (string, error) {
	ident, err := s.Get(id)
	if err != nil {
		return "", err
	}
	return ident.Export(), nil
}

// Sign signs data with the private key of a local identity.
func (s *Identities) Sign(id Identifier, data []byte) ([]byte, error) {
	return s.vault.Sign(id, data)
}

// Verify checks sig over data against a known identity.
func (s *Identities) Verify(id Identifier, data, sig []byte) error {
	ident, err := s.Get(id)
	if err != nil {
		return err
	}
	if !ident.Verify(data, sig) {
		return fmt.Errorf("%w: by %s", ErrInvalidSignature, id)
	}
	return nil
}

func (s *Identities) addPrivate(key ed25519.PrivateKey) (*Identity, error) {
	id, err := newIdentity(key)
	if err != nil {
		return nil, err
	}
	s.vault.Store(id.Identifier(), key)
	s.remember(id)
	return id, nil
}

func (s *Identities) remember(id *Identity) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.known[id.Identifier()] = id
}

func keyFromSecret(secretHex string) (ed25519.PrivateKey, error) {
	seed, err := hex.DecodeString(secretHex)
	if err != nil {
		return nil, fmt.Errorf("invalid secret: %w", err)
	}
	if len(seed) != ed25519.SeedSize {
		return nil, fmt.Errorf("invalid secret: %d bytes, want %d", len(seed), ed25519.SeedSize)
	}
	return ed25519.NewKeyFromSeed(seed), nil
}
