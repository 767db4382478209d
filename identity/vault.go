package identity

import (
	"crypto/ed25519"
	"fmt"
	"sync"
)

// Vault keeps the private keys of local identities in memory.
type Vault struct {
	mu   sync.RWMutex
	keys map[Identifier]ed25519.PrivateKey
}

// NewVault creates an empty vault.
func NewVault() *Vault {
	return &Vault{keys: make(map[Identifier]ed25519.PrivateKey)}
}

// Store saves the private key of id.
func (v *Vault) Store(id Identifier, key ed25519.PrivateKey) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.keys[id] = key
}

// Has reports whether the vault holds the key of id.
func (v *Vault) Has(id Identifier) bool {
	v.mu.RLock()
	defer v.mu.RUnlock()
	_, ok := v.keys[id]
	return ok
}

// Sign signs data with the key of id.
func (v *Vault) Sign(id Identifier, data []byte) ([]byte, error) {
	v.mu.RLock()
	key, ok := v.keys[id]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNoPrivateKey, id)
	}
	return ed25519.Sign(key, data), nil
}
