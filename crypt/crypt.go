// Package crypt holds the primitives of the secure channel handshake:
// X25519 key agreement, HKDF key derivation and ChaCha20-Poly1305 with
// counter nonces.
package crypt

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/binary"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"math"
	"sync"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/curve25519"
	"golang.org/x/crypto/hkdf"
)

// KeySize is the size of X25519 keys and of derived symmetric keys.
const KeySize = 32

var (
	ErrReplay         = errors.New("nonce already used")
	ErrNonceExhausted = errors.New("nonce space exhausted")
	ErrDecrypt        = errors.New("message authentication failed")
)

// RandomBytes returns n random bytes.
func RandomBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := io.ReadFull(rand.Reader, b); err != nil {
		return nil, fmt.Errorf("failed to read random bytes: %w", err)
	}
	return b, nil
}

// KeyPair is an X25519 key pair.
type KeyPair struct {
	Private []byte
	Public  []byte
}

// GenerateKeyPair creates an ephemeral X25519 key pair.
func GenerateKeyPair() (*KeyPair, error) {
	priv, err := RandomBytes(KeySize)
	if err != nil {
		return nil, err
	}
	pub, err := curve25519.X25519(priv, curve25519.Basepoint)
	if err != nil {
		return nil, fmt.Errorf("failed to derive public key: %w", err)
	}
	return &KeyPair{Private: priv, Public: pub}, nil
}

// SharedSecret performs X25519 with the peer's public key.
func (k *KeyPair) SharedSecret(peerPublic []byte) ([]byte, error) {
	if len(peerPublic) != KeySize {
		return nil, fmt.Errorf("peer public key is %d bytes, want %d", len(peerPublic), KeySize)
	}
	secret, err := curve25519.X25519(k.Private, peerPublic)
	if err != nil {
		return nil, fmt.Errorf("key agreement failed: %w", err)
	}
	return secret, nil
}

// DeriveKeys expands secret into n keys of KeySize bytes with HKDF-SHA256.
func DeriveKeys(secret, salt []byte, info string, n int) ([][]byte, error) {
	r := hkdf.New(sha256.New, secret, salt, []byte(info))
	keys := make([][]byte, n)
	for i := range keys {
		keys[i] = make([]byte, KeySize)
		if _, err := io.ReadFull(r, keys[i]); err != nil {
			return nil, fmt.Errorf("failed to derive key: %w", err)
		}
	}
	return keys, nil
}

// TranscriptHash returns sha256 over the concatenation of parts.
func TranscriptHash(parts ...[]byte) []byte {
	h := sha256.New()
	for _, p := range parts {
		h.Write(p)
	}
	return h.Sum(nil)
}

// HexEncode encodes bytes to a hex string
func HexEncode(data []byte) string {
	return hex.EncodeToString(data)
}

// HexDecode decodes a hex string to bytes
func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func nonceBytes(n uint64) []byte {
	nonce := make([]byte, chacha20poly1305.NonceSize)
	binary.BigEndian.PutUint64(nonce[chacha20poly1305.NonceSize-8:], n)
	return nonce
}

// Sealer encrypts one direction of a channel. Every call uses the next
// counter nonce.
type Sealer struct {
	mu    sync.Mutex
	aead  cipher.AEAD
	nonce uint64
}

// NewSealer creates a sealer for key.
func NewSealer(key []byte) (*Sealer, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &Sealer{aead: aead}, nil
}

// Seal encrypts plaintext and returns the nonce it used.
func (s *Sealer) Seal(plaintext, ad []byte) (uint64, []byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.nonce == math.MaxUint64 {
		return 0, nil, ErrNonceExhausted
	}
	n := s.nonce
	s.nonce++
	return n, s.aead.Seal(nil, nonceBytes(n), plaintext, ad), nil
}

// Opener decrypts one direction of a channel. Nonces must strictly
// increase; anything at or below the last accepted nonce is a replay.
type Opener struct {
	mu   sync.Mutex
	aead cipher.AEAD
	next uint64
}

// NewOpener creates an opener for key.
func NewOpener(key []byte) (*Opener, error) {
	aead, err := chacha20poly1305.New(key)
	if err != nil {
		return nil, err
	}
	return &Opener{aead: aead}, nil
}

// Open authenticates and decrypts ciphertext sealed with nonce.
func (o *Opener) Open(nonce uint64, ciphertext, ad []byte) ([]byte, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if nonce < o.next {
		return nil, fmt.Errorf("%w: %d", ErrReplay, nonce)
	}
	plaintext, err := o.aead.Open(nil, nonceBytes(nonce), ciphertext, ad)
	if err != nil {
		return nil, ErrDecrypt
	}
	o.next = nonce + 1
	return plaintext, nil
}
