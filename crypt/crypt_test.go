package crypt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKeyAgreement(t *testing.T) {
	a, err := GenerateKeyPair()
	require.NoError(t, err)
	b, err := GenerateKeyPair()
	require.NoError(t, err)

	s1, err := a.SharedSecret(b.Public)
	require.NoError(t, err)
	s2, err := b.SharedSecret(a.Public)
	require.NoError(t, err)
	assert.Equal(t, s1, s2)

	_, err = a.SharedSecret([]byte{1, 2, 3})
	assert.Error(t, err)
}

func TestDeriveKeys(t *testing.T) {
	keys, err := DeriveKeys([]byte("secret"), []byte("salt"), "test", 3)
	require.NoError(t, err)
	require.Len(t, keys, 3)
	assert.Len(t, keys[0], KeySize)
	assert.NotEqual(t, keys[0], keys[1])

	again, err := DeriveKeys([]byte("secret"), []byte("salt"), "test", 3)
	require.NoError(t, err)
	assert.Equal(t, keys, again)

	other, err := DeriveKeys([]byte("secret"), []byte("salt"), "other", 1)
	require.NoError(t, err)
	assert.NotEqual(t, keys[0], other[0])
}

func TestSealOpen(t *testing.T) {
	key, err := RandomBytes(KeySize)
	require.NoError(t, err)
	s, err := NewSealer(key)
	require.NoError(t, err)
	o, err := NewOpener(key)
	require.NoError(t, err)

	n0, c0, err := s.Seal([]byte("first"), nil)
	require.NoError(t, err)
	n1, c1, err := s.Seal([]byte("second"), nil)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), n0)
	assert.Equal(t, uint64(1), n1)

	p, err := o.Open(n0, c0, nil)
	require.NoError(t, err)
	assert.Equal(t, "first", string(p))
	p, err = o.Open(n1, c1, nil)
	require.NoError(t, err)
	assert.Equal(t, "second", string(p))

	_, err = o.Open(n0, c0, nil)
	assert.ErrorIs(t, err, ErrReplay)
}

func TestOpenRejectsTampering(t *testing.T) {
	key, err := RandomBytes(KeySize)
	require.NoError(t, err)
	s, _ := NewSealer(key)
	o, _ := NewOpener(key)

	n, c, err := s.Seal([]byte("payload"), []byte("ad"))
	require.NoError(t, err)

	c[0] ^= 0xff
	_, err = o.Open(n, c, []byte("ad"))
	assert.ErrorIs(t, err, ErrDecrypt)

	// a failed open does not advance the counter
	c[0] ^= 0xff
	_, err = o.Open(n, c, []byte("other ad"))
	assert.ErrorIs(t, err, ErrDecrypt)
	_, err = o.Open(n, c, []byte("ad"))
	assert.NoError(t, err)
}

func TestOpenAllowsGaps(t *testing.T) {
	key, _ := RandomBytes(KeySize)
	s, _ := NewSealer(key)
	o, _ := NewOpener(key)

	_, _, _ = s.Seal([]byte("lost"), nil)
	n, c, err := s.Seal([]byte("kept"), nil)
	require.NoError(t, err)

	p, err := o.Open(n, c, nil)
	require.NoError(t, err)
	assert.Equal(t, "kept", string(p))
}

func TestTranscriptHash(t *testing.T) {
	assert.Equal(t, TranscriptHash([]byte("ab"), []byte("c")), TranscriptHash([]byte("a"), []byte("bc")))
	assert.Len(t, TranscriptHash(), 32)
	assert.Equal(t, "0a0b", HexEncode([]byte{10, 11}))
}
