package secrets

import (
	"bytes"
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIterations = 1000

func newTestSealer(t *testing.T, passphrase string) *Sealer {
	t.Helper()
	s, err := NewSealer(passphrase, WithIterations(testIterations))
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	s := newTestSealer(t, "correct horse")

	sealed, err := s.Seal("sk-ant-api03-secret")
	require.NoError(t, err)
	assert.True(t, IsSealed(sealed))
	assert.NotContains(t, sealed, "secret")

	opened, err := s.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "sk-ant-api03-secret", opened)
}

func TestSealer_NoncesDiffer(t *testing.T) {
	s := newTestSealer(t, "correct horse")

	a, err := s.Seal("same")
	require.NoError(t, err)
	b, err := s.Seal("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func TestSealer_OpensValuesFromAnotherInstance(t *testing.T) {
	first := newTestSealer(t, "correct horse")
	sealed, err := first.Seal("key")
	require.NoError(t, err)

	second := newTestSealer(t, "correct horse")
	opened, err := second.Open(sealed)
	require.NoError(t, err)
	assert.Equal(t, "key", opened)

	wrong := newTestSealer(t, "battery staple")
	_, err = wrong.Open(sealed)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealer_DetectsTampering(t *testing.T) {
	s := newTestSealer(t, "correct horse")
	sealed, err := s.Seal("key")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(sealed, SealedPrefix))
	require.NoError(t, err)
	raw[len(raw)-1] ^= 0xff
	tampered := SealedPrefix + base64.StdEncoding.EncodeToString(raw)

	_, err = s.Open(tampered)
	assert.ErrorIs(t, err, ErrDecryptionFailed)
}

func TestSealer_EdgeCases(t *testing.T) {
	s := newTestSealer(t, "correct horse")

	sealed, err := s.Seal("")
	require.NoError(t, err)
	assert.Empty(t, sealed)

	plain, err := s.Open("sk-legacy-plaintext")
	require.NoError(t, err)
	assert.Equal(t, "sk-legacy-plaintext", plain)

	_, err = s.Open(SealedPrefix + "!!!not base64")
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = s.Open(SealedPrefix + base64.StdEncoding.EncodeToString([]byte("short")))
	assert.ErrorIs(t, err, ErrInvalidCiphertext)

	_, err = NewSealer("")
	assert.ErrorIs(t, err, ErrEmptyPassphrase)
}

func TestDeriveKey(t *testing.T) {
	salt := []byte("0123456789abcdef")

	k1 := DeriveKey([]byte("pw"), salt, testIterations)
	k2 := DeriveKey([]byte("pw"), salt, testIterations)
	k3 := DeriveKey([]byte("pw"), []byte("fedcba9876543210"), testIterations)

	assert.Len(t, k1, KeySize)
	assert.True(t, bytes.Equal(k1, k2))
	assert.False(t, bytes.Equal(k1, k3))
}
