// File: internal/secrets/sealer.go
package secrets

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/crypto/pbkdf2"
)

// SealedPrefix marks a sealed value: SealedPrefix + base64(salt | nonce | ciphertext).
const SealedPrefix = "ENC:"

const (
	KeySize           = 32
	SaltSize          = 16
	DefaultIterations = 600000
)

var (
	ErrEmptyPassphrase   = errors.New("passphrase cannot be empty")
	ErrInvalidCiphertext = errors.New("invalid sealed value")
	ErrDecryptionFailed  = errors.New("decryption failed: wrong passphrase or tampered data")
)

// Sealer encrypts short secrets with AES-256-GCM under a key derived from a
// passphrase. Each Sealer draws one random salt; keys for salts found in
// values sealed by earlier processes are derived once and cached.
type Sealer struct {
	passphrase []byte
	iterations int
	salt       []byte

	mu    sync.Mutex
	aeads map[string]cipher.AEAD
}

// Option configures a Sealer.
type Option func(*Sealer)

// WithIterations overrides the PBKDF2 iteration count.
func WithIterations(n int) Option {
	return func(s *Sealer) {
		if n > 0 {
			s.iterations = n
		}
	}
}

func NewSealer(passphrase string, opts ...Option) (*Sealer, error) {
	if passphrase == "" {
		return nil, ErrEmptyPassphrase
	}

	salt := make([]byte, SaltSize)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	s := &Sealer{
		passphrase: []byte(passphrase),
		iterations: DefaultIterations,
		salt:       salt,
		aeads:      make(map[string]cipher.AEAD),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Seal encrypts plaintext. The empty string seals to the empty string.
func (s *Sealer) Seal(plaintext string) (string, error) {
	if plaintext == "" {
		return "", nil
	}

	aead, err := s.aead(s.salt)
	if err != nil {
		return "", err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	out := make([]byte, 0, len(s.salt)+len(nonce)+len(plaintext)+aead.Overhead())
	out = append(out, s.salt...)
	out = append(out, nonce...)
	out = aead.Seal(out, nonce, []byte(plaintext), s.salt)

	return SealedPrefix + base64.StdEncoding.EncodeToString(out), nil
}

// Open decrypts a value produced by Seal. Values without SealedPrefix are
// returned unchanged so secrets stored before sealing was enabled still read.
func (s *Sealer) Open(value string) (string, error) {
	if !IsSealed(value) {
		return value, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(value, SealedPrefix))
	if err != nil {
		return "", ErrInvalidCiphertext
	}
	if len(raw) < SaltSize {
		return "", ErrInvalidCiphertext
	}
	salt := raw[:SaltSize]

	aead, err := s.aead(salt)
	if err != nil {
		return "", err
	}
	if len(raw) < SaltSize+aead.NonceSize()+aead.Overhead() {
		return "", ErrInvalidCiphertext
	}
	nonce := raw[SaltSize : SaltSize+aead.NonceSize()]
	ciphertext := raw[SaltSize+aead.NonceSize():]

	plaintext, err := aead.Open(nil, nonce, ciphertext, salt)
	if err != nil {
		return "", ErrDecryptionFailed
	}
	return string(plaintext), nil
}

// IsSealed reports whether value carries the sealed prefix.
func IsSealed(value string) bool {
	return strings.HasPrefix(value, SealedPrefix)
}

// DeriveKey stretches passphrase with PBKDF2-SHA-256.
func DeriveKey(passphrase, salt []byte, iterations int) []byte {
	return pbkdf2.Key(passphrase, salt, iterations, KeySize, sha256.New)
}

func (s *Sealer) aead(salt []byte) (cipher.AEAD, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if aead, ok := s.aeads[string(salt)]; ok {
		return aead, nil
	}

	key := DeriveKey(s.passphrase, salt, s.iterations)
	defer zero(key)

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	s.aeads[string(salt)] = aead
	return aead, nil
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
