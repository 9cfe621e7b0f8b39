// Package cryptox holds the small set of primitives the session agent needs:
// authenticated encryption for data at rest and random values for OAuth
// state, nonce and PKCE parameters.
package cryptox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for passphrase derived keys. Derivation happens once
// per process so the cost stays well under a second on a laptop.
const (
	kdfTime    = 3
	kdfMemory  = 64 * 1024
	kdfThreads = 2
	KeySize    = 32
)

var ErrCiphertextTooShort = errors.New("cryptox: ciphertext too short")

// DeriveKey stretches passphrase into a 32 byte AES-256 key. The salt is
// hashed first so any label (for example a storage key prefix) can be used.
func DeriveKey(passphrase, salt string) []byte {
	s := sha256.Sum256([]byte(salt))
	return argon2.IDKey([]byte(passphrase), s[:], kdfTime, kdfMemory, kdfThreads, KeySize)
}

// Sealer encrypts with AES-256-GCM. Output layout: nonce | ciphertext | tag.
type Sealer struct {
	aead cipher.AEAD
}

func NewSealer(key []byte) (*Sealer, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Sealer{aead: gcm}, nil
}

// Seal encrypts plaintext with a fresh random nonce. additional is
// authenticated but not encrypted; Open must be given the same value.
func (s *Sealer) Seal(plaintext, additional []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, additional), nil
}

func (s *Sealer) Open(sealed, additional []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n+s.aead.Overhead() {
		return nil, ErrCiphertextTooShort
	}

	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], additional)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}
