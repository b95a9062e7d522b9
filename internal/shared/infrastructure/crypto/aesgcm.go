// Package crypto seals small blobs (the saved client session) with AES-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"

	"golang.org/x/crypto/argon2"
)

// Sealer encrypts and authenticates data.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// ErrCiphertextTooShort is returned for input shorter than a nonce.
var ErrCiphertextTooShort = errors.New("ciphertext too short")

// AESGCM seals with a random nonce prepended to the ciphertext.
type AESGCM struct {
	aead cipher.AEAD
}

// NewAESGCM uses a raw 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != 32 {
		return nil, fmt.Errorf("encryption key must be 32 bytes, got %d", len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &AESGCM{aead: aead}, nil
}

// NewAESGCMFromBase64Key decodes a standard base64 32-byte key.
func NewAESGCMFromBase64Key(encoded string) (*AESGCM, error) {
	if encoded == "" {
		return nil, errors.New("encryption key is empty")
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewAESGCM(key)
}

// NewAESGCMFromPassphrase stretches a passphrase with Argon2id. The same
// passphrase and salt always give the same key.
func NewAESGCMFromPassphrase(passphrase string, salt []byte) (*AESGCM, error) {
	if passphrase == "" {
		return nil, errors.New("passphrase is empty")
	}
	return NewAESGCM(argon2.IDKey([]byte(passphrase), salt, 1, 64*1024, 4, 32))
}

func (g *AESGCM) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, g.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return g.aead.Seal(nonce, nonce, plaintext, nil), nil
}

func (g *AESGCM) Open(sealed []byte) ([]byte, error) {
	n := g.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextTooShort
	}
	return g.aead.Open(nil, sealed[:n], sealed[n:], nil)
}
