// Package cipher seals record payloads for the encrypted store.
package cipher

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
)

// KeySize is the only supported key length (AES-256).
const KeySize = 32

// Cipher transforms a structured payload into an opaque blob and back.
// Decrypt reports ok=false instead of an error: a blob that fails
// authentication is treated by callers as "no payload", not as a fault.
type Cipher interface {
	Encrypt(v any) ([]byte, error)
	Decrypt(blob []byte) (json.RawMessage, bool)
}

// AESGCM is the production cipher: AES-256-GCM with a fresh random nonce
// per call, emitted as nonce||ciphertext in a single slice.
type AESGCM struct {
	aead gocipher.AEAD
}

// NewAESGCM builds a cipher around a fixed 32-byte key.
func NewAESGCM(key []byte) (*AESGCM, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("cipher: key must be %d bytes, got %d", KeySize, len(key))
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	aead, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher: %w", err)
	}
	return &AESGCM{aead: aead}, nil
}

// Encrypt serializes v to JSON and seals it.
func (c *AESGCM) Encrypt(v any) ([]byte, error) {
	plaintext, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cipher: marshal payload: %w", err)
	}
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("cipher: generate nonce: %w", err)
	}
	return c.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Decrypt splits the leading nonce off blob and opens the remainder.
// A truncated blob, a foreign key or a corrupt ciphertext all yield
// (nil, false).
func (c *AESGCM) Decrypt(blob []byte) (json.RawMessage, bool) {
	nonceSize := c.aead.NonceSize()
	if len(blob) < nonceSize {
		return nil, false
	}
	nonce, ciphertext := blob[:nonceSize], blob[nonceSize:]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, false
	}
	return plaintext, true
}

// Plain is the identity transform, used before an endpoint has a key and
// during a full wipe-and-reset. Payloads are stored as bare JSON.
type Plain struct{}

func (Plain) Encrypt(v any) ([]byte, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("cipher: marshal payload: %w", err)
	}
	return b, nil
}

func (Plain) Decrypt(blob []byte) (json.RawMessage, bool) {
	if len(blob) == 0 || !json.Valid(blob) {
		return nil, false
	}
	return blob, true
}
