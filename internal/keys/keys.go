// Package keys provisions the symmetric key that opens an endpoint's
// encrypted cache. The key itself is random; a passphrase only wraps it at
// rest, so changing the cipher suite or rotating keys is out of scope.
package keys

import (
	"crypto/aes"
	gocipher "crypto/cipher"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"golang.org/x/crypto/argon2"

	"github.com/ZalaPanda/redmine-time-spender-sub000/internal/cipher"
)

const (
	argonTime    = 1
	argonMemory  = 64 * 1024
	argonThreads = 4

	saltLength = 16
	keyVersion = 1

	keyFilePermissions = 0600
)

// ErrWrongPassphrase is returned when the wrapped key cannot be opened with
// the supplied passphrase.
var ErrWrongPassphrase = errors.New("keys: wrong passphrase")

// ErrNotProvisioned is returned when no keyfile exists for the endpoint yet.
var ErrNotProvisioned = errors.New("keys: endpoint key not provisioned")

type header struct {
	Version      int       `json:"version"`
	KeyAlgorithm string    `json:"key_algorithm"`
	Salt         string    `json:"salt"`
	CreatedAt    time.Time `json:"created_at"`
}

type container struct {
	Header header `json:"header"`
	Data   string `json:"data"` // hex, nonce||ciphertext of the raw key
}

// Provision generates a fresh random 32-byte key for an endpoint, wraps it
// under the passphrase and writes the keyfile. An existing keyfile is never
// overwritten.
func Provision(path, passphrase string) ([]byte, error) {
	if _, err := os.Stat(path); err == nil {
		return nil, fmt.Errorf("keys: keyfile %s already exists", path)
	}

	key := make([]byte, cipher.KeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, fmt.Errorf("keys: generate key: %w", err)
	}

	salt := make([]byte, saltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("keys: generate salt: %w", err)
	}

	wrapped, err := wrap(deriveKEK(passphrase, salt), key)
	if err != nil {
		return nil, err
	}

	c := container{
		Header: header{
			Version:      keyVersion,
			KeyAlgorithm: "Argon2id",
			Salt:         hex.EncodeToString(salt),
			CreatedAt:    time.Now().UTC(),
		},
		Data: hex.EncodeToString(wrapped),
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("keys: serialize keyfile: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("keys: create key directory: %w", err)
	}
	if err := os.WriteFile(path, data, keyFilePermissions); err != nil {
		return nil, fmt.Errorf("keys: write keyfile: %w", err)
	}
	return key, nil
}

// Load unwraps the endpoint key from its keyfile using the passphrase.
func Load(path, passphrase string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotProvisioned
	}
	if err != nil {
		return nil, fmt.Errorf("keys: read keyfile: %w", err)
	}

	var c container
	if err := json.Unmarshal(data, &c); err != nil {
		return nil, fmt.Errorf("keys: decode keyfile: %w", err)
	}
	if c.Header.KeyAlgorithm != "Argon2id" {
		return nil, fmt.Errorf("keys: unsupported algorithm %q", c.Header.KeyAlgorithm)
	}

	salt, err := hex.DecodeString(c.Header.Salt)
	if err != nil {
		return nil, fmt.Errorf("keys: decode salt: %w", err)
	}
	wrapped, err := hex.DecodeString(c.Data)
	if err != nil {
		return nil, fmt.Errorf("keys: decode wrapped key: %w", err)
	}

	key, err := unwrap(deriveKEK(passphrase, salt), wrapped)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return key, nil
}

// Exists reports whether a keyfile has been provisioned at path.
func Exists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Remove deletes the keyfile, part of the full wipe-and-reset flow.
func Remove(path string) error {
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("keys: remove keyfile: %w", err)
	}
	return nil
}

func deriveKEK(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, argonTime, argonMemory, argonThreads, cipher.KeySize)
}

func wrap(kek, key []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("keys: %w", err)
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("keys: generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, key, nil), nil
}

func unwrap(kek, wrapped []byte) ([]byte, error) {
	block, err := aes.NewCipher(kek)
	if err != nil {
		return nil, err
	}
	gcm, err := gocipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(wrapped) < gcm.NonceSize() {
		return nil, errors.New("wrapped key too short")
	}
	nonce, ciphertext := wrapped[:gcm.NonceSize()], wrapped[gcm.NonceSize():]
	return gcm.Open(nil, nonce, ciphertext, nil)
}
