package storage

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

// keySalt is fixed so the same passphrase always derives the same key across restarts.
var keySalt = []byte("petition-web/session-key/v1")

// Encrypt encrypts plaintext using AES-GCM with the provided key.
// The key must be 16, 24, or 32 bytes for AES-128, AES-192, or AES-256.
// Returns base64-encoded ciphertext.
func Encrypt(plaintext []byte, key []byte) (string, error) {
	sealed, err := seal(plaintext, key)
	if err != nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt decrypts base64-encoded ciphertext using AES-GCM with the provided key.
func Decrypt(encoded string, key []byte) ([]byte, error) {
	ciphertext, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64: %w", err)
	}
	return open(ciphertext, key)
}

func seal(plaintext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the encrypted data to nonce, so we get nonce + ciphertext + tag
	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func open(ciphertext []byte, key []byte) ([]byte, error) {
	gcm, err := newGCM(key)
	if err != nil {
		return nil, err
	}

	nonceSize := gcm.NonceSize()
	if len(ciphertext) < nonceSize {
		return nil, fmt.Errorf("ciphertext too short")
	}

	nonce, ciphertext := ciphertext[:nonceSize], ciphertext[nonceSize:]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt: %w", err)
	}

	return plaintext, nil
}

func newGCM(key []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// DeriveKey stretches a passphrase into a 32-byte AES-256 key with Argon2id.
func DeriveKey(passphrase string) ([]byte, error) {
	if len(passphrase) < 16 {
		return nil, fmt.Errorf("passphrase must be at least 16 characters")
	}
	return argon2.IDKey([]byte(passphrase), keySalt, 1, 64*1024, 4, 32), nil
}

// Sealer encrypts short string values into URL-safe text, suitable for cookie values.
type Sealer struct {
	key []byte
}

// NewSealer creates a Sealer using a key from DeriveKey.
func NewSealer(key []byte) *Sealer {
	return &Sealer{key: key}
}

// Seal encrypts plaintext and returns it base64url-encoded without padding.
func (s *Sealer) Seal(plaintext string) (string, error) {
	sealed, err := seal([]byte(plaintext), s.key)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal.
func (s *Sealer) Open(sealed string) (string, error) {
	ciphertext, err := base64.RawURLEncoding.DecodeString(sealed)
	if err != nil {
		return "", fmt.Errorf("failed to decode sealed value: %w", err)
	}
	plaintext, err := open(ciphertext, s.key)
	if err != nil {
		return "", err
	}
	return string(plaintext), nil
}
