package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
)

var ErrInvalidKey = errors.New("encryption key must be 32 bytes (64 hex chars)")

// SecretCipher seals provider secrets stored at rest. Ciphertext and nonce
// are base64 encoded so they fit text columns.
type SecretCipher interface {
	Seal(plaintext string) (ciphertext, iv string, err error)
	Open(ciphertext, iv string) (string, error)
}

type AESGCMCipher struct {
	aead cipher.AEAD
}

func NewAESGCMCipher(hexKey string) (*AESGCMCipher, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil || len(key) != 32 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create gcm: %w", err)
	}
	return &AESGCMCipher{aead: aead}, nil
}

func (c *AESGCMCipher) Seal(plaintext string) (string, string, error) {
	iv := make([]byte, c.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	sealed := c.aead.Seal(nil, iv, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), base64.StdEncoding.EncodeToString(iv), nil
}

func (c *AESGCMCipher) Open(ciphertext, iv string) (string, error) {
	sealed, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("failed to decode ciphertext: %w", err)
	}
	nonce, err := base64.StdEncoding.DecodeString(iv)
	if err != nil {
		return "", fmt.Errorf("failed to decode iv: %w", err)
	}
	if len(nonce) != c.aead.NonceSize() {
		return "", fmt.Errorf("invalid iv length %d", len(nonce))
	}
	plain, err := c.aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt secret: %w", err)
	}
	return string(plain), nil
}

// OpenStored returns value as is when iv is empty (a plaintext column) and
// decrypts it otherwise. A nil cipher with a non-empty iv is an error.
func OpenStored(c SecretCipher, value, iv string) (string, error) {
	if iv == "" || value == "" {
		return value, nil
	}
	if c == nil {
		return "", errors.New("encrypted secret found but no encryption key configured")
	}
	return c.Open(value, iv)
}
