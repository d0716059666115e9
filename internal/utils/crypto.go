package utils

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

// encryptedPrefix marks ciphertext produced by SecretCipher. Values
// without the prefix are treated as legacy plaintext rows.
const encryptedPrefix = "enc_v1_"

// SecretCipher encrypts token secrets at rest with AES-256-GCM. The key
// is derived from the configured master key via HKDF so the raw master
// key never touches the cipher directly.
type SecretCipher struct {
	aead cipher.AEAD
}

// NewSecretCipher derives an AES-256 key from masterKey and returns a
// ready cipher. masterKey must be non-empty.
func NewSecretCipher(masterKey string) (*SecretCipher, error) {
	if masterKey == "" {
		return nil, errors.New("master key must not be empty")
	}

	kdf := hkdf.New(sha256.New, []byte(masterKey), []byte("tokengate/secret-store"), nil)
	key := make([]byte, 32)
	if _, err := io.ReadFull(kdf, key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("init cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("init gcm: %w", err)
	}

	return &SecretCipher{aead: aead}, nil
}

// Encrypt seals plaintext with a random nonce and returns
// "enc_v1_" + base64(nonce || ciphertext).
func (c *SecretCipher) Encrypt(plaintext string) (string, error) {
	nonce := make([]byte, c.aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return encryptedPrefix + base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses Encrypt. Values without the version prefix are
// returned unchanged so rows written before encryption was introduced
// keep working.
func (c *SecretCipher) Decrypt(stored string) (string, error) {
	if !strings.HasPrefix(stored, encryptedPrefix) {
		return stored, nil
	}

	raw, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(stored, encryptedPrefix))
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	if len(raw) < c.aead.NonceSize()+1 {
		return "", errors.New("ciphertext too short")
	}

	nonce, ciphertext := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	plaintext, err := c.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("decrypt secret: %w", err)
	}
	return string(plaintext), nil
}

// HashSecret returns the hex SHA-256 of a token secret. The hash is the
// stored lookup key, so plaintext secrets never appear in indexes.
func HashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
