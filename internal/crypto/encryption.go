package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"os"
)

// EnvKey is the environment variable holding the passphrase for api keys.
const EnvKey = "ENCRYPTION_KEY"

var (
	ErrMissingKey        = errors.New(EnvKey + " environment variable is not set")
	ErrInvalidCiphertext = errors.New("ciphertext is too short or invalid")
)

// EncryptionKey seals secrets (the LLM api key) with AES-256-GCM.
type EncryptionKey struct {
	key []byte
}

// NewEncryptionKey derives a 32 byte AES key from an arbitrary passphrase.
func NewEncryptionKey(passphrase string) *EncryptionKey {
	sum := sha256.Sum256([]byte(passphrase))
	return &EncryptionKey{key: sum[:]}
}

// GetEncryptionKeyFromEnv reads the passphrase from ENCRYPTION_KEY.
func GetEncryptionKeyFromEnv() (*EncryptionKey, error) {
	passphrase := os.Getenv(EnvKey)
	if passphrase == "" {
		return nil, ErrMissingKey
	}
	return NewEncryptionKey(passphrase), nil
}

func (e *EncryptionKey) aead() (cipher.AEAD, error) {
	block, err := aes.NewCipher(e.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// Encrypt returns nonce||ciphertext. An empty plaintext yields nil.
func (e *EncryptionKey) Encrypt(plaintext string) ([]byte, error) {
	if plaintext == "" {
		return nil, nil
	}
	gcm, err := e.aead()
	if err != nil {
		return nil, err
	}
	nonce := make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return gcm.Seal(nonce, nonce, []byte(plaintext), nil), nil
}

// Decrypt reverses Encrypt.
func (e *EncryptionKey) Decrypt(sealed []byte) (string, error) {
	if len(sealed) == 0 {
		return "", nil
	}
	gcm, err := e.aead()
	if err != nil {
		return "", err
	}
	if len(sealed) < gcm.NonceSize() {
		return "", ErrInvalidCiphertext
	}
	nonce, ciphertext := sealed[:gcm.NonceSize()], sealed[gcm.NonceSize():]
	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("failed to decrypt: %w", err)
	}
	return string(plaintext), nil
}

// EncryptToBase64 is Encrypt with standard base64 output.
func (e *EncryptionKey) EncryptToBase64(plaintext string) (string, error) {
	sealed, err := e.Encrypt(plaintext)
	if err != nil || sealed == nil {
		return "", err
	}
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// DecryptFromBase64 is Decrypt for EncryptToBase64 output.
func (e *EncryptionKey) DecryptFromBase64(encoded string) (string, error) {
	if encoded == "" {
		return "", nil
	}
	sealed, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("failed to decode base64: %w", err)
	}
	return e.Decrypt(sealed)
}
