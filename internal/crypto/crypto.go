package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"
)

// Tenant contact details are PII and are stored encrypted. The key comes from
// ALLOCATION_PII_KEY (must be 32 bytes); the fallback is for local development
// only.
var key = loadKey()

func loadKey() []byte {
	if k := os.Getenv("ALLOCATION_PII_KEY"); len(k) == 32 {
		return []byte(k)
	}
	return []byte("dev-only-allocation-pii-key-32b!")
}

// Encrypt seals plaintext with AES-GCM and returns ciphertext plus the nonce
// needed to open it.
func Encrypt(plaintext string) ([]byte, []byte, error) {
	aead, err := newAEAD()
	if err != nil {
		return nil, nil, err
	}

	nonce := make([]byte, aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("generating nonce: %w", err)
	}

	return aead.Seal(nil, nonce, []byte(plaintext), nil), nonce, nil
}

// Decrypt opens ciphertext produced by Encrypt.
func Decrypt(ciphertext, nonce []byte) (string, error) {
	aead, err := newAEAD()
	if err != nil {
		return "", err
	}

	plaintext, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("opening ciphertext: %w", err)
	}
	return string(plaintext), nil
}

func newAEAD() (cipher.AEAD, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("initializing cipher: %w", err)
	}
	return cipher.NewGCM(block)
}
