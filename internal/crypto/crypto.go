// Package crypto implements the payload codec: whole-payload authenticated
// encryption with AES-256-GCM. A sealed payload is a single self-describing
// blob of nonce, ciphertext, and authentication tag; the key alone is enough
// to open it.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/argon2"
)

const (
	// KeySize is the symmetric key length (256 bits for AES-256).
	KeySize = 32

	// Argon2id parameters (OWASP recommended)
	argon2Time    = 3
	argon2Memory  = 64 * 1024 // 64 MB
	argon2Threads = 4

	// Salt size for key derivation
	saltSize = 32

	// Nonce size for AES-GCM
	nonceSize = 12
)

// Seal encrypts plaintext with the given key and returns the sealed payload
// with the nonce prepended.
func Seal(plaintext, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, nonceSize)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	// Seal appends the ciphertext and tag to the nonce
	return aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a sealed payload produced by Seal. It fails if the blob is
// malformed or the authentication tag does not verify.
func Open(sealed, key []byte) ([]byte, error) {
	aead, err := newAEAD(key)
	if err != nil {
		return nil, err
	}

	if len(sealed) < nonceSize {
		return nil, fmt.Errorf("sealed payload too short")
	}

	nonce := sealed[:nonceSize]
	plaintext, err := aead.Open(nil, nonce, sealed[nonceSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decryption failed: %w", err)
	}
	return plaintext, nil
}

func newAEAD(key []byte) (cipher.AEAD, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("key must be %d bytes, got %d", KeySize, len(key))
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create AES cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}
	return gcm, nil
}

// DeriveKey derives a symmetric key from a passphrase using Argon2id.
// The same passphrase and salt always produce the same key.
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		salt,
		argon2Time,
		argon2Memory,
		argon2Threads,
		KeySize,
	)
}

// GenerateSalt generates a new random salt for key derivation.
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// GenerateKey generates a random symmetric key.
func GenerateKey() ([]byte, error) {
	key := make([]byte, KeySize)
	if _, err := rand.Read(key); err != nil {
		return nil, fmt.Errorf("failed to generate key: %w", err)
	}
	return key, nil
}
