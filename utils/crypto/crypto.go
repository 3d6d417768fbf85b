package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	// Argon2id parameters for key derivation
	Argon2Time      uint32 = 1
	Argon2Memory    uint32 = 64 * 1024 // 64 MB
	Argon2Threads   uint8  = 4
	Argon2KeyLength uint32 = 32 // 256 bits for AES-256

	// Salt length for key derivation
	SaltLength = 32
)

var (
	ErrInvalidKeyLength = errors.New("invalid key length")
	ErrDecryptionFailed = errors.New("decryption failed")
)

// GenerateSalt generates a cryptographically secure random salt
func GenerateSalt() ([]byte, error) {
	salt := make([]byte, SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}
	return salt, nil
}

// DeriveKey derives an encryption key from a passphrase and salt using
// Argon2id
func DeriveKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(passphrase),
		salt,
		Argon2Time,
		Argon2Memory,
		Argon2Threads,
		Argon2KeyLength,
	)
}

// EncryptData encrypts data using AES-256-GCM. Returns the ciphertext and
// the nonce it was sealed with; both are needed to decrypt.
func EncryptData(data []byte, encryptionKey []byte) (encrypted []byte, nonce []byte, err error) {
	if len(encryptionKey) != 32 {
		return nil, nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	nonce = make([]byte, gcm.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, nil, fmt.Errorf("failed to generate nonce: %w", err)
	}

	encrypted = gcm.Seal(nil, nonce, data, nil)
	return encrypted, nonce, nil
}

// DecryptData decrypts AES-256-GCM ciphertext. GCM authenticates the
// ciphertext, so any tampering or a wrong key surfaces as
// ErrDecryptionFailed rather than garbage plaintext.
func DecryptData(encrypted []byte, nonce []byte, encryptionKey []byte) ([]byte, error) {
	if len(encryptionKey) != 32 {
		return nil, ErrInvalidKeyLength
	}

	block, err := aes.NewCipher(encryptionKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	plaintext, err := gcm.Open(nil, nonce, encrypted, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrDecryptionFailed, err)
	}

	return plaintext, nil
}

// SealWithPassphrase derives a key from the passphrase with a fresh salt and
// encrypts data into a single self-contained blob: salt || nonce ||
// ciphertext. OpenWithPassphrase reverses it.
func SealWithPassphrase(data []byte, passphrase string) ([]byte, error) {
	salt, err := GenerateSalt()
	if err != nil {
		return nil, err
	}
	key := DeriveKey(passphrase, salt)
	encrypted, nonce, err := EncryptData(data, key)
	if err != nil {
		return nil, err
	}

	blob := make([]byte, 0, len(salt)+len(nonce)+len(encrypted))
	blob = append(blob, salt...)
	blob = append(blob, nonce...)
	blob = append(blob, encrypted...)
	return blob, nil
}

// OpenWithPassphrase decrypts a blob produced by SealWithPassphrase.
func OpenWithPassphrase(blob []byte, passphrase string) ([]byte, error) {
	// 12 bytes is the standard GCM nonce size.
	const nonceSize = 12
	if len(blob) < SaltLength+nonceSize {
		return nil, ErrDecryptionFailed
	}

	salt := blob[:SaltLength]
	nonce := blob[SaltLength : SaltLength+nonceSize]
	ciphertext := blob[SaltLength+nonceSize:]

	key := DeriveKey(passphrase, salt)
	return DecryptData(ciphertext, nonce, key)
}
