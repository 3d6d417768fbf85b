package client

import (
	"encoding/base64"
	"time"

	"github.com/sahilchouksey/lms-api/utils/crypto"
)

// EncryptedTokenStore wraps another store and encrypts every value with
// AES-256-GCM under a key derived from the passphrase (Argon2id, fresh salt
// per write). Any decryption failure reads as absent: a wrong passphrase or
// a tampered file costs a re-login, never a crash.
type EncryptedTokenStore struct {
	inner      TokenStore
	passphrase string
}

func NewEncryptedTokenStore(inner TokenStore, passphrase string) *EncryptedTokenStore {
	return &EncryptedTokenStore{inner: inner, passphrase: passphrase}
}

func (s *EncryptedTokenStore) Set(key, value string, ttl time.Duration) error {
	blob, err := crypto.SealWithPassphrase([]byte(value), s.passphrase)
	if err != nil {
		return err
	}
	return s.inner.Set(key, base64.StdEncoding.EncodeToString(blob), ttl)
}

func (s *EncryptedTokenStore) Get(key string) (string, error) {
	encoded, err := s.inner.Get(key)
	if err != nil {
		return "", err
	}
	blob, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return "", ErrTokenNotFound
	}
	plaintext, err := crypto.OpenWithPassphrase(blob, s.passphrase)
	if err != nil {
		return "", ErrTokenNotFound
	}
	return string(plaintext), nil
}

func (s *EncryptedTokenStore) Remove(key string) error {
	return s.inner.Remove(key)
}

func (s *EncryptedTokenStore) Clear() error {
	return s.inner.Clear()
}
