package crypto

import (
	"bytes"
	"testing"
)

func TestEncryptDecryptRoundTrip(t *testing.T) {
	salt, err := GenerateSalt()
	if err != nil {
		t.Fatalf("GenerateSalt: %v", err)
	}
	key := DeriveKey("passphrase", salt)

	plaintext := []byte("refresh-token-material")
	encrypted, nonce, err := EncryptData(plaintext, key)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	if bytes.Contains(encrypted, plaintext) {
		t.Fatal("ciphertext contains plaintext")
	}

	decrypted, err := DecryptData(encrypted, nonce, key)
	if err != nil {
		t.Fatalf("DecryptData: %v", err)
	}
	if !bytes.Equal(decrypted, plaintext) {
		t.Errorf("round trip: got %q, want %q", decrypted, plaintext)
	}
}

func TestDecryptWrongKeyFails(t *testing.T) {
	salt, _ := GenerateSalt()
	key := DeriveKey("passphrase", salt)
	otherKey := DeriveKey("other passphrase", salt)

	encrypted, nonce, err := EncryptData([]byte("secret"), key)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}

	if _, err := DecryptData(encrypted, nonce, otherKey); err == nil {
		t.Error("DecryptData succeeded with the wrong key")
	}
}

func TestDecryptTamperedCiphertextFails(t *testing.T) {
	salt, _ := GenerateSalt()
	key := DeriveKey("passphrase", salt)

	encrypted, nonce, err := EncryptData([]byte("secret"), key)
	if err != nil {
		t.Fatalf("EncryptData: %v", err)
	}
	encrypted[0] ^= 0xff

	if _, err := DecryptData(encrypted, nonce, key); err == nil {
		t.Error("DecryptData accepted tampered ciphertext")
	}
}

func TestInvalidKeyLength(t *testing.T) {
	if _, _, err := EncryptData([]byte("x"), []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("EncryptData: got %v, want ErrInvalidKeyLength", err)
	}
	if _, err := DecryptData([]byte("x"), []byte("nonce"), []byte("short")); err != ErrInvalidKeyLength {
		t.Errorf("DecryptData: got %v, want ErrInvalidKeyLength", err)
	}
}

func TestSealOpenWithPassphrase(t *testing.T) {
	blob, err := SealWithPassphrase([]byte("session payload"), "hunter22")
	if err != nil {
		t.Fatalf("SealWithPassphrase: %v", err)
	}

	plaintext, err := OpenWithPassphrase(blob, "hunter22")
	if err != nil {
		t.Fatalf("OpenWithPassphrase: %v", err)
	}
	if string(plaintext) != "session payload" {
		t.Errorf("round trip: got %q", plaintext)
	}

	if _, err := OpenWithPassphrase(blob, "wrong"); err == nil {
		t.Error("OpenWithPassphrase accepted a wrong passphrase")
	}
	if _, err := OpenWithPassphrase([]byte("tiny"), "hunter22"); err == nil {
		t.Error("OpenWithPassphrase accepted a truncated blob")
	}
}
