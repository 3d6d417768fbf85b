package client

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreRoundTrip(t *testing.T) {
	s := NewMemoryTokenStore()

	require.NoError(t, s.Set("access_token", "tok-1", 0))
	got, err := s.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	require.NoError(t, s.Remove("access_token"))
	_, err = s.Get("access_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryStoreClear(t *testing.T) {
	s := NewMemoryTokenStore()
	require.NoError(t, s.Set("a", "1", 0))
	require.NoError(t, s.Set("b", "2", 0))

	require.NoError(t, s.Clear())

	_, err := s.Get("a")
	assert.ErrorIs(t, err, ErrTokenNotFound)
	_, err = s.Get("b")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	s := NewMemoryTokenStore()
	require.NoError(t, s.Set("access_token", "tok-1", 10*time.Millisecond))

	got, err := s.Get("access_token")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", got)

	time.Sleep(25 * time.Millisecond)

	_, err = s.Get("access_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileStoreSurvivesReopen(t *testing.T) {
	dir := t.TempDir()

	first, err := NewFileTokenStore(dir)
	require.NoError(t, err)
	require.NoError(t, first.Set("refresh_token", "rt-durable", 0))

	second, err := NewFileTokenStore(dir)
	require.NoError(t, err)
	got, err := second.Get("refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "rt-durable", got)
}

func TestFileStoreTTLExpiry(t *testing.T) {
	s, err := NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set("access_token", "tok-1", 10*time.Millisecond))
	time.Sleep(25 * time.Millisecond)

	_, err = s.Get("access_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)

	// The expired file is lazily removed, not just masked.
	_, statErr := os.Stat(s.path("access_token"))
	assert.True(t, os.IsNotExist(statErr))
}

func TestFileStoreMangledFileReadsAsAbsent(t *testing.T) {
	s, err := NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, os.WriteFile(s.path("access_token"), []byte("not json"), 0o600))

	_, err = s.Get("access_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestFileStoreSanitizesKeys(t *testing.T) {
	s, err := NewFileTokenStore(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, s.Set("../../etc/passwd", "nope", 0))

	entries, err := os.ReadDir(s.dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, filepath.Base(entries[0].Name()), entries[0].Name())
	assert.NotContains(t, entries[0].Name(), "/")
}

func TestSessionStoreCloseRemovesDirectory(t *testing.T) {
	s, err := NewSessionTokenStore()
	require.NoError(t, err)
	require.NoError(t, s.Set("access_token", "tok-1", 0))

	dir := s.dir
	require.NoError(t, s.Close())

	_, statErr := os.Stat(dir)
	assert.True(t, os.IsNotExist(statErr))
}

func TestEncryptedStoreRoundTrip(t *testing.T) {
	inner := NewMemoryTokenStore()
	s := NewEncryptedTokenStore(inner, "hunter2 but longer")

	require.NoError(t, s.Set("refresh_token", "rt-secret-material", 0))

	// The inner store must never see the plaintext.
	raw, err := inner.Get("refresh_token")
	require.NoError(t, err)
	assert.NotContains(t, raw, "rt-secret-material")

	got, err := s.Get("refresh_token")
	require.NoError(t, err)
	assert.Equal(t, "rt-secret-material", got)
}

func TestEncryptedStoreCorruptedCiphertextReadsAsAbsent(t *testing.T) {
	inner := NewMemoryTokenStore()
	s := NewEncryptedTokenStore(inner, "hunter2 but longer")
	require.NoError(t, s.Set("refresh_token", "rt-secret-material", 0))

	require.NoError(t, inner.Set("refresh_token", "AAAA not ciphertext", 0))

	_, err := s.Get("refresh_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}

func TestEncryptedStoreWrongPassphraseReadsAsAbsent(t *testing.T) {
	inner := NewMemoryTokenStore()
	require.NoError(t, NewEncryptedTokenStore(inner, "passphrase one").Set("refresh_token", "rt", 0))

	_, err := NewEncryptedTokenStore(inner, "passphrase two").Get("refresh_token")
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
