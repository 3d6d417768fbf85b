package auth

import (
	"context"
	"testing"
	"time"

	"github.com/sahilchouksey/lms-api/model"
)

func TestMemoryRevocationSetContains(t *testing.T) {
	s := NewMemoryRevocationSet()
	defer s.Close()

	ctx := context.Background()
	entry := RevocationEntry{
		TokenID:   "jti-1",
		Reason:    model.RevocationReasonLogout,
		ExpiresAt: time.Now().Add(time.Hour),
	}
	if err := s.Add(ctx, entry); err != nil {
		t.Fatalf("Add: %v", err)
	}

	revoked, err := s.Contains(ctx, "jti-1")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if !revoked {
		t.Error("Contains(jti-1) = false after Add")
	}

	revoked, err = s.Contains(ctx, "jti-other")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if revoked {
		t.Error("Contains(jti-other) = true, never added")
	}
}

func TestMemoryRevocationSetEviction(t *testing.T) {
	s := NewMemoryRevocationSet()
	defer s.Close()

	ctx := context.Background()
	if err := s.Add(ctx, RevocationEntry{
		TokenID:   "jti-short",
		Reason:    model.RevocationReasonLogout,
		ExpiresAt: time.Now().Add(30 * time.Millisecond),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}

	revoked, _ := s.Contains(ctx, "jti-short")
	if !revoked {
		t.Fatal("entry missing before its expiry")
	}

	time.Sleep(50 * time.Millisecond)

	revoked, err := s.Contains(ctx, "jti-short")
	if err != nil {
		t.Fatalf("Contains: %v", err)
	}
	if revoked {
		t.Error("entry still revoked after its token expiry passed")
	}
}

func TestMemoryRevocationSetIgnoresExpiredAdd(t *testing.T) {
	s := NewMemoryRevocationSet()
	defer s.Close()

	ctx := context.Background()
	if err := s.Add(ctx, RevocationEntry{
		TokenID:   "jti-past",
		Reason:    model.RevocationReasonLogout,
		ExpiresAt: time.Now().Add(-time.Minute),
	}); err != nil {
		t.Fatalf("Add: %v", err)
	}
	if s.Size() != 0 {
		t.Errorf("Size = %d after adding an already-expired entry, want 0", s.Size())
	}
}

func TestNewRevocationSetBackendSelection(t *testing.T) {
	set, err := NewRevocationSet(RevocationBackendMemory, nil, nil)
	if err != nil {
		t.Fatalf("memory backend: %v", err)
	}
	if _, ok := set.(*MemoryRevocationSet); !ok {
		t.Errorf("memory backend returned %T", set)
	}
	set.Close()

	if _, err := NewRevocationSet(RevocationBackendRedis, nil, nil); err == nil {
		t.Error("redis backend without a cache should fail")
	}
	if _, err := NewRevocationSet(RevocationBackendDatabase, nil, nil); err == nil {
		t.Error("database backend without a DB should fail")
	}
	if _, err := NewRevocationSet("carrier-pigeon", nil, nil); err == nil {
		t.Error("unknown backend should fail")
	}
}

func TestHashTokenStable(t *testing.T) {
	a := HashToken("token-a")
	if a != HashToken("token-a") {
		t.Error("HashToken not deterministic")
	}
	if a == HashToken("token-b") {
		t.Error("distinct tokens hash identically")
	}
	if len(a) != 64 {
		t.Errorf("hash length = %d, want 64 hex chars", len(a))
	}
}
