package playback

import (
	"strings"
	"testing"
	"time"
)

func TestSignVerifyRoundTrip(t *testing.T) {
	signer := NewSigner("playback-secret", 5*time.Minute)

	token, expiresAt, err := signer.Sign(42, 7, "student", 99)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if time.Until(expiresAt) <= 0 {
		t.Error("expected expiry in the future")
	}

	grant, err := signer.Verify(token)
	if err != nil {
		t.Fatalf("Verify failed: %v", err)
	}
	if grant.VideoID != 42 {
		t.Errorf("expected video 42, got %d", grant.VideoID)
	}
	if grant.TenantID != 7 {
		t.Errorf("expected tenant 7, got %d", grant.TenantID)
	}
	if grant.PrincipalType != "student" || grant.PrincipalID != 99 {
		t.Errorf("unexpected principal %s/%d", grant.PrincipalType, grant.PrincipalID)
	}
}

func TestVerifyRejectsTampering(t *testing.T) {
	signer := NewSigner("playback-secret", 5*time.Minute)

	token, _, err := signer.Sign(42, 7, "student", 99)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	// Swap the video ID inside the payload.
	tampered := strings.Replace(token, "42.", "43.", 1)
	if _, err := signer.Verify(tampered); err != ErrBadSignature {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsWrongSecret(t *testing.T) {
	signer := NewSigner("playback-secret", 5*time.Minute)
	other := NewSigner("different-secret", 5*time.Minute)

	token, _, err := signer.Sign(42, 7, "student", 99)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := other.Verify(token); err != ErrBadSignature {
		t.Errorf("expected ErrBadSignature, got %v", err)
	}
}

func TestVerifyRejectsExpired(t *testing.T) {
	signer := &Signer{secret: []byte("playback-secret"), ttl: -time.Minute}

	token, _, err := signer.Sign(42, 7, "student", 99)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}

	if _, err := signer.Verify(token); err != ErrTokenExpired {
		t.Errorf("expected ErrTokenExpired, got %v", err)
	}
}

func TestVerifyRejectsGarbage(t *testing.T) {
	signer := NewSigner("playback-secret", 5*time.Minute)

	for _, token := range []string{"", "nodots", "a.b", "1.2.3.4.5"} {
		if _, err := signer.Verify(token); err == nil {
			t.Errorf("expected error for %q", token)
		}
	}
}

func TestSignerDefaultTTL(t *testing.T) {
	signer := NewSigner("playback-secret", 0)
	if signer.TTL() != 5*time.Minute {
		t.Errorf("expected default 5m TTL, got %v", signer.TTL())
	}
}
