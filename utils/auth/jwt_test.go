package auth

import (
	"testing"
	"time"

	"github.com/sahilchouksey/lms-api/model"
)

func testManager(accessExpiry, refreshExpiry time.Duration) *JWTManager {
	return NewJWTManager(JWTConfig{
		Secret:        "test-secret-key",
		Expiry:        accessExpiry,
		RefreshExpiry: refreshExpiry,
		Issuer:        "lms-api-test",
	})
}

func testPrincipal() model.Principal {
	tenantID := uint(42)
	return model.Principal{
		ID:           7,
		Type:         model.PrincipalTypeTeacher,
		TenantID:     &tenantID,
		Email:        "teacher@example.com",
		Role:         model.RoleTeacher,
		Permissions:  model.RolePermissions(model.RoleTeacher),
		TokenVersion: 3,
		Status:       model.PrincipalStatusActive,
	}
}

func TestGeneratePairExpiries(t *testing.T) {
	accessTTL := 15 * time.Minute
	refreshTTL := 7 * 24 * time.Hour
	m := testManager(accessTTL, refreshTTL)

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	access, err := m.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken(access): %v", err)
	}
	if got := access.ExpiresAt.Time.Sub(access.IssuedAt.Time); got != accessTTL {
		t.Errorf("access expiry - issued-at = %v, want %v", got, accessTTL)
	}

	refresh, err := m.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateToken(refresh): %v", err)
	}
	if got := refresh.ExpiresAt.Time.Sub(refresh.IssuedAt.Time); got != refreshTTL {
		t.Errorf("refresh expiry - issued-at = %v, want %v", got, refreshTTL)
	}
}

func TestPairSharesSessionID(t *testing.T) {
	m := testManager(time.Minute, time.Hour)

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	access, _ := m.ValidateToken(pair.AccessToken)
	refresh, _ := m.ValidateToken(pair.RefreshToken)

	if access.SessionID == "" {
		t.Fatal("access token has empty session ID")
	}
	if access.SessionID != refresh.SessionID {
		t.Errorf("session IDs differ: %q vs %q", access.SessionID, refresh.SessionID)
	}
	if access.ID == refresh.ID {
		t.Error("access and refresh tokens share a JTI")
	}
	if access.SessionID != pair.SessionID {
		t.Errorf("pair.SessionID = %q, claims say %q", pair.SessionID, access.SessionID)
	}
}

func TestRotatePairKeepsSessionID(t *testing.T) {
	m := testManager(time.Minute, time.Hour)
	p := testPrincipal()

	first, err := m.GeneratePair(p)
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}
	second, err := m.RotatePair(p, first.SessionID)
	if err != nil {
		t.Fatalf("RotatePair: %v", err)
	}

	if second.SessionID != first.SessionID {
		t.Errorf("rotation changed session ID: %q -> %q", first.SessionID, second.SessionID)
	}
	if second.RefreshJTI == first.RefreshJTI {
		t.Error("rotation reused the refresh JTI")
	}
}

func TestValidateTokenType(t *testing.T) {
	m := testManager(time.Minute, time.Hour)

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	if _, err := m.ValidateTokenType(pair.AccessToken, TokenTypeAccess); err != nil {
		t.Errorf("access token rejected as access: %v", err)
	}
	if _, err := m.ValidateTokenType(pair.RefreshToken, TokenTypeAccess); err != ErrWrongTokenType {
		t.Errorf("refresh-as-access: got %v, want ErrWrongTokenType", err)
	}
	if _, err := m.ValidateTokenType(pair.AccessToken, TokenTypeRefresh); err != ErrWrongTokenType {
		t.Errorf("access-as-refresh: got %v, want ErrWrongTokenType", err)
	}
}

func TestValidateTokenRejectsWrongSecret(t *testing.T) {
	m := testManager(time.Minute, time.Hour)
	other := NewJWTManager(JWTConfig{Secret: "different-secret", Expiry: time.Minute, RefreshExpiry: time.Hour, Issuer: "lms-api-test"})

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	if _, err := other.ValidateToken(pair.AccessToken); err != ErrInvalidToken {
		t.Errorf("foreign-signed token: got %v, want ErrInvalidToken", err)
	}
}

func TestValidateTokenExpired(t *testing.T) {
	m := testManager(-time.Minute, time.Hour)

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	if _, err := m.ValidateToken(pair.AccessToken); err != ErrExpiredToken {
		t.Errorf("expired token: got %v, want ErrExpiredToken", err)
	}

	// Expiry stays readable without validation, which the client relies on.
	expiry, err := m.GetTokenExpiry(pair.AccessToken)
	if err != nil {
		t.Fatalf("GetTokenExpiry: %v", err)
	}
	if !expiry.Before(time.Now()) {
		t.Error("expected expiry in the past")
	}
	if !m.IsTokenExpired(pair.AccessToken) {
		t.Error("IsTokenExpired = false for expired token")
	}
}

func TestClaimsCarryPrincipal(t *testing.T) {
	m := testManager(time.Minute, time.Hour)
	p := testPrincipal()

	pair, err := m.GeneratePair(p)
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	claims, err := m.ValidateToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken: %v", err)
	}

	if claims.PrincipalID != p.ID || claims.PrincipalType != p.Type {
		t.Errorf("principal = %d/%s, want %d/%s", claims.PrincipalID, claims.PrincipalType, p.ID, p.Type)
	}
	if claims.TenantID == nil || *claims.TenantID != *p.TenantID {
		t.Errorf("tenant ID not carried: %v", claims.TenantID)
	}
	if claims.Role != p.Role {
		t.Errorf("role = %q, want %q", claims.Role, p.Role)
	}
	if len(claims.Permissions) != len(p.Permissions) {
		t.Errorf("permissions = %d entries, want %d", len(claims.Permissions), len(p.Permissions))
	}
	if claims.TokenVersion != p.TokenVersion {
		t.Errorf("token version = %d, want %d", claims.TokenVersion, p.TokenVersion)
	}

	rebuilt := claims.Principal()
	if rebuilt.ID != p.ID || rebuilt.Email != p.Email {
		t.Errorf("rebuilt principal mismatch: %+v", rebuilt)
	}

	// Refresh tokens carry identity but not the permission list.
	refreshClaims, err := m.ValidateToken(pair.RefreshToken)
	if err != nil {
		t.Fatalf("ValidateToken(refresh): %v", err)
	}
	if len(refreshClaims.Permissions) != 0 {
		t.Errorf("refresh token carries %d permissions, want none", len(refreshClaims.Permissions))
	}
}

func TestGetJTI(t *testing.T) {
	m := testManager(time.Minute, time.Hour)

	pair, err := m.GeneratePair(testPrincipal())
	if err != nil {
		t.Fatalf("GeneratePair: %v", err)
	}

	jti, err := m.GetJTI(pair.AccessToken)
	if err != nil {
		t.Fatalf("GetJTI: %v", err)
	}
	if jti != pair.AccessJTI {
		t.Errorf("GetJTI = %q, want %q", jti, pair.AccessJTI)
	}
}
