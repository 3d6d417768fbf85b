package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/sahilchouksey/lms-api/model"
)

var (
	ErrInvalidToken   = errors.New("invalid token")
	ErrExpiredToken   = errors.New("token has expired")
	ErrInvalidClaims  = errors.New("invalid token claims")
	ErrWrongTokenType = errors.New("wrong token type")
	ErrTokenRevoked   = errors.New("token has been revoked")
	ErrStaleToken     = errors.New("token version is stale")
)

// Token type discriminator values. A refresh token presented where an access
// token is expected is rejected, and vice versa.
const (
	TokenTypeAccess  = "access"
	TokenTypeRefresh = "refresh"
)

// JWTConfig holds JWT configuration
type JWTConfig struct {
	Secret        string
	Expiry        time.Duration
	RefreshExpiry time.Duration
	Issuer        string
}

// Claims represents JWT claims for any principal type
type Claims struct {
	PrincipalID   uint     `json:"principal_id"`
	PrincipalType string   `json:"principal_type"` // teacher, student, system
	TenantID      *uint    `json:"tenant_id,omitempty"`
	Email         string   `json:"email"`
	Role          string   `json:"role"`
	Permissions   []string `json:"permissions,omitempty"`
	TokenType     string   `json:"token_type"`    // "access" or "refresh"
	SessionID     string   `json:"sid"`           // shared by both tokens of a pair
	TokenVersion  int      `json:"token_version"` // For invalidating all sessions of a principal
	jwt.RegisteredClaims
}

// Principal rebuilds the auth snapshot carried by the token
func (c *Claims) Principal() model.Principal {
	return model.Principal{
		ID:           c.PrincipalID,
		Type:         c.PrincipalType,
		TenantID:     c.TenantID,
		Email:        c.Email,
		Role:         c.Role,
		Permissions:  c.Permissions,
		TokenVersion: c.TokenVersion,
		Status:       model.PrincipalStatusActive,
	}
}

// TokenPair is the result of login or refresh
type TokenPair struct {
	AccessToken      string
	RefreshToken     string
	AccessJTI        string
	RefreshJTI       string
	SessionID        string
	AccessExpiresAt  time.Time
	RefreshExpiresAt time.Time
}

// ExpiresIn returns the access-token lifetime in whole seconds, as reported
// to clients
func (p *TokenPair) ExpiresIn() int64 {
	return int64(time.Until(p.AccessExpiresAt).Round(time.Second).Seconds())
}

// JWTManager handles JWT token operations
type JWTManager struct {
	config JWTConfig
}

// NewJWTManager creates a new JWT manager
func NewJWTManager(config JWTConfig) *JWTManager {
	return &JWTManager{
		config: config,
	}
}

// RefreshTTL exposes the configured refresh-token lifetime. Logout uses it
// to size session revocations so they outlive the last refresh token minted
// under the session.
func (j *JWTManager) RefreshTTL() time.Duration {
	return j.config.RefreshExpiry
}

func (j *JWTManager) generate(p model.Principal, tokenType, sessionID string, expiry time.Duration) (string, string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(expiry)
	jti := uuid.New().String()

	claims := Claims{
		PrincipalID:   p.ID,
		PrincipalType: p.Type,
		TenantID:      p.TenantID,
		Email:         p.Email,
		Role:          p.Role,
		TokenType:     tokenType,
		SessionID:     sessionID,
		TokenVersion:  p.TokenVersion,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			Issuer:    j.config.Issuer,
			Subject:   p.Email,
		},
	}
	// Permission lists ride only on access tokens; refresh tokens stay lean.
	if tokenType == TokenTypeAccess {
		claims.Permissions = p.Permissions
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signedToken, err := token.SignedString([]byte(j.config.Secret))
	return signedToken, jti, expiresAt, err
}

// GenerateAccessToken mints an access token within an existing session,
// returning (token, jti, error)
func (j *JWTManager) GenerateAccessToken(p model.Principal, sessionID string) (string, string, error) {
	token, jti, _, err := j.generate(p, TokenTypeAccess, sessionID, j.config.Expiry)
	return token, jti, err
}

// GenerateRefreshToken mints a refresh token within an existing session,
// returning (token, jti, error)
func (j *JWTManager) GenerateRefreshToken(p model.Principal, sessionID string) (string, string, error) {
	token, jti, _, err := j.generate(p, TokenTypeRefresh, sessionID, j.config.RefreshExpiry)
	return token, jti, err
}

// GeneratePair starts a new session: fresh session ID, access + refresh pair
func (j *JWTManager) GeneratePair(p model.Principal) (*TokenPair, error) {
	return j.generatePair(p, uuid.New().String())
}

// RotatePair issues a new pair within an existing session. The session ID is
// kept so a later logout can revoke every token the session ever produced.
func (j *JWTManager) RotatePair(p model.Principal, sessionID string) (*TokenPair, error) {
	return j.generatePair(p, sessionID)
}

func (j *JWTManager) generatePair(p model.Principal, sessionID string) (*TokenPair, error) {
	access, accessJTI, accessExp, err := j.generate(p, TokenTypeAccess, sessionID, j.config.Expiry)
	if err != nil {
		return nil, err
	}
	refresh, refreshJTI, refreshExp, err := j.generate(p, TokenTypeRefresh, sessionID, j.config.RefreshExpiry)
	if err != nil {
		return nil, err
	}
	return &TokenPair{
		AccessToken:      access,
		RefreshToken:     refresh,
		AccessJTI:        accessJTI,
		RefreshJTI:       refreshJTI,
		SessionID:        sessionID,
		AccessExpiresAt:  accessExp,
		RefreshExpiresAt: refreshExp,
	}, nil
}

// ValidateToken validates a JWT token and returns claims
func (j *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		// Verify signing method
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(j.config.Secret), nil
	})

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// ValidateTokenType validates a token and additionally enforces the type
// discriminator
func (j *JWTManager) ValidateTokenType(tokenString, wantType string) (*Claims, error) {
	claims, err := j.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.TokenType != wantType {
		return nil, ErrWrongTokenType
	}
	return claims, nil
}

// ExtractClaims extracts claims from token without validation (for expiry
// inspection on the client side)
func (j *JWTManager) ExtractClaims(tokenString string) (*Claims, error) {
	token, _, err := jwt.NewParser().ParseUnverified(tokenString, &Claims{})
	if err != nil {
		return nil, err
	}

	claims, ok := token.Claims.(*Claims)
	if !ok {
		return nil, ErrInvalidClaims
	}

	return claims, nil
}

// GetTokenExpiry returns the expiry time of a token
func (j *JWTManager) GetTokenExpiry(tokenString string) (time.Time, error) {
	claims, err := j.ExtractClaims(tokenString)
	if err != nil {
		return time.Time{}, err
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, errors.New("token has no expiry")
	}

	return claims.ExpiresAt.Time, nil
}

// IsTokenExpired checks if a token is expired
func (j *JWTManager) IsTokenExpired(tokenString string) bool {
	expiry, err := j.GetTokenExpiry(tokenString)
	if err != nil {
		return true
	}
	return time.Now().After(expiry)
}

// GetJTI extracts the JTI (token ID) from a token
func (j *JWTManager) GetJTI(tokenString string) (string, error) {
	claims, err := j.ExtractClaims(tokenString)
	if err != nil {
		return "", err
	}
	return claims.ID, nil
}
