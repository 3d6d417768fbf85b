package middleware

import (
	"errors"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/response"
)

// AuthMiddleware handles JWT authentication
type AuthMiddleware struct {
	jwtManager  *auth.JWTManager
	revocations auth.RevocationSet
	principals  *auth.PrincipalStore
}

// NewAuthMiddleware creates a new auth middleware
func NewAuthMiddleware(jwtManager *auth.JWTManager, revocations auth.RevocationSet, principals *auth.PrincipalStore) *AuthMiddleware {
	return &AuthMiddleware{
		jwtManager:  jwtManager,
		revocations: revocations,
		principals:  principals,
	}
}

func bearerToken(c *fiber.Ctx) (string, bool) {
	authHeader := c.Get("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		return "", false
	}
	return parts[1], true
}

// authenticate runs the full access-token check chain and returns the live
// principal. Revocation lookups fail closed: if the backend errors, the
// request is rejected rather than let a possibly revoked token through.
func (m *AuthMiddleware) authenticate(c *fiber.Ctx, tokenString string) (*auth.Claims, model.Principal, error) {
	claims, err := m.jwtManager.ValidateTokenType(tokenString, auth.TokenTypeAccess)
	if err != nil {
		return nil, model.Principal{}, err
	}

	// A revoked JTI kills the single token; a revoked session ID kills every
	// token minted under the session, which is how logout works.
	revoked, err := m.revocations.Contains(c.Context(), claims.ID)
	if err != nil {
		return nil, model.Principal{}, err
	}
	if !revoked && claims.SessionID != "" {
		revoked, err = m.revocations.Contains(c.Context(), claims.SessionID)
		if err != nil {
			return nil, model.Principal{}, err
		}
	}
	if revoked {
		return nil, model.Principal{}, auth.ErrTokenRevoked
	}

	principal, err := m.principals.FindByID(c.Context(), claims.PrincipalType, claims.PrincipalID)
	if err != nil {
		return nil, model.Principal{}, err
	}
	if !principal.IsActive() {
		return nil, model.Principal{}, auth.ErrAccountDisabled
	}

	// Version mismatch means a password change or forced logout happened
	// after this token was minted.
	if principal.TokenVersion != claims.TokenVersion {
		return nil, model.Principal{}, auth.ErrStaleToken
	}

	return claims, principal, nil
}

func rejectAuthError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, auth.ErrExpiredToken):
		return response.UnauthorizedCode(c, response.CodeTokenExpired, "Token has expired")
	case errors.Is(err, auth.ErrWrongTokenType):
		return response.UnauthorizedCode(c, response.CodeWrongTokenType, "Wrong token type")
	case errors.Is(err, auth.ErrTokenRevoked):
		return response.UnauthorizedCode(c, response.CodeTokenRevoked, "Token has been revoked")
	case errors.Is(err, auth.ErrStaleToken):
		return response.UnauthorizedCode(c, response.CodeSessionExpired, "Session is no longer valid")
	case errors.Is(err, auth.ErrPrincipalNotFound), errors.Is(err, auth.ErrAccountDisabled):
		return response.UnauthorizedCode(c, response.CodeSessionExpired, "Session is no longer valid")
	case errors.Is(err, auth.ErrInvalidToken), errors.Is(err, auth.ErrInvalidClaims):
		return response.UnauthorizedCode(c, response.CodeTokenInvalid, "Invalid token")
	default:
		return response.InternalServerError(c, "Failed to check token status")
	}
}

// Required is middleware that requires a valid, unrevoked access token
func (m *AuthMiddleware) Required() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return response.Unauthorized(c, "Missing authorization token")
		}

		claims, principal, err := m.authenticate(c, tokenString)
		if err != nil {
			return rejectAuthError(c, err)
		}

		c.Locals("principal", principal)
		c.Locals("claims", claims)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// Optional lets requests through with or without a token; a valid token
// populates the principal, anything else is ignored
func (m *AuthMiddleware) Optional() fiber.Handler {
	return func(c *fiber.Ctx) error {
		tokenString, ok := bearerToken(c)
		if !ok {
			return c.Next()
		}

		claims, principal, err := m.authenticate(c, tokenString)
		if err != nil {
			return c.Next()
		}

		c.Locals("principal", principal)
		c.Locals("claims", claims)
		c.Locals("token_jti", claims.ID)

		return c.Next()
	}
}

// RequireRole requires one of the given roles. Runs after Required.
func (m *AuthMiddleware) RequireRole(roles ...string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}
		for _, r := range roles {
			if principal.Role == r {
				return c.Next()
			}
		}
		return response.Error(c, fiber.StatusForbidden, "Insufficient permissions", response.CodePermissionDenied)
	}
}

// RequirePermission requires a specific "resource:verb" permission grant.
// Runs after Required.
func (m *AuthMiddleware) RequirePermission(permission string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok {
			return response.Forbidden(c, "Access denied")
		}
		if !principal.HasPermission(permission) {
			return response.Error(c, fiber.StatusForbidden, "Insufficient permissions", response.CodePermissionDenied)
		}
		return c.Next()
	}
}

// RequireGlobal requires a platform-level system user not bound to any
// tenant. Runs after Required.
func (m *AuthMiddleware) RequireGlobal() fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok || !principal.IsGlobal() {
			return response.Error(c, fiber.StatusForbidden, "Platform access required", response.CodePermissionDenied)
		}
		return c.Next()
	}
}

// GetPrincipal extracts the authenticated principal from context
func GetPrincipal(c *fiber.Ctx) (model.Principal, bool) {
	v := c.Locals("principal")
	if v == nil {
		return model.Principal{}, false
	}
	p, ok := v.(model.Principal)
	return p, ok
}

// GetClaims extracts full claims from context
func GetClaims(c *fiber.Ctx) (*auth.Claims, bool) {
	v := c.Locals("claims")
	if v == nil {
		return nil, false
	}
	claims, ok := v.(*auth.Claims)
	return claims, ok
}

// GetTokenJTI extracts the token JTI from context
func GetTokenJTI(c *fiber.Ctx) (string, bool) {
	v := c.Locals("token_jti")
	if v == nil {
		return "", false
	}
	jti, ok := v.(string)
	return jti, ok
}

// EffectiveTenantID resolves which tenant a request operates in. Tenant-bound
// principals are locked to their own tenant; global system users may select
// one with the tenant_id query param, or operate across all tenants when it
// is absent.
func EffectiveTenantID(c *fiber.Ctx) (*uint, error) {
	principal, ok := GetPrincipal(c)
	if !ok {
		return nil, errors.New("no authenticated principal")
	}
	if !principal.IsGlobal() {
		if principal.TenantID == nil {
			return nil, errors.New("tenant-bound principal without tenant")
		}
		return principal.TenantID, nil
	}
	if raw := c.QueryInt("tenant_id", 0); raw > 0 {
		id := uint(raw)
		return &id, nil
	}
	return nil, nil
}
