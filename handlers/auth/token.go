package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	authutil "github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/metrics"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
)

// RefreshRequest represents a token refresh request
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// RefreshResponse represents a token refresh response
type RefreshResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
}

// RefreshToken exchanges a refresh token for a fresh pair. The presented
// token is revoked before the new pair is issued, which makes every refresh
// token single-use: replaying it after a successful exchange fails.
func (h *AuthHandler) RefreshToken(c *fiber.Ctx) error {
	var req RefreshRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.RefreshToken == "" {
		return response.BadRequest(c, "Refresh token is required")
	}

	record := func(outcome string) {
		if h.metrics != nil {
			h.metrics.RecordRefresh(outcome)
		}
	}

	claims, err := h.jwtManager.ValidateTokenType(req.RefreshToken, authutil.TokenTypeRefresh)
	if err != nil {
		switch {
		case errors.Is(err, authutil.ErrExpiredToken):
			record(metrics.OutcomeExpired)
			return response.UnauthorizedCode(c, response.CodeTokenExpired, "Refresh token has expired")
		case errors.Is(err, authutil.ErrWrongTokenType):
			record(metrics.OutcomeInvalid)
			return response.UnauthorizedCode(c, response.CodeWrongTokenType, "Wrong token type")
		default:
			record(metrics.OutcomeInvalid)
			return response.UnauthorizedCode(c, response.CodeTokenInvalid, "Invalid refresh token")
		}
	}

	// Revocation checks fail closed. The session ID check catches tokens
	// from sessions killed by logout.
	revoked, err := h.revocations.Contains(c.Context(), claims.ID)
	if err != nil {
		record(metrics.OutcomeError)
		return response.InternalServerError(c, "Failed to check token status")
	}
	if !revoked && claims.SessionID != "" {
		revoked, err = h.revocations.Contains(c.Context(), claims.SessionID)
		if err != nil {
			record(metrics.OutcomeError)
			return response.InternalServerError(c, "Failed to check token status")
		}
	}
	if revoked {
		record(metrics.OutcomeRevoked)
		return response.UnauthorizedCode(c, response.CodeTokenRevoked, "Token has been revoked")
	}

	principal, err := h.principals.FindByID(c.Context(), claims.PrincipalType, claims.PrincipalID)
	if err != nil {
		record(metrics.OutcomeInvalid)
		return response.UnauthorizedCode(c, response.CodeSessionExpired, "Session is no longer valid")
	}
	if !principal.IsActive() {
		record(metrics.OutcomeDisabled)
		return response.UnauthorizedCode(c, response.CodeSessionExpired, "Session is no longer valid")
	}
	if principal.TokenVersion != claims.TokenVersion {
		record(metrics.OutcomeStale)
		return response.UnauthorizedCode(c, response.CodeSessionExpired, "Session is no longer valid")
	}

	// Revoke the presented token before minting its successor. If this write
	// fails the exchange is aborted; issuing a new pair while the old token
	// stays usable would break single-use rotation.
	if err := h.revocations.Add(c.Context(), authutil.RevocationEntry{
		TokenID:       claims.ID,
		TokenHash:     authutil.HashToken(req.RefreshToken),
		PrincipalType: claims.PrincipalType,
		PrincipalID:   claims.PrincipalID,
		Reason:        model.RevocationReasonTokenRefresh,
		ExpiresAt:     claims.ExpiresAt.Time,
	}); err != nil {
		record(metrics.OutcomeError)
		return response.InternalServerError(c, "Failed to rotate tokens")
	}
	if h.metrics != nil {
		h.metrics.RecordRevocation(model.RevocationReasonTokenRefresh)
	}

	// Same session ID: a later logout still kills the whole chain.
	pair, err := h.jwtManager.RotatePair(principal, claims.SessionID)
	if err != nil {
		record(metrics.OutcomeError)
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	record(metrics.OutcomeSuccess)
	return response.Success(c, RefreshResponse{
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn(),
	})
}

// Logout ends the session behind the presented access token. Revoking the
// session ID takes the refresh token down with it, so a stolen refresh token
// is dead the moment its owner logs out.
func (h *AuthHandler) Logout(c *fiber.Ctx) error {
	claims, ok := middleware.GetClaims(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	// The session entry must outlive the longest-lived token minted under
	// the session, which is the refresh token issued alongside this access
	// token.
	sessionExpiry := claims.IssuedAt.Time.Add(h.jwtManager.RefreshTTL())

	if err := h.revocations.Add(c.Context(), authutil.RevocationEntry{
		TokenID:       claims.SessionID,
		PrincipalType: claims.PrincipalType,
		PrincipalID:   claims.PrincipalID,
		Reason:        model.RevocationReasonLogout,
		ExpiresAt:     sessionExpiry,
	}); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	// The access JTI too, for backends that want per-token audit rows.
	if err := h.revocations.Add(c.Context(), authutil.RevocationEntry{
		TokenID:       claims.ID,
		PrincipalType: claims.PrincipalType,
		PrincipalID:   claims.PrincipalID,
		Reason:        model.RevocationReasonLogout,
		ExpiresAt:     claims.ExpiresAt.Time,
	}); err != nil {
		return response.InternalServerError(c, "Failed to logout")
	}

	if h.metrics != nil {
		h.metrics.RecordRevocation(model.RevocationReasonLogout)
		h.metrics.RecordLogout()
	}

	return response.Success(c, fiber.Map{
		"message": "Successfully logged out",
	})
}
