package auth

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	authutil "github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/metrics"
	"github.com/sahilchouksey/lms-api/utils/response"
)

// LoginRequest carries login credentials. Portal narrows the lookup to one
// account table; tenant disambiguates teacher/student emails, which are only
// unique per tenant.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
	Portal   string `json:"portal,omitempty" validate:"omitempty,oneof=admin teacher student"`
	Tenant   string `json:"tenant,omitempty"`
}

// LoginResponse represents a successful login response
type LoginResponse struct {
	Principal    PrincipalResponse `json:"principal"`
	AccessToken  string            `json:"access_token"`
	RefreshToken string            `json:"refresh_token"`
	ExpiresIn    int64             `json:"expires_in"` // in seconds
}

func principalResponse(p model.Principal) PrincipalResponse {
	return PrincipalResponse{
		ID:          p.ID,
		Type:        p.Type,
		TenantID:    p.TenantID,
		Email:       p.Email,
		Name:        p.Name,
		Role:        p.Role,
		Permissions: p.Permissions,
	}
}

// Login authenticates a principal and opens a new session. Every failure
// path returns the same generic message so responses never reveal whether an
// account exists.
func (h *AuthHandler) Login(c *fiber.Ctx) error {
	var req LoginRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" || req.Password == "" {
		return response.BadRequest(c, "Email and password are required")
	}

	ip := c.IP()
	portal := req.Portal

	reject := func(outcome string) error {
		if h.bruteForce != nil {
			h.bruteForce.RecordFailedAttempt(c, ip)
		}
		if h.metrics != nil {
			h.metrics.RecordLogin(portalLabel(portal), outcome)
		}
		return response.UnauthorizedCode(c, response.CodeInvalidCredentials, "Invalid email or password")
	}

	// Resolve the tenant slug when one is supplied. An unknown or suspended
	// tenant fails exactly like bad credentials.
	var tenantID *uint
	if req.Tenant != "" {
		var tenant model.Tenant
		if err := h.db.Where("slug = ?", req.Tenant).First(&tenant).Error; err != nil {
			return reject(metrics.OutcomeInvalidCredentials)
		}
		if !tenant.IsActive() {
			return reject(metrics.OutcomeDisabled)
		}
		tenantID = &tenant.ID
	}

	principal, passwordHash, err := h.principals.FindByEmail(c.Context(), portal, req.Email, tenantID)
	if err != nil {
		if errors.Is(err, authutil.ErrPrincipalNotFound) {
			// Burn a bcrypt compare so the miss costs the same as a mismatch.
			authutil.VerifyPassword("$2a$12$C6UzMDM.H6dfI/f/IKcEeO7ZDQpB0LbOQkpejbrDbkTuXQ5nEvHhO", req.Password)
			return reject(metrics.OutcomeInvalidCredentials)
		}
		return response.InternalServerError(c, "Failed to process login")
	}

	if err := authutil.VerifyPassword(passwordHash, req.Password); err != nil {
		return reject(metrics.OutcomeInvalidCredentials)
	}

	if !principal.IsActive() {
		return reject(metrics.OutcomeDisabled)
	}

	if h.bruteForce != nil {
		h.bruteForce.RecordSuccessfulAttempt(c, ip)
	}

	pair, err := h.jwtManager.GeneratePair(principal)
	if err != nil {
		return response.InternalServerError(c, "Failed to generate tokens")
	}

	if h.metrics != nil {
		h.metrics.RecordLogin(portalLabel(portal), metrics.OutcomeSuccess)
	}

	return response.Success(c, LoginResponse{
		Principal:    principalResponse(principal),
		AccessToken:  pair.AccessToken,
		RefreshToken: pair.RefreshToken,
		ExpiresIn:    pair.ExpiresIn(),
	})
}

func portalLabel(portal string) string {
	if portal == "" {
		return "any"
	}
	return portal
}
