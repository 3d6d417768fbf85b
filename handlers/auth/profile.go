package auth

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
)

// UpdateProfileRequest represents a profile update request
type UpdateProfileRequest struct {
	Name string `json:"name,omitempty" validate:"omitempty,min=2,max=255"`
}

// GetProfile returns the authenticated principal. The middleware already
// loaded a fresh snapshot, so no extra query is needed.
func (h *AuthHandler) GetProfile(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	return response.Success(c, principalResponse(principal))
}

// UpdateProfile updates the current principal's own profile
func (h *AuthHandler) UpdateProfile(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Name != "" {
		name := validation.SanitizeString(req.Name)
		if len(name) < 2 {
			return response.BadRequest(c, "Name must be at least 2 characters")
		}
		if err := h.principals.UpdateName(c.Context(), principal.Type, principal.ID, name); err != nil {
			return response.InternalServerError(c, "Failed to update profile")
		}
		principal.Name = name
	}

	return response.Success(c, principalResponse(principal))
}
