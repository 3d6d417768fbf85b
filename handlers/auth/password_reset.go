package auth

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"github.com/sahilchouksey/lms-api/model"
	authutil "github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
)

// ForgotPasswordRequest represents a password reset request
type ForgotPasswordRequest struct {
	Email  string `json:"email" validate:"required,email"`
	Portal string `json:"portal,omitempty" validate:"omitempty,oneof=admin teacher student"`
	Tenant string `json:"tenant,omitempty"`
}

// ResetPasswordRequest represents a password reset with token
type ResetPasswordRequest struct {
	Token       string `json:"token" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

// ChangePasswordRequest represents a password change request
type ChangePasswordRequest struct {
	OldPassword string `json:"old_password" validate:"required"`
	NewPassword string `json:"new_password" validate:"required,min=8"`
}

const forgotPasswordMessage = "If the email exists, a password reset link will be sent"

// ForgotPassword starts the reset flow. The response is identical whether or
// not the account exists.
func (h *AuthHandler) ForgotPassword(c *fiber.Ctx) error {
	var req ForgotPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Email == "" {
		return response.BadRequest(c, "Email is required")
	}

	// Per-email cooldown so the endpoint cannot be used to flood an inbox.
	// Redis being down skips the cooldown rather than the reset.
	if h.redisCache != nil {
		key := fmt.Sprintf("reset_cooldown:%s", req.Email)
		fresh, err := h.redisCache.SetNX(c.Context(), key, "1", 5*time.Minute)
		if err == nil && !fresh {
			return response.Success(c, fiber.Map{"message": forgotPasswordMessage})
		}
	}

	var tenantID *uint
	if req.Tenant != "" {
		var tenant model.Tenant
		if err := h.db.Where("slug = ?", req.Tenant).First(&tenant).Error; err == nil {
			tenantID = &tenant.ID
		}
	}

	principal, _, err := h.principals.FindByEmail(c.Context(), req.Portal, req.Email, tenantID)
	if err != nil {
		return response.Success(c, fiber.Map{"message": forgotPasswordMessage})
	}

	resetToken := model.PasswordResetToken{
		PrincipalType: principal.Type,
		PrincipalID:   principal.ID,
		Token:         uuid.New().String(),
		ExpiresAt:     time.Now().Add(h.resetExpiry),
	}
	if err := h.db.Create(&resetToken).Error; err != nil {
		return response.InternalServerError(c, "Failed to create reset token")
	}

	// TODO: deliver the token by email once the notification service lands.

	return response.Success(c, fiber.Map{"message": forgotPasswordMessage})
}

// ResetPassword consumes a reset token and sets a new password. All existing
// sessions of the principal are invalidated by the token-version bump.
func (h *AuthHandler) ResetPassword(c *fiber.Ctx) error {
	var req ResetPasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.Token == "" || req.NewPassword == "" {
		return response.BadRequest(c, "Token and new password are required")
	}

	if !authutil.IsPasswordValid(req.NewPassword) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	var resetToken model.PasswordResetToken
	if err := h.db.Where("token = ?", req.Token).First(&resetToken).Error; err != nil {
		return response.BadRequest(c, "Invalid or expired reset token")
	}

	if resetToken.IsExpired() {
		return response.BadRequest(c, "Reset token has expired")
	}
	if resetToken.IsUsed() {
		return response.BadRequest(c, "Reset token has already been used")
	}

	hashedPassword, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	ctx := c.Context()
	if err := h.principals.UpdatePassword(ctx, resetToken.PrincipalType, resetToken.PrincipalID, hashedPassword); err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}
	if err := h.principals.BumpTokenVersion(ctx, resetToken.PrincipalType, resetToken.PrincipalID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}

	resetToken.MarkAsUsed()
	h.db.Save(&resetToken)

	return response.Success(c, fiber.Map{
		"message": "Password reset successfully",
	})
}

// ChangePassword lets an authenticated principal rotate its own password.
// The version bump logs out every session, including the current one.
func (h *AuthHandler) ChangePassword(c *fiber.Ctx) error {
	var req ChangePasswordRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if req.OldPassword == "" || req.NewPassword == "" {
		return response.BadRequest(c, "Old password and new password are required")
	}

	if !authutil.IsPasswordValid(req.NewPassword) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	ctx := c.Context()
	currentHash, err := h.principals.PasswordHash(ctx, principal.Type, principal.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load account")
	}

	if err := authutil.VerifyPassword(currentHash, req.OldPassword); err != nil {
		return response.BadRequest(c, "Current password is incorrect")
	}

	hashedPassword, err := authutil.HashPassword(req.NewPassword)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	if err := h.principals.UpdatePassword(ctx, principal.Type, principal.ID, hashedPassword); err != nil {
		return response.InternalServerError(c, "Failed to update password")
	}
	if err := h.principals.BumpTokenVersion(ctx, principal.Type, principal.ID); err != nil {
		return response.InternalServerError(c, "Failed to invalidate sessions")
	}

	return response.Success(c, fiber.Map{
		"message": "Password changed successfully. Please login again with your new password",
	})
}
