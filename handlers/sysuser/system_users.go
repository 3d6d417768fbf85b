package sysuser

import (
	"github.com/gofiber/fiber/v2"
	"github.com/lib/pq"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// SystemUserHandler handles back-office account management. Every route is
// restricted to admins at the router.
type SystemUserHandler struct {
	db         *gorm.DB
	principals *auth.PrincipalStore
	validator  *validation.Validator
}

// NewSystemUserHandler creates a new system user handler
func NewSystemUserHandler(db *gorm.DB) *SystemUserHandler {
	return &SystemUserHandler{
		db:         db,
		principals: auth.NewPrincipalStore(db),
		validator:  validation.NewValidator(),
	}
}

// SystemUserFilter is the typed query surface of the system user list endpoint
type SystemUserFilter struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search   string `query:"search" validate:"omitempty,max=255"`
	Role     string `query:"role" validate:"omitempty,oneof=admin support operator"`
	Status   string `query:"status" validate:"omitempty,oneof=active disabled"`
	TenantID uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateSystemUserRequest represents the request body for provisioning a
// system user. A nil tenant_id creates a platform-global account.
type CreateSystemUserRequest struct {
	TenantID    *uint    `json:"tenant_id" validate:"omitempty,min=1"`
	Email       string   `json:"email" validate:"required,email,max=255"`
	Password    string   `json:"password" validate:"required,min=8,max=128"`
	Name        string   `json:"name" validate:"required,min=2,max=255"`
	Role        string   `json:"role" validate:"required,oneof=admin support operator"`
	Permissions []string `json:"permissions" validate:"omitempty,dive,min=3,max=100"`
}

// UpdateSystemUserRequest represents the request body for updating a system user
type UpdateSystemUserRequest struct {
	Name        string    `json:"name" validate:"omitempty,min=2,max=255"`
	Role        string    `json:"role" validate:"omitempty,oneof=admin support operator"`
	Permissions *[]string `json:"permissions" validate:"omitempty,dive,min=3,max=100"`
	Status      string    `json:"status" validate:"omitempty,oneof=active disabled"`
}

// ListSystemUsers handles GET /api/v1/system-users
func (h *SystemUserHandler) ListSystemUsers(c *fiber.Ctx) error {
	var filter SystemUserFilter
	if err := c.QueryParser(&filter); err != nil {
		return response.BadRequest(c, "Invalid query parameters")
	}
	if err := h.validator.ValidateStruct(filter); err != nil {
		return response.ValidationError(c, err)
	}
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.Limit < 1 {
		filter.Limit = 10
	}

	query := h.db.Model(&model.SystemUser{})

	// Tenant-pinned admins only see accounts pinned to their own tenant.
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	} else if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}

	if filter.Search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Role != "" {
		query = query.Where("role = ?", filter.Role)
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count system users")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var users []model.SystemUser
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&users).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch system users")
	}

	return response.Paginated(c, users, pagination)
}

// GetSystemUser handles GET /api/v1/system-users/:id
func (h *SystemUserHandler) GetSystemUser(c *fiber.Ctx) error {
	id := c.Params("id")

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	query := h.db.Model(&model.SystemUser{})
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	}

	var user model.SystemUser
	if err := query.First(&user, "system_users.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "System user not found")
		}
		return response.InternalServerError(c, "Failed to fetch system user")
	}

	return response.Success(c, user)
}

// CreateSystemUser handles POST /api/v1/system-users
func (h *SystemUserHandler) CreateSystemUser(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req CreateSystemUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	// Only a platform-global admin may mint global accounts or accounts in
	// other tenants.
	if !principal.IsGlobal() {
		if req.TenantID == nil || *req.TenantID != *principal.TenantID {
			return response.Forbidden(c, "Cannot create system users outside your tenant")
		}
	}

	if req.TenantID != nil {
		var tenant model.Tenant
		if err := h.db.First(&tenant, *req.TenantID).Error; err != nil {
			return response.BadRequest(c, "Tenant not found")
		}
	}

	if !auth.IsPasswordValid(req.Password) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	var existing model.SystemUser
	if err := h.db.Where("email = ?", req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "System user with this email already exists")
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	user := model.SystemUser{
		TenantID:     req.TenantID,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         validation.SanitizeString(req.Name),
		Role:         req.Role,
		Permissions:  pq.StringArray(req.Permissions),
		Status:       model.PrincipalStatusActive,
	}

	if err := h.db.Create(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to create system user")
	}

	return response.Created(c, user)
}

// UpdateSystemUser handles PUT /api/v1/system-users/:id
func (h *SystemUserHandler) UpdateSystemUser(c *fiber.Ctx) error {
	id := c.Params("id")

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	var req UpdateSystemUserRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query := h.db.Model(&model.SystemUser{})
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	}

	var user model.SystemUser
	if err := query.First(&user, "system_users.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "System user not found")
		}
		return response.InternalServerError(c, "Failed to fetch system user")
	}

	permissionsChanged := false
	if req.Name != "" {
		user.Name = validation.SanitizeString(req.Name)
	}
	if req.Role != "" && req.Role != user.Role {
		user.Role = req.Role
		permissionsChanged = true
	}
	if req.Permissions != nil {
		user.Permissions = pq.StringArray(*req.Permissions)
		permissionsChanged = true
	}

	disabling := req.Status == model.PrincipalStatusDisabled && user.Status != model.PrincipalStatusDisabled
	if req.Status != "" {
		user.Status = req.Status
	}

	if err := h.db.Save(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to update system user")
	}

	// Permissions ride inside access tokens, so a grant change only lands
	// once old tokens die. Bump the version to force that now.
	if disabling || permissionsChanged {
		if err := h.principals.BumpTokenVersion(c.Context(), model.PrincipalTypeSystem, user.ID); err != nil {
			return response.InternalServerError(c, "Failed to invalidate sessions")
		}
	}

	return response.SuccessWithMessage(c, "System user updated successfully", user)
}

// DeleteSystemUser handles DELETE /api/v1/system-users/:id
func (h *SystemUserHandler) DeleteSystemUser(c *fiber.Ctx) error {
	id := c.Params("id")

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	query := h.db.Model(&model.SystemUser{})
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	}

	var user model.SystemUser
	if err := query.First(&user, "system_users.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "System user not found")
		}
		return response.InternalServerError(c, "Failed to fetch system user")
	}

	if user.ID == principal.ID && principal.Type == model.PrincipalTypeSystem {
		return response.BadRequest(c, "Cannot delete your own account")
	}

	if err := h.db.Delete(&user).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete system user")
	}

	return response.SuccessWithMessage(c, "System user deleted successfully", nil)
}
