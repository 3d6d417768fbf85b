package tenant

import (
	"encoding/json"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// TenantHandler handles tenant administration. Every route through it sits
// behind the platform-admin guard.
type TenantHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewTenantHandler creates a new tenant handler
func NewTenantHandler(db *gorm.DB) *TenantHandler {
	return &TenantHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// TenantFilter is the typed query surface of the tenant list endpoint
type TenantFilter struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search string `query:"search" validate:"omitempty,max=255"`
	Status string `query:"status" validate:"omitempty,oneof=active suspended"`
}

// CreateTenantRequest represents the request body for creating a tenant
type CreateTenantRequest struct {
	Name         string         `json:"name" validate:"required,min=2,max=255"`
	Slug         string         `json:"slug" validate:"required,min=2,max=100"`
	ContactEmail string         `json:"contact_email" validate:"required,email"`
	Settings     map[string]any `json:"settings,omitempty"`
}

// UpdateTenantRequest represents the request body for updating a tenant
type UpdateTenantRequest struct {
	Name         string         `json:"name" validate:"omitempty,min=2,max=255"`
	ContactEmail string         `json:"contact_email" validate:"omitempty,email"`
	Status       string         `json:"status" validate:"omitempty,oneof=active suspended"`
	Settings     map[string]any `json:"settings,omitempty"`
}

// ListTenants handles GET /api/v1/tenants
func (h *TenantHandler) ListTenants(c *fiber.Ctx) error {
	var filter TenantFilter
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

	query := h.db.Model(&model.Tenant{})
	if filter.Search != "" {
		query = query.Where("name ILIKE ? OR slug ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count tenants")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var tenants []model.Tenant
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&tenants).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch tenants")
	}

	return response.Paginated(c, tenants, pagination)
}

// GetTenant handles GET /api/v1/tenants/:id
func (h *TenantHandler) GetTenant(c *fiber.Ctx) error {
	id := c.Params("id")

	var tenant model.Tenant
	if err := h.db.Preload("Institutes").First(&tenant, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Tenant not found")
		}
		return response.InternalServerError(c, "Failed to fetch tenant")
	}

	return response.Success(c, tenant)
}

// CreateTenant handles POST /api/v1/tenants
func (h *TenantHandler) CreateTenant(c *fiber.Ctx) error {
	var req CreateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Slug = validation.SanitizeString(req.Slug)

	if !validation.ValidateSlug(req.Slug) {
		return response.BadRequest(c, "Slug must be lowercase letters, digits and hyphens")
	}

	var existing model.Tenant
	if err := h.db.Where("slug = ?", req.Slug).First(&existing).Error; err == nil {
		return response.Conflict(c, "Tenant with this slug already exists")
	}

	tenant := model.Tenant{
		Name:         req.Name,
		Slug:         req.Slug,
		ContactEmail: req.ContactEmail,
		Status:       model.TenantStatusActive,
	}
	if req.Settings != nil {
		if raw, err := settingsJSON(req.Settings); err == nil {
			tenant.Settings = raw
		}
	}

	if err := h.db.Create(&tenant).Error; err != nil {
		return response.InternalServerError(c, "Failed to create tenant")
	}

	return response.Created(c, tenant)
}

// UpdateTenant handles PUT /api/v1/tenants/:id
func (h *TenantHandler) UpdateTenant(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateTenantRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var tenant model.Tenant
	if err := h.db.First(&tenant, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Tenant not found")
		}
		return response.InternalServerError(c, "Failed to fetch tenant")
	}

	if req.Name != "" {
		tenant.Name = validation.SanitizeString(req.Name)
	}
	if req.ContactEmail != "" {
		tenant.ContactEmail = req.ContactEmail
	}
	if req.Status != "" {
		// Suspension blocks every new login in the tenant. Outstanding tokens
		// run out on their own schedule unless revoked individually.
		tenant.Status = req.Status
	}
	if req.Settings != nil {
		if raw, err := settingsJSON(req.Settings); err == nil {
			tenant.Settings = raw
		}
	}

	if err := h.db.Save(&tenant).Error; err != nil {
		return response.InternalServerError(c, "Failed to update tenant")
	}

	return response.SuccessWithMessage(c, "Tenant updated successfully", tenant)
}

// DeleteTenant handles DELETE /api/v1/tenants/:id
func (h *TenantHandler) DeleteTenant(c *fiber.Ctx) error {
	id := c.Params("id")

	var tenant model.Tenant
	if err := h.db.First(&tenant, id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Tenant not found")
		}
		return response.InternalServerError(c, "Failed to fetch tenant")
	}

	if tenant.Status != model.TenantStatusSuspended {
		return response.BadRequest(c, "Suspend a tenant before deleting it")
	}

	if err := h.db.Delete(&tenant).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete tenant")
	}

	return response.SuccessWithMessage(c, "Tenant deleted successfully", nil)
}

func settingsJSON(v map[string]any) (datatypes.JSON, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return datatypes.JSON(raw), nil
}
