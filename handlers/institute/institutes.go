package institute

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// InstituteHandler handles institute-related requests
type InstituteHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewInstituteHandler creates a new institute handler
func NewInstituteHandler(db *gorm.DB) *InstituteHandler {
	return &InstituteHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// InstituteFilter is the typed query surface of the institute list endpoint
type InstituteFilter struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search   string `query:"search" validate:"omitempty,max=255"`
	Status   string `query:"status" validate:"omitempty,oneof=active inactive"`
	TenantID uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateInstituteRequest represents the request body for creating an institute
type CreateInstituteRequest struct {
	Name    string `json:"name" validate:"required,min=2,max=255"`
	Code    string `json:"code" validate:"required,min=2,max=50"`
	Address string `json:"address" validate:"omitempty,max=1000"`
}

// UpdateInstituteRequest represents the request body for updating an institute
type UpdateInstituteRequest struct {
	Name    string `json:"name" validate:"omitempty,min=2,max=255"`
	Code    string `json:"code" validate:"omitempty,min=2,max=50"`
	Address string `json:"address" validate:"omitempty,max=1000"`
	Status  string `json:"status" validate:"omitempty,oneof=active inactive"`
}

func scoped(c *fiber.Ctx, query *gorm.DB, filterTenantID uint) (*gorm.DB, error) {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil {
		return nil, err
	}
	if effective != nil {
		return query.Where("tenant_id = ?", *effective), nil
	}
	if filterTenantID > 0 {
		return query.Where("tenant_id = ?", filterTenantID), nil
	}
	return query, nil
}

// ListInstitutes handles GET /api/v1/institutes
func (h *InstituteHandler) ListInstitutes(c *fiber.Ctx) error {
	var filter InstituteFilter
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

	query, err := scoped(c, h.db.Model(&model.Institute{}), filter.TenantID)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	if filter.Search != "" {
		query = query.Where("name ILIKE ? OR code ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count institutes")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var institutes []model.Institute
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&institutes).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch institutes")
	}

	return response.Paginated(c, institutes, pagination)
}

// GetInstitute handles GET /api/v1/institutes/:id
func (h *InstituteHandler) GetInstitute(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Institute{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var institute model.Institute
	if err := query.First(&institute, "institutes.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Institute not found")
		}
		return response.InternalServerError(c, "Failed to fetch institute")
	}

	return response.Success(c, institute)
}

// CreateInstitute handles POST /api/v1/institutes
func (h *InstituteHandler) CreateInstitute(c *fiber.Ctx) error {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil || effective == nil {
		return response.BadRequest(c, "A tenant is required to create an institute")
	}
	tenantID := *effective

	var req CreateInstituteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Name = validation.SanitizeString(req.Name)
	req.Code = validation.SanitizeString(req.Code)

	var existing model.Institute
	if err := h.db.Where("tenant_id = ? AND code = ?", tenantID, req.Code).First(&existing).Error; err == nil {
		return response.Conflict(c, "Institute with this code already exists")
	}

	institute := model.Institute{
		TenantID: tenantID,
		Name:     req.Name,
		Code:     req.Code,
		Address:  req.Address,
		Status:   "active",
	}

	if err := h.db.Create(&institute).Error; err != nil {
		return response.InternalServerError(c, "Failed to create institute")
	}

	return response.Created(c, institute)
}

// UpdateInstitute handles PUT /api/v1/institutes/:id
func (h *InstituteHandler) UpdateInstitute(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateInstituteRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := scoped(c, h.db.Model(&model.Institute{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var institute model.Institute
	if err := query.First(&institute, "institutes.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Institute not found")
		}
		return response.InternalServerError(c, "Failed to fetch institute")
	}

	if req.Name != "" {
		institute.Name = validation.SanitizeString(req.Name)
	}
	if req.Code != "" {
		var existing model.Institute
		if err := h.db.Where("tenant_id = ? AND code = ? AND id != ?", institute.TenantID, req.Code, institute.ID).First(&existing).Error; err == nil {
			return response.Conflict(c, "Institute with this code already exists")
		}
		institute.Code = validation.SanitizeString(req.Code)
	}
	if req.Address != "" {
		institute.Address = req.Address
	}
	if req.Status != "" {
		institute.Status = req.Status
	}

	if err := h.db.Save(&institute).Error; err != nil {
		return response.InternalServerError(c, "Failed to update institute")
	}

	return response.SuccessWithMessage(c, "Institute updated successfully", institute)
}

// DeleteInstitute handles DELETE /api/v1/institutes/:id
func (h *InstituteHandler) DeleteInstitute(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Institute{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var institute model.Institute
	if err := query.First(&institute, "institutes.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Institute not found")
		}
		return response.InternalServerError(c, "Failed to fetch institute")
	}

	var courseCount int64
	if err := h.db.Model(&model.Course{}).Where("institute_id = ?", institute.ID).Count(&courseCount).Error; err != nil {
		return response.InternalServerError(c, "Failed to check institute dependencies")
	}
	if courseCount > 0 {
		return response.BadRequest(c, "Cannot delete institute with existing courses")
	}

	if err := h.db.Delete(&institute).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete institute")
	}

	return response.SuccessWithMessage(c, "Institute deleted successfully", nil)
}
