package teacher

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// TeacherHandler handles teacher account management. Accounts are
// provisioned by admins; there is no self-registration.
type TeacherHandler struct {
	db         *gorm.DB
	principals *auth.PrincipalStore
	validator  *validation.Validator
}

// NewTeacherHandler creates a new teacher handler
func NewTeacherHandler(db *gorm.DB) *TeacherHandler {
	return &TeacherHandler{
		db:         db,
		principals: auth.NewPrincipalStore(db),
		validator:  validation.NewValidator(),
	}
}

// TeacherFilter is the typed query surface of the teacher list endpoint
type TeacherFilter struct {
	Page        int    `query:"page" validate:"omitempty,min=1"`
	Limit       int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search      string `query:"search" validate:"omitempty,max=255"`
	Status      string `query:"status" validate:"omitempty,oneof=active disabled"`
	InstituteID uint   `query:"institute_id" validate:"omitempty,min=1"`
	TenantID    uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateTeacherRequest represents the request body for provisioning a teacher
type CreateTeacherRequest struct {
	InstituteID *uint  `json:"institute_id" validate:"omitempty,min=1"`
	Email       string `json:"email" validate:"required,email,max=255"`
	Password    string `json:"password" validate:"required,min=8,max=128"`
	Name        string `json:"name" validate:"required,min=2,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
}

// UpdateTeacherRequest represents the request body for updating a teacher
type UpdateTeacherRequest struct {
	InstituteID *uint  `json:"institute_id" validate:"omitempty,min=1"`
	Name        string `json:"name" validate:"omitempty,min=2,max=255"`
	Phone       string `json:"phone" validate:"omitempty,max=20"`
	Status      string `json:"status" validate:"omitempty,oneof=active disabled"`
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

// ListTeachers handles GET /api/v1/teachers
func (h *TeacherHandler) ListTeachers(c *fiber.Ctx) error {
	var filter TeacherFilter
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

	query, err := scoped(c, h.db.Model(&model.Teacher{}), filter.TenantID)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	if filter.Search != "" {
		query = query.Where("name ILIKE ? OR email ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.InstituteID > 0 {
		query = query.Where("institute_id = ?", filter.InstituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count teachers")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var teachers []model.Teacher
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&teachers).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch teachers")
	}

	return response.Paginated(c, teachers, pagination)
}

// GetTeacher handles GET /api/v1/teachers/:id
func (h *TeacherHandler) GetTeacher(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Teacher{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var teacher model.Teacher
	if err := query.Preload("Institute").First(&teacher, "teachers.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Teacher not found")
		}
		return response.InternalServerError(c, "Failed to fetch teacher")
	}

	return response.Success(c, teacher)
}

// CreateTeacher handles POST /api/v1/teachers
func (h *TeacherHandler) CreateTeacher(c *fiber.Ctx) error {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil || effective == nil {
		return response.BadRequest(c, "A tenant is required to create a teacher")
	}
	tenantID := *effective

	var req CreateTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if !auth.IsPasswordValid(req.Password) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	var existing model.Teacher
	if err := h.db.Where("tenant_id = ? AND email = ?", tenantID, req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "Teacher with this email already exists")
	}

	if req.InstituteID != nil {
		var institute model.Institute
		if err := h.db.Where("id = ? AND tenant_id = ?", *req.InstituteID, tenantID).First(&institute).Error; err != nil {
			return response.BadRequest(c, "Institute not found")
		}
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		return response.InternalServerError(c, "Failed to process password")
	}

	teacher := model.Teacher{
		TenantID:     tenantID,
		InstituteID:  req.InstituteID,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         validation.SanitizeString(req.Name),
		Phone:        req.Phone,
		Status:       model.PrincipalStatusActive,
	}

	if err := h.db.Create(&teacher).Error; err != nil {
		return response.InternalServerError(c, "Failed to create teacher")
	}

	return response.Created(c, teacher)
}

// UpdateTeacher handles PUT /api/v1/teachers/:id
func (h *TeacherHandler) UpdateTeacher(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateTeacherRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := scoped(c, h.db.Model(&model.Teacher{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var teacher model.Teacher
	if err := query.First(&teacher, "teachers.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Teacher not found")
		}
		return response.InternalServerError(c, "Failed to fetch teacher")
	}

	if req.Name != "" {
		teacher.Name = validation.SanitizeString(req.Name)
	}
	if req.Phone != "" {
		teacher.Phone = req.Phone
	}
	if req.InstituteID != nil {
		var institute model.Institute
		if err := h.db.Where("id = ? AND tenant_id = ?", *req.InstituteID, teacher.TenantID).First(&institute).Error; err != nil {
			return response.BadRequest(c, "Institute not found")
		}
		teacher.InstituteID = req.InstituteID
	}

	disabling := req.Status == model.PrincipalStatusDisabled && teacher.Status != model.PrincipalStatusDisabled
	if req.Status != "" {
		teacher.Status = req.Status
	}

	if err := h.db.Save(&teacher).Error; err != nil {
		return response.InternalServerError(c, "Failed to update teacher")
	}

	if disabling {
		// Kill every outstanding session, not just future logins.
		if err := h.principals.BumpTokenVersion(c.Context(), model.PrincipalTypeTeacher, teacher.ID); err != nil {
			return response.InternalServerError(c, "Failed to invalidate sessions")
		}
	}

	return response.SuccessWithMessage(c, "Teacher updated successfully", teacher)
}

// DeleteTeacher handles DELETE /api/v1/teachers/:id
func (h *TeacherHandler) DeleteTeacher(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Teacher{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var teacher model.Teacher
	if err := query.First(&teacher, "teachers.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Teacher not found")
		}
		return response.InternalServerError(c, "Failed to fetch teacher")
	}

	// Soft delete. Auth lookups exclude deleted rows, so live tokens stop
	// validating on their next request.
	if err := h.db.Delete(&teacher).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete teacher")
	}

	return response.SuccessWithMessage(c, "Teacher deleted successfully", nil)
}
