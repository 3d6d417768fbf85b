package student

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// StudentHandler handles student account management. Accounts are
// provisioned by admins or teachers; there is no self-registration.
type StudentHandler struct {
	db         *gorm.DB
	principals *auth.PrincipalStore
	validator  *validation.Validator
}

// NewStudentHandler creates a new student handler
func NewStudentHandler(db *gorm.DB) *StudentHandler {
	return &StudentHandler{
		db:         db,
		principals: auth.NewPrincipalStore(db),
		validator:  validation.NewValidator(),
	}
}

// StudentFilter is the typed query surface of the student list endpoint
type StudentFilter struct {
	Page         int    `query:"page" validate:"omitempty,min=1"`
	Limit        int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search       string `query:"search" validate:"omitempty,max=255"`
	Status       string `query:"status" validate:"omitempty,oneof=active disabled"`
	InstituteID  uint   `query:"institute_id" validate:"omitempty,min=1"`
	EnrollmentNo string `query:"enrollment_no" validate:"omitempty,max=50"`
	TenantID     uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateStudentRequest represents the request body for provisioning a student
type CreateStudentRequest struct {
	InstituteID  *uint  `json:"institute_id" validate:"omitempty,min=1"`
	Email        string `json:"email" validate:"required,email,max=255"`
	Password     string `json:"password" validate:"required,min=8,max=128"`
	Name         string `json:"name" validate:"required,min=2,max=255"`
	EnrollmentNo string `json:"enrollment_no" validate:"omitempty,max=50"`
}

// UpdateStudentRequest represents the request body for updating a student
type UpdateStudentRequest struct {
	InstituteID  *uint  `json:"institute_id" validate:"omitempty,min=1"`
	Name         string `json:"name" validate:"omitempty,min=2,max=255"`
	EnrollmentNo string `json:"enrollment_no" validate:"omitempty,max=50"`
	Status       string `json:"status" validate:"omitempty,oneof=active disabled"`
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

// ListStudents handles GET /api/v1/students
func (h *StudentHandler) ListStudents(c *fiber.Ctx) error {
	var filter StudentFilter
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

	query, err := scoped(c, h.db.Model(&model.Student{}), filter.TenantID)
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
	if filter.EnrollmentNo != "" {
		query = query.Where("enrollment_no = ?", filter.EnrollmentNo)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count students")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var students []model.Student
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&students).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch students")
	}

	return response.Paginated(c, students, pagination)
}

// GetStudent handles GET /api/v1/students/:id
func (h *StudentHandler) GetStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Student{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var student model.Student
	if err := query.Preload("Institute").First(&student, "students.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	return response.Success(c, student)
}

// CreateStudent handles POST /api/v1/students
func (h *StudentHandler) CreateStudent(c *fiber.Ctx) error {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil || effective == nil {
		return response.BadRequest(c, "A tenant is required to create a student")
	}
	tenantID := *effective

	var req CreateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	if !auth.IsPasswordValid(req.Password) {
		return response.BadRequest(c, "Password must be at least 8 characters long")
	}

	var existing model.Student
	if err := h.db.Where("tenant_id = ? AND email = ?", tenantID, req.Email).First(&existing).Error; err == nil {
		return response.Conflict(c, "Student with this email already exists")
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

	student := model.Student{
		TenantID:     tenantID,
		InstituteID:  req.InstituteID,
		Email:        req.Email,
		PasswordHash: hash,
		Name:         validation.SanitizeString(req.Name),
		EnrollmentNo: req.EnrollmentNo,
		Status:       model.PrincipalStatusActive,
	}

	if err := h.db.Create(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to create student")
	}

	return response.Created(c, student)
}

// UpdateStudent handles PUT /api/v1/students/:id
func (h *StudentHandler) UpdateStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := scoped(c, h.db.Model(&model.Student{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var student model.Student
	if err := query.First(&student, "students.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	if req.Name != "" {
		student.Name = validation.SanitizeString(req.Name)
	}
	if req.EnrollmentNo != "" {
		student.EnrollmentNo = req.EnrollmentNo
	}
	if req.InstituteID != nil {
		var institute model.Institute
		if err := h.db.Where("id = ? AND tenant_id = ?", *req.InstituteID, student.TenantID).First(&institute).Error; err != nil {
			return response.BadRequest(c, "Institute not found")
		}
		student.InstituteID = req.InstituteID
	}

	disabling := req.Status == model.PrincipalStatusDisabled && student.Status != model.PrincipalStatusDisabled
	if req.Status != "" {
		student.Status = req.Status
	}

	if err := h.db.Save(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to update student")
	}

	if disabling {
		// Kill every outstanding session, not just future logins.
		if err := h.principals.BumpTokenVersion(c.Context(), model.PrincipalTypeStudent, student.ID); err != nil {
			return response.InternalServerError(c, "Failed to invalidate sessions")
		}
	}

	return response.SuccessWithMessage(c, "Student updated successfully", student)
}

// DeleteStudent handles DELETE /api/v1/students/:id
func (h *StudentHandler) DeleteStudent(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Student{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var student model.Student
	if err := query.First(&student, "students.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Student not found")
		}
		return response.InternalServerError(c, "Failed to fetch student")
	}

	// Soft delete. Auth lookups exclude deleted rows, so live tokens stop
	// validating on their next request.
	if err := h.db.Delete(&student).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete student")
	}

	return response.SuccessWithMessage(c, "Student deleted successfully", nil)
}
