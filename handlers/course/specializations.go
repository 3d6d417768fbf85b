package course

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// SpecializationFilter is the typed query surface of the specialization list
type SpecializationFilter struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search string `query:"search" validate:"omitempty,max=255"`
}

// CreateSpecializationRequest represents the request body for creating a specialization
type CreateSpecializationRequest struct {
	Title       string `json:"title" validate:"required,min=2,max=255"`
	Code        string `json:"code" validate:"required,min=2,max=50"`
	Description string `json:"description" validate:"omitempty,max=10000"`
	Sequence    int    `json:"sequence" validate:"omitempty,min=0"`
}

// UpdateSpecializationRequest represents the request body for updating a specialization
type UpdateSpecializationRequest struct {
	Title       string  `json:"title" validate:"omitempty,min=2,max=255"`
	Code        string  `json:"code" validate:"omitempty,min=2,max=50"`
	Description *string `json:"description" validate:"omitempty,max=10000"`
	Sequence    *int    `json:"sequence" validate:"omitempty,min=0"`
}

// courseInScope loads a course the caller's tenant boundary allows.
func (h *CourseHandler) courseInScope(c *fiber.Ctx, courseID string) (*model.Course, error) {
	query, err := tenantScope(c, h.db.Model(&model.Course{}), 0)
	if err != nil {
		return nil, err
	}
	var course model.Course
	if err := query.First(&course, "courses.id = ?", courseID).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// ListSpecializations handles GET /api/v1/courses/:courseId/specializations
func (h *CourseHandler) ListSpecializations(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var filter SpecializationFilter
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
		filter.Limit = 50
	}

	query := h.db.Model(&model.Specialization{}).Where("course_id = ?", course.ID)
	if filter.Search != "" {
		query = query.Where("title ILIKE ? OR code ILIKE ?", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count specializations")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var specializations []model.Specialization
	if err := query.
		Order("sequence ASC, id ASC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&specializations).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch specializations")
	}

	return response.Paginated(c, specializations, pagination)
}

// GetSpecialization handles GET /api/v1/specializations/:id
func (h *CourseHandler) GetSpecialization(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := tenantScope(c, h.db.Model(&model.Specialization{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var specialization model.Specialization
	if err := query.Preload("Videos").First(&specialization, "specializations.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Specialization not found")
		}
		return response.InternalServerError(c, "Failed to fetch specialization")
	}

	return response.Success(c, specialization)
}

// CreateSpecialization handles POST /api/v1/courses/:courseId/specializations
func (h *CourseHandler) CreateSpecialization(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var req CreateSpecializationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Title = validation.SanitizeString(req.Title)
	req.Code = validation.SanitizeString(req.Code)
	req.Description = validation.StripHTML(req.Description)

	var existing model.Specialization
	if err := h.db.Where("course_id = ? AND code = ?", course.ID, req.Code).First(&existing).Error; err == nil {
		return response.Conflict(c, "Specialization with this code already exists in the course")
	}

	specialization := model.Specialization{
		TenantID:    course.TenantID,
		CourseID:    course.ID,
		Title:       req.Title,
		Code:        req.Code,
		Description: req.Description,
		Sequence:    req.Sequence,
	}

	if err := h.db.Create(&specialization).Error; err != nil {
		return response.InternalServerError(c, "Failed to create specialization")
	}

	return response.Created(c, specialization)
}

// UpdateSpecialization handles PUT /api/v1/specializations/:id
func (h *CourseHandler) UpdateSpecialization(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateSpecializationRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := tenantScope(c, h.db.Model(&model.Specialization{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var specialization model.Specialization
	if err := query.First(&specialization, "specializations.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Specialization not found")
		}
		return response.InternalServerError(c, "Failed to fetch specialization")
	}

	if req.Title != "" {
		specialization.Title = validation.SanitizeString(req.Title)
	}
	if req.Code != "" {
		var existing model.Specialization
		if err := h.db.Where("course_id = ? AND code = ? AND id != ?", specialization.CourseID, req.Code, specialization.ID).First(&existing).Error; err == nil {
			return response.Conflict(c, "Specialization with this code already exists in the course")
		}
		specialization.Code = validation.SanitizeString(req.Code)
	}
	if req.Description != nil {
		specialization.Description = validation.StripHTML(*req.Description)
	}
	if req.Sequence != nil {
		specialization.Sequence = *req.Sequence
	}

	if err := h.db.Save(&specialization).Error; err != nil {
		return response.InternalServerError(c, "Failed to update specialization")
	}

	return response.SuccessWithMessage(c, "Specialization updated successfully", specialization)
}

// DeleteSpecialization handles DELETE /api/v1/specializations/:id
func (h *CourseHandler) DeleteSpecialization(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := tenantScope(c, h.db.Model(&model.Specialization{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var specialization model.Specialization
	if err := query.First(&specialization, "specializations.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Specialization not found")
		}
		return response.InternalServerError(c, "Failed to fetch specialization")
	}

	var videoCount int64
	if err := h.db.Model(&model.Video{}).Where("specialization_id = ?", specialization.ID).Count(&videoCount).Error; err != nil {
		return response.InternalServerError(c, "Failed to check specialization dependencies")
	}
	if videoCount > 0 {
		return response.BadRequest(c, "Cannot delete specialization with existing videos")
	}

	if err := h.db.Delete(&specialization).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete specialization")
	}

	return response.SuccessWithMessage(c, "Specialization deleted successfully", nil)
}
