package course

import (
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/cache"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// CourseHandler handles course-related requests
type CourseHandler struct {
	db         *gorm.DB
	redisCache *cache.RedisCache
	validator  *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(db *gorm.DB, redisCache *cache.RedisCache) *CourseHandler {
	return &CourseHandler{
		db:         db,
		redisCache: redisCache,
		validator:  validation.NewValidator(),
	}
}

// CourseFilter is the typed query surface of the course list endpoint.
// Parsing into a struct keeps every accepted parameter visible and validated
// in one place.
type CourseFilter struct {
	Page        int    `query:"page" validate:"omitempty,min=1"`
	Limit       int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search      string `query:"search" validate:"omitempty,max=255"`
	Status      string `query:"status" validate:"omitempty,oneof=draft published archived"`
	InstituteID uint   `query:"institute_id" validate:"omitempty,min=1"`
	TenantID    uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateCourseRequest represents the request body for creating a course
type CreateCourseRequest struct {
	InstituteID  *uint  `json:"institute_id" validate:"omitempty,min=1"`
	Title        string `json:"title" validate:"required,min=3,max=255"`
	Code         string `json:"code" validate:"required,min=2,max=50"`
	Description  string `json:"description" validate:"omitempty,max=10000"`
	ThumbnailURL string `json:"thumbnail_url" validate:"omitempty,url,max=512"`
	PriceAmount  int64  `json:"price_amount" validate:"omitempty,min=0"`
	Currency     string `json:"currency" validate:"omitempty,len=3"`
}

// UpdateCourseRequest represents the request body for updating a course
type UpdateCourseRequest struct {
	InstituteID  *uint   `json:"institute_id" validate:"omitempty,min=1"`
	Title        string  `json:"title" validate:"omitempty,min=3,max=255"`
	Code         string  `json:"code" validate:"omitempty,min=2,max=50"`
	Description  *string `json:"description" validate:"omitempty,max=10000"`
	ThumbnailURL string  `json:"thumbnail_url" validate:"omitempty,url,max=512"`
	Status       string  `json:"status" validate:"omitempty,oneof=draft published archived"`
	PriceAmount  *int64  `json:"price_amount" validate:"omitempty,min=0"`
	Currency     string  `json:"currency" validate:"omitempty,len=3"`
}

func publishedCacheKey(tenantID uint) string {
	return fmt.Sprintf("courses:published:%d", tenantID)
}

func (h *CourseHandler) invalidatePublishedCache(c *fiber.Ctx, tenantID uint) {
	if h.redisCache != nil {
		h.redisCache.Delete(c.Context(), publishedCacheKey(tenantID))
	}
}

// tenantScope applies the caller's tenant boundary to a query. Tenant-bound
// principals never see rows outside their tenant regardless of filters.
func tenantScope(c *fiber.Ctx, query *gorm.DB, filterTenantID uint) (*gorm.DB, error) {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil {
		return nil, err
	}
	if effective != nil {
		return query.Where("tenant_id = ?", *effective), nil
	}
	// Global principal with no tenant selected: honor the filter if present.
	if filterTenantID > 0 {
		return query.Where("tenant_id = ?", filterTenantID), nil
	}
	return query, nil
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	var filter CourseFilter
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

	principal, _ := middleware.GetPrincipal(c)

	// Students only ever see the published catalog.
	if principal.Role == model.RoleStudent {
		filter.Status = model.CourseStatusPublished
	}

	// The published catalog is the hot path; serve it from cache when the
	// default page is requested.
	cacheable := filter.Status == model.CourseStatusPublished &&
		filter.Search == "" && filter.InstituteID == 0 &&
		filter.Page == 1 && filter.Limit == 10 &&
		principal.TenantID != nil && h.redisCache != nil
	if cacheable {
		var cached response.PaginatedResponse
		if err := h.redisCache.GetJSON(c.Context(), publishedCacheKey(*principal.TenantID), &cached); err == nil {
			return c.Status(fiber.StatusOK).JSON(cached)
		}
	}

	query := h.db.Model(&model.Course{})
	query, err := tenantScope(c, query, filter.TenantID)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	if filter.Search != "" {
		query = query.Where("title ILIKE ? OR code ILIKE ? OR description ILIKE ?",
			"%"+filter.Search+"%", "%"+filter.Search+"%", "%"+filter.Search+"%")
	}
	if filter.Status != "" {
		query = query.Where("status = ?", filter.Status)
	}
	if filter.InstituteID > 0 {
		query = query.Where("institute_id = ?", filter.InstituteID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count courses")
	}

	offset := (filter.Page - 1) * filter.Limit
	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var courses []model.Course
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset(offset).
		Find(&courses).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch courses")
	}

	if cacheable {
		h.redisCache.SetJSON(c.Context(), publishedCacheKey(*principal.TenantID), response.PaginatedResponse{
			Success:    true,
			Data:       courses,
			Pagination: pagination,
		}, time.Minute)
	}

	return response.Paginated(c, courses, pagination)
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := tenantScope(c, h.db.Model(&model.Course{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var course model.Course
	if err := query.Preload("Specializations").First(&course, "courses.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			// Cross-tenant rows answer exactly like missing ones.
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	principal, _ := middleware.GetPrincipal(c)
	if principal.Role == model.RoleStudent && course.Status != model.CourseStatusPublished {
		return response.NotFound(c, "Course not found")
	}

	return response.Success(c, course)
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil || effective == nil {
		return response.BadRequest(c, "A tenant is required to create a course")
	}
	tenantID := *effective

	var req CreateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	req.Title = validation.SanitizeString(req.Title)
	req.Code = validation.SanitizeString(req.Code)
	// Rich text from the authoring UI is stored as plain text.
	req.Description = validation.StripHTML(req.Description)

	if req.InstituteID != nil {
		var institute model.Institute
		if err := h.db.Where("id = ? AND tenant_id = ?", *req.InstituteID, tenantID).First(&institute).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.NotFound(c, "Institute not found")
			}
			return response.InternalServerError(c, "Failed to verify institute")
		}
	}

	var existing model.Course
	if err := h.db.Where("tenant_id = ? AND code = ?", tenantID, req.Code).First(&existing).Error; err == nil {
		return response.Conflict(c, "Course with this code already exists")
	}

	currency := req.Currency
	if currency == "" {
		currency = "INR"
	}

	course := model.Course{
		TenantID:     tenantID,
		InstituteID:  req.InstituteID,
		Title:        req.Title,
		Code:         req.Code,
		Description:  req.Description,
		ThumbnailURL: req.ThumbnailURL,
		Status:       model.CourseStatusDraft,
		PriceAmount:  req.PriceAmount,
		Currency:     currency,
	}

	if err := h.db.Create(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to create course")
	}

	h.invalidatePublishedCache(c, tenantID)

	return response.Created(c, course)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateCourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := tenantScope(c, h.db.Model(&model.Course{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var course model.Course
	if err := query.First(&course, "courses.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if req.InstituteID != nil {
		var institute model.Institute
		if err := h.db.Where("id = ? AND tenant_id = ?", *req.InstituteID, course.TenantID).First(&institute).Error; err != nil {
			if err == gorm.ErrRecordNotFound {
				return response.NotFound(c, "Institute not found")
			}
			return response.InternalServerError(c, "Failed to verify institute")
		}
		course.InstituteID = req.InstituteID
	}

	if req.Title != "" {
		course.Title = validation.SanitizeString(req.Title)
	}

	if req.Code != "" {
		var existing model.Course
		if err := h.db.Where("tenant_id = ? AND code = ? AND id != ?", course.TenantID, req.Code, course.ID).First(&existing).Error; err == nil {
			return response.Conflict(c, "Course with this code already exists")
		}
		course.Code = validation.SanitizeString(req.Code)
	}

	if req.Description != nil {
		course.Description = validation.StripHTML(*req.Description)
	}

	if req.ThumbnailURL != "" {
		course.ThumbnailURL = req.ThumbnailURL
	}

	if req.Status != "" {
		if !validStatusTransition(course.Status, req.Status) {
			return response.BadRequest(c, fmt.Sprintf("Cannot move a course from %s to %s", course.Status, req.Status))
		}
		course.Status = req.Status
	}

	if req.PriceAmount != nil {
		course.PriceAmount = *req.PriceAmount
	}
	if req.Currency != "" {
		course.Currency = req.Currency
	}

	if err := h.db.Save(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to update course")
	}

	h.invalidatePublishedCache(c, course.TenantID)

	return response.SuccessWithMessage(c, "Course updated successfully", course)
}

// validStatusTransition enforces the course lifecycle: drafts publish,
// published courses archive, archived courses may be republished.
func validStatusTransition(from, to string) bool {
	if from == to {
		return true
	}
	switch from {
	case model.CourseStatusDraft:
		return to == model.CourseStatusPublished
	case model.CourseStatusPublished:
		return to == model.CourseStatusArchived
	case model.CourseStatusArchived:
		return to == model.CourseStatusPublished
	}
	return false
}

// DeleteCourse handles DELETE /api/v1/courses/:id
func (h *CourseHandler) DeleteCourse(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := tenantScope(c, h.db.Model(&model.Course{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var course model.Course
	if err := query.First(&course, "courses.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	if course.Status == model.CourseStatusPublished {
		return response.BadRequest(c, "Archive a published course before deleting it")
	}

	var videoCount int64
	if err := h.db.Model(&model.Video{}).Where("course_id = ?", course.ID).Count(&videoCount).Error; err != nil {
		return response.InternalServerError(c, "Failed to check course dependencies")
	}
	if videoCount > 0 {
		return response.BadRequest(c, "Cannot delete course with existing videos")
	}

	if err := h.db.Delete(&course).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete course")
	}

	h.invalidatePublishedCache(c, course.TenantID)

	return response.SuccessWithMessage(c, "Course deleted successfully", nil)
}
