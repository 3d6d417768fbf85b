package resource

import (
	"context"
	"io"
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/services/storage"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/pdfvalidation"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// ObjectStore is the slice of the storage client the resource handler needs.
type ObjectStore interface {
	UploadBytes(ctx context.Context, key string, data []byte, contentType string) (string, error)
	DeleteObject(ctx context.Context, key string) error
}

// ResourceHandler handles course resource uploads and retrieval
type ResourceHandler struct {
	db        *gorm.DB
	store     ObjectStore
	validator *validation.Validator
}

// NewResourceHandler creates a new resource handler
func NewResourceHandler(db *gorm.DB, store ObjectStore) *ResourceHandler {
	return &ResourceHandler{
		db:        db,
		store:     store,
		validator: validation.NewValidator(),
	}
}

// ResourceFilter is the typed query surface of the resource list endpoint
type ResourceFilter struct {
	Page   int    `query:"page" validate:"omitempty,min=1"`
	Limit  int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search string `query:"search" validate:"omitempty,max=255"`
}

// courseInScope loads a course the caller's tenant boundary allows.
func (h *ResourceHandler) courseInScope(c *fiber.Ctx, courseID string) (*model.Course, error) {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil {
		return nil, err
	}
	query := h.db.Model(&model.Course{})
	if effective != nil {
		query = query.Where("tenant_id = ?", *effective)
	}
	var course model.Course
	if err := query.First(&course, "courses.id = ?", courseID).Error; err != nil {
		return nil, err
	}
	return &course, nil
}

// ListResources handles GET /api/v1/courses/:courseId/resources
func (h *ResourceHandler) ListResources(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var filter ResourceFilter
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
		filter.Limit = 20
	}

	query := h.db.Model(&model.CourseResource{}).Where("course_id = ?", course.ID)
	if filter.Search != "" {
		query = query.Where("title ILIKE ?", "%"+filter.Search+"%")
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count resources")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var resources []model.CourseResource
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&resources).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch resources")
	}

	return response.Paginated(c, resources, pagination)
}

// GetResource handles GET /api/v1/courses/:courseId/resources/:id
func (h *ResourceHandler) GetResource(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var resource model.CourseResource
	if err := h.db.Where("course_id = ? AND id = ?", course.ID, c.Params("id")).First(&resource).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Resource not found")
		}
		return response.InternalServerError(c, "Failed to fetch resource")
	}

	return response.Success(c, resource)
}

// UploadResource handles POST /api/v1/courses/:courseId/resources
func (h *ResourceHandler) UploadResource(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	title := validation.SanitizeString(c.FormValue("title"))
	if title == "" {
		return response.BadRequest(c, "Title is required")
	}

	file, err := c.FormFile("file")
	if err != nil {
		return response.BadRequest(c, "File is required")
	}

	if !strings.HasSuffix(strings.ToLower(file.Filename), ".pdf") {
		return response.BadRequest(c, "Only PDF files are supported")
	}

	fileContent, err := file.Open()
	if err != nil {
		return response.InternalServerError(c, "Failed to open file")
	}
	defer fileContent.Close()

	content, err := io.ReadAll(fileContent)
	if err != nil {
		return response.InternalServerError(c, "Failed to read file")
	}

	result, err := pdfvalidation.ValidatePDFBytes(content, pdfvalidation.ResourceLimits)
	if err != nil {
		return response.InternalServerError(c, "Failed to validate PDF")
	}
	if !result.Valid {
		return response.BadRequest(c, result.Error)
	}

	key := storage.ResourceKey(course.TenantID, course.ID, file.Filename)
	publicURL, err := h.store.UploadBytes(c.Context(), key, content, "application/pdf")
	if err != nil {
		return response.InternalServerError(c, "Failed to upload file")
	}

	resource := model.CourseResource{
		TenantID:    course.TenantID,
		CourseID:    course.ID,
		Title:       title,
		ObjectKey:   key,
		PublicURL:   publicURL,
		FileSize:    result.FileSize,
		PageCount:   result.PageCount,
		ContentType: "application/pdf",
	}

	if err := h.db.Create(&resource).Error; err != nil {
		// Orphaned uploads are swept by the storage lifecycle policy.
		return response.InternalServerError(c, "Failed to save resource")
	}

	return response.Created(c, resource)
}

// DeleteResource handles DELETE /api/v1/courses/:courseId/resources/:id
func (h *ResourceHandler) DeleteResource(c *fiber.Ctx) error {
	course, err := h.courseInScope(c, c.Params("courseId"))
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Course not found")
		}
		return response.InternalServerError(c, "Failed to fetch course")
	}

	var resource model.CourseResource
	if err := h.db.Where("course_id = ? AND id = ?", course.ID, c.Params("id")).First(&resource).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Resource not found")
		}
		return response.InternalServerError(c, "Failed to fetch resource")
	}

	if err := h.store.DeleteObject(c.Context(), resource.ObjectKey); err != nil {
		return response.InternalServerError(c, "Failed to delete file from storage")
	}

	if err := h.db.Delete(&resource).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete resource")
	}

	return response.SuccessWithMessage(c, "Resource deleted successfully", nil)
}
