package video

import (
	"net/url"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/services/playback"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// VideoHandler handles video-related requests
type VideoHandler struct {
	db        *gorm.DB
	signer    *playback.Signer
	validator *validation.Validator
}

// NewVideoHandler creates a new video handler
func NewVideoHandler(db *gorm.DB, signer *playback.Signer) *VideoHandler {
	return &VideoHandler{
		db:        db,
		signer:    signer,
		validator: validation.NewValidator(),
	}
}

// VideoFilter is the typed query surface of the video list endpoint
type VideoFilter struct {
	Page             int    `query:"page" validate:"omitempty,min=1"`
	Limit            int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Search           string `query:"search" validate:"omitempty,max=255"`
	Status           string `query:"status" validate:"omitempty,oneof=processing ready blocked"`
	CourseID         uint   `query:"course_id" validate:"omitempty,min=1"`
	SpecializationID uint   `query:"specialization_id" validate:"omitempty,min=1"`
	TenantID         uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// CreateVideoRequest represents the request body for registering a video
type CreateVideoRequest struct {
	CourseID         uint   `json:"course_id" validate:"required,min=1"`
	SpecializationID *uint  `json:"specialization_id" validate:"omitempty,min=1"`
	Title            string `json:"title" validate:"required,min=2,max=255"`
	Description      string `json:"description" validate:"omitempty,max=10000"`
	ProviderAssetID  string `json:"provider_asset_id" validate:"required,min=2,max=100"`
	DurationSeconds  int    `json:"duration_seconds" validate:"omitempty,min=0"`
	Sequence         int    `json:"sequence" validate:"omitempty,min=0"`
}

// UpdateVideoRequest represents the request body for updating a video
type UpdateVideoRequest struct {
	Title            string  `json:"title" validate:"omitempty,min=2,max=255"`
	Description      *string `json:"description" validate:"omitempty,max=10000"`
	SpecializationID *uint   `json:"specialization_id" validate:"omitempty,min=1"`
	DurationSeconds  *int    `json:"duration_seconds" validate:"omitempty,min=0"`
	Sequence         *int    `json:"sequence" validate:"omitempty,min=0"`
	Status           string  `json:"status" validate:"omitempty,oneof=processing ready blocked"`
}

// PlaybackTokenResponse is returned by the playback token endpoint
type PlaybackTokenResponse struct {
	PlaybackToken string `json:"playback_token"`
	PlaybackURL   string `json:"playback_url"`
	ExpiresIn     int64  `json:"expires_in"`
	ExpiresAt     string `json:"expires_at"`
}

func scoped(c *fiber.Ctx, query *gorm.DB, filterTenantID uint) (*gorm.DB, error) {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil {
		return nil, err
	}
	if effective != nil {
		return query.Where("videos.tenant_id = ?", *effective), nil
	}
	if filterTenantID > 0 {
		return query.Where("videos.tenant_id = ?", filterTenantID), nil
	}
	return query, nil
}

func isStudent(c *fiber.Ctx) bool {
	principal, ok := middleware.GetPrincipal(c)
	return ok && principal.Type == model.PrincipalTypeStudent
}

// ListVideos handles GET /api/v1/videos
func (h *VideoHandler) ListVideos(c *fiber.Ctx) error {
	var filter VideoFilter
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

	query, err := scoped(c, h.db.Model(&model.Video{}), filter.TenantID)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	// Students only see ready videos inside published courses.
	if isStudent(c) {
		query = query.
			Joins("JOIN courses ON courses.id = videos.course_id AND courses.deleted_at IS NULL").
			Where("courses.status = ?", model.CourseStatusPublished).
			Where("videos.status = ?", model.VideoStatusReady)
	} else if filter.Status != "" {
		query = query.Where("videos.status = ?", filter.Status)
	}

	if filter.Search != "" {
		query = query.Where("videos.title ILIKE ?", "%"+filter.Search+"%")
	}
	if filter.CourseID > 0 {
		query = query.Where("videos.course_id = ?", filter.CourseID)
	}
	if filter.SpecializationID > 0 {
		query = query.Where("videos.specialization_id = ?", filter.SpecializationID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count videos")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var videos []model.Video
	if err := query.
		Order("videos.sequence ASC, videos.id ASC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&videos).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch videos")
	}

	return response.Paginated(c, videos, pagination)
}

// GetVideo handles GET /api/v1/videos/:id
func (h *VideoHandler) GetVideo(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Video{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var video model.Video
	if err := query.Preload("Course").First(&video, "videos.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	if isStudent(c) && (video.Status != model.VideoStatusReady || video.Course.Status != model.CourseStatusPublished) {
		return response.NotFound(c, "Video not found")
	}

	return response.Success(c, video)
}

// CreateVideo handles POST /api/v1/videos
func (h *VideoHandler) CreateVideo(c *fiber.Ctx) error {
	effective, err := middleware.EffectiveTenantID(c)
	if err != nil || effective == nil {
		return response.BadRequest(c, "A tenant is required to create a video")
	}
	tenantID := *effective

	var req CreateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	var course model.Course
	if err := h.db.Where("id = ? AND tenant_id = ?", req.CourseID, tenantID).First(&course).Error; err != nil {
		return response.BadRequest(c, "Course not found")
	}

	if req.SpecializationID != nil {
		var spec model.Specialization
		if err := h.db.Where("id = ? AND course_id = ?", *req.SpecializationID, course.ID).First(&spec).Error; err != nil {
			return response.BadRequest(c, "Specialization not found in this course")
		}
	}

	video := model.Video{
		TenantID:         tenantID,
		CourseID:         course.ID,
		SpecializationID: req.SpecializationID,
		Title:            validation.SanitizeString(req.Title),
		Description:      validation.StripHTML(req.Description),
		ProviderAssetID:  req.ProviderAssetID,
		DurationSeconds:  req.DurationSeconds,
		Sequence:         req.Sequence,
		Status:           model.VideoStatusProcessing,
	}

	if err := h.db.Create(&video).Error; err != nil {
		return response.InternalServerError(c, "Failed to create video")
	}

	return response.Created(c, video)
}

// UpdateVideo handles PUT /api/v1/videos/:id
func (h *VideoHandler) UpdateVideo(c *fiber.Ctx) error {
	id := c.Params("id")

	var req UpdateVideoRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.validator.ValidateStruct(req); err != nil {
		return response.ValidationError(c, err)
	}

	query, err := scoped(c, h.db.Model(&model.Video{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var video model.Video
	if err := query.First(&video, "videos.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	if req.Title != "" {
		video.Title = validation.SanitizeString(req.Title)
	}
	if req.Description != nil {
		video.Description = validation.StripHTML(*req.Description)
	}
	if req.SpecializationID != nil {
		var spec model.Specialization
		if err := h.db.Where("id = ? AND course_id = ?", *req.SpecializationID, video.CourseID).First(&spec).Error; err != nil {
			return response.BadRequest(c, "Specialization not found in this course")
		}
		video.SpecializationID = req.SpecializationID
	}
	if req.DurationSeconds != nil {
		video.DurationSeconds = *req.DurationSeconds
	}
	if req.Sequence != nil {
		video.Sequence = *req.Sequence
	}
	if req.Status != "" {
		video.Status = req.Status
	}

	if err := h.db.Save(&video).Error; err != nil {
		return response.InternalServerError(c, "Failed to update video")
	}

	return response.SuccessWithMessage(c, "Video updated successfully", video)
}

// DeleteVideo handles DELETE /api/v1/videos/:id
func (h *VideoHandler) DeleteVideo(c *fiber.Ctx) error {
	id := c.Params("id")

	query, err := scoped(c, h.db.Model(&model.Video{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var video model.Video
	if err := query.First(&video, "videos.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	if err := h.db.Delete(&video).Error; err != nil {
		return response.InternalServerError(c, "Failed to delete video")
	}

	return response.SuccessWithMessage(c, "Video deleted successfully", nil)
}

// CreatePlaybackToken handles POST /api/v1/videos/:id/playback-token
func (h *VideoHandler) CreatePlaybackToken(c *fiber.Ctx) error {
	id := c.Params("id")

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	query, err := scoped(c, h.db.Model(&model.Video{}), 0)
	if err != nil {
		return response.Unauthorized(c, "Not authenticated")
	}

	var video model.Video
	if err := query.Preload("Course").First(&video, "videos.id = ?", id).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	if !video.IsPlayable() {
		return response.BadRequest(c, "Video is not ready for playback")
	}
	if principal.Type == model.PrincipalTypeStudent && video.Course.Status != model.CourseStatusPublished {
		return response.NotFound(c, "Video not found")
	}

	token, expiresAt, err := h.signer.Sign(video.ID, video.TenantID, principal.Type, principal.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to create playback token")
	}

	playbackURL := c.BaseURL() + "/api/v1/videos/playback?token=" + url.QueryEscape(token)

	return response.Success(c, PlaybackTokenResponse{
		PlaybackToken: token,
		PlaybackURL:   playbackURL,
		ExpiresIn:     int64(time.Until(expiresAt).Seconds()),
		ExpiresAt:     expiresAt.UTC().Format(time.RFC3339),
	})
}

// Playback handles GET /api/v1/videos/playback. The route carries no auth
// middleware: video players cannot attach Authorization headers, so the
// signed token in the query string is the whole credential.
func (h *VideoHandler) Playback(c *fiber.Ctx) error {
	token := c.Query("token")
	if token == "" {
		return response.BadRequest(c, "Missing playback token")
	}

	grant, err := h.signer.Verify(token)
	if err != nil {
		switch err {
		case playback.ErrTokenExpired:
			return response.UnauthorizedCode(c, response.CodeTokenExpired, "Playback token expired")
		default:
			return response.UnauthorizedCode(c, response.CodeTokenInvalid, "Invalid playback token")
		}
	}

	var video model.Video
	if err := h.db.Where("id = ? AND tenant_id = ?", grant.VideoID, grant.TenantID).First(&video).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Video not found")
		}
		return response.InternalServerError(c, "Failed to fetch video")
	}

	// Status is re-checked at play time so blocking a video cuts off
	// tokens minted before the block.
	if !video.IsPlayable() {
		return response.Forbidden(c, "Video is not available for playback")
	}

	return response.Success(c, fiber.Map{
		"video_id":          video.ID,
		"provider_asset_id": video.ProviderAssetID,
		"duration_seconds":  video.DurationSeconds,
	})
}
