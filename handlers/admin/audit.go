package admin

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"github.com/sahilchouksey/lms-api/utils/validation"
	"gorm.io/gorm"
)

// AuditHandler serves the admin audit trail
type AuditHandler struct {
	db        *gorm.DB
	validator *validation.Validator
}

// NewAuditHandler creates a new audit handler
func NewAuditHandler(db *gorm.DB) *AuditHandler {
	return &AuditHandler{
		db:        db,
		validator: validation.NewValidator(),
	}
}

// AuditLogFilter is the typed query surface of the audit log endpoint
type AuditLogFilter struct {
	Page     int    `query:"page" validate:"omitempty,min=1"`
	Limit    int    `query:"limit" validate:"omitempty,min=1,max=100"`
	Action   string `query:"action" validate:"omitempty,max=100"`
	Resource string `query:"resource" validate:"omitempty,max=100"`
	ActorID  uint   `query:"actor_id" validate:"omitempty,min=1"`
	TenantID uint   `query:"tenant_id" validate:"omitempty,min=1"`
}

// ListAuditLogs handles GET /api/v1/admin/audit-logs
func (h *AuditHandler) ListAuditLogs(c *fiber.Ctx) error {
	var filter AuditLogFilter
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

	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	query := h.db.Model(&model.AdminAuditLog{})

	// Tenant-pinned admins only see activity inside their own tenant.
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	} else if filter.TenantID > 0 {
		query = query.Where("tenant_id = ?", filter.TenantID)
	}

	if filter.Action != "" {
		query = query.Where("action = ?", filter.Action)
	}
	if filter.Resource != "" {
		query = query.Where("resource = ?", filter.Resource)
	}
	if filter.ActorID > 0 {
		query = query.Where("actor_id = ?", filter.ActorID)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return response.InternalServerError(c, "Failed to count audit logs")
	}

	pagination := response.CalculatePagination(filter.Page, filter.Limit, total)

	var logs []model.AdminAuditLog
	if err := query.
		Order("created_at DESC").
		Limit(filter.Limit).
		Offset((filter.Page - 1) * filter.Limit).
		Find(&logs).Error; err != nil {
		return response.InternalServerError(c, "Failed to fetch audit logs")
	}

	return response.Paginated(c, logs, pagination)
}

// GetAuditLog handles GET /api/v1/admin/audit-logs/:id
func (h *AuditHandler) GetAuditLog(c *fiber.Ctx) error {
	principal, ok := middleware.GetPrincipal(c)
	if !ok {
		return response.Unauthorized(c, "Not authenticated")
	}

	query := h.db.Model(&model.AdminAuditLog{})
	if !principal.IsGlobal() {
		query = query.Where("tenant_id = ?", *principal.TenantID)
	}

	var log model.AdminAuditLog
	if err := query.First(&log, "admin_audit_logs.id = ?", c.Params("id")).Error; err != nil {
		if err == gorm.ErrRecordNotFound {
			return response.NotFound(c, "Audit log not found")
		}
		return response.InternalServerError(c, "Failed to fetch audit log")
	}

	return response.Success(c, log)
}
