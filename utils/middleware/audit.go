package middleware

import (
	"encoding/json"
	"strconv"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/model"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AdminAudit records an audit log entry for administrative mutations. It
// wraps the handler: request state is captured up front, the row is written
// asynchronously after the handler finishes so auditing never adds latency
// to the response.
func AdminAudit(db *gorm.DB, action, resource string) fiber.Handler {
	return func(c *fiber.Ctx) error {
		principal, ok := GetPrincipal(c)
		if !ok || principal.Type != model.PrincipalTypeSystem {
			return c.Next()
		}

		var resourceID uint
		if id := c.Params("id"); id != "" {
			if parsedID, err := strconv.ParseUint(id, 10, 32); err == nil {
				resourceID = uint(parsedID)
			}
		}

		var oldValue, newValue interface{}

		if c.Method() == fiber.MethodPost || c.Method() == fiber.MethodPut {
			if body := c.Body(); len(body) > 0 {
				json.Unmarshal(body, &newValue)
			}
		}

		if resourceID > 0 && (c.Method() == fiber.MethodDelete || c.Method() == fiber.MethodPut) {
			switch resource {
			case "tenants":
				var tenant model.Tenant
				if err := db.First(&tenant, resourceID).Error; err == nil {
					oldValue = tenant
				}
			case "system_users":
				var user model.SystemUser
				if err := db.First(&user, resourceID).Error; err == nil {
					oldValue = user
				}
			}
		}

		// Everything the async writer needs is copied out here; the fiber
		// context is recycled once the handler returns.
		ip := c.IP()
		userAgent := c.Get("User-Agent")
		description := c.Method() + " " + c.Path()

		err := c.Next()

		go func() {
			entry := model.AdminAuditLog{
				ActorID:     principal.ID,
				ActorEmail:  principal.Email,
				TenantID:    principal.TenantID,
				Action:      action,
				Resource:    resource,
				ResourceID:  resourceID,
				IPAddress:   ip,
				UserAgent:   userAgent,
				Description: description,
			}
			if oldValue != nil {
				if raw, err := json.Marshal(oldValue); err == nil {
					entry.OldValue = datatypes.JSON(raw)
				}
			}
			if newValue != nil {
				if raw, err := json.Marshal(newValue); err == nil {
					entry.NewValue = datatypes.JSON(raw)
				}
			}

			db.Create(&entry)
		}()

		return err
	}
}
