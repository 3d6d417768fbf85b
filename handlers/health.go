package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/utils/cache"
	"github.com/sahilchouksey/lms-api/utils/response"
	"gorm.io/gorm"
)

// HealthHandler reports process and dependency health
type HealthHandler struct {
	db         *gorm.DB
	redisCache *cache.RedisCache
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(db *gorm.DB, redisCache *cache.RedisCache) *HealthHandler {
	return &HealthHandler{
		db:         db,
		redisCache: redisCache,
	}
}

// Check handles GET /health. The database is load-bearing; Redis outages
// degrade the report without failing it because every consumer falls back.
func (h *HealthHandler) Check(c *fiber.Ctx) error {
	checks := fiber.Map{}
	healthy := true

	sqlDB, err := h.db.DB()
	if err != nil || sqlDB.PingContext(c.Context()) != nil {
		checks["database"] = "down"
		healthy = false
	} else {
		checks["database"] = "up"
	}

	if h.redisCache == nil {
		checks["redis"] = "disabled"
	} else if err := h.redisCache.Ping(c.Context()); err != nil {
		checks["redis"] = "down"
	} else {
		checks["redis"] = "up"
	}

	status := "ok"
	if !healthy {
		status = "unavailable"
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}

	return response.Success(c, fiber.Map{
		"status": status,
		"checks": checks,
	})
}
