package router

import (
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/sahilchouksey/lms-api/config"
	"github.com/sahilchouksey/lms-api/handlers"
	admin_handlers "github.com/sahilchouksey/lms-api/handlers/admin"
	auth_handlers "github.com/sahilchouksey/lms-api/handlers/auth"
	course_handlers "github.com/sahilchouksey/lms-api/handlers/course"
	institute_handlers "github.com/sahilchouksey/lms-api/handlers/institute"
	resource_handlers "github.com/sahilchouksey/lms-api/handlers/resource"
	student_handlers "github.com/sahilchouksey/lms-api/handlers/student"
	sysuser_handlers "github.com/sahilchouksey/lms-api/handlers/sysuser"
	teacher_handlers "github.com/sahilchouksey/lms-api/handlers/teacher"
	tenant_handlers "github.com/sahilchouksey/lms-api/handlers/tenant"
	video_handlers "github.com/sahilchouksey/lms-api/handlers/video"
	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/services/playback"
	"github.com/sahilchouksey/lms-api/services/storage"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/cache"
	"github.com/sahilchouksey/lms-api/utils/metrics"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
	"gorm.io/gorm"
)

// Dependencies carries everything the route table needs. All of it is
// constructed once in app.Setup and injected here.
type Dependencies struct {
	Config      *config.Config
	DB          *gorm.DB
	RedisCache  *cache.RedisCache // nil when Redis is unavailable
	JWTManager  *auth.JWTManager
	Revocations auth.RevocationSet
	Metrics     *metrics.Metrics
	Storage     *storage.SpacesClient // nil when Spaces is not configured
}

// SetupRoutes wires middleware, handlers and the route table
func SetupRoutes(app *fiber.App, deps Dependencies) {
	allowedOrigins := strings.Join(deps.Config.CORS.AllowedOrigins, ",")
	if allowedOrigins == "" {
		allowedOrigins = "http://localhost:3000,http://localhost:3001"
	}

	middleware.SetupSecurity(app, middleware.SecurityConfig{
		AllowedOrigins:    allowedOrigins,
		RateLimitRequests: 100,
		RateLimitWindow:   1 * time.Minute,
	})
	app.Use(deps.Metrics.Middleware())

	principals := auth.NewPrincipalStore(deps.DB)
	authMW := middleware.NewAuthMiddleware(deps.JWTManager, deps.Revocations, principals)
	bruteForce := middleware.NewBruteForceProtection(deps.RedisCache, deps.Config.Auth.BruteForceEnabled)

	playbackSigner := playback.NewSigner(deps.Config.Playback.SigningSecret, deps.Config.Playback.TokenTTL)

	authHandler := auth_handlers.NewAuthHandler(deps.DB, deps.JWTManager, deps.Revocations,
		bruteForce, deps.RedisCache, deps.Metrics, deps.Config.Auth.ResetTokenExpiry)
	tenantHandler := tenant_handlers.NewTenantHandler(deps.DB)
	instituteHandler := institute_handlers.NewInstituteHandler(deps.DB)
	teacherHandler := teacher_handlers.NewTeacherHandler(deps.DB)
	studentHandler := student_handlers.NewStudentHandler(deps.DB)
	sysuserHandler := sysuser_handlers.NewSystemUserHandler(deps.DB)
	courseHandler := course_handlers.NewCourseHandler(deps.DB, deps.RedisCache)
	videoHandler := video_handlers.NewVideoHandler(deps.DB, playbackSigner)
	auditHandler := admin_handlers.NewAuditHandler(deps.DB)
	healthHandler := handlers.NewHealthHandler(deps.DB, deps.RedisCache)

	// Operational endpoints stay outside /api/v1.
	app.Get("/health", healthHandler.Check)
	app.Get("/metrics", deps.Metrics.Handler())

	api := app.Group("/api/v1")

	// Auth
	authGroup := api.Group("/auth")
	authGroup.Post("/login", bruteForce.CheckLocked(), authHandler.Login)
	authGroup.Post("/refresh", authHandler.RefreshToken)
	authGroup.Post("/forgot-password", authHandler.ForgotPassword)
	authGroup.Post("/reset-password", authHandler.ResetPassword)
	authGroup.Post("/logout", authMW.Required(), authHandler.Logout)
	authGroup.Post("/change-password", authMW.Required(), authHandler.ChangePassword)
	authGroup.Get("/profile", authMW.Required(), authHandler.GetProfile)
	authGroup.Put("/profile", authMW.Required(), authHandler.UpdateProfile)

	// Tenants: platform-global admins only
	tenants := api.Group("/tenants", authMW.Required(), authMW.RequireRole(model.RoleAdmin), authMW.RequireGlobal())
	tenants.Get("/", tenantHandler.ListTenants)
	tenants.Get("/:id", tenantHandler.GetTenant)
	tenants.Post("/", middleware.AdminAudit(deps.DB, "tenant_create", "tenants"), tenantHandler.CreateTenant)
	tenants.Put("/:id", middleware.AdminAudit(deps.DB, "tenant_update", "tenants"), tenantHandler.UpdateTenant)
	tenants.Delete("/:id", middleware.AdminAudit(deps.DB, "tenant_delete", "tenants"), tenantHandler.DeleteTenant)

	// Institutes
	institutes := api.Group("/institutes", authMW.Required())
	institutes.Get("/", authMW.RequirePermission("institutes:read"), instituteHandler.ListInstitutes)
	institutes.Get("/:id", authMW.RequirePermission("institutes:read"), instituteHandler.GetInstitute)
	institutes.Post("/", authMW.RequirePermission("institutes:write"), instituteHandler.CreateInstitute)
	institutes.Put("/:id", authMW.RequirePermission("institutes:write"), instituteHandler.UpdateInstitute)
	institutes.Delete("/:id", authMW.RequirePermission("institutes:write"), instituteHandler.DeleteInstitute)

	// Teachers
	teachers := api.Group("/teachers", authMW.Required())
	teachers.Get("/", authMW.RequirePermission("teachers:read"), teacherHandler.ListTeachers)
	teachers.Get("/:id", authMW.RequirePermission("teachers:read"), teacherHandler.GetTeacher)
	teachers.Post("/", authMW.RequirePermission("teachers:write"), teacherHandler.CreateTeacher)
	teachers.Put("/:id", authMW.RequirePermission("teachers:write"), teacherHandler.UpdateTeacher)
	teachers.Delete("/:id", authMW.RequirePermission("teachers:write"), teacherHandler.DeleteTeacher)

	// Students
	students := api.Group("/students", authMW.Required())
	students.Get("/", authMW.RequirePermission("students:read"), studentHandler.ListStudents)
	students.Get("/:id", authMW.RequirePermission("students:read"), studentHandler.GetStudent)
	students.Post("/", authMW.RequirePermission("students:write"), studentHandler.CreateStudent)
	students.Put("/:id", authMW.RequirePermission("students:write"), studentHandler.UpdateStudent)
	students.Delete("/:id", authMW.RequirePermission("students:write"), studentHandler.DeleteStudent)

	// System users: back-office accounts, admin role required
	sysusers := api.Group("/system-users", authMW.Required(), authMW.RequireRole(model.RoleAdmin))
	sysusers.Get("/", sysuserHandler.ListSystemUsers)
	sysusers.Get("/:id", sysuserHandler.GetSystemUser)
	sysusers.Post("/", middleware.AdminAudit(deps.DB, "system_user_create", "system_users"), sysuserHandler.CreateSystemUser)
	sysusers.Put("/:id", middleware.AdminAudit(deps.DB, "system_user_update", "system_users"), sysuserHandler.UpdateSystemUser)
	sysusers.Delete("/:id", middleware.AdminAudit(deps.DB, "system_user_delete", "system_users"), sysuserHandler.DeleteSystemUser)

	// Courses and nested specializations/resources
	courses := api.Group("/courses", authMW.Required())
	courses.Get("/", authMW.RequirePermission("courses:read"), courseHandler.ListCourses)
	courses.Get("/:id", authMW.RequirePermission("courses:read"), courseHandler.GetCourse)
	courses.Post("/", authMW.RequirePermission("courses:write"), courseHandler.CreateCourse)
	courses.Put("/:id", authMW.RequirePermission("courses:write"), courseHandler.UpdateCourse)
	courses.Delete("/:id", authMW.RequirePermission("courses:write"), courseHandler.DeleteCourse)

	courses.Get("/:courseId/specializations", authMW.RequirePermission("courses:read"), courseHandler.ListSpecializations)
	courses.Post("/:courseId/specializations", authMW.RequirePermission("courses:write"), courseHandler.CreateSpecialization)

	specializations := api.Group("/specializations", authMW.Required())
	specializations.Get("/:id", authMW.RequirePermission("courses:read"), courseHandler.GetSpecialization)
	specializations.Put("/:id", authMW.RequirePermission("courses:write"), courseHandler.UpdateSpecialization)
	specializations.Delete("/:id", authMW.RequirePermission("courses:write"), courseHandler.DeleteSpecialization)

	// Course resources (PDF uploads)
	if deps.Storage != nil {
		resourceHandler := resource_handlers.NewResourceHandler(deps.DB, deps.Storage)
		courses.Get("/:courseId/resources", authMW.RequirePermission("courses:read"), resourceHandler.ListResources)
		courses.Get("/:courseId/resources/:id", authMW.RequirePermission("courses:read"), resourceHandler.GetResource)
		courses.Post("/:courseId/resources", authMW.RequirePermission("courses:write"), resourceHandler.UploadResource)
		courses.Delete("/:courseId/resources/:id", authMW.RequirePermission("courses:write"), resourceHandler.DeleteResource)
	} else {
		unavailable := func(c *fiber.Ctx) error {
			return response.ServiceUnavailable(c, "Resource storage is not configured")
		}
		courses.All("/:courseId/resources", unavailable)
		courses.All("/:courseId/resources/:id", unavailable)
	}

	// Videos. The playback gate is registered before /:id so the literal
	// path wins, and it carries no auth middleware: the signed token in the
	// query string is the credential.
	videos := api.Group("/videos")
	videos.Get("/playback", videoHandler.Playback)
	videos.Use(authMW.Required())
	videos.Get("/", authMW.RequirePermission("videos:read"), videoHandler.ListVideos)
	videos.Get("/:id", authMW.RequirePermission("videos:read"), videoHandler.GetVideo)
	videos.Post("/", authMW.RequirePermission("videos:write"), videoHandler.CreateVideo)
	videos.Put("/:id", authMW.RequirePermission("videos:write"), videoHandler.UpdateVideo)
	videos.Delete("/:id", authMW.RequirePermission("videos:write"), videoHandler.DeleteVideo)
	videos.Post("/:id/playback-token", authMW.RequirePermission("videos:read"), videoHandler.CreatePlaybackToken)

	// Admin audit trail
	adminGroup := api.Group("/admin", authMW.Required(), authMW.RequirePermission("audit_logs:read"))
	adminGroup.Get("/audit-logs", auditHandler.ListAuditLogs)
	adminGroup.Get("/audit-logs/:id", auditHandler.GetAuditLog)
}
