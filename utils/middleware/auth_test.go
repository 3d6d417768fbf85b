package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/sahilchouksey/lms-api/model"
	"github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/response"
)

type mwEnv struct {
	app         *fiber.App
	mock        sqlmock.Sqlmock
	jwt         *auth.JWTManager
	revocations *auth.MemoryRevocationSet
}

func newMWEnv(t *testing.T, accessTTL time.Duration) *mwEnv {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	jwtManager := auth.NewJWTManager(auth.JWTConfig{
		Secret:        "middleware-test-secret",
		Expiry:        accessTTL,
		RefreshExpiry: 24 * time.Hour,
		Issuer:        "lms-api-test",
	})
	revocations := auth.NewMemoryRevocationSet()
	t.Cleanup(func() { revocations.Close() })

	mw := NewAuthMiddleware(jwtManager, revocations, auth.NewPrincipalStore(db))

	app := fiber.New()
	app.Get("/protected", mw.Required(), func(c *fiber.Ctx) error {
		p, _ := GetPrincipal(c)
		jti, _ := GetTokenJTI(c)
		return c.JSON(fiber.Map{"email": p.Email, "jti": jti})
	})

	return &mwEnv{app: app, mock: mock, jwt: jwtManager, revocations: revocations}
}

func (e *mwEnv) get(t *testing.T, path, bearer string) *http.Response {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

func errorCode(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var env struct {
		Error *struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	require.NotNil(t, env.Error)
	return env.Error.Code
}

func mwTeacherRows(status string, tokenVersion int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows([]string{
		"id", "created_at", "updated_at", "deleted_at", "tenant_id", "institute_id",
		"email", "password_hash", "name", "phone", "status", "token_version",
	}).AddRow(7, now, now, nil, 3, nil, "asha@sunrise.example", "x", "Asha Verma", "", status, tokenVersion)
}

func mwPrincipal() model.Principal {
	tenantID := uint(3)
	return model.Principal{
		ID:          7,
		Type:        model.PrincipalTypeTeacher,
		TenantID:    &tenantID,
		Email:       "asha@sunrise.example",
		Role:        model.RoleTeacher,
		Permissions: model.RolePermissions(model.RoleTeacher),
		Status:      model.PrincipalStatusActive,
	}
}

func TestRequiredAcceptsLiveToken(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	env.mock.ExpectQuery(`SELECT \* FROM "teachers" WHERE "teachers"\."id" = \$1`).
		WillReturnRows(mwTeacherRows(model.PrincipalStatusActive, 0))

	resp := env.get(t, "/protected", pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	defer resp.Body.Close()
	var body struct {
		Email string `json:"email"`
		JTI   string `json:"jti"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, "asha@sunrise.example", body.Email)
	assert.Equal(t, pair.AccessJTI, body.JTI)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredMissingOrMalformedHeader(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)

	resp := env.get(t, "/protected", "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Token abc123")
	resp, err := env.app.Test(req, -1)
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsExpiredToken(t *testing.T) {
	env := newMWEnv(t, -time.Minute)
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	resp := env.get(t, "/protected", pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeTokenExpired, errorCode(t, resp))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsRefreshToken(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	resp := env.get(t, "/protected", pair.RefreshToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeWrongTokenType, errorCode(t, resp))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsForeignSignature(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)
	other := auth.NewJWTManager(auth.JWTConfig{
		Secret: "some-other-secret", Expiry: 15 * time.Minute,
		RefreshExpiry: 24 * time.Hour, Issuer: "lms-api-test",
	})
	pair, err := other.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	resp := env.get(t, "/protected", pair.AccessToken)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, response.CodeTokenInvalid, errorCode(t, resp))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsRevokedJTIAndSession(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)

	// Revoked access JTI: rejected before any database lookup.
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)
	require.NoError(t, env.revocations.Add(context.Background(), auth.RevocationEntry{
		TokenID:   pair.AccessJTI,
		ExpiresAt: pair.AccessExpiresAt,
	}))
	resp := env.get(t, "/protected", pair.AccessToken)
	assert.Equal(t, response.CodeTokenRevoked, errorCode(t, resp))

	// Revoked session ID: kills a token whose own JTI was never revoked.
	pair2, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)
	require.NoError(t, env.revocations.Add(context.Background(), auth.RevocationEntry{
		TokenID:   pair2.SessionID,
		ExpiresAt: pair2.RefreshExpiresAt,
	}))
	resp = env.get(t, "/protected", pair2.AccessToken)
	assert.Equal(t, response.CodeTokenRevoked, errorCode(t, resp))

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsStaleTokenVersion(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	env.mock.ExpectQuery(`SELECT \* FROM "teachers" WHERE "teachers"\."id" = \$1`).
		WillReturnRows(mwTeacherRows(model.PrincipalStatusActive, 4))

	resp := env.get(t, "/protected", pair.AccessToken)
	assert.Equal(t, response.CodeSessionExpired, errorCode(t, resp))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRequiredRejectsDisabledAccount(t *testing.T) {
	env := newMWEnv(t, 15*time.Minute)
	pair, err := env.jwt.GeneratePair(mwPrincipal())
	require.NoError(t, err)

	env.mock.ExpectQuery(`SELECT \* FROM "teachers" WHERE "teachers"\."id" = \$1`).
		WillReturnRows(mwTeacherRows(model.PrincipalStatusDisabled, 0))

	resp := env.get(t, "/protected", pair.AccessToken)
	assert.Equal(t, response.CodeSessionExpired, errorCode(t, resp))
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

// guardApp mounts a handler behind the given guards with the principal
// already in locals, skipping the token plumbing.
func guardApp(p model.Principal, guards ...fiber.Handler) *fiber.App {
	app := fiber.New()
	handlers := append([]fiber.Handler{func(c *fiber.Ctx) error {
		c.Locals("principal", p)
		return c.Next()
	}}, guards...)
	handlers = append(handlers, func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	app.Get("/guarded", handlers...)
	return app
}

func testStatus(t *testing.T, app *fiber.App, path string) int {
	t.Helper()
	resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil), -1)
	require.NoError(t, err)
	return resp.StatusCode
}

func TestRequireRole(t *testing.T) {
	mw := NewAuthMiddleware(nil, nil, nil)

	app := guardApp(mwPrincipal(), mw.RequireRole(model.RoleTeacher, model.RoleAdmin))
	assert.Equal(t, http.StatusOK, testStatus(t, app, "/guarded"))

	app = guardApp(mwPrincipal(), mw.RequireRole(model.RoleAdmin))
	assert.Equal(t, http.StatusForbidden, testStatus(t, app, "/guarded"))
}

func TestRequirePermission(t *testing.T) {
	mw := NewAuthMiddleware(nil, nil, nil)

	app := guardApp(mwPrincipal(), mw.RequirePermission("courses:write"))
	assert.Equal(t, http.StatusOK, testStatus(t, app, "/guarded"))

	// Teachers hold no tenant administration grants.
	app = guardApp(mwPrincipal(), mw.RequirePermission("tenants:write"))
	assert.Equal(t, http.StatusForbidden, testStatus(t, app, "/guarded"))
}

func TestRequireGlobal(t *testing.T) {
	mw := NewAuthMiddleware(nil, nil, nil)

	global := model.Principal{
		ID: 1, Type: model.PrincipalTypeSystem, Role: model.RoleAdmin,
		Status: model.PrincipalStatusActive,
	}
	app := guardApp(global, mw.RequireGlobal())
	assert.Equal(t, http.StatusOK, testStatus(t, app, "/guarded"))

	// A tenant-pinned system user is not global.
	tenantID := uint(3)
	pinned := global
	pinned.TenantID = &tenantID
	app = guardApp(pinned, mw.RequireGlobal())
	assert.Equal(t, http.StatusForbidden, testStatus(t, app, "/guarded"))

	app = guardApp(mwPrincipal(), mw.RequireGlobal())
	assert.Equal(t, http.StatusForbidden, testStatus(t, app, "/guarded"))
}

func TestEffectiveTenantID(t *testing.T) {
	resolve := func(t *testing.T, p model.Principal, query string) (*uint, error) {
		t.Helper()
		var gotID *uint
		var gotErr error
		app := fiber.New()
		app.Get("/t", func(c *fiber.Ctx) error {
			c.Locals("principal", p)
			gotID, gotErr = EffectiveTenantID(c)
			return c.SendStatus(fiber.StatusOK)
		})
		_, err := app.Test(httptest.NewRequest(http.MethodGet, "/t"+query, nil), -1)
		require.NoError(t, err)
		return gotID, gotErr
	}

	// Tenant-bound principals are locked to their own tenant, whatever the
	// query string says.
	id, err := resolve(t, mwPrincipal(), "?tenant_id=9")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(3), *id)

	global := model.Principal{ID: 1, Type: model.PrincipalTypeSystem, Role: model.RoleAdmin}

	id, err = resolve(t, global, "?tenant_id=9")
	require.NoError(t, err)
	require.NotNil(t, id)
	assert.Equal(t, uint(9), *id)

	// A global principal with no selection operates across all tenants.
	id, err = resolve(t, global, "")
	require.NoError(t, err)
	assert.Nil(t, id)
}
