package auth

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
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
	authutil "github.com/sahilchouksey/lms-api/utils/auth"
	"github.com/sahilchouksey/lms-api/utils/middleware"
	"github.com/sahilchouksey/lms-api/utils/response"
)

const (
	testAccessTTL  = 15 * time.Minute
	testRefreshTTL = 7 * 24 * time.Hour
	testPassword   = "correct horse battery staple"
)

// Hashing at cost 12 is slow enough to be worth doing once for the package.
var (
	hashOnce sync.Once
	hashed   string
)

func testPasswordHash(t *testing.T) string {
	t.Helper()
	hashOnce.Do(func() {
		h, err := authutil.HashPassword(testPassword)
		if err != nil {
			t.Fatalf("HashPassword: %v", err)
		}
		hashed = h
	})
	return hashed
}

type testEnv struct {
	app         *fiber.App
	mock        sqlmock.Sqlmock
	jwt         *authutil.JWTManager
	revocations authutil.RevocationSet
}

// newTestEnv wires the handler against a mocked database, exactly as the
// route table does: login behind the lockout check, logout behind Required.
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	sqlDB, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { sqlDB.Close() })

	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	jwtManager := authutil.NewJWTManager(authutil.JWTConfig{
		Secret:        "handler-test-secret",
		Expiry:        testAccessTTL,
		RefreshExpiry: testRefreshTTL,
		Issuer:        "lms-api-test",
	})
	revocations := authutil.NewMemoryRevocationSet()
	t.Cleanup(func() { revocations.Close() })

	principals := authutil.NewPrincipalStore(db)
	authMW := middleware.NewAuthMiddleware(jwtManager, revocations, principals)
	bruteForce := middleware.NewBruteForceProtection(nil, false)

	h := NewAuthHandler(db, jwtManager, revocations, bruteForce, nil, nil, time.Hour)

	app := fiber.New()
	group := app.Group("/api/v1/auth")
	group.Post("/login", bruteForce.CheckLocked(), h.Login)
	group.Post("/refresh", h.RefreshToken)
	group.Post("/logout", authMW.Required(), h.Logout)

	return &testEnv{app: app, mock: mock, jwt: jwtManager, revocations: revocations}
}

func (e *testEnv) post(t *testing.T, path string, body interface{}, bearer string) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(body))
	req := httptest.NewRequest(http.MethodPost, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}
	resp, err := e.app.Test(req, -1)
	require.NoError(t, err)
	return resp
}

type envelope struct {
	Success bool            `json:"success"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
	Error   *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeBody(t *testing.T, resp *http.Response) envelope {
	t.Helper()
	defer resp.Body.Close()
	var env envelope
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	return env
}

func requireErrorCode(t *testing.T, resp *http.Response, status int, code string) {
	t.Helper()
	assert.Equal(t, status, resp.StatusCode)
	env := decodeBody(t, resp)
	require.False(t, env.Success)
	require.NotNil(t, env.Error)
	assert.Equal(t, code, env.Error.Code)
}

var teacherColumns = []string{
	"id", "created_at", "updated_at", "deleted_at", "tenant_id", "institute_id",
	"email", "password_hash", "name", "phone", "status", "token_version",
}

func teacherRow(hash, status string, tokenVersion int) *sqlmock.Rows {
	now := time.Now()
	return sqlmock.NewRows(teacherColumns).
		AddRow(7, now, now, nil, 3, nil, "asha@sunrise.example", hash, "Asha Verma", "", status, tokenVersion)
}

// Query fragments as gorm renders them. The soft-delete filter and LIMIT
// clause that follow are left unmatched on purpose.
const (
	qTeacherByEmail       = `SELECT \* FROM "teachers" WHERE email = \$1`
	qTeacherByEmailTenant = `SELECT \* FROM "teachers" WHERE email = \$1 AND tenant_id = \$2`
	qTeacherByID          = `SELECT \* FROM "teachers" WHERE "teachers"\."id" = \$1`
	qSystemUserByEmail    = `SELECT \* FROM "system_users" WHERE email = \$1`
	qTenantBySlug         = `SELECT \* FROM "tenants" WHERE slug = \$1`
)

func teacherPrincipal() model.Principal {
	tenantID := uint(3)
	return model.Principal{
		ID:          7,
		Type:        model.PrincipalTypeTeacher,
		TenantID:    &tenantID,
		Email:       "asha@sunrise.example",
		Name:        "Asha Verma",
		Role:        model.RoleTeacher,
		Permissions: model.RolePermissions(model.RoleTeacher),
		Status:      model.PrincipalStatusActive,
	}
}

func TestLoginIssuesSessionPair(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(qTeacherByEmail).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: testPassword,
		Portal:   "teacher",
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	require.True(t, body.Success)

	var data LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, uint(7), data.Principal.ID)
	assert.Equal(t, model.PrincipalTypeTeacher, data.Principal.Type)
	require.NotNil(t, data.Principal.TenantID)
	assert.Equal(t, uint(3), *data.Principal.TenantID)
	assert.Contains(t, data.Principal.Permissions, "courses:read")
	assert.InDelta(t, testAccessTTL.Seconds(), float64(data.ExpiresIn), 1)

	// Both tokens validate against the signing secret and the access token's
	// lifetime is exactly the configured one.
	access, err := env.jwt.ValidateTokenType(data.AccessToken, authutil.TokenTypeAccess)
	require.NoError(t, err)
	assert.Equal(t, testAccessTTL, access.ExpiresAt.Time.Sub(access.IssuedAt.Time))
	assert.Contains(t, access.Permissions, "courses:read")

	refresh, err := env.jwt.ValidateTokenType(data.RefreshToken, authutil.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, testRefreshTTL, refresh.ExpiresAt.Time.Sub(refresh.IssuedAt.Time))
	assert.Equal(t, access.SessionID, refresh.SessionID)
	assert.Empty(t, refresh.Permissions)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(qTeacherByEmail).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: "not the password",
		Portal:   "teacher",
	}, "")

	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeInvalidCredentials)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginUnknownEmailLooksLikeWrongPassword(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(qTeacherByEmail).
		WillReturnRows(sqlmock.NewRows(teacherColumns))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "nobody@sunrise.example",
		Password: testPassword,
		Portal:   "teacher",
	}, "")

	// Same status and code as a bad password: the response must not reveal
	// whether the account exists.
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeInvalidCredentials)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginDisabledAccount(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(qTeacherByEmail).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusDisabled, 0))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: testPassword,
		Portal:   "teacher",
	}, "")

	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeInvalidCredentials)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginTenantSlugScopesLookup(t *testing.T) {
	env := newTestEnv(t)

	now := time.Now()
	env.mock.ExpectQuery(qTenantBySlug).
		WillReturnRows(sqlmock.NewRows([]string{"id", "created_at", "updated_at", "deleted_at", "name", "slug", "contact_email", "status", "settings"}).
			AddRow(3, now, now, nil, "Sunrise Academy", "sunrise", "", model.TenantStatusActive, nil))
	env.mock.ExpectQuery(qTeacherByEmailTenant).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: testPassword,
		Portal:   "teacher",
		Tenant:   "sunrise",
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	var data LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	require.NotNil(t, data.Principal.TenantID)
	assert.Equal(t, uint(3), *data.Principal.TenantID)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginUnknownTenantSlug(t *testing.T) {
	env := newTestEnv(t)
	env.mock.ExpectQuery(qTenantBySlug).
		WillReturnRows(sqlmock.NewRows([]string{"id"}))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: testPassword,
		Portal:   "teacher",
		Tenant:   "no-such-school",
	}, "")

	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeInvalidCredentials)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLoginWithoutPortalFallsThroughTables(t *testing.T) {
	env := newTestEnv(t)

	// No portal: system users are tried first, then teachers.
	env.mock.ExpectQuery(qSystemUserByEmail).
		WillReturnRows(sqlmock.NewRows([]string{"id", "email", "password_hash"}))
	env.mock.ExpectQuery(qTeacherByEmail).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/login", LoginRequest{
		Email:    "asha@sunrise.example",
		Password: testPassword,
	}, "")

	require.Equal(t, http.StatusOK, resp.StatusCode)
	body := decodeBody(t, resp)
	var data LoginResponse
	require.NoError(t, json.Unmarshal(body.Data, &data))
	assert.Equal(t, model.PrincipalTypeTeacher, data.Principal.Type)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRefreshRotationIsSingleUse(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.jwt.GeneratePair(teacherPrincipal())
	require.NoError(t, err)

	env.mock.ExpectQuery(qTeacherByID).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body := decodeBody(t, resp)
	var rotated RefreshResponse
	require.NoError(t, json.Unmarshal(body.Data, &rotated))
	assert.NotEqual(t, pair.RefreshToken, rotated.RefreshToken)

	// The new pair stays in the same session.
	newClaims, err := env.jwt.ValidateTokenType(rotated.RefreshToken, authutil.TokenTypeRefresh)
	require.NoError(t, err)
	assert.Equal(t, pair.SessionID, newClaims.SessionID)
	assert.NotEqual(t, pair.RefreshJTI, newClaims.ID)

	// Replaying the consumed token fails before any database work: no second
	// SELECT is expected here.
	resp = env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeTokenRevoked)

	// The replacement still works.
	env.mock.ExpectQuery(qTeacherByID).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))
	resp = env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: rotated.RefreshToken}, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRefreshRejectsRevokedSession(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.jwt.GeneratePair(teacherPrincipal())
	require.NoError(t, err)

	require.NoError(t, env.revocations.Add(context.Background(), authutil.RevocationEntry{
		TokenID:   pair.SessionID,
		Reason:    model.RevocationReasonLogout,
		ExpiresAt: pair.RefreshExpiresAt,
	}))

	resp := env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeTokenRevoked)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRefreshRejectsAccessToken(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.jwt.GeneratePair(teacherPrincipal())
	require.NoError(t, err)

	resp := env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.AccessToken}, "")
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeWrongTokenType)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestRefreshRejectsStaleTokenVersion(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.jwt.GeneratePair(teacherPrincipal())
	require.NoError(t, err)

	// A password change bumped the stored version after this pair was minted.
	env.mock.ExpectQuery(qTeacherByID).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 5))

	resp := env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeSessionExpired)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLogoutKillsWholeSession(t *testing.T) {
	env := newTestEnv(t)

	pair, err := env.jwt.GeneratePair(teacherPrincipal())
	require.NoError(t, err)

	// Required() revalidates the principal before the handler runs.
	env.mock.ExpectQuery(qTeacherByID).
		WillReturnRows(teacherRow(testPasswordHash(t), model.PrincipalStatusActive, 0))

	resp := env.post(t, "/api/v1/auth/logout", fiber.Map{}, pair.AccessToken)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	decodeBody(t, resp)

	// The refresh token issued alongside the access token dies with the
	// session, without any further database traffic.
	resp = env.post(t, "/api/v1/auth/refresh", RefreshRequest{RefreshToken: pair.RefreshToken}, "")
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeTokenRevoked)

	// So does the access token itself.
	resp = env.post(t, "/api/v1/auth/logout", fiber.Map{}, pair.AccessToken)
	requireErrorCode(t, resp, http.StatusUnauthorized, response.CodeTokenRevoked)

	assert.NoError(t, env.mock.ExpectationsWereMet())
}

func TestLogoutWithoutToken(t *testing.T) {
	env := newTestEnv(t)

	resp := env.post(t, "/api/v1/auth/logout", fiber.Map{}, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.NoError(t, env.mock.ExpectationsWereMet())
}
