package server

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"socialconnect/internal/config"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

func TestSetupMiddleware_RateLimitedResponseIncludesCORSHeaders(t *testing.T) {
	t.Parallel()
	srv := &Server{
		config: &config.Config{
			AllowedOrigins: "http://localhost:5173",
		},
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Get("/limited", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	// Exhaust the limiter and assert the final response still carries CORS headers.
	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodGet, "/limited", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusOK, resp.StatusCode)
		_ = resp.Body.Close()
	}

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.Header.Set("Origin", "http://localhost:5173")
	resp, err := app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)
	assert.Equal(t, "http://localhost:5173", resp.Header.Get("Access-Control-Allow-Origin"))
}

func TestSetupMiddleware_PreflightBypassesLimiter(t *testing.T) {
	t.Parallel()
	srv := &Server{
		config: &config.Config{
			AllowedOrigins: "http://localhost:5173",
		},
	}

	app := fiber.New()
	srv.SetupMiddleware(app)
	app.Post("/limited", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})

	for i := 0; i < 100; i++ {
		req := httptest.NewRequest(http.MethodPost, "/limited", nil)
		resp, err := app.Test(req, -1)
		require.NoError(t, err)
		_ = resp.Body.Close()
	}

	preflightReq := httptest.NewRequest(http.MethodOptions, "/limited", nil)
	preflightReq.Header.Set("Origin", "http://localhost:5173")
	preflightReq.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflightReq.Header.Set("Access-Control-Request-Headers", "authorization,content-type")
	preflightResp, err := app.Test(preflightReq, -1)
	require.NoError(t, err)
	defer func() { _ = preflightResp.Body.Close() }()

	assert.Equal(t, fiber.StatusNoContent, preflightResp.StatusCode)
	assert.Equal(t, "http://localhost:5173", preflightResp.Header.Get("Access-Control-Allow-Origin"))
	assert.Contains(t, preflightResp.Header.Get("Access-Control-Allow-Methods"), http.MethodPost)
}

func TestSecurityHeadersAndTraceID(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	resp, err := api.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Content-Type-Options"))
	assert.NotEmpty(t, resp.Header.Get("X-Frame-Options"))
	assert.NotEmpty(t, resp.Header.Get(fiber.HeaderXRequestID))
	assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))
}

func TestHealthChecks(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)

	res := api.call(t, http.MethodGet, "/health/live", "", nil)
	assert.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "up", res.Body["status"])

	// Without Redis the service is degraded but ready.
	res = api.call(t, http.MethodGet, "/health/ready", "", nil)
	require.Equal(t, fiber.StatusOK, res.Status)
	assert.Equal(t, "degraded", res.Body["status"])
	checks := res.Body["checks"].(map[string]any)
	assert.Equal(t, "healthy", checks["database"])
	assert.Equal(t, "unavailable", checks["redis"])
}

func TestErrorHandler(t *testing.T) {
	t.Parallel()
	api := newTestAPI(t)
	api.app.Get("/boom", func(c *fiber.Ctx) error {
		panic("kaboom")
	})
	api.app.Get("/plain-error", func(c *fiber.Ctx) error {
		return errors.New("secret connection string leaked")
	})

	res := api.call(t, http.MethodGet, "/api/does-not-exist", "", nil)
	assert.Equal(t, fiber.StatusNotFound, res.Status)

	for _, path := range []string{"/boom", "/plain-error"} {
		res = api.call(t, http.MethodGet, path, "", nil)
		assert.Equal(t, fiber.StatusInternalServerError, res.Status, path)
		assert.Equal(t, "Internal server error", res.Body["error"], path)
		assert.NotContains(t, res.Body, "details", path)
	}
}

func TestDatabaseFailureIsInternalError(t *testing.T) {
	t.Parallel()
	db, mock := setupMockDB(t)
	mock.MatchExpectationsInOrder(false)
	mock.ExpectQuery(`SELECT \* FROM "users"`).WillReturnError(errors.New("connection reset by peer"))

	api := newTestAPIWithDB(t, db)

	res := api.call(t, http.MethodGet, "/api/users/7", "", nil)
	assert.Equal(t, fiber.StatusInternalServerError, res.Status)
	assert.Equal(t, "Internal server error", res.Body["error"])
	assert.Equal(t, "INTERNAL_ERROR", res.Body["code"])
	assert.NotContains(t, res.Body, "details")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReadinessCheck_DatabaseDown(t *testing.T) {
	t.Parallel()
	sqlDB, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()
	db, err := gorm.Open(postgres.New(postgres.Config{Conn: sqlDB}), &gorm.Config{})
	require.NoError(t, err)
	mock.ExpectPing().WillReturnError(errors.New("db down"))

	srv := &Server{config: &config.Config{}, db: db}
	app := fiber.New()
	app.Get("/health/ready", srv.ReadinessCheck)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/health/ready", nil), -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
}
