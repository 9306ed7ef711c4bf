package server

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"socialconnect/internal/config"
	"socialconnect/internal/middleware"
	"socialconnect/internal/policy"
	"socialconnect/internal/testutil"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
)

const testPassword = "Str0ng!Passw0rd#"

// setupMockDB creates a GORM *gorm.DB backed by sqlmock for unit tests.
func setupMockDB(t *testing.T) (*gorm.DB, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	gormDB, err := gorm.Open(postgres.New(postgres.Config{Conn: db}), &gorm.Config{})
	require.NoError(t, err)
	return gormDB, mock
}

func testConfig() *config.Config {
	return &config.Config{
		Port:             "0",
		Env:              "test",
		AllowedOrigins:   "http://localhost:5173",
		FeatureFlags:     "mention_notifications=on",
		JWTSecret:        "access-secret-for-tests-0123456789abcdef",
		JWTRefreshSecret: "refresh-secret-for-tests-0123456789abcdef",
		AccessTokenTTL:   15 * time.Minute,
		RefreshTokenTTL:  7 * 24 * time.Hour,
		BcryptCost:       bcrypt.MinCost,
		AdminSecretKey:   "provision-secret-key",
		PasswordResetURL: "https://app.example.com/reset-password",
	}
}

// testAPI is a fully wired application over an in-memory SQLite database.
type testAPI struct {
	srv *Server
	app *fiber.App
	db  *gorm.DB
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()
	db := testutil.NewTestDB(t)
	return newTestAPIWithDB(t, db)
}

func newTestAPIWithDB(t *testing.T, db *gorm.DB) *testAPI {
	t.Helper()
	srv, err := NewServerWithDeps(testConfig(), db, nil)
	require.NoError(t, err)
	app := NewApp()
	srv.SetupMiddleware(app)
	srv.SetupRoutes(app)
	return &testAPI{srv: srv, app: app, db: db}
}

type apiResponse struct {
	Status int
	Body   map[string]any
}

// call sends a JSON request and decodes a JSON object response.
func (a *testAPI) call(t *testing.T, method, path, token string, body any) apiResponse {
	t.Helper()
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := a.app.Test(req, -1)
	require.NoError(t, err)
	defer func() { _ = resp.Body.Close() }()

	out := apiResponse{Status: resp.StatusCode}
	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out.Body), "body: %s", raw)
	}
	return out
}

type loggedIn struct {
	ID           uint
	AccessToken  string
	RefreshToken string
}

// signup registers username with testPassword and logs in.
func (a *testAPI) signup(t *testing.T, username string) loggedIn {
	t.Helper()
	res := a.call(t, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":      username + "@example.com",
		"username":   username,
		"password":   testPassword,
		"first_name": "Test",
		"last_name":  "User",
	})
	require.Equal(t, fiber.StatusCreated, res.Status, "register %s: %v", username, res.Body)
	return a.login(t, username)
}

func (a *testAPI) login(t *testing.T, username string) loggedIn {
	t.Helper()
	res := a.call(t, http.MethodPost, "/api/auth/login", "", map[string]any{
		"username": username,
		"password": testPassword,
	})
	require.Equal(t, fiber.StatusOK, res.Status, "login %s: %v", username, res.Body)
	user := res.Body["user"].(map[string]any)
	return loggedIn{
		ID:           uint(user["id"].(float64)),
		AccessToken:  res.Body["access_token"].(string),
		RefreshToken: res.Body["refresh_token"].(string),
	}
}

// --- humanizeParam (pure function, no HTTP) ---

func TestHumanizeParam(t *testing.T) {
	tests := []struct {
		param    string
		expected string
	}{
		{"id", "ID"},
		{"userId", "user ID"},
		{"postId", "post ID"},
		{"notificationId", "notification ID"},
		{"something", "something"},
	}
	for _, tt := range tests {
		t.Run(tt.param, func(t *testing.T) {
			assert.Equal(t, tt.expected, humanizeParam(tt.param))
		})
	}
}

func TestParsePage(t *testing.T) {
	t.Parallel()
	tests := []struct {
		query         string
		limit, offset float64
	}{
		{"", 20, 0},
		{"?limit=10&offset=30", 10, 30},
		{"?limit=1000", 100, 0},
		{"?limit=-5&offset=-1", 20, 0},
		{"?limit=abc", 20, 0},
	}

	app := fiber.New()
	app.Get("/items", func(c *fiber.Ctx) error {
		p := parsePage(c)
		return c.JSON(fiber.Map{"limit": p.Limit, "offset": p.Offset})
	})

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/items"+tt.query, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		var body map[string]float64
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()

		assert.Equal(t, tt.limit, body["limit"], tt.query)
		assert.Equal(t, tt.offset, body["offset"], tt.query)
	}
}

func TestParseID_InvalidWritesBadRequest(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/posts/:id", func(c *fiber.Ctx) error {
		id, err := parseID(c, "id")
		if err != nil {
			return nil
		}
		return c.JSON(fiber.Map{"id": id})
	})

	for _, raw := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest(http.MethodGet, "/posts/"+raw, nil)
		resp, err := app.Test(req)
		require.NoError(t, err)

		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		_ = resp.Body.Close()

		assert.Equal(t, fiber.StatusBadRequest, resp.StatusCode, raw)
		assert.Equal(t, "Invalid ID", body["error"], raw)
	}
}

func TestParseBoolQuery(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/", func(c *fiber.Ctx) error {
		v := parseBoolQuery(c, "following")
		if v == nil {
			return c.SendString("unset")
		}
		if *v {
			return c.SendString("true")
		}
		return c.SendString("false")
	})

	cases := map[string]string{
		"":                 "unset",
		"?following=true":  "true",
		"?following=1":     "true",
		"?following=False": "false",
		"?following=no":    "false",
		"?following=maybe": "unset",
	}
	for query, want := range cases {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/"+query, nil))
		require.NoError(t, err)
		got, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, want, string(got), query)
	}
}

func TestViewerFrom(t *testing.T) {
	t.Parallel()
	app := fiber.New()
	app.Get("/anon", func(c *fiber.Ctx) error {
		assert.Equal(t, policy.Anonymous, viewerFrom(c))
		return c.SendStatus(fiber.StatusNoContent)
	})
	app.Get("/user", func(c *fiber.Ctx) error {
		c.Locals(middleware.LocalsUserID, uint(42))
		assert.Equal(t, policy.User(42), viewerFrom(c))
		return c.SendStatus(fiber.StatusNoContent)
	})

	for _, path := range []string{"/anon", "/user"} {
		resp, err := app.Test(httptest.NewRequest(http.MethodGet, path, nil))
		require.NoError(t, err)
		_ = resp.Body.Close()
		assert.Equal(t, fiber.StatusNoContent, resp.StatusCode)
	}
}
