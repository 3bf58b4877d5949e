package api

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"inkwell/config"
	"inkwell/database"
	"inkwell/storage"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"
)

// setupTestDB points the package-global handle at a throwaway sqlite file.
// A file under t.TempDir() rather than :memory: because the connection pool
// would otherwise hand each connection its own empty database.
func setupTestDB(t *testing.T) {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "inkwell-test.db")
	require.NoError(t, database.Init("sqlite", dsn, false))
	t.Cleanup(database.CloseDB)
}

func testConfig() *config.Config {
	return &config.Config{
		Debug:              true,
		Addr:               ":0",
		SiteName:           "Inkwell",
		PublicURL:          "http://localhost:8080",
		CORSAllowedOrigins: []string{"*"},
		JWTSecret:          "test-secret",
		JWTTTL:             time.Hour,
	}
}

func newTestRouter(t *testing.T, opts ...func(*config.Config)) *chi.Mux {
	t.Helper()
	setupTestDB(t)

	cfg := testConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return NewRouter(cfg, nil)
}

func newTestRouterWithStorage(t *testing.T, store storage.ObjectStorage) *chi.Mux {
	t.Helper()
	setupTestDB(t)
	return NewRouter(testConfig(), store)
}

// doJSON runs a request through the router and decodes the envelope.
func doJSON(t *testing.T, h http.Handler, method, path, token string, body any) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		buf, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(buf)
	}

	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	var decoded map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") && rec.Body.Len() > 0 {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &decoded))
	}
	return rec, decoded
}

// data digs the envelope's data object out of a decoded response.
func data(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	d, ok := body["data"].(map[string]any)
	require.True(t, ok, "response has no data object: %v", body)
	return d
}

// fieldErrors digs the validation failure map out of a 400 response.
func fieldErrors(t *testing.T, body map[string]any) map[string]any {
	t.Helper()
	errs, ok := data(t, body)["errors"].(map[string]any)
	require.True(t, ok, "response has no validation errors: %v", body)
	return errs
}

// registerTestUser registers an account and returns its token and id. The
// first account in a fresh database is the admin.
func registerTestUser(t *testing.T, h http.Handler, email, username string) (string, uint) {
	t.Helper()

	rec, body := doJSON(t, h, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    email,
		"username": username,
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code, "register failed: %s", rec.Body.String())

	d := data(t, body)
	user := d["user"].(map[string]any)
	return d["token"].(string), uint(user["id"].(float64))
}

func registerAdmin(t *testing.T, h http.Handler) string {
	t.Helper()
	token, _ := registerTestUser(t, h, "admin@example.com", "admin")
	return token
}

// createTestPost makes a post through the API and returns its data object.
func createTestPost(t *testing.T, h http.Handler, token string, fields map[string]any) map[string]any {
	t.Helper()

	payload := map[string]any{
		"title":     "Untitled",
		"published": true,
	}
	for k, v := range fields {
		payload[k] = v
	}

	rec, body := doJSON(t, h, http.MethodPost, "/api/posts", token, payload)
	require.Equal(t, http.StatusCreated, rec.Code, "create post failed: %s", rec.Body.String())
	return data(t, body)["post"].(map[string]any)
}
