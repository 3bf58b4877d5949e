package api

import (
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterFirstUserBecomesAdmin(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "first@example.com",
		"username": "first",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	first := data(t, body)["user"].(map[string]any)
	assert.True(t, first["isAdmin"].(bool))

	rec, body = doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "second@example.com",
		"username": "second",
		"password": "password123",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	second := data(t, body)["user"].(map[string]any)
	assert.False(t, second["isAdmin"].(bool))
}

func TestRegisterValidation(t *testing.T) {
	router := newTestRouter(t)

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "not-an-email",
		"username": "",
		"password": "short",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)

	errs := fieldErrors(t, body)
	assert.Contains(t, errs, "email")
	assert.Contains(t, errs, "username")
	assert.Contains(t, errs, "password")
}

func TestRegisterDuplicateEmail(t *testing.T) {
	router := newTestRouter(t)
	registerTestUser(t, router, "dup@example.com", "original")

	rec, _ := doJSON(t, router, http.MethodPost, "/api/auth/register", "", map[string]any{
		"email":    "dup@example.com",
		"username": "someoneelse",
		"password": "password123",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestLogin(t *testing.T) {
	router := newTestRouter(t)
	registerTestUser(t, router, "login@example.com", "loginuser")

	rec, body := doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "login@example.com",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, data(t, body)["token"])

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "login@example.com",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "nobody@example.com",
		"password": "password123",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestCurrentUser(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerTestUser(t, router, "me@example.com", "me")

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/me", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	user := data(t, body)["user"].(map[string]any)
	assert.Equal(t, "me@example.com", user["email"])

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/me", "garbage-token", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestUpdateCurrentUser(t *testing.T) {
	router := newTestRouter(t)
	token, _ := registerTestUser(t, router, "update@example.com", "updateme")

	rec, body := doJSON(t, router, http.MethodPut, "/api/auth/me", token, map[string]any{
		"displayName": "New Name",
		"bio":         "Writes about Go.",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	user := data(t, body)["user"].(map[string]any)
	assert.Equal(t, "New Name", user["displayName"])
	assert.Equal(t, "Writes about Go.", user["bio"])

	// Password changes need the current password.
	rec, body = doJSON(t, router, http.MethodPut, "/api/auth/me", token, map[string]any{
		"password": "newpassword123",
	})
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, fieldErrors(t, body), "currentPassword")

	rec, _ = doJSON(t, router, http.MethodPut, "/api/auth/me", token, map[string]any{
		"password":        "newpassword123",
		"currentPassword": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec, _ = doJSON(t, router, http.MethodPost, "/api/auth/login", "", map[string]any{
		"email":    "update@example.com",
		"password": "newpassword123",
	})
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSetUserAdmin(t *testing.T) {
	router := newTestRouter(t)
	adminToken, adminID := registerTestUser(t, router, "root@example.com", "root")
	userToken, userID := registerTestUser(t, router, "member@example.com", "member")

	// Non-admins cannot touch the flag.
	rec, _ := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/auth/users/%d/admin", adminID), userToken, map[string]any{
		"isAdmin": true,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Admins can grant it.
	rec, body := doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/auth/users/%d/admin", userID), adminToken, map[string]any{
		"isAdmin": true,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, data(t, body)["user"].(map[string]any)["isAdmin"].(bool))

	// Nobody can revoke their own access.
	rec, _ = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/auth/users/%d/admin", adminID), adminToken, map[string]any{
		"isAdmin": false,
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	// Revoking someone else is fine.
	rec, body = doJSON(t, router, http.MethodPut, fmt.Sprintf("/api/auth/users/%d/admin", userID), adminToken, map[string]any{
		"isAdmin": false,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.False(t, data(t, body)["user"].(map[string]any)["isAdmin"].(bool))

	rec, _ = doJSON(t, router, http.MethodPut, "/api/auth/users/99999/admin", adminToken, map[string]any{
		"isAdmin": true,
	})
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestListUsersAdminOnly(t *testing.T) {
	router := newTestRouter(t)
	adminToken := registerAdmin(t, router)
	userToken, _ := registerTestUser(t, router, "plain@example.com", "plain")

	rec, body := doJSON(t, router, http.MethodGet, "/api/auth/users", adminToken, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	users := data(t, body)["users"].([]any)
	assert.Len(t, users, 2)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/users", userToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec, _ = doJSON(t, router, http.MethodGet, "/api/auth/users", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
