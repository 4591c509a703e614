package handlers

import (
	"net/http"
	"strconv"
	"testing"

	"fleetdash/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUsersRequireAdmin(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "clerk@example.com", "pw", models.RoleUser, allCapabilities())
	cookies := env.login(t, "clerk@example.com", "pw")

	for _, tc := range []struct{ method, path string }{
		{http.MethodGet, "/api/users"},
		{http.MethodPost, "/api/users"},
		{http.MethodGet, "/api/users/1"},
		{http.MethodPut, "/api/users/1"},
		{http.MethodDelete, "/api/users/1"},
	} {
		rec := env.do(t, tc.method, tc.path, map[string]string{}, cookies)
		assert.Equal(t, http.StatusForbidden, rec.Code, "%s %s", tc.method, tc.path)
		assert.Nil(t, decode(t, rec).Data)
		assert.NotContains(t, rec.Body.String(), "clerk@example.com")
	}
}

func TestCreateUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "pw", models.RoleAdmin, allCapabilities())
	cookies := env.login(t, "admin@example.com", "pw")

	rec := env.do(t, http.MethodPost, "/api/users", map[string]any{
		"email":             "new@example.com",
		"password":          "initial",
		"full_name":         "New Person",
		"can_view_vehicles": false,
	}, cookies)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := dataMap(t, decode(t, rec))
	assert.Equal(t, "user", created["role"])
	caps := created["capabilities"].(map[string]any)
	assert.Equal(t, false, caps["can_view_vehicles"])
	assert.Equal(t, true, caps["can_view_expenses"])
	assert.NotContains(t, rec.Body.String(), "password_hash")

	// the new account can log in
	env.login(t, "new@example.com", "initial")

	dup := env.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "NEW@example.com", "password": "x", "full_name": "Again",
	}, cookies)
	assert.Equal(t, http.StatusConflict, dup.Code)
	assert.Equal(t, "The email is already registered", decode(t, dup).Message)

	missing := env.do(t, http.MethodPost, "/api/users", map[string]any{"email": "x@example.com"}, cookies)
	assert.Equal(t, http.StatusBadRequest, missing.Code)

	badRole := env.do(t, http.MethodPost, "/api/users", map[string]any{
		"email": "r@example.com", "password": "x", "full_name": "R", "role": "root",
	}, cookies)
	assert.Equal(t, http.StatusBadRequest, badRole.Code)
}

func TestUpdateUser(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "admin@example.com", "pw", models.RoleAdmin, allCapabilities())
	target := env.addUser(t, "ana@example.com", "original", models.RoleUser, models.DefaultCapabilities())
	cookies := env.login(t, "admin@example.com", "pw")
	path := "/api/users/" + strconv.FormatInt(target.ID, 10)

	rec := env.do(t, http.MethodPut, path, map[string]any{"full_name": "Ana Renamed", "role": "admin"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	updated := dataMap(t, decode(t, rec))
	assert.Equal(t, "Ana Renamed", updated["full_name"])
	assert.Equal(t, "admin", updated["role"])

	// empty password keeps the old one
	env.login(t, "ana@example.com", "original")

	rec = env.do(t, http.MethodPut, path, map[string]any{"password": "changed"}, cookies)
	require.Equal(t, http.StatusOK, rec.Code)
	env.login(t, "ana@example.com", "changed")

	env.addUser(t, "taken@example.com", "pw", models.RoleUser, models.DefaultCapabilities())
	rec = env.do(t, http.MethodPut, path, map[string]any{"email": "taken@example.com"}, cookies)
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/users/9999", map[string]any{"full_name": "Ghost"}, cookies)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = env.do(t, http.MethodPut, "/api/users/abc", map[string]any{}, cookies)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestDeleteUser(t *testing.T) {
	env := newTestEnv(t)
	admin := env.addUser(t, "admin@example.com", "pw", models.RoleAdmin, allCapabilities())
	target := env.addUser(t, "ana@example.com", "pw", models.RoleUser, models.DefaultCapabilities())
	cookies := env.login(t, "admin@example.com", "pw")

	self := env.do(t, http.MethodDelete, "/api/users/"+strconv.FormatInt(admin.ID, 10), nil, cookies)
	assert.Equal(t, http.StatusBadRequest, self.Code)
	assert.Equal(t, "You cannot delete your own user", decode(t, self).Message)

	path := "/api/users/" + strconv.FormatInt(target.ID, 10)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodDelete, path, nil, cookies).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, path, nil, cookies).Code)

	list := env.do(t, http.MethodGet, "/api/users", nil, cookies)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Len(t, decode(t, list).Data, 1)
}
