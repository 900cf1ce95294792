package server

import (
	"net/http"
	"testing"

	"socialhub/internal/models"
	"socialhub/internal/service"
	"socialhub/internal/testutil"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const strongPassword = "Sup3rSecret!pass"

func register(t *testing.T, env *testEnv, username string) service.AuthResult {
	t.Helper()
	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": username,
		"email":    username + "@example.com",
		"password": strongPassword,
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	return decode[service.AuthResult](t, resp)
}

func login(t *testing.T, env *testEnv, username, password string) *http.Response {
	t.Helper()
	return env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"username": username,
		"password": password,
	})
}

func TestRegister_ReturnsTokenAndProfile(t *testing.T) {
	env := newTestServer(t)

	result := register(t, env, "alice")
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "alice", result.User.Username)
	assert.Equal(t, "alice@example.com", result.User.Email)

	resp := env.do(t, http.MethodGet, "/api/users/me", result.Token, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	me := decode[models.UserProfile](t, resp)
	assert.Equal(t, result.User.ID, me.ID)
}

func TestRegister_Validation(t *testing.T) {
	env := newTestServer(t)

	tests := []struct {
		name string
		body map[string]string
	}{
		{"missing email", map[string]string{"username": "bob", "password": strongPassword}},
		{"weak password", map[string]string{"username": "bob", "email": "bob@example.com", "password": "short"}},
		{"bad username", map[string]string{"username": "b!", "email": "bob@example.com", "password": strongPassword}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := env.do(t, http.MethodPost, "/api/auth/register", "", tt.body)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			body := decode[models.ErrorResponse](t, resp)
			assert.Equal(t, models.CodeValidation, body.Code)
		})
	}
}

func TestRegister_DuplicateUsernameConflicts(t *testing.T) {
	env := newTestServer(t)
	register(t, env, "alice")

	resp := env.do(t, http.MethodPost, "/api/auth/register", "", map[string]string{
		"username": "alice",
		"email":    "other@example.com",
		"password": strongPassword,
	})
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestLogin(t *testing.T) {
	env := newTestServer(t)
	register(t, env, "alice")

	resp := login(t, env, "alice", strongPassword)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, decode[service.AuthResult](t, resp).Token)

	resp = login(t, env, "alice", "Wrong-password1!")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Equal(t, models.CodeAuthenticationFailed, decode[models.ErrorResponse](t, resp).Code)

	resp = login(t, env, "nobody", strongPassword)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = login(t, env, "", "")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestLogin_LockoutAndAdminUnlock(t *testing.T) {
	env := newTestServer(t)
	register(t, env, "dave")

	for i := 1; i < models.DefaultLockoutThreshold; i++ {
		resp := login(t, env, "dave", "Wrong-password1!")
		require.Equal(t, http.StatusUnauthorized, resp.StatusCode, "attempt %d", i)
	}
	resp := login(t, env, "dave", "Wrong-password1!")
	require.Equal(t, http.StatusLocked, resp.StatusCode)
	assert.Equal(t, models.CodeAccountLocked, decode[models.ErrorResponse](t, resp).Code)

	// correct credentials do not bypass the lock
	resp = login(t, env, "dave", strongPassword)
	require.Equal(t, http.StatusLocked, resp.StatusCode)

	var dave models.User
	require.NoError(t, env.db.Where("username = ?", "dave").First(&dave).Error)

	// a regular user may not unlock
	carol := testutil.CreateUser(t, env.db, "carol")
	resp = env.do(t, http.MethodPost, "/api/admin/users/"+itoa(dave.ID)+"/unlock", env.token(t, carol), nil)
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	root := testutil.CreateUser(t, env.db, "root")
	require.NoError(t, env.db.Model(root).Update("is_admin", true).Error)
	rootToken := env.token(t, root)

	resp = env.do(t, http.MethodGet, "/api/admin/users/"+itoa(dave.ID)+"/lock-status", rootToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	status := decode[map[string]any](t, resp)
	assert.Equal(t, true, status["locked"])

	resp = env.do(t, http.MethodPost, "/api/admin/users/"+itoa(dave.ID)+"/unlock", rootToken, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = login(t, env, "dave", strongPassword)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestLogout_RevokesToken(t *testing.T) {
	env := newTestServer(t)
	result := register(t, env, "alice")

	resp := env.do(t, http.MethodPost, "/api/auth/logout", result.Token, nil)
	require.Equal(t, http.StatusNoContent, resp.StatusCode)

	resp = env.do(t, http.MethodGet, "/api/users/me", result.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
