package handler

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/inkwell/internal/db"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoginIssuesTokenAndSession(t *testing.T) {
	api, gdb := setupTestAPI(t, Options{})
	seedUser(t, gdb, "alice", "correct-horse", db.RoleAuthor)
	r := newAuthEngine(api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "correct-horse",
	}))
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	body := decodeBody(t, w)
	token, _ := body["token"].(string)
	require.NotEmpty(t, token)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	t.Run("bearer", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", decodeBody(t, w)["username"])
	})

	t.Run("session", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		for _, cookie := range cookies {
			req.AddCookie(cookie)
		}
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, "alice", decodeBody(t, w)["username"])
	})
}

func TestLoginRejectsBadCredentials(t *testing.T) {
	api, gdb := setupTestAPI(t, Options{})
	seedUser(t, gdb, "alice", "correct-horse", db.RoleAuthor)
	r := newAuthEngine(api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{
		"username": "alice",
		"password": "wrong-password",
	}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/auth/login", map[string]string{"username": "alice"}))
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestResolveActorRejectsInvalidBearer(t *testing.T) {
	api, gdb := setupTestAPI(t, Options{})
	r := newAuthEngine(api)

	cases := map[string]string{
		"garbage":      "Bearer not-a-token",
		"wrong scheme": "Basic YWxpY2U6cHc=",
	}
	for name, header := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
			req.Header.Set("Authorization", header)
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)
			assert.Equal(t, http.StatusUnauthorized, w.Code)
		})
	}

	t.Run("foreign secret", func(t *testing.T) {
		actor := seedUser(t, gdb, "mallory", "password123", db.RoleAdmin)
		token, _, err := NewTokenIssuer("another-secret", time.Hour).Issue(&db.User{ID: actor.ID, Role: actor.Role})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})

	t.Run("deleted user", func(t *testing.T) {
		token, _, err := api.tokens.Issue(&db.User{ID: "missing-user", Role: db.RoleAdmin})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
}

func TestTokenIssuerExpiry(t *testing.T) {
	issuer := NewTokenIssuer("secret", time.Minute)
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	issuer.now = func() time.Time { return base }

	token, expiresAt, err := issuer.Issue(&db.User{ID: "u1", Role: db.RoleAuthor})
	require.NoError(t, err)
	assert.Equal(t, base.Add(time.Minute), expiresAt)

	claims, err := issuer.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", claims.Subject)
	assert.Equal(t, db.RoleAuthor, claims.Role)

	issuer.now = func() time.Time { return base.Add(2 * time.Minute) }
	_, err = issuer.Parse(token)
	assert.ErrorIs(t, err, errInvalidToken)
}

func TestRoleFromDatabaseOverridesToken(t *testing.T) {
	api, gdb := setupTestAPI(t, Options{})
	actor := seedUser(t, gdb, "bob", "password123", db.RoleReader)
	r := newAuthEngine(api)

	// token 中声称 ADMIN，数据库中是 READER
	token, _, err := api.tokens.Issue(&db.User{ID: actor.ID, Role: db.RoleAdmin})
	require.NoError(t, err)

	req := jsonRequest(http.MethodPost, "/api/manage/users", map[string]string{
		"username": "eve",
		"password": "password123",
		"role":     "AUTHOR",
	})
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestCreateUserValidatesRole(t *testing.T) {
	api, gdb := setupTestAPI(t, Options{})
	admin := seedUser(t, gdb, "root", "password123", db.RoleAdmin)
	r := newAuthEngine(api)
	token, _, err := api.tokens.Issue(&db.User{ID: admin.ID, Role: admin.Role})
	require.NoError(t, err)

	send := func(body map[string]string) *httptest.ResponseRecorder {
		req := jsonRequest(http.MethodPost, "/api/manage/users", body)
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		r.ServeHTTP(w, req)
		return w
	}

	w := send(map[string]string{"username": "eve", "password": "password123", "role": "OWNER"})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = send(map[string]string{"username": "eve", "password": "password123", "role": "AUTHOR"})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	assert.Equal(t, "AUTHOR", decodeBody(t, w)["role"])
	_, hasPassword := decodeBody(t, w)["password"]
	assert.False(t, hasPassword)

	w = send(map[string]string{"username": "eve", "password": "password123", "role": "READER"})
	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAnonymousRequestsNeedLogin(t *testing.T) {
	api, _ := setupTestAPI(t, Options{})
	r := newAuthEngine(api)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/me", nil))
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, jsonRequest(http.MethodPost, "/api/manage/users", map[string]string{}))
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
