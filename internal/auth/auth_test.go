package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"outreach/internal/authz"
)

const secret = "test-secret"

func TestSignAndVerify(t *testing.T) {
	token, err := Sign(secret, authz.Caller{UserID: "u1", Role: authz.RoleAdmin}, time.Hour)
	require.NoError(t, err)

	caller, err := NewVerifier(secret).Verify(token)
	require.NoError(t, err)
	assert.Equal(t, "u1", caller.UserID)
	assert.Equal(t, authz.RoleAdmin, caller.Role)
}

func TestVerifyRejects(t *testing.T) {
	v := NewVerifier(secret)

	wrongKey, err := Sign("other", authz.Caller{UserID: "u1", Role: authz.RoleMember}, time.Hour)
	require.NoError(t, err)
	_, err = v.Verify(wrongKey)
	assert.Error(t, err)

	expired, err := Sign(secret, authz.Caller{UserID: "u1", Role: authz.RoleMember}, -time.Minute)
	require.NoError(t, err)
	_, err = v.Verify(expired)
	assert.Error(t, err)

	noSubject, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{Role: "admin"}).SignedString([]byte(secret))
	require.NoError(t, err)
	_, err = v.Verify(noSubject)
	assert.ErrorIs(t, err, errMissingSubject)
}

func TestMiddleware(t *testing.T) {
	v := NewVerifier(secret)
	var seen authz.Caller
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})
	reject := func(w http.ResponseWriter, r *http.Request, err error) {
		w.WriteHeader(http.StatusUnauthorized)
	}
	h := v.Middleware(reject)(next)

	t.Run("anonymous", func(t *testing.T) {
		seen = authz.Caller{UserID: "stale"}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.False(t, seen.Authenticated())
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := Sign(secret, authz.Caller{UserID: "u7", Role: authz.RoleMember}, time.Hour)
		require.NoError(t, err)
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusNoContent, rec.Code)
		assert.Equal(t, "u7", seen.UserID)
	})

	t.Run("garbage token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer not-a-jwt")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("basic auth", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.SetBasicAuth("a", "b")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}
