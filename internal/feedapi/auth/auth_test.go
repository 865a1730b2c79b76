package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("test-secret")

func signToken(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(testSecret)
	require.NoError(t, err)
	return signed
}

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAdmin_AcceptsValidAdminToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "ops@example.com", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	RequireAdmin(testSecret, okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequireAdmin_RejectsMissingHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	w := httptest.NewRecorder()

	RequireAdmin(testSecret, okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_RejectsNonAdminRole(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "reader@example.com", "role": "viewer", "exp": time.Now().Add(time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	RequireAdmin(testSecret, okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_RejectsExpiredToken(t *testing.T) {
	token := signToken(t, jwt.MapClaims{
		"sub": "ops@example.com", "role": "admin", "exp": time.Now().Add(-time.Hour).Unix(),
	})
	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	w := httptest.NewRecorder()

	RequireAdmin(testSecret, okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestRequireAdmin_RejectsWrongSigningSecret(t *testing.T) {
	otherSecret := []byte("wrong-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "ops@example.com", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString(otherSecret)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/admin/metrics", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	w := httptest.NewRecorder()

	RequireAdmin(testSecret, okHandler()).ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
