package controlplane

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func passthroughHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestRequireAuthDisabledPassesThrough(t *testing.T) {
	h := requireAuth(authConfig{enabled: false})(passthroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/timers/x/cancel", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestRequireAuthRejectsMissingHeader(t *testing.T) {
	h := requireAuth(authConfig{enabled: true, secret: "s"})(passthroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/timers/x/cancel", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuthAcceptsValidToken(t *testing.T) {
	secret := "test-secret"
	claims := &Claims{
		Subject: "admin-1",
		Role:    "admin",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)

	var gotClaims *Claims
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotClaims = claimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})
	h := requireAuth(authConfig{enabled: true, secret: secret})(handler)

	req := httptest.NewRequest(http.MethodPost, "/v1/timers/x/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, gotClaims)
	assert.Equal(t, "admin", gotClaims.Role)
}

func TestRequireAuthRejectsBadSignature(t *testing.T) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, &Claims{Role: "admin"})
	signed, err := token.SignedString([]byte("wrong-secret"))
	require.NoError(t, err)

	h := requireAuth(authConfig{enabled: true, secret: "right-secret"})(passthroughHandler())

	req := httptest.NewRequest(http.MethodPost, "/v1/timers/x/cancel", nil)
	req.Header.Set("Authorization", "Bearer "+signed)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
