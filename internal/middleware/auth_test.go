package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/telepost/dicom-transfer/internal/models"
)

const testSecret = "test-secret"

func signToken(t *testing.T, claims models.JWTClaims, secret string) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	require.NoError(t, err)
	return signed
}

func authProbe(t *testing.T, authHeader string) (*httptest.ResponseRecorder, models.UserContext, bool) {
	t.Helper()
	var user models.UserContext
	var ok bool
	handler := Auth(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		user, ok = GetUser(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest("GET", "/api/v1/destinations", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, user, ok
}

func TestAuthValidToken(t *testing.T) {
	userID := uuid.New()
	token := signToken(t, models.JWTClaims{
		UserID:   userID,
		Username: "jdoe",
		IsAdmin:  true,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, testSecret)

	rec, user, ok := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusOK, rec.Code)
	require.True(t, ok)
	assert.Equal(t, userID, user.UserID)
	assert.Equal(t, "jdoe", user.Username)
	assert.True(t, user.IsAdmin)
}

func TestAuthMissingHeader(t *testing.T) {
	rec, _, ok := authProbe(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestAuthMalformedHeader(t *testing.T) {
	rec, _, ok := authProbe(t, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestAuthWrongSecret(t *testing.T) {
	token := signToken(t, models.JWTClaims{
		Username: "jdoe",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}, "other-secret")

	rec, _, ok := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}

func TestAuthExpiredToken(t *testing.T) {
	token := signToken(t, models.JWTClaims{
		Username: "jdoe",
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour)),
		},
	}, testSecret)

	rec, _, ok := authProbe(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.False(t, ok)
}
