package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog/log"
	"github.com/telepost/dicom-transfer/internal/models"
)

type contextKey string

const userContextKey contextKey = "user"

// Auth verifies the bearer token and attaches the caller's identity to
// the request context. Token issuance is the identity service's job; this
// side only verifies signatures.
func Auth(secret string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			header := r.Header.Get("Authorization")
			if header == "" || !strings.HasPrefix(header, "Bearer ") {
				http.Error(w, "Authorization header is required", http.StatusUnauthorized)
				return
			}
			tokenStr := strings.TrimPrefix(header, "Bearer ")

			claims := &models.JWTClaims{}
			token, err := jwt.ParseWithClaims(tokenStr, claims, func(t *jwt.Token) (interface{}, error) {
				if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
					return nil, jwt.ErrSignatureInvalid
				}
				return []byte(secret), nil
			})
			if err != nil || !token.Valid {
				log.Warn().Err(err).Msg("Invalid access token")
				http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
				return
			}

			user := models.UserContext{
				UserID:   claims.UserID,
				Username: claims.Username,
				IsAdmin:  claims.IsAdmin,
			}
			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// GetUser extracts the authenticated caller from the context.
func GetUser(ctx context.Context) (models.UserContext, bool) {
	user, ok := ctx.Value(userContextKey).(models.UserContext)
	return user, ok
}

// WithUser returns a context carrying the given caller. Used by tests and
// internal dispatch.
func WithUser(ctx context.Context, user models.UserContext) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
