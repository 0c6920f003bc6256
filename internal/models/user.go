package models

import (
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// JWTClaims are the custom claims carried by access tokens. Token issuance
// lives in the identity service; this side only verifies.
type JWTClaims struct {
	UserID   uuid.UUID `json:"user_id"`
	Username string    `json:"username"`
	IsAdmin  bool      `json:"is_admin"`
	jwt.RegisteredClaims
}

// UserContext is the authenticated caller, extracted from the token.
type UserContext struct {
	UserID   uuid.UUID
	Username string
	IsAdmin  bool
}
