package auth

import (
	"github.com/angelmondragon/enxoval-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	UserID uuid.UUID
	Email  string
	Role   enums.Role
	JTI    string
}

// AccessTokenClaims represents the typed JWT issued to admin clients.
type AccessTokenClaims struct {
	UserID uuid.UUID  `json:"user_id"`
	Email  string     `json:"email,omitempty"`
	Role   enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Identity is the verified caller behind a bearer token, regardless of which
// issuer produced it.
type Identity struct {
	UserID   uuid.UUID
	Email    string
	Role     enums.Role
	AccessID string
}
