package auth

import (
	"github.com/castwell/launch-backend/pkg/enums"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// AccessTokenPayload captures the data available when minting a JWT.
type AccessTokenPayload struct {
	AccountID uuid.UUID
	Email     string
	Role      enums.AccountRole
	JTI       string
}

// AccessTokenClaims represents the typed JWT issued to clients.
type AccessTokenClaims struct {
	AccountID uuid.UUID         `json:"account_id"`
	Email     string            `json:"email"`
	Role      enums.AccountRole `json:"role"`
	jwt.RegisteredClaims
}

// IsAdmin reports whether the token grants the admin surface.
func (c *AccessTokenClaims) IsAdmin() bool {
	return c != nil && c.Role == enums.AccountRoleAdmin
}
