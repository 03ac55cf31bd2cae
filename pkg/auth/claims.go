package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/enums"
)

var ErrMissingTenant = errors.New("token missing tenant_id")

type AccessTokenPayload struct {
	TenantID uuid.UUID
	UserID   uuid.UUID
	Role     enums.Role
	JTI      string
}

// AccessTokenClaims is the body of an access token. Every token is bound to
// exactly one tenant.
type AccessTokenClaims struct {
	TenantID uuid.UUID  `json:"tenant_id"`
	UserID   uuid.UUID  `json:"user_id"`
	Role     enums.Role `json:"role"`
	jwt.RegisteredClaims
}

// Validate is called by the jwt parser after exp/iss checks pass.
func (c AccessTokenClaims) Validate() error {
	if c.TenantID == uuid.Nil {
		return ErrMissingTenant
	}
	if !c.Role.IsValid() {
		return fmt.Errorf("token carries invalid role %q", c.Role)
	}
	return nil
}
