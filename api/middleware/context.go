package middleware

import (
	"context"

	"github.com/google/uuid"
)

type principalKey struct{}

// Principal is who a request acts as. Members carry UserID and Role from
// their token; guests carry only a tenant and a GuestToken.
type Principal struct {
	TenantID   uuid.UUID
	UserID     string
	Role       string
	GuestToken string
}

func (p Principal) IsGuest() bool {
	return p.UserID == "" && p.GuestToken != ""
}

func PrincipalFromContext(ctx context.Context) Principal {
	if ctx == nil {
		return Principal{}
	}
	p, _ := ctx.Value(principalKey{}).(Principal)
	return p
}

func WithPrincipal(ctx context.Context, p Principal) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, principalKey{}, p)
}

func amend(ctx context.Context, set func(*Principal)) context.Context {
	p := PrincipalFromContext(ctx)
	set(&p)
	return WithPrincipal(ctx, p)
}

func TenantIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id := PrincipalFromContext(ctx).TenantID
	return id, id != uuid.Nil
}

func UserIDFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).UserID
}

func RoleFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).Role
}

// GuestTokenFromContext is empty for members.
func GuestTokenFromContext(ctx context.Context) string {
	return PrincipalFromContext(ctx).GuestToken
}

func WithTenantID(ctx context.Context, tenantID uuid.UUID) context.Context {
	return amend(ctx, func(p *Principal) { p.TenantID = tenantID })
}

func WithUserID(ctx context.Context, userID string) context.Context {
	return amend(ctx, func(p *Principal) { p.UserID = userID })
}

func WithRole(ctx context.Context, role string) context.Context {
	return amend(ctx, func(p *Principal) { p.Role = role })
}

func WithGuestToken(ctx context.Context, token string) context.Context {
	return amend(ctx, func(p *Principal) { p.GuestToken = token })
}
