package controllers

import (
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/api/middleware"
	"github.com/angelmondragon/commerce-core/api/validators"
	"github.com/angelmondragon/commerce-core/internal/cart"
	"github.com/angelmondragon/commerce-core/internal/orders"
	"github.com/angelmondragon/commerce-core/pkg/enums"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/pagination"
)

func tenantFromRequest(r *http.Request) (uuid.UUID, error) {
	tenantID, ok := middleware.TenantIDFromContext(r.Context())
	if !ok {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "tenant context missing")
	}
	return tenantID, nil
}

// userFromRequest returns the signed-in user; guests have none.
func userFromRequest(r *http.Request) (*uuid.UUID, error) {
	raw := middleware.UserIDFromContext(r.Context())
	if raw == "" {
		return nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid user id")
	}
	return &id, nil
}

func actorFromRequest(r *http.Request) (orders.Actor, error) {
	userID, err := userFromRequest(r)
	if err != nil {
		return orders.Actor{}, err
	}
	if userID == nil {
		return orders.Actor{}, pkgerrors.New(pkgerrors.CodeUnauthorized, "user context missing")
	}
	return orders.Actor{UserID: *userID, Role: enums.Role(middleware.RoleFromContext(r.Context()))}, nil
}

func cartOwnerFromRequest(r *http.Request) (cart.Owner, error) {
	userID, err := userFromRequest(r)
	if err != nil {
		return nil, err
	}
	if userID != nil {
		return cart.CustomerOwner{CustomerID: *userID}, nil
	}
	if token := middleware.GuestTokenFromContext(r.Context()); token != "" {
		return cart.GuestOwner{Token: token}, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "cart owner missing")
}

func uuidParam(r *http.Request, key, label string) (uuid.UUID, error) {
	raw := strings.TrimSpace(chi.URLParam(r, key))
	if raw == "" {
		return uuid.Nil, pkgerrors.New(pkgerrors.CodeValidation, label+" is required")
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, pkgerrors.Wrap(pkgerrors.CodeValidation, err, "invalid "+label)
	}
	return id, nil
}

func pageParams(q *validators.Query) pagination.Params {
	return pagination.Params{
		Limit:  q.Int("limit", pagination.DefaultLimit, 1, pagination.MaxLimit),
		Cursor: q.String("cursor"),
	}
}

func actorScope(r *http.Request) (uuid.UUID, orders.Actor, error) {
	tenantID, err := tenantFromRequest(r)
	if err != nil {
		return uuid.Nil, orders.Actor{}, err
	}
	actor, err := actorFromRequest(r)
	if err != nil {
		return uuid.Nil, orders.Actor{}, err
	}
	return tenantID, actor, nil
}
