package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/api/responses"
	pkgAuth "github.com/angelmondragon/commerce-core/pkg/auth"
	"github.com/angelmondragon/commerce-core/pkg/config"
	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
)

const (
	tenantHeader     = "X-Tenant-ID"
	guestTokenHeader = "X-Guest-Token"
	maxGuestTokenLen = 128
)

// Auth validates a bearer token and seeds the request context with the
// tenant, user and role claims.
func Auth(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	signer, signerErr := pkgAuth.NewSigner(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if signerErr != nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, signerErr, "auth misconfigured"))
				return
			}
			ctx, err := authenticate(r.Context(), signer, r.Header.Get("Authorization"), logg)
			if err != nil {
				responses.WriteError(r.Context(), logg, w, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// Shopper accepts either a bearer token or an anonymous guest session. Guests
// name their tenant with X-Tenant-ID and their cart with X-Guest-Token.
func Shopper(cfg config.JWTConfig, logg *logger.Logger) func(http.Handler) http.Handler {
	signer, signerErr := pkgAuth.NewSigner(cfg)
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.TrimSpace(r.Header.Get("Authorization")) != "" {
				if signerErr != nil {
					responses.WriteError(r.Context(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, signerErr, "auth misconfigured"))
					return
				}
				ctx, err := authenticate(r.Context(), signer, r.Header.Get("Authorization"), logg)
				if err != nil {
					responses.WriteError(r.Context(), logg, w, err)
					return
				}
				next.ServeHTTP(w, r.WithContext(ctx))
				return
			}

			tenantID, err := uuid.Parse(strings.TrimSpace(r.Header.Get(tenantHeader)))
			if err != nil || tenantID == uuid.Nil {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials"))
				return
			}
			token := strings.TrimSpace(r.Header.Get(guestTokenHeader))
			if token == "" {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeUnauthorized, "guest token required"))
				return
			}
			if len(token) > maxGuestTokenLen {
				responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeValidation, "guest token too long"))
				return
			}

			ctx := WithPrincipal(r.Context(), Principal{TenantID: tenantID, GuestToken: token})
			if logg != nil {
				ctx = logg.WithTenantID(ctx, tenantID.String())
				ctx = logg.WithField(ctx, "guest", true)
			}
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func authenticate(ctx context.Context, signer *pkgAuth.Signer, header string, logg *logger.Logger) (context.Context, error) {
	raw := strings.TrimSpace(header)
	if raw == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	token := raw
	if strings.HasPrefix(strings.ToLower(token), "bearer ") {
		token = strings.TrimSpace(token[7:])
	}
	if token == "" {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "missing credentials")
	}

	claims, err := signer.Parse(token)
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeUnauthorized, err, "invalid token")
	}

	ctx = WithPrincipal(ctx, Principal{
		TenantID: claims.TenantID,
		UserID:   claims.UserID.String(),
		Role:     string(claims.Role),
	})

	if logg != nil {
		ctx = logg.WithTenantID(ctx, claims.TenantID.String())
		ctx = logg.WithUserID(ctx, claims.UserID.String())
		ctx = logg.WithActorRole(ctx, string(claims.Role))
	}
	return ctx, nil
}
