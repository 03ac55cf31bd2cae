package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/pkg/auth"
	"github.com/angelmondragon/commerce-core/pkg/config"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

var testJWT = config.JWTConfig{Secret: "secret", Issuer: "issuer", ExpirationMinutes: 60}

func TestAuthRejectsMissingToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthRejectsInvalidToken(t *testing.T) {
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer invalid")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 got %d", resp.Code)
	}
}

func TestAuthAllowsValidToken(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	token := mintTestToken(t, tenantID, userID, enums.RoleStaff)

	var captured struct {
		tenant uuid.UUID
		user   string
		role   string
	}
	handler := Auth(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		captured.tenant, _ = TenantIDFromContext(r.Context())
		captured.user = UserIDFromContext(r.Context())
		captured.role = RoleFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if captured.tenant != tenantID {
		t.Fatalf("expected tenant %s got %s", tenantID, captured.tenant)
	}
	if captured.user != userID.String() {
		t.Fatalf("expected user %s got %s", userID, captured.user)
	}
	if captured.role != string(enums.RoleStaff) {
		t.Fatalf("expected role staff got %s", captured.role)
	}
}

func TestShopperAcceptsGuestHeaders(t *testing.T) {
	tenantID := uuid.New()
	var guest string
	var user string
	handler := Shopper(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guest = GuestTokenFromContext(r.Context())
		user = UserIDFromContext(r.Context())
		if got, ok := TenantIDFromContext(r.Context()); !ok || got != tenantID {
			t.Fatalf("tenant not resolved from header")
		}
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("X-Tenant-ID", tenantID.String())
	req.Header.Set("X-Guest-Token", "guest-abc")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if guest != "guest-abc" || user != "" {
		t.Fatalf("unexpected identity guest=%q user=%q", guest, user)
	}
}

func TestShopperPrefersBearerToken(t *testing.T) {
	tenantID := uuid.New()
	userID := uuid.New()
	token := mintTestToken(t, tenantID, userID, enums.RoleCustomer)
	var guest string
	handler := Shopper(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		guest = GuestTokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("X-Tenant-ID", uuid.NewString())
	req.Header.Set("X-Guest-Token", "ignored")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusOK {
		t.Fatalf("expected 200 got %d", resp.Code)
	}
	if guest != "" {
		t.Fatalf("expected guest token ignored for members, got %q", guest)
	}
}

func TestShopperRejectsIncompleteGuest(t *testing.T) {
	handler := Shopper(testJWT, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	cases := map[string]map[string]string{
		"no headers":     {},
		"bad tenant":     {"X-Tenant-ID": "nope", "X-Guest-Token": "abc"},
		"missing token":  {"X-Tenant-ID": uuid.NewString()},
		"blank token":    {"X-Tenant-ID": uuid.NewString(), "X-Guest-Token": "   "},
	}
	for name, headers := range cases {
		t.Run(name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			for k, v := range headers {
				req.Header.Set(k, v)
			}
			resp := httptest.NewRecorder()
			handler.ServeHTTP(resp, req)
			if resp.Code != http.StatusUnauthorized {
				t.Fatalf("expected 401 got %d", resp.Code)
			}
		})
	}
}

func TestRequireRole(t *testing.T) {
	handler := RequireStaff(nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	for role, want := range map[enums.Role]int{
		enums.RoleStaff:    http.StatusOK,
		enums.RoleAdmin:    http.StatusOK,
		enums.RoleCustomer: http.StatusForbidden,
		enums.RoleSystem:   http.StatusForbidden,
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req = req.WithContext(WithRole(req.Context(), string(role)))
		resp := httptest.NewRecorder()
		handler.ServeHTTP(resp, req)
		if resp.Code != want {
			t.Fatalf("role %s: expected %d got %d", role, want, resp.Code)
		}
	}
}

func mintTestToken(t *testing.T, tenantID, userID uuid.UUID, role enums.Role) string {
	t.Helper()
	token, err := auth.MintAccessToken(testJWT, time.Now(), auth.AccessTokenPayload{
		TenantID: tenantID,
		UserID:   userID,
		Role:     role,
	})
	if err != nil {
		t.Fatalf("mint token: %v", err)
	}
	return token
}

func TestAuthWithoutSecretFailsClosed(t *testing.T) {
	handler := Auth(config.JWTConfig{Issuer: "issuer", ExpirationMinutes: 5}, nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Bearer anything")
	resp := httptest.NewRecorder()
	handler.ServeHTTP(resp, req)
	if resp.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 got %d", resp.Code)
	}
}

func TestPrincipalSettersAccumulate(t *testing.T) {
	tenantID := uuid.New()
	ctx := WithTenantID(httptest.NewRequest(http.MethodGet, "/", nil).Context(), tenantID)
	ctx = WithGuestToken(ctx, "g-9")

	p := PrincipalFromContext(ctx)
	if p.TenantID != tenantID || p.GuestToken != "g-9" || !p.IsGuest() {
		t.Fatalf("unexpected principal %+v", p)
	}

	ctx = WithUserID(ctx, uuid.NewString())
	if PrincipalFromContext(ctx).IsGuest() {
		t.Fatalf("a member is never a guest")
	}
	if _, ok := TenantIDFromContext(WithPrincipal(ctx, Principal{})); ok {
		t.Fatalf("empty principal has no tenant")
	}
}
