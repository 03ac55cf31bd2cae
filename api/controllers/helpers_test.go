package controllers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/angelmondragon/commerce-core/api/middleware"
	"github.com/angelmondragon/commerce-core/pkg/enums"
)

type requestIdentity struct {
	tenantID uuid.UUID
	userID   *uuid.UUID
	role     enums.Role
	guest    string
}

func memberIdentity(role enums.Role) requestIdentity {
	userID := uuid.New()
	return requestIdentity{tenantID: uuid.New(), userID: &userID, role: role}
}

func guestIdentity(token string) requestIdentity {
	return requestIdentity{tenantID: uuid.New(), guest: token}
}

func newRequest(method, target string, body io.Reader, id requestIdentity, params map[string]string) *http.Request {
	req := httptest.NewRequest(method, target, body)
	ctx := middleware.WithTenantID(req.Context(), id.tenantID)
	if id.userID != nil {
		ctx = middleware.WithUserID(ctx, id.userID.String())
		ctx = middleware.WithRole(ctx, string(id.role))
	}
	if id.guest != "" {
		ctx = middleware.WithGuestToken(ctx, id.guest)
	}
	if len(params) > 0 {
		routeCtx := chi.NewRouteContext()
		for k, v := range params {
			routeCtx.URLParams.Add(k, v)
		}
		ctx = context.WithValue(ctx, chi.RouteCtxKey, routeCtx)
	}
	return req.WithContext(ctx)
}

type envelope struct {
	Data       json.RawMessage `json:"data"`
	NextCursor string          `json:"next_cursor"`
	Error      *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func decodeEnvelope(t *testing.T, resp *httptest.ResponseRecorder) envelope {
	t.Helper()
	var env envelope
	if err := json.Unmarshal(resp.Body.Bytes(), &env); err != nil {
		t.Fatalf("decode response: %v (%s)", err, resp.Body.String())
	}
	return env
}

func decodeData(t *testing.T, resp *httptest.ResponseRecorder, dest any) {
	t.Helper()
	env := decodeEnvelope(t, resp)
	if err := json.Unmarshal(env.Data, dest); err != nil {
		t.Fatalf("decode data: %v", err)
	}
}
