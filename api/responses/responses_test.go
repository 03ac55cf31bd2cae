package responses

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
	"github.com/angelmondragon/commerce-core/pkg/logger"
	"github.com/angelmondragon/commerce-core/pkg/types"
)

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var body T
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestWriteSuccessStatus(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccessStatus(w, http.StatusCreated, map[string]string{"order_id": "o-1"})

	assert.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	body := decode[types.Envelope](t, w)
	assert.Equal(t, "o-1", body.Data.(map[string]any)["order_id"])
}

func TestWritePage(t *testing.T) {
	w := httptest.NewRecorder()
	WritePage(w, []string{"a", "b"}, "next")
	page := decode[types.PageEnvelope](t, w)
	assert.Equal(t, "next", page.NextCursor)
	assert.True(t, page.HasMore)
	assert.Len(t, page.Data, 2)

	w = httptest.NewRecorder()
	WritePage(w, []string{}, "")
	assert.JSONEq(t, `{"data":[],"has_more":false}`, w.Body.String())
}

func TestWriteErrorStatuses(t *testing.T) {
	cases := []struct {
		err  error
		want int
		code pkgerrors.Code
	}{
		{pkgerrors.New(pkgerrors.CodeValidation, "bad input"), http.StatusBadRequest, pkgerrors.CodeValidation},
		{pkgerrors.New(pkgerrors.CodeStateConflict, "order already cancelled"), http.StatusUnprocessableEntity, pkgerrors.CodeStateConflict},
		{errors.New("boom"), http.StatusInternalServerError, pkgerrors.CodeInternal},
		{nil, http.StatusInternalServerError, pkgerrors.CodeInternal},
	}
	for _, tc := range cases {
		w := httptest.NewRecorder()
		WriteError(context.Background(), nil, w, tc.err)
		assert.Equal(t, tc.want, w.Code)
		assert.Equal(t, string(tc.code), decode[types.ErrorEnvelope](t, w).Error.Code)
	}
}

func TestWriteErrorEchoesRequestIDAndDetails(t *testing.T) {
	w := httptest.NewRecorder()
	w.Header().Set(RequestIDHeader, "req-42")
	WriteError(context.Background(), nil, w, pkgerrors.New(pkgerrors.CodeValidation, "validation failed").
		WithDetails(map[string]string{"shipping.city": "is required"}))

	body := decode[types.ErrorEnvelope](t, w)
	assert.Equal(t, "req-42", body.Error.RequestID)
	assert.Equal(t, "validation failed", body.Error.Message)
	assert.Equal(t, map[string]any{"shipping.city": "is required"}, body.Error.Details)
}

func TestWriteErrorHidesInternalMessageAndLogsChain(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})

	w := httptest.NewRecorder()
	cause := errors.New("dial tcp 10.0.0.3:5432: connection refused")
	WriteError(context.Background(), logg, w, pkgerrors.Wrap(pkgerrors.CodeInternal, cause, "load order"))

	assert.NotContains(t, w.Body.String(), "10.0.0.3")
	assert.NotContains(t, w.Body.String(), "load order")
	assert.Nil(t, decode[types.ErrorEnvelope](t, w).Error.Details)
	assert.Contains(t, logs.String(), "connection refused")
	assert.Contains(t, logs.String(), "request.error")
}

func TestWriteErrorLogsClientErrorsAsWarn(t *testing.T) {
	var logs bytes.Buffer
	logg := logger.New(logger.Options{ServiceName: "test", Output: &logs})

	WriteError(context.Background(), logg, httptest.NewRecorder(), pkgerrors.New(pkgerrors.CodeNotFound, "order not found"))
	assert.Contains(t, logs.String(), `"level":"warn"`)
	assert.Contains(t, logs.String(), "request.rejected")
}

func TestWriteErrorCarriesShortageDetails(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(context.Background(), nil, w, pkgerrors.InsufficientStock(pkgerrors.StockShortage{
		ProductID: "p-1", Requested: 3, Available: 2,
	}))

	require.Equal(t, http.StatusConflict, w.Code)
	body := decode[struct {
		Error struct {
			Message string                  `json:"message"`
			Details pkgerrors.StockShortage `json:"details"`
		} `json:"error"`
	}](t, w)
	assert.Equal(t, "insufficient stock", body.Error.Message)
	assert.Equal(t, int64(2), body.Error.Details.Available)
}
