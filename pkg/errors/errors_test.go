package errors

import (
	stdErrors "errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublicViewHonoursCodePolicy(t *testing.T) {
	details := map[string]string{"quantity": "must be at least 1"}
	cases := []struct {
		name        string
		err         error
		wantStatus  int
		wantCode    Code
		wantMessage string
		wantDetails any
	}{
		{
			name:        "validation exposes message and details",
			err:         New(CodeValidation, "quantity invalid").WithDetails(details),
			wantStatus:  http.StatusBadRequest,
			wantCode:    CodeValidation,
			wantMessage: "quantity invalid",
			wantDetails: details,
		},
		{
			name:        "forbidden hides details",
			err:         New(CodeForbidden, "staff only").WithDetails(details),
			wantStatus:  http.StatusForbidden,
			wantCode:    CodeForbidden,
			wantMessage: "staff only",
		},
		{
			name:        "internal hides message",
			err:         Wrap(CodeInternal, stdErrors.New("dial tcp: refused"), "load cart"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "untyped error is internal",
			err:         stdErrors.New("boom"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "unknown code collapses to internal",
			err:         New("SOMETHING_ELSE", "secret"),
			wantStatus:  http.StatusInternalServerError,
			wantCode:    CodeInternal,
			wantMessage: "internal server error",
		},
		{
			name:        "dependency keeps details but not message",
			err:         New(CodeDependency, "redis down").WithDetails(details),
			wantStatus:  http.StatusServiceUnavailable,
			wantCode:    CodeDependency,
			wantMessage: "dependency unavailable",
			wantDetails: details,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			view := PublicView(tc.err)
			assert.Equal(t, tc.wantStatus, view.Status)
			assert.Equal(t, tc.wantCode, view.Code)
			assert.Equal(t, tc.wantMessage, view.Message)
			assert.Equal(t, tc.wantDetails, view.Details)
		})
	}
}

func TestMetadataForUnknownCodeDefaultsToInternal(t *testing.T) {
	meta := MetadataFor("SOMETHING_UNKNOWN")
	assert.Equal(t, http.StatusInternalServerError, meta.HTTPStatus)
	assert.True(t, meta.Retryable)
}

func TestErrorStringIncludesCause(t *testing.T) {
	assert.Equal(t, "NOT_FOUND: order 7 not found", Newf(CodeNotFound, "order %d not found", 7).Error())

	cause := stdErrors.New("boom")
	wrapped := Wrap(CodeConflict, cause, "reserve")
	assert.Equal(t, "CONFLICT: reserve: boom", wrapped.Error())
	assert.ErrorIs(t, wrapped, cause)

	assert.Nil(t, Wrap(CodeConflict, nil, "reserve").Unwrap())
}

func TestIsMatchesByCode(t *testing.T) {
	err := fmt.Errorf("checkout: %w", New(CodeNotFound, "product missing"))

	assert.True(t, stdErrors.Is(err, New(CodeNotFound, "")))
	assert.False(t, stdErrors.Is(err, New(CodeConflict, "")))
	assert.True(t, IsCode(err, CodeNotFound))
	assert.False(t, IsCode(stdErrors.New("plain"), CodeInternal))
}

func TestAsReturnsOutermostTypedError(t *testing.T) {
	inner := New(CodeConflict, "inner")
	outer := Wrap(CodeInternal, inner, "outer")

	got := As(fmt.Errorf("ctx: %w", outer))
	require.NotNil(t, got)
	assert.Equal(t, CodeInternal, got.Code())
	assert.Nil(t, As(nil))
}

func TestInsufficientStockCarriesShortage(t *testing.T) {
	err := InsufficientStock(StockShortage{ProductID: "p-1", WarehouseID: "w-1", Requested: 3, Available: 2})
	assert.Equal(t, CodeConflict, err.Code())

	shortage, ok := Shortage(Wrap(CodeInternal, err, "checkout").Unwrap())
	require.True(t, ok)
	assert.Equal(t, int64(3), shortage.Requested)
	assert.Equal(t, int64(2), shortage.Available)

	_, ok = Shortage(New(CodeConflict, "other"))
	assert.False(t, ok)
}

func TestDomainConstructorsCarryCodes(t *testing.T) {
	assert.True(t, IsCode(OrderAlreadyCancelled("o-1"), CodeStateConflict))
	assert.True(t, IsCode(InvalidMode("identity required"), CodeValidation))
}

func TestDiagnosePgxError(t *testing.T) {
	pgErr := &pgconn.PgError{Code: "23505", ConstraintName: "payments_transaction_id_key", TableName: "payments"}
	err := Wrap(CodeConflict, fmt.Errorf("insert payment: %w", pgErr), "confirm")

	d := Diagnose(err)
	assert.Equal(t, CodeConflict, d.Code)
	assert.Equal(t, "23505", d.SQLState)
	assert.Equal(t, "unique_violation", d.Condition)
	assert.Equal(t, "payments", d.Table)
	assert.Len(t, d.Chain, 3)

	fields := d.Fields()
	assert.Equal(t, "payments_transaction_id_key", fields["pg_constraint"])
	assert.NotContains(t, fields, "pg_detail")
}

func TestDiagnoseLibPQError(t *testing.T) {
	d := Diagnose(&pq.Error{Code: "40P01", Table: "stock_levels"})
	assert.Equal(t, "deadlock_detected", d.Condition)
	assert.Empty(t, d.Code)
	assert.Equal(t, Diagnostics{}, Diagnose(nil))
}
