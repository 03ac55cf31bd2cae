package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gax "github.com/googleapis/gax-go/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

type fakeInserter struct {
	responses []error
	tables    []string
	batches   [][]any
}

func (f *fakeInserter) InsertRows(_ context.Context, table string, rows []any) error {
	var err error
	if n := len(f.batches); n < len(f.responses) {
		err = f.responses[n]
	}
	f.tables = append(f.tables, table)
	f.batches = append(f.batches, rows)
	return err
}

func newTestWriter(t *testing.T, responses ...error) (*Writer, *fakeInserter) {
	t.Helper()
	fake := &fakeInserter{responses: responses}
	w, err := NewWriter(fake, WriterConfig{
		Table:   "commerce_events",
		Backoff: gax.Backoff{Initial: time.Millisecond, Max: time.Millisecond},
	})
	require.NoError(t, err)
	return w, fake
}

func TestNewWriterValidationAndDefaults(t *testing.T) {
	_, err := NewWriter(nil, WriterConfig{Table: "events"})
	assert.Error(t, err)
	_, err = NewWriter(&fakeInserter{}, WriterConfig{Table: " "})
	assert.Error(t, err)

	w, err := NewWriter(&fakeInserter{}, WriterConfig{Table: "events"})
	require.NoError(t, err)
	assert.Equal(t, 3, w.attempts)
	assert.Equal(t, 250*time.Millisecond, w.backoff.Initial)
	assert.Equal(t, 2*time.Second, w.backoff.Max)
	assert.Equal(t, float64(2), w.backoff.Multiplier)
}

func TestWriterTagsRowsWithInsertID(t *testing.T) {
	w, fake := newTestWriter(t)
	require.NoError(t, w.Insert(context.Background(), CommerceEventRow{EventID: "e-1"}, CommerceEventRow{EventID: "e-2"}))

	require.Len(t, fake.batches, 1)
	assert.Equal(t, "commerce_events", fake.tables[0])
	var ids []string
	for _, row := range fake.batches[0] {
		saver, ok := row.(*cbigquery.StructSaver)
		require.True(t, ok)
		assert.NotEmpty(t, saver.Schema)
		ids = append(ids, saver.InsertID)
	}
	assert.Equal(t, []string{"e-1", "e-2"}, ids)
}

func TestWriterSkipsEmptyInsert(t *testing.T) {
	w, fake := newTestWriter(t)
	require.NoError(t, w.Insert(context.Background()))
	assert.Empty(t, fake.batches)
}

func TestWriterRetriesTransientErrors(t *testing.T) {
	w, fake := newTestWriter(t, &googleapi.Error{Code: http.StatusServiceUnavailable}, nil)

	require.NoError(t, w.Insert(context.Background(), CommerceEventRow{EventID: "e-1"}))
	assert.Len(t, fake.batches, 2)
}

func TestWriterGivesUp(t *testing.T) {
	unavailable := status.Error(codes.Unavailable, "try later")
	w, fake := newTestWriter(t, unavailable, unavailable, unavailable, nil)

	err := w.Insert(context.Background(), CommerceEventRow{EventID: "e-1"})
	assert.ErrorIs(t, err, unavailable)
	assert.Contains(t, err.Error(), "attempt 3")
	assert.Len(t, fake.batches, 3)
}

func TestWriterDoesNotRetryPermanentErrors(t *testing.T) {
	w, fake := newTestWriter(t, &googleapi.Error{Code: http.StatusBadRequest})

	assert.Error(t, w.Insert(context.Background(), CommerceEventRow{EventID: "e-1"}))
	assert.Len(t, fake.batches, 1)
}

func TestWriterStopsOnCancel(t *testing.T) {
	fake := &fakeInserter{responses: []error{&googleapi.Error{Code: http.StatusTooManyRequests}}}
	w, err := NewWriter(fake, WriterConfig{Table: "t", Backoff: gax.Backoff{Initial: time.Hour, Max: time.Hour}})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	assert.ErrorIs(t, w.Insert(ctx, CommerceEventRow{EventID: "e-1"}), context.DeadlineExceeded)
}

func TestTransient(t *testing.T) {
	cases := map[string]struct {
		err  error
		want bool
	}{
		"plain":           {errors.New("boom"), false},
		"http 429":        {&googleapi.Error{Code: http.StatusTooManyRequests}, true},
		"http 404":        {&googleapi.Error{Code: http.StatusNotFound}, false},
		"wrapped grpc":    {fmt.Errorf("put: %w", status.Error(codes.ResourceExhausted, "quota")), true},
		"grpc invalid":    {status.Error(codes.InvalidArgument, "bad"), false},
		"empty multi":     {cbigquery.MultiError{}, false},
		"all rows retry":  {cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&googleapi.Error{Code: 503}}}}, true},
		"one row invalid": {cbigquery.PutMultiError{{Errors: cbigquery.MultiError{&googleapi.Error{Code: 503}}}, {Errors: cbigquery.MultiError{&googleapi.Error{Code: 400}}}}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, transient(tc.err))
		})
	}
}

func TestEncodeJSON(t *testing.T) {
	nj, err := EncodeJSON(map[string]any{"foo": "bar"})
	require.NoError(t, err)
	assert.JSONEq(t, `{"foo":"bar"}`, nj.JSONVal)
	assert.True(t, nj.Valid)

	for _, empty := range []any{nil, json.RawMessage(nil), []byte{}} {
		nj, err = EncodeJSON(empty)
		require.NoError(t, err)
		assert.False(t, nj.Valid)
	}

	nj, err = EncodeJSON(json.RawMessage(`{"foo":"baz"}`))
	require.NoError(t, err)
	assert.Equal(t, `{"foo":"baz"}`, nj.JSONVal)

	_, err = EncodeJSON(make(chan int))
	assert.Error(t, err)
}
