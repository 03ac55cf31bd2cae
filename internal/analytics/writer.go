package analytics

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	gax "github.com/googleapis/gax-go/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// TableInserter is the slice of the BigQuery client the writer needs.
type TableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

type WriterConfig struct {
	Table       string
	MaxAttempts int
	Backoff     gax.Backoff
}

// Writer streams commerce event rows into one table. Every row carries its
// event id as the insert id, so a retried insert is deduplicated by BigQuery.
type Writer struct {
	client   TableInserter
	table    string
	schema   cbigquery.Schema
	attempts int
	backoff  gax.Backoff
}

func NewWriter(client TableInserter, cfg WriterConfig) (*Writer, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.Table)
	if table == "" {
		return nil, errors.New("events table is required")
	}
	w := &Writer{
		client:   client,
		table:    table,
		schema:   EventsSchema(),
		attempts: cfg.MaxAttempts,
		backoff:  cfg.Backoff,
	}
	if w.attempts <= 0 {
		w.attempts = 3
	}
	if w.backoff.Initial <= 0 {
		w.backoff.Initial = 250 * time.Millisecond
	}
	if w.backoff.Max < w.backoff.Initial {
		w.backoff.Max = max(2*time.Second, w.backoff.Initial)
	}
	if w.backoff.Multiplier < 1 {
		w.backoff.Multiplier = 2
	}
	return w, nil
}

// Insert writes rows, retrying transient failures.
func (w *Writer) Insert(ctx context.Context, rows ...CommerceEventRow) error {
	if len(rows) == 0 {
		return nil
	}
	savers := make([]any, len(rows))
	for i := range rows {
		savers[i] = &cbigquery.StructSaver{Schema: w.schema, Struct: &rows[i], InsertID: rows[i].EventID}
	}

	// copy so concurrent inserts do not share backoff state
	backoff := w.backoff
	for attempt := 1; ; attempt++ {
		err := w.client.InsertRows(ctx, w.table, savers)
		if err == nil {
			return nil
		}
		if attempt >= w.attempts || !transient(err) {
			return fmt.Errorf("insert %d rows into %s (attempt %d): %w", len(rows), w.table, attempt, err)
		}
		if err := gax.Sleep(ctx, backoff.Pause()); err != nil {
			return err
		}
	}
}

var retryableHTTP = map[int]bool{
	http.StatusRequestTimeout:      true,
	http.StatusTooManyRequests:     true,
	http.StatusInternalServerError: true,
	http.StatusBadGateway:          true,
	http.StatusServiceUnavailable:  true,
	http.StatusGatewayTimeout:      true,
}

var retryableGRPC = map[codes.Code]bool{
	codes.Aborted:           true,
	codes.DeadlineExceeded:  true,
	codes.Internal:          true,
	codes.ResourceExhausted: true,
	codes.Unavailable:       true,
}

// transient reports whether err is worth retrying. Multi-row errors are
// transient only when every row failed transiently.
func transient(err error) bool {
	var multi cbigquery.MultiError
	if errors.As(err, &multi) {
		return allTransient(multi)
	}
	var rowErrs cbigquery.PutMultiError
	if errors.As(err, &rowErrs) {
		var inner []error
		for _, rowErr := range rowErrs {
			inner = append(inner, rowErr.Errors...)
		}
		return allTransient(inner)
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTP[apiErr.Code]
	}
	if st, ok := status.FromError(err); ok && st.Code() != codes.Unknown {
		return retryableGRPC[st.Code()]
	}
	return false
}

func allTransient(errs []error) bool {
	if len(errs) == 0 {
		return false
	}
	for _, err := range errs {
		if err == nil || !transient(err) {
			return false
		}
	}
	return true
}

// EncodeJSON serializes payload for a BigQuery JSON column. Raw bytes pass
// through untouched and empty input is NULL.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	var raw []byte
	switch v := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case json.RawMessage:
		raw = v
	case []byte:
		raw = v
	default:
		b, err := json.Marshal(payload)
		if err != nil {
			return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
		}
		raw = b
	}
	if len(raw) == 0 {
		return cbigquery.NullJSON{}, nil
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(raw)}, nil
}
