package validators

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/google/uuid"

	pkgerrors "github.com/angelmondragon/commerce-core/pkg/errors"
)

// Query reads typed query parameters and collects every bad one so a single
// VALIDATION_ERROR can report all of them.
type Query struct {
	values url.Values
	issues map[string]string
}

func NewQuery(r *http.Request) *Query {
	return &Query{values: r.URL.Query()}
}

func (q *Query) String(key string) string {
	return strings.TrimSpace(q.values.Get(key))
}

// Int returns def when the parameter is absent.
func (q *Query) Int(key string, def, min, max int) int {
	raw := q.String(key)
	if raw == "" {
		return def
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		q.reject(key, "must be numeric")
		return def
	}
	if value < min || value > max {
		q.reject(key, "must be between "+strconv.Itoa(min)+" and "+strconv.Itoa(max))
		return def
	}
	return value
}

// UUID returns nil when the parameter is absent or malformed.
func (q *Query) UUID(key string) *uuid.UUID {
	raw := q.String(key)
	if raw == "" {
		return nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		q.reject(key, "must be a UUID")
		return nil
	}
	return &id
}

func (q *Query) reject(key, msg string) {
	if q.issues == nil {
		q.issues = map[string]string{}
	}
	q.issues[key] = msg
}

func (q *Query) Err() error {
	if len(q.issues) == 0 {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeValidation, "invalid query parameters").WithDetails(q.issues)
}
