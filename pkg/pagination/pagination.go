package pagination

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	DefaultLimit = 25
	MaxLimit     = 100
)

var ErrInvalidCursor = errors.New("invalid cursor")

// Params is what list endpoints accept: a page size and the opaque cursor
// returned with the previous page.
type Params struct {
	Limit  int
	Cursor string
}

// Decode parses the cursor; an empty cursor yields nil.
func (p Params) Decode() (*Cursor, error) {
	return ParseCursor(p.Cursor)
}

// Cursor is the (created_at, id) key of the last row a client has seen.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// String encodes the cursor as base64url("<unix nanos>:<uuid>").
func (c Cursor) String() string {
	raw := strconv.FormatInt(c.CreatedAt.UnixNano(), 10) + ":" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

func ParseCursor(value string) (*Cursor, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(value)
	if err != nil {
		return nil, fmt.Errorf("%w: not base64url", ErrInvalidCursor)
	}
	nanos, id, ok := strings.Cut(string(decoded), ":")
	if !ok {
		return nil, fmt.Errorf("%w: missing separator", ErrInvalidCursor)
	}
	n, err := strconv.ParseInt(nanos, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("%w: bad timestamp", ErrInvalidCursor)
	}
	parsedID, err := uuid.Parse(id)
	if err != nil {
		return nil, fmt.Errorf("%w: bad id", ErrInvalidCursor)
	}
	return &Cursor{CreatedAt: time.Unix(0, n).UTC(), ID: parsedID}, nil
}

type Page[T any] struct {
	Items      []T
	NextCursor string
}

func NormalizeLimit(limit int) int {
	switch {
	case limit <= 0:
		return DefaultLimit
	case limit > MaxLimit:
		return MaxLimit
	}
	return limit
}

// Keyset returns a scope listing newest first by (created_at, id), starting
// after the cursor. It over-fetches by one row so Build can tell whether a
// next page exists. table qualifies the columns when the query joins.
func Keyset(params Params, table string) (func(*gorm.DB) *gorm.DB, error) {
	cursor, err := params.Decode()
	if err != nil {
		return nil, err
	}
	createdAt, id := "created_at", "id"
	if table != "" {
		createdAt, id = table+".created_at", table+".id"
	}
	limit := NormalizeLimit(params.Limit) + 1
	return func(tx *gorm.DB) *gorm.DB {
		if cursor != nil {
			tx = tx.Where("("+createdAt+", "+id+") < (?, ?)", cursor.CreatedAt, cursor.ID)
		}
		return tx.Order(createdAt + " DESC").Order(id + " DESC").Limit(limit)
	}, nil
}

// Build drops the over-fetched row and points NextCursor at the last row kept.
func Build[T any](rows []T, limit int, key func(T) Cursor) Page[T] {
	limit = NormalizeLimit(limit)
	if len(rows) <= limit {
		return Page[T]{Items: rows}
	}
	items := rows[:limit]
	return Page[T]{Items: items, NextCursor: key(items[limit-1]).String()}
}
