package shared

import (
	"encoding/base64"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

// ErrInvalidCursor indicates a malformed pagination cursor
var ErrInvalidCursor = errors.New("invalid pagination cursor")

// Cursor identifies a position in a (created_at DESC, id DESC) ordered listing.
// It is serialized opaquely so callers never depend on its layout.
type Cursor struct {
	CreatedAt time.Time
	ID        uuid.UUID
}

// Encode serializes the cursor for use as a query parameter.
func (c Cursor) Encode() string {
	raw := c.CreatedAt.UTC().Format(time.RFC3339Nano) + "|" + c.ID.String()
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor parses a cursor produced by Encode. An empty string decodes to
// a nil cursor, meaning "start from the newest row".
func DecodeCursor(s string) (*Cursor, error) {
	if s == "" {
		return nil, nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(s)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(raw), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	createdAt, err := time.Parse(time.RFC3339Nano, parts[0])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	id, err := uuid.Parse(parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{CreatedAt: createdAt, ID: id}, nil
}

// Page bundles a listing result with the cursor for the next page.
// NextCursor is empty when no more rows exist.
type Page[T any] struct {
	Data       []T    `json:"data"`
	NextCursor string `json:"next_cursor,omitempty"`
}

// NewPage builds a Page from rows fetched with limit take+1. The extra row,
// when present, only signals that another page exists; it is not returned.
func NewPage[T any](rows []T, take int, cursorOf func(T) Cursor) Page[T] {
	page := Page[T]{Data: rows}
	if len(rows) > take {
		page.Data = rows[:take]
		page.NextCursor = cursorOf(page.Data[take-1]).Encode()
	}
	if page.Data == nil {
		page.Data = []T{}
	}
	return page
}
