package pagination

import (
	"encoding/base64"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/cloo-solutions/amm/internal/domain"
)

// Cursor represents a decoded pagination cursor
type Cursor struct {
	TurnID    int
	Timestamp time.Time
}

// Position converts the cursor into a history position
func (c *Cursor) Position() *domain.HistoryPosition {
	if c == nil {
		return nil
	}
	return &domain.HistoryPosition{Timestamp: c.Timestamp, TurnID: c.TurnID}
}

// PageResult represents a paginated result set
type PageResult[T any] struct {
	Items   []T    `json:"items"`
	Cursor  string `json:"cursor,omitempty"`
	HasMore bool   `json:"has_more"`
}

var (
	ErrInvalidCursor = errors.New("invalid cursor format")
)

// EncodeCursor creates a url-safe cursor from a history position
func EncodeCursor(pos domain.HistoryPosition) string {
	if pos.TurnID < 1 {
		return ""
	}
	raw := strconv.Itoa(pos.TurnID) + "|" + pos.Timestamp.UTC().Format(time.RFC3339Nano)
	return base64.RawURLEncoding.EncodeToString([]byte(raw))
}

// DecodeCursor decodes a cursor. An empty cursor decodes to nil.
func DecodeCursor(cursor string) (*Cursor, error) {
	if cursor == "" {
		return nil, nil
	}

	decoded, err := base64.RawURLEncoding.DecodeString(cursor)
	if err != nil {
		return nil, ErrInvalidCursor
	}

	parts := strings.SplitN(string(decoded), "|", 2)
	if len(parts) != 2 {
		return nil, ErrInvalidCursor
	}

	turnID, err := strconv.Atoi(parts[0])
	if err != nil || turnID < 1 {
		return nil, ErrInvalidCursor
	}

	timestamp, err := time.Parse(time.RFC3339Nano, parts[1])
	if err != nil {
		return nil, ErrInvalidCursor
	}

	return &Cursor{
		TurnID:    turnID,
		Timestamp: timestamp.UTC(),
	}, nil
}

// NewPage builds a page from up to limit+1 fetched items. The extra item
// only signals that more exist and is dropped.
func NewPage[T any](items []T, limit int, position func(T) domain.HistoryPosition) PageResult[T] {
	page := PageResult[T]{Items: items}
	if page.Items == nil {
		page.Items = []T{}
	}
	if limit <= 0 || len(items) <= limit {
		return page
	}

	page.Items = items[:limit]
	page.HasMore = true
	page.Cursor = EncodeCursor(position(page.Items[limit-1]))
	return page
}
