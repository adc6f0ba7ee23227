// Package pagination implements keyset paging over rows ordered by an
// increasing integer id, such as the event outbox.
package pagination

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
)

var ErrInvalidToken = errors.New("invalid_page_token")

type Pagination struct {
	PageToken string `form:"page_token"`
	PageSize  int    `form:"page_size"`
}

// Size clamps the requested page size to (0, max], falling back to def.
func (p Pagination) Size(def, max int) int {
	switch {
	case p.PageSize <= 0:
		return def
	case p.PageSize > max:
		return max
	}
	return p.PageSize
}

// Cursor resumes a listing after AfterID. Filter pins the token to the
// query it came from so it cannot be replayed against another filter.
type Cursor struct {
	AfterID int64  `json:"after_id"`
	Filter  string `json:"filter,omitempty"`
}

type PageInfo struct {
	NextPageToken string `json:"next_page_token,omitempty"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(c Cursor) string {
	b, _ := json.Marshal(c)
	return base64.RawURLEncoding.EncodeToString(b)
}

// DecodeCursor parses token and checks it was issued for filter.
func DecodeCursor(token, filter string) (Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(strings.TrimSpace(token))
	if err != nil {
		return Cursor{}, ErrInvalidToken
	}
	var c Cursor
	if err := json.Unmarshal(b, &c); err != nil {
		return Cursor{}, ErrInvalidToken
	}
	if c.AfterID <= 0 || c.Filter != filter {
		return Cursor{}, ErrInvalidToken
	}
	return c, nil
}

// Page trims rows fetched with limit size+1 down to size and builds the
// token for the next page from the last row kept.
func Page[T any](rows []*T, size int, filter string, idOf func(*T) int64) ([]*T, PageInfo) {
	if len(rows) <= size {
		return rows, PageInfo{}
	}
	rows = rows[:size]
	return rows, PageInfo{
		HasMore:       true,
		NextPageToken: EncodeCursor(Cursor{AfterID: idOf(rows[len(rows)-1]), Filter: filter}),
	}
}
