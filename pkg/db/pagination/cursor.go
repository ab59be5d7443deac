package pagination

import (
	"encoding/base64"
	"encoding/json"
)

// Cursor marks the last row of a keyset page.
type Cursor struct {
	ID        string `json:"id,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
}

type CursorPageInfo struct {
	NextPageToken string `json:"next_page_token"`
	HasMore       bool   `json:"has_more"`
}

func EncodeCursor(data Cursor) (string, error) {
	b, err := json.Marshal(data)
	if err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func DecodeCursor(data string) (*Cursor, error) {
	b, err := base64.RawURLEncoding.DecodeString(data)
	if err != nil {
		return nil, err
	}

	var cursor Cursor
	if err := json.Unmarshal(b, &cursor); err != nil {
		return nil, err
	}
	return &cursor, nil
}

// TrimCursorPage expects limit+1 rows and returns the visible rows with their page info.
func TrimCursorPage[T any](data []*T, limit int, extractCursor func(*T) string) ([]*T, CursorPageInfo) {
	if len(data) <= limit || limit <= 0 {
		return data, CursorPageInfo{}
	}
	data = data[:limit]
	return data, CursorPageInfo{
		HasMore:       true,
		NextPageToken: extractCursor(data[len(data)-1]),
	}
}
