package pagination

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// Cursor records where the previous page stopped. Catalog listings paginate
// by id, so the cursor is just the last id the client saw.
type Cursor struct {
	LastID int64 `json:"lastId,omitempty"`
}

// EncodeToken wraps the cursor in an opaque URL-safe token. A zero cursor
// encodes to the empty string, meaning there is no next page.
func EncodeToken(cursor Cursor) (string, error) {
	if cursor.LastID == 0 {
		return "", nil
	}
	data, err := json.Marshal(cursor)
	if err != nil {
		return "", fmt.Errorf("pagination: encode token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(data), nil
}

// DecodeToken reverses EncodeToken. Anything that did not come out of
// EncodeToken fails with ErrInvalidPageToken.
func DecodeToken(token string) (Cursor, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return Cursor{}, nil
	}
	decoded, err := base64.RawURLEncoding.DecodeString(token)
	if err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	var cursor Cursor
	if err := json.Unmarshal(decoded, &cursor); err != nil {
		return Cursor{}, fmt.Errorf("%w: %v", ErrInvalidPageToken, err)
	}
	return cursor, nil
}
