package pagination

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
)

const (
	// DefaultPageSize defines the fallback number of items returned when the client omits pageSize.
	DefaultPageSize = 50
	// DefaultMaxPageSize caps the supported pageSize to prevent unbounded queries.
	DefaultMaxPageSize = 100
)

var (
	// ErrInvalidPageSize indicates a non-numeric or out-of-range pageSize value.
	ErrInvalidPageSize = errors.New("pagination: invalid pageSize")
	// ErrInvalidPageToken indicates an unparsable page token.
	ErrInvalidPageToken = errors.New("pagination: invalid pageToken")
)

// Params bundles keyset pagination values extracted from a request.
type Params struct {
	PageSize  int
	PageToken string
	Cursor    Cursor
}

// ParseOption customises parsing behaviour.
type ParseOption func(*parseConfig)

type parseConfig struct {
	defaultPageSize int
	maxPageSize     int
}

// WithDefaultPageSize overrides the page size applied when the client omits one.
func WithDefaultPageSize(size int) ParseOption {
	return func(cfg *parseConfig) {
		if size > 0 {
			cfg.defaultPageSize = size
		}
	}
}

// WithMaxPageSize overrides the upper bound enforced on client-supplied page sizes.
func WithMaxPageSize(size int) ParseOption {
	return func(cfg *parseConfig) {
		if size > 0 {
			cfg.maxPageSize = size
		}
	}
}

// ParseParams extracts pageSize and pageToken from the request query string.
func ParseParams(r *http.Request, opts ...ParseOption) (Params, error) {
	cfg := parseConfig{
		defaultPageSize: DefaultPageSize,
		maxPageSize:     DefaultMaxPageSize,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(&cfg)
		}
	}

	params := Params{PageSize: cfg.defaultPageSize}
	if r == nil {
		return params, nil
	}
	query := r.URL.Query()

	if raw := strings.TrimSpace(query.Get("pageSize")); raw != "" {
		size, err := strconv.Atoi(raw)
		if err != nil || size <= 0 {
			return Params{}, fmt.Errorf("%w: %q", ErrInvalidPageSize, raw)
		}
		if size > cfg.maxPageSize {
			size = cfg.maxPageSize
		}
		params.PageSize = size
	}

	if token := strings.TrimSpace(query.Get("pageToken")); token != "" {
		cursor, err := DecodeToken(token)
		if err != nil {
			return Params{}, err
		}
		params.PageToken = token
		params.Cursor = cursor
	}

	return params, nil
}
