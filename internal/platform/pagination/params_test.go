package pagination

import (
	"errors"
	"net/http/httptest"
	"testing"
)

func TestParseParamsDefaults(t *testing.T) {
	req := httptest.NewRequest("GET", "/products", nil)

	params, err := ParseParams(req)
	if err != nil {
		t.Fatalf("ParseParams returned error: %v", err)
	}
	if params.PageSize != DefaultPageSize {
		t.Fatalf("PageSize = %d, want %d", params.PageSize, DefaultPageSize)
	}
	if params.PageToken != "" || params.Cursor.LastID != 0 {
		t.Fatalf("unexpected cursor: %+v", params)
	}
}

func TestParseParamsClampsPageSize(t *testing.T) {
	req := httptest.NewRequest("GET", "/products?pageSize=5000", nil)

	params, err := ParseParams(req)
	if err != nil {
		t.Fatalf("ParseParams returned error: %v", err)
	}
	if params.PageSize != DefaultMaxPageSize {
		t.Fatalf("PageSize = %d, want clamp to %d", params.PageSize, DefaultMaxPageSize)
	}
}

func TestParseParamsRejectsInvalidPageSize(t *testing.T) {
	for _, raw := range []string{"abc", "0", "-3"} {
		req := httptest.NewRequest("GET", "/products?pageSize="+raw, nil)
		if _, err := ParseParams(req); !errors.Is(err, ErrInvalidPageSize) {
			t.Fatalf("pageSize %q: expected ErrInvalidPageSize, got %v", raw, err)
		}
	}
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := EncodeToken(Cursor{LastID: 42})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token == "" {
		t.Fatal("expected non-empty token")
	}

	req := httptest.NewRequest("GET", "/products?pageToken="+token, nil)
	params, err := ParseParams(req)
	if err != nil {
		t.Fatalf("ParseParams returned error: %v", err)
	}
	if params.Cursor.LastID != 42 {
		t.Fatalf("Cursor.LastID = %d, want 42", params.Cursor.LastID)
	}
}

func TestEncodeTokenEmptyCursor(t *testing.T) {
	token, err := EncodeToken(Cursor{})
	if err != nil {
		t.Fatalf("EncodeToken returned error: %v", err)
	}
	if token != "" {
		t.Fatalf("expected empty token for zero cursor, got %q", token)
	}
}

func TestParseParamsRejectsGarbageToken(t *testing.T) {
	req := httptest.NewRequest("GET", "/products?pageToken=%21%21not-base64%21%21", nil)
	if _, err := ParseParams(req); !errors.Is(err, ErrInvalidPageToken) {
		t.Fatalf("expected ErrInvalidPageToken, got %v", err)
	}
}
