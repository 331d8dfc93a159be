package textutil

import (
	"reflect"
	"testing"
)

func TestNormalizeStringMapTrimsCallbackParams(t *testing.T) {
	got := NormalizeStringMap(map[string]string{
		" session_id ": " cs_123 ",
		"status":       "paid ",
		"note":         "   ",
		"  ":           "dropped",
		"":             "dropped",
	})
	want := map[string]string{
		"session_id": "cs_123",
		"status":     "paid",
		"note":       "",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("NormalizeStringMap = %#v, want %#v", got, want)
	}
}

func TestNormalizeStringMapCollapsesToNil(t *testing.T) {
	if NormalizeStringMap(nil) != nil {
		t.Fatal("nil input must stay nil")
	}
	if NormalizeStringMap(map[string]string{}) != nil {
		t.Fatal("empty map must collapse to nil")
	}
	if NormalizeStringMap(map[string]string{" ": "x", "": "y"}) != nil {
		t.Fatal("map with only blank keys must collapse to nil")
	}
}
