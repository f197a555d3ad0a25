package jsonutil

import (
	"strings"
	"testing"
)

func TestDecode(t *testing.T) {
	type info struct {
		Name string `json:"serverName"`
	}
	got, err := Decode[info]([]byte(`{"serverName":"st-01"}`))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "st-01" {
		t.Errorf("expected st-01, got %q", got.Name)
	}
}

func TestDecodeInvalidIncludesPreview(t *testing.T) {
	payload := "not json " + strings.Repeat("x", 500)
	_, err := Decode[map[string]any]([]byte(payload))
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
	if !strings.Contains(err.Error(), "not json") {
		t.Errorf("error should quote the payload, got: %v", err)
	}
	if !strings.HasSuffix(err.Error(), "...)") {
		t.Errorf("long payload should be truncated, got: %v", err)
	}
}

func TestTruncate(t *testing.T) {
	if Truncate("short", 10) != "short" {
		t.Error("short strings should be returned unchanged")
	}
	if got := Truncate("abcdefgh", 3); got != "abc..." {
		t.Errorf("expected abc..., got %q", got)
	}
}
