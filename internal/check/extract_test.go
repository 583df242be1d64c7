package check

import (
	"strings"
	"testing"

	"surge/internal/session"
)

func TestExtractJSON_SimpleField(t *testing.T) {
	body := []byte(`{"name": "test", "id": 123}`)
	rules := map[string]string{
		"name": "$.name",
	}

	attrs, err := ExtractJSON(body, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs["name"] != "test" {
		t.Errorf("expected 'test', got %v", attrs["name"])
	}
}

func TestExtractJSON_NestedField(t *testing.T) {
	body := []byte(`{"auth": {"token": "abc123", "expires": 3600}}`)
	rules := map[string]string{
		"token": "$.auth.token",
	}

	attrs, err := ExtractJSON(body, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs["token"] != "abc123" {
		t.Errorf("expected 'abc123', got %v", attrs["token"])
	}
}

func TestExtractJSON_ArrayIndex(t *testing.T) {
	body := []byte(`{"items": [{"id": 1}, {"id": 2}, {"id": 3}]}`)
	rules := map[string]string{
		"first_id":  "$.items[0].id",
		"second_id": "$.items[1].id",
	}

	attrs, err := ExtractJSON(body, rules)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs["first_id"] != float64(1) {
		t.Errorf("expected 1, got %v", attrs["first_id"])
	}
	if attrs["second_id"] != float64(2) {
		t.Errorf("expected 2, got %v", attrs["second_id"])
	}
}

func TestExtractJSON_MissingPath(t *testing.T) {
	body := []byte(`{"name": "test"}`)
	rules := map[string]string{
		"token": "$.auth.token",
	}

	_, err := ExtractJSON(body, rules)
	if err == nil {
		t.Fatal("expected error for missing path")
	}
	if !strings.Contains(err.Error(), "token") {
		t.Errorf("error should name the attribute: %v", err)
	}
}

func TestExtractJSON_InvalidJSON(t *testing.T) {
	_, err := ExtractJSON([]byte(`{not json`), map[string]string{"a": "$.a"})
	if err == nil {
		t.Fatal("expected error for invalid JSON")
	}
}

func TestExtractJSON_NoRules(t *testing.T) {
	attrs, err := ExtractJSON([]byte(`{}`), nil)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if attrs != nil {
		t.Errorf("expected nil attrs, got %v", attrs)
	}
}

func TestSave_SetsAttributes(t *testing.T) {
	s := session.New("scn", 1)
	body := []byte(`{"auth": {"token": "abc123"}}`)

	s, err := Save(s, body, map[string]string{"token": "$.auth.token"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := session.MustAttribute[string](s, "token"); got != "abc123" {
		t.Errorf("expected 'abc123', got %q", got)
	}
	if s.Status() != session.Passed {
		t.Errorf("expected passed status, got %v", s.Status())
	}
}

func TestSave_FailureMarksSession(t *testing.T) {
	s := session.New("scn", 1)

	s, err := Save(s, []byte(`{}`), map[string]string{"token": "$.auth.token"})
	if err == nil {
		t.Fatal("expected error")
	}
	if s.Status() != session.Failed {
		t.Errorf("expected failed status, got %v", s.Status())
	}
	if s.Contains("token") {
		t.Error("partial extraction results must be discarded")
	}
}

func TestConvertJSONPath(t *testing.T) {
	cases := map[string]string{
		"$.foo.bar":    "foo.bar",
		"$.items[0]":   "items.0",
		"$.data[*].id": "data.#.id",
		"foo":          "foo",
	}
	for in, want := range cases {
		if got := convertJSONPath(in); got != want {
			t.Errorf("convertJSONPath(%q) = %q, want %q", in, got, want)
		}
	}
}
