package gateway

import "testing"

func TestStripMarkdownFence(t *testing.T) {
	cases := map[string]string{
		"```json\n{\"a\":1}\n```": `{"a":1}`,
		"```\n{\"a\":1}\n```":     `{"a":1}`,
		`{"a":1}`:                 `{"a":1}`,
		"  {\"a\":1}  ":           `{"a":1}`,
	}
	for in, want := range cases {
		if got := stripMarkdownFence(in); got != want {
			t.Fatalf("stripMarkdownFence(%q): want=%q got=%q", in, want, got)
		}
	}
}

func TestNewRequiresAPIKey(t *testing.T) {
	_, err := New(Config{}, nil)
	if err == nil {
		t.Fatalf("New: expected error for missing api key")
	}
}
