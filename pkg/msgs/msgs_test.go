package msgs

import (
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestFormat(t *testing.T) {
	tests := []struct {
		key  string
		args []any
		want string
	}{
		{"command-not-found", []any{"frob"}, "frob: command not found"},
		{"event-not-found", []any{"12"}, "sh: !12: event not found"},
		{"wrong-password", nil, "wrong."},
		{"no-such-key", []any{"a", 1}, "no-such-key: a 1"},
	}
	for _, test := range tests {
		if got := Format(test.key, test.args...); got != test.want {
			t.Errorf("Format(%q, %v) = %q, want %q", test.key, test.args, got, test.want)
		}
	}
}

func TestDescribe(t *testing.T) {
	cmd, ok := Describe("sort")
	if !ok || cmd.Summary == "" || cmd.Usage != "sort [-r] [-n] [args...]" {
		t.Errorf("Describe(sort) = %+v, %v", cmd, ok)
	}
	if _, ok := Describe("nope"); ok {
		t.Errorf("Describe(nope) found")
	}
}

func TestParse(t *testing.T) {
	c, err := Parse([]byte("messages:\n  hi: \"hello %s\"\ncommands:\n  b: {summary: bee}\n  a: {summary: ay}\n"))
	if err != nil {
		t.Fatal(err)
	}
	if got := c.Format("hi", "you"); got != "hello you" {
		t.Errorf("got %q", got)
	}
	if diff := cmp.Diff([]string{"a", "b"}, c.CommandNames()); diff != "" {
		t.Errorf("(-want +got):\n%s", diff)
	}
	if _, err := Parse([]byte("messages: [")); err == nil {
		t.Errorf("want error for bad YAML")
	}
}
