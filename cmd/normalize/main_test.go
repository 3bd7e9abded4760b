package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestRun_Pipeline(t *testing.T) {
	dir := t.TempDir()
	path := func(name string) string { return filepath.Join(dir, name) }

	reviews := strings.Join([]string{
		`{"user_id":"u1","title":"Logitech M185 Wireless Mouse","rating":5}`,
		`{"user_id":"u1","title":"Dell UltraSharp 27\" Monitor","rating":4}`,
		`{"user_id":"u2","title":"Logitech M185 Wireless Mouse","rating":3}`,
		`{"user_id":"u2","title":"Dell UltraSharp 27\" Monitor","rating":2}`,
		`{"user_id":"u3","title":"lonely gadget","rating":1}`,
		`not json`,
	}, "\n")
	if err := os.WriteFile(path("reviews.jsonl"), []byte(reviews), 0o644); err != nil {
		t.Fatal(err)
	}

	steps := [][]string{
		{"aggregate", "-in", path("reviews.jsonl"), "-out", path("users.jsonl")},
		{"simplify", "-in", path("users.jsonl"), "-out", path("simplified.jsonl"), "-unknown", path("unknown.jsonl")},
		{"clean", "-in", path("simplified.jsonl"), "-out", path("cleaned.jsonl")},
		{"filter", "-in", path("cleaned.jsonl"), "-out", path("ratings.jsonl")},
	}
	for _, args := range steps {
		if err := run(context.Background(), args); err != nil {
			t.Fatalf("%s: %v", args[0], err)
		}
	}

	got, err := os.ReadFile(path("ratings.jsonl"))
	if err != nil {
		t.Fatal(err)
	}
	lines := strings.Split(strings.TrimSpace(string(got)), "\n")
	if len(lines) != 2 {
		t.Fatalf("ratings = %q", got)
	}
	for _, want := range []string{"Logitech mouse", "Dell 27inch monitor"} {
		if !strings.Contains(lines[0], want) {
			t.Errorf("line %q missing %q", lines[0], want)
		}
	}
}

func TestRun_Errors(t *testing.T) {
	dir := t.TempDir()
	in := filepath.Join(dir, "in.jsonl")
	if err := os.WriteFile(in, nil, 0o644); err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		args []string
	}{
		{"no command", nil},
		{"missing out", []string{"clean", "-in", in}},
		{"unknown command", []string{"shuffle", "-in", in, "-out", filepath.Join(dir, "out")}},
		{"missing input", []string{"clean", "-in", filepath.Join(dir, "nope"), "-out", filepath.Join(dir, "out")}},
		{"bad flag", []string{"filter", "-min-users", "x"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := run(context.Background(), tt.args); err == nil {
				t.Error("expected error")
			}
		})
	}
}
