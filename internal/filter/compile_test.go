package filter

import (
	"strings"
	"testing"
)

func TestCompileNilIsAlwaysTrue(t *testing.T) {
	p, err := Compile(nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if p.Where != "1=1" || len(p.Args) != 0 {
		t.Fatalf("unexpected plan for nil node: %+v", p)
	}
}

func TestCompileExactAndRange(t *testing.T) {
	n, err := Parse(`{"operation":"and","conditions":[{"mimeType":"image/jpeg"},{"rating":{"min":3,"max":5}}]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	p, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(p.Where, "mime_type = ?") {
		t.Errorf("expected mime_type equality clause, got %q", p.Where)
	}
	if !strings.Contains(p.Where, "rating >= ?") || !strings.Contains(p.Where, "rating <= ?") {
		t.Errorf("expected rating range clause, got %q", p.Where)
	}
	if len(p.Args) != 3 {
		t.Errorf("Args = %v, want 3 positional values", p.Args)
	}
}

func TestCompileEmptyLogicalShortCircuits(t *testing.T) {
	and, err := Compile(LogicalFilter{Operation: "and"})
	if err != nil {
		t.Fatalf("Compile and: %v", err)
	}
	if and.Where != "1=1" {
		t.Errorf("empty AND should be 1=1, got %q", and.Where)
	}

	or, err := Compile(LogicalFilter{Operation: "or"})
	if err != nil {
		t.Fatalf("Compile or: %v", err)
	}
	if or.Where != "1=0" {
		t.Errorf("empty OR should be 1=0, got %q", or.Where)
	}
}

func TestCompileFolderRecursive(t *testing.T) {
	folder := "/a/"
	c := Constraint{IsFolderForm: true, Folder: &folder, Recursive: true}
	p := compileFolder(c)
	if !strings.Contains(p.Where, "LIKE ?") {
		t.Errorf("recursive folder filter should use LIKE, got %q", p.Where)
	}
	if len(p.Args) != 2 {
		t.Errorf("expected 2 args (exact + prefix), got %v", p.Args)
	}
}

func TestCompileUnknownFieldErrors(t *testing.T) {
	n := FilterCondition{Fields: map[string]Constraint{"notAField": {Exact: "x"}}}
	if _, err := Compile(n); err == nil {
		t.Fatal("expected error for unknown field")
	}
}

func TestCompileRegexDefersToAlwaysTrue(t *testing.T) {
	regex := "^Canon"
	n := FilterCondition{Fields: map[string]Constraint{"cameraMake": {Regex: &regex}}}
	p, err := Compile(n)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !strings.Contains(p.Where, "1=1") {
		t.Errorf("regex constraint should lower to an always-true SQL clause refined in memory, got %q", p.Where)
	}
}

func TestLiteralPrefix(t *testing.T) {
	cases := map[string]string{
		"*.jpg":     "",
		"img_*.jpg": "img_",
		"plain":     "plain",
	}
	for pattern, want := range cases {
		if got := literalPrefix(pattern); got != want {
			t.Errorf("literalPrefix(%q) = %q, want %q", pattern, got, want)
		}
	}
}
