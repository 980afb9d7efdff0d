package filter

import "testing"

type fakeRecord map[string]interface{}

func (f fakeRecord) Field(name string) (interface{}, bool) {
	v, ok := f[name]
	return v, ok
}

func TestParseEmptyIsNilNode(t *testing.T) {
	n, err := Parse("")
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if n != nil {
		t.Fatalf("expected nil node for empty filter, got %#v", n)
	}
}

func TestParseFilterCondition(t *testing.T) {
	n, err := Parse(`{"mimeType":"image/jpeg"}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	fc, ok := n.(FilterCondition)
	if !ok {
		t.Fatalf("expected FilterCondition, got %T", n)
	}
	c, ok := fc.Fields["mimeType"]
	if !ok {
		t.Fatalf("missing mimeType field")
	}
	if c.Exact != "image/jpeg" {
		t.Errorf("Exact = %v, want image/jpeg", c.Exact)
	}
}

func TestParseLogicalFilter(t *testing.T) {
	n, err := Parse(`{"operation":"and","conditions":[{"mimeType":"image/jpeg"},{"rating":{"min":3}}]}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lf, ok := n.(LogicalFilter)
	if !ok {
		t.Fatalf("expected LogicalFilter, got %T", n)
	}
	if lf.Operation != "and" || len(lf.Conditions) != 2 {
		t.Fatalf("unexpected LogicalFilter shape: %#v", lf)
	}
}

func TestMatchAndOr(t *testing.T) {
	rec := fakeRecord{"mimeType": "image/jpeg", "rating": 4}

	and, err := Parse(`{"operation":"and","conditions":[{"mimeType":"image/jpeg"},{"rating":{"min":3}}]}`)
	if err != nil {
		t.Fatalf("Parse and: %v", err)
	}
	ok, err := Match(and, rec)
	if err != nil {
		t.Fatalf("Match and: %v", err)
	}
	if !ok {
		t.Error("expected and-filter to match")
	}

	or, err := Parse(`{"operation":"or","conditions":[{"mimeType":"video/mp4"},{"rating":{"min":3}}]}`)
	if err != nil {
		t.Fatalf("Parse or: %v", err)
	}
	ok, err = Match(or, rec)
	if err != nil {
		t.Fatalf("Match or: %v", err)
	}
	if !ok {
		t.Error("expected or-filter to match via second condition")
	}
}

func TestMatchFolderRecursive(t *testing.T) {
	c := Constraint{IsFolderForm: true, Folder: strPtr("/a/"), Recursive: true}
	n := FilterCondition{Fields: map[string]Constraint{"folder": c}}

	if ok, _ := Match(n, fakeRecord{"folder": "/a/"}); !ok {
		t.Error("expected exact folder match")
	}
	if ok, _ := Match(n, fakeRecord{"folder": "/a/b/"}); !ok {
		t.Error("expected descendant folder match when recursive")
	}
	if ok, _ := Match(n, fakeRecord{"folder": "/other/"}); ok {
		t.Error("unrelated folder should not match")
	}

	c.Recursive = false
	n = FilterCondition{Fields: map[string]Constraint{"folder": c}}
	if ok, _ := Match(n, fakeRecord{"folder": "/a/b/"}); ok {
		t.Error("non-recursive folder filter should not match descendants")
	}
}

func TestMatchNullConstraint(t *testing.T) {
	n, err := Parse(`{"dateTaken":null}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ok, _ := Match(n, fakeRecord{}); !ok {
		t.Error("absent field should satisfy null constraint")
	}
	if ok, _ := Match(n, fakeRecord{"dateTaken": "2020-01-01"}); ok {
		t.Error("present field should fail null constraint")
	}
}

func TestMatchGlobAndRegex(t *testing.T) {
	globNode, err := Parse(`{"fileName":{"glob":"*.jpg"}}`)
	if err != nil {
		t.Fatalf("Parse glob: %v", err)
	}
	if ok, err := Match(globNode, fakeRecord{"fileName": "photo.jpg"}); err != nil || !ok {
		t.Errorf("expected glob match, ok=%v err=%v", ok, err)
	}
	if ok, err := Match(globNode, fakeRecord{"fileName": "photo.png"}); err != nil || ok {
		t.Errorf("expected glob non-match, ok=%v err=%v", ok, err)
	}

	regexNode, err := Parse(`{"cameraMake":{"regex":"^Canon"}}`)
	if err != nil {
		t.Fatalf("Parse regex: %v", err)
	}
	if ok, err := Match(regexNode, fakeRecord{"cameraMake": "Canon EOS"}); err != nil || !ok {
		t.Errorf("expected regex match, ok=%v err=%v", ok, err)
	}
}

func TestMatchDirectChildOfAndRootOnly(t *testing.T) {
	dc, err := Parse(`{"folderPath":{"directChildOf":"/a/"}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ok, _ := Match(dc, fakeRecord{"folderPath": "/a/b"}); !ok {
		t.Error("expected direct child to match")
	}
	if ok, _ := Match(dc, fakeRecord{"folderPath": "/a/b/c"}); ok {
		t.Error("grandchild should not match directChildOf")
	}

	root, err := Parse(`{"fileName":{"rootOnly":true}}`)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if ok, _ := Match(root, fakeRecord{"fileName": "a.jpg"}); !ok {
		t.Error("expected rootOnly to match path with no slash")
	}
	if ok, _ := Match(root, fakeRecord{"fileName": "a/b.jpg"}); ok {
		t.Error("rootOnly should reject a path containing a slash")
	}
}

func strPtr(s string) *string { return &s }
