package revision

import "testing"

func TestParseBaseForms(t *testing.T) {
	cases := []struct {
		expr string
		base string
		nOps int
	}{
		{"master", "master", 0},
		{"a5b8b09e2f8fcb0bb99d3ccb0958157b40890d69", "a5b8b09e2f8fcb0bb99d3ccb0958157b40890d69", 0},
		{"refs/heads/master", "refs/heads/master", 0},
		{"HEAD^", "HEAD", 1},
		{"HEAD~3", "HEAD", 1},
		{":README.md", "", 1},
		{"HEAD:docs/readme.md", "HEAD", 1},
	}

	for _, c := range cases {
		e, err := Parse(c.expr)
		if err != nil {
			t.Fatalf("Parse(%q): %v", c.expr, err)
		}
		if e.Base != c.base {
			t.Errorf("Parse(%q).Base = %q, want %q", c.expr, e.Base, c.base)
		}
		if len(e.Ops) != c.nOps {
			t.Errorf("Parse(%q).Ops has %d entries, want %d", c.expr, len(e.Ops), c.nOps)
		}
	}
}

func TestParseCaretForms(t *testing.T) {
	e, err := Parse("HEAD^2")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 1 || e.Ops[0].Kind != OpParentN || e.Ops[0].N != 2 {
		t.Fatalf("HEAD^2 parsed as %+v", e.Ops)
	}

	e, err = Parse("HEAD^")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 1 || e.Ops[0].Kind != OpParentN || e.Ops[0].N != 1 {
		t.Fatalf("HEAD^ parsed as %+v", e.Ops)
	}

	e, err = Parse("HEAD^{}")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 1 || e.Ops[0].Kind != OpPeelNonTag {
		t.Fatalf("HEAD^{} parsed as %+v", e.Ops)
	}

	e, err = Parse("v1.0^{commit}")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 1 || e.Ops[0].Kind != OpPeelKind || e.Ops[0].Type != "commit" {
		t.Fatalf("v1.0^{commit} parsed as %+v", e.Ops)
	}
}

func TestParseMultipleSuffixes(t *testing.T) {
	e, err := Parse("HEAD~2^{tree}")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 2 {
		t.Fatalf("expected 2 ops, got %+v", e.Ops)
	}
	if e.Ops[0].Kind != OpAncestorN || e.Ops[0].N != 2 {
		t.Errorf("first op = %+v", e.Ops[0])
	}
	if e.Ops[1].Kind != OpPeelKind || e.Ops[1].Type != "tree" {
		t.Errorf("second op = %+v", e.Ops[1])
	}
}

func TestParseReflogForms(t *testing.T) {
	e, err := Parse("master@{2}")
	if err != nil {
		t.Fatal(err)
	}
	if e.Base != "master" || len(e.Ops) != 1 || e.Ops[0].Kind != OpReflogIndex || e.Ops[0].N != 2 {
		t.Fatalf("master@{2} parsed as base=%q ops=%+v", e.Base, e.Ops)
	}

	e, err = Parse("@{2023-01-01}")
	if err != nil {
		t.Fatal(err)
	}
	if e.Base != "" || len(e.Ops) != 1 || e.Ops[0].Kind != OpReflogDate || e.Ops[0].Date != "2023-01-01" {
		t.Fatalf("@{2023-01-01} parsed as base=%q ops=%+v", e.Base, e.Ops)
	}
}

func TestParsePathUsesRestOfInput(t *testing.T) {
	e, err := Parse("HEAD:a/b/c.go")
	if err != nil {
		t.Fatal(err)
	}
	if len(e.Ops) != 1 || e.Ops[0].Kind != OpPath || e.Ops[0].Path != "a/b/c.go" {
		t.Fatalf("parsed as %+v", e.Ops)
	}
}
