package lvs

import "testing"

func TestParseSimpleRule(t *testing.T) {
	f, err := Parse(`#platform: "ndn"/"blog"`)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	if len(f.Rules) != 1 {
		t.Fatalf("got %d rules, want 1", len(f.Rules))
	}
	r := f.Rules[0]
	if r.Name != "platform" {
		t.Fatalf("rule name = %q, want platform", r.Name)
	}
	if len(r.Pattern) != 2 || r.Pattern[0].Literal != "ndn" || r.Pattern[1].Literal != "blog" {
		t.Fatalf("unexpected pattern: %+v", r.Pattern)
	}
}

func TestParseConstraintsAndSigning(t *testing.T) {
	src := `#admin: #platform/_role/adminID/#KEY & {_role: "admin"} <= #root`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	r := f.Rules[0]
	if len(r.ConsSets) != 1 {
		t.Fatalf("got %d constraint sets, want 1", len(r.ConsSets))
	}
	set := r.ConsSets[0]
	if len(set) != 1 || set[0].Tag != "_role" {
		t.Fatalf("unexpected constraint set: %+v", set)
	}
	if len(r.SigningList) != 1 || r.SigningList[0] != "root" {
		t.Fatalf("unexpected signing list: %+v", r.SigningList)
	}
}

func TestParseDisjunctiveConstraintOptions(t *testing.T) {
	src := `#user: #platform/_role/ID/#KEY & {_role: "reader"|"author", ID: $isValidID()} <= #admin`
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	r := f.Rules[0]
	if len(r.ConsSets) != 1 {
		t.Fatalf("got %d constraint sets, want 1", len(r.ConsSets))
	}
	set := r.ConsSets[0]
	if len(set) != 2 {
		t.Fatalf("got %d constraint terms, want 2", len(set))
	}
	if len(set[0].Options) != 2 {
		t.Fatalf("got %d options on _role, want 2 (reader|author)", len(set[0].Options))
	}
	if set[1].Options[0].Kind != ConsOptFn || set[1].Options[0].FnName != "isValidID" {
		t.Fatalf("unexpected ID constraint: %+v", set[1].Options[0])
	}
}

func TestParseMissingColonSyntaxError(t *testing.T) {
	if _, err := Parse(`#a "x"`); err == nil {
		t.Fatalf("expected syntax error for missing ':'")
	}
}

func TestParseAllCollectsMultipleErrors(t *testing.T) {
	src := "#a \"x\"\n#b: \"y\"\n#c \"z\""
	_, err := ParseAll(src)
	if err == nil {
		t.Fatalf("expected aggregated syntax errors")
	}
	se, ok := err.(*SyntaxError)
	if !ok {
		t.Fatalf("got %T, want *SyntaxError", err)
	}
	if se.Kind() != KindSyntax {
		t.Fatalf("Kind() = %v, want KindSyntax", se.Kind())
	}
}
