package lvs

import "testing"

func mustParse(t *testing.T, src string) *File {
	t.Helper()
	f, err := Parse(src)
	if err != nil {
		t.Fatalf("Parse(): %v", err)
	}
	return f
}

func TestResolveTopologicalOrder(t *testing.T) {
	src := `#b: #a/"x"
#a: "root"
#c: #b/#a`
	f := mustParse(t, src)
	rules, _, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve(): %v", err)
	}
	pos := map[string]int{}
	for i, r := range rules {
		pos[r.Name] = i
	}
	if pos["a"] > pos["b"] {
		t.Fatalf("#a must be resolved before #b (a=%d b=%d)", pos["a"], pos["b"])
	}
	if pos["b"] > pos["c"] || pos["a"] > pos["c"] {
		t.Fatalf("#c must come after both its dependencies")
	}
}

func TestResolveDetectsCycle(t *testing.T) {
	src := `#a: #b/"x"
#b: #a/"y"`
	f := mustParse(t, src)
	_, _, err := Resolve(f)
	if err == nil {
		t.Fatalf("expected a cyclic-reference error")
	}
	se, ok := err.(*SemanticError)
	if !ok {
		t.Fatalf("got %T, want *SemanticError", err)
	}
	if se.Kind() != KindSemantic {
		t.Fatalf("Kind() = %v, want KindSemantic", se.Kind())
	}
}

func TestResolveUnknownRuleReference(t *testing.T) {
	src := `#a: #nonexistent/"x"`
	f := mustParse(t, src)
	_, _, err := Resolve(f)
	if err == nil {
		t.Fatalf("expected an unknown-rule error")
	}
}

func TestResolvePatternIdAllocation(t *testing.T) {
	// Named patterns get stable ids reused across rules; "_"-prefixed
	// identifiers each get a fresh id per occurrence (spec.md §3/§4.2).
	src := `#author: "ndn"/_role/ID/"KEY" & {_role: "author", ID: $isValidID()}
#user: "ndn"/_role/ID/"KEY" & {_role: "reader", ID: $isValidID()}`
	f := mustParse(t, src)
	rules, namedCnt, err := Resolve(f)
	if err != nil {
		t.Fatalf("Resolve(): %v", err)
	}
	// ID is named and shared; _role is temp and distinct per rule.
	if namedCnt != 1 {
		t.Fatalf("namedPatternCnt = %d, want 1 (only ID)", namedCnt)
	}

	idOf := func(r ResolvedRule, tag int) PatternId {
		return r.Pattern[tag].PatternId
	}
	// Pattern layout: "ndn"(0) / _role(1) / ID(2) / "KEY"(3)
	authorRole := idOf(rules[0], 1)
	userRole := idOf(rules[1], 1)
	if authorRole == userRole {
		t.Fatalf("distinct _role occurrences must not share a pattern id")
	}
	authorID := idOf(rules[0], 2)
	userID := idOf(rules[1], 2)
	if authorID != userID {
		t.Fatalf("ID must resolve to the same pattern id across rules (got %d, %d)", authorID, userID)
	}
	if uint32(authorID) > namedCnt {
		t.Fatalf("named pattern id %d exceeds namedPatternCnt %d", authorID, namedCnt)
	}
	if uint32(authorRole) <= namedCnt {
		t.Fatalf("temporary pattern id %d should be above namedPatternCnt %d", authorRole, namedCnt)
	}
}
