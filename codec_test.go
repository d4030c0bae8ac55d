package lvs

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	m := mustBuildModel(t, `#platform: "ndn"/"blog"
#KEY: "KEY"/_/_/_
#root: #platform/#KEY
#admin: #platform/_role/adminID/#KEY & {_role: "admin"} <= #root
#author: #platform/_role/ID/#KEY & {_role: "author", ID: $isValidID()} <= #admin`)

	buf := Encode(m)
	m2, err := Decode(buf)
	if err != nil {
		t.Fatalf("Decode(Encode(m)): %v", err)
	}

	if m2.Version != m.Version || m2.StartId != m.StartId || m2.NamedPatternCnt != m.NamedPatternCnt {
		t.Fatalf("header mismatch: got %+v, want version=%d start=%d named=%d",
			m2, m.Version, m.StartId, m.NamedPatternCnt)
	}
	if len(m2.Nodes) != len(m.Nodes) {
		t.Fatalf("got %d nodes, want %d", len(m2.Nodes), len(m.Nodes))
	}
	for i := range m.Nodes {
		a, b := m.Nodes[i], m2.Nodes[i]
		if len(a.ValueEdges) != len(b.ValueEdges) || len(a.PatternEdges) != len(b.PatternEdges) {
			t.Fatalf("node %d edge count mismatch: %+v vs %+v", i, a, b)
		}
		if len(a.SigningRefs) != len(b.SigningRefs) {
			t.Fatalf("node %d signing ref count mismatch: %v vs %v", i, a.SigningRefs, b.SigningRefs)
		}
	}

	// P3/behavioral equivalence: matching against the decoded model must
	// produce the same results as against the freshly compiled one.
	name := ParseURI("/ndn/blog/author/100001/KEY/1/000001/1")
	r1 := Match(m, name)
	r2 := Match(m2, name)
	if len(r1) != len(r2) {
		t.Fatalf("match result count differs after round trip: %d vs %d", len(r1), len(r2))
	}
}

func TestDecodeRejectsUnrecognizedVersion(t *testing.T) {
	m := mustBuildModel(t, `#a: "x"`)
	buf := Encode(m)
	// Corrupt the version value (first byte after its 2-byte T/L header).
	buf[2] ^= 0xff
	_, err := Decode(buf)
	if err == nil {
		t.Fatalf("expected a ModelError for an unrecognized version")
	}
	if me, ok := err.(*ModelError); !ok || me.Kind() != KindModel {
		t.Fatalf("got %T/%v, want *ModelError/KindModel", err, err)
	}
}

func TestDecodeRejectsTruncatedInput(t *testing.T) {
	m := mustBuildModel(t, `#a: "x"/"y"`)
	buf := Encode(m)
	_, err := Decode(buf[:len(buf)-2])
	if err == nil {
		t.Fatalf("expected an error decoding truncated input")
	}
}

func TestDecodeToleratesUnknownNonCriticalTLV(t *testing.T) {
	m := mustBuildModel(t, `#a: "x"`)
	buf := Encode(m)
	// Append an even-typed (non-critical) top-level TLV: type 0x62, length 1.
	extra := append([]byte{}, buf...)
	extra = append(extra, 0x62, 0x01, 0x00)
	if _, err := Decode(extra); err != nil {
		t.Fatalf("unknown non-critical TLV should be tolerated: %v", err)
	}
}

func TestDecodeRejectsUnknownCriticalTLV(t *testing.T) {
	m := mustBuildModel(t, `#a: "x"`)
	buf := Encode(m)
	// Append an odd-typed (critical) top-level TLV the codec never emits.
	extra := append([]byte{}, buf...)
	extra = append(extra, 0x71, 0x01, 0x00)
	if _, err := Decode(extra); err == nil {
		t.Fatalf("expected rejection of an unrecognized critical top-level TLV")
	}
}

// minimalModelWithConstraintOpt builds the bytes of a two-node model (a
// root with one pattern edge carrying a single CNF AndTerm containing
// optBytes as its lone ConstraintOption payload) so the malformed-option
// tests below can drive Decode's cardinality check without going through
// Compile/Encode, which never produce a malformed option themselves.
func minimalModelWithConstraintOpt(optBytes []byte) []byte {
	opt := encodeTLV(ttConstraintOpt, optBytes)
	constraint := encodeTLV(ttConstraint, opt)
	patEdgeInner := append(encodeUint(ttId, 1), encodeUint(ttTag, 1)...)
	patEdgeInner = append(patEdgeInner, constraint...)
	patEdge := encodeTLV(ttPatternEdge, patEdgeInner)

	node0 := encodeTLV(ttNode, append(encodeUint(ttId, 0), patEdge...))
	node1Inner := append(encodeUint(ttId, 1), encodeUint(ttId, 0)...) // id=1, parent=0
	node1 := encodeTLV(ttNode, node1Inner)

	var buf []byte
	buf = append(buf, encodeUint(ttVersion, uint64(CurrentVersion))...)
	buf = append(buf, encodeUint(ttId, 0)...)
	buf = append(buf, encodeUint(ttNamedPatternCnt, 1)...)
	buf = append(buf, node0...)
	buf = append(buf, node1...)
	return buf
}

// TestDecodeRejectsMalformedConstraintOptionCardinality covers spec.md
// §4.5's "Each ConstraintOption has exactly one of Value/Tag/FnCall set"
// load-time check, for both the zero-set and the two-or-more-set case.
func TestDecodeRejectsMalformedConstraintOptionCardinality(t *testing.T) {
	valueElem := encodeTLV(ttValue, componentTLV(Comp("x")))
	tagElem := encodeUint(ttTag, 1)

	cases := []struct {
		name string
		opt  []byte
	}{
		{"none", nil},
		{"two", append(append([]byte{}, valueElem...), tagElem...)},
	}
	for _, c := range cases {
		t.Run(c.name, func(t *testing.T) {
			buf := minimalModelWithConstraintOpt(c.opt)
			_, err := Decode(buf)
			if err == nil {
				t.Fatalf("expected a *ModelError for a ConstraintOption with %s of Value/Tag/FnCall set", c.name)
			}
			if _, ok := err.(*ModelError); !ok {
				t.Fatalf("got %T, want *ModelError", err)
			}
		})
	}
}
