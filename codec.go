package lvs

import (
	"fmt"
	"io"
	"sort"
)

// Encode serializes m to the binary format of spec.md §6: Version,
// StartId, NamedPatternCnt, then every Node, then every TagSymbol, all as
// top-level TLV elements with no enclosing wrapper.
func Encode(m *Model) []byte {
	var out []byte
	out = append(out, encodeUint(ttVersion, uint64(m.Version))...)
	out = append(out, encodeUint(ttId, uint64(m.StartId))...)
	out = append(out, encodeUint(ttNamedPatternCnt, uint64(m.NamedPatternCnt))...)
	for _, n := range m.Nodes {
		out = append(out, encodeNode(n)...)
	}
	for _, sym := range sortedTagSymbols(m.TagSymbols) {
		inner := append(encodeUint(ttTag, uint64(sym.id)), encodeTLV(ttRuleName, []byte(sym.name))...)
		out = append(out, encodeTLV(ttTagSymbol, inner)...)
	}
	return out
}

// EncodeTo writes Encode(m) to w.
func EncodeTo(w io.Writer, m *Model) error {
	_, err := w.Write(Encode(m))
	return err
}

type tagSymbolEntry struct {
	id   PatternId
	name string
}

func sortedTagSymbols(m map[PatternId]string) []tagSymbolEntry {
	out := make([]tagSymbolEntry, 0, len(m))
	for id, name := range m {
		out = append(out, tagSymbolEntry{id, name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].id < out[j].id })
	return out
}

func encodeNode(n *Node) []byte {
	var inner []byte
	inner = append(inner, encodeUint(ttId, uint64(n.NodeId))...)
	if n.HasParent {
		inner = append(inner, encodeUint(ttId, uint64(n.Parent))...)
	}
	for _, rn := range n.RuleNames {
		inner = append(inner, encodeTLV(ttRuleName, []byte(rn))...)
	}
	for _, ve := range n.ValueEdges {
		inner = append(inner, encodeValueEdge(ve)...)
	}
	for _, pe := range n.PatternEdges {
		inner = append(inner, encodePatternEdge(pe)...)
	}
	for _, sr := range n.SigningRefs {
		inner = append(inner, encodeUint(ttSignRef, uint64(sr))...)
	}
	return encodeTLV(ttNode, inner)
}

func encodeValueEdge(ve ValueEdge) []byte {
	inner := append(encodeUint(ttId, uint64(ve.Dest)), encodeTLV(ttValue, componentTLV(ve.Value))...)
	return encodeTLV(ttValueEdge, inner)
}

func encodePatternEdge(pe PatternEdge) []byte {
	inner := append(encodeUint(ttId, uint64(pe.Dest)), encodeUint(ttTag, uint64(pe.PatternId))...)
	for _, term := range pe.CNF {
		var termBytes []byte
		for _, opt := range term {
			termBytes = append(termBytes, encodeConstraintOption(opt)...)
		}
		inner = append(inner, encodeTLV(ttConstraint, termBytes)...)
	}
	return encodeTLV(ttPatternEdge, inner)
}

func encodeConstraintOption(c Constraint) []byte {
	var inner []byte
	switch c.Kind {
	case ConstraintVal:
		inner = encodeTLV(ttValue, componentTLV(c.Value))
	case ConstraintVar:
		inner = encodeUint(ttTag, uint64(c.Var))
	case ConstraintFn:
		fnInner := encodeTLV(ttFnId, []byte(c.FnName))
		for _, a := range c.FnArgs {
			var argInner []byte
			if a.IsPattern {
				argInner = encodeUint(ttTag, uint64(a.Pattern))
			} else {
				argInner = encodeTLV(ttValue, componentTLV(a.Value))
			}
			fnInner = append(fnInner, encodeTLV(ttUserFnArg, argInner)...)
		}
		inner = encodeTLV(ttUserFnCall, fnInner)
	}
	return encodeTLV(ttConstraintOpt, inner)
}

// recognizedVersions lists the model versions this build knows how to
// read, mirroring the teacher's params.go version registry but kept to a
// single entry until the wire format changes.
var recognizedVersions = map[uint32]bool{CurrentVersion: true}

// Decode parses buf into a Model and verifies I1-I4 and the parent
// back-reference check from spec.md §3/§4.7 (P1). Any violation is
// reported as a single *ModelError aggregating every problem found.
func Decode(buf []byte) (*Model, error) {
	d := &decoder{buf: buf}
	return d.decode()
}

// DecodeFrom reads all of r and decodes it.
func DecodeFrom(r io.Reader) (*Model, error) {
	buf, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	return Decode(buf)
}

type decoder struct {
	buf  []byte
	errs []error
}

func (d *decoder) fail(format string, a ...interface{}) {
	d.errs = append(d.errs, fmt.Errorf(format, a...))
}

// expect reads forward from pos, skipping any unrecognized non-critical
// (even-typed) TLVs, until it finds one of type want or a critical
// mismatch/end of input, per spec.md §4.5.
func (d *decoder) expect(buf []byte, pos int, want TLVType) (tlvElem, int, bool) {
	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			return tlvElem{}, len(buf), false
		}
		if e.typ != want {
			if !isCritical(e.typ) {
				pos = e.end
				continue
			}
			d.fail("expected TLV type %#x, got unrecognized critical type %#x", want, e.typ)
			return tlvElem{}, e.end, false
		}
		return e, e.end, true
	}
	d.fail("expected TLV type %#x, got end of input", want)
	return tlvElem{}, pos, false
}

func (d *decoder) decode() (*Model, error) {
	m := &Model{TagSymbols: map[PatternId]string{}, UserFns: map[string]UserFn{}}

	ve, pos, ok := d.expect(d.buf, 0, ttVersion)
	if !ok {
		return nil, newModelError(d.errs...)
	}
	v, err := decodeUint(ve.val)
	if err != nil {
		d.fail("version: %s", err)
		return nil, newModelError(d.errs...)
	}
	m.Version = uint32(v)
	if !recognizedVersions[m.Version] {
		d.fail("unrecognized model version %#x", m.Version)
		return nil, newModelError(d.errs...)
	}

	se, pos, ok := d.expect(d.buf, pos, ttId)
	if !ok {
		return nil, newModelError(d.errs...)
	}
	sv, err := decodeUint(se.val)
	if err != nil {
		d.fail("startId: %s", err)
	}
	m.StartId = int(sv)

	ne, pos, ok := d.expect(d.buf, pos, ttNamedPatternCnt)
	if !ok {
		return nil, newModelError(d.errs...)
	}
	nv, err := decodeUint(ne.val)
	if err != nil {
		d.fail("namedPatternCnt: %s", err)
	}
	m.NamedPatternCnt = uint32(nv)

	for pos < len(d.buf) {
		e, err := readTLV(d.buf, pos)
		if err != nil {
			d.fail("%s", err)
			break
		}
		switch e.typ {
		case ttNode:
			n := d.decodeNode(e.val)
			m.Nodes = append(m.Nodes, n)
		case ttTagSymbol:
			id, name, ok := d.decodeTagSymbol(e.val)
			if ok {
				m.TagSymbols[id] = name
			}
		default:
			if isCritical(e.typ) {
				d.fail("unrecognized critical top-level TLV type %#x", e.typ)
			}
		}
		pos = e.end
	}

	if len(d.errs) > 0 {
		return nil, newModelError(d.errs...)
	}
	if err := checkInvariants(m); err != nil {
		return nil, err
	}
	return m, nil
}

func (d *decoder) decodeTagSymbol(buf []byte) (PatternId, string, bool) {
	te, pos, ok := d.expect(buf, 0, ttTag)
	if !ok {
		return 0, "", false
	}
	idv, err := decodeUint(te.val)
	if err != nil {
		d.fail("tagSymbol tag: %s", err)
		return 0, "", false
	}
	re, _, ok := d.expect(buf, pos, ttRuleName)
	if !ok {
		return 0, "", false
	}
	return PatternId(idv), string(re.val), true
}

func (d *decoder) decodeNode(buf []byte) *Node {
	n := &Node{}

	ie, pos, ok := d.expect(buf, 0, ttId)
	if !ok {
		return n
	}
	idv, err := decodeUint(ie.val)
	if err != nil {
		d.fail("node id: %s", err)
	}
	n.NodeId = int(idv)

	// Parent, when present, is a second ttId element immediately
	// following NodeId (they share a TLV type, distinguished positionally
	// per spec.md §6).
	if pe, err := readTLV(buf, pos); err == nil && pe.typ == ttId {
		pv, err := decodeUint(pe.val)
		if err != nil {
			d.fail("node parent: %s", err)
		}
		n.Parent = int(pv)
		n.HasParent = true
		pos = pe.end
	}

	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			break
		}
		switch e.typ {
		case ttRuleName:
			n.RuleNames = append(n.RuleNames, string(e.val))
		case ttValueEdge:
			if ve, ok := d.decodeValueEdge(e.val); ok {
				n.ValueEdges = append(n.ValueEdges, ve)
			}
		case ttPatternEdge:
			if pe, ok := d.decodePatternEdge(e.val); ok {
				n.PatternEdges = append(n.PatternEdges, pe)
			}
		case ttSignRef:
			sv, err := decodeUint(e.val)
			if err != nil {
				d.fail("signRef: %s", err)
				break
			}
			n.SigningRefs = append(n.SigningRefs, int(sv))
		default:
			if isCritical(e.typ) {
				d.fail("unrecognized critical TLV type %#x inside node %d", e.typ, n.NodeId)
			}
		}
		pos = e.end
	}
	return n
}

func (d *decoder) decodeValueEdge(buf []byte) (ValueEdge, bool) {
	de, pos, ok := d.expect(buf, 0, ttId)
	if !ok {
		return ValueEdge{}, false
	}
	dv, err := decodeUint(de.val)
	if err != nil {
		d.fail("valueEdge dest: %s", err)
		return ValueEdge{}, false
	}
	ve, _, ok := d.expect(buf, pos, ttValue)
	if !ok {
		return ValueEdge{}, false
	}
	c, err := decodeComponent(ve.val)
	if err != nil {
		d.fail("valueEdge value: %s", err)
		return ValueEdge{}, false
	}
	return ValueEdge{Dest: int(dv), Value: c}, true
}

func (d *decoder) decodePatternEdge(buf []byte) (PatternEdge, bool) {
	de, pos, ok := d.expect(buf, 0, ttId)
	if !ok {
		return PatternEdge{}, false
	}
	dv, err := decodeUint(de.val)
	if err != nil {
		d.fail("patternEdge dest: %s", err)
		return PatternEdge{}, false
	}
	te, pos, ok := d.expect(buf, pos, ttTag)
	if !ok {
		return PatternEdge{}, false
	}
	tv, err := decodeUint(te.val)
	if err != nil {
		d.fail("patternEdge patternId: %s", err)
		return PatternEdge{}, false
	}

	var cnf CNF
	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			break
		}
		if e.typ != ttConstraint {
			if isCritical(e.typ) {
				d.fail("unrecognized critical TLV type %#x inside patternEdge", e.typ)
			}
			pos = e.end
			continue
		}
		term := d.decodeAndTerm(e.val)
		cnf = append(cnf, term)
		pos = e.end
	}
	return PatternEdge{Dest: int(dv), PatternId: PatternId(tv), CNF: cnf}, true
}

func (d *decoder) decodeAndTerm(buf []byte) AndTerm {
	var term AndTerm
	pos := 0
	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			break
		}
		if e.typ != ttConstraintOpt {
			if isCritical(e.typ) {
				d.fail("unrecognized critical TLV type %#x inside constraint", e.typ)
			}
			pos = e.end
			continue
		}
		term = append(term, d.decodeConstraintOption(e.val))
		pos = e.end
	}
	return term
}

// decodeConstraintOption enforces spec.md §4.5's load-time check: "Each
// ConstraintOption has exactly one of Value/Tag/FnCall set." It scans
// every top-level element of buf, counts how many are one of the three
// recognized alternatives, and fails the decode if that count is not
// exactly one, rather than silently taking the first and dropping the
// rest.
func (d *decoder) decodeConstraintOption(buf []byte) Constraint {
	var alts []tlvElem
	pos := 0
	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			return Constraint{}
		}
		switch e.typ {
		case ttValue, ttTag, ttUserFnCall:
			alts = append(alts, e)
		default:
			if isCritical(e.typ) {
				d.fail("unrecognized critical constraint option type %#x", e.typ)
				return Constraint{}
			}
		}
		pos = e.end
	}
	if len(alts) != 1 {
		d.fail("constraint option must have exactly one of Value/Tag/FnCall set, found %d", len(alts))
		return Constraint{}
	}

	e := alts[0]
	switch e.typ {
	case ttValue:
		c, err := decodeComponent(e.val)
		if err != nil {
			d.fail("constraint value: %s", err)
			return Constraint{}
		}
		return ValConstraint(c)
	case ttTag:
		v, err := decodeUint(e.val)
		if err != nil {
			d.fail("constraint var: %s", err)
			return Constraint{}
		}
		return VarConstraint(PatternId(v))
	default: // ttUserFnCall
		return d.decodeFnCall(e.val)
	}
}

func (d *decoder) decodeFnCall(buf []byte) Constraint {
	fe, pos, ok := d.expect(buf, 0, ttFnId)
	if !ok {
		return Constraint{}
	}
	var args []Arg
	for pos < len(buf) {
		e, err := readTLV(buf, pos)
		if err != nil {
			d.fail("%s", err)
			break
		}
		if e.typ != ttUserFnArg {
			if isCritical(e.typ) {
				d.fail("unrecognized critical TLV type %#x inside fn call", e.typ)
			}
			pos = e.end
			continue
		}
		args = append(args, d.decodeFnArg(e.val))
		pos = e.end
	}
	return FnConstraint(string(fe.val), args)
}

func (d *decoder) decodeFnArg(buf []byte) Arg {
	e, err := readTLV(buf, 0)
	if err != nil {
		d.fail("%s", err)
		return Arg{}
	}
	switch e.typ {
	case ttTag:
		v, err := decodeUint(e.val)
		if err != nil {
			d.fail("fn arg pattern: %s", err)
			return Arg{}
		}
		return Arg{IsPattern: true, Pattern: PatternId(v)}
	case ttValue:
		c, err := decodeComponent(e.val)
		if err != nil {
			d.fail("fn arg value: %s", err)
			return Arg{}
		}
		return Arg{Value: c}
	default:
		if isCritical(e.typ) {
			d.fail("unrecognized critical fn arg type %#x", e.typ)
		}
		return Arg{}
	}
}

// checkInvariants verifies I1-I4 (spec.md §3) plus the parent
// back-reference sanity check (spec.md §4.7, P1), aggregating every
// violation found into one *ModelError rather than stopping at the first
// (mirroring container.go's close-time validation, which reports every
// inconsistency it finds in one pass).
func checkInvariants(m *Model) error {
	var errs []error

	for i, n := range m.Nodes {
		if n.NodeId != i {
			errs = append(errs, fmt.Errorf("I1: node at index %d has nodeId %d", i, n.NodeId))
		}
	}

	valid := func(id int) bool { return id >= 0 && id < len(m.Nodes) }
	if !valid(m.StartId) {
		errs = append(errs, fmt.Errorf("I2: startId %d is not a valid node id", m.StartId))
	}

	parentOf := make(map[int]int, len(m.Nodes))
	hasParent := make(map[int]bool, len(m.Nodes))

	for _, n := range m.Nodes {
		for _, ve := range n.ValueEdges {
			if !valid(ve.Dest) {
				errs = append(errs, fmt.Errorf("I2: node %d has a value edge to invalid node %d", n.NodeId, ve.Dest))
				continue
			}
			recordParent(parentOf, hasParent, ve.Dest, n.NodeId, &errs)
		}
		for _, pe := range n.PatternEdges {
			if !valid(pe.Dest) {
				errs = append(errs, fmt.Errorf("I2: node %d has a pattern edge to invalid node %d", n.NodeId, pe.Dest))
				continue
			}
			if len(pe.CNF) == 0 {
				// An empty CNF is trivially satisfied (spec.md §3); this is
				// not itself a violation of I4, which only constrains the
				// pattern id.
			}
			if pe.PatternId == 0 {
				errs = append(errs, fmt.Errorf("I4: node %d has a pattern edge with patternId 0", n.NodeId))
			} else if uint32(pe.PatternId) <= m.NamedPatternCnt {
				// named pattern, in range; fine.
			}
			recordParent(parentOf, hasParent, pe.Dest, n.NodeId, &errs)
		}
		for _, sr := range n.SigningRefs {
			if !valid(sr) {
				errs = append(errs, fmt.Errorf("I2: node %d has a signing reference to invalid node %d", n.NodeId, sr))
			}
		}
	}

	for _, n := range m.Nodes {
		if n.NodeId == m.StartId {
			continue
		}
		if !hasParent[n.NodeId] {
			errs = append(errs, fmt.Errorf("I3: node %d is unreachable (no incoming edge)", n.NodeId))
			continue
		}
		if !n.HasParent || n.Parent != parentOf[n.NodeId] {
			errs = append(errs, fmt.Errorf("I3: node %d's recorded parent does not match its incoming edge source", n.NodeId))
		}
	}

	if len(errs) > 0 {
		return newModelError(errs...)
	}
	return nil
}

func recordParent(parentOf map[int]int, hasParent map[int]bool, dest, source int, errs *[]error) {
	if hasParent[dest] {
		*errs = append(*errs, fmt.Errorf("I3: node %d has more than one incoming edge", dest))
		return
	}
	hasParent[dest] = true
	parentOf[dest] = source
}
