package lvs

import (
	"sort"

	"github.com/cespare/xxhash"
)

// PatternId identifies a pattern variable. Within a compiled Model the
// range [1, Model.NamedPatternCnt] is named patterns; values above that
// are temporary patterns, one per textual occurrence of "_".
type PatternId uint32

// ConstraintKind distinguishes the three Constraint shapes from spec.md §3.
type ConstraintKind uint8

const (
	ConstraintVal ConstraintKind = iota
	ConstraintVar
	ConstraintFn
)

// Arg is one resolved or unresolved argument to a Fn constraint: either a
// literal value or a reference to another pattern.
type Arg struct {
	IsPattern bool
	Value     Component // set when !IsPattern
	Pattern   PatternId // set when IsPattern
}

// Constraint is one ConstraintOption: Val(c), Var(p) or Fn(name, args),
// per spec.md §3.
type Constraint struct {
	Kind ConstraintKind

	Value Component // ConstraintVal
	Var   PatternId // ConstraintVar

	FnName string // ConstraintFn
	FnArgs []Arg  // ConstraintFn
}

// ValConstraint builds a Val(c) constraint.
func ValConstraint(c Component) Constraint { return Constraint{Kind: ConstraintVal, Value: c} }

// VarConstraint builds a Var(p) constraint.
func VarConstraint(p PatternId) Constraint { return Constraint{Kind: ConstraintVar, Var: p} }

// FnConstraint builds a Fn(name, args) constraint.
func FnConstraint(name string, args []Arg) Constraint {
	return Constraint{Kind: ConstraintFn, FnName: name, FnArgs: args}
}

// AndTerm is a non-empty set of ConstraintOptions interpreted
// disjunctively (an OR of options, i.e. one AND-term of the CNF).
type AndTerm []Constraint

// CNF is an ordered list of AndTerms interpreted conjunctively. An empty
// CNF is trivially satisfied, per spec.md §3.
type CNF []AndTerm

// canonicalKey returns a stable sort key for a single Constraint so that
// canonicalization (sorting options within a term, and terms within a
// CNF) is deterministic regardless of source order.
func (c Constraint) canonicalKey() string {
	switch c.Kind {
	case ConstraintVal:
		return "V:" + itoa(c.Value.Type()) + ":" + string(c.Value.Bytes())
	case ConstraintVar:
		return "P:" + itoa(uint64(c.Var))
	case ConstraintFn:
		s := "F:" + c.FnName + "("
		for _, a := range c.FnArgs {
			if a.IsPattern {
				s += "p" + itoa(uint64(a.Pattern)) + ","
			} else {
				s += "v" + itoa(uint64(a.Value.Type())) + ":" + string(a.Value.Bytes()) + ","
			}
		}
		return s + ")"
	}
	return ""
}

func itoa(v uint64) string {
	if v == 0 {
		return "0"
	}
	var buf [20]byte
	i := len(buf)
	for v > 0 {
		i--
		buf[i] = byte('0' + v%10)
		v /= 10
	}
	return string(buf[i:])
}

// Canonicalize returns a copy of the CNF with options sorted within each
// AndTerm and AndTerms sorted amongst themselves, per spec.md §4.4
// ("Identity comparison for CNF is syntactic after canonicalization").
func (cnf CNF) Canonicalize() CNF {
	out := make(CNF, len(cnf))
	termKeys := make([]string, len(cnf))
	for i, term := range cnf {
		t := make(AndTerm, len(term))
		copy(t, term)
		sort.Slice(t, func(a, b int) bool { return t[a].canonicalKey() < t[b].canonicalKey() })
		out[i] = t
		key := ""
		for _, c := range t {
			key += c.canonicalKey() + "|"
		}
		termKeys[i] = key
	}
	sort.SliceStable(out, func(a, b int) bool { return termKeys[a] < termKeys[b] })
	return out
}

// digest returns a non-cryptographic structural hash of the canonical
// CNF, used only as a fast-path dedup key in the tree builder (tree.go).
// A hash collision always falls back to an exact structural comparison;
// this never changes which edges compare equal, only how fast equal ones
// are found (see DESIGN.md / SPEC_FULL.md §9).
func (cnf CNF) digest() uint64 {
	h := xxhash.New()
	for _, term := range cnf.Canonicalize() {
		for _, c := range term {
			_, _ = h.Write([]byte(c.canonicalKey()))
			_, _ = h.Write([]byte{';'})
		}
		_, _ = h.Write([]byte{'|'})
	}
	return h.Sum64()
}

// Equal reports whether two CNFs are syntactically identical after
// canonicalization.
func (cnf CNF) Equal(other CNF) bool {
	a, b := cnf.Canonicalize(), other.Canonicalize()
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if len(a[i]) != len(b[i]) {
			return false
		}
		for j := range a[i] {
			if a[i][j].canonicalKey() != b[i][j].canonicalKey() {
				return false
			}
		}
	}
	return true
}
