package lvs

// ValueEdge consumes exactly one component equal to Value (byte+type).
type ValueEdge struct {
	Dest  int
	Value Component
}

// PatternEdge consumes one component c such that CNF is satisfied with c
// tentatively bound to PatternId; on success the binding is committed.
type PatternEdge struct {
	Dest      int
	PatternId PatternId
	CNF       CNF
}

// Node is one vertex of the compiled name-pattern tree. NodeId equals
// its index into Model.Nodes (I1). Parent/HasParent back the load-time
// tree-structure sanity check (I3); RuleNames is diagnostic only.
type Node struct {
	NodeId       int
	RuleNames    []string
	ValueEdges   []ValueEdge
	PatternEdges []PatternEdge
	SigningRefs  []int

	Parent    int
	HasParent bool

	// patEdgeByDigest is the tree builder's dedup fast path for
	// placePattern: it maps a (patternId, CNF) digest to the indices into
	// PatternEdges sharing that digest, so a node with many pattern edges
	// doesn't need an O(n) CNF.Equal scan per incoming chain. Not part of
	// the wire format; nil on any Model that didn't come from BuildTree
	// (e.g. Decode). placePattern looks existing edges up only through
	// this index, so on a node whose index is nil it finds none.
	patEdgeByDigest map[uint64][]int
}

// UserFn is the shape of a host-supplied predicate: given the matched
// component and its resolved arguments, report whether the Fn
// constraint holds.
type UserFn func(matched Component, args []ResolvedArg) bool

// ResolvedArg is a Fn constraint argument after resolution against the
// current binding: either a literal value, or a pattern reference that
// is Bound (with its Value) or left unresolved (Bound == false).
type ResolvedArg struct {
	Bound bool
	Value Component
}

// Model is the compiled, immutable name-pattern graph produced by
// Compile or Decode. Per spec.md §3 Lifecycle, a Model is never mutated
// after compilation except for UserFns, which may be populated any time
// before the first Match/Check/Suggest call.
type Model struct {
	Version         uint32
	StartId         int
	NamedPatternCnt uint32
	Nodes           []*Node
	TagSymbols      map[PatternId]string

	// UserFns is the mutable host predicate table referenced by Fn
	// constraints, per spec.md §6 ("Model.userFns ... mutable before
	// first use").
	UserFns map[string]UserFn
}

// NewModel returns an empty model with a single root node (id 0).
func NewModel() *Model {
	root := &Node{NodeId: 0}
	return &Model{
		StartId:    0,
		Nodes:      []*Node{root},
		TagSymbols: map[PatternId]string{},
		UserFns:    map[string]UserFn{},
	}
}

// SetUserFn registers or replaces the predicate named name.
func (m *Model) SetUserFn(name string, fn UserFn) {
	if m.UserFns == nil {
		m.UserFns = map[string]UserFn{}
	}
	m.UserFns[name] = fn
}

func (m *Model) newNode() *Node {
	n := &Node{NodeId: len(m.Nodes)}
	m.Nodes = append(m.Nodes, n)
	return n
}

// treeBuilder merges Chains into a single rooted Model, per spec.md §4.4.
type treeBuilder struct {
	model *Model
}

func newTreeBuilder() *treeBuilder {
	return &treeBuilder{model: NewModel()}
}

// placeValue walks from node, following or creating a ValueEdge for value,
// and returns the destination node.
func (tb *treeBuilder) placeValue(node *Node, value Component, ruleName string) *Node {
	for _, e := range node.ValueEdges {
		if ComponentEqual(e.Value, value) {
			return tb.model.Nodes[e.Dest]
		}
	}
	dst := tb.model.newNode()
	dst.Parent = node.NodeId
	dst.HasParent = true
	if ruleName != "" {
		dst.RuleNames = append(dst.RuleNames, ruleName)
	}
	node.ValueEdges = append(node.ValueEdges, ValueEdge{Dest: dst.NodeId, Value: value})
	return dst
}

// placePattern walks from node, following or creating a PatternEdge for
// (patternId, cnf). Structural identity, per spec.md §4.4, is
// (kind, patternId, canonical CNF): a differing CNF on the same
// patternId forks a new edge rather than merging: two rules that put the
// same named pattern at the same position but disagree on its constraint
// must never collapse into one edge -- that would conjoin
// mutually-exclusive requirements.
func (tb *treeBuilder) placePattern(node *Node, p PatternId, cnf CNF, ruleName string) *Node {
	key := patternEdgeDigest(p, cnf)
	for _, i := range node.patEdgeByDigest[key] {
		e := &node.PatternEdges[i]
		if e.PatternId == p && e.CNF.Equal(cnf) {
			dst := tb.model.Nodes[e.Dest]
			if ruleName != "" {
				dst.RuleNames = appendUnique(dst.RuleNames, ruleName)
			}
			return dst
		}
	}
	dst := tb.model.newNode()
	dst.Parent = node.NodeId
	dst.HasParent = true
	if ruleName != "" {
		dst.RuleNames = append(dst.RuleNames, ruleName)
	}
	idx := len(node.PatternEdges)
	node.PatternEdges = append(node.PatternEdges, PatternEdge{Dest: dst.NodeId, PatternId: p, CNF: cnf})
	if node.patEdgeByDigest == nil {
		node.patEdgeByDigest = map[uint64][]int{}
	}
	node.patEdgeByDigest[key] = append(node.patEdgeByDigest[key], idx)
	return dst
}

// patternEdgeDigest combines a patternId with its CNF's structural digest
// (pattern.go's CNF.digest, a non-cryptographic xxhash over the
// canonicalized CNF) into the dedup fast-path key for placePattern. A
// collision only means two edges share a bucket to linear-scan within,
// which the CNF.Equal check above resolves exactly -- the digest is
// never the sole arbiter of equality.
func patternEdgeDigest(p PatternId, cnf CNF) uint64 {
	return cnf.digest()*1099511628211 ^ uint64(p)
}

func appendUnique(ss []string, s string) []string {
	for _, x := range ss {
		if x == s {
			return ss
		}
	}
	return append(ss, s)
}

// AddChain merges one Chain into the tree and returns its terminal node.
func (tb *treeBuilder) AddChain(c Chain) *Node {
	node := tb.model.Nodes[tb.model.StartId]
	for _, e := range c.Edges {
		if e.IsValue {
			node = tb.placeValue(node, e.Value, e.SourceIdent)
		} else {
			node = tb.placePattern(node, e.PatternId, e.CNF, e.SourceIdent)
		}
	}
	return node
}

// BuildTree merges every chain produced by the chain expander into one
// Model, attaches signing references to chain terminal nodes, and
// resolves rule-name signing references to concrete node ids. namedCnt
// is NamedPatternCnt for the resulting Model.
//
// chainsByRule maps each rule name to the ordered list of terminal node
// ids its own chains produced; this is exactly what a signing reference
// to that rule name expands to (spec.md §4.4: "a reference to rule R
// means the set of terminal nodes of every chain produced from R").
func BuildTree(chains []Chain, namedCnt uint32) (*Model, []string, error) {
	tb := newTreeBuilder()
	tb.model.NamedPatternCnt = namedCnt

	chainsByRule := map[string][]int{}
	var unresolved []pendingSigningRef

	for _, c := range chains {
		terminal := tb.AddChain(c)
		chainsByRule[c.RuleName] = append(chainsByRule[c.RuleName], terminal.NodeId)
		for _, ref := range c.SigningRuleNames {
			unresolved = append(unresolved, pendingSigningRef{node: terminal, ruleName: ref})
		}
	}

	var errs []error
	for _, pr := range unresolved {
		ids, ok := chainsByRule[pr.ruleName]
		if !ok {
			errs = append(errs, errorf(KindSemantic,
				"signing reference to unknown rule %q", pr.ruleName))
			continue
		}
		for _, id := range ids {
			pr.node.SigningRefs = appendUniqueInt(pr.node.SigningRefs, id)
		}
	}
	if len(errs) > 0 {
		return nil, nil, newSemanticError(errs...)
	}

	order := make([]string, 0, len(chainsByRule))
	seen := map[string]bool{}
	for _, c := range chains {
		if !seen[c.RuleName] {
			seen[c.RuleName] = true
			order = append(order, c.RuleName)
		}
	}
	return tb.model, order, nil
}

type pendingSigningRef struct {
	node     *Node
	ruleName string
}

func appendUniqueInt(xs []int, x int) []int {
	for _, v := range xs {
		if v == x {
			return xs
		}
	}
	return append(xs, x)
}
