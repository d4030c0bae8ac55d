package lvs

import "fmt"

// Binding maps a pattern id to the component it is bound to in one match
// attempt, per spec.md §3 ("binding environment").
type Binding map[PatternId]Component

func (b Binding) clone() Binding {
	out := make(Binding, len(b))
	for k, v := range b {
		out[k] = v
	}
	return out
}

// MatchResult pairs a terminal node reached by a successful match with
// the binding accumulated along the way, per spec.md §4.6.
type MatchResult struct {
	NodeId  int
	Binding Binding
}

// matcher is the depth-first backtracking traversal state for one
// match/check run. It is grounded on context.go's push-while-descending,
// pop-on-return bookkeeping style: state is mutated in place and undone
// on every return, rather than threaded as an immutable value.
type matcher struct {
	model   *Model
	name    Name
	strict  bool
	binding Binding
	yield   func(MatchResult) bool
	stop    bool
	predErr error
}

func newMatcher(m *Model, name Name, initial Binding, strict bool, yield func(MatchResult) bool) *matcher {
	b := make(Binding, len(initial))
	for k, v := range initial {
		b[k] = v
	}
	return &matcher{model: m, name: name, strict: strict, binding: b, yield: yield}
}

func (mx *matcher) run(nodeId, depth int) {
	if mx.stop {
		return
	}
	if depth == mx.name.Len() {
		if !mx.yield(MatchResult{NodeId: nodeId, Binding: mx.binding.clone()}) {
			mx.stop = true
		}
		return
	}

	node := mx.model.Nodes[nodeId]
	comp := mx.name.At(depth)
	log.Logf("match: at node %d depth %d, component %q", nodeId, depth, string(comp.Bytes()))

	for _, ve := range node.ValueEdges {
		if mx.stop {
			return
		}
		if ComponentEqual(ve.Value, comp) {
			log.Logf("match: node %d takes value edge -> %d", nodeId, ve.Dest)
			mx.run(ve.Dest, depth+1)
		}
	}
	for _, pe := range node.PatternEdges {
		if mx.stop {
			return
		}
		mx.tryPatternEdge(pe, comp, depth)
	}
}

// tryPatternEdge implements spec.md §4.6's pattern-edge rule, including
// the shadowing detail from the same section: re-binding a named pattern
// id along the path only succeeds if the new component equals the one
// already bound.
func (mx *matcher) tryPatternEdge(pe PatternEdge, comp Component, depth int) {
	if existing, already := mx.binding[pe.PatternId]; already {
		if !ComponentEqual(existing, comp) {
			log.Logf("match: depth %d, shadowed pattern %d rejects %q (bound to %q)",
				depth, pe.PatternId, string(comp.Bytes()), string(existing.Bytes()))
			return
		}
		ok, err := mx.evalCNF(pe.CNF, pe.PatternId, comp)
		if err != nil {
			mx.predErr = err
			mx.stop = true
			return
		}
		if ok {
			log.Logf("match: depth %d, shadowed pattern %d re-takes edge -> %d", depth, pe.PatternId, pe.Dest)
			mx.run(pe.Dest, depth+1)
		}
		return
	}

	mx.binding[pe.PatternId] = comp
	ok, err := mx.evalCNF(pe.CNF, pe.PatternId, comp)
	if err != nil {
		delete(mx.binding, pe.PatternId)
		mx.predErr = err
		mx.stop = true
		return
	}
	if ok {
		log.Logf("match: depth %d, bind pattern %d -> %q, edge -> %d", depth, pe.PatternId, string(comp.Bytes()), pe.Dest)
		mx.run(pe.Dest, depth+1)
	} else {
		log.Logf("match: depth %d, pattern %d rejects %q", depth, pe.PatternId, string(comp.Bytes()))
	}
	delete(mx.binding, pe.PatternId)
}

// evalCNF reports whether every AND-term of cnf has a holding option,
// under the binding tentatively extended with tentativeId -> tentativeVal.
func (mx *matcher) evalCNF(cnf CNF, tentativeId PatternId, tentativeVal Component) (bool, error) {
	for _, term := range cnf {
		held := false
		for _, opt := range term {
			h, err := mx.evalOption(opt, tentativeId, tentativeVal)
			if err != nil {
				return false, err
			}
			if h {
				held = true
				break
			}
		}
		if !held {
			return false, nil
		}
	}
	return true, nil
}

func (mx *matcher) evalOption(opt Constraint, tentativeId PatternId, tentativeVal Component) (bool, error) {
	switch opt.Kind {
	case ConstraintVal:
		return ComponentEqual(opt.Value, tentativeVal), nil
	case ConstraintVar:
		if opt.Var == tentativeId {
			// Redundant self-check under the tentative binding, per
			// spec.md §4.6 ("the check is always true").
			return true, nil
		}
		v, ok := mx.binding[opt.Var]
		if !ok {
			return false, nil
		}
		return ComponentEqual(v, tentativeVal), nil
	case ConstraintFn:
		return mx.evalFn(opt, tentativeVal)
	}
	return false, nil
}

// evalFn resolves Fn arguments against the current binding and invokes
// the host predicate. An unregistered predicate name consistently fails
// the option rather than erroring, per spec.md §4.7's failure-mode
// requirement ("must either cause the edge to fail... or abort with a
// distinct error; it must be consistent") -- this package always fails
// the edge, see SPEC_FULL.md §7 for the full rationale. A predicate that
// panics is recovered: under Match it is treated the same way (option
// does not hold); under MatchStrict the panic is wrapped as a
// PredicateError and aborts the whole traversal.
func (mx *matcher) evalFn(opt Constraint, tentativeVal Component) (bool, error) {
	fn, ok := mx.model.UserFns[opt.FnName]
	if !ok {
		return false, nil
	}

	args := make([]ResolvedArg, len(opt.FnArgs))
	for i, a := range opt.FnArgs {
		if a.IsPattern {
			if v, bound := mx.binding[a.Pattern]; bound {
				args[i] = ResolvedArg{Bound: true, Value: v}
			}
		} else {
			args[i] = ResolvedArg{Bound: true, Value: a.Value}
		}
	}

	var held bool
	var panicVal interface{}
	func() {
		defer func() { panicVal = recover() }()
		held = fn(tentativeVal, args)
	}()
	if panicVal == nil {
		return held, nil
	}
	if !mx.strict {
		return false, nil
	}
	return false, &PredicateError{wrapErrorf(KindPredicate,
		fmt.Errorf("%v", panicVal), "user function %q panicked", opt.FnName)}
}

// MatchFunc runs the backtracking traversal of spec.md §4.6 over name,
// starting from initial (nil for an empty environment), and calls yield
// for every (terminalNodeId, binding) pair it finds. yield returning
// false stops the traversal early, leaving later matches unvisited.
func MatchFunc(m *Model, name Name, initial Binding, yield func(MatchResult) bool) {
	mx := newMatcher(m, name, initial, false, yield)
	mx.run(m.StartId, 0)
}

// MatchStrictFunc is MatchFunc, except a host predicate panic is wrapped
// as a *PredicateError and returned instead of being treated as "does
// not hold" (SPEC_FULL.md §7's Open Question resolution).
func MatchStrictFunc(m *Model, name Name, initial Binding, yield func(MatchResult) bool) error {
	mx := newMatcher(m, name, initial, true, yield)
	mx.run(m.StartId, 0)
	return mx.predErr
}

// Match returns every match of name against m, per spec.md §4.6.
func Match(m *Model, name Name) []MatchResult {
	var out []MatchResult
	MatchFunc(m, name, nil, func(r MatchResult) bool {
		out = append(out, r)
		return true
	})
	return out
}
