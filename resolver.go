package lvs

import "strings"

func isTempName(name string) bool { return strings.HasPrefix(name, "_") }

// ResolvedComp is one PatComp after rule references have been left in
// place (inlining happens later, in the chain expander) but literals and
// pattern names have been resolved.
type ResolvedComp struct {
	Kind      CompKind
	Value     Component
	PatternId PatternId
	RuleName  string
}

// ResolvedConsTerm assigns an AndTerm to one resolved pattern id, within
// one constraint-set alternative.
type ResolvedConsTerm struct {
	PatternId PatternId
	Term      AndTerm
}

// ResolvedRule is a RuleDef with every identifier resolved to a stable
// PatternId, ready for chain expansion (C3).
type ResolvedRule struct {
	Name        string
	Pattern     []ResolvedComp
	ConsSets    [][]ResolvedConsTerm // one slice per "|"-separated alternative; nil means "one empty alternative"
	SigningList []string
}

// symtab allocates stable ids for named (non-"_"-prefixed) patterns,
// shared across the whole source file, per spec.md §4.2 ("each named
// identifier receives a stable id on first encounter").
type symtab struct {
	ids  map[string]PatternId
	next PatternId
}

func newSymtab() *symtab { return &symtab{ids: map[string]PatternId{}} }

func (t *symtab) id(name string) PatternId {
	if id, ok := t.ids[name]; ok {
		return id
	}
	t.next++
	t.ids[name] = t.next
	return t.next
}

// localTemps resolves "_"-prefixed identifiers within a single rule.
// Every Pattern position holding a temp name receives a fresh id
// (resolveRule), so repeated temp names never unify; ids records the
// first such id per name. A cons_term naming a temp is attached to every
// Pattern occurrence of it, while a Var option or Fn argument naming it
// resolves to the first occurrence ("occurrence" here means a Pattern
// position; a mention inside a constraint clause is not a new one).
type localTemps struct {
	ids  map[string]PatternId
	next *PatternId // shared counter, starts above NamedPatternCnt
}

func (t *localTemps) idFor(name string) PatternId {
	if id, ok := t.ids[name]; ok {
		return id
	}
	*t.next++
	t.ids[name] = *t.next
	return *t.next
}

// Resolve sorts f's rules topologically (spec.md §4.2), detects cyclic
// rule references, and allocates pattern ids. It returns the rules in
// dependency order (referenced rules before referrers) and the total
// count of distinct named patterns.
func Resolve(f *File) ([]ResolvedRule, uint32, error) {
	order, err := topoSort(f.Rules)
	if err != nil {
		return nil, 0, err
	}

	st := newSymtab()
	// Pass 1: allocate every named pattern id, left to right over rules
	// in dependency order, so NamedPatternCnt is known before any
	// temporary ids (which must sort above all named ids) are handed out.
	for _, r := range order {
		for _, c := range r.Pattern {
			if c.Kind == CompTag && !isTempName(c.Tag) {
				st.id(c.Tag)
			}
		}
		for _, set := range r.ConsSets {
			for _, term := range set {
				if !isTempName(term.Tag) {
					st.id(term.Tag)
				}
				for _, opt := range term.Options {
					if opt.Kind == ConsOptTag && !isTempName(opt.Tag) {
						st.id(opt.Tag)
					}
					if opt.Kind == ConsOptFn {
						for _, a := range opt.FnArgs {
							if a.Kind == FnArgTag && !isTempName(a.Tag) {
								st.id(a.Tag)
							}
						}
					}
				}
			}
		}
	}
	namedCnt := uint32(st.next)
	tempCounter := PatternId(namedCnt)

	var errs []error
	resolved := make([]ResolvedRule, 0, len(order))
	for _, r := range order {
		rr, ruleErrs := resolveRule(r, st, &tempCounter)
		errs = append(errs, ruleErrs...)
		resolved = append(resolved, rr)
	}
	if len(errs) > 0 {
		return nil, 0, newSemanticError(errs...)
	}
	return resolved, namedCnt, nil
}

func resolveRule(r RuleDef, st *symtab, tempCounter *PatternId) (ResolvedRule, []error) {
	lt := &localTemps{ids: map[string]PatternId{}, next: tempCounter}
	// tempOcc lists the id of every Pattern occurrence of each temp name,
	// so that a cons_term naming it is replicated onto each occurrence.
	tempOcc := map[string][]PatternId{}
	var errs []error

	rr := ResolvedRule{Name: r.Name, SigningList: r.SigningList}
	for _, c := range r.Pattern {
		switch c.Kind {
		case CompLiteral:
			rr.Pattern = append(rr.Pattern, ResolvedComp{Kind: CompLiteral, Value: Comp(c.Literal)})
		case CompTag:
			var pid PatternId
			if isTempName(c.Tag) {
				*tempCounter++
				pid = *tempCounter
				tempOcc[c.Tag] = append(tempOcc[c.Tag], pid)
				if _, seen := lt.ids[c.Tag]; !seen {
					lt.ids[c.Tag] = pid
				}
			} else {
				pid = st.id(c.Tag)
			}
			rr.Pattern = append(rr.Pattern, ResolvedComp{Kind: CompTag, PatternId: pid})
		case CompRule:
			rr.Pattern = append(rr.Pattern, ResolvedComp{Kind: CompRule, RuleName: c.Rule})
		}
	}

	resolveOpt := func(o ConsOptAST) (Constraint, error) {
		switch o.Kind {
		case ConsOptLiteral:
			return ValConstraint(Comp(o.Literal)), nil
		case ConsOptTag:
			return VarConstraint(resolveTagRef(o.Tag, st, lt)), nil
		case ConsOptFn:
			args := make([]Arg, 0, len(o.FnArgs))
			for _, a := range o.FnArgs {
				if a.Kind == FnArgLiteral {
					args = append(args, Arg{Value: Comp(a.Literal)})
				} else {
					args = append(args, Arg{IsPattern: true, Pattern: resolveTagRef(a.Tag, st, lt)})
				}
			}
			return FnConstraint(o.FnName, args), nil
		}
		return Constraint{}, nil
	}

	for _, set := range r.ConsSets {
		var terms []ResolvedConsTerm
		for _, term := range set {
			pids := tempOcc[term.Tag]
			if len(pids) == 0 {
				pids = []PatternId{resolveTagRef(term.Tag, st, lt)}
			}
			var and AndTerm
			for _, opt := range term.Options {
				c, err := resolveOpt(opt)
				if err != nil {
					errs = append(errs, err)
					continue
				}
				and = append(and, c)
			}
			for _, pid := range pids {
				terms = append(terms, ResolvedConsTerm{PatternId: pid, Term: and})
			}
		}
		rr.ConsSets = append(rr.ConsSets, terms)
	}

	return rr, errs
}

// resolveTagRef resolves an identifier used inside a constraint clause
// (a cons_term target, a Var option, or a Fn argument) to the PatternId
// it refers to: the rule-local occurrence if it's a temp name already
// seen in this rule, the global symtab entry if named, or a fresh
// allocation if this is the first mention of a temp name outside of any
// Pattern occurrence (a corner case the grammar allows but the base
// schema in spec.md §8 never exercises).
func resolveTagRef(name string, st *symtab, lt *localTemps) PatternId {
	if isTempName(name) {
		return lt.idFor(name)
	}
	return st.id(name)
}

// topoSort orders rules so that every rule referenced by another rule's
// name pattern appears before it, per spec.md §4.2. Signing references
// ("<=") do not count as rule references for ordering purposes. Cyclic
// references are reported (possibly more than one, aggregated) rather
// than aborting at the first.
func topoSort(rules []RuleDef) ([]RuleDef, error) {
	byName := make(map[string]*RuleDef, len(rules))
	for i := range rules {
		byName[rules[i].Name] = &rules[i]
	}

	const (
		white = iota
		gray
		black
	)
	state := make(map[string]int, len(rules))
	var order []RuleDef
	var errs []error
	var stack []string

	var visit func(name string)
	visit = func(name string) {
		switch state[name] {
		case black:
			return
		case gray:
			errs = append(errs, errorf(KindSemantic,
				"cyclic rule reference: %s", strings.Join(cyclePath(stack, name), " -> ")))
			return
		}
		r, ok := byName[name]
		if !ok {
			errs = append(errs, errorf(KindSemantic, "reference to unknown rule #%s", name))
			state[name] = black
			return
		}
		state[name] = gray
		stack = append(stack, name)
		for _, c := range r.Pattern {
			if c.Kind == CompRule {
				visit(c.Rule)
			}
		}
		stack = stack[:len(stack)-1]
		state[name] = black
		order = append(order, *r)
	}

	for _, r := range rules {
		if state[r.Name] == white {
			visit(r.Name)
		}
	}
	if len(errs) > 0 {
		return nil, newSemanticError(errs...)
	}
	return order, nil
}

func cyclePath(stack []string, name string) []string {
	for i, s := range stack {
		if s == name {
			out := append([]string{}, stack[i:]...)
			return append(out, name)
		}
	}
	return append(append([]string{}, stack...), name)
}
