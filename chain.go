package lvs

// ChainEdge is one element of a flattened Chain: either a literal value
// or a (patternId, CNF) pair, per spec.md §4.3.
type ChainEdge struct {
	IsValue bool

	Value Component

	PatternId PatternId
	CNF       CNF

	// SourceIdent is the rule that introduced this edge, kept only for
	// diagnostics (Node.RuleNames); it plays no role in structural
	// identity (tree.go).
	SourceIdent string
}

// Chain is a rule fully inlined, with one constraint-set alternative
// chosen, per spec.md §4.3/GLOSSARY.
type Chain struct {
	Edges            []ChainEdge
	SigningRuleNames []string
	RuleName         string
}

// ExpandChains turns resolved rules (in dependency order, as returned by
// Resolve) into the flat chains the tree builder consumes: rule
// references are inlined and disjunctive constraint-set alternatives are
// expanded into separate chains (the Cartesian product when several
// rule references and/or alternatives compose), per spec.md §4.3.
func ExpandChains(rules []ResolvedRule) ([]Chain, error) {
	chainsByRule := map[string][]Chain{}
	var all []Chain
	var errs []error

	for _, r := range rules {
		alts := r.ConsSets
		if len(alts) == 0 {
			alts = [][]ResolvedConsTerm{nil}
		}

		var ruleChains []Chain
		for _, alt := range alts {
			cnfByPattern := cnfMap(alt)

			partials := [][]ChainEdge{{}}
			ok := true
			for _, c := range r.Pattern {
				switch c.Kind {
				case CompLiteral:
					for i := range partials {
						partials[i] = append(partials[i], ChainEdge{
							IsValue: true, Value: c.Value, SourceIdent: r.Name,
						})
					}
				case CompTag:
					for i := range partials {
						partials[i] = append(partials[i], ChainEdge{
							IsValue: false, PatternId: c.PatternId,
							CNF: cnfByPattern[c.PatternId], SourceIdent: r.Name,
						})
					}
				case CompRule:
					sub, found := chainsByRule[c.RuleName]
					if !found {
						errs = append(errs, errorf(KindSemantic,
							"rule #%s references unknown rule #%s", r.Name, c.RuleName))
						ok = false
						break
					}
					var next [][]ChainEdge
					for _, p := range partials {
						for _, sc := range sub {
							joined := make([]ChainEdge, 0, len(p)+len(sc.Edges))
							joined = append(joined, p...)
							joined = append(joined, sc.Edges...)
							next = append(next, joined)
						}
					}
					partials = next
				}
				if !ok {
					break
				}
			}
			if !ok {
				continue
			}
			for _, edges := range partials {
				ruleChains = append(ruleChains, Chain{
					Edges:            edges,
					SigningRuleNames: r.SigningList,
					RuleName:         r.Name,
				})
			}
		}
		chainsByRule[r.Name] = ruleChains
		all = append(all, ruleChains...)
	}

	if len(errs) > 0 {
		return nil, newSemanticError(errs...)
	}
	return all, nil
}

// cnfMap groups a constraint-set alternative's terms by PatternId, in
// order of appearance, so that a pattern id mentioned by more than one
// cons_term in the same alternative accumulates a CNF with one AndTerm
// per mention (spec.md §3: CNF is a list of AND-terms).
func cnfMap(alt []ResolvedConsTerm) map[PatternId]CNF {
	out := map[PatternId]CNF{}
	for _, t := range alt {
		out[t.PatternId] = append(out[t.PatternId], t.Term)
	}
	return out
}
