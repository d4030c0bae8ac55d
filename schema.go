package lvs

import (
	"context"
	"sort"
	"sync"
)

// Schema is the runtime façade over a compiled Model: the model itself,
// plus the two things a caller configures before running Match/Check/
// Suggest, mirroring the teacher's Context (algorithm parameters bundled
// with the operations that use them).
type Schema struct {
	Model *Model

	// Threads caps the number of goroutines SuggestParallel fans a key
	// inventory out across. Zero means "pick something reasonable".
	Threads int
}

// NewSchema wraps a compiled model for use.
func NewSchema(m *Model) *Schema { return &Schema{Model: m} }

// Match runs the matcher of spec.md §4.6 against name.
func (s *Schema) Match(name Name) []MatchResult {
	return Match(s.Model, name)
}

// RequiredUserFns returns the sorted, deduplicated set of predicate names
// referenced by any Fn constraint in the model, regardless of whether
// Model.UserFns currently supplies them.
func (s *Schema) RequiredUserFns() []string {
	seen := map[string]bool{}
	for _, n := range s.Model.Nodes {
		for _, pe := range n.PatternEdges {
			for _, term := range pe.CNF {
				for _, opt := range term {
					if opt.Kind == ConstraintFn {
						seen[opt.FnName] = true
					}
				}
			}
		}
	}
	out := make([]string, 0, len(seen))
	for name := range seen {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// VerifyUserFns reports a *MissingUserFnError naming every predicate the
// model references that is absent from Model.UserFns. This is the
// optional verification-time sanity check of spec.md §7
// ("MissingUserFnError (optional per §6 sanity check) -- raised ... at
// verification time, if a schema references a predicate not supplied").
// It is never invoked automatically by Match/Check/Suggest, which
// instead apply the unregistered-predicate policy (an unregistered
// predicate simply fails its edge, see match.go's evalFn); callers that want a
// loud, up-front completeness check run this once after populating
// Model.UserFns.
func (s *Schema) VerifyUserFns() error {
	var missing []string
	for _, name := range s.RequiredUserFns() {
		if _, ok := s.Model.UserFns[name]; !ok {
			missing = append(missing, name)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	return newMissingUserFnError(missing)
}

// MatchStrict is Match, except a host predicate panic is surfaced as a
// *PredicateError instead of being swallowed as "does not hold" (see
// SPEC_FULL.md §7). Non-spec-mandated convenience for callers that want
// a misbehaving predicate to be loud rather than silently wrong.
func (s *Schema) MatchStrict(name Name) ([]MatchResult, error) {
	var out []MatchResult
	err := MatchStrictFunc(s.Model, name, nil, func(r MatchResult) bool {
		out = append(out, r)
		return true
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// Check implements spec.md §4.7's check(pktName, keyName): every match of
// pktName is tried against every one of its signing references, each
// re-matched from the root of keyName with the packet's named-pattern
// bindings carried over as the initial environment (spec.md §4.7, step 2
// — the binding carry-over that makes "same author" checks work, per
// spec.md's REDESIGN FLAGS discussion). Temporary pattern ids are not
// carried over: a rule inlined into both the packet's and the key's rule
// (such as #KEY) contributes the same temporary ids to both chains.
func (s *Schema) Check(pktName, keyName Name) bool {
	found := false
	MatchFunc(s.Model, pktName, nil, func(pm MatchResult) bool {
		carried := make(Binding, len(pm.Binding))
		for id, c := range pm.Binding {
			if uint32(id) <= s.Model.NamedPatternCnt {
				carried[id] = c
			}
		}
		for _, nK := range s.Model.Nodes[pm.NodeId].SigningRefs {
			ok := false
			MatchFunc(s.Model, keyName, carried, func(km MatchResult) bool {
				if km.NodeId == nK {
					ok = true
					return false
				}
				return true
			})
			if ok {
				found = true
				return false
			}
		}
		return true
	})
	return found
}

// Suggest implements spec.md §4.7's suggest(pktName, keyInventory):
// iterate keyInventory in order and return the first candidate key name
// for which Check(pktName, candidate) succeeds. Iteration is strictly
// sequential, per spec.md §5 ("suggest invokes an iterator/sequence
// supplied by the caller; iteration is sequential").
func (s *Schema) Suggest(pktName Name, keyInventory []Name) (Name, bool) {
	for _, k := range keyInventory {
		if s.Check(pktName, k) {
			return k, true
		}
	}
	return nil, false
}

// SuggestParallel is an additive convenience beyond spec.md §4.7: it fans
// Check(pktName, candidate) out across up to Threads goroutines (or
// runtime.NumCPU-equivalent default of 4 when Threads == 0) and returns
// the first candidate (by inventory order, not completion order) for
// which Check succeeds. Grounded on the teacher's worker-pool idiom
// (api.go's background subtree precomputation: spawn workers, join with
// sync.WaitGroup) repurposed here as a bounded fan-out, since Check is
// side-effect-free and safe to run concurrently over an immutable Model.
// Every candidate is checked: a success does not stop the remaining
// workers, and the context is only cancelled when SuggestParallel returns.
func (s *Schema) SuggestParallel(pktName Name, keyInventory []Name) (Name, bool) {
	threads := s.Threads
	if threads <= 0 {
		threads = 4
	}
	if threads > len(keyInventory) {
		threads = len(keyInventory)
	}
	if threads == 0 {
		return nil, false
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		idx int
		key Name
	}
	results := make(chan result, len(keyInventory))
	jobs := make(chan int)

	var wg sync.WaitGroup
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				select {
				case <-ctx.Done():
					return
				default:
				}
				if s.Check(pktName, keyInventory[idx]) {
					select {
					case results <- result{idx: idx, key: keyInventory[idx]}:
					case <-ctx.Done():
					}
				}
			}
		}()
	}

	go func() {
		defer close(jobs)
		for i := range keyInventory {
			select {
			case jobs <- i:
			case <-ctx.Done():
				return
			}
		}
	}()

	go func() {
		wg.Wait()
		close(results)
	}()

	best := -1
	var bestKey Name
	for r := range results {
		if best == -1 || r.idx < best {
			best = r.idx
			bestKey = r.key
		}
	}
	if best == -1 {
		return nil, false
	}
	return bestKey, true
}
