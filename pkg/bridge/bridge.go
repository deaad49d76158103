// Package bridge implements the rule-dispatch bridge of §4.5: it
// mediates between the VM and the rule store, turning a call term into
// the set of compiled rule bodies ready to run. A Bridge owns the
// rule-body cache that lets repeated calls to the same rule skip
// recompiling its right-hand side, modeled on the subgoal/answer
// caching in the reference tabling engine this project grew out of.
package bridge

import (
	"encoding/hex"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/lithammer/fuzzysearch/fuzzy"
	"golang.org/x/crypto/blake2b"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/env"
	"github.com/mettalang/mork/pkg/match"
	"github.com/mettalang/mork/pkg/term"
	"github.com/mettalang/mork/pkg/vm"
)

// Stats counts a bridge's activity, useful for diagnostics and tests
// asserting the cache is actually doing its job.
type Stats struct {
	Lookups       uint64
	Matches       uint64
	CacheHits     uint64
	CacheMisses   uint64
	CompileErrors uint64
}

// Bridge wraps an environment's self space, compiling each candidate
// rule's right-hand side on demand and caching the result by a hash of
// the RHS term so that two different rules with an identical body share
// one compiled chunk.
type Bridge struct {
	env      *env.Environment
	compiler *bytecode.Compiler
	cache    sync.Map // string (hash) -> *bytecode.Chunk

	lookups       atomic.Uint64
	matches       atomic.Uint64
	cacheHits     atomic.Uint64
	cacheMisses   atomic.Uint64
	compileErrors atomic.Uint64
}

// New returns a bridge dispatching against e's self space.
func New(e *env.Environment) *Bridge {
	return &Bridge{env: e, compiler: bytecode.New()}
}

// Stats snapshots the bridge's counters.
func (br *Bridge) Stats() Stats {
	return Stats{
		Lookups:       br.lookups.Load(),
		Matches:       br.matches.Load(),
		CacheHits:     br.cacheHits.Load(),
		CacheMisses:   br.cacheMisses.Load(),
		CompileErrors: br.compileErrors.Load(),
	}
}

type candidate struct {
	lhs      term.Value
	rhs      term.Value
	bindings *term.Bindings
}

// Dispatch implements vm.Bridge: extract the call's head/arity, collect
// every candidate rule from the self space, match each LHS against the
// call term, tie-break on specificity, and compile each surviving
// candidate's RHS (via cache) into a runnable chunk. A rule whose RHS
// fails to compile is dropped with its error counted rather than
// failing the whole dispatch (§4.5).
func (br *Bridge) Dispatch(callTerm term.Value) ([]vm.RuleMatch, error) {
	call, ok := callTerm.(term.SExpr)
	if !ok || len(call.Elems) == 0 {
		return nil, nil
	}
	head, ok := call.Elems[0].(term.Atom)
	if !ok {
		return nil, nil
	}

	br.lookups.Add(1)
	rules := br.env.Self().GetMatchingRules(string(head), call.Arity())

	var matched []candidate
	for _, r := range rules {
		b, ok := match.Match(r.LHS, callTerm, nil)
		if !ok {
			continue
		}
		matched = append(matched, candidate{lhs: r.LHS, rhs: r.RHS, bindings: b})
	}
	if len(matched) == 0 {
		return nil, nil
	}
	br.matches.Add(uint64(len(matched)))

	best := match.MinimalTier(matched, func(c candidate) term.Value { return c.lhs })

	out := make([]vm.RuleMatch, 0, len(best))
	for _, c := range best {
		chunk, err := br.compileCached(c.rhs)
		if err != nil {
			br.compileErrors.Add(1)
			continue
		}
		out = append(out, vm.RuleMatch{Chunk: chunk, Bindings: c.bindings})
	}
	return out, nil
}

func (br *Bridge) compileCached(rhs term.Value) (*bytecode.Chunk, error) {
	key := hashTerm(rhs)
	if cached, ok := br.cache.Load(key); ok {
		br.cacheHits.Add(1)
		return cached.(*bytecode.Chunk), nil
	}
	br.cacheMisses.Add(1)
	chunk, err := br.compiler.Compile("rule#"+key[:12], rhs)
	if err != nil {
		return nil, err
	}
	actual, _ := br.cache.LoadOrStore(key, chunk)
	return actual.(*bytecode.Chunk), nil
}

// hashTerm renders rhs canonically and hashes it, giving two
// structurally identical rule bodies (even from different `=` rules)
// the same cache key. blake2b is used instead of a general-purpose
// crypto hash since this key never leaves the process and only needs
// to be collision-resistant, not tamper-evident.
func hashTerm(v term.Value) string {
	sum := blake2b.Sum256([]byte(v.String()))
	return hex.EncodeToString(sum[:])
}

// SuggestSimilar returns up to n known head symbols in the self space
// whose name is a close fuzzy match for head (one name's letters appear
// in order within the other, ranked by edit distance), for a host to surface as
// "did you mean?" when a dispatch comes back with zero matches. It
// never affects evaluation; this is diagnostics only.
func (br *Bridge) SuggestSimilar(head string, n int) []string {
	heads := br.env.Self().HeadSymbols()
	type scored struct {
		name string
		rank int
	}
	var candidates []scored
	for _, h := range heads {
		if h == head {
			continue
		}
		rank := fuzzy.RankMatchNormalizedFold(head, h)
		if rank < 0 {
			rank = fuzzy.RankMatchNormalizedFold(h, head)
		}
		if rank >= 0 {
			candidates = append(candidates, scored{h, rank})
		}
	}
	sort.Slice(candidates, func(i, j int) bool { return candidates[i].rank < candidates[j].rank })
	if len(candidates) > n {
		candidates = candidates[:n]
	}
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.name
	}
	return out
}
