// Package fixpoint implements the forward-chaining driver of §4.6: a
// priority-ordered pass over `exec` facts that matches each one's
// antecedent against the space, instantiates its consequent, and
// repeats until a full pass adds or removes nothing (or an iteration
// cap is hit). Because exec facts are ordinary space atoms, a
// consequent that itself asserts a new exec fact is picked up
// automatically on the next pass — the meta-programming case in §8
// scenario 6.
package fixpoint

import (
	"context"
	"sort"
	"sync"

	"github.com/mettalang/mork/internal/parallel"
	"github.com/mettalang/mork/pkg/match"
	"github.com/mettalang/mork/pkg/space"
	"github.com/mettalang/mork/pkg/term"
)

// parallelMatchThreshold is the atom-population size above which
// matching an antecedent's first goal is fanned out across a worker
// pool rather than run on the calling goroutine. Below it the overhead
// of scheduling outweighs the benefit.
const parallelMatchThreshold = 64

// Driver runs the fixed-point loop against one space.
type Driver struct {
	Space         *space.Space
	MaxIterations int
	MaxCartesian  int

	// pool, if non-nil, fans out first-goal matching across workers
	// for antecedents run against large atom populations. See
	// EnableParallelMatch.
	pool *parallel.WorkerPool
}

// New returns a driver with the engine's default bounds.
func New(sp *space.Space) *Driver {
	return &Driver{Space: sp, MaxIterations: 10_000, MaxCartesian: 10_000}
}

// EnableParallelMatch gives the driver a bounded worker pool (sized to
// maxWorkers, or the number of CPUs if maxWorkers <= 0) to fan out the
// first-goal match of each antecedent across, for spaces with large
// ground-fact populations. Matching the remaining conjunction goals for
// each surviving binding still runs sequentially, since the ordering
// the fixed-point driver promises (§4.6) is about rule passes, not
// about which goroutine a single antecedent's first match happens to
// run on. The pool's lifetime is tied to d; call d.Shutdown if the
// driver is discarded before process exit.
func (d *Driver) EnableParallelMatch(maxWorkers int) {
	d.pool = parallel.NewWorkerPool(maxWorkers)
}

// Shutdown releases the worker pool enabled by EnableParallelMatch, if
// any. Safe to call on a driver that never enabled parallel matching.
func (d *Driver) Shutdown() {
	if d.pool != nil {
		d.pool.Shutdown()
	}
}

// Result reports how a Run call ended.
type Result struct {
	Iterations int
	Converged  bool
	Applied    int
}

// Run iterates priority-ordered exec passes until a pass changes
// nothing, ctx is cancelled, or MaxIterations is reached.
func (d *Driver) Run(ctx context.Context) (Result, error) {
	res := Result{}
	for res.Iterations < d.MaxIterations {
		select {
		case <-ctx.Done():
			return res, ctx.Err()
		default:
		}
		res.Iterations++

		facts := d.execFacts()
		if len(facts) == 0 {
			res.Converged = true
			return res, nil
		}
		sort.SliceStable(facts, func(i, j int) bool {
			return facts[j].priority.higherThan(facts[i].priority)
		})

		changed := 0
		for _, f := range facts {
			n, err := d.apply(f)
			if err != nil {
				return res, err
			}
			changed += n
		}
		res.Applied += changed
		if changed == 0 {
			res.Converged = true
			return res, nil
		}
	}
	return res, nil
}

type execFact struct {
	priority   priority
	antecedent term.Value
	consequent term.Value
}

// execFacts scans the space's atoms for `(exec priority antecedent
// consequent)` facts. exec facts are plain atoms, never `=` rules, so
// this reads Collapse rather than AllRules.
func (d *Driver) execFacts() []execFact {
	var out []execFact
	for _, a := range d.Space.Collapse() {
		s, ok := a.(term.SExpr)
		if !ok || len(s.Elems) != 4 {
			continue
		}
		head, ok := s.Elems[0].(term.Atom)
		if !ok || string(head) != "exec" {
			continue
		}
		out = append(out, execFact{
			priority:   parsePriority(s.Elems[1]),
			antecedent: s.Elems[2],
			consequent: s.Elems[3],
		})
	}
	return out
}

// apply matches f's antecedent against every current atom (possibly
// several ways, if the antecedent is a conjunction with several
// satisfying combinations) and instantiates the consequent once per
// satisfying binding set, returning how many atoms were actually added
// or removed.
func (d *Driver) apply(f execFact) (int, error) {
	goals := conjunctionGoals(f.antecedent)
	atoms := d.Space.Collapse()

	var solutions []*term.Bindings
	if d.pool != nil && len(atoms) >= parallelMatchThreshold && len(goals) > 0 {
		solveGoalsParallel(d.pool, goals, atoms, d.MaxCartesian, &solutions)
	} else {
		solveGoals(goals, atoms, term.NewBindings(), d.MaxCartesian, &solutions)
	}

	applied := 0
	for _, b := range solutions {
		consequent := term.ApplyBindings(f.consequent, b)
		if target, isRemove := removalTarget(consequent); isRemove {
			if d.Space.RemoveAtom(target) {
				applied++
			}
			continue
		}
		if !containsAtom(d.Space, consequent) {
			d.Space.AddAtom(consequent)
			applied++
		}
	}
	return applied, nil
}

func conjunctionGoals(v term.Value) []term.Value {
	if c, ok := v.(term.Conjunction); ok {
		return c.Goals
	}
	return []term.Value{v}
}

// removalTarget recognizes a consequent of the form `(- t)`, the
// convention this engine uses for "retract t" rather than "assert t"
// (§4.6).
func removalTarget(v term.Value) (term.Value, bool) {
	s, ok := v.(term.SExpr)
	if !ok || len(s.Elems) != 2 {
		return nil, false
	}
	head, ok := s.Elems[0].(term.Atom)
	if !ok || string(head) != "-" {
		return nil, false
	}
	return s.Elems[1], true
}

func containsAtom(sp *space.Space, v term.Value) bool {
	for _, a := range sp.Collapse() {
		if a.Equal(v) {
			return true
		}
	}
	return false
}

// solveGoalsParallel matches goals[0] against every atom concurrently
// on pool, then solves the remaining goals sequentially per surviving
// binding (via solveGoals), merging every worker's partial result list
// under a single mutex. Result order is no longer insertion-oblivious
// across atoms, which §4.6 does not promise in the first place — only
// the pass-to-pass convergence property (§8 invariant 8) is load-bearing.
func solveGoalsParallel(pool *parallel.WorkerPool, goals []term.Value, atoms []term.Value, cap int, out *[]*term.Bindings) {
	goal := goals[0]
	rest := goals[1:]

	var mu sync.Mutex
	var wg sync.WaitGroup
	ctx := context.Background()
	for _, a := range atoms {
		mu.Lock()
		full := len(*out) >= cap
		mu.Unlock()
		if full {
			break
		}
		a := a
		solveOne := func() {
			b, ok := match.Match(goal, a, term.NewBindings())
			if !ok {
				return
			}
			var local []*term.Bindings
			solveGoals(rest, atoms, b, cap, &local)
			if len(local) == 0 {
				return
			}
			mu.Lock()
			defer mu.Unlock()
			if len(*out) < cap {
				*out = append(*out, local...)
			}
		}
		wg.Add(1)
		task := func() {
			defer wg.Done()
			solveOne()
		}
		if err := pool.Submit(ctx, task); err != nil {
			wg.Done()
			solveOne()
		}
	}
	wg.Wait()
	if len(*out) > cap {
		*out = (*out)[:cap]
	}
}

// solveGoals finds every combination of atoms satisfying goals in
// order, threading bindings left to right across the conjunction, up to
// cap solutions (§4.6's budget on cartesian blow-up across antecedent
// goals).
func solveGoals(goals []term.Value, atoms []term.Value, cur *term.Bindings, cap int, out *[]*term.Bindings) {
	if len(*out) >= cap {
		return
	}
	if len(goals) == 0 {
		*out = append(*out, cur)
		return
	}
	goal := term.ApplyBindings(goals[0], cur)
	for _, a := range atoms {
		if len(*out) >= cap {
			return
		}
		next, ok := match.Match(goal, a, cur)
		if !ok {
			continue
		}
		solveGoals(goals[1:], atoms, next, cap, out)
	}
}
