// Package space implements the rule store ("space") of §4.2: an
// indexed, copy-on-write collection of ground atoms (facts) and rewrite
// rules, shared by reference among VMs and forked cheaply when
// nondeterministic evaluation needs an isolated branch.
package space

import (
	"sort"
	"sync"

	"github.com/mettalang/mork/pkg/match"
	"github.com/mettalang/mork/pkg/term"
)

// Rule is a rewrite rule `(= lhs rhs)`. Rules carry no inherent
// priority; priority only applies to exec forms, handled by package
// fixpoint.
type Rule struct {
	LHS term.Value
	RHS term.Value
}

// headKey indexes rules and lookups by the head symbol and arity of
// their left-hand side, per §4.2's "(head_symbol, arity) -> [R]"
// mapping.
type headKey struct {
	head  string
	arity int
}

// headKeyOf extracts the index key for a pattern's LHS. A pattern whose
// head has no extractable symbol (e.g. a bare variable, or an SExpr
// whose own head is itself a variable) is registered under the wildcard
// bucket instead and is considered for every call, matching §4.2.
func headKeyOf(pattern term.Value) (headKey, bool) {
	s, ok := pattern.(term.SExpr)
	if !ok || len(s.Elems) == 0 {
		return headKey{}, false
	}
	head, ok := s.Elems[0].(term.Atom)
	if !ok || head.IsVariable() {
		return headKey{}, false
	}
	return headKey{head: string(head), arity: len(s.Elems) - 1}, true
}

// ruleBucket is an immutable slice of rules sharing one index slot.
// Buckets are never mutated in place: appending a rule produces a new
// bucket, leaving any Space that cloned the old pointer untouched. This
// is the "only the touched sub-table is cloned" guarantee from §4.2.
type ruleBucket struct {
	rules []Rule
}

func (b *ruleBucket) appended(r Rule) *ruleBucket {
	if b == nil {
		return &ruleBucket{rules: []Rule{r}}
	}
	next := make([]Rule, len(b.rules)+1)
	copy(next, b.rules)
	next[len(b.rules)] = r
	return &ruleBucket{rules: next}
}

func (b *ruleBucket) removed(pred func(Rule) bool) *ruleBucket {
	if b == nil {
		return nil
	}
	kept := make([]Rule, 0, len(b.rules))
	for _, r := range b.rules {
		if !pred(r) {
			kept = append(kept, r)
		}
	}
	return &ruleBucket{rules: kept}
}

func (b *ruleBucket) slice() []Rule {
	if b == nil {
		return nil
	}
	return b.rules
}

// atomList is the ground-fact population of a space. Atoms are stored in
// a plain slice; removal tombstones the slot rather than shifting the
// rest, so that a Clone sharing the old slice header is never disturbed
// by a later removal in this branch.
type atomList struct {
	atoms     []term.Value
	tombstone []bool
}

func (a *atomList) clone() *atomList {
	if a == nil {
		return &atomList{}
	}
	atoms := make([]term.Value, len(a.atoms))
	copy(atoms, a.atoms)
	tomb := make([]bool, len(a.tombstone))
	copy(tomb, a.tombstone)
	return &atomList{atoms: atoms, tombstone: tomb}
}

// Space is a mutable handle onto an indexed rule/fact store. Cloning a
// Space (see Clone) is cheap: the new handle shares every rule bucket
// and the atom list until a mutation touches it, at which point only
// that piece is copied into the clone's own top-level maps.
type Space struct {
	mu       sync.RWMutex
	rules    map[headKey]*ruleBucket
	wildcard *ruleBucket
	atoms    *atomList
}

// New returns an empty space.
func New() *Space {
	return &Space{
		rules: make(map[headKey]*ruleBucket),
		atoms: &atomList{},
	}
}

// Clone returns a new handle sharing all current buckets and the atom
// list. It is O(number of distinct rule heads), not O(number of rules),
// and touches no rule or atom data.
func (s *Space) Clone() *Space {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rules := make(map[headKey]*ruleBucket, len(s.rules))
	for k, v := range s.rules {
		rules[k] = v
	}
	return &Space{
		rules:    rules,
		wildcard: s.wildcard,
		atoms:    s.atoms,
	}
}

// AddRule registers lhs => rhs under its head/arity index (or the
// wildcard bucket, if lhs has no extractable head).
func (s *Space) AddRule(lhs, rhs term.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r := Rule{LHS: lhs, RHS: rhs}
	key, ok := headKeyOf(lhs)
	if !ok {
		s.wildcard = s.wildcard.appended(r)
		return
	}
	s.rules[key] = s.rules[key].appended(r)
}

// RemoveRule removes every rule whose LHS and RHS are structurally equal
// to the given pair.
func (s *Space) RemoveRule(lhs, rhs term.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	pred := func(r Rule) bool { return r.LHS.Equal(lhs) && r.RHS.Equal(rhs) }
	key, ok := headKeyOf(lhs)
	if !ok {
		s.wildcard = s.wildcard.removed(pred)
		return
	}
	s.rules[key] = s.rules[key].removed(pred)
}

// GetMatchingRules returns the candidate rules registered under
// (head, arity), plus every wildcard-indexed rule — the full candidate
// set the bridge must still run Match against.
func (s *Space) GetMatchingRules(head string, arity int) []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.rules[headKey{head: head, arity: arity}].slice()
	wild := s.wildcard.slice()
	if len(wild) == 0 {
		out := make([]Rule, len(bucket))
		copy(out, bucket)
		return out
	}
	out := make([]Rule, 0, len(bucket)+len(wild))
	out = append(out, bucket...)
	out = append(out, wild...)
	return out
}

// AddAtom adds a ground fact to the space.
func (s *Space) AddAtom(v term.Value) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.atoms = s.atoms.clone()
	s.atoms.atoms = append(s.atoms.atoms, v)
	s.atoms.tombstone = append(s.atoms.tombstone, false)
}

// RemoveAtom removes the first occurrence of a structurally-equal fact.
// Reports whether anything was removed.
func (s *Space) RemoveAtom(v term.Value) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, a := range s.atoms.atoms {
		if !s.atoms.tombstone[i] && a.Equal(v) {
			s.atoms = s.atoms.clone()
			s.atoms.tombstone[i] = true
			return true
		}
	}
	return false
}

// Collapse returns every live atom as a slice, in insertion-oblivious
// order (§4.2: callers must not depend on a particular ordering).
func (s *Space) Collapse() []term.Value {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]term.Value, 0, len(s.atoms.atoms))
	for i, a := range s.atoms.atoms {
		if !s.atoms.tombstone[i] {
			out = append(out, a)
		}
	}
	return out
}

// MatchSpace pattern-matches every live atom against pattern; for each
// successful match it applies the resulting bindings to template and
// appends the instantiated term to the result. This is the raw
// substitution step behind the `match` operator; the VM's SpaceMatch
// pushes these terms as they are, without evaluating them further.
func (s *Space) MatchSpace(pattern, template term.Value) []term.Value {
	atoms := s.Collapse()
	out := make([]term.Value, 0, len(atoms))
	for _, a := range atoms {
		b, ok := match.Match(pattern, a, nil)
		if !ok {
			continue
		}
		out = append(out, term.ApplyBindings(template, b))
	}
	return out
}

// RuleCount returns the total number of rules currently indexed,
// counting the wildcard bucket. exec facts are ground atoms rather than
// `=` rules, so they are not counted here.
func (s *Space) RuleCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := len(s.wildcard.slice())
	for _, b := range s.rules {
		n += len(b.slice())
	}
	return n
}

// AllRules returns every rule currently indexed, across every head/arity
// bucket and the wildcard bucket. exec facts are stored as ordinary
// atoms rather than `=` rules, so they are not returned here; the
// fixed-point driver scans Collapse for them (see package fixpoint).
func (s *Space) AllRules() []Rule {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Rule, 0, len(s.wildcard.slice()))
	out = append(out, s.wildcard.slice()...)
	for _, b := range s.rules {
		out = append(out, b.slice()...)
	}
	return out
}

// HeadSymbols returns the distinct head symbols known to the space,
// drawn from both the rule index and the ground-fact population. Used
// for diagnostics (e.g. a dispatch bridge's "did you mean?" suggestion
// on a zero-match call) rather than anything evaluation depends on.
func (s *Space) HeadSymbols() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	seen := make(map[string]bool)
	for k := range s.rules {
		seen[k.head] = true
	}
	for i, a := range s.atoms.atoms {
		if s.atoms.tombstone[i] {
			continue
		}
		if sx, ok := a.(term.SExpr); ok && len(sx.Elems) > 0 {
			if head, ok := sx.Elems[0].(term.Atom); ok && !head.IsVariable() {
				seen[string(head)] = true
			}
		}
	}
	out := make([]string, 0, len(seen))
	for h := range seen {
		out = append(out, h)
	}
	sort.Strings(out)
	return out
}
