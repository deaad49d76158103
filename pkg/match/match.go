// Package match implements the one-sided pattern matcher and the
// symmetric unifier described in §4.1 of the engine design: Match binds
// pattern variables against a concrete value, Unify binds variables on
// either side, and Specificity orders competing rules for dispatch.
package match

import "github.com/mettalang/mork/pkg/term"

// Match attempts to match pattern against value, producing the bindings
// that make them equal. It is one-sided: only variables in pattern may
// bind; value is never itself bound.
//
// Nil, Unit, Empty, and an empty SExpr are mutually equivalent for
// matching purposes, and the Empty sentinel atom matches all four as well
// as itself, so that a rule body producing "no result" still matches a
// pattern written against any of the absent-value spellings.
func Match(pattern, value term.Value, b *term.Bindings) (*term.Bindings, bool) {
	if b == nil {
		b = term.NewBindings()
	}

	if a, ok := pattern.(term.Atom); ok {
		if a.IsWildcard() {
			return b, true
		}
		if a.IsVariable() {
			return b.With(string(a), value)
		}
		if string(a) == "Empty" && isAbsent(value) {
			return b, true
		}
	}

	if isAbsent(pattern) && isAbsent(value) {
		return b, true
	}

	switch p := pattern.(type) {
	case term.SExpr:
		v, ok := value.(term.SExpr)
		if !ok || len(p.Elems) != len(v.Elems) {
			return nil, false
		}
		cur := b
		for i := range p.Elems {
			var matched bool
			cur, matched = Match(p.Elems[i], v.Elems[i], cur)
			if !matched {
				return nil, false
			}
		}
		return cur, true
	default:
		if pattern.Equal(value) {
			return b, true
		}
		return nil, false
	}
}

// isAbsent reports whether v is one of the five mutually matching
// "no-value" forms: Nil, Unit, Empty, empty SExpr, or the Atom("Empty")
// sentinel (§3 invariants, §4.1).
func isAbsent(v term.Value) bool {
	if term.IsNilLike(v) {
		return true
	}
	if _, ok := v.(term.EmptyV); ok {
		return true
	}
	if a, ok := v.(term.Atom); ok {
		return string(a) == "Empty"
	}
	return false
}
