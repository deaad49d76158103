package match

import "github.com/mettalang/mork/pkg/term"

// Specificity ranks (§4.1) is how competing rule heads are tie-broken in
// dispatch: lower wins. Concrete atoms and ground literals score 0,
// variables score 100, the wildcard scores 1000, and an SExpr scores the
// sum of its elements' specificity.
const (
	SpecificityConcrete = 0
	SpecificityVariable = 100
	SpecificityWildcard = 1000
)

// Specificity computes the specificity of a pattern term.
func Specificity(pattern term.Value) int {
	switch p := pattern.(type) {
	case term.Atom:
		if p.IsWildcard() {
			return SpecificityWildcard
		}
		if p.IsVariable() {
			return SpecificityVariable
		}
		return SpecificityConcrete
	case term.SExpr:
		total := 0
		for _, e := range p.Elems {
			total += Specificity(e)
		}
		return total
	default:
		return SpecificityConcrete
	}
}

// MinimalTier filters items to those whose specificity equals the
// minimum found in the slice. scoreOf extracts the pattern to score from
// each item, keeping MinimalTier generic over whatever dispatch
// candidate type the caller holds (e.g. a (rule, bindings) pair).
func MinimalTier[T any](items []T, scoreOf func(T) term.Value) []T {
	if len(items) == 0 {
		return items
	}
	best := Specificity(scoreOf(items[0]))
	for _, it := range items[1:] {
		if s := Specificity(scoreOf(it)); s < best {
			best = s
		}
	}
	out := make([]T, 0, len(items))
	for _, it := range items {
		if Specificity(scoreOf(it)) == best {
			out = append(out, it)
		}
	}
	return out
}
