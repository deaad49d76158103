package fixpoint

import "github.com/mettalang/mork/pkg/term"

// priority classifies and orders the three priority spellings §4.6
// allows on an exec fact: a Peano numeral `(S (S ... Z))`, a plain
// Integer, or a Tuple of priorities compared component-wise. Tuple
// outranks Peano outranks Integer when two priorities use different
// spellings, matching the original implementation's cross-type order.
type priority struct {
	tier  int
	value int64
	tuple []priority
}

const (
	tierInteger = iota
	tierPeano
	tierTuple
)

func parsePriority(v term.Value) priority {
	if n, ok := peanoToInt(v); ok {
		return priority{tier: tierPeano, value: int64(n)}
	}
	if l, ok := v.(term.Long); ok {
		return priority{tier: tierInteger, value: int64(l)}
	}
	if s, ok := v.(term.SExpr); ok {
		tup := make([]priority, len(s.Elems))
		for i, e := range s.Elems {
			tup[i] = parsePriority(e)
		}
		return priority{tier: tierTuple, tuple: tup}
	}
	// Anything else (e.g. a bare symbol) sorts at the lowest tier so a
	// malformed exec fact never blocks the ones around it.
	return priority{tier: tierInteger, value: 0}
}

func peanoToInt(v term.Value) (int, bool) {
	if a, ok := v.(term.Atom); ok && string(a) == "Z" {
		return 0, true
	}
	s, ok := v.(term.SExpr)
	if !ok || len(s.Elems) != 2 {
		return 0, false
	}
	head, ok := s.Elems[0].(term.Atom)
	if !ok || string(head) != "S" {
		return 0, false
	}
	inner, ok := peanoToInt(s.Elems[1])
	if !ok {
		return 0, false
	}
	return inner + 1, true
}

// higherThan reports whether p ranks above q: a higher tier always
// wins; within a tier, a larger value (or, for tuples, a
// lexicographically larger component sequence) wins. Driver.Run sorts
// exec facts ascending by this order, so p runs after q.
func (p priority) higherThan(q priority) bool {
	if p.tier != q.tier {
		return p.tier > q.tier
	}
	if p.tier == tierTuple {
		for i := 0; i < len(p.tuple) && i < len(q.tuple); i++ {
			if p.tuple[i].higherThan(q.tuple[i]) {
				return true
			}
			if q.tuple[i].higherThan(p.tuple[i]) {
				return false
			}
		}
		return len(p.tuple) > len(q.tuple)
	}
	return p.value > q.value
}
