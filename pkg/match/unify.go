package match

import "github.com/mettalang/mork/pkg/term"

// Unify is symmetric: a variable on either side binds. It performs no
// occurs-check, matching the reference semantics — a cyclic binding is a
// latent error; term.ApplyBindings substitutes one level without
// following bound values, so it never loops on one.
func Unify(a, b term.Value, bindings *term.Bindings) (*term.Bindings, bool) {
	if bindings == nil {
		bindings = term.NewBindings()
	}

	av, aIsVar := asVariable(a)
	bv, bIsVar := asVariable(b)

	switch {
	case aIsVar && av == "_":
		return bindings, true
	case bIsVar && bv == "_":
		return bindings, true
	case aIsVar && bIsVar && av == bv:
		return bindings, true
	case aIsVar:
		return bindVariable(av, b, bindings)
	case bIsVar:
		return bindVariable(bv, a, bindings)
	}

	if isAbsent(a) && isAbsent(b) {
		return bindings, true
	}

	aSeq, aIsSeq := a.(term.SExpr)
	bSeq, bIsSeq := b.(term.SExpr)
	if aIsSeq && bIsSeq {
		if len(aSeq.Elems) != len(bSeq.Elems) {
			return nil, false
		}
		cur := bindings
		for i := range aSeq.Elems {
			var ok bool
			cur, ok = Unify(aSeq.Elems[i], bSeq.Elems[i], cur)
			if !ok {
				return nil, false
			}
		}
		return cur, true
	}

	if a.Equal(b) {
		return bindings, true
	}
	return nil, false
}

// bindVariable resolves an existing binding for name before committing a
// new one, so that repeated occurrences of the same variable within one
// unification are forced to agree (via Bindings.With's equality check).
func bindVariable(name string, value term.Value, b *term.Bindings) (*term.Bindings, bool) {
	if existing, ok := b.Lookup(name); ok {
		return Unify(existing, value, b)
	}
	return b.With(name, value)
}

func asVariable(v term.Value) (string, bool) {
	a, ok := v.(term.Atom)
	if !ok {
		return "", false
	}
	if a.IsWildcard() {
		return "_", true
	}
	if a.IsVariable() {
		return string(a), true
	}
	return "", false
}
