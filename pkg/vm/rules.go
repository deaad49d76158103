package vm

import (
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/match"
	"github.com/mettalang/mork/pkg/space"
	"github.com/mettalang/mork/pkg/term"
)

// defineRule implements OpDefineRule: pop rhs then lhs (pushed in that
// order by the compiler's `=` lowering) and register them in the self
// space (§4.2, §4.6 — exec rules are added as plain facts instead, via
// SpaceAdd, and are never defined through this opcode).
func (m *VM) defineRule() error {
	rhs, err := m.pop()
	if err != nil {
		return err
	}
	lhs, err := m.pop()
	if err != nil {
		return err
	}
	m.env.Self().AddRule(lhs, rhs)
	return m.push(term.UnitV{})
}

// dispatchRules implements OpDispatchRules: the standalone dispatcher of
// §4.4 that matches a call term directly against the self space without
// going through the bridge's compiled-chunk cache, instantiating the
// matching rule's RHS as a plain term rather than bytecode. Package
// bytecode does not emit DispatchRules; its rule calls all lower to Call
// or TailCall through the bridge.
func (m *VM) dispatchRules() error {
	callTerm, err := m.pop()
	if err != nil {
		return err
	}
	call, ok := callTerm.(term.SExpr)
	if !ok || len(call.Elems) == 0 {
		return m.push(callTerm)
	}
	head, ok := call.Elems[0].(term.Atom)
	if !ok {
		return m.push(callTerm)
	}

	type candidate struct {
		lhs      term.Value
		rhs      term.Value
		bindings *term.Bindings
	}
	var cands []candidate
	for _, r := range m.env.Self().GetMatchingRules(string(head), call.Arity()) {
		b, ok := match.Match(r.LHS, callTerm, nil)
		if !ok {
			continue
		}
		cands = append(cands, candidate{lhs: r.LHS, rhs: r.RHS, bindings: b})
	}
	if len(cands) == 0 {
		return m.push(callTerm)
	}
	best := match.MinimalTier(cands, func(c candidate) term.Value { return c.lhs })

	results := make([]term.Value, len(best))
	for i, c := range best {
		results[i] = term.ApplyBindings(c.rhs, c.bindings)
	}
	if len(results) == 1 {
		return m.push(results[0])
	}
	m.pushChoicePoint(m.ip, m.chunk, valueAlts(results))
	return nil
}

func (m *VM) spaceOp(op bytecode.Op) error {
	switch op {
	case bytecode.OpSpaceAdd:
		atom, err := m.pop()
		if err != nil {
			return err
		}
		handle, err := m.pop()
		if err != nil {
			return err
		}
		sp, err := m.resolveSpace(handle)
		if err != nil {
			return err
		}
		sp.AddAtom(atom)
		return m.push(term.UnitV{})
	case bytecode.OpSpaceRemove:
		atom, err := m.pop()
		if err != nil {
			return err
		}
		handle, err := m.pop()
		if err != nil {
			return err
		}
		sp, err := m.resolveSpace(handle)
		if err != nil {
			return err
		}
		return m.push(term.Bool(sp.RemoveAtom(atom)))
	case bytecode.OpSpaceGetAtoms:
		handle, err := m.pop()
		if err != nil {
			return err
		}
		sp, err := m.resolveSpace(handle)
		if err != nil {
			return err
		}
		return m.push(term.SExpr{Elems: sp.Collapse()})
	case bytecode.OpSpaceMatch:
		template, err := m.pop()
		if err != nil {
			return err
		}
		pattern, err := m.pop()
		if err != nil {
			return err
		}
		handle, err := m.pop()
		if err != nil {
			return err
		}
		sp, err := m.resolveSpace(handle)
		if err != nil {
			return err
		}
		results := sp.MatchSpace(pattern, template)
		switch len(results) {
		case 0:
			return m.push(term.EmptyV{})
		case 1:
			return m.push(results[0])
		default:
			m.pushChoicePoint(m.ip, m.chunk, valueAlts(results))
			return nil
		}
	}
	return fatalf("unhandled space opcode %s", op)
}

func (m *VM) resolveSpace(v term.Value) (*space.Space, error) {
	h, ok := v.(term.Space)
	if !ok {
		return nil, typeError(term.Atom("Space"), v)
	}
	sp := m.env.ResolveSpace(h)
	if sp == nil {
		return nil, recoverable("unknown space", v)
	}
	return sp, nil
}

// loadSpace implements OpLoadSpace: the only statically resolvable space
// reference is the implicit `&self`; the empty-atom sentinel allocates a
// fresh space (the `new-space` form); any other named space is obtained
// at runtime as an ordinary value threaded through bindings/locals like
// any other term.
func (m *VM) loadSpace(idx uint16) error {
	nameVal, err := m.constant(idx)
	if err != nil {
		return err
	}
	name, _ := nameVal.(term.Atom)
	switch string(name) {
	case "&self", "self":
		return m.push(m.env.SelfHandle())
	case "":
		handle, _ := m.env.NewSpace("")
		return m.push(handle)
	}
	return fatalf("LoadSpace: unknown static space reference %q", name)
}

func (m *VM) stateOp(op bytecode.Op) error {
	switch op {
	case bytecode.OpNewState:
		v, err := m.pop()
		if err != nil {
			return err
		}
		return m.push(m.env.NewState(v))
	case bytecode.OpGetState:
		v, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := v.(term.State)
		if !ok {
			return typeError(term.Atom("State"), v)
		}
		cur, ok := m.env.GetState(s)
		if !ok {
			return recoverable("unknown state", v)
		}
		return m.push(cur)
	case bytecode.OpChangeState:
		next, err := m.pop()
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := v.(term.State)
		if !ok {
			return typeError(term.Atom("State"), v)
		}
		if !m.env.ChangeState(s, next) {
			return recoverable("unknown state", v)
		}
		return m.push(s)
	}
	return fatalf("unhandled state opcode %s", op)
}
