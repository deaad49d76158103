package vm

import (
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/match"
	"github.com/mettalang/mork/pkg/term"
)

// patternOp implements the Match/MatchBind/MatchArity/Unify/UnifyBind
// family (§4.1, §4.8). The *Bind variants fold the produced bindings
// into the current frame instead of discarding them, so a subsequent
// `(get-binding $x)`-style load sees the match's results.
func (m *VM) patternOp(op bytecode.Op) error {
	if op == bytecode.OpMatchArity {
		n, err := m.readU8()
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := v.(term.SExpr)
		return m.push(term.Bool(ok && s.Arity() == int(n)))
	}

	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}

	switch op {
	case bytecode.OpMatch:
		_, ok := match.Match(a, b, nil)
		return m.push(term.Bool(ok))
	case bytecode.OpMatchBind:
		bindings, ok := match.Match(a, b, m.curBindings())
		if !ok {
			return m.push(term.Bool(false))
		}
		m.bindings[len(m.bindings)-1] = bindings
		return m.push(term.Bool(true))
	case bytecode.OpUnify:
		_, ok := match.Unify(a, b, nil)
		return m.push(term.Bool(ok))
	case bytecode.OpUnifyBind:
		bindings, ok := match.Unify(a, b, m.curBindings())
		if !ok {
			return m.push(term.Bool(false))
		}
		m.bindings[len(m.bindings)-1] = bindings
		return m.push(term.Bool(true))
	}
	return fatalf("unhandled pattern opcode %s", op)
}
