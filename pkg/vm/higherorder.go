package vm

import (
	"context"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

// higherOrderOp implements map-atom, filter-atom, and foldl-atom (§4.8).
// Each compiles to its surface arguments pushed left to right followed
// by a sub-chunk index; the sub-chunk's own StoreLocal prologue (built
// in package bytecode's compileHigherOrder) consumes whatever arguments
// this opcode pushes for it per element.
func (m *VM) higherOrderOp(ctx context.Context, op bytecode.Op) error {
	idx, err := m.readU16()
	if err != nil {
		return err
	}
	sub, err := m.subChunk(idx)
	if err != nil {
		return err
	}

	switch op {
	case bytecode.OpMapAtom:
		coll, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := coll.(term.SExpr)
		if !ok {
			return typeError(term.Atom("Expression"), coll)
		}
		out := make([]term.Value, len(s.Elems))
		for i, e := range s.Elems {
			v, err := m.callSub(ctx, sub, []term.Value{e})
			if err != nil {
				return err
			}
			out[i] = v
		}
		return m.push(term.SExpr{Elems: out})

	case bytecode.OpFilterAtom:
		coll, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := coll.(term.SExpr)
		if !ok {
			return typeError(term.Atom("Expression"), coll)
		}
		out := make([]term.Value, 0, len(s.Elems))
		for _, e := range s.Elems {
			v, err := m.callSub(ctx, sub, []term.Value{e})
			if err != nil {
				return err
			}
			keep, ok := v.(term.Bool)
			if !ok {
				return typeError(term.Atom("Bool"), v)
			}
			if bool(keep) {
				out = append(out, e)
			}
		}
		return m.push(term.SExpr{Elems: out})

	case bytecode.OpFoldlAtom:
		args, err := m.popN(2)
		if err != nil {
			return err
		}
		coll, ok := args[0].(term.SExpr)
		if !ok {
			return typeError(term.Atom("Expression"), args[0])
		}
		acc := args[1]
		for _, e := range coll.Elems {
			acc, err = m.callSub(ctx, sub, []term.Value{acc, e})
			if err != nil {
				return err
			}
		}
		return m.push(acc)

	case bytecode.OpCatch:
		v, err := m.pop()
		if err != nil {
			return err
		}
		errVal, isErr := v.(term.Error)
		if !isErr {
			return m.push(v)
		}
		result, err := m.callSub(ctx, sub, []term.Value{errVal})
		if err != nil {
			return err
		}
		return m.push(result)
	}
	return fatalf("unhandled higher-order opcode %s", op)
}
