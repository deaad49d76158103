package vm

import (
	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

func (m *VM) termOp(op bytecode.Op) error {
	switch op {
	case bytecode.OpGetElement:
		idx, err := m.readU8()
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		s, ok := v.(term.SExpr)
		if !ok || int(idx) >= len(s.Elems) {
			return recoverable("index out of bounds", term.Long(idx))
		}
		return m.push(s.Elems[idx])
	case bytecode.OpMakeError:
		args, err := m.popN(2)
		if err != nil {
			return err
		}
		return m.push(term.NewError(args[0].String(), args[1]))
	case bytecode.OpCheckType, bytecode.OpAssertType:
		expected, err := m.pop()
		if err != nil {
			return err
		}
		v, err := m.pop()
		if err != nil {
			return err
		}
		ok := typeNameOf(v) == expected.String()
		if op == bytecode.OpCheckType {
			return m.push(term.Bool(ok))
		}
		if !ok {
			return recoverable("type assertion failed", term.SExpr{Elems: []term.Value{expected, v}})
		}
		return m.push(v)
	}

	v, err := m.pop()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpGetHead:
		s, ok := v.(term.SExpr)
		if !ok {
			return typeError(term.Atom("SExpr"), v)
		}
		h, ok := s.Head()
		if !ok {
			return recoverable("head of empty expression", nil)
		}
		return m.push(h)
	case bytecode.OpGetTail:
		s, ok := v.(term.SExpr)
		if !ok {
			return typeError(term.Atom("SExpr"), v)
		}
		return m.push(s.Tail())
	case bytecode.OpGetArity:
		s, ok := v.(term.SExpr)
		if !ok {
			return typeError(term.Atom("SExpr"), v)
		}
		return m.push(term.Long(s.Arity()))
	case bytecode.OpDeconAtom:
		s, ok := v.(term.SExpr)
		if !ok || len(s.Elems) == 0 {
			return recoverable("decons of non-expression", v)
		}
		if err := m.push(s.Elems[0]); err != nil {
			return err
		}
		return m.push(s.Tail())
	case bytecode.OpConsAtom:
		rest, err := m.pop()
		if err != nil {
			return err
		}
		tail, ok := rest.(term.SExpr)
		if !ok {
			return typeError(term.Atom("SExpr"), rest)
		}
		elems := make([]term.Value, 0, len(tail.Elems)+1)
		elems = append(elems, v)
		elems = append(elems, tail.Elems...)
		return m.push(term.SExpr{Elems: elems})
	case bytecode.OpRepr:
		return m.push(term.String(v.String()))
	case bytecode.OpGetType:
		return m.push(term.Type{Of: term.Atom(typeNameOf(v))})
	case bytecode.OpGetMetaType:
		return m.push(term.Atom(metaTypeOf(v)))
	case bytecode.OpIsVariable:
		a, ok := v.(term.Atom)
		return m.push(term.Bool(ok && a.IsVariable()))
	case bytecode.OpIsSExpr:
		_, ok := v.(term.SExpr)
		return m.push(term.Bool(ok))
	case bytecode.OpIsType:
		_, ok := v.(term.Type)
		return m.push(term.Bool(ok))
	case bytecode.OpIsSymbol:
		a, ok := v.(term.Atom)
		return m.push(term.Bool(ok && !a.IsVariable()))
	case bytecode.OpIsError:
		_, ok := v.(term.Error)
		return m.push(term.Bool(ok))
	}
	return fatalf("unhandled term opcode %s", op)
}

// typeNameOf gives the symbol returned by get-type/used by Type/Symbol
// introspection (§4.8). Numbers, booleans, strings, symbols,
// expressions, and errors get the surface type names (Number, Bool,
// String, Symbol, Expression, Error); any other value falls back to its
// Kind label.
func typeNameOf(v term.Value) string {
	switch v.(type) {
	case term.Long:
		return "Number"
	case term.Float:
		return "Number"
	case term.Bool:
		return "Bool"
	case term.String:
		return "String"
	case term.Atom:
		return "Symbol"
	case term.SExpr:
		return "Expression"
	case term.Error:
		return "Error"
	}
	return v.Kind().String()
}

func metaTypeOf(v term.Value) string {
	switch x := v.(type) {
	case term.Atom:
		if x.IsVariable() {
			return "Variable"
		}
		return "Symbol"
	case term.SExpr:
		return "Expression"
	default:
		return "Grounded"
	}
}
