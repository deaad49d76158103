package vm

import (
	"math"

	"github.com/mettalang/mork/pkg/bytecode"
	"github.com/mettalang/mork/pkg/term"
)

func asNumber(v term.Value) (float64, bool, bool) {
	switch n := v.(type) {
	case term.Long:
		return float64(n), true, true
	case term.Float:
		return float64(n), false, true
	}
	return 0, false, false
}

func (m *VM) binArith(op bytecode.Op) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}

	al, aIsLong := a.(term.Long)
	bl, bIsLong := b.(term.Long)
	if aIsLong && bIsLong {
		res, rerr := longArith(op, al, bl)
		if rerr != nil {
			return rerr
		}
		return m.push(res)
	}

	af, _, aok := asNumber(a)
	bf, _, bok := asNumber(b)
	if !aok {
		return typeError(term.Atom("Number"), a)
	}
	if !bok {
		return typeError(term.Atom("Number"), b)
	}
	switch op {
	case bytecode.OpAdd:
		return m.push(term.Float(af + bf))
	case bytecode.OpSub:
		return m.push(term.Float(af - bf))
	case bytecode.OpMul:
		return m.push(term.Float(af * bf))
	case bytecode.OpDiv:
		if bf == 0 {
			return recoverable("division by zero", nil)
		}
		return m.push(term.Float(af / bf))
	case bytecode.OpMod, bytecode.OpFloorDiv:
		if bf == 0 {
			return recoverable("division by zero", nil)
		}
		q := math.Floor(af / bf)
		if op == bytecode.OpFloorDiv {
			return m.push(term.Float(q))
		}
		return m.push(term.Float(af - q*bf))
	case bytecode.OpPow:
		return m.push(term.Float(math.Pow(af, bf)))
	}
	return fatalf("unhandled arithmetic opcode %s", op)
}

func longArith(op bytecode.Op, a, b term.Long) (term.Value, error) {
	switch op {
	case bytecode.OpAdd:
		sum := a + b
		if (b > 0 && sum < a) || (b < 0 && sum > a) {
			return nil, recoverable("integer overflow", term.SExpr{Elems: []term.Value{term.Atom("+"), a, b}})
		}
		return sum, nil
	case bytecode.OpSub:
		diff := a - b
		if (b < 0 && diff < a) || (b > 0 && diff > a) {
			return nil, recoverable("integer overflow", term.SExpr{Elems: []term.Value{term.Atom("-"), a, b}})
		}
		return diff, nil
	case bytecode.OpMul:
		if a == 0 || b == 0 {
			return term.Long(0), nil
		}
		prod := a * b
		if prod/b != a {
			return nil, recoverable("integer overflow", term.SExpr{Elems: []term.Value{term.Atom("*"), a, b}})
		}
		return prod, nil
	case bytecode.OpDiv:
		if b == 0 {
			return nil, recoverable("division by zero", term.SExpr{Elems: []term.Value{a, b}})
		}
		return a / b, nil
	case bytecode.OpMod:
		if b == 0 {
			return nil, recoverable("division by zero", term.SExpr{Elems: []term.Value{a, b}})
		}
		return a % b, nil
	case bytecode.OpFloorDiv:
		if b == 0 {
			return nil, recoverable("division by zero", term.SExpr{Elems: []term.Value{a, b}})
		}
		q := a / b
		if (a%b != 0) && ((a < 0) != (b < 0)) {
			q--
		}
		return q, nil
	case bytecode.OpPow:
		if b < 0 {
			return term.Float(math.Pow(float64(a), float64(b))), nil
		}
		result := term.Long(1)
		base := a
		for i := term.Long(0); i < b; i++ {
			next := result * base
			if base != 0 && next/base != result {
				return nil, recoverable("integer overflow", term.SExpr{Elems: []term.Value{term.Atom("pow"), a, b}})
			}
			result = next
		}
		return result, nil
	}
	return nil, fatalf("unhandled integer arithmetic opcode %s", op)
}

func (m *VM) unArith(op bytecode.Op) error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	switch op {
	case bytecode.OpNeg:
		switch n := v.(type) {
		case term.Long:
			if n == math.MinInt64 {
				return recoverable("integer overflow", n)
			}
			return m.push(-n)
		case term.Float:
			return m.push(-n)
		}
		return typeError(term.Atom("Number"), v)
	case bytecode.OpAbs:
		switch n := v.(type) {
		case term.Long:
			if n == math.MinInt64 {
				return recoverable("integer overflow", n)
			}
			if n < 0 {
				return m.push(-n)
			}
			return m.push(n)
		case term.Float:
			if n < 0 {
				return m.push(-n)
			}
			return m.push(n)
		}
		return typeError(term.Atom("Number"), v)
	case bytecode.OpSqrt:
		f, _, ok := asNumber(v)
		if !ok {
			return typeError(term.Atom("Number"), v)
		}
		if f < 0 {
			return recoverable("sqrt of negative", v)
		}
		return m.push(term.Float(math.Sqrt(f)))
	case bytecode.OpLog:
		f, _, ok := asNumber(v)
		if !ok {
			return typeError(term.Atom("Number"), v)
		}
		if f <= 0 {
			return recoverable("log of non-positive", v)
		}
		return m.push(term.Float(math.Log(f)))
	}
	return fatalf("unhandled unary arithmetic opcode %s", op)
}

func (m *VM) compare(op bytecode.Op) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	if op == bytecode.OpEq {
		return m.push(term.Bool(a.Equal(b)))
	}
	if op == bytecode.OpNe {
		return m.push(term.Bool(!a.Equal(b)))
	}
	af, _, aok := asNumber(a)
	bf, _, bok := asNumber(b)
	if !aok {
		return typeError(term.Atom("Number"), a)
	}
	if !bok {
		return typeError(term.Atom("Number"), b)
	}
	var r bool
	switch op {
	case bytecode.OpLt:
		r = af < bf
	case bytecode.OpLe:
		r = af <= bf
	case bytecode.OpGt:
		r = af > bf
	case bytecode.OpGe:
		r = af >= bf
	}
	return m.push(term.Bool(r))
}

func (m *VM) boolBin(op bytecode.Op) error {
	b, err := m.pop()
	if err != nil {
		return err
	}
	a, err := m.pop()
	if err != nil {
		return err
	}
	ab, aok := a.(term.Bool)
	bb, bok := b.(term.Bool)
	if !aok {
		return typeError(term.Atom("Bool"), a)
	}
	if !bok {
		return typeError(term.Atom("Bool"), b)
	}
	switch op {
	case bytecode.OpAnd:
		return m.push(term.Bool(bool(ab) && bool(bb)))
	case bytecode.OpOr:
		return m.push(term.Bool(bool(ab) || bool(bb)))
	case bytecode.OpXor:
		return m.push(term.Bool(bool(ab) != bool(bb)))
	}
	return fatalf("unhandled boolean opcode %s", op)
}

func (m *VM) boolNot() error {
	v, err := m.pop()
	if err != nil {
		return err
	}
	b, ok := v.(term.Bool)
	if !ok {
		return typeError(term.Atom("Bool"), v)
	}
	return m.push(term.Bool(!b))
}
