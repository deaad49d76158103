package bytecode

import "github.com/mettalang/mork/pkg/term"

// fold evaluates t to a compile-time constant when it has no free
// variables and contains only foldable builtins (§4.3a). It must never
// fold an expression whose runtime evaluation could raise a precise
// runtime error: division by zero, overflow, or a non-boolean operand to
// and/or/not all fall through unfolded so the VM still raises them.
func fold(t term.Value) (term.Value, bool) {
	switch v := t.(type) {
	case term.NilV, term.UnitV, term.EmptyV, term.Bool, term.Long, term.Float, term.String:
		return v, true
	case term.Atom:
		// "self" is left to compileAtom, which loads the self space.
		if v.IsVariable() || v == "self" {
			return nil, false
		}
		return v, true
	case term.SExpr:
		return foldSExpr(v)
	default:
		return nil, false
	}
}

func foldSExpr(s term.SExpr) (term.Value, bool) {
	if len(s.Elems) == 0 {
		return s, true
	}
	head, ok := s.Elems[0].(term.Atom)
	if !ok || head.IsVariable() {
		return nil, false
	}

	switch string(head) {
	case "=", "if", "let", "let*", "quote", "superpose", "collapse", "collapse-bind",
		"map-atom", "filter-atom", "foldl-atom", "new-space", "add-atom", "remove-atom",
		"get-atoms", "match", "new-state", "get-state", "change-state!", "and", "or", "not",
		"chain", "catch", "case":
		// Never folded: either has side effects, introduces scope, or
		// (and/or/not) must preserve a runtime type error on non-boolean
		// operands.
		return nil, false
	}

	args := make([]term.Value, len(s.Elems)-1)
	for i, e := range s.Elems[1:] {
		folded, ok := fold(e)
		if !ok {
			return nil, false
		}
		args[i] = folded
	}

	switch string(head) {
	case "+", "-", "*", "/", "%", "mod", "pow", "abs", "floordiv":
		return foldArith(string(head), args)
	case "<", "<=", ">", ">=", "==", "!=":
		return foldCompare(string(head), args)
	case "xor":
		return foldXor(args)
	}
	return nil, false
}

func foldArith(op string, args []term.Value) (term.Value, bool) {
	switch op {
	case "abs":
		if len(args) != 1 {
			return nil, false
		}
		switch n := args[0].(type) {
		case term.Long:
			// int64.MIN.Abs() overflows: leave unfolded so the VM raises
			// the precise runtime overflow error.
			if n == -9223372036854775808 {
				return nil, false
			}
			if n < 0 {
				return -n, true
			}
			return n, true
		case term.Float:
			if n < 0 {
				return -n, true
			}
			return n, true
		}
		return nil, false
	}
	if len(args) != 2 {
		return nil, false
	}
	al, aIsLong := args[0].(term.Long)
	bl, bIsLong := args[1].(term.Long)
	if aIsLong && bIsLong {
		switch op {
		case "+", "-", "*":
			// Overflow must surface as a runtime error, not a folded
			// wraparound value, so only an exact result folds.
			switch op {
			case "+":
				if r := al + bl; (r > al) == (bl > 0) {
					return r, true
				}
			case "-":
				if r := al - bl; (r < al) == (bl > 0) {
					return r, true
				}
			case "*":
				if r := al * bl; al == 0 || (r/al == bl && !(al == -1 && bl == -9223372036854775808)) {
					return r, true
				}
			}
			return nil, false
		case "/", "mod", "%", "floordiv":
			if bl == 0 {
				return nil, false
			}
			if op == "/" {
				return al / bl, true
			}
			if op == "floordiv" {
				q := al / bl
				if al%bl != 0 && (al < 0) != (bl < 0) {
					q--
				}
				return q, true
			}
			return al % bl, true
		case "pow":
			if bl < 0 {
				return nil, false
			}
			result := term.Long(1)
			base := al
			for i := term.Long(0); i < bl; i++ {
				next := result * base
				if base != 0 && next/base != result {
					return nil, false
				}
				result = next
			}
			return result, true
		}
	}
	af, aok := toFloat(args[0])
	bf, bok := toFloat(args[1])
	if !aok || !bok {
		return nil, false
	}
	switch op {
	case "+":
		return term.Float(af + bf), true
	case "-":
		return term.Float(af - bf), true
	case "*":
		return term.Float(af * bf), true
	case "/":
		if bf == 0 {
			return nil, false
		}
		return term.Float(af / bf), true
	}
	return nil, false
}

func foldCompare(op string, args []term.Value) (term.Value, bool) {
	if len(args) != 2 {
		return nil, false
	}
	if op == "==" || op == "!=" {
		// Runtime Eq/Ne compare with Equal, so Long 1 and Float 1.0 differ.
		return term.Bool(args[0].Equal(args[1]) == (op == "==")), true
	}
	af, aok := toFloat(args[0])
	bf, bok := toFloat(args[1])
	if !aok || !bok {
		return nil, false
	}
	switch op {
	case "<":
		return term.Bool(af < bf), true
	case "<=":
		return term.Bool(af <= bf), true
	case ">":
		return term.Bool(af > bf), true
	case ">=":
		return term.Bool(af >= bf), true
	case "==":
		return term.Bool(af == bf), true
	case "!=":
		return term.Bool(af != bf), true
	}
	return nil, false
}

func foldXor(args []term.Value) (term.Value, bool) {
	if len(args) != 2 {
		return nil, false
	}
	a, aok := args[0].(term.Bool)
	b, bok := args[1].(term.Bool)
	if !aok || !bok {
		return nil, false
	}
	return term.Bool(bool(a) != bool(b)), true
}

func toFloat(v term.Value) (float64, bool) {
	switch n := v.(type) {
	case term.Long:
		return float64(n), true
	case term.Float:
		return float64(n), true
	}
	return 0, false
}
