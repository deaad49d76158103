package term

import (
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// wireValue is the CBOR-serializable shadow of Value, used by Encode/Decode
// to round-trip a term through bytes without exposing every concrete
// variant as its own wire type.
type wireValue struct {
	K uint8       `cbor:"k"`
	B bool        `cbor:"b,omitempty"`
	I int64       `cbor:"i,omitempty"`
	F float64     `cbor:"f,omitempty"`
	S string      `cbor:"s,omitempty"`
	H uint64      `cbor:"h,omitempty"`
	E []wireValue `cbor:"e,omitempty"`
	D *wireValue  `cbor:"d,omitempty"`
}

// Encode serializes v to CBOR. It exists for test fixtures and debugging
// aids that need a byte-level snapshot of a term tree; it is not the
// engine's (out-of-scope) persistent space format.
func Encode(v Value) ([]byte, error) {
	return cbor.Marshal(toWire(v))
}

// Decode is Encode's inverse.
func Decode(data []byte) (Value, error) {
	var w wireValue
	if err := cbor.Unmarshal(data, &w); err != nil {
		return nil, err
	}
	return fromWire(w)
}

func toWire(v Value) wireValue {
	switch x := v.(type) {
	case NilV:
		return wireValue{K: uint8(KindNil)}
	case UnitV:
		return wireValue{K: uint8(KindUnit)}
	case EmptyV:
		return wireValue{K: uint8(KindEmpty)}
	case Bool:
		return wireValue{K: uint8(KindBool), B: bool(x)}
	case Long:
		return wireValue{K: uint8(KindLong), I: int64(x)}
	case Float:
		return wireValue{K: uint8(KindFloat), F: float64(x)}
	case String:
		return wireValue{K: uint8(KindString), S: string(x)}
	case Atom:
		return wireValue{K: uint8(KindAtom), S: string(x)}
	case SExpr:
		elems := make([]wireValue, len(x.Elems))
		for i, e := range x.Elems {
			elems[i] = toWire(e)
		}
		return wireValue{K: uint8(KindSExpr), E: elems}
	case Type:
		d := toWire(x.Of)
		return wireValue{K: uint8(KindType), D: &d}
	case Error:
		d := toWire(x.Details)
		return wireValue{K: uint8(KindError), S: x.Msg, D: &d}
	case Space:
		return wireValue{K: uint8(KindSpace), H: x.Handle}
	case State:
		return wireValue{K: uint8(KindState), H: x.ID}
	case Conjunction:
		goals := make([]wireValue, len(x.Goals))
		for i, g := range x.Goals {
			goals[i] = toWire(g)
		}
		return wireValue{K: uint8(KindConjunction), E: goals}
	case Memo:
		d := toWire(x.Of)
		return wireValue{K: uint8(KindMemo), H: x.Hash, D: &d}
	case Quoted:
		d := toWire(x.Of)
		return wireValue{K: uint8(KindQuoted), D: &d}
	default:
		return wireValue{K: uint8(KindNil)}
	}
}

func fromWire(w wireValue) (Value, error) {
	switch Kind(w.K) {
	case KindNil:
		return NilV{}, nil
	case KindUnit:
		return UnitV{}, nil
	case KindEmpty:
		return EmptyV{}, nil
	case KindBool:
		return Bool(w.B), nil
	case KindLong:
		return Long(w.I), nil
	case KindFloat:
		return Float(w.F), nil
	case KindString:
		return String(w.S), nil
	case KindAtom:
		return Atom(w.S), nil
	case KindSExpr:
		elems := make([]Value, len(w.E))
		for i, e := range w.E {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			elems[i] = v
		}
		return SExpr{Elems: elems}, nil
	case KindType:
		if w.D == nil {
			return nil, fmt.Errorf("term: decode: Type missing wrapped value")
		}
		of, err := fromWire(*w.D)
		if err != nil {
			return nil, err
		}
		return Type{Of: of}, nil
	case KindError:
		if w.D == nil {
			return nil, fmt.Errorf("term: decode: Error missing details")
		}
		details, err := fromWire(*w.D)
		if err != nil {
			return nil, err
		}
		return Error{Msg: w.S, Details: details}, nil
	case KindSpace:
		return Space{Handle: w.H}, nil
	case KindState:
		return State{ID: w.H}, nil
	case KindConjunction:
		goals := make([]Value, len(w.E))
		for i, e := range w.E {
			v, err := fromWire(e)
			if err != nil {
				return nil, err
			}
			goals[i] = v
		}
		return Conjunction{Goals: goals}, nil
	case KindMemo:
		if w.D == nil {
			return nil, fmt.Errorf("term: decode: Memo missing wrapped value")
		}
		of, err := fromWire(*w.D)
		if err != nil {
			return nil, err
		}
		return Memo{Hash: w.H, Of: of}, nil
	case KindQuoted:
		if w.D == nil {
			return nil, fmt.Errorf("term: decode: Quoted missing wrapped value")
		}
		of, err := fromWire(*w.D)
		if err != nil {
			return nil, err
		}
		return Quoted{Of: of}, nil
	default:
		return nil, fmt.Errorf("term: decode: unknown kind %d", w.K)
	}
}
