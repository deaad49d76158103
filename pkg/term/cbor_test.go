package term

import "testing"

func TestEncodeDecodeRoundTrip(t *testing.T) {
	values := []Value{
		NilV{},
		UnitV{},
		EmptyV{},
		Bool(true),
		Long(-42),
		Float(3.25),
		String("hello"),
		Atom("$x"),
		NewSExpr(Atom("parent"), Atom("Tom"), Atom("Bob")),
		Type{Of: Atom("Number")},
		NewError("division by zero", NewSExpr(Long(1), Long(0))),
		Space{Handle: 7},
		State{ID: 3},
		Conjunction{Goals: []Value{Atom("$x"), Atom("$y")}},
		Memo{Hash: 123, Of: Long(5)},
		Quoted{Of: NewSExpr(Atom("+"), Long(1), Long(2))},
	}

	for _, v := range values {
		data, err := Encode(v)
		if err != nil {
			t.Fatalf("Encode(%v): %v", v, err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode round-trip of %v: %v", v, err)
		}
		if !got.Equal(v) {
			t.Errorf("round-trip mismatch: got %v, want %v", got, v)
		}
	}
}

func TestEncodeDecodeNestedSExpr(t *testing.T) {
	v := NewSExpr(
		Atom("exec"),
		Long(1),
		NewSExpr(Atom("parent"), Atom("$x"), Atom("$y")),
		NewSExpr(Atom("ancestor"), Atom("$x"), Atom("$y")),
	)
	data, err := Encode(v)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := Decode(data)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if !got.Equal(v) {
		t.Errorf("round trip mismatch: got %v, want %v", got, v)
	}
}
