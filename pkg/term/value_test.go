package term

import "testing"

func TestAtomIsVariable(t *testing.T) {
	cases := map[string]bool{
		"$x":    true,
		"$":     true,
		"_":     true,
		"&x":    true,
		"'x":    true,
		"&":     false,
		"foo":   false,
		"":      false,
		"Empty": false,
	}
	for name, want := range cases {
		if got := Atom(name).IsVariable(); got != want {
			t.Errorf("Atom(%q).IsVariable() = %v, want %v", name, got, want)
		}
	}
}

func TestAtomIsWildcard(t *testing.T) {
	if !Atom("_").IsWildcard() {
		t.Error("expected \"_\" to be a wildcard")
	}
	if Atom("$x").IsWildcard() {
		t.Error("did not expect \"$x\" to be a wildcard")
	}
}

func TestSExprHeadTailArity(t *testing.T) {
	s := NewSExpr(Atom("double"), Long(5))
	head, ok := s.Head()
	if !ok || !head.Equal(Atom("double")) {
		t.Errorf("Head() = %v, %v", head, ok)
	}
	if got := s.Tail(); !got.Equal(NewSExpr(Long(5))) {
		t.Errorf("Tail() = %v", got)
	}
	if got := s.Arity(); got != 1 {
		t.Errorf("Arity() = %d, want 1", got)
	}

	empty := NewSExpr()
	if _, ok := empty.Head(); ok {
		t.Error("expected empty SExpr Head() to report false")
	}
	if got := empty.Arity(); got != 0 {
		t.Errorf("empty Arity() = %d, want 0", got)
	}
}

func TestValueEqual(t *testing.T) {
	a := NewSExpr(Atom("parent"), Atom("Tom"), Atom("Bob"))
	b := NewSExpr(Atom("parent"), Atom("Tom"), Atom("Bob"))
	c := NewSExpr(Atom("parent"), Atom("Pam"), Atom("Bob"))

	if !a.Equal(b) {
		t.Error("expected structurally identical SExprs to be Equal")
	}
	if a.Equal(c) {
		t.Error("did not expect differing SExprs to be Equal")
	}
	if !(NilV{}).Equal(NilV{}) {
		t.Error("expected NilV to equal NilV")
	}
	if (NilV{}).Equal(UnitV{}) {
		t.Error("NilV and UnitV must not be Equal (only pattern-equivalent, see package match)")
	}
}

func TestIsNilLike(t *testing.T) {
	if !IsNilLike(NilV{}) || !IsNilLike(UnitV{}) || !IsNilLike(NewSExpr()) {
		t.Error("expected Nil, Unit, and empty SExpr to be nil-like")
	}
	if IsNilLike(EmptyV{}) {
		t.Error("IsNilLike must not include EmptyV; that equivalence is the matcher's job")
	}
	if IsNilLike(Atom("Empty")) {
		t.Error("IsNilLike must not include the Empty sentinel atom")
	}
}

func TestFloatEquality(t *testing.T) {
	nan := Float(nan())
	if nan.Equal(nan) {
		t.Error("NaN must not Equal itself under IEEE semantics")
	}
	if FloatBits(nan) != FloatBits(nan) {
		t.Error("FloatBits must be stable for hashing even when Equal is false")
	}
}

func nan() float64 {
	var zero float64
	return zero / zero
}
