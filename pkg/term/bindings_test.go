package term

import "testing"

func TestBindingsWithAndLookup(t *testing.T) {
	b := NewBindings()
	b, ok := b.With("$x", Long(5))
	if !ok {
		t.Fatal("expected first binding of $x to succeed")
	}
	v, ok := b.Lookup("$x")
	if !ok || !v.Equal(Long(5)) {
		t.Errorf("Lookup($x) = %v, %v", v, ok)
	}

	if _, ok := b.Lookup("$y"); ok {
		t.Error("did not expect $y to be bound")
	}
}

func TestBindingsRebindConflict(t *testing.T) {
	b := NewBindings()
	b, _ = b.With("$x", Long(5))

	if _, ok := b.With("$x", Long(6)); ok {
		t.Error("expected rebinding $x to a different value to fail")
	}
	if again, ok := b.With("$x", Long(5)); !ok || again != b {
		t.Error("expected rebinding $x to an equal value to be a no-op success")
	}
}

func TestBindingsMerge(t *testing.T) {
	a := NewBindings()
	a, _ = a.With("$x", Long(1))
	b := NewBindings()
	b, _ = b.With("$y", Long(2))

	merged, ok := a.Merge(b)
	if !ok {
		t.Fatal("expected disjoint merge to succeed")
	}
	if v, ok := merged.Lookup("$x"); !ok || !v.Equal(Long(1)) {
		t.Errorf("merged $x = %v, %v", v, ok)
	}
	if v, ok := merged.Lookup("$y"); !ok || !v.Equal(Long(2)) {
		t.Errorf("merged $y = %v, %v", v, ok)
	}

	c := NewBindings()
	c, _ = c.With("$x", Long(99))
	if _, ok := a.Merge(c); ok {
		t.Error("expected conflicting merge to fail")
	}
}

func TestBindingsManyEntriesUsesIndex(t *testing.T) {
	b := NewBindings()
	for i := 0; i < bindingScanThreshold+5; i++ {
		var ok bool
		b, ok = b.With(itoaVar(i), Long(int64(i)))
		if !ok {
			t.Fatalf("binding %d failed unexpectedly", i)
		}
	}
	for i := 0; i < bindingScanThreshold+5; i++ {
		v, ok := b.Lookup(itoaVar(i))
		if !ok || !v.Equal(Long(int64(i))) {
			t.Errorf("Lookup(%d) = %v, %v", i, v, ok)
		}
	}
}

func itoaVar(i int) string {
	digits := "0123456789"
	if i < 10 {
		return "$v" + string(digits[i])
	}
	return "$v" + string(digits[i/10]) + string(digits[i%10])
}

func TestApplyBindingsPartialEvaluation(t *testing.T) {
	b := NewBindings()
	b, _ = b.With("$x", Long(5))

	tmpl := NewSExpr(Atom("+"), Atom("$x"), Atom("$y"))
	got := ApplyBindings(tmpl, b)
	want := NewSExpr(Atom("+"), Long(5), Atom("$y"))
	if !got.Equal(want) {
		t.Errorf("ApplyBindings = %v, want %v (unbound $y must survive)", got, want)
	}
}
